package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
)

const (
	ToolRecommendRestaurant = "recommend_restaurant"
	ToolTopRestaurants      = "top_restaurants"
	ToolMakeReservation     = "make_reservation"
	ToolModifyReservation   = "modify_reservation"
	ToolCancelReservation   = "cancel_reservation"
	ToolReservationDetails  = "get_reservation_details"
	ToolExecuteSQLQuery     = "execute_sql_query"
)

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// DefaultExecutor answers every call with an "unavailable" tool error.
func DefaultExecutor(agentType contractx.AgentType) Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("tool=%s is unavailable for agent=%s", tool, agentType),
		}, nil
	}
}

// IsMutating reports whether the tool writes to the ledger.
func IsMutating(tool string) bool {
	switch tool {
	case ToolMakeReservation, ToolModifyReservation, ToolCancelReservation:
		return true
	default:
		return false
	}
}

// Completes reports whether a successful call of tool fulfils a goal of the
// given intent.
func Completes(tool string, in intent.Intent) bool {
	switch in {
	case intent.MakeReservation:
		return tool == ToolMakeReservation
	case intent.ModifyReservation:
		return tool == ToolModifyReservation
	case intent.CancelReservation:
		return tool == ToolCancelReservation
	case intent.ReservationDetails:
		return tool == ToolReservationDetails
	case intent.RecommendRestaurant:
		return tool == ToolRecommendRestaurant || tool == ToolTopRestaurants
	default:
		return false
	}
}

// InfosForAgent lists the tool schemas bound to an agent's chat model.
func InfosForAgent(agentType contractx.AgentType) []*schema.ToolInfo {
	switch agentType {
	case contractx.AgentTypeBooking:
		return []*schema.ToolInfo{
			makeReservationInfo,
			modifyReservationInfo,
			cancelReservationInfo,
			reservationDetailsInfo,
		}
	case contractx.AgentTypeConcierge:
		return []*schema.ToolInfo{
			recommendRestaurantInfo,
			topRestaurantsInfo,
			executeSQLQueryInfo,
		}
	default:
		return nil
	}
}

// Allowed reports whether agentType may call tool.
func Allowed(agentType contractx.AgentType, tool string) bool {
	for _, info := range InfosForAgent(agentType) {
		if info.Name == tool {
			return true
		}
	}
	return false
}

var (
	recommendRestaurantInfo = &schema.ToolInfo{
		Name: ToolRecommendRestaurant,
		Desc: "Recommend restaurants by cuisine, party size, minimum rating and location.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"cuisine":    {Type: schema.String, Desc: "Type of cuisine, e.g. Italian or Mexican."},
			"party_size": {Type: schema.Integer, Desc: "Number of people in the party."},
			"min_rating": {Type: schema.Number, Desc: "Minimum restaurant rating between 0 and 5."},
			"address":    {Type: schema.String, Desc: "Address or area of interest."},
		}),
	}
	topRestaurantsInfo = &schema.ToolInfo{
		Name: ToolTopRestaurants,
		Desc: "List the best rated restaurants when the user has no preference.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"limit": {Type: schema.Integer, Desc: "How many restaurants to return, default 3."},
		}),
	}
	makeReservationInfo = &schema.ToolInfo{
		Name: ToolMakeReservation,
		Desc: "Make a restaurant reservation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"restaurant_name": {Type: schema.String, Desc: "Name of the restaurant.", Required: true},
			"date":            {Type: schema.String, Desc: "Reservation date as DD-MM-YYYY, today or tomorrow.", Required: true},
			"time":            {Type: schema.String, Desc: "Reservation time as HH:MM or 7pm.", Required: true},
			"party_size":      {Type: schema.Integer, Desc: "Number of people in the party.", Required: true},
			"customer_name":   {Type: schema.String, Desc: "Name the reservation is under.", Required: true},
		}),
	}
	modifyReservationInfo = &schema.ToolInfo{
		Name: ToolModifyReservation,
		Desc: "Modify the date, time or party size of an existing reservation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"reservation_id": {Type: schema.Integer, Desc: "ID of the reservation.", Required: true},
			"new_date":       {Type: schema.String, Desc: "New date as DD-MM-YYYY, today or tomorrow."},
			"new_time":       {Type: schema.String, Desc: "New time as HH:MM or 7pm."},
			"new_party_size": {Type: schema.Integer, Desc: "New number of people in the party."},
		}),
	}
	cancelReservationInfo = &schema.ToolInfo{
		Name: ToolCancelReservation,
		Desc: "Cancel an existing reservation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"reservation_id": {Type: schema.Integer, Desc: "ID of the reservation.", Required: true},
		}),
	}
	reservationDetailsInfo = &schema.ToolInfo{
		Name: ToolReservationDetails,
		Desc: "Look up a reservation by its ID.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"reservation_id": {Type: schema.Integer, Desc: "ID of the reservation.", Required: true},
		}),
	}
	executeSQLQueryInfo = &schema.ToolInfo{
		Name: ToolExecuteSQLQuery,
		Desc: "Run one read-only SELECT against the restaurants and reservations tables.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "A single SELECT or WITH statement.", Required: true},
		}),
	}
)
