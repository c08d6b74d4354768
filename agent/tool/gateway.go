package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	"github.com/tanpawarit/foodiespot-agent/booking"
)

const defaultTopRestaurants = 3

// Ledger is the slice of *booking.Ledger the tools call.
type Ledger interface {
	CreateReservation(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error)
	ModifyReservation(ctx context.Context, id int64, changes booking.Changes) (*booking.Booking, error)
	CancelReservation(ctx context.Context, id int64) (*booking.Booking, error)
	ReservationDetails(ctx context.Context, id int64) (*booking.Booking, error)
	Recommend(ctx context.Context, filter booking.RecommendFilter) ([]booking.Restaurant, error)
	TopRestaurants(ctx context.Context, limit int) ([]booking.Restaurant, error)
}

type Querier interface {
	Execute(ctx context.Context, query string) (*booking.QueryResult, error)
}

// ReservationOutput is returned by the reservation tools. Message is the
// customer-facing sentence the specialist should relay.
type ReservationOutput struct {
	Message     string           `json:"message"`
	Reservation *booking.Booking `json:"reservation"`
}

type RestaurantsOutput struct {
	Message     string               `json:"message"`
	Restaurants []booking.Restaurant `json:"restaurants"`
}

type QueryOutput struct {
	Message string               `json:"message"`
	Result  *booking.QueryResult `json:"result"`
}

// Gateway executes specialist tool calls against the ledger and the query
// gateway. It implements contract.ToolGateway.
type Gateway struct {
	ledger Ledger
	query  Querier
	now    func() time.Time
}

var _ contractx.ToolGateway = (*Gateway)(nil)

type GatewayOption func(*Gateway)

// WithQuerier enables execute_sql_query.
func WithQuerier(q Querier) GatewayOption {
	return func(g *Gateway) {
		g.query = q
	}
}

// WithClock sets the clock used to resolve "today" and "tomorrow".
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGateway(ledger Ledger, opts ...GatewayOption) (*Gateway, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	g := &Gateway{ledger: ledger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *Gateway) Execute(ctx context.Context, agentType string, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	exec := g.NewExecutor(contractx.AgentType(agentType))
	results := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := exec(ctx, req.Tool, req.Args)
		if err != nil {
			return nil, err
		}
		log.Debug().
			Str("agent", agentType).
			Str("tool", req.Tool).
			Bool("ok", res.Succeeded()).
			Str("tool_error", res.Error).
			Msg("tool executed")
		results = append(results, res)
	}
	return results, nil
}

// NewExecutor dispatches to the tool implementations the agent is allowed to
// use and falls back to DefaultExecutor for everything else.
func (g *Gateway) NewExecutor(agentType contractx.AgentType) Executor {
	fallback := DefaultExecutor(agentType)
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		if !Allowed(agentType, tool) {
			return fallback(ctx, tool, args)
		}
		switch tool {
		case ToolMakeReservation:
			return g.makeReservation(ctx, args)
		case ToolModifyReservation:
			return g.modifyReservation(ctx, args)
		case ToolCancelReservation:
			return g.cancelReservation(ctx, args)
		case ToolReservationDetails:
			return g.reservationDetails(ctx, args)
		case ToolRecommendRestaurant:
			return g.recommend(ctx, args)
		case ToolTopRestaurants:
			return g.topRestaurants(ctx, args)
		case ToolExecuteSQLQuery:
			return g.executeQuery(ctx, args)
		default:
			return fallback(ctx, tool, args)
		}
	}
}

func (g *Gateway) makeReservation(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	const tool = ToolMakeReservation
	a := argReader{args: args}

	req := booking.CreateRequest{
		RestaurantName: a.text(intent.SlotRestaurantName, true),
		PartySize:      a.count(intent.SlotPartySize, true),
		CustomerName:   a.text(intent.SlotCustomerName, true),
	}
	req.Date = a.date(intent.SlotDate, true, g.now())
	req.Time = a.clock(intent.SlotTime, true)
	if err := a.err(); err != nil {
		return toolError(tool, err), nil
	}

	b, err := g.ledger.CreateReservation(ctx, req)
	if err != nil {
		return ledgerError(tool, err, req.RestaurantName), nil
	}
	return contractx.ToolResult{
		Tool:   tool,
		Result: ReservationOutput{Message: b.Confirmation(), Reservation: b},
	}, nil
}

func (g *Gateway) modifyReservation(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	const tool = ToolModifyReservation
	a := argReader{args: args}

	id := a.id(intent.SlotReservationID, true)
	var changes booking.Changes
	if a.has(intent.SlotNewDate) {
		d := a.date(intent.SlotNewDate, true, g.now())
		changes.Date = &d
	}
	if a.has(intent.SlotNewTime) {
		t := a.clock(intent.SlotNewTime, true)
		changes.Time = &t
	}
	if a.has(intent.SlotNewPartySize) {
		n := a.count(intent.SlotNewPartySize, true)
		changes.PartySize = &n
	}
	if err := a.err(); err != nil {
		return toolError(tool, err), nil
	}

	b, err := g.ledger.ModifyReservation(ctx, id, changes)
	if err != nil {
		return ledgerError(tool, err, ""), nil
	}
	return contractx.ToolResult{
		Tool: tool,
		Result: ReservationOutput{
			Message:     fmt.Sprintf("Reservation modified successfully. Reservation ID: %d", b.ReservationID),
			Reservation: b,
		},
	}, nil
}

func (g *Gateway) cancelReservation(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	const tool = ToolCancelReservation
	a := argReader{args: args}

	id := a.id(intent.SlotReservationID, true)
	if err := a.err(); err != nil {
		return toolError(tool, err), nil
	}

	b, err := g.ledger.CancelReservation(ctx, id)
	if err != nil {
		return ledgerError(tool, err, ""), nil
	}
	return contractx.ToolResult{
		Tool: tool,
		Result: ReservationOutput{
			Message:     fmt.Sprintf("Reservation canceled successfully. Reservation ID: %d", b.ReservationID),
			Reservation: b,
		},
	}, nil
}

func (g *Gateway) reservationDetails(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	const tool = ToolReservationDetails
	a := argReader{args: args}

	id := a.id(intent.SlotReservationID, true)
	if err := a.err(); err != nil {
		return toolError(tool, err), nil
	}

	b, err := g.ledger.ReservationDetails(ctx, id)
	if err != nil {
		return ledgerError(tool, err, ""), nil
	}
	return contractx.ToolResult{
		Tool:   tool,
		Result: ReservationOutput{Message: b.Details(), Reservation: b},
	}, nil
}

func (g *Gateway) recommend(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	const tool = ToolRecommendRestaurant
	a := argReader{args: args}

	filter := booking.RecommendFilter{
		Cuisine:   a.text(intent.SlotCuisine, false),
		PartySize: a.count(intent.SlotPartySize, false),
		Address:   a.text(intent.SlotAddress, false),
	}
	if a.has(intent.SlotMinRating) {
		filter.MinRating = a.decimal(intent.SlotMinRating)
	} else if a.has("rating") {
		filter.MinRating = a.decimal("rating")
	}
	if err := a.err(); err != nil {
		return toolError(tool, err), nil
	}

	restaurants, err := g.ledger.Recommend(ctx, filter)
	if err != nil {
		return ledgerError(tool, err, ""), nil
	}
	return contractx.ToolResult{
		Tool:   tool,
		Result: RestaurantsOutput{Message: formatRestaurants(restaurants), Restaurants: restaurants},
	}, nil
}

func (g *Gateway) topRestaurants(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	const tool = ToolTopRestaurants
	a := argReader{args: args}

	limit := a.count("limit", false)
	if err := a.err(); err != nil {
		return toolError(tool, err), nil
	}
	if limit <= 0 {
		limit = defaultTopRestaurants
	}

	restaurants, err := g.ledger.TopRestaurants(ctx, limit)
	if err != nil {
		return ledgerError(tool, err, ""), nil
	}
	return contractx.ToolResult{
		Tool:   tool,
		Result: RestaurantsOutput{Message: formatRestaurants(restaurants), Restaurants: restaurants},
	}, nil
}

func (g *Gateway) executeQuery(ctx context.Context, args map[string]any) (contractx.ToolResult, error) {
	const tool = ToolExecuteSQLQuery
	if g.query == nil {
		return DefaultExecutor(contractx.AgentTypeConcierge)(ctx, tool, args)
	}
	a := argReader{args: args}

	query := a.text("query", true)
	if err := a.err(); err != nil {
		return toolError(tool, err), nil
	}

	res, err := g.query.Execute(ctx, query)
	switch {
	case errors.Is(err, booking.ErrUnsafeQuery):
		return contractx.ToolResult{Tool: tool, Error: "Sorry, I can only execute safe read-only SQL queries."}, nil
	case err != nil:
		return ledgerError(tool, err, ""), nil
	}

	return contractx.ToolResult{
		Tool:   tool,
		Result: QueryOutput{Message: res.FormatRows(), Result: res},
	}, nil
}

func formatRestaurants(restaurants []booking.Restaurant) string {
	if len(restaurants) == 0 {
		return "No restaurants match your criteria."
	}
	var sb strings.Builder
	sb.WriteString("Recommended Restaurants:")
	for _, r := range restaurants {
		fmt.Fprintf(&sb, "\n- **%s**: %s, Rating: %.1f, Address: %s", r.Name, r.Cuisine, r.Rating, r.Address)
	}
	return sb.String()
}

func toolError(tool string, err error) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Error: err.Error()}
}

// ledgerError turns ledger sentinels into the sentences shown to customers.
// Storage details stay in the log.
func ledgerError(tool string, err error, restaurant string) contractx.ToolResult {
	var msg string
	switch {
	case errors.Is(err, booking.ErrNotFound) && restaurant != "" && tool == ToolMakeReservation:
		msg = fmt.Sprintf("Restaurant '%s' not found.", restaurant)
	case errors.Is(err, booking.ErrNotFound):
		msg = "Reservation not found."
	case errors.Is(err, booking.ErrCapacityExceeded) && tool == ToolMakeReservation:
		msg = fmt.Sprintf("Sorry, there are not enough spots available at %s. Would you like to check other options?", restaurant)
	case errors.Is(err, booking.ErrCapacityExceeded):
		msg = "The restaurant does not have enough capacity for the new party size."
	case errors.Is(err, booking.ErrValidation):
		msg = err.Error()
	default:
		log.Error().Err(err).Str("tool", tool).Msg("tool failed")
		msg = "Something went wrong while talking to the reservation system. Please try again."
	}
	return contractx.ToolResult{Tool: tool, Error: msg}
}
