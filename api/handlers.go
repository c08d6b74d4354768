package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	orchestrator "github.com/tanpawarit/foodiespot-agent/agent/agents/orchestrator"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	"github.com/tanpawarit/foodiespot-agent/booking"
)

const defaultTopLimit = 3

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	orchestrator.Reply
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// postChat runs one conversation turn. A missing session_id starts a new
// session.
func (s *Server) postChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply, err := s.chat.Respond(c.Request().Context(), sessionID, req.Text)
	switch {
	case errors.Is(err, orchestrator.ErrInvalidMessage), errors.Is(err, orchestrator.ErrInvalidSession):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to handle message"})
	}
	return c.JSON(http.StatusOK, chatResponse{SessionID: sessionID, Reply: reply})
}

func (s *Server) deleteChat(c echo.Context) error {
	if err := s.chat.Reset(c.Request().Context(), c.Param("session")); err != nil {
		if errors.Is(err, orchestrator.ErrInvalidSession) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		log.Error().Err(err).Str("session_id", c.Param("session")).Msg("reset session failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reset session"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listRestaurants(c echo.Context) error {
	var filter booking.RecommendFilter
	filter.Cuisine = strings.TrimSpace(c.QueryParam("cuisine"))
	filter.Address = strings.TrimSpace(c.QueryParam("address"))
	if v := c.QueryParam("party_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party_size"})
		}
		filter.PartySize = n
	}
	if v := c.QueryParam("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid min_rating"})
		}
		filter.MinRating = f
	}

	restaurants, err := s.ledger.Recommend(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"restaurants": nonNil(restaurants)})
}

func (s *Server) topRestaurants(c echo.Context) error {
	limit := defaultTopLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	restaurants, err := s.ledger.TopRestaurants(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"restaurants": nonNil(restaurants)})
}

func (s *Server) createReservation(c echo.Context) error {
	var req booking.CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Date = s.normalizeDate(req.Date)
	req.Time = normalizeTime(req.Time)

	b, err := s.ledger.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": b.Confirmation(), "reservation": b})
}

func (s *Server) getReservation(c echo.Context) error {
	id, ok := reservationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	b, err := s.ledger.ReservationDetails(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": b})
}

func (s *Server) modifyReservation(c echo.Context) error {
	id, ok := reservationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var changes booking.Changes
	if err := c.Bind(&changes); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if changes.Date != nil {
		d := s.normalizeDate(*changes.Date)
		changes.Date = &d
	}
	if changes.Time != nil {
		t := normalizeTime(*changes.Time)
		changes.Time = &t
	}

	b, err := s.ledger.ModifyReservation(c.Request().Context(), id, changes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": b})
}

func (s *Server) cancelReservation(c echo.Context) error {
	id, ok := reservationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	b, err := s.ledger.CancelReservation(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": b})
}

func (s *Server) postQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := s.query.Execute(c.Request().Context(), req.Query)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func reservationID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// normalizeDate accepts the same spellings as the chat tools. Anything it
// cannot read is passed through so the ledger reports the validation error.
func (s *Server) normalizeDate(raw string) string {
	if d, err := intent.NormalizeDate(raw, s.now()); err == nil {
		return d
	}
	return raw
}

func normalizeTime(raw string) string {
	if t, err := intent.NormalizeTime(raw); err == nil {
		return t
	}
	return raw
}

func nonNil(rs []booking.Restaurant) []booking.Restaurant {
	if rs == nil {
		return []booking.Restaurant{}
	}
	return rs
}

func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrValidation), errors.Is(err, booking.ErrUnsafeQuery):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
