package state

import (
	"errors"
	"fmt"
	"time"
)

const DefaultHistoryTurns = 10

// SessionState is everything the assistant remembers about one conversation.
// Interleaving is tracked by ActiveGoalID + GoalStack + Goal.Status; slot
// dependencies by Goal.Missing + Goal.NextQuestion (status blocked).
type SessionState struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
	Channel    string `json:"channel"`
	Version    int64  `json:"version"`

	ActiveGoalID string           `json:"active_goal_id,omitempty"`
	GoalStack    []string         `json:"goal_stack,omitempty"` // LIFO
	Goals        map[string]*Goal `json:"goals,omitempty"`

	History []Turn `json:"history,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalBlocked   GoalStatus = "blocked"
	GoalSuspended GoalStatus = "suspended"
	GoalDone      GoalStatus = "done"
)

type Goal struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"` // booking.make_reservation, concierge.recommend_restaurant, ...
	Status       GoalStatus     `json:"status"`
	Priority     int            `json:"priority"`
	Slots        map[string]any `json:"slots,omitempty"`
	Missing      []string       `json:"missing,omitempty"`
	NextQuestion string         `json:"next_question,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

type Turn struct {
	Role TurnRole  `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

func (g *Goal) IsBlocked() bool {
	return g != nil && g.Status == GoalBlocked
}

func (g *Goal) IsDone() bool {
	return g != nil && g.Status == GoalDone
}

func (g *Goal) SetSlot(key string, val any) {
	if g.Slots == nil {
		g.Slots = make(map[string]any, 8)
	}
	g.Slots[key] = val
}

func (g *Goal) Slot(key string) (any, bool) {
	if g == nil || g.Slots == nil {
		return nil, false
	}
	v, ok := g.Slots[key]
	return v, ok
}

// SetMissing records the unfilled slots. A goal with missing slots becomes
// blocked; a blocked goal with nothing missing becomes active again. Done and
// suspended goals keep their status.
func (g *Goal) SetMissing(missing []string, nextQuestion string) {
	g.Missing = missing

	if g.Status == GoalDone || g.Status == GoalSuspended {
		if len(missing) == 0 {
			g.NextQuestion = ""
		} else {
			g.NextQuestion = nextQuestion
		}
		return
	}

	if len(missing) == 0 {
		if g.Status == GoalBlocked {
			g.Status = GoalActive
		}
		g.NextQuestion = ""
		return
	}

	g.Status = GoalBlocked
	g.NextQuestion = nextQuestion
}

// reactivate brings a suspended goal back, blocked again if it was still
// waiting on an answer.
func (g *Goal) reactivate() {
	if len(g.Missing) > 0 && g.NextQuestion != "" {
		g.Status = GoalBlocked
		return
	}
	g.Status = GoalActive
}

var (
	ErrNilGoalID         = errors.New("goal id is empty")
	ErrGoalNotFound      = errors.New("goal not found")
	ErrNoActiveGoal      = errors.New("no active goal")
	ErrStackCorrupt      = errors.New("goal stack corrupt")
	ErrInvalidTransition = errors.New("invalid goal transition")
	errNilState          = errors.New("nil session state")
)

func NewSessionState(sessionID, customerID, channel string, now time.Time) *SessionState {
	return &SessionState{
		SessionID:  sessionID,
		CustomerID: customerID,
		Channel:    channel,
		Goals:      make(map[string]*Goal, 4),
		UpdatedAt:  now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *SessionState) EnsureGoalsMap() {
	if s.Goals == nil {
		s.Goals = make(map[string]*Goal, 4)
	}
}

func (s *SessionState) ActiveGoal() *Goal {
	if s == nil || s.ActiveGoalID == "" || s.Goals == nil {
		return nil
	}
	return s.Goals[s.ActiveGoalID]
}

func (s *SessionState) GetGoal(goalID string) (*Goal, bool) {
	if s == nil || s.Goals == nil {
		return nil, false
	}
	g, ok := s.Goals[goalID]
	return g, ok
}

// AddGoal adds or replaces a goal.
func (s *SessionState) AddGoal(g *Goal) error {
	if s == nil {
		return errNilState
	}
	if g == nil || g.ID == "" {
		return ErrNilGoalID
	}
	s.EnsureGoalsMap()
	s.Goals[g.ID] = g
	return nil
}

// PushGoal pushes without touching statuses; prefer SuspendAndActivate.
func (s *SessionState) PushGoal(goalID string) error {
	if s == nil {
		return errNilState
	}
	if goalID == "" {
		return ErrNilGoalID
	}
	s.GoalStack = append(s.GoalStack, goalID)
	return nil
}

func (s *SessionState) PopGoal() (string, bool) {
	if s == nil || len(s.GoalStack) == 0 {
		return "", false
	}
	last := s.GoalStack[len(s.GoalStack)-1]
	s.GoalStack = s.GoalStack[:len(s.GoalStack)-1]
	return last, true
}

func (s *SessionState) PeekGoal() (string, bool) {
	if s == nil || len(s.GoalStack) == 0 {
		return "", false
	}
	return s.GoalStack[len(s.GoalStack)-1], true
}

// SetActiveGoal points ActiveGoalID at an existing goal and keeps it on top of
// the stack.
func (s *SessionState) SetActiveGoal(goalID string) error {
	if s == nil {
		return errNilState
	}
	if goalID == "" {
		return ErrNilGoalID
	}
	if _, ok := s.GetGoal(goalID); !ok {
		return fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	s.ActiveGoalID = goalID
	if len(s.GoalStack) == 0 {
		s.GoalStack = []string{goalID}
		return nil
	}
	top, _ := s.PeekGoal()
	if top != goalID {
		s.GoalStack = append(s.GoalStack, goalID)
	}
	return nil
}

// SuspendAndActivate suspends the current goal (unless done), pushes
// newGoalID and makes it active. A blocked goal stays blocked.
func (s *SessionState) SuspendAndActivate(newGoalID string, now time.Time) error {
	if s == nil {
		return errNilState
	}
	if newGoalID == "" {
		return ErrNilGoalID
	}
	newGoal, ok := s.GetGoal(newGoalID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrGoalNotFound, newGoalID)
	}
	if newGoal.Status == GoalDone {
		return fmt.Errorf("%w: cannot activate done goal %s", ErrInvalidTransition, newGoalID)
	}

	if cur := s.ActiveGoal(); cur != nil && cur.ID != newGoalID && cur.Status != GoalDone {
		cur.Status = GoalSuspended
		cur.UpdatedAt = now.UTC()
	}

	if newGoal.Status == "" || newGoal.Status == GoalSuspended {
		newGoal.reactivate()
	}
	newGoal.UpdatedAt = now.UTC()

	s.ActiveGoalID = newGoalID
	if top, ok := s.PeekGoal(); !ok || top != newGoalID {
		s.GoalStack = append(s.GoalStack, newGoalID)
	}
	s.Touch(now)
	return nil
}

// MarkGoalDone finishes a goal and, when it was active, resumes the previous
// one.
func (s *SessionState) MarkGoalDone(goalID string, now time.Time) error {
	if s == nil {
		return errNilState
	}
	if goalID == "" {
		return ErrNilGoalID
	}
	g, ok := s.GetGoal(goalID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	g.Status = GoalDone
	g.NextQuestion = ""
	g.Missing = nil
	g.UpdatedAt = now.UTC()

	if s.ActiveGoalID == goalID {
		_, _ = s.ResumePrevious(now)
	}
	s.Touch(now)
	return nil
}

// ResumePrevious pops the active goal off the stack and activates the new top
// if it was suspended. It returns the resumed goal id.
func (s *SessionState) ResumePrevious(now time.Time) (string, bool) {
	if s == nil || len(s.GoalStack) == 0 {
		return "", false
	}

	top, _ := s.PeekGoal()
	if s.ActiveGoalID != "" && top == s.ActiveGoalID {
		_, _ = s.PopGoal()
	}

	for {
		prevID, ok := s.PeekGoal()
		if !ok {
			s.ActiveGoalID = ""
			s.Touch(now)
			return "", false
		}
		prevGoal, ok := s.GetGoal(prevID)
		if !ok || prevGoal.Status == GoalDone {
			_, _ = s.PopGoal()
			continue
		}
		if prevGoal.Status == GoalSuspended {
			prevGoal.reactivate()
		}
		prevGoal.UpdatedAt = now.UTC()
		s.ActiveGoalID = prevID
		s.Touch(now)
		return prevID, true
	}
}

// PruneDone drops finished goals that are no longer referenced by the stack,
// so a completed reservation never leaks its slots into the next one.
func (s *SessionState) PruneDone() int {
	if s == nil || s.Goals == nil {
		return 0
	}
	onStack := make(map[string]bool, len(s.GoalStack))
	for _, id := range s.GoalStack {
		onStack[id] = true
	}
	pruned := 0
	for id, g := range s.Goals {
		if g.Status == GoalDone && !onStack[id] && id != s.ActiveGoalID {
			delete(s.Goals, id)
			pruned++
		}
	}
	return pruned
}

// Reset forgets every goal and the turn history, keeping the identity.
func (s *SessionState) Reset(now time.Time) {
	if s == nil {
		return
	}
	s.ActiveGoalID = ""
	s.GoalStack = nil
	s.Goals = make(map[string]*Goal, 4)
	s.History = nil
	s.Touch(now)
}

// AppendTurn records a message and keeps at most limit turns.
func (s *SessionState) AppendTurn(role TurnRole, text string, now time.Time, limit int) {
	if s == nil || text == "" {
		return
	}
	s.History = append(s.History, Turn{Role: role, Text: text, At: now.UTC()})
	if limit <= 0 {
		limit = DefaultHistoryTurns
	}
	if n := len(s.History); n > limit {
		s.History = append([]Turn(nil), s.History[n-limit:]...)
	}
}

func (s *SessionState) Validate() error {
	if s.Goals == nil {
		return nil
	}
	if s.ActiveGoalID != "" {
		if _, ok := s.Goals[s.ActiveGoalID]; !ok {
			return fmt.Errorf("%w: active_goal_id=%s", ErrGoalNotFound, s.ActiveGoalID)
		}
	}
	for _, id := range s.GoalStack {
		if _, ok := s.Goals[id]; !ok {
			return fmt.Errorf("%w: stack has missing goal_id=%s", ErrStackCorrupt, id)
		}
	}
	for _, g := range s.Goals {
		if g.Status == GoalBlocked && (len(g.Missing) == 0 || g.NextQuestion == "") {
			return fmt.Errorf("blocked goal %s must have missing and next_question", g.ID)
		}
	}
	return nil
}

func CreateGoal(id, goalType string, priority int, now time.Time) *Goal {
	return &Goal{
		ID:        id,
		Type:      goalType,
		Status:    GoalActive,
		Priority:  priority,
		Slots:     make(map[string]any, 8),
		UpdatedAt: now.UTC(),
	}
}
