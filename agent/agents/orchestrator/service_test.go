package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

type fakeStore struct {
	loadState *statex.SessionState
	loadErr   error
	saveErr   error
	deleteErr error
	saved     []*statex.SessionState
	deleted   []string
}

func (f *fakeStore) Load(ctx context.Context, sessionID string) (*statex.SessionState, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.loadState == nil {
		return nil, statex.ErrStateNotFound
	}
	return cloneSessionState(f.loadState), nil
}

func (f *fakeStore) Save(ctx context.Context, st *statex.SessionState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cloneSessionState(st))
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, sessionID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, sessionID)
	return nil
}

// last returns the most recently saved state.
func (f *fakeStore) last(t *testing.T) *statex.SessionState {
	t.Helper()
	if len(f.saved) == 0 {
		t.Fatal("no state saved")
	}
	return f.saved[len(f.saved)-1]
}

type memoryWrite struct {
	customerID string
	update     string
}

type fakeMemory struct {
	summary  string
	readErr  error
	writeErr error
	writes   []memoryWrite
}

func (f *fakeMemory) ReadSummary(ctx context.Context, customerID string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.summary, nil
}

func (f *fakeMemory) WriteSummary(ctx context.Context, customerID string, update string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, memoryWrite{customerID: customerID, update: update})
	return nil
}

type fakePlanner struct {
	resp  contractx.PlannerResponse
	err   error
	calls int
	reqs  []contractx.PlannerRequest
}

func (f *fakePlanner) Plan(ctx context.Context, req contractx.PlannerRequest) (contractx.PlannerResponse, error) {
	f.calls++
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return contractx.PlannerResponse{}, f.err
	}
	return f.resp, nil
}

type fakeSpecialist struct {
	responses []contractx.SpecialistResponse
	err       error
	calls     int
	lastReqs  []contractx.SpecialistRequest
}

func (f *fakeSpecialist) Run(ctx context.Context, req contractx.SpecialistRequest) (contractx.SpecialistResponse, error) {
	f.calls++
	f.lastReqs = append(f.lastReqs, req)
	if f.err != nil {
		return contractx.SpecialistResponse{}, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		return contractx.SpecialistResponse{}, fmt.Errorf("no specialist response left at call=%d", f.calls)
	}
	return f.responses[idx], nil
}

type toolCallRecord struct {
	agentType string
	reqs      []contractx.ToolRequest
}

type fakeTools struct {
	results []contractx.ToolResult
	err     error
	calls   []toolCallRecord
}

func (f *fakeTools) Execute(ctx context.Context, agentType string, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	f.calls = append(f.calls, toolCallRecord{
		agentType: agentType,
		reqs:      append([]contractx.ToolRequest(nil), reqs...),
	})
	if f.err != nil {
		return nil, f.err
	}
	return append([]contractx.ToolResult(nil), f.results...), nil
}

type fakeRegistry struct {
	planner   contractx.Planner
	booking   contractx.Specialist
	concierge contractx.Specialist
}

func (f *fakeRegistry) Planner() contractx.Planner {
	return f.planner
}

func (f *fakeRegistry) Booking() contractx.Specialist {
	return f.booking
}

func (f *fakeRegistry) Concierge() contractx.Specialist {
	return f.concierge
}

func planFor(in intent.Intent, slots map[string]any) *fakePlanner {
	return &fakePlanner{
		resp: contractx.PlannerResponse{
			Goal: contractx.GoalPatch{
				GoalType:   in.GoalType(),
				Priority:   in.Priority(),
				SlotsPatch: slots,
			},
		},
	}
}

func fullReservationSlots() map[string]any {
	return map[string]any{
		intent.SlotRestaurantName: "Pasta Place",
		intent.SlotDate:           "02-03-2026",
		intent.SlotTime:           "19:00",
		intent.SlotPartySize:      4,
		intent.SlotCustomerName:   "Ana",
	}
}

func TestHandleMessageInvalidInput(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t,
		&fakeStore{},
		&fakeRegistry{
			planner:   &fakePlanner{},
			booking:   &fakeSpecialist{},
			concierge: &fakeSpecialist{},
		},
		&fakeTools{},
		&fakeMemory{},
	)

	_, err := o.HandleMessage(context.Background(), "   ", "hello")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	_, err = o.HandleMessage(context.Background(), "s1", "    ")
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{planner: &fakePlanner{}, booking: &fakeSpecialist{}, concierge: &fakeSpecialist{}}
	if _, err := New(nil, registry, &fakeTools{}, nil, Config{}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New(&fakeStore{}, nil, &fakeTools{}, nil, Config{}); err == nil {
		t.Fatal("expected error without registry")
	}
	if _, err := New(&fakeStore{}, registry, nil, nil, Config{}); err == nil {
		t.Fatal("expected error without tools")
	}
	if _, err := New(&fakeStore{}, registry, &fakeTools{}, nil, Config{}); err != nil {
		t.Fatalf("nil memory should fall back to noop, got %v", err)
	}
}

func TestHandleMessageNoToolPath(t *testing.T) {
	t.Parallel()

	store := &fakeStore{loadErr: statex.ErrStateNotFound}
	planner := planFor(intent.RecommendRestaurant, map[string]any{intent.SlotCuisine: "Italian"})
	concierge := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{
			{
				Message: "Pasta Place is a lovely Italian spot.",
				StateUpdates: contractx.StateUpdates{
					SetStatus:    string(statex.GoalActive),
					MemoryUpdate: "likes Italian food",
				},
			},
		},
	}
	booking := &fakeSpecialist{}
	memory := &fakeMemory{summary: "vegetarian"}
	tools := &fakeTools{}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner:   planner,
			booking:   booking,
			concierge: concierge,
		},
		tools,
		memory,
	)

	reply, err := o.HandleMessage(context.Background(), "session-1", "Can you recommend an Italian place?")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply != "Pasta Place is a lovely Italian spot." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if planner.calls != 1 {
		t.Fatalf("expected planner called once, got %d", planner.calls)
	}
	if planner.reqs[0].Hint.Intent != intent.RecommendRestaurant {
		t.Fatalf("unexpected hint %s", planner.reqs[0].Hint.Intent)
	}
	if planner.reqs[0].MemorySummary != "vegetarian" {
		t.Fatalf("memory summary not passed: %q", planner.reqs[0].MemorySummary)
	}
	if concierge.calls != 1 || booking.calls != 0 {
		t.Fatalf("expected concierge only, got concierge=%d booking=%d", concierge.calls, booking.calls)
	}
	if len(tools.calls) != 0 {
		t.Fatalf("expected no tool calls, got %d", len(tools.calls))
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(store.saved))
	}
	saved := store.last(t)
	if len(saved.History) != 2 || saved.History[0].Role != statex.RoleUser || saved.History[1].Text != reply {
		t.Fatalf("unexpected history %#v", saved.History)
	}
	if len(memory.writes) != 1 || memory.writes[0].update != "likes Italian food" {
		t.Fatalf("unexpected memory writes %#v", memory.writes)
	}
	if memory.writes[0].customerID != "default-customer" {
		t.Fatalf("unexpected customer id %q", memory.writes[0].customerID)
	}
}

func TestHandleMessageToolPathCompletesReservation(t *testing.T) {
	t.Parallel()

	store := &fakeStore{loadErr: statex.ErrStateNotFound}
	booking := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{
			{
				ToolRequests: []contractx.ToolRequest{
					{Tool: "make_reservation", Args: fullReservationSlots()},
				},
			},
			{Message: "You're all set at Pasta Place. Reservation ID: 1"},
		},
	}
	tools := &fakeTools{
		results: []contractx.ToolResult{
			{Tool: "make_reservation", Result: map[string]any{"message": "Reservation ID: 1"}},
		},
	}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner:   planFor(intent.MakeReservation, fullReservationSlots()),
			booking:   booking,
			concierge: &fakeSpecialist{},
		},
		tools,
		&fakeMemory{},
	)

	reply, err := o.Respond(context.Background(), "session-2", "Book Pasta Place tomorrow at 7pm for 4, name Ana")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Text != "You're all set at Pasta Place. Reservation ID: 1" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if reply.GoalStatus != statex.GoalDone {
		t.Fatalf("expected goal done, got %s", reply.GoalStatus)
	}
	if booking.calls != 2 {
		t.Fatalf("expected booking specialist called twice, got %d", booking.calls)
	}
	if len(booking.lastReqs[1].ToolResults) != 1 {
		t.Fatalf("expected tool results fed back, got %#v", booking.lastReqs[1].ToolResults)
	}
	if len(tools.calls) != 1 {
		t.Fatalf("expected one tool execution, got %d", len(tools.calls))
	}
	if tools.calls[0].agentType != string(contractx.AgentTypeBooking) {
		t.Fatalf("unexpected tool agent type: %s", tools.calls[0].agentType)
	}

	saved := store.last(t)
	if saved.ActiveGoalID != "" || len(saved.GoalStack) != 0 {
		t.Fatalf("expected empty stack after completion, got active=%q stack=%v", saved.ActiveGoalID, saved.GoalStack)
	}
	if len(saved.Goals) != 0 {
		t.Fatalf("finished goal should be pruned, got %v", saved.Goals)
	}
}

func TestHandleMessageRefusesSecondMutation(t *testing.T) {
	t.Parallel()

	booking := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{
			{
				ToolRequests: []contractx.ToolRequest{
					{Tool: "make_reservation", Args: fullReservationSlots()},
					{Tool: "make_reservation", Args: fullReservationSlots()},
				},
			},
			{Message: "Booked once. Reservation ID: 1"},
		},
	}
	tools := &fakeTools{
		results: []contractx.ToolResult{
			{Tool: "make_reservation", Result: "ok"},
		},
	}

	o := newTestOrchestrator(t,
		&fakeStore{loadErr: statex.ErrStateNotFound},
		&fakeRegistry{
			planner:   planFor(intent.MakeReservation, fullReservationSlots()),
			booking:   booking,
			concierge: &fakeSpecialist{},
		},
		tools,
		&fakeMemory{},
	)

	if _, err := o.HandleMessage(context.Background(), "session-3", "book twice"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(tools.calls) != 1 || len(tools.calls[0].reqs) != 1 {
		t.Fatalf("expected a single mutation executed, got %#v", tools.calls)
	}
	results := booking.lastReqs[1].ToolResults
	if len(results) != 2 {
		t.Fatalf("expected executed and refused results, got %#v", results)
	}
	if results[1].Error == "" {
		t.Fatalf("second mutation should be refused, got %#v", results[1])
	}
}

func TestHandleMessageToolLoopBounded(t *testing.T) {
	t.Parallel()

	call := contractx.SpecialistResponse{
		ToolRequests: []contractx.ToolRequest{{Tool: "get_reservation_details", Args: map[string]any{"reservation_id": 1}}},
	}
	booking := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{call, call, call, call, call},
	}

	o := newTestOrchestrator(t,
		&fakeStore{loadErr: statex.ErrStateNotFound},
		&fakeRegistry{
			planner:   planFor(intent.ReservationDetails, map[string]any{intent.SlotReservationID: 1}),
			booking:   booking,
			concierge: &fakeSpecialist{},
		},
		&fakeTools{results: []contractx.ToolResult{{Tool: "get_reservation_details", Error: "Reservation not found."}}},
		&fakeMemory{},
	)

	_, err := o.HandleMessage(context.Background(), "session-loop", "details of reservation 1")
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestHandleMessageEmptySpecialistMessage(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t,
		&fakeStore{loadErr: statex.ErrStateNotFound},
		&fakeRegistry{
			planner: planFor(intent.GeneralQuery, nil),
			concierge: &fakeSpecialist{
				responses: []contractx.SpecialistResponse{
					{Message: "   "},
				},
			},
			booking: &fakeSpecialist{},
		},
		&fakeTools{},
		&fakeMemory{},
	)

	_, err := o.HandleMessage(context.Background(), "session-4", "hello")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "specialist returned empty message") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestHandleMessageAsksForMissingSlotThenUsesHint(t *testing.T) {
	t.Parallel()

	store := &fakeStore{loadErr: statex.ErrStateNotFound}
	planner := planFor(intent.MakeReservation, map[string]any{
		intent.SlotRestaurantName: "Pasta Place",
		intent.SlotDate:           "02-03-2026",
		intent.SlotPartySize:      2,
		intent.SlotCustomerName:   "Ana",
	})
	booking := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{
			{Message: "What time would you like to make the reservation?"},
			{Message: "Great, booking 19:00."},
		},
	}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{planner: planner, booking: booking, concierge: &fakeSpecialist{}},
		&fakeTools{},
		&fakeMemory{},
	)

	if _, err := o.HandleMessage(context.Background(), "session-5", "I want to book Pasta Place"); err != nil {
		t.Fatalf("first turn error = %v", err)
	}
	first := store.last(t)
	goal := first.ActiveGoal()
	if goal == nil || goal.Status != statex.GoalBlocked {
		t.Fatalf("expected blocked goal, got %#v", goal)
	}
	if len(goal.Missing) != 1 || goal.Missing[0] != intent.SlotTime {
		t.Fatalf("unexpected missing %v", goal.Missing)
	}
	if !booking.lastReqs[0].ActiveGoal.IsBlocked() {
		t.Fatal("specialist should see the blocked goal")
	}

	// The bare answer carries no intent words; the hint follows the blocked goal.
	store.loadErr = nil
	store.loadState = first
	planner.resp = contractx.PlannerResponse{
		Goal: contractx.GoalPatch{GoalType: intent.MakeReservation.GoalType()},
	}
	if _, err := o.HandleMessage(context.Background(), "session-5", "7pm"); err != nil {
		t.Fatalf("second turn error = %v", err)
	}
	if planner.reqs[1].Hint.Intent != intent.MakeReservation {
		t.Fatalf("expected hint to follow blocked goal, got %s", planner.reqs[1].Hint.Intent)
	}
	if len(planner.reqs[1].History) != 2 {
		t.Fatalf("expected previous turns in planner request, got %d", len(planner.reqs[1].History))
	}

	second := store.last(t)
	updated := second.Goals[goal.ID]
	if updated == nil {
		t.Fatalf("goal %s disappeared", goal.ID)
	}
	if updated.Slots[intent.SlotTime] != "19:00" {
		t.Fatalf("expected time from hint, got %#v", updated.Slots)
	}
	if updated.Status != statex.GoalActive || len(updated.Missing) != 0 {
		t.Fatalf("expected active goal with nothing missing, got %s %v", updated.Status, updated.Missing)
	}
}

func TestHandleMessageInterleavesAndResumesBlockedGoal(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st := statex.NewSessionState("session-6", "customer", "chat", now)
	booked := statex.CreateGoal("make_reservation_1", intent.MakeReservation.GoalType(), 50, now)
	booked.SetSlot(intent.SlotRestaurantName, "Pasta Place")
	booked.SetMissing([]string{intent.SlotDate}, "For what date would you like to make the reservation?")
	if err := st.AddGoal(booked); err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}
	if err := st.SetActiveGoal(booked.ID); err != nil {
		t.Fatalf("SetActiveGoal() error = %v", err)
	}

	store := &fakeStore{loadState: st}
	concierge := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{
			{
				Message:      "Sakura Sushi is rated 4.8.",
				StateUpdates: contractx.StateUpdates{SetStatus: string(statex.GoalDone)},
			},
		},
	}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner:   planFor(intent.RecommendRestaurant, nil),
			booking:   &fakeSpecialist{},
			concierge: concierge,
		},
		&fakeTools{},
		&fakeMemory{},
	)

	if _, err := o.HandleMessage(context.Background(), "session-6", "actually, can you recommend a sushi place?"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if concierge.calls != 1 {
		t.Fatalf("expected concierge called once, got %d", concierge.calls)
	}

	saved := store.last(t)
	if saved.ActiveGoalID != booked.ID {
		t.Fatalf("expected reservation goal resumed, got %q", saved.ActiveGoalID)
	}
	resumed := saved.Goals[booked.ID]
	if resumed.Status != statex.GoalBlocked || resumed.NextQuestion == "" {
		t.Fatalf("resumed goal should still wait for its answer, got %s %q", resumed.Status, resumed.NextQuestion)
	}
	if len(saved.Goals) != 1 {
		t.Fatalf("recommendation goal should be pruned, got %d goals", len(saved.Goals))
	}
}

func TestHandleMessageMarkDoneResumesPreviousGoal(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	st := statex.NewSessionState("session-7", "customer", "chat", now)

	prev := statex.CreateGoal("g_prev", intent.RecommendRestaurant.GoalType(), 40, now)
	prev.Status = statex.GoalSuspended

	active := statex.CreateGoal("g_active", intent.ReservationDetails.GoalType(), 45, now)
	active.SetSlot(intent.SlotReservationID, 7)
	active.Status = statex.GoalActive

	if err := st.AddGoal(prev); err != nil {
		t.Fatalf("AddGoal(prev) error = %v", err)
	}
	if err := st.AddGoal(active); err != nil {
		t.Fatalf("AddGoal(active) error = %v", err)
	}
	st.ActiveGoalID = active.ID
	st.GoalStack = []string{prev.ID, active.ID}

	store := &fakeStore{loadState: st}
	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Goal: contractx.GoalPatch{
				GoalID:   "g_active",
				GoalType: intent.ReservationDetails.GoalType(),
				Priority: 45,
			},
		},
	}
	booking := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{
			{
				Message: "Anything else?",
				StateUpdates: contractx.StateUpdates{
					SetStatus: string(statex.GoalDone),
				},
			},
		},
	}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner:   planner,
			booking:   booking,
			concierge: &fakeSpecialist{},
		},
		&fakeTools{},
		&fakeMemory{},
	)

	reply, err := o.HandleMessage(context.Background(), "session-7", "thanks")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply != "Anything else?" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(store.saved))
	}

	saved := store.saved[0]
	if _, ok := saved.Goals["g_active"]; ok {
		t.Fatal("expected finished g_active to be pruned")
	}
	if saved.ActiveGoalID != "g_prev" {
		t.Fatalf("expected active goal switched to g_prev, got %s", saved.ActiveGoalID)
	}
	if saved.Goals["g_prev"].Status != statex.GoalActive {
		t.Fatalf("expected g_prev active, got %s", saved.Goals["g_prev"].Status)
	}
}

func TestHandleMessageSaveErrorPropagates(t *testing.T) {
	t.Parallel()

	saveErr := errors.New("save failed")
	store := &fakeStore{
		loadErr: statex.ErrStateNotFound,
		saveErr: saveErr,
	}
	memory := &fakeMemory{}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner: planFor(intent.GeneralQuery, nil),
			concierge: &fakeSpecialist{
				responses: []contractx.SpecialistResponse{
					{Message: "ok"},
				},
			},
			booking: &fakeSpecialist{},
		},
		&fakeTools{},
		memory,
	)

	_, err := o.HandleMessage(context.Background(), "session-8", "hello")
	if !errors.Is(err, saveErr) {
		t.Fatalf("expected save error, got %v", err)
	}
	if len(memory.writes) != 0 {
		t.Fatalf("memory write must not be called on save error, got %d", len(memory.writes))
	}
}

func TestHandleMessageSaveErrorAfterReservationStillReplies(t *testing.T) {
	t.Parallel()

	store := &fakeStore{loadErr: statex.ErrStateNotFound, saveErr: errors.New("redis down")}
	memory := &fakeMemory{}
	booking := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{
			{ToolRequests: []contractx.ToolRequest{{Tool: "make_reservation", Args: fullReservationSlots()}}},
			{
				Message:      "You're all set at Pasta Place. Reservation ID: 1",
				StateUpdates: contractx.StateUpdates{MemoryUpdate: "books Pasta Place"},
			},
		},
	}
	tools := &fakeTools{
		results: []contractx.ToolResult{
			{Tool: "make_reservation", Result: map[string]any{"message": "Reservation ID: 1"}},
		},
	}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner:   planFor(intent.MakeReservation, fullReservationSlots()),
			booking:   booking,
			concierge: &fakeSpecialist{},
		},
		tools,
		memory,
	)

	reply, err := o.Respond(context.Background(), "session-11", "Book Pasta Place tomorrow at 7pm for 4, name Ana")
	if err != nil {
		t.Fatalf("Respond() error = %v, committed reservation must still be reported", err)
	}
	if !strings.Contains(reply.Text, "Reservation ID: 1") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if reply.GoalStatus != statex.GoalDone {
		t.Fatalf("expected goal done, got %s", reply.GoalStatus)
	}
	if len(tools.calls) != 1 {
		t.Fatalf("expected exactly one ledger call, got %d", len(tools.calls))
	}
	if len(memory.writes) != 1 {
		t.Fatalf("memory should still be written, got %d writes", len(memory.writes))
	}
}

func TestHandleMessageSaveErrorAfterFailedReservationPropagates(t *testing.T) {
	t.Parallel()

	saveErr := errors.New("redis down")
	store := &fakeStore{loadErr: statex.ErrStateNotFound, saveErr: saveErr}
	booking := &fakeSpecialist{
		responses: []contractx.SpecialistResponse{
			{ToolRequests: []contractx.ToolRequest{{Tool: "make_reservation", Args: fullReservationSlots()}}},
			{Message: "Sorry, Pasta Place is full."},
		},
	}
	tools := &fakeTools{
		results: []contractx.ToolResult{
			{Tool: "make_reservation", Error: "Sorry, there are not enough spots available at Pasta Place."},
		},
	}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner:   planFor(intent.MakeReservation, fullReservationSlots()),
			booking:   booking,
			concierge: &fakeSpecialist{},
		},
		tools,
		&fakeMemory{},
	)

	if _, err := o.Respond(context.Background(), "session-12", "Book Pasta Place for 4"); !errors.Is(err, saveErr) {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestHandleMessageSkipsEmptyMemoryUpdate(t *testing.T) {
	t.Parallel()

	memory := &fakeMemory{}
	o := newTestOrchestrator(t,
		&fakeStore{loadErr: statex.ErrStateNotFound},
		&fakeRegistry{
			planner: planFor(intent.GeneralQuery, nil),
			concierge: &fakeSpecialist{
				responses: []contractx.SpecialistResponse{{Message: "We open at noon."}},
			},
			booking: &fakeSpecialist{},
		},
		&fakeTools{},
		memory,
	)

	if _, err := o.HandleMessage(context.Background(), "session-10", "when do you open?"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(memory.writes) != 0 {
		t.Fatalf("expected no memory writes, got %#v", memory.writes)
	}
}

func TestHandleMessageWriteMemoryErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	memory := &fakeMemory{writeErr: errors.New("write memory failed")}
	store := &fakeStore{loadErr: statex.ErrStateNotFound}

	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner: planFor(intent.GeneralQuery, nil),
			concierge: &fakeSpecialist{
				responses: []contractx.SpecialistResponse{
					{Message: "ok", StateUpdates: contractx.StateUpdates{MemoryUpdate: "prefers window seats"}},
				},
			},
			booking: &fakeSpecialist{},
		},
		&fakeTools{},
		memory,
	)

	reply, err := o.HandleMessage(context.Background(), "session-9", "hello")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply != "ok" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected state saved, got %d", len(store.saved))
	}
}

func TestHandleMessagePlannerUnknownGoalType(t *testing.T) {
	t.Parallel()

	store := &fakeStore{loadErr: statex.ErrStateNotFound}
	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{
			planner: &fakePlanner{
				resp: contractx.PlannerResponse{Goal: contractx.GoalPatch{GoalType: "sales.recommend_item", Priority: 50}},
			},
			booking:   &fakeSpecialist{},
			concierge: &fakeSpecialist{},
		},
		&fakeTools{},
		&fakeMemory{},
	)

	_, err := o.HandleMessage(context.Background(), "session-10", "hello")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("nothing should be saved, got %d", len(store.saved))
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	o := newTestOrchestrator(t,
		store,
		&fakeRegistry{planner: &fakePlanner{}, booking: &fakeSpecialist{}, concierge: &fakeSpecialist{}},
		&fakeTools{},
		&fakeMemory{},
	)

	if err := o.Reset(context.Background(), " session-11 "); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "session-11" {
		t.Fatalf("unexpected deletes %v", store.deleted)
	}
	if err := o.Reset(context.Background(), ""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	store.deleteErr = statex.ErrStateNotFound
	if err := o.Reset(context.Background(), "unknown"); err != nil {
		t.Fatalf("missing session should reset cleanly, got %v", err)
	}
	store.deleteErr = errors.New("redis down")
	if err := o.Reset(context.Background(), "session-11"); err == nil {
		t.Fatal("expected delete error")
	}
}

func newTestOrchestrator(
	t *testing.T,
	store statex.Store,
	registry contractx.Registry,
	tools contractx.ToolGateway,
	memory contractx.MemoryStore,
) *Orchestrator {
	t.Helper()
	o, err := New(store, registry, tools, memory, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func cloneSessionState(in *statex.SessionState) *statex.SessionState {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}
	var out statex.SessionState
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	out.EnsureGoalsMap()
	return &out
}
