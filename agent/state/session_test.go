package state

import (
	"errors"
	"testing"
	"time"
)

func TestSuspendAndResume(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := NewSessionState("s1", "c1", "cli", now)

	book := CreateGoal("g-book", "booking.make_reservation", 50, now)
	recommend := CreateGoal("g-rec", "concierge.recommend_restaurant", 60, now)
	if err := st.AddGoal(book); err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}
	if err := st.AddGoal(recommend); err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}

	if err := st.SuspendAndActivate("g-book", now); err != nil {
		t.Fatalf("SuspendAndActivate() error = %v", err)
	}
	if err := st.SuspendAndActivate("g-rec", now); err != nil {
		t.Fatalf("SuspendAndActivate() error = %v", err)
	}
	if book.Status != GoalSuspended {
		t.Fatalf("booking goal status = %s, want suspended", book.Status)
	}
	if st.ActiveGoalID != "g-rec" || len(st.GoalStack) != 2 {
		t.Fatalf("unexpected stack: active=%s stack=%v", st.ActiveGoalID, st.GoalStack)
	}

	if err := st.MarkGoalDone("g-rec", now); err != nil {
		t.Fatalf("MarkGoalDone() error = %v", err)
	}
	if st.ActiveGoalID != "g-book" || book.Status != GoalActive {
		t.Fatalf("expected booking goal resumed, active=%s status=%s", st.ActiveGoalID, book.Status)
	}

	if n := st.PruneDone(); n != 1 {
		t.Fatalf("PruneDone() = %d, want 1", n)
	}
	if _, ok := st.GetGoal("g-rec"); ok {
		t.Fatal("done goal still present after prune")
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSuspendAndActivateRejectsDoneGoal(t *testing.T) {
	t.Parallel()

	now := time.Now()
	st := NewSessionState("s1", "c1", "cli", now)
	g := CreateGoal("g1", "booking.cancel_reservation", 50, now)
	g.Status = GoalDone
	_ = st.AddGoal(g)

	if err := st.SuspendAndActivate("g1", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := st.SuspendAndActivate("missing", now); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
}

func TestSetMissingBlocksAndUnblocks(t *testing.T) {
	t.Parallel()

	g := CreateGoal("g1", "booking.make_reservation", 50, time.Now())
	g.SetMissing([]string{"party_size"}, "How many people?")
	if !g.IsBlocked() || g.NextQuestion != "How many people?" {
		t.Fatalf("expected blocked goal, got %s %q", g.Status, g.NextQuestion)
	}
	g.SetMissing(nil, "")
	if g.Status != GoalActive || g.NextQuestion != "" {
		t.Fatalf("expected active goal, got %s %q", g.Status, g.NextQuestion)
	}

	g.Status = GoalDone
	g.SetMissing([]string{"date"}, "Which date?")
	if !g.IsDone() {
		t.Fatalf("done goal changed status to %s", g.Status)
	}
}

func TestValidateBlockedGoalNeedsQuestion(t *testing.T) {
	t.Parallel()

	now := time.Now()
	st := NewSessionState("s1", "c1", "cli", now)
	g := CreateGoal("g1", "booking.make_reservation", 50, now)
	g.Status = GoalBlocked
	_ = st.AddGoal(g)
	if err := st.Validate(); err == nil {
		t.Fatal("expected validation error for blocked goal without question")
	}

	st.GoalStack = []string{"ghost"}
	g.SetMissing([]string{"date"}, "Which date?")
	if err := st.Validate(); !errors.Is(err, ErrStackCorrupt) {
		t.Fatalf("expected ErrStackCorrupt, got %v", err)
	}
}

func TestResetAndHistory(t *testing.T) {
	t.Parallel()

	now := time.Now()
	st := NewSessionState("s1", "c1", "cli", now)
	for i := 0; i < 15; i++ {
		st.AppendTurn(RoleUser, "hello", now, 4)
	}
	st.AppendTurn(RoleAssistant, "", now, 4)
	if len(st.History) != 4 {
		t.Fatalf("history length = %d, want 4", len(st.History))
	}

	_ = st.AddGoal(CreateGoal("g1", "booking.make_reservation", 50, now))
	_ = st.SetActiveGoal("g1")
	st.Reset(now)
	if st.ActiveGoalID != "" || len(st.Goals) != 0 || len(st.GoalStack) != 0 || len(st.History) != 0 {
		t.Fatalf("Reset() left state behind: %#v", st)
	}
	if st.SessionID != "s1" || st.CustomerID != "c1" {
		t.Fatal("Reset() dropped identity")
	}
}

func TestResumeSkipsDoneGoals(t *testing.T) {
	t.Parallel()

	now := time.Now()
	st := NewSessionState("s1", "c1", "cli", now)
	a := CreateGoal("a", "booking.make_reservation", 50, now)
	b := CreateGoal("b", "concierge.general_query", 40, now)
	c := CreateGoal("c", "booking.reservation_details", 50, now)
	for _, g := range []*Goal{a, b, c} {
		_ = st.AddGoal(g)
	}
	_ = st.SuspendAndActivate("a", now)
	_ = st.SuspendAndActivate("b", now)
	_ = st.SuspendAndActivate("c", now)

	b.Status = GoalDone
	if err := st.MarkGoalDone("c", now); err != nil {
		t.Fatalf("MarkGoalDone() error = %v", err)
	}
	if st.ActiveGoalID != "a" {
		t.Fatalf("active = %q, want a", st.ActiveGoalID)
	}
}

func TestResumePreviousRestoresBlockedGoal(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := NewSessionState("s1", "c1", "chat", now)

	booking := CreateGoal("g_book", "booking.make_reservation", 50, now)
	booking.SetMissing([]string{"party_size"}, "How many people will be in your party?")
	recommend := CreateGoal("g_rec", "concierge.recommend_restaurant", 40, now)
	for _, g := range []*Goal{booking, recommend} {
		if err := st.AddGoal(g); err != nil {
			t.Fatalf("AddGoal(%s) error = %v", g.ID, err)
		}
	}
	if err := st.SetActiveGoal(booking.ID); err != nil {
		t.Fatalf("SetActiveGoal() error = %v", err)
	}
	if err := st.SuspendAndActivate(recommend.ID, now); err != nil {
		t.Fatalf("SuspendAndActivate() error = %v", err)
	}
	if booking.Status != GoalSuspended {
		t.Fatalf("booking status = %s, want suspended", booking.Status)
	}

	if err := st.MarkGoalDone(recommend.ID, now); err != nil {
		t.Fatalf("MarkGoalDone() error = %v", err)
	}
	if st.ActiveGoalID != booking.ID {
		t.Fatalf("active = %s, want %s", st.ActiveGoalID, booking.ID)
	}
	if !booking.IsBlocked() {
		t.Fatalf("booking status = %s, want blocked", booking.Status)
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
