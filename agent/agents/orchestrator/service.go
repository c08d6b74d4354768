package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
	"github.com/tanpawarit/foodiespot-agent/agent/intent"
	memoryx "github.com/tanpawarit/foodiespot-agent/agent/memory"
	nodex "github.com/tanpawarit/foodiespot-agent/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/foodiespot-agent/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
	ErrNoActiveGoal   = nodex.ErrNoActiveGoal
)

type Config struct {
	CustomerID   string
	Channel      string
	HistoryTurns int
	// Classifier produces the intent hint; KeywordClassifier when nil.
	Classifier intent.Classifier
}

type Orchestrator struct {
	store      statex.Store
	models     contractx.Registry
	tools      contractx.ToolGateway
	memory     contractx.MemoryStore
	classifier intent.Classifier

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	customerID   string
	channel      string
	historyTurns int

	now func() time.Time
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Text       string            `json:"reply"`
	GoalID     string            `json:"goal_id,omitempty"`
	GoalStatus statex.GoalStatus `json:"goal_status,omitempty"`
}

func New(
	store statex.Store,
	models contractx.Registry,
	tools contractx.ToolGateway,
	memory contractx.MemoryStore,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}
	if memory == nil {
		memory = memoryx.Noop{}
	}

	customerID := strings.TrimSpace(cfg.CustomerID)
	if customerID == "" {
		customerID = "default-customer"
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "chat"
	}
	historyTurns := cfg.HistoryTurns
	if historyTurns <= 0 {
		historyTurns = statex.DefaultHistoryTurns
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = intent.KeywordClassifier{}
	}

	o := &Orchestrator{
		store:        store,
		models:       models,
		tools:        tools,
		memory:       memory,
		classifier:   classifier,
		customerID:   customerID,
		channel:      channel,
		historyTurns: historyTurns,
		now:          time.Now,
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (string, error) {
	reply, err := o.Respond(ctx, sessionID, text)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// Respond runs one turn and reports which goal handled it.
func (o *Orchestrator) Respond(ctx context.Context, sessionID string, text string) (Reply, error) {
	started := o.now()
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("handle message failed")
		return Reply{}, err
	}
	log.Info().
		Str("session_id", sessionID).
		Str("goal_id", out.GoalID).
		Str("goal_status", string(out.Status)).
		Dur("took", o.now().Sub(started)).
		Msg("message handled")
	return Reply{Text: out.Reply, GoalID: out.GoalID, GoalStatus: out.Status}, nil
}

// Reset forgets the conversation so the next message starts fresh.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return ErrInvalidSession
	}
	if err := o.store.Delete(ctx, id); err != nil && !errors.Is(err, statex.ErrStateNotFound) {
		return err
	}
	log.Info().Str("session_id", id).Msg("session reset")
	return nil
}
