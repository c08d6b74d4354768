package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
)

// turnMode tells a specialist prompt what kind of answer is expected.
type turnMode string

const (
	modeAct      turnMode = "act"
	modeAsk      turnMode = "ask"
	modeFinalize turnMode = "finalize"
)

// modeFor picks act when the goal can be executed right now, ask when a
// slot is still open and finalize once tool results are back.
func modeFor(req contractx.SpecialistRequest) turnMode {
	g := req.ActiveGoal
	switch {
	case g.IsBlocked() || len(g.Missing) > 0:
		return modeAsk
	case len(req.ToolResults) > 0:
		return modeFinalize
	default:
		return modeAct
	}
}

const (
	nodePrompt  = "prompt"
	nodeModel   = "model"
	nodeParse   = "parse_json"
	nodeRoute   = "route"
	nodeAct     = "act"
	nodeRespond = "respond"
)

// linkNodes wires START -> names... -> END in order.
func linkNodes[I, O any](g *compose.Graph[I, O], names ...string) error {
	path := append(append([]string{compose.START}, names...), compose.END)
	for i := 1; i < len(path); i++ {
		if err := g.AddEdge(path[i-1], path[i]); err != nil {
			return fmt.Errorf("add edge %s->%s: %w", path[i-1], path[i], err)
		}
	}
	return nil
}

// addPromptAndModel adds the system prompt template and the chat model. The
// user turn is the JSON payload rendered into {input}.
func addPromptAndModel[I, O any](g *compose.Graph[I, O], chatModel einomodel.BaseChatModel, systemPrompt string) error {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)
	if err := g.AddChatTemplateNode(nodePrompt, template); err != nil {
		return fmt.Errorf("add prompt node: %w", err)
	}
	if err := g.AddChatModelNode(nodeModel, chatModel); err != nil {
		return fmt.Errorf("add model node: %w", err)
	}
	return nil
}

// compileJSONGraph runs prompt -> model -> JSON parse into T.
func compileJSONGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	name string,
) (compose.Runnable[map[string]any, T], error) {
	g := compose.NewGraph[map[string]any, T]()
	if err := addPromptAndModel(g, chatModel, systemPrompt); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})
	if err := g.AddLambdaNode(nodeParse, compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("%s: add parse node: %w", name, err)
	}
	if err := linkNodes(g, nodePrompt, nodeModel, nodeParse); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return g.Compile(ctx, compose.WithGraphName(name))
}

// compileToolCallGraph returns the raw assistant message so tool calls can be
// read off it.
func compileToolCallGraph(
	ctx context.Context,
	toolModel einomodel.BaseChatModel,
	systemPrompt string,
	name string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	g := compose.NewGraph[map[string]any, *schema.Message]()
	if err := addPromptAndModel(g, toolModel, systemPrompt); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := linkNodes(g, nodePrompt, nodeModel); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return g.Compile(ctx, compose.WithGraphName(name))
}

type routedRequest struct {
	Req  contractx.SpecialistRequest
	Mode turnMode
}

type (
	actFlow     func(context.Context, contractx.SpecialistRequest) (contractx.SpecialistResponse, error)
	respondFlow func(context.Context, contractx.SpecialistRequest, turnMode) (contractx.SpecialistResponse, error)
)

// compileRuntimeGraph validates the request and branches on its turn mode:
// act goes to the tool calling model, ask and finalize to the JSON model.
func compileRuntimeGraph(
	ctx context.Context,
	agentType contractx.AgentType,
	act actFlow,
	respond respondFlow,
) (compose.Runnable[contractx.SpecialistRequest, contractx.SpecialistResponse], error) {
	g := compose.NewGraph[contractx.SpecialistRequest, contractx.SpecialistResponse]()

	route := func(_ context.Context, req contractx.SpecialistRequest) (*routedRequest, error) {
		if req.ActiveGoal == nil {
			return nil, fmt.Errorf("%w: active goal is required", contractx.ErrValidation)
		}
		if strings.TrimSpace(req.ActiveGoal.Type) == "" {
			return nil, fmt.Errorf("%w: active goal type is required", contractx.ErrValidation)
		}
		return &routedRequest{Req: req, Mode: modeFor(req)}, nil
	}
	if err := g.AddLambdaNode(nodeRoute, compose.InvokableLambda(route)); err != nil {
		return nil, fmt.Errorf("add route node: %w", err)
	}

	if err := g.AddLambdaNode(nodeAct, compose.InvokableLambda(
		func(ctx context.Context, in *routedRequest) (contractx.SpecialistResponse, error) {
			return act(ctx, in.Req)
		}),
	); err != nil {
		return nil, fmt.Errorf("add act node: %w", err)
	}
	if err := g.AddLambdaNode(nodeRespond, compose.InvokableLambda(
		func(ctx context.Context, in *routedRequest) (contractx.SpecialistResponse, error) {
			return respond(ctx, in.Req, in.Mode)
		}),
	); err != nil {
		return nil, fmt.Errorf("add respond node: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(_ context.Context, in *routedRequest) (string, error) {
			if in.Mode == modeAct {
				return nodeAct, nil
			}
			return nodeRespond, nil
		},
		map[string]bool{nodeAct: true, nodeRespond: true},
	)
	if err := g.AddBranch(nodeRoute, branch); err != nil {
		return nil, fmt.Errorf("add mode branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, nodeRoute},
		{nodeAct, compose.END},
		{nodeRespond, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", e[0], e[1], err)
		}
	}

	return g.Compile(ctx, compose.WithGraphName(string(agentType)+".runtime"))
}
