package tools

import (
	"context"
	"fmt"
	"time"

	"webagent/domain/entities"

	"github.com/sirupsen/logrus"
)

// State is the per-run mutable state the agent threads through tool calls.
type State struct {
	// Annotation of the most recent observation; click targets resolve
	// against it.
	Annotation *entities.Annotation

	FinalAnswer string
	Answered    bool
}

// Handler executes one tool call against the run state.
type Handler func(ctx context.Context, st *State, args map[string]interface{}) (map[string]interface{}, error)

// Tool pairs a capability schema with its handler.
type Tool struct {
	Schema  entities.ToolSchema
	Handler Handler
}

// Registry is the static table of capabilities exposed to the model. It is
// built once at startup; subset filtering happens by explicit lookup, never
// by introspection.
type Registry struct {
	order        []string
	tools        map[string]Tool
	logger       *logrus.Logger
	waitInterval time.Duration
	settlePause  time.Duration
}

const (
	ToolAnswerUserQuery = "answer_user_query"
	ToolWait            = "wait"
	ToolClickWebElement = "click_web_element"
)

// Defaults for the wait tool and the post-click settle pause.
const (
	defaultWaitInterval = 5 * time.Second
	clickSettlePause    = 2 * time.Second
)

// Option adjusts registry timing.
type Option func(*Registry)

// WithWaitInterval sets the pause of the wait tool.
func WithWaitInterval(d time.Duration) Option {
	return func(r *Registry) { r.waitInterval = d }
}

// WithSettlePause sets the pause after a successful click.
func WithSettlePause(d time.Duration) Option {
	return func(r *Registry) { r.settlePause = d }
}

// NewRegistry - builds the full tool table
func NewRegistry(logger *logrus.Logger, opts ...Option) *Registry {
	r := &Registry{
		tools:        make(map[string]Tool),
		logger:       logger,
		waitInterval: defaultWaitInterval,
		settlePause:  clickSettlePause,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.register(Tool{
		Schema: entities.ToolSchema{
			Name:        ToolAnswerUserQuery,
			Description: "Answer the original user query. Use this tool once you have completed all necessary steps to confidently answer the user's original instructions. The interaction ends after this tool is used.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"answer": map[string]interface{}{
						"type":        "string",
						"description": "The answer to the user's original query",
					},
				},
				"required": []string{"answer"},
			},
		},
		Handler: r.answerHandler,
	})

	r.register(Tool{
		Schema: entities.ToolSchema{
			Name:        ToolWait,
			Description: "Wait for a period of time. Use this tool when you need to wait for elements to load. Do not call it multiple times in a row.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		Handler: r.waitHandler,
	})

	r.register(Tool{
		Schema: entities.ToolSchema{
			Name:        ToolClickWebElement,
			Description: "Click a web element. Provide the number of the web element you want to click, as shown in the element list and on the annotated screenshot.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"web_element_num": map[string]interface{}{
						"type":        "integer",
						"description": "The number of the web element to click",
					},
				},
				"required": []string{"web_element_num"},
			},
		},
		Handler: r.clickHandler,
	})

	return r
}

func (r *Registry) register(t Tool) {
	r.order = append(r.order, t.Schema.Name)
	r.tools[t.Schema.Name] = t
}

// Allowed returns a registry restricted to the named tools. Unknown names are
// skipped with a warning. An empty list keeps the full table.
func (r *Registry) Allowed(names []string) *Registry {
	if len(names) == 0 {
		return r
	}

	sub := &Registry{
		tools:        make(map[string]Tool),
		logger:       r.logger,
		waitInterval: r.waitInterval,
		settlePause:  r.settlePause,
	}
	for _, name := range names {
		tool, ok := r.tools[name]
		if !ok {
			r.logger.WithField("tool", name).Warn("unknown tool in allow list")
			continue
		}
		sub.register(tool)
	}
	return sub
}

// Schemas returns the capability schemas in registration order.
func (r *Registry) Schemas() []entities.ToolSchema {
	schemas := make([]entities.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Schema)
	}
	return schemas
}

// Dispatch executes one decision through the table.
func (r *Registry) Dispatch(ctx context.Context, st *State, decision entities.Decision) (map[string]interface{}, error) {
	tool, ok := r.tools[decision.Tool]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", decision.Tool)
	}
	return tool.Handler(ctx, st, decision.Arguments)
}

func (r *Registry) answerHandler(ctx context.Context, st *State, args map[string]interface{}) (map[string]interface{}, error) {
	answer, ok := args["answer"].(string)
	if !ok {
		return nil, fmt.Errorf("answer parameter is required")
	}
	st.FinalAnswer = answer
	st.Answered = true
	return map[string]interface{}{"status": 200, "message": "Final answer recorded."}, nil
}

func (r *Registry) waitHandler(ctx context.Context, st *State, args map[string]interface{}) (map[string]interface{}, error) {
	if err := sleepCtx(ctx, r.waitInterval); err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": 200, "message": fmt.Sprintf("Waited for %s.", r.waitInterval)}, nil
}

func (r *Registry) clickHandler(ctx context.Context, st *State, args map[string]interface{}) (map[string]interface{}, error) {
	num, err := intArg(args, "web_element_num")
	if err != nil {
		return nil, err
	}

	if st.Annotation == nil {
		return nil, &entities.InteractionError{
			Op:    "click",
			Cause: fmt.Errorf("no annotation pass has run yet"),
		}
	}
	if num < 0 || num >= len(st.Annotation.Elements) {
		return nil, &entities.IndexOutOfRangeError{Index: num, Count: len(st.Annotation.Elements)}
	}

	if err := st.Annotation.Elements[num].Click(ctx); err != nil {
		return nil, err
	}

	// Let the page react before the next observation.
	if err := sleepCtx(ctx, r.settlePause); err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": 200, "message": fmt.Sprintf("Clicked on web element number %d.", num)}, nil
}

// intArg reads a required integer argument, tolerating the float64 shape
// JSON decoding produces.
func intArg(args map[string]interface{}, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
