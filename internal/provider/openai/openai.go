// Package openai adapts the OpenAI Chat Completions API to the engine's
// reasoning provider interface.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/elysiumlabs/atlas/internal/agent"
)

const systemPrompt = `You are an autonomous agent inside a task orchestration engine.
Each turn you take exactly one action. Either call one of the provided tools,
or reply with a single JSON object and nothing else:
  {"kind": "message", "recipient": "<agent id>", "payload": <any JSON>}
  {"kind": "done", "result": <any JSON>}
Reply with "done" only when the task goal is fully achieved.`

// Config contains settings for the OpenAI provider.
type Config struct {
	// Model is the chat model to use.
	Model string
	// APIKey is the OpenAI API key. If empty, the SDK reads OPENAI_API_KEY.
	APIKey string
	// MaxCompletionTokens caps the completion length.
	MaxCompletionTokens int64
	// Timeout bounds each Complete call.
	Timeout time.Duration
}

// Provider implements agent.Provider on the OpenAI Chat Completions API.
type Provider struct {
	client    openai.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// New creates an OpenAI provider.
func New(cfg Config) *Provider {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	maxTokens := cfg.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Provider{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

// Complete runs one reasoning step and returns the agent's next action.
func (p *Provider) Complete(ctx context.Context, req agent.Request) (agent.Action, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
		MaxCompletionTokens: openai.Int(p.maxTokens),
	}
	if tools := buildTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return agent.Action{}, &agent.ProviderTimeoutError{Timeout: p.timeout}
		}
		return agent.Action{}, &agent.ProviderError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return agent.Action{}, &agent.ProviderError{Err: fmt.Errorf("no choices returned")}
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return agent.Action{}, &agent.ProviderError{Err: fmt.Errorf("decode tool arguments: %w", err)}
			}
		}
		return agent.Action{
			Kind: agent.ActionToolCall,
			Tool: tc.Function.Name,
			Args: args,
		}, nil
	}

	return parseTextAction(msg.Content), nil
}

// buildPrompt flattens the task goal and the agent's memory into the user turn.
func buildPrompt(req agent.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s\nGoal: %s\n", req.TaskID, req.Goal)
	if len(req.Observations) > 0 {
		b.WriteString("\nObservations so far (oldest first):\n")
		for _, obs := range req.Observations {
			payload, _ := json.Marshal(obs.Content)
			fmt.Fprintf(&b, "- [%s] %s: %s\n", obs.Kind, obs.Source, payload)
		}
	}
	return b.String()
}

// buildTools maps registered tool specs onto function definitions.
func buildTools(specs []agent.ToolSpec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  openai.FunctionParameters(spec.InputSchema),
			},
		})
	}
	return tools
}

// parseTextAction interprets a text-only completion. A JSON object with a
// "kind" field is decoded as-is; anything else counts as a done signal with
// the text as its result.
func parseTextAction(text string) agent.Action {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		var action agent.Action
		if err := json.Unmarshal([]byte(trimmed), &action); err == nil && action.Kind != "" {
			return action
		}
	}
	return agent.Action{Kind: agent.ActionDone, Result: trimmed}
}
