// Package anthropic adapts the Anthropic Messages API to the engine's
// reasoning provider interface. Supports direct API access and AWS Bedrock.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/elysiumlabs/atlas/internal/agent"
)

const systemPrompt = `You are an autonomous agent inside a task orchestration engine.
Each turn you take exactly one action. Either call one of the provided tools,
or reply with a single JSON object and nothing else:
  {"kind": "message", "recipient": "<agent id>", "payload": <any JSON>}
  {"kind": "done", "result": <any JSON>}
Reply with "done" only when the task goal is fully achieved.`

// Config contains settings for the Anthropic provider.
type Config struct {
	// Model is the Claude model to use.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// MaxTokens caps the completion length.
	MaxTokens int64
	// Timeout bounds each Complete call.
	Timeout time.Duration
	// UseAWSBedrock switches to AWS Bedrock instead of the direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string
	// AWSProfile is the optional AWS profile name.
	AWSProfile string
}

// Provider implements agent.Provider on the Anthropic Messages API.
type Provider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
}

// New creates an Anthropic provider.
func New(cfg Config) (*Provider, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Provider{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

// Complete runs one reasoning step and returns the agent's next action.
func (p *Provider) Complete(ctx context.Context, req agent.Request) (agent.Action, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
		Tools: buildTools(req.Tools),
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return agent.Action{}, &agent.ProviderTimeoutError{Timeout: p.timeout}
		}
		return agent.Action{}, &agent.ProviderError{Err: err}
	}

	var textOutput string
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textOutput += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if len(variant.Input) > 0 {
				if err := json.Unmarshal(variant.Input, &args); err != nil {
					return agent.Action{}, &agent.ProviderError{Err: fmt.Errorf("decode tool input: %w", err)}
				}
			}
			return agent.Action{
				Kind: agent.ActionToolCall,
				Tool: variant.Name,
				Args: args,
			}, nil
		}
	}

	return parseTextAction(textOutput), nil
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

// buildTools maps registered tool specs onto the SDK's tool params.
func buildTools(specs []agent.ToolSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		props, _ := spec.InputSchema["properties"].(map[string]any)
		var required []string
		switch r := spec.InputSchema["required"].(type) {
		case []string:
			required = r
		case []any:
			for _, f := range r {
				if s, ok := f.(string); ok {
					required = append(required, s)
				}
			}
		}
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		})
	}
	return tools
}

// parseTextAction interprets a text-only completion. A JSON object with a
// "kind" field is decoded as-is; anything else counts as a done signal with
// the text as its result. Unknown kinds are passed through for the
// orchestrator's action validation to reject.
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
