package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/mechanigo/chatbot/agent/contract"
)

// Guardrail classifies an inbound user message before any tool or model
// round runs on it. The classifier prompt asks for a JSON verdict; anything
// the model wraps around it (markdown fences, prose) is stripped before
// decoding.
type Guardrail struct {
	client *openai.Client
	conf   Config
	prompt string
}

func NewGuardrail(client *openai.Client, conf Config, prompt string) (*Guardrail, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is required", contract.ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: guardrail prompt is required", contract.ErrPromptMissing)
	}
	return &Guardrail{client: client, conf: conf, prompt: prompt}, nil
}

func (g *Guardrail) Classify(ctx context.Context, input string) (contract.Verdict, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.conf.GuardrailModelName()),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(g.prompt),
			openai.UserMessage(input),
		},
		MaxTokens:   openai.Int(200),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return contract.Verdict{}, fmt.Errorf("%w: %v", contract.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return contract.Verdict{}, fmt.Errorf("%w: empty choices", contract.ErrModelInvoke)
	}
	return parseVerdict(resp.Choices[0].Message.Content)
}

func parseVerdict(raw string) (contract.Verdict, error) {
	body := extractJSON(raw)
	var verdict contract.Verdict
	if err := json.Unmarshal([]byte(body), &verdict); err != nil {
		return contract.Verdict{}, fmt.Errorf("%w: undecodable verdict %q: %v", contract.ErrModelInvoke, raw, err)
	}
	return verdict, nil
}

// extractJSON pulls the first {...} object out of a model reply so fenced or
// prefixed responses still decode.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
