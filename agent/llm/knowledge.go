package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/mechanigo/chatbot/agent/contract"
)

// missMarker is the sentinel the lookup prompts instruct the model to emit
// when the answer is not covered by the knowledge base.
const missMarker = "__NO_RESULTS__"

// KnowledgeBase answers domain questions from an instruction prompt. Both
// the mechanic knowledge source and the FAQ source are instances of this
// type with different prompts.
type KnowledgeBase struct {
	client *openai.Client
	conf   Config
	prompt string
}

func NewKnowledgeBase(client *openai.Client, conf Config, prompt string) (*KnowledgeBase, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is required", contract.ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: lookup prompt is required", contract.ErrPromptMissing)
	}
	return &KnowledgeBase{client: client, conf: conf, prompt: prompt}, nil
}

func (k *KnowledgeBase) Lookup(ctx context.Context, query string) (string, error) {
	resp, err := k.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(k.conf.LookupModelName()),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(k.prompt),
			openai.UserMessage(query),
		},
		MaxTokens:   openai.Int(int64(k.conf.MaxCompletionToken)),
		Temperature: openai.Float(k.conf.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contract.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", contract.ErrModelInvoke)
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" || strings.Contains(answer, missMarker) {
		return "", contract.ErrLookupMiss
	}
	return answer, nil
}
