package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/mechanigo/chatbot/agent/contract"
	"github.com/mechanigo/chatbot/pkg/openaix"
)

func knowledgeResponse(content string) string {
	return `{
		"id": "chatcmpl-k1",
		"object": "chat.completion",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "` + content + `"}}],
		"usage": {"prompt_tokens": 30, "completion_tokens": 10, "total_tokens": 40}
	}`
}

func TestKnowledgeBaseAnswer(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, knowledgeResponse("Change your oil every 10,000 km po."), nil)
	defer srv.Close()

	client := openaix.NewClient(openaix.Config{APIKey: "test-key", BaseURL: srv.URL})
	kb, err := NewKnowledgeBase(client, Config{Model: "gpt-4o-mini", MaxCompletionToken: 500, Temperature: 0.2}, "answer car questions")
	if err != nil {
		t.Fatalf("NewKnowledgeBase failed: %v", err)
	}

	answer, err := kb.Lookup(context.Background(), "how often should I change oil?")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if answer != "Change your oil every 10,000 km po." {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestKnowledgeBaseMissSentinel(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, knowledgeResponse("__NO_RESULTS__"), nil)
	defer srv.Close()

	client := openaix.NewClient(openaix.Config{APIKey: "test-key", BaseURL: srv.URL})
	kb, err := NewKnowledgeBase(client, Config{Model: "gpt-4o-mini"}, "answer car questions")
	if err != nil {
		t.Fatalf("NewKnowledgeBase failed: %v", err)
	}

	_, err = kb.Lookup(context.Background(), "what is the meaning of life?")
	if !errors.Is(err, contract.ErrLookupMiss) {
		t.Fatalf("expected ErrLookupMiss, got %v", err)
	}
}

func TestKnowledgeBaseEmptyAnswerIsMiss(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, knowledgeResponse(""), nil)
	defer srv.Close()

	client := openaix.NewClient(openaix.Config{APIKey: "test-key", BaseURL: srv.URL})
	kb, err := NewKnowledgeBase(client, Config{Model: "gpt-4o-mini"}, "answer car questions")
	if err != nil {
		t.Fatalf("NewKnowledgeBase failed: %v", err)
	}

	if _, err := kb.Lookup(context.Background(), "?"); !errors.Is(err, contract.ErrLookupMiss) {
		t.Fatalf("expected ErrLookupMiss for empty answer, got %v", err)
	}
}
