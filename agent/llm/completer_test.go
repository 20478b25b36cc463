package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mechanigo/chatbot/agent/contract"
	"github.com/mechanigo/chatbot/pkg/openaix"
)

// chatServer fakes the chat completions endpoint: it records the decoded
// request body and replies with the canned response.
func chatServer(t *testing.T, response string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if captured != nil {
			body := map[string]any{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("request body decode failed: %v", err)
			}
			*captured = body
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(response)); err != nil {
			t.Errorf("response write failed: %v", err)
		}
	}))
}

func testCompleter(t *testing.T, baseURL string) *Completer {
	t.Helper()
	client := openaix.NewClient(openaix.Config{APIKey: "test-key", BaseURL: baseURL})
	if client == nil {
		t.Fatal("client must not be nil")
	}
	c, err := NewCompleter(client, Config{Model: "gpt-4o-mini", MaxCompletionToken: 1000, Temperature: 0.2})
	if err != nil {
		t.Fatalf("NewCompleter failed: %v", err)
	}
	return c
}

func TestCompleteTextAnswer(t *testing.T) {
	t.Parallel()

	const response = `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "Sige po, tutulungan ko kayo diyan."}}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 18, "total_tokens": 138}
	}`

	var captured map[string]any
	srv := chatServer(t, response, &captured)
	defer srv.Close()

	c := testCompleter(t, srv.URL)
	out, err := c.Complete(context.Background(), contract.CompletionRequest{
		Instructions: "You are MechaniGo Bot.",
		History: []contract.Message{
			{Role: contract.RoleUser, Content: "hi po"},
		},
		Tools: []contract.ToolSpec{{
			Name:        "user_extract_info",
			Description: "Save customer details.",
			Params:      []contract.Param{{Name: "name", Type: "string"}},
		}},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if out.Text != "Sige po, tutulungan ko kayo diyan." {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if len(out.ToolCalls) != 0 {
		t.Fatalf("unexpected tool calls: %v", out.ToolCalls)
	}
	if out.Usage.InputTokens != 120 || out.Usage.OutputTokens != 18 || out.Usage.TotalTokens != 138 {
		t.Fatalf("usage mapping wrong: %+v", out.Usage)
	}
	if out.Model != "gpt-4o-mini-2024-07-18" {
		t.Fatalf("model mapping wrong: %q", out.Model)
	}

	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %v", captured["messages"])
	}
	tools, _ := captured["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tool spec not forwarded: %v", captured["tools"])
	}
}

func TestCompleteToolCalls(t *testing.T) {
	t.Parallel()

	const response = `{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"index": 0, "finish_reason": "tool_calls",
			"message": {"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "user_extract_info", "arguments": "{\"name\": \"Dave Grohl\"}"}}]}}],
		"usage": {"prompt_tokens": 90, "completion_tokens": 12, "total_tokens": 102}
	}`

	srv := chatServer(t, response, nil)
	defer srv.Close()

	c := testCompleter(t, srv.URL)
	out, err := c.Complete(context.Background(), contract.CompletionRequest{
		History: []contract.Message{{Role: contract.RoleUser, Content: "My name is Dave Grohl"}},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %v", out.ToolCalls)
	}
	call := out.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "user_extract_info" {
		t.Fatalf("tool call mapping wrong: %+v", call)
	}
	if call.Args["name"] != "Dave Grohl" {
		t.Fatalf("arguments not decoded: %v", call.Args)
	}
}

func TestCompleteSendsToolRoundTrip(t *testing.T) {
	t.Parallel()

	const response = `{
		"id": "chatcmpl-3",
		"object": "chat.completion",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "Saved po!"}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`

	var captured map[string]any
	srv := chatServer(t, response, &captured)
	defer srv.Close()

	c := testCompleter(t, srv.URL)
	_, err := c.Complete(context.Background(), contract.CompletionRequest{
		History: []contract.Message{
			{Role: contract.RoleUser, Content: "My name is Dave Grohl"},
			{Role: contract.RoleAssistant, ToolCalls: []contract.ToolCall{{
				ID: "call_1", Name: "user_extract_info", Args: map[string]any{"name": "Dave Grohl"},
			}}},
			{Role: contract.RoleTool, ToolCallID: "call_1", Content: `{"status":"updated"}`},
		},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	assistant, _ := msgs[1].(map[string]any)
	calls, _ := assistant["tool_calls"].([]any)
	if len(calls) != 1 {
		t.Fatalf("assistant tool calls not replayed: %v", assistant)
	}
	toolMsg, _ := msgs[2].(map[string]any)
	if toolMsg["tool_call_id"] != "call_1" {
		t.Fatalf("tool message id not forwarded: %v", toolMsg)
	}
}

func TestCompleteServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "boom"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testCompleter(t, srv.URL)
	_, err := c.Complete(context.Background(), contract.CompletionRequest{
		History: []contract.Message{{Role: contract.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
