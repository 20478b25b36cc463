package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/mechanigo/chatbot/agent/contract"
	"github.com/rs/zerolog/log"
)

// Completer adapts the OpenAI chat completions API to the contract.Completer
// interface. One instance serves every conversation; it carries no per-turn
// state.
type Completer struct {
	client *openai.Client
	conf   Config
}

func NewCompleter(client *openai.Client, conf Config) (*Completer, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is required", contract.ErrValidation)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &Completer{client: client, conf: conf}, nil
}

func (c *Completer) Complete(ctx context.Context, req contract.CompletionRequest) (contract.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.conf.Model),
		Messages: buildMessages(req),
	}
	if c.conf.MaxCompletionToken > 0 {
		params.MaxTokens = openai.Int(int64(c.conf.MaxCompletionToken))
	}
	if c.conf.Temperature > 0 {
		params.Temperature = openai.Float(c.conf.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contract.Completion{}, fmt.Errorf("%w: %v", contract.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return contract.Completion{}, fmt.Errorf("%w: empty choices", contract.ErrModelInvoke)
	}

	msg := resp.Choices[0].Message
	out := contract.Completion{
		Text:  msg.Content,
		Model: resp.Model,
		Usage: contract.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		call := contract.ToolCall{ID: tc.ID, Name: tc.Function.Name}
		if raw := tc.Function.Arguments; raw != "" {
			args := map[string]any{}
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("tool call arguments are not valid JSON")
			} else {
				call.Args = args
			}
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}
	return out, nil
}

func buildMessages(req contract.CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+1)
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}
	for _, m := range req.History {
		switch m.Role {
		case contract.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case contract.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case contract.RoleAssistant:
			if len(m.ToolCalls) > 0 {
				msgs = append(msgs, assistantToolCalls(m))
				continue
			}
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case contract.RoleTool:
			msgs = append(msgs, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return msgs
}

func assistantToolCalls(m contract.Message) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		assistant.Content.OfString = openai.String(m.Content)
	}
	for _, tc := range m.ToolCalls {
		args := "{}"
		if tc.Args != nil {
			if b, err := json.Marshal(tc.Args); err == nil {
				args = string(b)
			}
		}
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: args,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func buildTools(specs []contract.ToolSpec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  openai.FunctionParameters(paramSchema(spec.Params)),
			},
		})
	}
	return tools
}

func paramSchema(params []contract.Param) map[string]any {
	props := map[string]any{}
	required := []string{}
	for _, p := range params {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		props[p.Name] = map[string]any{
			"type":        typ,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
