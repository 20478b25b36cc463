// Package orchestrator runs the per-message turn loop: guardrail check,
// dynamic instructions, model invocation with tool rounds, identity
// reconciliation, gated persistence, and the session log.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mechanigo/chatbot/agent/contract"
	"github.com/mechanigo/chatbot/agent/prompt"
	"github.com/mechanigo/chatbot/agent/session"
	"github.com/mechanigo/chatbot/agent/state"
	"github.com/mechanigo/chatbot/agent/tool"
	"github.com/mechanigo/chatbot/pkg/metrics"
)

type Config struct {
	// MaxToolRounds bounds how many times one turn may loop back to the
	// model after executing tool calls.
	MaxToolRounds int `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"5"`
	HistoryLimit  int `envconfig:"HISTORY_LIMIT" split_words:"true" default:"20"`
}

func (c Config) Validate() error {
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("%w: max tool rounds must be at least 1", contract.ErrValidation)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("%w: history limit must not be negative", contract.ErrValidation)
	}
	return nil
}

// HistoryFactory builds the session log for one session id.
type HistoryFactory func(sessionID string) (*session.History, error)

// Orchestrator owns every active conversation and processes one turn at a
// time per session. Different sessions run concurrently.
type Orchestrator struct {
	registry  *tool.Registry
	completer contract.Completer
	guard     contract.Classifier
	users     contract.UserStore
	histories HistoryFactory
	metrics   *metrics.Aggregator
	prompts   prompt.PromptSet
	toolNames []string
	conf      Config
	now       func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

// conversation pairs one shared context with its session log. Its mutex
// serializes turns: two messages for the same session never mutate the
// context concurrently.
type conversation struct {
	mu      sync.Mutex
	sc      *state.SharedContext
	history *session.History
}

type Option func(*Orchestrator)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(
	conf Config,
	registry *tool.Registry,
	completer contract.Completer,
	guard contract.Classifier,
	users contract.UserStore,
	histories HistoryFactory,
	agg *metrics.Aggregator,
	prompts prompt.PromptSet,
	toolNames []string,
	opts ...Option,
) (*Orchestrator, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: tool registry is required", contract.ErrValidation)
	}
	if completer == nil {
		return nil, fmt.Errorf("%w: completer is required", contract.ErrValidation)
	}
	if histories == nil {
		return nil, fmt.Errorf("%w: history factory is required", contract.ErrValidation)
	}
	if prompts.Orchestrator == "" {
		return nil, fmt.Errorf("%w: orchestrator prompt", contract.ErrPromptMissing)
	}
	// Unknown tool names are a wiring bug; fail now, not mid-turn.
	if _, err := registry.GetMany(toolNames); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		registry:      registry,
		completer:     completer,
		guard:         guard,
		users:         users,
		histories:     histories,
		metrics:       agg,
		prompts:       prompts,
		toolNames:     append([]string(nil), toolNames...),
		conf:          conf,
		now:           time.Now,
		conversations: make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// HandleMessage runs one turn for one session. Collaborator failures after
// the model answer is produced (identity lookup, persistence, history
// flush) are logged and swallowed so the answer still reaches the user.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, message string) (contract.TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return contract.TurnResult{}, contract.ErrEmptyMessage
	}
	if strings.TrimSpace(sessionID) == "" {
		return contract.TurnResult{}, contract.ErrInvalidSession
	}

	conv, err := o.conversation(sessionID)
	if err != nil {
		return contract.TurnResult{}, err
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	started := o.now()
	conv.sc.BeginTurn(started)
	if o.metrics != nil {
		o.metrics.RecordRequest(sessionID)
		defer func() {
			o.metrics.RecordLatency(o.now().Sub(started))
		}()
	}

	if blocked := o.classify(ctx, sessionID, message); blocked {
		return contract.TurnResult{Response: o.prompts.Refusal, SessionID: sessionID}, nil
	}

	// Identity snapshot before any tool can touch the profile.
	emailBefore := conv.sc.User.Email
	contactBefore := conv.sc.User.ContactNum

	result, err := o.invoke(ctx, conv, sessionID, message)
	if err != nil {
		return contract.TurnResult{}, err
	}

	o.reconcileIdentity(ctx, conv.sc, emailBefore, contactBefore)
	o.persistProfile(ctx, sessionID, conv.sc)
	o.flushHistory(ctx, conv.history, message, result.Response, started)

	if o.metrics != nil {
		o.metrics.RecordUsage(sessionID, metrics.TokenUsage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			TotalTokens:  result.Usage.TotalTokens,
		})
	}
	return result, nil
}

func (o *Orchestrator) conversation(sessionID string) (*conversation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if conv, ok := o.conversations[sessionID]; ok {
		return conv, nil
	}
	history, err := o.histories(sessionID)
	if err != nil {
		return nil, err
	}
	conv := &conversation{sc: state.NewSharedContext(), history: history}
	o.conversations[sessionID] = conv
	return conv, nil
}

// classify consults the guardrail before the model sees the message. A
// classifier outage fails open: blocking every customer on a guardrail
// hiccup is worse than letting one message through unscreened.
func (o *Orchestrator) classify(ctx context.Context, sessionID, message string) bool {
	if o.guard == nil {
		return false
	}
	verdict, err := o.guard.Classify(ctx, message)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("guardrail classify failed, letting message through")
		return false
	}
	if verdict.Blocked {
		log.Info().Str("session_id", sessionID).Strs("reasons", verdict.Reasons).Msg("guardrail blocked message")
	}
	return verdict.Blocked
}

// invoke runs the model rounds for one turn. Tool-call mutations that land
// before a model error stay applied; merge no-op detection makes a retried
// turn idempotent.
func (o *Orchestrator) invoke(ctx context.Context, conv *conversation, sessionID, message string) (contract.TurnResult, error) {
	msgs := o.historyWindow(ctx, conv.history)
	msgs = append(msgs, contract.Message{Role: contract.RoleUser, Content: message})

	var usage contract.Usage
	var model string

	for round := 0; round < o.conf.MaxToolRounds; round++ {
		specs, err := o.registry.Specs(o.toolNames)
		if err != nil {
			return contract.TurnResult{}, err
		}
		completion, err := o.completer.Complete(ctx, contract.CompletionRequest{
			Instructions: o.prompts.OrchestratorInstructions(conv.sc),
			History:      msgs,
			Tools:        specs,
		})
		if err != nil {
			return contract.TurnResult{}, err
		}
		usage.Add(completion.Usage)
		model = completion.Model

		if len(completion.ToolCalls) == 0 {
			return contract.TurnResult{
				Response:  completion.Text,
				SessionID: sessionID,
				Model:     model,
				Usage:     usage,
			}, nil
		}

		msgs = append(msgs, contract.Message{
			Role:      contract.RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			msgs = append(msgs, o.runTool(ctx, conv.sc, sessionID, call))
		}
	}
	return contract.TurnResult{}, fmt.Errorf("%w: no final answer after %d tool rounds", contract.ErrModelInvoke, o.conf.MaxToolRounds)
}

// runTool executes one tool call; failures become structured payloads the
// model can react to, never turn-loop errors.
func (o *Orchestrator) runTool(ctx context.Context, sc *state.SharedContext, sessionID string, call contract.ToolCall) contract.Message {
	var res contract.ToolResult
	handler, err := o.registry.Get(call.Name)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Str("tool", call.Name).Msg("model requested unresolvable tool")
		res = contract.ToolResult{Tool: call.Name, Status: "error", Message: "tool is not available"}
	} else {
		res = handler(ctx, sc, call.Args)
	}

	body, err := json.Marshal(res)
	if err != nil {
		body = []byte(`{"status":"error","message":"unencodable tool result"}`)
	}
	log.Debug().Str("session_id", sessionID).Str("tool", call.Name).Str("status", res.Status).Msg("tool call executed")
	return contract.Message{Role: contract.RoleTool, Content: string(body), ToolCallID: call.ID}
}

// historyWindow loads the persisted log into model messages. Best effort: a
// store outage degrades to an empty window, it never fails the turn.
func (o *Orchestrator) historyWindow(ctx context.Context, history *session.History) []contract.Message {
	if o.conf.HistoryLimit == 0 {
		return nil
	}
	entries, err := history.Get(ctx, o.conf.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Str("session_id", history.SessionID()).Msg("history read failed, continuing without it")
		return nil
	}
	msgs := make([]contract.Message, 0, len(entries))
	for _, e := range entries {
		role := contract.Role(e.Role)
		if role != contract.RoleUser && role != contract.RoleAssistant {
			continue
		}
		msgs = append(msgs, contract.Message{Role: role, Content: e.Message})
	}
	return msgs
}

// reconcileIdentity re-links the conversation to a persisted profile when a
// tool call changed an identifying field this turn.
func (o *Orchestrator) reconcileIdentity(ctx context.Context, sc *state.SharedContext, emailBefore, contactBefore string) {
	if o.users == nil {
		return
	}
	if email := strings.TrimSpace(sc.User.Email); email != "" && email != strings.TrimSpace(emailBefore) {
		if state.LinkIdentity(ctx, sc, o.users, state.IdentifierEmail, email) {
			return
		}
	}
	if contact := strings.TrimSpace(sc.User.ContactNum); contact != "" && contact != strings.TrimSpace(contactBefore) {
		state.LinkIdentity(ctx, sc, o.users, state.IdentifierContact, contact)
	}
}

// persistProfile writes the profile once every required field is present.
// Partial profiles stay in memory and in the session log only.
func (o *Orchestrator) persistProfile(ctx context.Context, sessionID string, sc *state.SharedContext) {
	if o.users == nil {
		return
	}
	missing, ready := state.Evaluate(sc)
	if !ready {
		log.Debug().Str("session_id", sessionID).Strs("missing", missing).Msg("profile incomplete, skipping upsert")
		return
	}
	if err := o.users.UpsertUser(ctx, sc.User); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Str("uid", sc.User.UID).Msg("profile upsert failed")
		return
	}
	log.Info().Str("session_id", sessionID).Str("uid", sc.User.UID).Msg("profile persisted")
}

// flushHistory appends this turn's exchange and flushes. A failed flush
// keeps the entries buffered for the next turn's attempt.
func (o *Orchestrator) flushHistory(ctx context.Context, history *session.History, userMsg, assistantMsg string, at time.Time) {
	history.Collect([]session.Entry{
		{Role: string(contract.RoleUser), Message: userMsg, Timestamp: at},
		{Role: string(contract.RoleAssistant), Message: assistantMsg, Timestamp: o.now()},
	})
	if err := history.Persist(ctx); err != nil {
		log.Error().Err(err).Str("session_id", history.SessionID()).Msg("history flush failed, entries stay buffered")
	}
}
