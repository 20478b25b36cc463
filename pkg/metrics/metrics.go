// Package metrics is the process-wide usage aggregator. It is created once at
// startup, only ever accumulates, and is read by the metrics endpoint.
package metrics

import (
	"sync"
	"time"
)

type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

type Snapshot struct {
	RequestCount       int64                 `json:"request_count"`
	UniqueSessionCount int                   `json:"unique_sessions_count"`
	ResponseTime       float64               `json:"response_time"`
	SessionTokenUsage  map[string]TokenUsage `json:"session_token_usage"`
}

type Aggregator struct {
	mu           sync.Mutex
	requestCount int64
	sessions     map[string]struct{}
	lastLatency  time.Duration
	usage        map[string]TokenUsage
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		sessions: make(map[string]struct{}),
		usage:    make(map[string]TokenUsage),
	}
}

func (a *Aggregator) RecordRequest(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requestCount++
	if sessionID != "" {
		a.sessions[sessionID] = struct{}{}
	}
}

func (a *Aggregator) RecordLatency(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastLatency = d
}

func (a *Aggregator) RecordUsage(sessionID string, usage TokenUsage) {
	if sessionID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.usage[sessionID]
	cur.InputTokens += usage.InputTokens
	cur.OutputTokens += usage.OutputTokens
	cur.TotalTokens += usage.TotalTokens
	a.usage[sessionID] = cur
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	usage := make(map[string]TokenUsage, len(a.usage))
	for k, v := range a.usage {
		usage[k] = v
	}

	return Snapshot{
		RequestCount:       a.requestCount,
		UniqueSessionCount: len(a.sessions),
		ResponseTime:       a.lastLatency.Seconds(),
		SessionTokenUsage:  usage,
	}
}

// SessionUsage returns the accumulated token usage for one session.
func (a *Aggregator) SessionUsage(sessionID string) (TokenUsage, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.usage[sessionID]
	return u, ok
}
