// Package state owns the per-conversation shared context and the
// reconciliation logic applied to it: field merges, completeness checks, and
// identity linking. Nothing here performs I/O except the linker's lookup.
package state

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mechanigo/chatbot/agent/schema"
)

// SharedContext is the mutable aggregate for one conversation. Exactly one
// instance exists per active conversation, and every tool call within a turn
// mutates the same instance, so effects are visible to later calls in the
// same turn. Turns for one conversation never run concurrently.
type SharedContext struct {
	User    *schema.User
	Vehicle *schema.Vehicle

	// Linked is set once the session has been resolved to a previously
	// persisted profile.
	Linked bool

	TurnStartedAt time.Time
}

func NewSharedContext() *SharedContext {
	return &SharedContext{
		User:    &schema.User{UID: uuid.NewString()},
		Vehicle: &schema.Vehicle{},
	}
}

func (sc *SharedContext) BeginTurn(now time.Time) {
	sc.TurnStartedAt = now.UTC()
}

// SyncVehicle reflects the structured vehicle record into the profile's flat
// car descriptor. Idempotent; an empty vehicle never erases user-entered
// free text. Returns the effective descriptor.
func (sc *SharedContext) SyncVehicle() string {
	if sc == nil || sc.User == nil {
		return ""
	}

	formatted := sc.Vehicle.Descriptor()
	if formatted == "" {
		return strings.TrimSpace(sc.User.Car)
	}
	if sc.User.Car != formatted {
		sc.User.Car = formatted
	}
	return formatted
}

// AdoptUser replaces the in-memory profile with a persisted one and
// rebuilds the structured vehicle record from its flat car descriptor.
// Used by the identity linker; the replacement is total, not a field merge.
func (sc *SharedContext) AdoptUser(user *schema.User) {
	if sc == nil || user == nil {
		return
	}
	sc.User = user.Clone()
	sc.Linked = true

	if descriptor := strings.TrimSpace(user.Car); descriptor != "" {
		parsed := schema.ParseVehicle(descriptor)
		sc.Vehicle = &parsed
	} else if sc.Vehicle == nil {
		sc.Vehicle = &schema.Vehicle{}
	}
}
