package state

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mechanigo/chatbot/agent/schema"
)

// Identifier fields a session can be linked by.
const (
	IdentifierEmail   = "email"
	IdentifierContact = "contact_num"
)

// UserFinder is the slice of the durable store the linker needs.
// FindUserBy returns (nil, nil) when no record matches.
type UserFinder interface {
	FindUserBy(ctx context.Context, field, value string) (*schema.User, error)
}

// LinkIdentity resolves a just-supplied identifying value against the
// durable store. On a hit it replaces the in-memory profile wholesale (the
// persisted record wins, including its uid); on a miss it keeps the value
// on the local profile so the next persistence write carries it. Store
// failures are logged and degrade to local-only data; the linker never
// raises.
func LinkIdentity(ctx context.Context, sc *SharedContext, finder UserFinder, field, value string) bool {
	if sc == nil || sc.User == nil {
		return false
	}

	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return false
	}

	keepLocal := func() {
		switch field {
		case IdentifierEmail:
			sc.User.Email = normalized
		case IdentifierContact:
			sc.User.ContactNum = normalized
		}
	}

	if finder == nil {
		log.Warn().Str("field", field).Msg("no user store configured, keeping identity local")
		keepLocal()
		return false
	}

	existing, err := finder.FindUserBy(ctx, field, normalized)
	if err != nil {
		log.Error().Err(err).Str("field", field).Msg("identity lookup failed, continuing with local data")
		return false
	}
	if existing == nil {
		keepLocal()
		return false
	}

	if cur := sc.User; cur.UID != "" && existing.UID != "" && cur.UID != existing.UID {
		// informational only: an anonymous session is being re-pointed at a
		// known customer
		log.Info().
			Str("field", field).
			Str("session_uid", cur.UID).
			Str("persisted_uid", existing.UID).
			Msg("switching session profile to persisted record")
	}

	sc.AdoptUser(existing)
	return true
}
