package state

import (
	"context"
	"errors"
	"testing"

	"github.com/mechanigo/chatbot/agent/schema"
)

type fakeFinder struct {
	record *schema.User
	err    error

	calls []string
}

func (f *fakeFinder) FindUserBy(_ context.Context, field, value string) (*schema.User, error) {
	f.calls = append(f.calls, field+"="+value)
	return f.record, f.err
}

func TestLinkIdentityHitReplacesProfile(t *testing.T) {
	t.Parallel()

	sc := NewSharedContext()
	sc.User.Name = "Typed This Turn"
	localUID := sc.User.UID

	finder := &fakeFinder{record: &schema.User{
		UID:     "persisted-uid",
		Name:    "Dave Grohl",
		Email:   "dave@example.com",
		Payment: "GCash",
	}}

	if !LinkIdentity(context.Background(), sc, finder, IdentifierEmail, "dave@example.com") {
		t.Fatal("expected link hit")
	}
	if sc.User.UID != "persisted-uid" {
		t.Fatalf("expected persisted uid, got %q (local was %q)", sc.User.UID, localUID)
	}
	// Full replacement, not a union of local and persisted fields.
	if sc.User.Name != "Dave Grohl" {
		t.Fatalf("local fields survived replacement: %+v", sc.User)
	}
	if sc.User.Payment != "GCash" {
		t.Fatal("persisted fields must carry over")
	}
}

func TestLinkIdentityMissKeepsLocalValue(t *testing.T) {
	t.Parallel()

	sc := NewSharedContext()
	localUID := sc.User.UID
	finder := &fakeFinder{}

	if LinkIdentity(context.Background(), sc, finder, IdentifierEmail, " new@example.com ") {
		t.Fatal("miss must report false")
	}
	if sc.User.UID != localUID {
		t.Fatal("miss must not change the uid")
	}
	if sc.User.Email != "new@example.com" {
		t.Fatalf("miss must keep the trimmed identifier locally, got %q", sc.User.Email)
	}
	if sc.Linked {
		t.Fatal("miss must not mark the context linked")
	}
}

func TestLinkIdentityContactField(t *testing.T) {
	t.Parallel()

	sc := NewSharedContext()
	finder := &fakeFinder{}

	LinkIdentity(context.Background(), sc, finder, IdentifierContact, "09171234567")
	if sc.User.ContactNum != "09171234567" {
		t.Fatalf("contact identifier not kept locally: %q", sc.User.ContactNum)
	}
	if len(finder.calls) != 1 || finder.calls[0] != "contact_num=09171234567" {
		t.Fatalf("unexpected lookup calls: %v", finder.calls)
	}
}

func TestLinkIdentityStoreErrorDegrades(t *testing.T) {
	t.Parallel()

	sc := NewSharedContext()
	before := *sc.User
	finder := &fakeFinder{err: errors.New("connection refused")}

	if LinkIdentity(context.Background(), sc, finder, IdentifierEmail, "dave@example.com") {
		t.Fatal("store error must report false")
	}
	if *sc.User != before {
		t.Fatalf("store error must leave the profile untouched: %+v", sc.User)
	}
}

func TestLinkIdentityEmptyValue(t *testing.T) {
	t.Parallel()

	sc := NewSharedContext()
	finder := &fakeFinder{}
	if LinkIdentity(context.Background(), sc, finder, IdentifierEmail, "   ") {
		t.Fatal("blank identifier must report false")
	}
	if len(finder.calls) != 0 {
		t.Fatal("blank identifier must not hit the store")
	}
}
