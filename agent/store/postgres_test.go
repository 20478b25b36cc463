package store

import (
	"context"
	"errors"
	"testing"
)

func TestFindUserByRejectsUnknownIdentifier(t *testing.T) {
	t.Parallel()

	p := NewPostgres(nil)
	_, err := p.FindUserBy(context.Background(), "name", "Dave")
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestFindUserByBlankValueShortCircuits(t *testing.T) {
	t.Parallel()

	// A nil db handle proves no query is issued for a blank value.
	p := NewPostgres(nil)
	user, err := p.FindUserBy(context.Background(), "email", "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected no match, got %+v", user)
	}
}

func TestUpsertUserRequiresUID(t *testing.T) {
	t.Parallel()

	p := NewPostgres(nil)
	if err := p.UpsertUser(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil user")
	}
}

func TestUserRowToUser(t *testing.T) {
	t.Parallel()

	row := &UserRow{
		UID:          "u-1",
		Name:         "Dave Grohl",
		Email:        "dave@example.com",
		ContactNum:   "09171234567",
		ScheduleDate: "2026-09-01",
		ScheduleTime: "10:00",
		Car:          "Toyota Vios 2012",
	}
	user := row.toUser()
	if user.UID != "u-1" || user.Name != "Dave Grohl" || user.Car != "Toyota Vios 2012" {
		t.Fatalf("row mapping wrong: %+v", user)
	}
	if user.ScheduleDate != "2026-09-01" || user.ScheduleTime != "10:00" {
		t.Fatalf("schedule mapping wrong: %+v", user)
	}
}
