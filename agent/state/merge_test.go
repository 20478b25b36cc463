package state

import (
	"testing"

	"github.com/mechanigo/chatbot/agent/schema"
)

func TestMergeUserFirstSet(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1"}
	res := MergeUser(user, map[string]any{"name": "Dave Grohl", "email": "dave@example.com"})
	if res.Status != StatusUpdated {
		t.Fatalf("expected updated, got %s", res.Status)
	}
	if user.Name != "Dave Grohl" || user.Email != "dave@example.com" {
		t.Fatalf("fields not stored: %+v", user)
	}
	if res.Changed["name"] != "Dave Grohl" {
		t.Fatalf("changed set missing name: %v", res.Changed)
	}
}

func TestMergeUserIdempotent(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1"}
	payload := map[string]any{"name": "Dave Grohl", "address": "Quezon City"}

	first := MergeUser(user, payload)
	if first.Status != StatusUpdated {
		t.Fatalf("first merge: expected updated, got %s", first.Status)
	}
	snapshot := *user

	second := MergeUser(user, payload)
	if second.Status != StatusNoChange {
		t.Fatalf("second merge: expected no_change, got %s", second.Status)
	}
	if *user != snapshot {
		t.Fatalf("second merge mutated the record: %+v vs %+v", *user, snapshot)
	}
}

func TestMergeUserTrimAndAbsentEquivalence(t *testing.T) {
	t.Parallel()

	blank := &schema.User{UID: "u-1"}
	resBlank := MergeUser(blank, map[string]any{"name": "   "})

	absent := &schema.User{UID: "u-1"}
	resAbsent := MergeUser(absent, map[string]any{"name": nil})

	if resBlank.Status != StatusNoChange || resAbsent.Status != StatusNoChange {
		t.Fatalf("expected no_change for both, got %s and %s", resBlank.Status, resAbsent.Status)
	}
	if blank.Name != "" || absent.Name != "" {
		t.Fatal("empty input must never be stored")
	}
}

func TestMergeUserNeverErasesWithEmpty(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1", Name: "Dave Grohl"}
	res := MergeUser(user, map[string]any{"name": ""})
	if res.Status != StatusNoChange {
		t.Fatalf("expected no_change, got %s", res.Status)
	}
	if user.Name != "Dave Grohl" {
		t.Fatalf("empty input erased the stored name: %q", user.Name)
	}
}

func TestMergeUserCorrectionOverwrites(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1", Email: "old@example.com"}
	res := MergeUser(user, map[string]any{"email": "  new@example.com  "})
	if res.Status != StatusUpdated {
		t.Fatalf("expected updated, got %s", res.Status)
	}
	if user.Email != "new@example.com" {
		t.Fatalf("correction not applied: %q", user.Email)
	}
}

func TestMergeUserRoutesScheduleThroughPairingRule(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1"}
	res := MergeUser(user, map[string]any{"schedule_date": "2026-09-01"})
	if res.Status != StatusError {
		t.Fatalf("expected error when time was never stored, got %s", res.Status)
	}
	if user.ScheduleDate != "" {
		t.Fatalf("half-schedule must not be stored: %q", user.ScheduleDate)
	}
}

func TestMergeUserScheduleErrorDoesNotMaskOtherUpdates(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1"}
	res := MergeUser(user, map[string]any{"name": "Dave", "schedule_date": "2026-09-01"})
	if res.Status != StatusUpdated {
		t.Fatalf("expected updated, got %s (%s)", res.Status, res.Message)
	}
	if user.Name != "Dave" {
		t.Fatal("plain field update lost")
	}
}

func TestMergeScheduleRequiresBothHalvesInitially(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1"}
	if res := MergeSchedule(user, map[string]any{"schedule_time": "10:00"}); res.Status != StatusError {
		t.Fatalf("expected error with no stored date, got %s", res.Status)
	}
	if res := MergeSchedule(user, map[string]any{"schedule_date": "2026-09-01"}); res.Status != StatusError {
		t.Fatalf("expected error with no stored time, got %s", res.Status)
	}
}

func TestMergeScheduleBackfillsStoredHalf(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1", ScheduleDate: "2026-09-01", ScheduleTime: "10:00"}
	res := MergeSchedule(user, map[string]any{"schedule_date": "2026-09-02"})
	if res.Status != StatusUpdated {
		t.Fatalf("expected updated, got %s", res.Status)
	}
	if user.ScheduleDate != "2026-09-02" || user.ScheduleTime != "10:00" {
		t.Fatalf("expected new date with old time, got %q @ %q", user.ScheduleDate, user.ScheduleTime)
	}
}

func TestMergeScheduleNoChange(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1", ScheduleDate: "2026-09-01", ScheduleTime: "10:00"}
	res := MergeSchedule(user, map[string]any{"schedule_date": "2026-09-01", "schedule_time": "10:00"})
	if res.Status != StatusNoChange {
		t.Fatalf("expected no_change, got %s", res.Status)
	}
}

func TestMergePayment(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1"}
	if res := MergePayment(user, map[string]any{"payment": ""}); res.Status != StatusError {
		t.Fatalf("expected error on empty payment, got %s", res.Status)
	}
	if res := MergePayment(user, map[string]any{"payment": "GCash"}); res.Status != StatusUpdated {
		t.Fatalf("expected updated, got %s", res.Status)
	}
	// Case-only difference is not a correction.
	if res := MergePayment(user, map[string]any{"payment": "gcash"}); res.Status != StatusNoChange {
		t.Fatalf("expected no_change on case-only repeat, got %s", res.Status)
	}
	if user.Payment != "GCash" {
		t.Fatalf("stored payment changed: %q", user.Payment)
	}
}

func TestMergeService(t *testing.T) {
	t.Parallel()

	user := &schema.User{UID: "u-1"}
	if res := MergeService(user, map[string]any{}); res.Status != StatusError {
		t.Fatal("expected error on absent service type")
	}
	if res := MergeService(user, map[string]any{"service_type": "pms"}); res.Status != StatusUpdated {
		t.Fatalf("expected updated, got %s", res.Status)
	}
	if res := MergeService(user, map[string]any{"service_type": "PMS"}); res.Status != StatusNoChange {
		t.Fatalf("expected no_change on case-only repeat, got %s", res.Status)
	}
}

func TestMergeVehicle(t *testing.T) {
	t.Parallel()

	vehicle := &schema.Vehicle{}
	res := MergeVehicle(vehicle, map[string]any{"make": "Toyota", "model": "Vios", "year": float64(2012)})
	if res.Status != StatusUpdated {
		t.Fatalf("expected updated, got %s", res.Status)
	}
	if vehicle.Make != "Toyota" || vehicle.Model != "Vios" || vehicle.Year != 2012 {
		t.Fatalf("vehicle not stored: %+v", vehicle)
	}

	again := MergeVehicle(vehicle, map[string]any{"make": "Toyota", "year": "2012"})
	if again.Status != StatusNoChange {
		t.Fatalf("expected no_change on repeat, got %s", again.Status)
	}
}

func TestMergeVehicleIgnoresUnparseableYear(t *testing.T) {
	t.Parallel()

	vehicle := &schema.Vehicle{Year: 2012}
	res := MergeVehicle(vehicle, map[string]any{"year": "twenty twelve"})
	if res.Status != StatusNoChange {
		t.Fatalf("expected no_change, got %s", res.Status)
	}
	if vehicle.Year != 2012 {
		t.Fatalf("bad year input clobbered the stored year: %d", vehicle.Year)
	}
}
