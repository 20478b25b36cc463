package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mechanigo/chatbot/agent/schema"
)

type Status string

const (
	StatusUpdated  Status = "updated"
	StatusNoChange Status = "no_change"
	StatusError    Status = "error"
)

// MergeResult reports exactly the fields a merge call wrote, so callers can
// echo a confirmation back to the user.
type MergeResult struct {
	Status  Status
	Changed map[string]any
	Message string
}

func noChange(message string) MergeResult {
	return MergeResult{Status: StatusNoChange, Message: message}
}

func mergeError(message string) MergeResult {
	return MergeResult{Status: StatusError, Message: message}
}

// stringArg normalizes one incoming tool argument: trimmed, with an
// empty-after-trim value treated as "not provided" rather than an erase.
// Non-string scalars are stringified since tool arguments arrive untyped.
func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strings.TrimSpace(fmt.Sprint(s))
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// intArg coerces a numeric-looking argument to int. Non-coercible input is
// treated as absent, not an error; tool arguments produced by the model are
// noisy and a bad year should never fail the whole merge.
func intArg(args map[string]any, key string) int {
	v, ok := args[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// MergeUser reconciles a partial profile payload against the user record in
// place. Plain fields follow first-set-or-overwrite with no-op detection;
// schedule fields are routed through MergeSchedule so the date+time pairing
// rule holds no matter which tool supplied them.
func MergeUser(user *schema.User, args map[string]any) MergeResult {
	if user == nil {
		return mergeError("no user record in context")
	}

	fields := []struct {
		key     string
		current *string
	}{
		{"name", &user.Name},
		{"email", &user.Email},
		{"address", &user.Address},
		{"contact_num", &user.ContactNum},
		{"service_type", &user.ServiceType},
		{"payment", &user.Payment},
		{"car", &user.Car},
	}

	changed := map[string]any{}
	for _, f := range fields {
		incoming := stringArg(args, f.key)
		if incoming == "" {
			continue
		}
		if incoming == strings.TrimSpace(*f.current) {
			continue
		}
		*f.current = incoming
		changed[f.key] = incoming
	}

	_, hasDate := args["schedule_date"]
	_, hasTime := args["schedule_time"]
	if hasDate || hasTime {
		sched := MergeSchedule(user, args)
		if sched.Status == StatusError && len(changed) == 0 {
			return sched
		}
		for k, v := range sched.Changed {
			changed[k] = v
		}
	}

	if len(changed) == 0 {
		return noChange("No updates needed.")
	}
	return MergeResult{Status: StatusUpdated, Changed: changed}
}

// MergeSchedule applies the date+time pairing rule: a stored half backfills
// an omitted one, and the call errors when either half has never been
// provided, forcing the caller to re-ask for both rather than save an
// invalid half-schedule.
func MergeSchedule(user *schema.User, args map[string]any) MergeResult {
	if user == nil {
		return mergeError("no user record in context")
	}

	newDate := stringArg(args, "schedule_date")
	newTime := stringArg(args, "schedule_time")
	prevDate := strings.TrimSpace(user.ScheduleDate)
	prevTime := strings.TrimSpace(user.ScheduleTime)

	if prevDate == "" && newDate == "" {
		return mergeError("No schedule date provided. Ask the user to restate both date and time.")
	}
	if prevTime == "" && newTime == "" {
		return mergeError("No schedule time provided. Ask the user to restate both date and time.")
	}

	changed := map[string]any{}
	if newDate != "" && newDate != prevDate {
		user.ScheduleDate = newDate
		changed["schedule_date"] = newDate
	}
	if newTime != "" && newTime != prevTime {
		user.ScheduleTime = newTime
		changed["schedule_time"] = newTime
	}

	if len(changed) == 0 {
		return noChange("Schedule already set to the same values.")
	}
	return MergeResult{
		Status:  StatusUpdated,
		Changed: changed,
		Message: fmt.Sprintf("Schedule saved: %s at %s", user.ScheduleDate, user.ScheduleTime),
	}
}

// MergePayment stores the payment method as provided. Values outside the
// {GCash, Cash, Credit} set are still stored; the confirmation prompt, not
// hard validation, is the correction mechanism. The no-op compare is
// case-insensitive so "gcash" vs "GCash" does not count as a correction.
func MergePayment(user *schema.User, args map[string]any) MergeResult {
	if user == nil {
		return mergeError("no user record in context")
	}

	incoming := stringArg(args, "payment")
	if incoming == "" {
		return mergeError("No payment method received. Please ask the user to specify GCash, Cash, or Credit.")
	}
	if strings.EqualFold(incoming, strings.TrimSpace(user.Payment)) {
		return noChange("Payment method unchanged.")
	}

	user.Payment = incoming
	return MergeResult{
		Status:  StatusUpdated,
		Changed: map[string]any{"payment": incoming},
		Message: fmt.Sprintf("Payment method saved: %s", incoming),
	}
}

// MergeService stores the requested service type; same advisory validation
// stance as MergePayment.
func MergeService(user *schema.User, args map[string]any) MergeResult {
	if user == nil {
		return mergeError("no user record in context")
	}

	incoming := stringArg(args, "service_type")
	if incoming == "" {
		return mergeError("No service type received. Please ask the user to specify their service.")
	}
	if strings.EqualFold(incoming, strings.TrimSpace(user.ServiceType)) {
		return noChange("Service type unchanged.")
	}

	user.ServiceType = incoming
	return MergeResult{
		Status:  StatusUpdated,
		Changed: map[string]any{"service_type": incoming},
		Message: fmt.Sprintf("Service type saved: %s", incoming),
	}
}

// MergeVehicle reconciles structured car details against the vehicle record.
func MergeVehicle(vehicle *schema.Vehicle, args map[string]any) MergeResult {
	if vehicle == nil {
		return mergeError("no vehicle record in context")
	}

	changed := map[string]any{}

	stringFields := []struct {
		key     string
		current *string
	}{
		{"make", &vehicle.Make},
		{"model", &vehicle.Model},
		{"fuel_type", &vehicle.FuelType},
		{"transmission", &vehicle.Transmission},
	}
	for _, f := range stringFields {
		incoming := stringArg(args, f.key)
		if incoming == "" || incoming == strings.TrimSpace(*f.current) {
			continue
		}
		*f.current = incoming
		changed[f.key] = incoming
	}

	if year := intArg(args, "year"); year != 0 && year != vehicle.Year {
		vehicle.Year = year
		changed["year"] = year
	}

	if len(changed) == 0 {
		return noChange("Car details unchanged.")
	}
	return MergeResult{
		Status:  StatusUpdated,
		Changed: changed,
		Message: fmt.Sprintf("Updated car details: %s. Please confirm if these are correct.", vehicle.Descriptor()),
	}
}
