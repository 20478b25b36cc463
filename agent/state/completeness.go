package state

import "strings"

// Required field labels in the order the orchestrator asks for them.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldContact  = "contact number"
	FieldAddress  = "service location"
	FieldCar      = "car details"
	FieldService  = "service type"
	FieldSchedule = "schedule (date/time)"
	FieldPayment  = "payment method"
)

func filled(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Evaluate recomputes which required fields are still missing and whether
// the booking is ready to persist. Pure; never cached, because any field may
// be edited on any turn. Schedule counts as present only when both halves
// are set; the car descriptor counts when either the structured vehicle or
// the user-entered free text carries it.
func Evaluate(sc *SharedContext) (missing []string, ready bool) {
	if sc == nil || sc.User == nil {
		return []string{
			FieldName, FieldEmail, FieldContact, FieldAddress,
			FieldCar, FieldService, FieldSchedule, FieldPayment,
		}, false
	}

	user := sc.User
	car := user.Car
	if car == "" {
		car = sc.Vehicle.Descriptor()
	}

	checks := []struct {
		label string
		ok    bool
	}{
		{FieldName, filled(user.Name)},
		{FieldEmail, filled(user.Email)},
		{FieldContact, filled(user.ContactNum)},
		{FieldAddress, filled(user.Address)},
		{FieldCar, filled(car)},
		{FieldService, filled(user.ServiceType)},
		{FieldSchedule, filled(user.ScheduleDate) && filled(user.ScheduleTime)},
		{FieldPayment, filled(user.Payment)},
	}

	for _, c := range checks {
		if !c.ok {
			missing = append(missing, c.label)
		}
	}
	return missing, len(missing) == 0
}
