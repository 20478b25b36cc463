// Package schema holds the structured records the chatbot collects over a
// conversation: the customer profile (including the booking fields) and the
// vehicle details.
package schema

import (
	"strconv"
	"strings"
)

// User is one customer profile. UID is assigned once at conversation start
// and never reassigned in place; the Identity Linker may swap the whole
// record for a persisted one. Booking fields (service type, schedule,
// payment) live on the profile, matching the persisted row shape.
type User struct {
	UID          string `json:"uid"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
	ContactNum   string `json:"contact_num,omitempty"`
	ServiceType  string `json:"service_type,omitempty"`
	ScheduleDate string `json:"schedule_date,omitempty"`
	ScheduleTime string `json:"schedule_time,omitempty"`
	Payment      string `json:"payment,omitempty"`
	// Car is the flat descriptor, e.g. "Toyota Vios 2012". Derived from
	// Vehicle when structured details exist; kept as entered otherwise.
	Car string `json:"car,omitempty"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// Vehicle is the structured car record maintained by the mechanic tools.
type Vehicle struct {
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         int    `json:"year,omitempty"`
	FuelType     string `json:"fuel_type,omitempty"`
	Transmission string `json:"transmission,omitempty"`
}

func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// Descriptor formats the vehicle as "{make} {model} {year}", skipping parts
// that are unset. Empty when nothing is known.
func (v *Vehicle) Descriptor() string {
	if v == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(v.Make); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(v.Model); s != "" {
		parts = append(parts, s)
	}
	if v.Year != 0 {
		parts = append(parts, strconv.Itoa(v.Year))
	}
	return strings.Join(parts, " ")
}

// ParseVehicle is the inverse of Descriptor, used when rehydrating a session
// from a persisted profile whose car field is a flat string. A trailing
// numeric token is taken as the year; the first remaining token as the make
// and the rest as the model.
func ParseVehicle(descriptor string) Vehicle {
	var v Vehicle

	fields := strings.Fields(strings.TrimSpace(descriptor))
	if len(fields) == 0 {
		return v
	}

	if year, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
		v.Year = year
		fields = fields[:len(fields)-1]
	}
	if len(fields) > 0 {
		v.Make = fields[0]
	}
	if len(fields) > 1 {
		v.Model = strings.Join(fields[1:], " ")
	}
	return v
}
