package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies which side of an appointment a user is on.
type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// ParseRole normalises user input such as "patient" into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// DashboardPath returns the landing page for the role.
func (r Role) DashboardPath() string {
	switch r {
	case RoleDoctor:
		return "/doctor/dashboard"
	case RolePatient:
		return "/patient/dashboard"
	}
	return "/dashboard"
}

// User is the authenticated account returned by the auth endpoints.
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	PhotoURL       string     `json:"photo_url,omitempty"`
	Specialization string     `json:"specialization,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// UnmarshalJSON accepts both "id" and "_id".
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}

// Doctor is a bookable practitioner. Read-only from the client.
type Doctor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Specialization string `json:"specialization"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

// UnmarshalJSON accepts both "id" and "_id".
func (d *Doctor) UnmarshalJSON(b []byte) error {
	type plain Doctor
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*d = Doctor(aux.plain)
	if d.ID == "" {
		d.ID = aux.MongoID
	}
	return nil
}

// Appointment is a booking between a patient and a doctor.
// Patient listings embed the doctor, doctor listings carry the patient name.
type Appointment struct {
	ID          string  `json:"id"`
	DoctorID    string  `json:"doctorId,omitempty"`
	Doctor      *Doctor `json:"doctor,omitempty"`
	PatientID   string  `json:"patientId,omitempty"`
	PatientName string  `json:"patientName,omitempty"`
	Date        string  `json:"date"`
	Status      Status  `json:"status"`
}

// UnmarshalJSON accepts both "id" and "_id".
func (a *Appointment) UnmarshalJSON(b []byte) error {
	type plain Appointment
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*a = Appointment(aux.plain)
	if a.ID == "" {
		a.ID = aux.MongoID
	}
	return nil
}

// When parses Date. The zero time is returned for missing or malformed dates.
func (a Appointment) When() time.Time {
	if a.Date == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, a.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatDate renders Date for display, or "Invalid date".
func (a Appointment) FormatDate() string {
	t := a.When()
	if t.IsZero() {
		return "Invalid date"
	}
	return t.Local().Format("Jan 2, 2006, 3:04 PM")
}

// Counterpart returns the name of the other party for display.
func (a Appointment) Counterpart() string {
	if a.PatientName != "" {
		return a.PatientName
	}
	if a.Doctor != nil && a.Doctor.Name != "" {
		return a.Doctor.Name
	}
	return "N/A"
}
