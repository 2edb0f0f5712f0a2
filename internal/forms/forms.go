package forms

import "dams/internal/model"

// Login is the body of POST /auth/login. Any non-empty password is accepted;
// the length rule applies to registration only.
type Login struct {
	Email    string     `json:"email" validate:"notblank,email_address"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role" validate:"required,oneof=DOCTOR PATIENT"`
}

// Validate checks the login form.
func (f Login) Validate() error { return check(f) }

// PatientRegistration is the body of POST /auth/register/patient.
type PatientRegistration struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"notblank,email_address"`
	Password string `json:"password" validate:"required,min=6"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Validate checks the patient registration form.
func (f PatientRegistration) Validate() error { return check(f) }

// DoctorRegistration is the body of POST /auth/register/doctor.
type DoctorRegistration struct {
	PatientRegistration
	Specialization string `json:"specialization" validate:"notblank"`
}

// Validate checks the doctor registration form.
func (f DoctorRegistration) Validate() error { return check(f) }
