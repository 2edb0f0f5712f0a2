package mockapi

import (
	"context"
	"errors"
	"fmt"

	"dams/internal/forms"
	"dams/internal/model"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password123"

// SeedPatientEmail is the seeded demo patient.
const SeedPatientEmail = "patient@example.com"

var seedDoctors = []forms.DoctorRegistration{
	{PatientRegistration: forms.PatientRegistration{Name: "Dr. Amelia Hart", Email: "amelia.hart@example.com", PhotoURL: "https://randomuser.me/api/portraits/women/44.jpg"}, Specialization: "Cardiology"},
	{PatientRegistration: forms.PatientRegistration{Name: "Dr. Bashir Rahman", Email: "bashir.rahman@example.com", PhotoURL: "https://randomuser.me/api/portraits/men/32.jpg"}, Specialization: "Dermatology"},
	{PatientRegistration: forms.PatientRegistration{Name: "Dr. Chloe Nguyen", Email: "chloe.nguyen@example.com", PhotoURL: "https://randomuser.me/api/portraits/women/68.jpg"}, Specialization: "Neurology"},
	{PatientRegistration: forms.PatientRegistration{Name: "Dr. Daniel Okafor", Email: "daniel.okafor@example.com", PhotoURL: "https://randomuser.me/api/portraits/men/75.jpg"}, Specialization: "Pediatrics"},
	{PatientRegistration: forms.PatientRegistration{Name: "Dr. Elena Petrova", Email: "elena.petrova@example.com"}, Specialization: "Cardiology"},
	{PatientRegistration: forms.PatientRegistration{Name: "Dr. Farid Haque", Email: "farid.haque@example.com", PhotoURL: "https://example.org/untrusted.jpg"}, Specialization: "Orthopedics"},
}

// Seed registers the demo doctors and one demo patient. Accounts that
// already exist are skipped.
func (s *Service) Seed(ctx context.Context) error {
	for _, d := range seedDoctors {
		d.Password = SeedPassword
		if err := s.seedOne(ctx, model.RoleDoctor, d); err != nil {
			return err
		}
	}
	patient := forms.DoctorRegistration{PatientRegistration: forms.PatientRegistration{
		Name:     "Pat Example",
		Email:    SeedPatientEmail,
		Password: SeedPassword,
	}}
	return s.seedOne(ctx, model.RolePatient, patient)
}

func (s *Service) seedOne(ctx context.Context, role model.Role, form forms.DoctorRegistration) error {
	_, err := s.Register(ctx, role, form)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == 409 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed %s: %w", form.Email, err)
	}
	return nil
}
