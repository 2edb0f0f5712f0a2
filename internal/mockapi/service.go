package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dams/internal/auth"
	"dams/internal/forms"
	"dams/internal/model"
)

// Error is a failure with the HTTP status and message sent to the client.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%d %s", e.Status, e.Message) }

func newError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Options configures token issuing and password hashing.
type Options struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	BcryptCost int
}

// Service implements the appointment API rules on top of a Repository.
type Service struct {
	repo *Repository
	opts Options
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, opts Options) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, opts: opts}
}

// Session is what login and registration return to the client.
type Session struct {
	Token string
	User  model.User
}

// Register creates an account for role and logs it in.
func (s *Service) Register(ctx context.Context, role model.Role, form forms.DoctorRegistration) (Session, error) {
	var err error
	if role == model.RoleDoctor {
		err = form.Validate()
	} else {
		err = form.PatientRegistration.Validate()
		form.Specialization = ""
	}
	var vErr *forms.ValidationError
	if errors.As(err, &vErr) {
		return Session{}, newError(http.StatusBadRequest, vErr.Message())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.opts.BcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	acc, err := s.repo.InsertAccount(ctx, Account{
		User: model.User{
			Name:           form.Name,
			Email:          form.Email,
			Role:           role,
			PhotoURL:       form.PhotoURL,
			Specialization: form.Specialization,
		},
		PasswordHash: hash,
	})
	if errors.Is(err, ErrEmailTaken) {
		return Session{}, newError(http.StatusConflict, "User already exists with this email")
	}
	if err != nil {
		return Session{}, err
	}
	return s.issue(acc.User)
}

// Login checks credentials. The role must match the account's role.
func (s *Service) Login(ctx context.Context, form forms.Login) (Session, error) {
	var vErr *forms.ValidationError
	if errors.As(form.Validate(), &vErr) {
		return Session{}, newError(http.StatusBadRequest, vErr.Message())
	}
	invalid := newError(http.StatusUnauthorized, "Invalid email or password")

	acc, err := s.repo.AccountByEmail(ctx, form.Email)
	if errors.Is(err, ErrNotFound) {
		return Session{}, invalid
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(form.Password)) != nil || acc.Role != form.Role {
		return Session{}, invalid
	}
	return s.issue(acc.User)
}

func (s *Service) issue(u model.User) (Session, error) {
	tok, err := auth.Issue(u.ID, string(u.Role), s.opts.Issuer, s.opts.SigningKey, s.opts.AccessTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: tok.Value, User: u}, nil
}

// Book creates a PENDING appointment for patientID with doctorID.
func (s *Service) Book(ctx context.Context, patientID, doctorID, date string) (Appointment, error) {
	if doctorID == "" {
		return Appointment{}, newError(http.StatusBadRequest, "doctorId is required")
	}
	when, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return Appointment{}, newError(http.StatusBadRequest, "Invalid date format")
	}
	doc, err := s.repo.Account(ctx, doctorID)
	if errors.Is(err, ErrNotFound) || (err == nil && doc.Role != model.RoleDoctor) {
		return Appointment{}, newError(http.StatusNotFound, "Doctor not found")
	}
	if err != nil {
		return Appointment{}, err
	}
	return s.repo.InsertAppointment(ctx, Appointment{
		DoctorID:  doc.ID,
		PatientID: patientID,
		Date:      when.UTC(),
		Status:    model.StatusPending,
	})
}

// UpdateStatus applies a status change requested by the caller. Only the
// appointment's doctor or patient may change it, patients may only cancel,
// and only PENDING appointments change at all.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Claims, id string, status model.Status) (Appointment, error) {
	if id == "" {
		return Appointment{}, newError(http.StatusBadRequest, "appointment_id is required")
	}
	if !status.UpdateTarget() {
		return Appointment{}, newError(http.StatusBadRequest, "Status must be COMPLETE or CANCELLED")
	}
	appt, err := s.repo.AppointmentByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Appointment{}, newError(http.StatusNotFound, "Appointment not found")
	}
	if err != nil {
		return Appointment{}, err
	}

	switch model.Role(caller.Role) {
	case model.RoleDoctor:
		if appt.DoctorID != caller.Subject {
			return Appointment{}, newError(http.StatusForbidden, "You can only update your own appointments")
		}
	case model.RolePatient:
		if appt.PatientID != caller.Subject {
			return Appointment{}, newError(http.StatusForbidden, "You can only update your own appointments")
		}
		if status != model.StatusCancelled {
			return Appointment{}, newError(http.StatusForbidden, "Patients can only cancel appointments")
		}
	default:
		return Appointment{}, newError(http.StatusForbidden, "Forbidden")
	}

	stale := newError(http.StatusBadRequest, "Only pending appointments can be updated")
	if !model.CanTransition(appt.Status, status) {
		return Appointment{}, stale
	}
	updated, err := s.repo.SetStatus(ctx, id, appt.Status, status)
	if errors.Is(err, ErrStaleStatus) {
		return Appointment{}, stale
	}
	return updated, err
}
