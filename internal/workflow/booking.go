package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"dams/internal/forms"
	"dams/internal/model"
)

var (
	ErrDateRequired    = errors.New("workflow: appointment date required")
	ErrBookingInFlight = errors.New("workflow: booking already in progress")
)

// MissingDoctorID is shown when a doctor record carries no usable id.
const MissingDoctorID = "Doctor ID missing. Cannot book appointment."

// AppointmentCreator creates appointments on the API.
type AppointmentCreator interface {
	Create(ctx context.Context, doctorID string, date time.Time) (model.Appointment, error)
}

// Booker books appointments, one at a time.
type Booker struct {
	creator  AppointmentCreator
	inFlight atomic.Bool
}

func NewBooker(creator AppointmentCreator) *Booker {
	return &Booker{creator: creator}
}

// Book validates locally, then issues a single create request.
func (b *Booker) Book(ctx context.Context, doctor model.Doctor, date time.Time) (model.Appointment, error) {
	if date.IsZero() {
		return model.Appointment{}, ErrDateRequired
	}
	if doctor.ID == "" {
		v := &forms.ValidationError{}
		v.Add("doctorId", MissingDoctorID)
		return model.Appointment{}, v
	}
	if !b.inFlight.CompareAndSwap(false, true) {
		return model.Appointment{}, ErrBookingInFlight
	}
	defer b.inFlight.Store(false)

	return b.creator.Create(ctx, doctor.ID, date.UTC())
}
