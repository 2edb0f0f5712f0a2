package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dams/internal/apiclient"
	"dams/internal/forms"
	"dams/internal/model"
)

type fakeCreator struct {
	calls atomic.Int32
	gate  chan struct{}
	got   time.Time
}

func (f *fakeCreator) Create(ctx context.Context, doctorID string, date time.Time) (model.Appointment, error) {
	f.calls.Add(1)
	f.got = date
	if f.gate != nil {
		<-f.gate
	}
	return model.Appointment{ID: "new", DoctorID: doctorID, Status: model.StatusPending}, nil
}

func TestBookRequiresDate(t *testing.T) {
	c := &fakeCreator{}
	_, err := NewBooker(c).Book(context.Background(), model.Doctor{ID: "d1"}, time.Time{})
	if !errors.Is(err, ErrDateRequired) || c.calls.Load() != 0 {
		t.Fatalf("err %v calls %d", err, c.calls.Load())
	}
}

func TestBookMissingDoctorID(t *testing.T) {
	c := &fakeCreator{}
	_, err := NewBooker(c).Book(context.Background(), model.Doctor{Name: "Dr. No"}, time.Now())
	var vErr *forms.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := apiclient.ErrorMessage(err, apiclient.FallbackBooking); got != "Doctor ID missing. Cannot book appointment." {
		t.Errorf("message %q", got)
	}
	if c.calls.Load() != 0 {
		t.Fatal("create must not be called")
	}
}

func TestBookSendsUTC(t *testing.T) {
	c := &fakeCreator{}
	when := time.Date(2025, 6, 1, 9, 0, 0, 0, time.FixedZone("X", 2*3600))
	appt, err := NewBooker(c).Book(context.Background(), model.Doctor{ID: "d1"}, when)
	if err != nil {
		t.Fatal(err)
	}
	if appt.DoctorID != "d1" || c.got.Location() != time.UTC || !c.got.Equal(when) {
		t.Errorf("appt %+v date %v", appt, c.got)
	}
}

func TestBookOneAtATime(t *testing.T) {
	c := &fakeCreator{gate: make(chan struct{})}
	b := NewBooker(c)
	done := make(chan error, 1)
	go func() {
		_, err := b.Book(context.Background(), model.Doctor{ID: "d1"}, time.Now())
		done <- err
	}()
	for c.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := b.Book(context.Background(), model.Doctor{ID: "d1"}, time.Now()); !errors.Is(err, ErrBookingInFlight) {
		t.Errorf("expected ErrBookingInFlight, got %v", err)
	}
	close(c.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if c.calls.Load() != 1 {
		t.Errorf("calls %d", c.calls.Load())
	}
}
