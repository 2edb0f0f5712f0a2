package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dams/internal/model"
)

// PatientQuery filters the logged-in patient's appointments.
type PatientQuery struct {
	Status model.Status
	Page   int
	// Limit is the page size. Zero omits the parameter and assumes DefaultPageSize.
	Limit  int
}

// DoctorScheduleQuery filters the logged-in doctor's appointments. Date is a
// calendar day (YYYY-MM-DD); empty means any day.
type DoctorScheduleQuery struct {
	Status model.Status
	Date   string
	Page   int
	Limit  int
}

// AppointmentResource wraps the /appointments endpoints.
type AppointmentResource struct {
	c *Client
}

type patientAppointmentsResponse struct {
	envelope
	Data  []model.Appointment `json:"data"`
	Total *int                `json:"total"`
}

type doctorAppointmentsResponse struct {
	envelope
	Appointments []model.Appointment `json:"appointments"`
	Total        *int                `json:"total"`
}

type appointmentResponse struct {
	envelope
	Data *model.Appointment `json:"data"`
}

type createAppointmentRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
}

type updateStatusRequest struct {
	AppointmentID string       `json:"appointment_id"`
	Status        model.Status `json:"status"`
}

// Create books an appointment with doctorID at date.
func (r *AppointmentResource) Create(ctx context.Context, doctorID string, date time.Time) (model.Appointment, error) {
	if doctorID == "" {
		return model.Appointment{}, fmt.Errorf("doctor: %w", ErrMissingID)
	}
	raw, err := r.c.mutate(ctx, call{
		resource: "appointment",
		method:   http.MethodPost,
		path:     "/appointments",
		body:     createAppointmentRequest{DoctorID: doctorID, Date: date.UTC().Format(time.RFC3339)},
	}, TagAppointment)
	if err != nil {
		return model.Appointment{}, err
	}
	return decodeAppointment(raw)
}

// ListForPatient returns one page of the patient's appointments.
func (r *AppointmentResource) ListForPatient(ctx context.Context, q PatientQuery) (model.Page[model.Appointment], error) {
	page := max(q.Page, 1)
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	v.Set("page", strconv.Itoa(page))
	limit := pageLimit(v, q.Limit)

	raw, err := r.c.query(ctx, TagAppointment, call{
		resource: "appointment",
		method:   http.MethodGet,
		path:     "/appointments/patient",
		query:    v,
	})
	if err != nil {
		return model.Page[model.Appointment]{}, err
	}
	out, err := decode[patientAppointmentsResponse]("appointment", raw)
	if err != nil {
		return model.Page[model.Appointment]{}, err
	}
	return newPage(out.Data, page, limit, out.Total), nil
}

// ListForDoctor returns one page of the doctor's schedule. The endpoint does
// not report a total, so HasNext falls back to the full-page heuristic.
func (r *AppointmentResource) ListForDoctor(ctx context.Context, q DoctorScheduleQuery) (model.Page[model.Appointment], error) {
	page := max(q.Page, 1)
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.Date != "" {
		v.Set("date", q.Date)
	}
	v.Set("page", strconv.Itoa(page))
	limit := pageLimit(v, q.Limit)

	raw, err := r.c.query(ctx, TagAppointment, call{
		resource: "appointment",
		method:   http.MethodGet,
		path:     "/appointments/doctor",
		query:    v,
	})
	if err != nil {
		return model.Page[model.Appointment]{}, err
	}
	out, err := decode[doctorAppointmentsResponse]("appointment", raw)
	if err != nil {
		return model.Page[model.Appointment]{}, err
	}
	return newPage(out.Appointments, page, limit, out.Total), nil
}

// pageLimit sets the limit parameter when one is requested and returns the
// page size used for pagination.
func pageLimit(v url.Values, limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	v.Set("limit", strconv.Itoa(limit))
	return limit
}

// UpdateStatus moves an appointment to COMPLETE or CANCELLED. Any other
// target is rejected before a request is made.
func (r *AppointmentResource) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	if id == "" {
		return model.Appointment{}, fmt.Errorf("appointment: %w", ErrMissingID)
	}
	if !status.UpdateTarget() {
		return model.Appointment{}, fmt.Errorf("%w: got %q", ErrInvalidStatus, status)
	}
	raw, err := r.c.mutate(ctx, call{
		resource: "appointment",
		method:   http.MethodPatch,
		path:     "/appointments/update-status",
		body:     updateStatusRequest{AppointmentID: id, Status: status},
	}, TagAppointment)
	if err != nil {
		return model.Appointment{}, err
	}
	return decodeAppointment(raw)
}

// decodeAppointment accepts both {data: {...}} and a bare appointment object.
func decodeAppointment(raw []byte) (model.Appointment, error) {
	out, err := decode[appointmentResponse]("appointment", raw)
	if err != nil {
		return model.Appointment{}, err
	}
	if out.Data != nil {
		return *out.Data, nil
	}
	var bare model.Appointment
	if err := json.Unmarshal(raw, &bare); err == nil && bare.ID != "" {
		return bare, nil
	}
	return model.Appointment{}, nil
}
