package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"dams/internal/forms"
	"dams/internal/model"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc, token string) (*Client, *Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := NewMetrics(nil)
	c := New(Options{
		BaseURL:  srv.URL,
		HTTP:     srv.Client(),
		Tokens:   staticToken(token),
		CacheTTL: time.Minute,
		Metrics:  m,
	})
	return c, m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginSendsFormAndDecodesEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("anonymous request carried Authorization header")
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing X-Request-ID")
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
		var body forms.Login
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email != "pat@example.com" || body.Password != "pw" || body.Role != model.RolePatient {
			t.Errorf("unexpected body %+v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"statusCode": 200,
			"message":    "Login successful",
			"data": map[string]any{
				"token": "tok-1",
				"user":  map[string]any{"_id": "u1", "name": "Pat", "email": "pat@example.com", "role": "PATIENT"},
			},
		})
	}, "")

	res, err := c.Auth.Login(context.Background(), "pat@example.com", "pw", model.RolePatient)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "tok-1" || res.User.ID != "u1" || res.User.Role != model.RolePatient {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoginMissingDataIsInvalidResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "ok"})
	}, "")

	_, err := c.Auth.Login(context.Background(), "pat@example.com", "pw", model.RolePatient)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if got := ErrorMessage(err, FallbackLogin); got != "Invalid response format" {
		t.Errorf("message %q", got)
	}
}

func TestValidationNeverReachesNetwork(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, "")

	_, err := c.Auth.Login(context.Background(), "not-an-email", "pw", model.RolePatient)
	var vErr *forms.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := ErrorMessage(err, FallbackLogin); got != "Invalid email address" {
		t.Errorf("message %q", got)
	}
	_, err = c.Auth.RegisterDoctor(context.Background(), forms.DoctorRegistration{})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("validation failures hit the server %d times", hits.Load())
	}
}

func TestErrorMessageFromAPI(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		want    string
		wantErr int
	}{
		{"message field", http.StatusUnauthorized, map[string]any{"success": false, "statusCode": 401, "message": "Invalid email or password"}, "Invalid email or password", 401},
		{"no message", http.StatusInternalServerError, map[string]any{}, FallbackLogin, 500},
		{"success false on 200", http.StatusOK, map[string]any{"success": false, "statusCode": 409, "message": "Email already in use"}, "Email already in use", 409},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}, "")
			_, err := c.Auth.Login(context.Background(), "pat@example.com", "pw", model.RolePatient)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.wantErr {
				t.Errorf("status %d, want %d", apiErr.StatusCode, tt.wantErr)
			}
			if got := ErrorMessage(err, FallbackLogin); got != tt.want {
				t.Errorf("message %q, want %q", got, tt.want)
			}
			if !IsStatus(err, tt.wantErr) {
				t.Errorf("IsStatus(%d) false", tt.wantErr)
			}
		})
	}
}

func TestTransportErrorIsWrapped(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.Doctors.ListSpecializations(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure should not be an APIError: %v", err)
	}
	if got := ErrorMessage(err, FallbackBooking); got == FallbackBooking || got == "" {
		t.Errorf("expected transport text, got %q", got)
	}
	if ErrorMessage(nil, FallbackBooking) != "" {
		t.Errorf("nil error should produce no message")
	}
}

func TestBearerTokenOnAppointmentList(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-9" {
			t.Errorf("authorization %q", got)
		}
		if r.URL.Path != "/appointments/patient" {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.URL.Query().Get("status") != "PENDING" || r.URL.Query().Get("page") != "2" {
			t.Errorf("query %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": []map[string]any{
				{"_id": "a1", "date": "2025-01-02T10:00:00Z", "status": "PENDING", "doctor": map[string]any{"name": "Dr. Who", "specialization": "Cardiology"}},
			},
			"total": 11,
		})
	}, "tok-9")

	page, err := c.Appointments.ListForPatient(context.Background(), PatientQuery{Status: model.StatusPending, Page: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "a1" || page.Items[0].Doctor.Name != "Dr. Who" {
		t.Fatalf("unexpected items %+v", page.Items)
	}
	if !page.HasTotal || page.Total != 11 || page.HasNext() {
		t.Errorf("page 2 of 11 items should be the last: %+v", page)
	}
}

func TestDoctorScheduleUsesHeuristic(t *testing.T) {
	var count atomic.Int32
	count.Store(10)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") != "2025-03-04" {
			t.Errorf("query %s", r.URL.RawQuery)
		}
		items := make([]map[string]any, count.Load())
		for i := range items {
			items[i] = map[string]any{"id": "x", "patientName": "P", "date": "2025-03-04T09:00:00Z", "status": "PENDING"}
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "appointments": items})
	}, "tok")

	page, err := c.Appointments.ListForDoctor(context.Background(), DoctorScheduleQuery{Date: "2025-03-04"})
	if err != nil {
		t.Fatal(err)
	}
	if page.HasTotal || !page.HasNext() || page.Page != 1 {
		t.Errorf("full page without total should offer next: %+v", page)
	}

	count.Store(3)
	c.Invalidate(TagAppointment)
	page, err = c.Appointments.ListForDoctor(context.Background(), DoctorScheduleQuery{Date: "2025-03-04"})
	if err != nil {
		t.Fatal(err)
	}
	if page.HasNext() {
		t.Errorf("short page should be last")
	}
}

func TestAppointmentListsHonourLimit(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "3" {
			t.Errorf("%s: query %s", r.URL.Path, r.URL.RawQuery)
		}
		items := []map[string]any{{"id": "a"}, {"id": "b"}, {"id": "c"}}
		if r.URL.Path == "/appointments/doctor" {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "appointments": items})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": items, "total": 7})
	}, "tok")
	ctx := context.Background()

	sched, err := c.Appointments.ListForDoctor(ctx, DoctorScheduleQuery{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if sched.Limit != 3 || !sched.HasNext() {
		t.Errorf("full page of 3 should offer next: %+v", sched)
	}

	mine, err := c.Appointments.ListForPatient(ctx, PatientQuery{Limit: 3, Page: 3})
	if err != nil {
		t.Fatal(err)
	}
	if mine.TotalPages() != 3 || mine.HasNext() {
		t.Errorf("7 items at 3 per page: %+v", mine)
	}
}

func TestListDoctorsQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "1" || q.Get("limit") != "10" || q.Get("search") != "ali" || q.Get("specialization") != "Cardiology" {
			t.Errorf("query %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    []map[string]any{{"_id": "d1", "name": "Dr. Ali", "specialization": "Cardiology"}},
			"total":   1,
		})
	}, "")

	page, err := c.Doctors.ListDoctors(context.Background(), DoctorQuery{Search: "ali", Specialization: "Cardiology"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Items[0].ID != "d1" || page.TotalPages() != 1 || page.HasNext() {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestQueryCacheHitAndInvalidation(t *testing.T) {
	var lists, updates atomic.Int32
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/appointments/patient":
			lists.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}, "total": 0})
		case "/appointments/update-status":
			updates.Add(1)
			raw, _ := io.ReadAll(r.Body)
			var body map[string]string
			_ = json.Unmarshal(raw, &body)
			if body["appointment_id"] != "a1" || body["status"] != "CANCELLED" {
				t.Errorf("update body %s", raw)
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"_id": "a1", "status": "CANCELLED"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, "tok")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Appointments.ListForPatient(ctx, PatientQuery{Page: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if lists.Load() != 1 {
		t.Fatalf("second identical query should be cached, server saw %d", lists.Load())
	}
	if got := testutil.ToFloat64(m.cache.WithLabelValues("Appointment", "hit")); got != 1 {
		t.Errorf("cache hits = %v", got)
	}

	if _, err := c.Appointments.ListForPatient(ctx, PatientQuery{Page: 2}); err != nil {
		t.Fatal(err)
	}
	if lists.Load() != 2 {
		t.Fatalf("different page must not share a cache entry")
	}

	appt, err := c.Appointments.UpdateStatus(ctx, "a1", model.StatusCancelled)
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != model.StatusCancelled {
		t.Errorf("status %s", appt.Status)
	}
	if _, err := c.Appointments.ListForPatient(ctx, PatientQuery{Page: 1}); err != nil {
		t.Fatal(err)
	}
	if lists.Load() != 3 || updates.Load() != 1 {
		t.Fatalf("mutation should invalidate cached lists: lists=%d updates=%d", lists.Load(), updates.Load())
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("appointment", "PATCH", "200")); got != 1 {
		t.Errorf("request counter = %v", got)
	}
}

func TestUpdateStatusRejectsOtherTargets(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }, "tok")

	for _, st := range []model.Status{model.StatusPending, model.StatusCompleted, "ARCHIVED"} {
		if _, err := c.Appointments.UpdateStatus(context.Background(), "a1", st); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("%s: expected ErrInvalidStatus, got %v", st, err)
		}
	}
	if _, err := c.Appointments.UpdateStatus(context.Background(), "", model.StatusCancelled); !errors.Is(err, ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
	if _, err := c.Appointments.Create(context.Background(), "", time.Now()); !errors.Is(err, ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("rejected updates reached the server")
	}
}

func TestCreateSendsISODate(t *testing.T) {
	when := time.Date(2025, 5, 6, 14, 30, 0, 0, time.FixedZone("X", 3600))
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["doctorId"] != "d1" || body["date"] != "2025-05-06T13:30:00Z" {
			t.Errorf("body %+v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"_id": "a9", "doctorId": "d1", "date": body["date"], "status": "PENDING"})
	}, "tok")

	appt, err := c.Appointments.Create(context.Background(), "d1", when)
	if err != nil {
		t.Fatal(err)
	}
	if appt.ID != "a9" || appt.Status != model.StatusPending {
		t.Errorf("unexpected appointment %+v", appt)
	}
}

func TestConcurrentIdenticalQueriesShareOneRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []string{"Cardiology"}})
	}, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			specs, err := c.Doctors.ListSpecializations(context.Background())
			if err != nil || len(specs) != 1 {
				t.Errorf("specs=%v err=%v", specs, err)
			}
		}()
	}
	for hits.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()
	if hits.Load() != 1 {
		t.Fatalf("expected one request, got %d", hits.Load())
	}
}

func TestCancelledCallerDoesNotFailSharedQuery(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []string{"Cardiology"}})
	}, "")

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Doctors.ListSpecializations(ctxA)
		errA <- err
	}()
	for hits.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		specs []string
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		specs, err := c.Doctors.ListSpecializations(context.Background())
		resB <- result{specs, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting on the shared request")
	}

	close(release)
	b := <-resB
	if b.err != nil || len(b.specs) != 1 {
		t.Fatalf("live caller: specs=%v err=%v", b.specs, b.err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected one request, got %d", hits.Load())
	}
}
