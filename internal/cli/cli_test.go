package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"dams/internal/apiclient"
	"dams/internal/mockapi"
	"dams/internal/session"
	"dams/internal/store"
)

type harness struct {
	t       *testing.T
	baseURL string
	storage store.Storage
	out     bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := mockapi.New(mockapi.Config{Options: mockapi.Options{
		Issuer:     "dams-test",
		SigningKey: "test-key",
		AccessTTL:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}})
	if err := srv.Service().Seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, baseURL: ts.URL + "/api/v1", storage: store.NewMemory()}
}

// run executes one command the way a fresh process would: the session is
// reloaded from storage each time.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	ctx := context.Background()
	sess := session.New(h.storage, nil)
	sess.Load(ctx)
	app := &App{
		Session: sess,
		Client:  apiclient.New(apiclient.Options{BaseURL: h.baseURL, Tokens: sess, CacheTTL: time.Minute}),
		In:      strings.NewReader(stdin),
		Out:     &h.out,
	}
	h.out.Reset()
	err := app.Run(ctx, args)
	return h.out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	if err != nil {
		h.t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func (h *harness) loginPatient() {
	h.mustRun("login", "-email", mockapi.SeedPatientEmail, "-password", mockapi.SeedPassword, "-role", "patient")
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	if _, err := h.run("", "whoami"); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}

	out := h.mustRun("login", "-email", mockapi.SeedPatientEmail, "-password", mockapi.SeedPassword, "-role", "PATIENT")
	if !strings.Contains(out, "/patient/dashboard") {
		t.Errorf("login output %q", out)
	}

	out = h.mustRun("whoami")
	for _, want := range []string{"Pat Example", "PATIENT", "/patient/dashboard", "Token:      valid"} {
		if !strings.Contains(out, want) {
			t.Errorf("whoami missing %q:\n%s", want, out)
		}
	}

	h.mustRun("logout")
	if _, err := h.run("", "whoami"); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("session should be gone after logout, got %v", err)
	}
}

func TestLoginErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "login", "-email", "bad", "-password", "x", "-role", "patient")
	if err == nil || err.Error() != "Invalid email address" {
		t.Errorf("validation: %v", err)
	}
	_, err = h.run("", "login", "-email", mockapi.SeedPatientEmail, "-password", "nope", "-role", "patient")
	if err == nil || err.Error() != "Invalid email or password" {
		t.Errorf("bad password: %v", err)
	}
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("display error should unwrap to the API error: %v", err)
	}
}

func TestRegisterPatientWithPhotoURL(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("register-patient", "-name", "Nia", "-email", "nia@example.com", "-password", "secret1",
		"-photo", "https://randomuser.me/api/portraits/women/1.jpg")
	if !strings.Contains(out, "Registered as Nia (PATIENT)") {
		t.Errorf("output %q", out)
	}

	_, err := h.run("", "register-doctor", "-name", "Dr. X", "-email", "x@example.com", "-password", "secret1",
		"-specialization", "Oncology", "-photo", "./me.png")
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("local photo without cloudinary: %v", err)
	}
}

func TestUploadedPhotosAreShown(t *testing.T) {
	h := newHarness(t)
	photo := "https://res.cloudinary.com/demo/image/upload/v1/dams/profiles/zed.png"
	h.mustRun("register-doctor", "-name", "Dr. Zed", "-email", "zed@example.com", "-password", "secret1",
		"-specialization", "Oncology", "-photo", photo)

	out := h.mustRun("doctors", "-search", "zed")
	if !strings.Contains(out, photo) {
		t.Errorf("cloudinary photo replaced by placeholder:\n%s", out)
	}
}

func TestDoctorsListing(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("doctors")
	for _, want := range []string{"Specializations: Cardiology", "Dr. Amelia Hart", "https://randomuser.me/", "/default-doctor.png", "Page 1 of 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctors output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "example.org") {
		t.Errorf("untrusted photo host leaked:\n%s", out)
	}

	out = h.mustRun("doctors", "-search", "zzz")
	if !strings.Contains(out, "No doctors found") {
		t.Errorf("empty search output:\n%s", out)
	}
}

func TestBookListAndCancel(t *testing.T) {
	h := newHarness(t)
	h.loginPatient()

	if out := h.mustRun("appointments"); !strings.Contains(out, "No appointments found") {
		t.Fatalf("expected empty list:\n%s", out)
	}

	_, err := h.run("", "book", "-doctor", "", "-date", "2030-01-02T09:30")
	if err == nil || err.Error() != "Doctor ID missing. Cannot book appointment." {
		t.Fatalf("missing doctor: %v", err)
	}
	if _, err := h.run("", "book", "-doctor", "x"); !errors.Is(err, ErrUsage) {
		t.Fatalf("missing date: %v", err)
	}
	_, err = h.run("", "book", "-doctor", "no-such-doctor", "-date", "2030-01-02")
	if err == nil || err.Error() != "Doctor not found" {
		t.Fatalf("unknown doctor: %v", err)
	}

	doctorID := firstColumn(t, h.mustRun("doctors"), "Dr. Amelia Hart")
	out := h.mustRun("book", "-doctor", doctorID, "-date", "2030-01-02T09:30")
	if !strings.Contains(out, "Appointment booked") {
		t.Fatalf("book output %q", out)
	}

	out = h.mustRun("appointments", "-status", "pending")
	if !strings.Contains(out, "Dr. Amelia Hart") || !strings.Contains(out, "PENDING") {
		t.Fatalf("list output:\n%s", out)
	}
	apptID := firstColumn(t, out, "Dr. Amelia Hart")

	if _, err := h.run("", "complete", apptID); err == nil {
		t.Error("patients must not run complete")
	}

	out, err = h.run("n\n", "cancel", apptID)
	if err != nil || !strings.Contains(out, "Cancel Appointment") || !strings.Contains(out, "Dismissed") {
		t.Fatalf("dismissed cancel: %v\n%s", err, out)
	}

	out, err = h.run("y\n", "cancel", apptID)
	if err != nil || !strings.Contains(out, "is now CANCELLED") {
		t.Fatalf("cancel: %v\n%s", err, out)
	}

	out = h.mustRun("cancel", apptID, "-yes")
	if !strings.Contains(out, "nothing to cancel") {
		t.Errorf("second cancel should be a no-op:\n%s", out)
	}
}

func TestDoctorScheduleAndComplete(t *testing.T) {
	h := newHarness(t)
	h.loginPatient()
	doctorID := firstColumn(t, h.mustRun("doctors"), "Dr. Bashir Rahman")
	h.mustRun("book", "-doctor", doctorID, "-date", "2030-02-03T10:00")

	h.mustRun("login", "-email", "bashir.rahman@example.com", "-password", mockapi.SeedPassword, "-role", "doctor")
	if _, err := h.run("", "appointments"); err == nil {
		t.Error("doctors must not use the patient list")
	}

	out := h.mustRun("schedule")
	if !strings.Contains(out, "Pat Example") || !strings.Contains(out, "Page 1") || strings.Contains(out, "next:") {
		t.Fatalf("schedule output:\n%s", out)
	}
	apptID := firstColumn(t, out, "Pat Example")

	out = h.mustRun("complete", "-yes", apptID)
	if !strings.Contains(out, "is now COMPLETE") {
		t.Fatalf("complete output:\n%s", out)
	}
	out = h.mustRun("schedule", "-status", "PENDING")
	if !strings.Contains(out, "No appointments found") {
		t.Errorf("pending filter after completion:\n%s", out)
	}
	if _, err := h.run("", "schedule", "-date", "03/02/2030"); !errors.Is(err, ErrUsage) {
		t.Errorf("bad date filter: %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("", "frobnicate")
	if !errors.Is(err, ErrUsage) || !strings.Contains(out, "usage: dams") {
		t.Fatalf("err %v out %q", err, out)
	}
	if _, err := h.run("", "help"); err != nil {
		t.Fatalf("help: %v", err)
	}
}

func TestFooter(t *testing.T) {
	var buf bytes.Buffer
	a := &App{Out: &buf}
	a.footer(2, 3, true, true)
	if got := buf.String(); got != "Page 2 of 3 (prev: -page 1, next: -page 3)\n" {
		t.Errorf("footer %q", got)
	}
	buf.Reset()
	a.footer(1, 0, false, false)
	if got := buf.String(); got != "Page 1\n" {
		t.Errorf("footer %q", got)
	}
}

// firstColumn returns the first field of the table row containing needle.
func firstColumn(t *testing.T, out, needle string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, needle) {
			return strings.Fields(line)[0]
		}
	}
	t.Fatalf("no row containing %q in:\n%s", needle, out)
	return ""
}
