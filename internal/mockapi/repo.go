package mockapi

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dams/internal/model"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrEmailTaken  = errors.New("email already registered")
	ErrStaleStatus = errors.New("status changed concurrently")
)

// Account is a stored user with its password hash.
type Account struct {
	model.User
	PasswordHash []byte
}

// Appointment is a stored booking. Names are resolved at read time.
type Appointment struct {
	ID        string
	DoctorID  string
	PatientID string
	Date      time.Time
	Status    model.Status
	CreatedAt time.Time
}

// Repository keeps accounts and appointments in memory.
type Repository struct {
	mu           sync.RWMutex
	accounts     map[string]*Account
	byEmail      map[string]string
	appointments map[string]*Appointment
	order        []string
}

// NewRepository creates an empty repo.
func NewRepository() *Repository {
	return &Repository{
		accounts:     make(map[string]*Account),
		byEmail:      make(map[string]string),
		appointments: make(map[string]*Appointment),
	}
}

// InsertAccount stores a new account, assigning an id when missing.
func (r *Repository) InsertAccount(ctx context.Context, acc Account) (Account, error) {
	email := strings.ToLower(strings.TrimSpace(acc.Email))
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[email]; taken {
		return Account{}, ErrEmailTaken
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acc.Email = email
	acc.CreatedAt, acc.UpdatedAt = &now, &now
	stored := acc
	r.accounts[acc.ID] = &stored
	r.byEmail[email] = acc.ID
	return acc, nil
}

// AccountByEmail looks up an account case-insensitively.
func (r *Repository) AccountByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *r.accounts[id], nil
}

// Account returns the account with id.
func (r *Repository) Account(ctx context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

// Doctors returns one page of doctors matching search (name, case-insensitive)
// and specialization (exact), sorted by name, plus the total match count.
func (r *Repository) Doctors(ctx context.Context, search, specialization string, page, limit int) ([]model.User, int) {
	search = strings.ToLower(strings.TrimSpace(search))
	r.mu.RLock()
	var matches []model.User
	for _, acc := range r.accounts {
		if acc.Role != model.RoleDoctor {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(acc.Name), search) {
			continue
		}
		if specialization != "" && !strings.EqualFold(acc.Specialization, specialization) {
			continue
		}
		matches = append(matches, acc.User)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return paginate(matches, page, limit), len(matches)
}

// Specializations returns the distinct doctor specializations, sorted.
func (r *Repository) Specializations(ctx context.Context) []string {
	r.mu.RLock()
	seen := make(map[string]bool)
	for _, acc := range r.accounts {
		if acc.Role == model.RoleDoctor && acc.Specialization != "" {
			seen[acc.Specialization] = true
		}
	}
	r.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// InsertAppointment writes a new appointment.
func (r *Repository) InsertAppointment(ctx context.Context, appt Appointment) (Appointment, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = model.StatusPending
	}
	appt.CreatedAt = time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := appt
	r.appointments[appt.ID] = &stored
	r.order = append(r.order, appt.ID)
	return appt, nil
}

// AppointmentByID returns one appointment.
func (r *Repository) AppointmentByID(ctx context.Context, id string) (Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.appointments[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return *appt, nil
}

// SetStatus moves an appointment from expect to status. It fails with
// ErrStaleStatus when the stored status is no longer expect.
func (r *Repository) SetStatus(ctx context.Context, id string, expect, status model.Status) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	if appt.Status != expect {
		return Appointment{}, ErrStaleStatus
	}
	appt.Status = status
	return *appt, nil
}

// AppointmentFilter narrows an appointment listing. Zero fields match everything.
type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	Status    model.Status
	Day       string // YYYY-MM-DD, compared in UTC
}

func (f AppointmentFilter) match(a *Appointment) bool {
	if f.DoctorID != "" && a.DoctorID != f.DoctorID {
		return false
	}
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.Status != "" {
		if f.Status.IsComplete() {
			if !a.Status.IsComplete() {
				return false
			}
		} else if a.Status != f.Status {
			return false
		}
	}
	if f.Day != "" && a.Date.UTC().Format("2006-01-02") != f.Day {
		return false
	}
	return true
}

// Appointments returns one page of matching appointments, newest booking first,
// plus the total match count.
func (r *Repository) Appointments(ctx context.Context, f AppointmentFilter, page, limit int) ([]Appointment, int) {
	r.mu.RLock()
	var matches []Appointment
	for i := len(r.order) - 1; i >= 0; i-- {
		a := r.appointments[r.order[i]]
		if f.match(a) {
			matches = append(matches, *a)
		}
	}
	r.mu.RUnlock()
	return paginate(matches, page, limit), len(matches)
}

// Counts reports the number of stored accounts and appointments.
func (r *Repository) Counts() (accounts, appointments int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts), len(r.appointments)
}

func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return items
	}
	pages := len(items) / limit
	if len(items)%limit != 0 {
		pages++
	}
	if page > pages {
		return []T{}
	}
	start := (page - 1) * limit
	end := min(start+limit, len(items))
	return items[start:end]
}
