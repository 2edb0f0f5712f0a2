package mockapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dams/internal/auth"
	"dams/internal/forms"
	"dams/internal/model"
)

const defaultLimit = 10

type userDTO struct {
	ID             string     `json:"_id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           model.Role `json:"role"`
	PhotoURL       string     `json:"photo_url,omitempty"`
	Specialization string     `json:"specialization,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

type doctorDTO struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Specialization string `json:"specialization"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

type appointmentDTO struct {
	ID          string       `json:"_id"`
	DoctorID    string       `json:"doctorId"`
	PatientID   string       `json:"patientId"`
	Doctor      *doctorDTO   `json:"doctor,omitempty"`
	PatientName string       `json:"patientName,omitempty"`
	Date        string       `json:"date"`
	Status      model.Status `json:"status"`
}

type loginRequest struct {
	Email    string     `json:"email" binding:"notblank,email_address"`
	Password string     `json:"password" binding:"required"`
	Role     model.Role `json:"role" binding:"required,oneof=DOCTOR PATIENT"`
}

// registerRequest covers both roles; the service requires specialization for doctors.
type registerRequest struct {
	Name           string `json:"name" binding:"notblank"`
	Email          string `json:"email" binding:"notblank,email_address"`
	Password       string `json:"password" binding:"required,min=6"`
	PhotoURL       string `json:"photo_url"`
	Specialization string `json:"specialization"`
}

type createAppointmentRequest struct {
	DoctorID string `json:"doctorId" binding:"required"`
	Date     string `json:"date" binding:"required"`
}

type updateStatusRequest struct {
	AppointmentID string       `json:"appointment_id" binding:"required"`
	Status        model.Status `json:"status" binding:"required"`
}

func toUserDTO(u model.User) userDTO {
	return userDTO{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		PhotoURL:       u.PhotoURL,
		Specialization: u.Specialization,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func toDoctorDTO(u model.User) doctorDTO {
	return doctorDTO{ID: u.ID, Name: u.Name, Email: u.Email, Specialization: u.Specialization, PhotoURL: u.PhotoURL}
}

// appointmentView renders an appointment for a patient (with the doctor
// embedded) or a doctor (with the patient name).
func (s *Server) appointmentView(c *gin.Context, a Appointment, role model.Role) appointmentDTO {
	out := appointmentDTO{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      a.Date.UTC().Format(time.RFC3339),
		Status:    a.Status,
	}
	ctx := c.Request.Context()
	if role == model.RoleDoctor {
		if p, err := s.repo.Account(ctx, a.PatientID); err == nil {
			out.PatientName = p.Name
		}
		return out
	}
	if d, err := s.repo.Account(ctx, a.DoctorID); err == nil {
		doc := toDoctorDTO(d.User)
		out.Doctor = &doc
	}
	return out
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "statusCode": status, "message": message})
}

func fail(c *gin.Context, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		respondError(c, apiErr.Status, apiErr.Message)
		return
	}
	logf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	respondError(c, http.StatusInternalServerError, "Internal server error")
}

// bindJSON decodes the body and answers 400 with the first field message on failure.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var vErr *forms.ValidationError
	if errors.As(forms.Translate(err), &vErr) {
		respondError(c, http.StatusBadRequest, vErr.Message())
	} else {
		respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	return false
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func callerClaims(c *gin.Context) auth.Claims {
	claims, _ := auth.FromContext(c)
	return claims
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := s.svc.Login(c.Request.Context(), forms.Login(req))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"statusCode": http.StatusOK,
		"message":    "Login successful",
		"data":       gin.H{"token": sess.Token, "user": toUserDTO(sess.User)},
	})
}

func (s *Server) register(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if !bindJSON(c, &req) {
			return
		}
		sess, err := s.svc.Register(c.Request.Context(), role, forms.DoctorRegistration{
			PatientRegistration: forms.PatientRegistration{
				Name:     req.Name,
				Email:    req.Email,
				Password: req.Password,
				PhotoURL: req.PhotoURL,
			},
			Specialization: req.Specialization,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"success":    true,
			"statusCode": http.StatusCreated,
			"message":    "User registered successfully",
			"data":       gin.H{"token": sess.Token, "user": toUserDTO(sess.User)},
		})
	}
}

func (s *Server) listDoctors(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", defaultLimit)
	doctors, total := s.repo.Doctors(c.Request.Context(), c.Query("search"), c.Query("specialization"), page, limit)

	out := make([]doctorDTO, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, toDoctorDTO(d))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "statusCode": http.StatusOK, "data": out, "total": total})
}

func (s *Server) listSpecializations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "statusCode": http.StatusOK, "data": s.repo.Specializations(c.Request.Context())})
}

func (s *Server) createAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	appt, err := s.svc.Book(c.Request.Context(), callerClaims(c).Subject, req.DoctorID, req.Date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"statusCode": http.StatusCreated,
		"message":    "Appointment created successfully",
		"data":       s.appointmentView(c, appt, model.RolePatient),
	})
}

func statusFilter(c *gin.Context) (model.Status, bool) {
	raw := c.Query("status")
	if raw == "" {
		return "", true
	}
	return model.ParseStatus(raw)
}

func (s *Server) patientAppointments(c *gin.Context) {
	status, ok := statusFilter(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid status filter")
		return
	}
	filter := AppointmentFilter{PatientID: callerClaims(c).Subject, Status: status}
	items, total := s.repo.Appointments(c.Request.Context(), filter, queryInt(c, "page", 1), queryInt(c, "limit", defaultLimit))

	out := make([]appointmentDTO, 0, len(items))
	for _, a := range items {
		out = append(out, s.appointmentView(c, a, model.RolePatient))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "statusCode": http.StatusOK, "data": out, "total": total})
}

func (s *Server) doctorAppointments(c *gin.Context) {
	status, ok := statusFilter(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid status filter")
		return
	}
	day := c.Query("date")
	if day != "" {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid date filter")
			return
		}
	}
	filter := AppointmentFilter{DoctorID: callerClaims(c).Subject, Status: status, Day: day}
	items, _ := s.repo.Appointments(c.Request.Context(), filter, queryInt(c, "page", 1), queryInt(c, "limit", defaultLimit))

	out := make([]appointmentDTO, 0, len(items))
	for _, a := range items {
		out = append(out, s.appointmentView(c, a, model.RoleDoctor))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "statusCode": http.StatusOK, "appointments": out})
}

func (s *Server) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	claims := callerClaims(c)
	appt, err := s.svc.UpdateStatus(c.Request.Context(), claims, req.AppointmentID, req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"statusCode": http.StatusOK,
		"message":    "Appointment status updated",
		"data":       s.appointmentView(c, appt, model.Role(claims.Role)),
	})
}
