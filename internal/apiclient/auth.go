package apiclient

import (
	"context"
	"net/http"

	"dams/internal/forms"
	"dams/internal/model"
)

// AuthResult is the identity returned by login and registration.
type AuthResult struct {
	User  model.User
	Token string
}

// AuthResource wraps the /auth endpoints. Results are not committed anywhere;
// the caller hands them to the session store.
type AuthResource struct {
	c *Client
}

type authResponse struct {
	envelope
	Data *struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	} `json:"data"`
}

// Login authenticates with email, password and role.
func (r *AuthResource) Login(ctx context.Context, email, password string, role model.Role) (AuthResult, error) {
	form := forms.Login{Email: email, Password: password, Role: role}
	if err := form.Validate(); err != nil {
		return AuthResult{}, err
	}
	return r.post(ctx, "/auth/login", form)
}

// RegisterPatient creates a patient account and logs it in.
func (r *AuthResource) RegisterPatient(ctx context.Context, form forms.PatientRegistration) (AuthResult, error) {
	if err := form.Validate(); err != nil {
		return AuthResult{}, err
	}
	return r.post(ctx, "/auth/register/patient", form)
}

// RegisterDoctor creates a doctor account and logs it in.
func (r *AuthResource) RegisterDoctor(ctx context.Context, form forms.DoctorRegistration) (AuthResult, error) {
	if err := form.Validate(); err != nil {
		return AuthResult{}, err
	}
	return r.post(ctx, "/auth/register/doctor", form)
}

func (r *AuthResource) post(ctx context.Context, path string, body any) (AuthResult, error) {
	raw, err := r.c.mutate(ctx, call{resource: "auth", method: http.MethodPost, path: path, body: body}, TagAuth)
	if err != nil {
		return AuthResult{}, err
	}
	out, err := decode[authResponse]("auth", raw)
	if err != nil {
		return AuthResult{}, err
	}
	if out.Data == nil || out.Data.Token == "" || out.Data.User == nil {
		return AuthResult{}, ErrInvalidResponse
	}
	return AuthResult{User: *out.Data.User, Token: out.Data.Token}, nil
}
