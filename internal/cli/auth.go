package cli

import (
	"context"
	"fmt"
	"time"

	"dams/internal/apiclient"
	"dams/internal/cloudinary"
	"dams/internal/forms"
	"dams/internal/model"
)

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	roleFlag := fs.String("role", "", "DOCTOR or PATIENT")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	role, _ := model.ParseRole(*roleFlag)
	res, err := a.Client.Auth.Login(ctx, *email, *password, role)
	if err != nil {
		return failed(err, apiclient.FallbackLogin)
	}
	return a.commit(ctx, res, "Logged in")
}

func (a *App) registerPatient(ctx context.Context, args []string) error {
	fs := a.flags("register-patient")
	form := forms.PatientRegistration{}
	fs.StringVar(&form.Name, "name", "", "full name")
	fs.StringVar(&form.Email, "email", "", "account email")
	fs.StringVar(&form.Password, "password", "", "password, at least 6 characters")
	photo := fs.String("photo", "", "photo URL or local image file")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		return failed(err, apiclient.FallbackRegister)
	}

	url, err := cloudinary.ResolvePhoto(ctx, a.Photos, *photo)
	if err != nil {
		return failed(err, apiclient.FallbackRegister)
	}
	form.PhotoURL = url

	res, err := a.Client.Auth.RegisterPatient(ctx, form)
	if err != nil {
		return failed(err, apiclient.FallbackRegister)
	}
	return a.commit(ctx, res, "Registered")
}

func (a *App) registerDoctor(ctx context.Context, args []string) error {
	fs := a.flags("register-doctor")
	form := forms.DoctorRegistration{}
	fs.StringVar(&form.Name, "name", "", "full name")
	fs.StringVar(&form.Email, "email", "", "account email")
	fs.StringVar(&form.Password, "password", "", "password, at least 6 characters")
	fs.StringVar(&form.Specialization, "specialization", "", "medical specialization")
	photo := fs.String("photo", "", "photo URL or local image file")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		return failed(err, apiclient.FallbackRegister)
	}

	url, err := cloudinary.ResolvePhoto(ctx, a.Photos, *photo)
	if err != nil {
		return failed(err, apiclient.FallbackRegister)
	}
	form.PhotoURL = url

	res, err := a.Client.Auth.RegisterDoctor(ctx, form)
	if err != nil {
		return failed(err, apiclient.FallbackRegister)
	}
	return a.commit(ctx, res, "Registered")
}

// commit stores a successful login and drops results cached for the previous user.
func (a *App) commit(ctx context.Context, res apiclient.AuthResult, verb string) error {
	if err := a.Session.Set(ctx, &res.User, res.Token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	a.Client.Invalidate(apiclient.TagAppointment)
	fmt.Fprintf(a.Out, "%s as %s (%s). Dashboard: %s\n", verb, res.User.Name, res.User.Role, res.User.Role.DashboardPath())
	return nil
}

func (a *App) logout(ctx context.Context, args []string) error {
	if err := a.Session.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.Client.Invalidate(apiclient.TagAuth, apiclient.TagAppointment)
	fmt.Fprintln(a.Out, "Logged out")
	return nil
}

func (a *App) whoami(ctx context.Context, args []string) error {
	u, err := a.requireRole("")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Name:       %s\n", u.Name)
	fmt.Fprintf(a.Out, "Email:      %s\n", u.Email)
	fmt.Fprintf(a.Out, "Role:       %s\n", u.Role)
	if u.Specialization != "" {
		fmt.Fprintf(a.Out, "Specialty:  %s\n", u.Specialization)
	}
	fmt.Fprintf(a.Out, "Dashboard:  %s\n", u.Role.DashboardPath())
	if exp, ok := a.Session.ExpiresAt(); ok {
		state := "valid"
		if !exp.After(a.Now()) {
			state = "expired"
		}
		fmt.Fprintf(a.Out, "Token:      %s until %s\n", state, exp.Local().Format(time.RFC1123))
	}
	return nil
}
