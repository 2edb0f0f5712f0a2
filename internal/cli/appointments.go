package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"dams/internal/apiclient"
	"dams/internal/model"
	"dams/internal/workflow"
)

// maxScanPages bounds the search for an appointment id across list pages.
const maxScanPages = 50

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse date %q, use YYYY-MM-DD or YYYY-MM-DDTHH:MM", ErrUsage, s)
}

func parseStatusFlag(s string) (model.Status, error) {
	if s == "" {
		return "", nil
	}
	st, ok := model.ParseStatus(s)
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q, use PENDING, COMPLETE or CANCELLED", ErrUsage, s)
	}
	return st, nil
}

func (a *App) book(ctx context.Context, args []string) error {
	fs := a.flags("book")
	doctorID := fs.String("doctor", "", "doctor id (see 'dams doctors')")
	date := fs.String("date", "", "appointment date, YYYY-MM-DD or YYYY-MM-DDTHH:MM (local time)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if _, err := a.requireRole(model.RolePatient); err != nil {
		return err
	}
	when, err := parseWhen(*date)
	if err != nil {
		return err
	}

	appt, err := workflow.NewBooker(a.Client.Appointments).Book(ctx, model.Doctor{ID: *doctorID}, when)
	if errors.Is(err, workflow.ErrDateRequired) {
		return fmt.Errorf("%w: -date is required", ErrUsage)
	}
	if err != nil {
		return failed(err, apiclient.FallbackBooking)
	}
	fmt.Fprintf(a.Out, "Appointment booked for %s (id %s, status %s)\n", appt.FormatDate(), appt.ID, appt.Status)
	return nil
}

func (a *App) appointments(ctx context.Context, args []string) error {
	fs := a.flags("appointments")
	status := fs.String("status", "", "PENDING, COMPLETE or CANCELLED")
	page := fs.Int("page", 1, "page number")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if _, err := a.requireRole(model.RolePatient); err != nil {
		return err
	}
	st, err := parseStatusFlag(*status)
	if err != nil {
		return err
	}

	list, err := a.Client.Appointments.ListForPatient(ctx, apiclient.PatientQuery{Status: st, Page: *page, Limit: a.PageSize})
	if err != nil {
		return failed(err, "Failed to load appointments")
	}
	if list.Empty() {
		fmt.Fprintln(a.Out, "No appointments found")
		return nil
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOCTOR\tSPECIALIZATION\tDATE\tSTATUS")
	for _, appt := range list.Items {
		name, spec := "N/A", "N/A"
		if appt.Doctor != nil {
			name, spec = orNA(appt.Doctor.Name), orNA(appt.Doctor.Specialization)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", appt.ID, name, spec, appt.FormatDate(), appt.Status)
	}
	tw.Flush()
	a.footer(list.Page, list.TotalPages(), list.HasPrev(), list.HasNext())
	return nil
}

func (a *App) schedule(ctx context.Context, args []string) error {
	fs := a.flags("schedule")
	status := fs.String("status", "", "PENDING, COMPLETE or CANCELLED")
	date := fs.String("date", "", "only this day, YYYY-MM-DD")
	page := fs.Int("page", 1, "page number")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if _, err := a.requireRole(model.RoleDoctor); err != nil {
		return err
	}
	st, err := parseStatusFlag(*status)
	if err != nil {
		return err
	}
	if *date != "" {
		if _, err := time.Parse("2006-01-02", *date); err != nil {
			return fmt.Errorf("%w: -date must be YYYY-MM-DD", ErrUsage)
		}
	}

	list, err := a.Client.Appointments.ListForDoctor(ctx, apiclient.DoctorScheduleQuery{Status: st, Date: *date, Page: *page, Limit: a.PageSize})
	if err != nil {
		return failed(err, "Failed to load appointments")
	}
	if list.Empty() {
		fmt.Fprintln(a.Out, "No appointments found")
		return nil
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATIENT\tDATE\tSTATUS")
	for _, appt := range list.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", appt.ID, orNA(appt.PatientName), appt.FormatDate(), appt.Status)
	}
	tw.Flush()
	a.footer(list.Page, list.TotalPages(), list.HasPrev(), list.HasNext())
	return nil
}

func (a *App) complete(ctx context.Context, args []string) error {
	if _, err := a.requireRole(model.RoleDoctor); err != nil {
		return err
	}
	return a.changeStatus(ctx, "complete", model.StatusComplete, args)
}

func (a *App) cancel(ctx context.Context, args []string) error {
	return a.changeStatus(ctx, "cancel", model.StatusCancelled, args)
}

// changeStatus runs the select, confirm and submit steps for one appointment.
func (a *App) changeStatus(ctx context.Context, name string, target model.Status, args []string) error {
	fs := a.flags(name)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	id := fs.Arg(0)
	if fs.NArg() > 1 {
		if err := a.parse(fs, fs.Args()[1:]); err != nil {
			return err
		}
	}
	if id == "" {
		return fmt.Errorf("%w: dams %s [-yes] <appointment-id>", ErrUsage, name)
	}
	u, err := a.requireRole("")
	if err != nil {
		return err
	}

	appt, err := a.findAppointment(ctx, u.Role, id)
	if err != nil {
		return err
	}

	flow := workflow.NewStatusFlow(a.Client.Appointments, u.Role)
	if !flow.Select(appt, target) {
		fmt.Fprintf(a.Out, "Appointment %s is %s; nothing to %s\n", appt.ID, appt.Status, name)
		return nil
	}

	if !*yes {
		fmt.Fprintln(a.Out, flow.Title())
		fmt.Fprintf(a.Out, "%s? [y/N] ", flow.Prompt())
		answer, err := a.readLine()
		if err != nil || !isYes(answer) {
			flow.Dismiss()
			fmt.Fprintln(a.Out, "Dismissed")
			return nil
		}
	}

	updated, err := flow.Confirm(ctx)
	if err != nil {
		return failed(err, apiclient.FallbackStatus)
	}
	status := updated.Status
	if status == "" {
		status = target
	}
	fmt.Fprintf(a.Out, "Appointment %s is now %s\n", appt.ID, status)
	return nil
}

// findAppointment pages through the caller's list until id turns up.
func (a *App) findAppointment(ctx context.Context, role model.Role, id string) (model.Appointment, error) {
	for page := 1; page <= maxScanPages; page++ {
		var (
			list model.Page[model.Appointment]
			err  error
		)
		if role == model.RoleDoctor {
			list, err = a.Client.Appointments.ListForDoctor(ctx, apiclient.DoctorScheduleQuery{Page: page, Limit: a.PageSize})
		} else {
			list, err = a.Client.Appointments.ListForPatient(ctx, apiclient.PatientQuery{Page: page, Limit: a.PageSize})
		}
		if err != nil {
			return model.Appointment{}, failed(err, "Failed to load appointments")
		}
		for _, appt := range list.Items {
			if appt.ID == id {
				return appt, nil
			}
		}
		if !list.HasNext() {
			break
		}
	}
	return model.Appointment{}, fmt.Errorf("appointment %s not found", id)
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "y" || s == "yes"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
