package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"dams/internal/apiclient"
	"dams/internal/model"
)

func (a *App) doctors(ctx context.Context, args []string) error {
	fs := a.flags("doctors")
	page := fs.Int("page", 1, "page number")
	search := fs.String("search", "", "filter by name")
	specialization := fs.String("specialization", "", "filter by specialization")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	var (
		doctors model.Page[model.Doctor]
		specs   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doctors, err = a.Client.Doctors.ListDoctors(gctx, apiclient.DoctorQuery{
			Page:           *page,
			Limit:          a.PageSize,
			Search:         *search,
			Specialization: *specialization,
		})
		return err
	})
	g.Go(func() error {
		var err error
		specs, err = a.Client.Doctors.ListSpecializations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return failed(err, "Failed to load doctors")
	}

	if len(specs) > 0 {
		fmt.Fprintf(a.Out, "Specializations: %s\n\n", strings.Join(specs, ", "))
	}
	if doctors.Empty() {
		fmt.Fprintln(a.Out, "No doctors found")
		return nil
	}

	hosts := a.PhotoHosts
	if len(hosts) == 0 {
		hosts = model.DefaultPhotoHosts()
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSPECIALIZATION\tPHOTO")
	for _, d := range doctors.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Specialization,
			model.SafePhotoURL(d.PhotoURL, hosts, model.DefaultDoctorPhoto))
	}
	tw.Flush()
	a.footer(doctors.Page, doctors.TotalPages(), doctors.HasPrev(), doctors.HasNext())
	return nil
}

func (a *App) specializations(ctx context.Context, args []string) error {
	specs, err := a.Client.Doctors.ListSpecializations(ctx)
	if err != nil {
		return failed(err, "Failed to load specializations")
	}
	if len(specs) == 0 {
		fmt.Fprintln(a.Out, "No specializations found")
		return nil
	}
	for _, s := range specs {
		fmt.Fprintln(a.Out, s)
	}
	return nil
}

// footer prints "Page N [of M]" with the available directions.
func (a *App) footer(page, totalPages int, hasPrev, hasNext bool) {
	line := fmt.Sprintf("Page %d", page)
	if totalPages > 0 {
		line += fmt.Sprintf(" of %d", totalPages)
	}
	var nav []string
	if hasPrev {
		nav = append(nav, fmt.Sprintf("prev: -page %d", page-1))
	}
	if hasNext {
		nav = append(nav, fmt.Sprintf("next: -page %d", page+1))
	}
	if len(nav) > 0 {
		line += " (" + strings.Join(nav, ", ") + ")"
	}
	fmt.Fprintln(a.Out, line)
}
