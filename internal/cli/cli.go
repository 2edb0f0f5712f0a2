// Package cli implements the dams command line: one subcommand per screen of
// the appointment client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"dams/internal/apiclient"
	"dams/internal/cloudinary"
	"dams/internal/model"
	"dams/internal/session"
)

var (
	ErrUsage       = errors.New("usage")
	ErrNotLoggedIn = errors.New("not logged in: run 'dams login' first")
)

// App carries everything a command needs. Photos may be nil;
// PhotoHosts limits which doctor photo URLs are displayed.
type App struct {
	Session    *session.Store
	Client     *apiclient.Client
	Photos     *cloudinary.Client
	PageSize   int
	PhotoHosts []string
	In         io.Reader
	Out        io.Writer
	Now        func() time.Time

	in *bufio.Reader
}

type command struct {
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":            {"log in as a doctor or patient", (*App).login},
	"register-patient": {"create a patient account", (*App).registerPatient},
	"register-doctor":  {"create a doctor account", (*App).registerDoctor},
	"logout":           {"clear the saved session", (*App).logout},
	"whoami":           {"show the logged-in user", (*App).whoami},
	"doctors":          {"browse doctors", (*App).doctors},
	"specializations":  {"list specializations", (*App).specializations},
	"book":             {"book an appointment (patient)", (*App).book},
	"appointments":     {"list your appointments (patient)", (*App).appointments},
	"schedule":         {"list your schedule (doctor)", (*App).schedule},
	"complete":         {"mark an appointment as completed (doctor)", (*App).complete},
	"cancel":           {"cancel an appointment", (*App).cancel},
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.PageSize <= 0 {
		a.PageSize = apiclient.DefaultPageSize
	}
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		if len(args) == 0 {
			return ErrUsage
		}
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		a.usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	return cmd.run(a, ctx, args[1:])
}

func (a *App) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(a.Out, "usage: dams <command> [flags]")
	fmt.Fprintln(a.Out)
	for _, name := range names {
		fmt.Fprintf(a.Out, "  %-18s %s\n", name, commands[name].summary)
	}
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)
	return fs
}

func (a *App) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// requireRole returns the logged-in user, or an error when the session is
// empty or belongs to another role. An empty role accepts anyone.
func (a *App) requireRole(role model.Role) (*model.User, error) {
	u := a.Session.User()
	if u == nil {
		return nil, ErrNotLoggedIn
	}
	if role != "" && u.Role != role {
		return nil, fmt.Errorf("this command is for %s accounts; you are logged in as %s", strings.ToLower(string(role)), strings.ToLower(string(u.Role)))
	}
	return u, nil
}

// readLine reads one line of user input.
func (a *App) readLine() (string, error) {
	if a.in == nil {
		if a.In == nil {
			return "", io.EOF
		}
		a.in = bufio.NewReader(a.In)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// displayError is an error whose text is already the line shown to the user.
type displayError struct {
	msg string
	err error
}

func (e *displayError) Error() string { return e.msg }
func (e *displayError) Unwrap() error { return e.err }

func failed(err error, fallback string) error {
	if err == nil {
		return nil
	}
	return &displayError{msg: apiclient.ErrorMessage(err, fallback), err: err}
}
