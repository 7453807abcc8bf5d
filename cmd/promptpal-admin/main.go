// ABOUTME: Admin CLI for the PromptPal admin API
// ABOUTME: Manages the operator session, admin accounts, and invitations

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apiclient"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/apperr"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/config"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/logging"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/session"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/telemetry"
)

// Version is set at build time.
var version = "dev"

const banner = `
                                     _                   _
 _ __  _ __ ___  _ __ ___  _ __  | |_ _ __   __ _| |
| '_ \| '__/ _ \| '_ ' _ \| '_ \ | __| '_ \ / _' | |
| |_) | | | (_) | | | | | | |_) || |_| |_) | (_| | |
| .__/|_|  \___/|_| |_| |_| .__/  \__| .__/ \__,_|_|
|_|                       |_|        |_|   admin
`

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage(os.Stdout)
		return
	}

	a, shutdown, err := newApp(ctx)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	err = a.run(ctx, cmd, os.Args[2:])
	_ = shutdown(context.Background())

	if err != nil {
		if errors.Is(err, errDenied) {
			os.Exit(1)
		}
		if errors.Is(err, errUnknownCommand) {
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
			printUsage(os.Stderr)
			os.Exit(1)
		}
		color.Red("Error: %s\n", describe(err))
		os.Exit(1)
	}
}

var (
	errUnknownCommand = errors.New("unknown command")

	// errDenied exits non-zero after the answer has already been printed.
	errDenied = errors.New("permission denied")
)

// app carries what every command needs.
type app struct {
	cfg      *config.Config
	sessions session.Store
	out      io.Writer
	in       io.Reader
	logger   *slog.Logger
}

func newApp(ctx context.Context) (*app, telemetry.ShutdownFunc, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = "promptpal-admin"
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: serviceName,
		Version:     version,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	return &app{
		cfg:      cfg,
		sessions: session.NewFileStore(cfg.Session.Path),
		out:      os.Stdout,
		in:       os.Stdin,
		logger:   slog.Default().With("component", "cli"),
	}, shutdown, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		return a.cmdLogout()
	case "me":
		return a.cmdMe(ctx)
	case "status":
		return a.cmdStatus(ctx)
	case "roles":
		return a.cmdRoles()
	case "can":
		return a.cmdCan(args)
	case "admins":
		return a.cmdAdmins(ctx, args)
	case "invite":
		return a.cmdInvite(ctx, args)
	case "version":
		fmt.Fprintf(a.out, "promptpal-admin %s\n", version)
		return nil
	default:
		return errUnknownCommand
	}
}

// client builds an API client. A rejected session is removed from disk so
// the next command asks for a fresh login.
func (a *app) client(s *session.Session) *apiclient.Client {
	c := apiclient.New(a.cfg.API.BaseURL,
		apiclient.WithTimeout(a.cfg.API.Timeout),
		apiclient.WithUnauthorizedHandler(func() {
			if err := a.sessions.Clear(); err != nil {
				a.logger.Warn("failed to clear rejected session", "error", err)
			}
		}),
	)
	if s != nil {
		c = c.WithSession(s)
	}
	return c
}

// requireSession loads the stored session, discarding it when its token
// has already expired.
func (a *app) requireSession() (*session.Session, error) {
	s, err := a.sessions.Load()
	if errors.Is(err, session.ErrNoSession) {
		return nil, errors.New("not logged in (run: promptpal-admin login)")
	}
	if err != nil {
		return nil, err
	}
	if s.Expired(timeNow()) {
		_ = a.sessions.Clear()
		return nil, errors.New("session expired (run: promptpal-admin login)")
	}
	return s, nil
}

// describe turns err into the text shown to the operator.
func describe(err error) string {
	if e, ok := apperr.As(err); ok {
		slog.Default().Debug("command failed", "kind", e.Kind, "status", e.Status, "error", err)
		msg := apperr.UserMessage(err)
		if e.Kind == apperr.KindTransport && e.Message != "" && !e.Unauthorized() && e.Status != 0 && msg != e.Message {
			msg += " (" + e.Message + ")"
		}
		return msg
	}
	return err.Error()
}

func printUsage(w io.Writer) {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: promptpal-admin <command> [args]")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  login [--username u]          Log in and store the session")
	fmt.Fprintln(w, "  logout                        Forget the stored session")
	fmt.Fprintln(w, "  me                            Show your profile and permissions")
	fmt.Fprintln(w, "  status                        Show API target and session state")
	fmt.Fprintln(w, "  roles                         List roles and what they grant")
	fmt.Fprintln(w, "  can <permission>              Check a permission for your session")
	fmt.Fprintln(w, "  admins [list]                 List admin accounts")
	fmt.Fprintln(w, "      --role r --status s --search q --page n --limit n")
	fmt.Fprintln(w, "  admins create                 Create an active admin with a password")
	fmt.Fprintln(w, "      --username u --email e --role r [--permission p]...")
	fmt.Fprintln(w, "  invite create                 Invite an admin by email")
	fmt.Fprintln(w, "      --username u --email e --role r [--permission p]...")
	fmt.Fprintln(w, "  invite verify <token>         Show the invitation behind a token")
	fmt.Fprintln(w, "  invite accept <token>         Accept an invitation and set a password")
	fmt.Fprintln(w, "  invite resend <id>            Issue a new invitation link")
	fmt.Fprintln(w, "  invite cancel <id>            Cancel a pending invitation")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  PROMPTPAL_CONFIG        Config file (default: ~/.config/promptpal/admin.yaml)")
	fmt.Fprintln(w, "  PROMPTPAL_API_URL       Admin API base URL (default: http://localhost:9002/api)")
	fmt.Fprintln(w, "  PROMPTPAL_ENV           Set to production to target the hosted API")
	fmt.Fprintln(w, "  PROMPTPAL_SESSION_PATH  Session file (default: ~/.config/promptpal/session.json)")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  promptpal-admin login --username root")
	fmt.Fprintln(w, "  promptpal-admin invite create --username alice --email alice@example.com --role admin")
	fmt.Fprintln(w, "  promptpal-admin admins --status pending")
	fmt.Fprintln(w)
}
