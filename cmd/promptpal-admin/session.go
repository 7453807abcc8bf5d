// ABOUTME: Session commands: login, logout, me, status, roles, can
// ABOUTME: Permission answers come from the local role table, not the API

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/session"
)

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	f, err := parseFlags(args, []string{"username"}, map[string]string{"u": "username"})
	if err != nil {
		return err
	}

	p := newPrompter(a.in, a.out)
	username := strings.TrimSpace(f.get("username"))
	if username == "" {
		if username, err = p.line("Username"); err != nil {
			return err
		}
	}
	if username == "" {
		return errors.New("username is required")
	}

	password, err := p.secret("Password")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password is required")
	}

	s, err := a.client(nil).Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := a.sessions.Save(s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	a.logger.Info("logged in", "username", s.Profile.Username, "role", s.Profile.Role)
	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "✓ Logged in as %s (%s)\n", s.Profile.Username, s.Profile.Role.Label())
	return nil
}

func (a *app) cmdLogout() error {
	if err := a.sessions.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	color.New(color.FgGreen).Fprintln(a.out, "✓ Logged out")
	return nil
}

func (a *app) cmdMe(ctx context.Context) error {
	s, err := a.requireSession()
	if err != nil {
		return err
	}

	profile, err := a.client(s).Me(ctx)
	if err != nil {
		return err
	}

	// Keep the stored identity in step with the server.
	s.Profile = *profile
	if err := a.sessions.Save(s); err != nil {
		a.logger.Warn("failed to refresh stored profile", "error", err)
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Identity")
	cyan.Fprintln(a.out, "  --------")
	fmt.Fprintf(a.out, "  ID:           %s\n", profile.ID)
	fmt.Fprintf(a.out, "  Username:     %s\n", profile.Username)
	fmt.Fprintf(a.out, "  Email:        %s\n", profile.Email)
	fmt.Fprintf(a.out, "  Role:         %s\n", roleLabel(profile.Role))

	perms := profile.Actor().Effective().Sorted()
	if len(perms) > 0 {
		green.Fprintf(a.out, "  Permissions:  %s\n", strings.Join(perms, ", "))
	} else {
		fmt.Fprintf(a.out, "  Permissions:  (none)\n")
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) cmdStatus(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(a.out, banner)
	fmt.Fprintln(a.out)

	green.Fprint(a.out, "  API:      ")
	fmt.Fprint(a.out, a.cfg.API.BaseURL)
	if a.cfg.Production() {
		yellow.Fprint(a.out, " [production]")
	}
	fmt.Fprintln(a.out)

	s, err := a.sessions.Load()
	if err != nil {
		yellow.Fprint(a.out, "  Session:  ")
		if errors.Is(err, session.ErrNoSession) {
			fmt.Fprintln(a.out, "(none - run promptpal-admin login)")
		} else {
			color.New(color.FgRed).Fprintf(a.out, "unreadable (%v)\n", err)
		}
		fmt.Fprintln(a.out)
		return nil
	}

	green.Fprint(a.out, "  Session:  ")
	fmt.Fprintf(a.out, "%s (%s)", s.Profile.Username, roleLabel(s.Profile.Role))
	if exp, ok := s.ExpiresAt(); ok {
		if s.Expired(timeNow()) {
			color.New(color.FgRed).Fprintf(a.out, " expired %s", exp.Local().Format("Jan 02 15:04"))
		} else {
			fmt.Fprintf(a.out, " until %s", exp.Local().Format("Jan 02 15:04"))
		}
	}
	fmt.Fprintln(a.out)

	if !s.Expired(timeNow()) {
		if _, err := a.client(s).Me(ctx); err != nil {
			yellow.Fprint(a.out, "  Server:   ")
			color.New(color.FgRed).Fprintf(a.out, "%s\n", describe(err))
		} else {
			green.Fprint(a.out, "  Server:   ")
			fmt.Fprintln(a.out, "session accepted")
		}
	}

	fmt.Fprintln(a.out)
	return nil
}

func (a *app) cmdRoles() error {
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Roles")
	cyan.Fprintln(a.out, "  -----")

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ROLE\tLABEL\tPERMISSIONS")
	fmt.Fprintln(w, "  ----\t-----\t-----------")
	for _, role := range rbac.Roles() {
		perms := rbac.RolePermissions(role).Sorted()
		fmt.Fprintf(w, "  %s\t%s\t%s\n", role, role.Label(), strings.Join(perms, ", "))
	}
	w.Flush()
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) cmdCan(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: can <permission>")
	}
	perm := args[0]
	if !rbac.IsKnownPermission(perm) {
		return fmt.Errorf("unknown permission %q (known: %s)", perm, strings.Join(rbac.KnownPermissions(), ", "))
	}

	s, err := a.requireSession()
	if err != nil {
		return err
	}

	if s.Actor().Can(perm) {
		color.New(color.FgGreen).Fprintf(a.out, "✓ %s may %s\n", s.Profile.Username, perm)
		return nil
	}
	color.New(color.FgRed).Fprintf(a.out, "✗ %s may not %s\n", s.Profile.Username, perm)
	return errDenied
}

// roleLabel names a role for display, flagging roles the table does not know.
func roleLabel(r rbac.Role) string {
	if !r.Valid() {
		if r == "" {
			return "(no role)"
		}
		return string(r) + " (unknown)"
	}
	return r.Label()
}
