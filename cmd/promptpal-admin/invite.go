// ABOUTME: Invitation commands: create, verify, accept, resend, cancel
// ABOUTME: Delegates every lifecycle rule to the invitation manager

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/admins"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/invitation"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
)

func (a *app) cmdInvite(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: invite <create|verify|accept|resend|cancel> [args]")
	}
	subcmd, args := args[0], args[1:]

	switch subcmd {
	case "create", "new":
		return a.cmdInviteCreate(ctx, args)
	case "verify", "show":
		return a.cmdInviteVerify(ctx, args)
	case "accept":
		return a.cmdInviteAccept(ctx, args)
	case "resend":
		return a.cmdInviteResend(ctx, args)
	case "cancel", "rm":
		return a.cmdInviteCancel(ctx, args)
	default:
		return fmt.Errorf("unknown invite subcommand: %s (use create, verify, accept, resend, cancel)", subcmd)
	}
}

func (a *app) cmdInviteCreate(ctx context.Context, args []string) error {
	f, err := parseFlags(args, []string{"username", "email", "role", "permission"},
		map[string]string{"u": "username", "e": "email", "r": "role", "p": "permission"})
	if err != nil {
		return err
	}
	if f.get("username") == "" || f.get("email") == "" {
		return errors.New("usage: invite create --username <u> --email <e> --role <r> [--permission <p>]...")
	}

	s, err := a.requireSession()
	if err != nil {
		return err
	}

	account, err := invitation.NewManager(a.client(s)).Issue(ctx, s.Actor(), invitation.IssueRequest{
		Username:    f.get("username"),
		Email:       f.get("email"),
		Role:        rbac.Role(f.get("role")),
		Permissions: f.all("permission"),
	})
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "✓ Invited %s <%s>\n", account.Username, account.Email)
	fmt.Fprintf(a.out, "  ID:      %s\n", account.ID)
	fmt.Fprintf(a.out, "  Role:    %s\n", roleLabel(account.Role))
	fmt.Fprintf(a.out, "  Status:  %s\n", account.InvitationStatus)
	fmt.Fprintln(a.out, "  The invitation link has been sent by email.")
	return nil
}

func (a *app) cmdInviteVerify(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: invite verify <token>")
	}

	details, err := invitation.NewManager(a.client(nil)).Verify(ctx, args[0])
	if err != nil {
		return err
	}
	a.printInvitation(details)
	return nil
}

func (a *app) cmdInviteAccept(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: invite accept <token>")
	}
	token := args[0]
	m := invitation.NewManager(a.client(nil), invitation.WithSessionStore(a.sessions))

	details, err := m.Verify(ctx, token)
	if err != nil {
		return err
	}
	a.printInvitation(details)

	p := newPrompter(a.in, a.out)
	password, err := p.secret("Choose a password")
	if err != nil {
		return err
	}
	confirm, err := p.secret("Confirm password")
	if err != nil {
		return err
	}
	if err := admins.ConfirmPassword(password, confirm); err != nil {
		return err
	}
	if _, label := admins.PasswordStrength(password); password != "" {
		color.New(color.FgHiBlack).Fprintf(a.out, "  password strength: %s\n", label)
	}

	s, err := m.Accept(ctx, token, password)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Welcome, %s. You are logged in as %s.\n",
		s.Profile.Username, roleLabel(s.Profile.Role))
	return nil
}

func (a *app) cmdInviteResend(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: invite resend <admin-id>")
	}

	s, err := a.requireSession()
	if err != nil {
		return err
	}
	if err := invitation.NewManager(a.client(s)).Resend(ctx, s.Actor(), args[0]); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(a.out, "✓ Sent a new invitation link for %s\n", args[0])
	return nil
}

func (a *app) cmdInviteCancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: invite cancel <admin-id>")
	}

	s, err := a.requireSession()
	if err != nil {
		return err
	}
	if err := invitation.NewManager(a.client(s)).Cancel(ctx, s.Actor(), args[0]); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(a.out, "✓ Cancelled invitation %s\n", args[0])
	return nil
}

func (a *app) printInvitation(d *invitation.Details) {
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Invitation")
	cyan.Fprintln(a.out, "  ----------")
	fmt.Fprintf(a.out, "  Username:    %s\n", d.Username)
	fmt.Fprintf(a.out, "  Email:       %s\n", d.Email)
	fmt.Fprintf(a.out, "  Role:        %s\n", roleLabel(d.Role))
	if d.InvitedBy != nil {
		fmt.Fprintf(a.out, "  Invited by:  %s\n", strings.TrimSpace(d.InvitedBy.Username+" <"+d.InvitedBy.Email+">"))
	}
	if !d.InvitedAt.IsZero() {
		fmt.Fprintf(a.out, "  Invited at:  %s\n", d.InvitedAt.Local().Format("Jan 02, 2006 15:04"))
	}
	if d.ExpiresAt != nil {
		fmt.Fprintf(a.out, "  Expires:     %s\n", d.ExpiresAt.Local().Format("Jan 02, 2006 15:04"))
	}
	fmt.Fprintln(a.out)
}
