// ABOUTME: Admin account commands: list and create
// ABOUTME: Both are gated on admins:write before any request is sent

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/admins"
	"github.com/itsjuliuscoder/promptpal-admin-dashboard/internal/rbac"
)

func (a *app) cmdAdmins(ctx context.Context, args []string) error {
	// Default to list
	subcmd := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return a.cmdAdminsList(ctx, args)
	case "create", "add":
		return a.cmdAdminsCreate(ctx, args)
	default:
		return fmt.Errorf("unknown admins subcommand: %s (use list, create)", subcmd)
	}
}

func (a *app) cmdAdminsList(ctx context.Context, args []string) error {
	f, err := parseFlags(args, []string{"role", "status", "search", "page", "limit"}, map[string]string{"q": "search"})
	if err != nil {
		return err
	}
	params := admins.ListParams{
		Search: f.get("search"),
		Role:   rbac.Role(f.get("role")),
		Status: admins.InvitationStatus(f.get("status")),
	}
	if params.Page, err = f.int("page"); err != nil {
		return err
	}
	if params.Limit, err = f.int("limit"); err != nil {
		return err
	}

	s, err := a.requireSession()
	if err != nil {
		return err
	}

	page, err := admins.NewService(a.client(s)).List(ctx, s.Actor(), params)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Admin Accounts")
	cyan.Fprintln(a.out, "  --------------")

	if len(page.Accounts) == 0 {
		fmt.Fprintln(a.out, "  (no admins)")
		fmt.Fprintln(a.out)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tUSERNAME\tEMAIL\tROLE\tSTATUS\tINVITED BY\tCREATED")
	fmt.Fprintln(w, "  --\t--------\t-----\t----\t------\t----------\t-------")
	for _, acct := range page.Accounts {
		status := string(acct.InvitationStatus)
		if status == "" {
			status = "active"
		}
		inviter := "-"
		if acct.InvitedBy != nil {
			inviter = acct.InvitedBy.Username
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(acct.ID, 12),
			acct.Username,
			truncate(acct.Email, 32),
			roleLabel(acct.Role),
			status,
			inviter,
			acct.CreatedAt.Local().Format("Jan 02 15:04"))
	}
	w.Flush()

	if p := page.Pagination; p != nil {
		color.New(color.FgHiBlack).Fprintf(a.out, "\n  page %d of %d (%d total)\n", p.Page, max(p.TotalPages, 1), p.Total)
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) cmdAdminsCreate(ctx context.Context, args []string) error {
	f, err := parseFlags(args, []string{"username", "email", "role", "permission"},
		map[string]string{"u": "username", "e": "email", "r": "role", "p": "permission"})
	if err != nil {
		return err
	}
	if f.get("username") == "" || f.get("email") == "" {
		return errors.New("usage: admins create --username <u> --email <e> --role <r> [--permission <p>]...")
	}

	s, err := a.requireSession()
	if err != nil {
		return err
	}
	actor := s.Actor()
	if err := admins.RequireManager(actor); err != nil {
		return err
	}

	p := newPrompter(a.in, a.out)
	password, err := p.secret("Password")
	if err != nil {
		return err
	}
	confirm, err := p.secret("Confirm password")
	if err != nil {
		return err
	}

	if _, label := admins.PasswordStrength(password); password != "" {
		color.New(color.FgHiBlack).Fprintf(a.out, "  password strength: %s\n", label)
	}

	account, err := admins.NewService(a.client(s)).Create(ctx, actor, admins.CreateRequest{
		Username:        f.get("username"),
		Email:           f.get("email"),
		Password:        password,
		ConfirmPassword: confirm,
		Role:            rbac.Role(f.get("role")),
		Permissions:     f.all("permission"),
	})
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "✓ Created admin: %s\n", account.Username)
	fmt.Fprintf(a.out, "  ID:     %s\n", account.ID)
	fmt.Fprintf(a.out, "  Email:  %s\n", account.Email)
	fmt.Fprintf(a.out, "  Role:   %s\n", roleLabel(account.Role))
	if len(account.Permissions) > 0 {
		fmt.Fprintf(a.out, "  Extra:  %s\n", strings.Join(account.Permissions, ", "))
	}
	return nil
}
