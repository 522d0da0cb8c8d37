package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainlog/internal/common"
)

// getSimpleText and getPassword point at the interactive input helpers and
// can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errPasswordMismatch = errors.New("passwords do not match")

func (a *App) askEmail(args []string, name string) (string, error) {
	fs := newFlagSet(name, a.errOut)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *email != "" {
		return *email, nil
	}
	return getSimpleText(a.reader, "Email", a.out)
}

func (a *App) login(ctx context.Context, args []string) error {
	if err := a.requireOnline(); err != nil {
		return err
	}
	email, err := a.askEmail(args, "login")
	if err != nil {
		return err
	}
	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}

	user, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.printf("Logged in as %s\n", user.Email)
	a.autoSync(ctx)
	return nil
}

// newPassword asks twice and checks both answers agree.
func (a *App) newPassword(prompt string) ([]byte, error) {
	first, err := getPassword(prompt, a.out)
	if err != nil {
		return nil, err
	}
	again, err := getPassword("Repeat password", a.out)
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if !bytes.Equal(first, again) {
		common.WipeByteArray(first)
		return nil, errPasswordMismatch
	}
	return first, nil
}

func (a *App) register(ctx context.Context, args []string) error {
	if err := a.requireOnline(); err != nil {
		return err
	}
	email, err := a.askEmail(args, "register")
	if err != nil {
		return err
	}
	password, err := a.newPassword("Password (8 characters or more)")
	if err != nil {
		return err
	}

	user, err := a.auth.Register(ctx, email, password)
	if err != nil {
		return err
	}
	a.printf("Account created, logged in as %s\n", user.Email)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.println("Logged out.")
	return nil
}

func (a *App) whoami(ctx context.Context) error {
	if err := a.requireOnline(); err != nil {
		return err
	}
	user, err := a.auth.WhoAmI(ctx)
	if err != nil {
		return err
	}
	tw := a.table()
	writeRow(tw, "Email:", user.Email)
	writeRow(tw, "Role:", user.Role)
	writeRow(tw, "ID:", user.ID)
	writeRow(tw, "Member since:", a.formatDate(user.CreatedAt))
	return tw.Flush()
}

func (a *App) changePassword(ctx context.Context) error {
	if err := a.requireOnline(); err != nil {
		return err
	}
	current, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	next, err := a.newPassword("New password")
	if err != nil {
		common.WipeByteArray(current)
		return err
	}
	if err := a.auth.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	a.println("Password changed.")
	return nil
}

func (a *App) requireOnline() error {
	if a.config.Offline {
		return fmt.Errorf("%w, drop -offline", errOffline)
	}
	return nil
}
