package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/contactbook/internal/client/api"
	"github.com/dmitrijs2005/contactbook/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword
var getMultiline = GetMultiline

// Register prompts for a username, email and password and attempts to create
// a new account. On success it reminds the user to confirm the email address
// before logging in. The password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.client.Register(ctx, userName, email, password)
	if err != nil {
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	printlnFn(fmt.Sprintf("Registered %s. Check %s for a confirmation link before logging in.", user.Username, user.Email))
	return nil
}

// Login prompts for credentials and tries to authenticate against the server.
// On success the username is remembered for the prompt. The password is wiped
// before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Login(ctx, userName, password); err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			log.Printf("Server unavailable: %s", err.Error())
		} else {
			log.Printf("Login unsuccessful: %s", err.Error())
		}
		return err
	}

	a.userName = userName
	log.Printf("Login successful")
	return nil
}

// Logout drops the session tokens held in memory.
func (a *App) Logout(ctx context.Context) error {
	a.client.Logout()
	a.userName = ""
	printlnFn("Logged out")
	return nil
}

// Me fetches and prints the authenticated user's profile.
func (a *App) Me(ctx context.Context) error {
	user, err := a.client.Me(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	printlnFn(fmt.Sprintf("id: %d", user.ID))
	printlnFn(fmt.Sprintf("username: %s", user.Username))
	printlnFn(fmt.Sprintf("email: %s", user.Email))
	printlnFn(fmt.Sprintf("role: %s", user.Role))
	printlnFn(fmt.Sprintf("confirmed: %t", user.Confirmed))
	if user.Avatar != "" {
		printlnFn(fmt.Sprintf("avatar: %s", user.Avatar))
	}
	return nil
}
