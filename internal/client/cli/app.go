// Package cli implements the interactive ContactBook command-line client.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/contactbook/internal/client/api"
	"github.com/dmitrijs2005/contactbook/internal/client/config"
)

// App wires the interactive shell to the HTTP API client.
type App struct {
	config   *config.Config
	client   *api.Client
	userName string
	reader   *bufio.Reader
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		client: api.NewClient(c.ServerBaseURL, c.RequestTimeout),
		reader: bufio.NewReader(os.Stdin),
	}
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

// getStatus renders the prompt suffix, e.g. "(alice)" when logged in.
func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.userName)
}

// Run starts the interactive loop and blocks until the user exits
// or stdin is closed.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to ContactBook CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}
