// Command skillctl is the terminal client for the certification service: learners
// take tests and start selling, admins work through the grading queue.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skillcert_backend/pkg/client"
	"skillcert_backend/pkg/logger"
)

var (
	serverURL   string
	sessionPath string
	verbose     bool

	// session is loaded before every command runs
	session *client.Session
)

var rootCmd = &cobra.Command{
	Use:           "skillctl",
	Short:         "Take skill tests, grade submissions and unlock selling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.InitConsole(verbose)
		return loadSession()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (default from the saved session, else http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", "", "session file (default in the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func loadSession() error {
	if sessionPath == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			return err
		}
		sessionPath = p
	}
	s, err := client.LoadSession(sessionPath)
	switch {
	case errors.Is(err, client.ErrNoSession):
		s = &client.Session{BaseURL: "http://localhost:8080"}
	case err != nil:
		return err
	}
	if serverURL != "" {
		s.BaseURL = serverURL
	}
	session = s
	logger.Log.Debug("session loaded", zap.String("path", sessionPath), zap.String("server", s.BaseURL), zap.Bool("loggedIn", s.LoggedIn()))
	return nil
}

func newClient() *client.Client {
	return client.New(session)
}

// requireLogin is used as PreRunE by commands that need a token.
func requireLogin(cmd *cobra.Command, args []string) error {
	if !session.LoggedIn() {
		return fmt.Errorf("%w: run 'skillctl login' first", client.ErrNoSession)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
