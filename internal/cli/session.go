package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// SessionResult describes the session after a session command.
type SessionResult struct {
	Authenticated bool            `json:"authenticated"`
	User          *model.Identity `json:"user,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

func sessionResult(creds *application.CredentialManager) SessionResult {
	res := SessionResult{Authenticated: creds.IsAuthenticated(), User: creds.CurrentUser()}
	if res.Authenticated {
		exp := creds.ExpiresAt().UTC()
		res.ExpiresAt = &exp
	}
	return res
}

func (r SessionResult) String() string {
	if !r.Authenticated {
		return "Not signed in."
	}
	who := "unverified account"
	if r.User != nil {
		who = r.User.Login
		if r.User.Name != "" {
			who += " (" + r.User.Name + ")"
		}
	}
	return fmt.Sprintf("Signed in as %s until %s.", who, r.ExpiresAt.Format(time.RFC3339))
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with a GitHub personal access token read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			token, err := rootOpts.prompter.PromptToken(ctx)
			if errors.Is(err, application.ErrPromptCancelled) {
				return NewExitError(ExitCancelled, "cancelled: no token entered")
			}
			if err != nil {
				return err
			}

			if _, err := rootOpts.app.Creds.Login(ctx, token); err != nil {
				return err
			}
			res := sessionResult(rootOpts.app.Creds)
			return rootOpts.formatter(cmd).Success(res.String(), res)
		},
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rootOpts.app.Creds.Logout(cmd.Context())
			res := sessionResult(rootOpts.app.Creds)
			return rootOpts.formatter(cmd).Success("Signed out.", res)
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := sessionResult(rootOpts.app.Creds)
			return rootOpts.formatter(cmd).Success(res.String(), res)
		},
	}
}
