// Package cli implements the policyctl command tree.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// App holds the services the commands drive.
type App struct {
	Creds      *application.CredentialManager
	Settings   *application.RepoSettingsService
	Tables     *application.TableRegistry
	Source     driven.TableSource
	Engine     *application.RowMutationEngine
	Comparator *application.ValueComparator
	// Close releases the resources behind the services. May be nil.
	Close func()
}

// AppFactory builds the App once flags are parsed.
type AppFactory func(ctx context.Context) (*App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"

	factory  AppFactory
	app      *App
	prompter application.TokenPrompter
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Option customizes the root command.
type Option func(*RootOptions)

// WithPrompter replaces the terminal token prompt.
func WithPrompter(p application.TokenPrompter) Option {
	return func(o *RootOptions) { o.prompter = p }
}

// NewRootCommand creates the root command for policyctl.
func NewRootCommand(factory AppFactory, opts ...Option) *cobra.Command {
	rootOpts := &RootOptions{factory: factory}
	for _, opt := range opts {
		opt(rootOpts)
	}

	cmd := &cobra.Command{
		Use:   "policyctl",
		Short: "Edit the policy tables stored in GitHub",
		Long: `policyctl reads and edits the two policy tables kept as JSON documents
in a GitHub repository. Writes are committed with the signed-in account.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, rootOpts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", rootOpts.Format, ValidFormats)
			}
			if rootOpts.prompter == nil {
				rootOpts.prompter = NewTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			app, err := rootOpts.factory(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			rootOpts.app = app
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rootOpts.app != nil && rootOpts.app.Close != nil {
				rootOpts.app.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&rootOpts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLoginCommand(rootOpts))
	cmd.AddCommand(NewLogoutCommand(rootOpts))
	cmd.AddCommand(NewWhoamiCommand(rootOpts))
	cmd.AddCommand(NewShowCommand(rootOpts))
	cmd.AddCommand(NewAddCommand(rootOpts))
	cmd.AddCommand(NewUpdateCommand(rootOpts))
	cmd.AddCommand(NewRepoCommand(rootOpts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// requireSession prompts for a token when no session is active.
func (o *RootOptions) requireSession(ctx context.Context) error {
	outcome, err := o.app.Creds.EnsureSession(ctx, o.prompter)
	if err != nil {
		return err
	}
	if outcome == application.SessionCancelled {
		return NewExitError(ExitCancelled, "cancelled: no token entered")
	}
	return nil
}
