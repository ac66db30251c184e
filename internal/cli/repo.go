package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// RepoResult is the JSON form of the repo command.
type RepoResult struct {
	Current  model.RepoTarget `json:"current"`
	Defaults model.RepoTarget `json:"defaults"`
}

func (r RepoResult) String() string {
	s := fmt.Sprintf("Repository: %s (branch %s)", r.Current.FullName(), r.Current.Branch)
	if r.Current != r.Defaults {
		s += fmt.Sprintf("\nDefaults:   %s (branch %s)", r.Defaults.FullName(), r.Defaults.Branch)
	}
	return s
}

// NewRepoCommand creates the repo command. Without flags it shows the target
// repository; with flags it stores overrides.
func NewRepoCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		overrides model.RepoOverrides
		reset     bool
	)

	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Show or change the repository the tables are edited in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			settings := rootOpts.app.Settings

			switch {
			case reset:
				if _, err := settings.Reset(ctx); err != nil {
					return err
				}
			case overrides != (model.RepoOverrides{}):
				if _, err := settings.Update(ctx, overrides); err != nil {
					return err
				}
			}

			res := RepoResult{Current: settings.Current(), Defaults: settings.Defaults()}
			return rootOpts.formatter(cmd).Success(res.String(), res)
		},
	}

	cmd.Flags().StringVar(&overrides.Owner, "owner", "", "repository owner")
	cmd.Flags().StringVar(&overrides.Name, "name", "", "repository name")
	cmd.Flags().StringVar(&overrides.Branch, "branch", "", "branch to read and commit to")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop overrides and use the configured defaults")
	cmd.MarkFlagsMutuallyExclusive("reset", "owner")
	cmd.MarkFlagsMutuallyExclusive("reset", "name")
	cmd.MarkFlagsMutuallyExclusive("reset", "branch")

	return cmd
}
