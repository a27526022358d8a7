package cli

import (
	"github.com/corray333/backend-labs/kds/internal/app"
	"github.com/corray333/backend-labs/kds/internal/config"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the command that runs the display until interrupted.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the kitchen display",
		Long: `Run the kitchen display until SIGINT or SIGTERM.

The last logged-in restaurant is restored from storage. Use "kds login" or
POST /api/session to pick a restaurant.`,
		Args: cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			config.MustInitFile(opts.ConfigFile)
			app.MustNewApp().Run()
		},
	}
}
