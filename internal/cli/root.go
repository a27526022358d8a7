// Package cli is the command line of the kitchen display client.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// ValidFormats are the accepted values of --format.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigFile string
	Format     string

	// newDeps builds the storage and backend clients of one-shot commands.
	newDeps func(opts *RootOptions) (*Deps, error)
}

// NewRootCommand creates the kds command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{newDeps: newDeps})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kds",
		Short: "Kitchen display client",
		Long: "Kitchen display client: keeps the live order board of one restaurant in sync " +
			"with the backend and serves it to the display over a local HTTP API.",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default ./config.yaml or /etc/kds/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}
