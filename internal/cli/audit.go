package cli

import (
	"context"

	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
	"github.com/spf13/cobra"
)

// NewAuditCommand creates the command that prints the audit log of the stored restaurant.
func NewAuditCommand(opts *RootOptions) *cobra.Command {
	var limit uint64
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recent status changes and anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, opts, func(ctx context.Context, deps *Deps, out *OutputFormatter) error {
				sess, err := requireSession(ctx, deps)
				if err != nil {
					return err
				}
				entries, err := deps.Audit.ListAuditLogs(ctx, sess.Code, limit)
				if err != nil {
					return err
				}
				if out.JSON() {
					if entries == nil {
						entries = []auditlog.AuditLogOrder{}
					}

					return out.Data(entries)
				}

				rows := make([][]string, len(entries))
				for i, e := range entries {
					rows[i] = []string{
						e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						string(e.Kind),
						e.OrderID,
						e.FromStatus + " -> " + e.ToStatus,
						string(e.Outcome),
						e.Error,
					}
				}

				return out.Table([]string{"TIME", "KIND", "ORDER", "CHANGE", "OUTCOME", "ERROR"}, rows)
			})
		},
	}
	cmd.Flags().Uint64VarP(&limit, "limit", "n", 20, "number of entries to show")

	return cmd
}
