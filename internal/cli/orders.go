package cli

import (
	"context"
	"strings"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/spf13/cobra"
)

// NewOrdersCommand creates the command that prints the active orders from the backend.
func NewOrdersCommand(opts *RootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Print the active orders of the stored restaurant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := order.ParseFilter(filter)
			if err != nil {
				return err
			}

			return withDeps(cmd, opts, func(ctx context.Context, deps *Deps, out *OutputFormatter) error {
				sess, err := requireSession(ctx, deps)
				if err != nil {
					return err
				}
				orders, err := deps.API.FetchActive(ctx, sess.Code)
				if err != nil {
					return err
				}

				selected := make([]order.Order, 0, len(orders))
				for _, o := range orders {
					if o.Status != order.StatusCanceled && f.Match(o.Status) {
						selected = append(selected, o)
					}
				}
				if out.JSON() {
					return out.Data(selected)
				}

				return out.Table([]string{"TICKET", "SOURCE", "STATUS", "TOTAL", "WAITING", "ITEMS"}, orderRows(selected, time.Now()))
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "ALL", "status filter (ALL|OPEN|IN_PROGRESS|COMPLETED)")

	return cmd
}

func orderRows(orders []order.Order, now time.Time) [][]string {
	rows := make([][]string, len(orders))
	for i, o := range orders {
		waiting := order.FormatElapsed(o.CreatedAt, now)
		if order.IsUrgent(o, now) {
			waiting += " !"
		}
		items := make([]string, len(o.LineItems))
		for j, li := range o.LineItems {
			items[j] = li.Quantity + "x " + li.Name
		}
		rows[i] = []string{
			"#" + o.DisplayID,
			o.Source.String(),
			o.Status.String(),
			order.FormatMoney(o.TotalMoney),
			waiting,
			strings.Join(items, ", "),
		}
	}

	return rows
}
