package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/spf13/cobra"
)

// ErrNotLoggedIn is returned by commands that need a restaurant.
var ErrNotLoggedIn = errors.New("not logged in, run kds login <code> first")

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <restaurant-code>",
		Short: "Log in to a restaurant",
		Long: `Validate a restaurant code against the backend and store it.

A running display picks the new restaurant up through POST /api/session; this
command only updates storage for the next start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, opts, func(ctx context.Context, deps *Deps, out *OutputFormatter) error {
				sess, err := deps.Sessions.Login(ctx, args[0])
				if err != nil {
					return err
				}
				if out.JSON() {
					return out.Data(sess)
				}

				return out.Line("Logged in to %s (%s)", sess.Name, sess.Code)
			})
		},
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored restaurant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, opts, func(ctx context.Context, deps *Deps, out *OutputFormatter) error {
				if err := deps.Sessions.Logout(ctx); err != nil {
					return err
				}
				if out.JSON() {
					return out.Data(session.Session{})
				}

				return out.Line("Logged out")
			})
		},
	}
}

// NewWhoamiCommand creates the command that shows the stored restaurant.
func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored restaurant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, opts, func(ctx context.Context, deps *Deps, out *OutputFormatter) error {
				sess, err := deps.Sessions.Restore(ctx)
				if err != nil {
					return err
				}
				if out.JSON() {
					return out.Data(sess)
				}
				if sess.Empty() {
					return out.Line("Not logged in")
				}

				return out.Line("%s (%s), room %s", sess.Name, sess.Code, sess.RoomKey())
			})
		},
	}
}

// withDeps builds the clients, runs fn and closes them.
func withDeps(
	cmd *cobra.Command,
	opts *RootOptions,
	fn func(ctx context.Context, deps *Deps, out *OutputFormatter) error,
) error {
	deps, err := opts.newDeps(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if deps.Close != nil {
			_ = deps.Close()
		}
	}()

	return fn(cmd.Context(), deps, newFormatter(opts, cmd.OutOrStdout()))
}

// requireSession restores the stored session or fails with ErrNotLoggedIn.
func requireSession(ctx context.Context, deps *Deps) (session.Session, error) {
	sess, err := deps.Sessions.Restore(ctx)
	if err != nil {
		return session.Session{}, err
	}
	if sess.Empty() {
		return session.Session{}, ErrNotLoggedIn
	}

	return sess, nil
}
