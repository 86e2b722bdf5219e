package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/login"
)

// healthTimeout bounds the backend probe made by `inboxchat session`.
const healthTimeout = 5 * time.Second

func newLoginCmd() *cobra.Command {
	var (
		noBrowser bool
		token     string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google through the backend",
		Long: `Sign in with Google. The backend's authorization URL is opened in your
browser and a local listener on the callback address receives the redirect
carrying the session token.

If the browser cannot reach this machine, finish the sign-in elsewhere and
pass the token from the redirect URL with --token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer cancel()

				flow := login.NewFlow(a.client, a.session, a.cfg.CallbackAddr, cmd.OutOrStdout(), logging.NewSlogAdapter(a.logger))
				if noBrowser {
					flow.OpenBrowser = func(string) error { return nil }
				}

				var err error
				if token != "" {
					err = flow.Complete(token)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Waiting for the sign-in redirect on %s (Ctrl+C to cancel)...\n", a.cfg.CallbackAddr)
					err = flow.Start(ctx)
				}
				if err != nil {
					return fmt.Errorf("sign-in failed: %w", err)
				}

				user, err := a.client.CurrentUser(ctx)
				if err != nil {
					return fmt.Errorf("signed in, but could not load your account: %s", gateway.ErrorDetail(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", formatUser(user))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the sign-in URL without opening a browser")
	cmd.Flags().StringVar(&token, "token", "", "Store this session token instead of running the browser flow")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if !a.session.Authenticated() {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
					return nil
				}
				if err := a.client.Logout(ctx); err != nil {
					a.logger.Warn("backend logout failed", logging.Err(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				user, err := a.client.CurrentUser(ctx)
				if err != nil {
					return backendError("load your account", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatUser(user))
				return nil
			})
		},
	}
}

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the stored session and backend status",
		Long: `Show where the session is stored, what the stored token says about the
account and when it expires, and whether the backend is reachable. The token
is decoded locally and its signature is not checked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backend:   %s\n", a.cfg.APIURL())
				fmt.Fprintf(out, "Store:     %s\n", describeStore(a))

				if !a.session.Authenticated() {
					fmt.Fprintln(out, "Session:   not signed in")
				} else if claims, err := a.session.Inspect(); err != nil {
					fmt.Fprintf(out, "Session:   signed in (%v)\n", err)
				} else {
					fmt.Fprintf(out, "Session:   signed in as %s\n", firstNonEmpty(claims.Email, claims.Name, claims.UserID))
					if !claims.ExpiresAt.IsZero() {
						state := "expires"
						if claims.Expired(time.Now()) {
							state = "expired"
						}
						fmt.Fprintf(out, "Token:     %s %s\n", state, claims.ExpiresAt.Local().Format(time.RFC1123))
					}
				}

				hctx, cancel := context.WithTimeout(ctx, healthTimeout)
				defer cancel()
				status, err := a.client.Health(hctx)
				if err != nil {
					status = "unreachable (" + gateway.ErrorDetail(err) + ")"
				}
				fmt.Fprintf(out, "Health:    %s\n", status)
				return nil
			})
		},
	}
}

func describeStore(a *app) string {
	if path := storePath(a.cfg); path != "" {
		return fmt.Sprintf("%s (%s)", a.cfg.StoreType, path)
	}
	return a.cfg.StoreType
}

func formatUser(user *gateway.User) string {
	if user.Name != "" && user.Email != "" {
		return fmt.Sprintf("%s <%s>", user.Name, user.Email)
	}
	return user.DisplayName()
}

// backendError turns a gateway error into a command error carrying the
// backend's detail text.
func backendError(action string, err error) error {
	return fmt.Errorf("failed to %s: %s", action, gateway.ErrorDetail(err))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
