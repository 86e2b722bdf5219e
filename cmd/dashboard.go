package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive inbox dashboard",
		Long: `Open the full-screen dashboard. Sign in from the landing screen, then chat
with the assistant about your inbox.

Commands typed into the input line:
  /digest         categorized overview with a daily digest
  /refresh        reload the latest emails
  /reply N        draft a reply to email N of the current results
  /delete N       move email N to the trash
  /logout, /quit

Logs are discarded unless --log-file is set, so they never tear the screen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{interactive: true}, runDashboard)
		},
	}
}

func runDashboard(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := dashboard.New(dashboard.Options{
		Backend:         a.client,
		Session:         a.session,
		CallbackAddr:    a.cfg.CallbackAddr,
		EmailLimit:      a.cfg.EmailLimit,
		CategorizeLimit: a.cfg.CategorizeLimit,
		Logger:          a.logger,
		Metrics:         a.metrics(),
		Context:         ctx,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
