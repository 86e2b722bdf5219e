package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/actions"
	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/gateway"
)

// lookupLimit is how many recent emails reply and delete search for the
// email they act on.
const lookupLimit = 50

// newOrchestrator returns a ready chat orchestrator for the signed-in user.
func newOrchestrator(ctx context.Context, a *app) (*chat.Orchestrator, error) {
	if err := a.requireSession(); err != nil {
		return nil, err
	}
	o := chat.New(a.client, chat.WithLogger(a.logger), chat.WithMetrics(a.metrics()))
	if err := o.Init(ctx); err != nil {
		return nil, backendError("load your account", err)
	}
	return o, nil
}

// turnFunc runs one orchestrator turn for the signed-in user.
type turnFunc func(ctx context.Context, a *app, o *chat.Orchestrator) (gateway.ChatReply, error)

// runTurn runs one orchestrator turn and prints the reply and results.
func runTurn(cmd *cobra.Command, asJSON bool, turn turnFunc) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		o, err := newOrchestrator(ctx, a)
		if err != nil {
			return err
		}
		reply, err := turn(ctx, a, o)
		if err != nil {
			return backendError("get an answer", err)
		}

		var message string
		if transcript := o.Transcript(); len(transcript) > 0 {
			message = transcript[len(transcript)-1].Content
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, newTurnOutput(message, reply, o.Results()))
		}
		fmt.Fprintln(out, message)
		if o.Results().Mode != chat.ResultsEmpty {
			fmt.Fprintln(out)
			writeResults(out, o.Results())
		}
		return nil
	})
}

// checkLimit rejects a --limit outside [1, gateway.MaxLimit].
func checkLimit(cmd *cobra.Command, flagValue int) error {
	if cmd.Flags().Changed("limit") && (flagValue < 1 || flagValue > gateway.MaxLimit) {
		return fmt.Errorf("--limit must be between 1 and %d", gateway.MaxLimit)
	}
	return nil
}

// pickLimit returns the --limit flag when it was given and configured
// otherwise.
func pickLimit(cmd *cobra.Command, flagValue, configured int) int {
	if cmd.Flags().Changed("limit") {
		return flagValue
	}
	return configured
}

func newEmailsCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "emails",
		Short: "List the most recent emails with AI summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkLimit(cmd, limit); err != nil {
				return err
			}
			return runTurn(cmd, asJSON, func(ctx context.Context, a *app, o *chat.Orchestrator) (gateway.ChatReply, error) {
				return o.Refresh(ctx, pickLimit(cmd, limit, a.cfg.EmailLimit))
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of emails to list (default: email_limit from the config, 5)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newDigestCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Categorize recent emails and print the daily digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkLimit(cmd, limit); err != nil {
				return err
			}
			return runTurn(cmd, asJSON, func(ctx context.Context, a *app, o *chat.Orchestrator) (gateway.ChatReply, error) {
				return o.Digest(ctx, pickLimit(cmd, limit, a.cfg.CategorizeLimit))
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of emails to categorize (default: categorize_limit from the config, 20)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newChatCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one instruction to the inbox assistant",
		Long: `Send one natural-language instruction to the assistant, for example:

  inboxchat chat "show me emails from Alice this week"
  inboxchat chat "delete the newsletter from Acme"

Each run starts a new conversation. Use the dashboard for follow-up questions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			return runTurn(cmd, asJSON, func(ctx context.Context, _ *app, o *chat.Orchestrator) (gateway.ChatReply, error) {
				return o.Submit(ctx, message)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

// findEmail looks emailID up among the most recent emails.
func findEmail(ctx context.Context, a *app, emailID string) (gateway.Email, bool, error) {
	emails, err := a.client.ListEmails(ctx, lookupLimit)
	if err != nil {
		return gateway.Email{}, false, backendError("look up email", err)
	}
	for _, e := range emails {
		if e.ID == emailID {
			return e, true, nil
		}
	}
	return gateway.Email{}, false, nil
}

func newReplyCmd() *cobra.Command {
	var (
		customContext string
		body          string
		yes           bool
	)
	cmd := &cobra.Command{
		Use:   "reply <email-id>",
		Short: "Draft an AI reply to an email and send it",
		Long: `Generate a reply draft for one of your recent emails, show it and send it
after confirmation. The reply goes to the original sender with a "Re: "
subject in the same thread.

Use --body to send your own text instead of a generated draft.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				email, ok, err := findEmail(ctx, a, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("email %s is not among your %d most recent emails", args[0], lookupLimit)
				}

				dialog := actions.NewReplyDialog(a.client, printNotifier{w: out}, a.logger)
				if err := openReply(ctx, dialog, email, customContext, body); err != nil {
					return backendError("generate reply", err)
				}

				req := actions.BuildReply(email, dialog.Draft())
				fmt.Fprintf(out, "To:      %s\nSubject: %s\n\n%s\n\n", req.To, req.Subject, req.Body)
				if !dialog.CanConfirm() {
					return errors.New("the draft is empty, nothing to send")
				}
				if !yes {
					send, err := confirm(cmd.InOrStdin(), out, "Send this reply?")
					if err != nil {
						return err
					}
					if !send {
						fmt.Fprintln(out, "Not sent.")
						return nil
					}
				}
				if err := dialog.Confirm(ctx); err != nil {
					return backendError("send reply", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&customContext, "context", "", "Extra instructions for the generated draft")
	cmd.Flags().StringVar(&body, "body", "", "Send this text instead of a generated draft")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Send without asking")
	return cmd
}

// openReply fills the dialog with a generated draft, or with body when set.
func openReply(ctx context.Context, dialog *actions.ReplyDialog, email gateway.Email, customContext, body string) error {
	if body != "" {
		return dialog.OpenWithDraft(email, body)
	}
	return dialog.Open(ctx, email, customContext)
}

func newDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <email-id>...",
		Short: "Move emails to the trash",
		Long: `Move one or more emails to the Gmail trash. Trashed emails can be restored
from Gmail for 30 days.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				dialog := actions.NewDeleteDialog(a.client, nil, printNotifier{w: out}, a.logger)

				var failed int
				for _, id := range args {
					if err := deleteOne(ctx, a, dialog, cmd.InOrStdin(), out, id, yes); err != nil {
						if errors.Is(err, gateway.ErrUnauthorized) {
							return backendError("delete email", err)
						}
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", id, gateway.ErrorDetail(err))
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d emails could not be deleted", failed, len(args))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

func deleteOne(ctx context.Context, a *app, dialog *actions.DeleteDialog, in io.Reader, out io.Writer, id string, yes bool) error {
	email := gateway.Email{ID: id}
	if !yes {
		found, ok, err := findEmail(ctx, a, id)
		if err != nil {
			return err
		}
		if ok {
			email = found
		}
	}

	if err := dialog.Open(email); err != nil {
		return err
	}
	defer dialog.Close()

	if !yes {
		question := fmt.Sprintf("Move %s to trash?", id)
		if email.Subject != "" {
			question = fmt.Sprintf("Move %q from %s to trash?", email.Subject, email.Sender())
		}
		ok, err := confirm(in, out, question)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Skipped.")
			return nil
		}
	}
	return dialog.Confirm(ctx)
}

func newSendCmd() *cobra.Command {
	var req gateway.SendRequest
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a new email",
		Long: `Send an email from the signed-in account. Pass --body - to read the body
from standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				if req.Body == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("failed to read body: %w", err)
					}
					req.Body = string(data)
				}
				if strings.TrimSpace(req.Body) == "" {
					return errors.New("the email body is empty")
				}

				res, err := a.client.SendEmail(ctx, req)
				if err != nil {
					return backendError("send email", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Email sent to %s (id %s).\n", req.To, res.EmailID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.To, "to", "", "Recipient address")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&req.Body, "body", "", "Body text, or - for stdin")
	cmd.Flags().StringVar(&req.ThreadID, "thread-id", "", "Thread to add the email to")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}
