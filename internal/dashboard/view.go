package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teemow/inboxchat/internal/actions"
	"github.com/teemow/inboxchat/internal/gateway"
)

func (m Model) View() string {
	if m.screen == screenLanding {
		return m.landingView()
	}
	return m.dashboardView()
}

func (m Model) landingView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("inboxchat"))
	b.WriteString("\n\nYour AI email assistant in the terminal.\n\n")

	if m.signingIn {
		b.WriteString(m.spinner.View() + " Waiting for you to sign in with Google in your browser...\n")
		if m.authURL != "" {
			b.WriteString("\nIf no browser opened, visit:\n  " + m.authURL + "\n")
		}
		b.WriteString("\n" + helpStyle.Render("esc cancel • ctrl+c quit"))
		return b.String()
	}

	b.WriteString("Press enter to sign in with Google.\n")
	if m.authErr != "" {
		b.WriteString("\n" + errorStyle.Render(m.authErr) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("enter sign in • q quit"))
	return b.String()
}

func (m Model) dashboardView() string {
	header := titleStyle.Render("inboxchat")
	if user := m.ws.chat.User(); user != nil {
		header += " " + helpStyle.Render(fmt.Sprintf("%s <%s>", user.DisplayName(), user.Email))
	}

	var footer string
	switch {
	case m.ws.reply.IsOpen():
		footer = m.replyView()
	case m.ws.del.IsOpen():
		footer = m.deleteView()
	default:
		footer = m.statusLine() + "\n" + m.input.View() + "\n" + helpStyle.Render("enter send • /help commands • pgup/pgdown scroll • ctrl+c quit")
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", m.viewport.View(), footer)
}

func (m Model) statusLine() string {
	switch {
	case !m.ws.chat.Ready() && !m.ws.chat.Busy():
		return m.spinner.View() + " Loading your account..."
	case m.ws.chat.Busy():
		return m.spinner.View() + " Thinking..."
	case m.status != "":
		return helpStyle.Render(m.status)
	}
	return ""
}

func (m Model) replyView() string {
	d := m.ws.reply
	email := d.Email()

	var b strings.Builder
	fmt.Fprintf(&b, "Reply to %s\n%s\n\n", email.Sender(), subjectStyle.Render(actions.ReplySubject(email.Subject)))

	switch d.State() {
	case actions.ReplyGenerating:
		b.WriteString(m.spinner.View() + " Generating a draft...\n")
	case actions.ReplySending:
		b.WriteString(m.draft.View() + "\n" + m.spinner.View() + " Sending...\n")
	default:
		b.WriteString(m.draft.View() + "\n")
	}
	if err := d.Err(); err != nil {
		b.WriteString(errorStyle.Render("Error: "+gateway.ErrorDetail(err)) + "\n")
	}
	if m.status != "" {
		b.WriteString(helpStyle.Render(m.status) + "\n")
	}

	help := "ctrl+s send • esc cancel"
	if d.State() == actions.ReplyEditable && !d.CanConfirm() {
		help = "type a reply to enable sending • esc cancel"
	}
	b.WriteString(helpStyle.Render(help))
	return dialogStyle.Render(b.String())
}

func (m Model) deleteView() string {
	d := m.ws.del
	email := d.Email()

	var b strings.Builder
	fmt.Fprintf(&b, "Move %q from %s to trash?\n\n", subjectOf(email), email.Sender())
	if d.State() == actions.DeleteDeleting {
		b.WriteString(m.spinner.View() + " Deleting...\n")
	}
	if err := d.Err(); err != nil {
		b.WriteString(errorStyle.Render("Error: "+gateway.ErrorDetail(err)) + "\n")
	}
	b.WriteString(helpStyle.Render("y confirm • n cancel"))
	return dialogStyle.Render(b.String())
}
