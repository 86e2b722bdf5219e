package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/gateway"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	indexStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	subjectStyle = lipgloss.NewStyle().Bold(true)
	senderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true)

	categoryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	digestStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("57")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// RenderTranscript renders messages in insertion order.
func RenderTranscript(messages []chat.Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(roleLabel(msg.Role))
		b.WriteString(" ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func roleLabel(role chat.Role) string {
	switch role {
	case chat.RoleUser:
		return userStyle.Render("You:")
	case chat.RoleSystem:
		return systemStyle.Render("System:")
	default:
		return assistantStyle.Render("Assistant:")
	}
}

// RenderEmails renders a numbered email list. Numbering starts at start+1 so
// categorized output can continue a running index.
func RenderEmails(emails []gateway.Email, start int) string {
	var b strings.Builder
	for i, email := range emails {
		fmt.Fprintf(&b, "%s %s\n", indexStyle.Render(fmt.Sprintf("[%d]", start+i+1)), subjectStyle.Render(subjectOf(email)))
		line := "    " + senderStyle.Render(email.Sender())
		if email.Date != "" {
			line += senderStyle.Render("  " + email.Date)
		}
		b.WriteString(line + "\n")
		if summary := firstNonEmpty(email.AISummary, email.Snippet); summary != "" {
			b.WriteString("    " + summaryStyle.Render(summary) + "\n")
		}
	}
	return b.String()
}

// RenderCategories renders the categorized bundle and digest. Indexes match
// chat.ResultSet.Visible, so an email listed in two buckets keeps the number
// of its first appearance.
func RenderCategories(categories gateway.Categories, digest string) string {
	var b strings.Builder
	if digest != "" {
		b.WriteString(digestStyle.Render(digest))
		b.WriteString("\n\n")
	}

	index := map[string]int{}
	next := 0
	for _, name := range gateway.CategoryNames {
		bucket := categories.Bucket(name)
		b.WriteString(categoryStyle.Render(fmt.Sprintf("%s (%d)", name, len(bucket))))
		b.WriteString("\n")
		if len(bucket) == 0 {
			b.WriteString(helpStyle.Render("    no emails") + "\n")
		}
		for _, email := range bucket {
			n, ok := index[email.ID]
			if !ok {
				n = next
				index[email.ID] = n
				next++
			}
			b.WriteString(RenderEmails([]gateway.Email{email}, n))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderResults renders whichever representation rs holds.
func RenderResults(rs chat.ResultSet) string {
	switch rs.Mode {
	case chat.ResultsFlat:
		if len(rs.Emails) == 0 {
			return helpStyle.Render("No emails.") + "\n"
		}
		return RenderEmails(rs.Emails, 0)
	case chat.ResultsCategorized:
		return RenderCategories(rs.Categories, rs.Digest)
	default:
		return ""
	}
}

func subjectOf(email gateway.Email) string {
	if email.Subject == "" {
		return "(no subject)"
	}
	return email.Subject
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
