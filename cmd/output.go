package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/gateway"
)

// maxCellWidth truncates long subjects and summaries in email tables.
const maxCellWidth = 60

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	bucketStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
)

// emailTable renders emails with their IDs, which reply and delete take.
func emailTable(emails []gateway.Email) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "FROM", "DATE", "SUBJECT", "SUMMARY").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, e := range emails {
		t.Row(e.ID, e.Sender(), e.Date, clip(subjectOrPlaceholder(e.Subject)), clip(firstNonEmpty(e.AISummary, e.Snippet)))
	}
	return t.String()
}

// writeResults prints the orchestrator's result set.
func writeResults(w io.Writer, rs chat.ResultSet) {
	switch rs.Mode {
	case chat.ResultsFlat:
		if len(rs.Emails) == 0 {
			fmt.Fprintln(w, "No emails.")
			return
		}
		fmt.Fprintln(w, emailTable(rs.Emails))
	case chat.ResultsCategorized:
		if rs.Digest != "" {
			fmt.Fprintf(w, "%s\n\n", rs.Digest)
		}
		for _, name := range gateway.CategoryNames {
			bucket := rs.Categories.Bucket(name)
			fmt.Fprintln(w, bucketStyle.Render(fmt.Sprintf("%s (%d)", name, len(bucket))))
			if len(bucket) == 0 {
				fmt.Fprintln(w, "  no emails")
				continue
			}
			fmt.Fprintln(w, emailTable(bucket))
		}
	}
}

// turnOutput is the --json shape of a chat, digest or emails run.
type turnOutput struct {
	Message      string                `json:"message,omitempty"`
	Emails       []gateway.Email       `json:"emails,omitempty"`
	Categories   *gateway.Categories   `json:"categories,omitempty"`
	Digest       string                `json:"digest,omitempty"`
	DeletedEmail *gateway.DeletedEmail `json:"deleted_email,omitempty"`
}

func newTurnOutput(message string, reply gateway.ChatReply, rs chat.ResultSet) turnOutput {
	out := turnOutput{Message: message, DeletedEmail: reply.DeletedEmail}
	switch rs.Mode {
	case chat.ResultsFlat:
		out.Emails = rs.Emails
		if out.Emails == nil {
			out.Emails = []gateway.Email{}
		}
	case chat.ResultsCategorized:
		categories := rs.Categories
		out.Categories = &categories
		out.Digest = rs.Digest
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// confirm asks a yes/no question on in. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := readLine(in)
	if err != nil {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// readLine reads up to and excluding the next newline without buffering
// past it, so consecutive prompts can share one reader.
func readLine(in io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return sb.String(), nil
			}
			sb.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// printNotifier writes dialog outcome messages to the terminal.
type printNotifier struct {
	w io.Writer
}

func (n printNotifier) Notify(_ chat.Role, text string) {
	fmt.Fprintln(n.w, text)
}

func subjectOrPlaceholder(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return "(no subject)"
	}
	return subject
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxCellWidth {
		return s
	}
	return string(r[:maxCellWidth-1]) + "…"
}
