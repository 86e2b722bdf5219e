package gateway

import (
	"net/mail"
	"strings"
)

// User is the authenticated account as reported by /auth/me.
type User struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	ID      string `json:"id,omitempty"`
}

// DisplayName returns the user's name, falling back to the email address.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Email is a message as returned by the backend. The client never builds one.
type Email struct {
	ID          string   `json:"id"`
	ThreadID    string   `json:"thread_id,omitempty"`
	Subject     string   `json:"subject"`
	From        string   `json:"from"`
	SenderName  string   `json:"sender_name"`
	SenderEmail string   `json:"sender_email"`
	To          string   `json:"to,omitempty"`
	Date        string   `json:"date"`
	Snippet     string   `json:"snippet"`
	AISummary   string   `json:"ai_summary,omitempty"`
	Body        string   `json:"body,omitempty"`
	AIReply     string   `json:"ai_reply,omitempty"`
	MessageID   string   `json:"message_id,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Sender returns a display name for the sender.
func (e Email) Sender() string {
	switch {
	case e.SenderName != "":
		return e.SenderName
	case e.SenderEmail != "":
		return e.SenderEmail
	default:
		return e.From
	}
}

// ReplyAddress returns the address a reply should go to: sender_email, or
// the address parsed from the From header.
func (e Email) ReplyAddress() string {
	if e.SenderEmail != "" {
		return e.SenderEmail
	}
	if addr, err := mail.ParseAddress(e.From); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(e.From)
}

// Category names used by the backend.
const (
	CategoryWork       = "Work"
	CategoryPersonal   = "Personal"
	CategoryPromotions = "Promotions"
	CategoryUrgent     = "Urgent"
)

// CategoryNames lists the categories in display order.
var CategoryNames = []string{CategoryWork, CategoryPersonal, CategoryPromotions, CategoryUrgent}

// Categories is the categorized bundle. An email may appear in several buckets.
type Categories struct {
	Work       []Email `json:"Work"`
	Personal   []Email `json:"Personal"`
	Promotions []Email `json:"Promotions"`
	Urgent     []Email `json:"Urgent"`
}

// Bucket returns the emails filed under name.
func (c Categories) Bucket(name string) []Email {
	switch name {
	case CategoryWork:
		return c.Work
	case CategoryPersonal:
		return c.Personal
	case CategoryPromotions:
		return c.Promotions
	case CategoryUrgent:
		return c.Urgent
	}
	return nil
}

// Len returns the number of entries across all buckets.
func (c Categories) Len() int {
	return len(c.Work) + len(c.Personal) + len(c.Promotions) + len(c.Urgent)
}

// Without returns a copy of c with every entry for id removed.
func (c Categories) Without(id string) Categories {
	return Categories{
		Work:       WithoutEmail(c.Work, id),
		Personal:   WithoutEmail(c.Personal, id),
		Promotions: WithoutEmail(c.Promotions, id),
		Urgent:     WithoutEmail(c.Urgent, id),
	}
}

// Clone returns a deep copy of the bucket slices.
func (c Categories) Clone() Categories {
	return Categories{
		Work:       cloneEmails(c.Work),
		Personal:   cloneEmails(c.Personal),
		Promotions: cloneEmails(c.Promotions),
		Urgent:     cloneEmails(c.Urgent),
	}
}

// WithoutEmail returns a new slice holding every email of in except id.
func WithoutEmail(in []Email, id string) []Email {
	out := make([]Email, 0, len(in))
	for _, e := range in {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func cloneEmails(in []Email) []Email {
	if in == nil {
		return nil
	}
	out := make([]Email, len(in))
	copy(out, in)
	return out
}

// Turn is one prior chat turn sent as conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendRequest is the body of /emails/send.
type SendRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	ThreadID string `json:"thread_id,omitempty"`
}

// SendResult is the backend's acknowledgement of a sent email.
type SendResult struct {
	Message  string `json:"message"`
	EmailID  string `json:"email_id"`
	ThreadID string `json:"thread_id"`
}

// GeneratedReply is an AI reply draft.
type GeneratedReply struct {
	Reply         string `json:"reply"`
	OriginalEmail *Email `json:"original_email,omitempty"`
}

// DeletedEmail describes a message the backend trashed while handling a chat turn.
type DeletedEmail struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
}
