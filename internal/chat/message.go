package chat

import (
	"time"

	"github.com/teemow/inboxchat/internal/gateway"
)

// Role is the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one transcript entry.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// ResultMode says which representation the result set holds.
type ResultMode int

const (
	ResultsEmpty ResultMode = iota
	ResultsFlat
	ResultsCategorized
)

// ResultSet is the collection of emails currently on screen: either a flat
// list or a categorized bundle, never both.
type ResultSet struct {
	Mode       ResultMode
	Emails     []gateway.Email
	Categories gateway.Categories
	Digest     string
}

// Flat reports whether the flat list is shown.
func (r ResultSet) Flat() bool { return r.Mode == ResultsFlat }

// Categorized reports whether the categorized bundle is shown.
func (r ResultSet) Categorized() bool { return r.Mode == ResultsCategorized }

// Find returns the email with id from whichever representation is shown.
func (r ResultSet) Find(id string) (gateway.Email, bool) {
	for _, e := range r.Emails {
		if e.ID == id {
			return e, true
		}
	}
	for _, name := range gateway.CategoryNames {
		for _, e := range r.Categories.Bucket(name) {
			if e.ID == id {
				return e, true
			}
		}
	}
	return gateway.Email{}, false
}

// Visible returns the shown emails in display order, once each. For the
// categorized bundle that is bucket order with duplicates dropped.
func (r ResultSet) Visible() []gateway.Email {
	if r.Mode != ResultsCategorized {
		return cloneEmails(r.Emails)
	}
	seen := make(map[string]bool)
	var out []gateway.Email
	for _, name := range gateway.CategoryNames {
		for _, e := range r.Categories.Bucket(name) {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out
}

func flatResults(emails []gateway.Email) ResultSet {
	out := cloneEmails(emails)
	if out == nil {
		out = []gateway.Email{}
	}
	return ResultSet{Mode: ResultsFlat, Emails: out}
}

func categorizedResults(categories gateway.Categories, digest string) ResultSet {
	return ResultSet{Mode: ResultsCategorized, Categories: categories.Clone(), Digest: digest}
}

func (r ResultSet) clone() ResultSet {
	return ResultSet{
		Mode:       r.Mode,
		Emails:     cloneEmails(r.Emails),
		Categories: r.Categories.Clone(),
		Digest:     r.Digest,
	}
}

// without returns a new ResultSet with id removed from every representation.
func (r ResultSet) without(id string) ResultSet {
	out := ResultSet{Mode: r.Mode, Digest: r.Digest}
	if r.Emails != nil {
		out.Emails = gateway.WithoutEmail(r.Emails, id)
	}
	out.Categories = r.Categories.Without(id)
	return out
}

func cloneEmails(in []gateway.Email) []gateway.Email {
	if in == nil {
		return nil
	}
	out := make([]gateway.Email, len(in))
	copy(out, in)
	return out
}
