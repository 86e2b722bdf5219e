package gateway

import (
	"bytes"
	"encoding/json"
)

// ReplyKind identifies which shape a chat response had.
type ReplyKind int

const (
	// PlainMessage carries text only.
	PlainMessage ReplyKind = iota
	// EmailList carries a flat list of emails.
	EmailList
	// CategorizedBundle carries categorized emails and an optional digest.
	CategorizedBundle
)

func (k ReplyKind) String() string {
	switch k {
	case EmailList:
		return "email_list"
	case CategorizedBundle:
		return "categorized_bundle"
	default:
		return "plain_message"
	}
}

// ChatReply is a decoded chat or categorize response.
//
// Emails is only meaningful for EmailList, Categories and Digest only for
// CategorizedBundle.
type ChatReply struct {
	Kind       ReplyKind
	Message    string
	Intent     string
	Confidence float64

	Emails     []Email
	Categories Categories
	Digest     string

	// DeletedEmail is set when the backend trashed a message for this turn.
	DeletedEmail          *DeletedEmail
	RequiresClarification bool
}

type chatEnvelope struct {
	Message               string          `json:"message"`
	Intent                string          `json:"intent"`
	Confidence            float64         `json:"confidence"`
	Emails                json.RawMessage `json:"emails"`
	Categories            json.RawMessage `json:"categories"`
	Digest                string          `json:"digest"`
	DeletedEmail          *DeletedEmail   `json:"deleted_email"`
	RequiresClarification bool            `json:"requires_clarification"`
}

// DecodeChatReply decodes a /chat response body.
//
// The presence of "emails" selects EmailList, even when the list is empty.
// Otherwise "categories" selects CategorizedBundle. Anything else, including
// a body that does not parse, is a PlainMessage.
func DecodeChatReply(data []byte) ChatReply {
	var env chatEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ChatReply{Kind: PlainMessage}
	}

	reply := ChatReply{
		Kind:                  PlainMessage,
		Message:               env.Message,
		Intent:                env.Intent,
		Confidence:            env.Confidence,
		DeletedEmail:          env.DeletedEmail,
		RequiresClarification: env.RequiresClarification,
	}

	if present(env.Emails) {
		var emails []Email
		if err := json.Unmarshal(env.Emails, &emails); err == nil {
			if emails == nil {
				emails = []Email{}
			}
			reply.Kind = EmailList
			reply.Emails = emails
			return reply
		}
	}

	if present(env.Categories) {
		var categories Categories
		if err := json.Unmarshal(env.Categories, &categories); err == nil {
			reply.Kind = CategorizedBundle
			reply.Categories = categories
			reply.Digest = env.Digest
		}
	}
	return reply
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
