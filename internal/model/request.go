package model

import (
	"strings"
)

// RequestContext is the caller identity for one inbound call. Built by the
// user context middleware and never mutated afterwards.
type RequestContext struct {
	Email     string
	UserID    string
	Name      string
	Profile   FieldBag
	RequestID string
}

// FieldBag maps field names to caller-supplied values. A key counts as
// present only when its value is non-blank.
type FieldBag map[string]any

// Has reports whether name is present with a non-blank value.
func (b FieldBag) Has(name string) bool {
	v, ok := b[name]
	return ok && !IsBlank(v)
}

// Get returns the value for name and whether it is present.
func (b FieldBag) Get(name string) (any, bool) {
	if !b.Has(name) {
		return nil, false
	}
	return b[name], true
}

// Without returns a copy of the bag minus the given keys.
func (b FieldBag) Without(keys ...string) FieldBag {
	out := make(FieldBag, len(b))
	for k, v := range b {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// IsBlank treats nil, whitespace-only strings and empty collections as absent.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case FieldBag:
		return len(t) == 0
	}
	return false
}

// Attachment is a file uploaded by the user and forwarded to the helpdesk.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TicketForm is what the user submits to open a ticket.
type TicketForm struct {
	Subject      string
	Description  string
	CustomFields FieldBag
	Attachments  []Attachment
	// Extra holds every other top-level parameter; it only takes part in
	// required-field checks and is never forwarded.
	Extra FieldBag
}

// Has reports whether the named field is present top-level or under custom_fields.
func (f TicketForm) Has(name string) bool {
	switch name {
	case "subject":
		return strings.TrimSpace(f.Subject) != ""
	case "description":
		return strings.TrimSpace(f.Description) != ""
	case "attachments":
		return len(f.Attachments) > 0
	}
	return f.Extra.Has(name) || f.CustomFields.Has(name)
}

// Reply is a user's answer on an existing ticket.
type Reply struct {
	TicketID    string
	UserID      string
	AgentID     string
	Body        string
	Attachments []Attachment
}
