package freshdesk

import (
	"encoding/json"
	"strconv"
	"time"
)

// Status is the numeric ticket status used by the Freshdesk API.
type Status int

const (
	StatusOpen     Status = 2
	StatusPending  Status = 3
	StatusResolved Status = 4
	StatusClosed   Status = 5
)

// IsClosed reports whether the status belongs to the "close" bucket.
func (s Status) IsClosed() bool {
	return s == StatusResolved || s == StatusClosed
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusClosed:
		return "closed"
	}
	return strconv.Itoa(int(s))
}

// Priority is the numeric ticket priority used by the Freshdesk API.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

// Ticket is the decoded view of an upstream ticket. The proxy decides on
// a handful of fields only; the payload it decoded from is kept and sent
// back to the caller unchanged.
type Ticket struct {
	raw json.RawMessage

	ID              int64          `json:"id"`
	Subject         string         `json:"subject"`
	Description     string         `json:"description,omitempty"`
	DescriptionText string         `json:"description_text,omitempty"`
	Status          Status         `json:"status"`
	Priority        Priority       `json:"priority"`
	Source          int            `json:"source,omitempty"`
	Type            *string        `json:"type"`
	RequesterID     int64          `json:"requester_id"`
	ResponderID     *int64         `json:"responder_id"`
	GroupID         *int64         `json:"group_id"`
	CompanyID       *int64         `json:"company_id"`
	CCEmails        []string       `json:"cc_emails,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	CustomFields    map[string]any `json:"custom_fields,omitempty"`
	Attachments     []Attachment   `json:"attachments,omitempty"`
	IsEscalated     bool           `json:"is_escalated"`
	DueBy           *time.Time     `json:"due_by,omitempty"`
	FrDueBy         *time.Time     `json:"fr_due_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (t *Ticket) UnmarshalJSON(b []byte) error {
	type plain Ticket
	if err := json.Unmarshal(b, (*plain)(t)); err != nil {
		return err
	}
	t.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON returns the upstream payload as received. Tickets built in
// code (no payload) are encoded from their fields.
func (t Ticket) MarshalJSON() ([]byte, error) {
	if t.raw != nil {
		return t.raw, nil
	}
	type plain Ticket
	return json.Marshal(plain(t))
}

// OwnedBy reports whether userID is the ticket's requester.
func (t *Ticket) OwnedBy(userID string) bool {
	return userID != "" && strconv.FormatInt(t.RequesterID, 10) == userID
}

// Conversation keeps its upstream payload like Ticket does.
type Conversation struct {
	raw json.RawMessage

	ID           int64        `json:"id"`
	Body         string       `json:"body"`
	BodyText     string       `json:"body_text"`
	Incoming     bool         `json:"incoming"`
	Private      *bool        `json:"private"`
	UserID       int64        `json:"user_id"`
	SupportEmail *string      `json:"support_email"`
	Source       int          `json:"source"`
	TicketID     int64        `json:"ticket_id"`
	FromEmail    string       `json:"from_email,omitempty"`
	ToEmails     []string     `json:"to_emails,omitempty"`
	CCEmails     []string     `json:"cc_emails,omitempty"`
	Attachments  []Attachment `json:"attachments"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (c *Conversation) UnmarshalJSON(b []byte) error {
	type plain Conversation
	if err := json.Unmarshal(b, (*plain)(c)); err != nil {
		return err
	}
	c.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	type plain Conversation
	return json.Marshal(plain(c))
}

// IsPublic is true only for an explicit "private": false. A missing or
// null flag counts as private.
func (c Conversation) IsPublic() bool {
	return c.Private != nil && !*c.Private
}

type Attachment struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	AttachmentURL string    `json:"attachment_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TicketField is one entry of GET /ticket_fields. Choices keep the raw
// upstream shape: an object for status/priority/source, a list for
// dropdowns and nested objects for nested fields.
type TicketField struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	Label                string          `json:"label"`
	LabelForCustomers    string          `json:"label_for_customers"`
	Description          string          `json:"description"`
	Position             int             `json:"position"`
	Type                 string          `json:"type"`
	Default              bool            `json:"default"`
	RequiredForClosure   bool            `json:"required_for_closure"`
	RequiredForAgents    bool            `json:"required_for_agents"`
	RequiredForCustomers bool            `json:"required_for_customers"`
	CustomersCanEdit     bool            `json:"customers_can_edit"`
	DisplayedToCustomers bool            `json:"displayed_to_customers"`
	Choices              json.RawMessage `json:"choices,omitempty"`
	NestedTicketFields   json.RawMessage `json:"nested_ticket_fields,omitempty"`
}

type Contact struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// NewContact is the body of POST /contacts.
type NewContact struct {
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

type Agent struct {
	ID      int64 `json:"id"`
	Contact struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"contact"`
}

// Response is a validated upstream answer passed through to the caller as-is.
type Response struct {
	StatusCode int
	Body       []byte
}

// ID extracts the "id" field of a ticket or note response, 0 if absent.
func (r *Response) ID() int64 {
	var v struct {
		ID       int64 `json:"id"`
		TicketID int64 `json:"ticket_id"`
	}
	if json.Unmarshal(r.Body, &v) != nil {
		return 0
	}
	if v.TicketID != 0 {
		return v.TicketID
	}
	return v.ID
}
