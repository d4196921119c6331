package freshdesk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/psds-microservice/freshdesk-service/internal/model"
)

// ListOptions are the query parameters of GET /tickets.
type ListOptions struct {
	Email   string
	OrderBy string
	PerPage int
	Page    int
}

func (o ListOptions) query() string {
	q := url.Values{}
	q.Set("email", o.Email)
	q.Set("order_by", o.OrderBy)
	q.Set("per_page", strconv.Itoa(o.PerPage))
	q.Set("page", strconv.Itoa(o.Page))
	return q.Encode()
}

// ListTickets returns one page of the requester's tickets.
func (c *Client) ListTickets(ctx context.Context, opts ListOptions) ([]Ticket, error) {
	var tickets []Ticket
	if err := c.get(ctx, "/tickets?"+opts.query(), &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *Client) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	var t Ticket
	if err := c.get(ctx, "/tickets/"+url.PathEscape(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListConversations returns the whole thread, private notes included.
func (c *Client) ListConversations(ctx context.Context, ticketID string) ([]Conversation, error) {
	var out []Conversation
	if err := c.get(ctx, "/tickets/"+url.PathEscape(ticketID)+"/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewTicket is the body of POST /tickets.
type NewTicket struct {
	Email        string             `json:"email"`
	Subject      string             `json:"subject,omitempty"`
	Description  string             `json:"description,omitempty"`
	CustomFields map[string]any     `json:"custom_fields,omitempty"`
	Priority     Priority           `json:"priority"`
	Status       Status             `json:"status"`
	Attachments  []model.Attachment `json:"-"`
}

func (t NewTicket) fields() map[string]any {
	f := map[string]any{
		"email":    t.Email,
		"priority": t.Priority,
		"status":   t.Status,
	}
	if t.Subject != "" {
		f["subject"] = t.Subject
	}
	if t.Description != "" {
		f["description"] = t.Description
	}
	if len(t.CustomFields) > 0 {
		f["custom_fields"] = t.CustomFields
	}
	return f
}

// CreateTicket posts a new ticket; multipart when there are attachments.
func (c *Client) CreateTicket(ctx context.Context, t NewTicket) (*Response, error) {
	var (
		b   *body
		err error
	)
	if len(t.Attachments) > 0 {
		b, err = multipartBody(t.fields(), t.Attachments)
	} else {
		b, err = jsonBody(t)
	}
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/tickets", b)
}

// UpdateTicketStatus sends a status-only update.
func (c *Client) UpdateTicketStatus(ctx context.Context, id string, status Status) (*Response, error) {
	b, err := jsonBody(struct {
		Status Status `json:"status"`
	}{status})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, "/tickets/"+url.PathEscape(id), b)
}

// NewNote is the body of POST /tickets/{id}/notes.
type NewNote struct {
	Body         string             `json:"body"`
	UserID       int64              `json:"user_id,omitempty"`
	Private      bool               `json:"private"`
	NotifyEmails []string           `json:"notify_emails,omitempty"`
	Attachments  []model.Attachment `json:"-"`
}

func (n NewNote) fields() map[string]any {
	f := map[string]any{
		"body":    n.Body,
		"private": n.Private,
	}
	if n.UserID != 0 {
		f["user_id"] = n.UserID
	}
	if len(n.NotifyEmails) > 0 {
		f["notify_emails"] = n.NotifyEmails
	}
	return f
}

func (c *Client) AddNote(ctx context.Context, ticketID string, n NewNote) (*Response, error) {
	var (
		b   *body
		err error
	)
	if len(n.Attachments) > 0 {
		b, err = multipartBody(n.fields(), n.Attachments)
	} else {
		b, err = jsonBody(n)
	}
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/tickets/"+url.PathEscape(ticketID)+"/notes", b)
}

func (c *Client) TicketFields(ctx context.Context) ([]TicketField, error) {
	var out []TicketField
	if err := c.get(ctx, "/ticket_fields", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindContacts returns the contacts matching email; empty when none exist.
func (c *Client) FindContacts(ctx context.Context, email string) ([]Contact, error) {
	var out []Contact
	if err := c.get(ctx, "/contacts?"+url.Values{"email": {email}}.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateContact(ctx context.Context, contact NewContact) (*Contact, error) {
	b, err := jsonBody(contact)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/contacts", b)
	if err != nil {
		return nil, err
	}
	var out Contact
	if err := decode(resp, "/contacts", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var a Agent
	if err := c.get(ctx, "/agents/"+url.PathEscape(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}
