package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/psds-microservice/freshdesk-service/internal/errs"
	"github.com/psds-microservice/freshdesk-service/internal/freshdesk"
	"github.com/psds-microservice/freshdesk-service/internal/model"
	"github.com/tidwall/sjson"
)

const maxTicketsPerRequest = 100

// Helpdesk is the upstream API the proxy talks to, implemented by freshdesk.Client.
type Helpdesk interface {
	ListTickets(ctx context.Context, opts freshdesk.ListOptions) ([]freshdesk.Ticket, error)
	GetTicket(ctx context.Context, id string) (*freshdesk.Ticket, error)
	ListConversations(ctx context.Context, ticketID string) ([]freshdesk.Conversation, error)
	CreateTicket(ctx context.Context, t freshdesk.NewTicket) (*freshdesk.Response, error)
	UpdateTicketStatus(ctx context.Context, id string, status freshdesk.Status) (*freshdesk.Response, error)
	AddNote(ctx context.Context, ticketID string, n freshdesk.NewNote) (*freshdesk.Response, error)
	TicketFields(ctx context.Context) ([]freshdesk.TicketField, error)
	FindContacts(ctx context.Context, email string) ([]freshdesk.Contact, error)
	CreateContact(ctx context.Context, c freshdesk.NewContact) (*freshdesk.Contact, error)
	GetAgent(ctx context.Context, id string) (*freshdesk.Agent, error)
}

// TicketServicer is what the HTTP handlers depend on.
type TicketServicer interface {
	ListTickets(ctx context.Context, rc model.RequestContext, pageNo, orderBy string) (*TicketBuckets, error)
	InitSettings() Settings
	GetTicketFieldSchema(ctx context.Context) ([]FormField, error)
	ReadTicket(ctx context.Context, rc model.RequestContext, ticketID, userID string) (*TicketDetail, error)
	CreateTicket(ctx context.Context, rc model.RequestContext, form model.TicketForm) (*freshdesk.Response, error)
	UpdateTicketStatus(ctx context.Context, rc model.RequestContext, ticketID, userID, status string) (*freshdesk.Response, error)
	ReplyToTicket(ctx context.Context, rc model.RequestContext, reply model.Reply) (*freshdesk.Response, error)
}

// Settings is what the front end needs before its first list call.
type Settings struct {
	PerPage           int               `json:"per_page"`
	Route             map[string]string `json:"route"`
	TicketsPerRequest int               `json:"tickets_per_request"`
}

// TicketBuckets splits a page of tickets by whether they still need attention.
type TicketBuckets struct {
	Open  []freshdesk.Ticket `json:"open"`
	Close []freshdesk.Ticket `json:"close"`
}

// TicketDetail is a ticket with its public conversation thread attached.
type TicketDetail struct {
	freshdesk.Ticket
	ConversationList []freshdesk.Conversation `json:"conversationList"`
}

// MarshalJSON adds conversationList to the upstream ticket payload.
func (d TicketDetail) MarshalJSON() ([]byte, error) {
	ticket, err := json.Marshal(d.Ticket)
	if err != nil {
		return nil, err
	}
	list := d.ConversationList
	if list == nil {
		list = []freshdesk.Conversation{}
	}
	conversations, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(ticket, "conversationList", conversations)
}

var orderByValues = map[string]bool{
	"created_at": true,
	"updated_at": true,
}

type TicketService struct {
	helpdesk Helpdesk
	settings Settings
	logger   *slog.Logger
}

// NewTicketService caps TicketsPerRequest at the helpdesk page limit.
func NewTicketService(helpdesk Helpdesk, settings Settings, logger *slog.Logger) *TicketService {
	if settings.PerPage <= 0 {
		settings.PerPage = 10
	}
	if settings.TicketsPerRequest <= 0 || settings.TicketsPerRequest > maxTicketsPerRequest {
		settings.TicketsPerRequest = maxTicketsPerRequest
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketService{helpdesk: helpdesk, settings: settings, logger: logger}
}

func (s *TicketService) InitSettings() Settings {
	return s.settings
}

// ListTickets fetches one page of the caller's tickets and buckets them by status.
func (s *TicketService) ListTickets(ctx context.Context, rc model.RequestContext, pageNo, orderBy string) (*TicketBuckets, error) {
	if err := requireParams(map[string]string{"page_no": pageNo, "order_by": orderBy}, "page_no", "order_by"); err != nil {
		return nil, err
	}
	page, err := strconv.Atoi(strings.TrimSpace(pageNo))
	if err != nil || page < 1 {
		return nil, errs.Invalid("page_no")
	}
	if !orderByValues[orderBy] {
		return nil, errs.Invalid("order_by")
	}

	tickets, err := s.helpdesk.ListTickets(ctx, freshdesk.ListOptions{
		Email:   rc.Email,
		OrderBy: orderBy,
		PerPage: s.settings.TicketsPerRequest,
		Page:    page,
	})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return Partition(tickets), nil
}

// Partition puts Resolved/Closed tickets in Close and everything else in
// Open, preserving order. Every ticket lands in exactly one bucket.
func Partition(tickets []freshdesk.Ticket) *TicketBuckets {
	out := &TicketBuckets{Open: []freshdesk.Ticket{}, Close: []freshdesk.Ticket{}}
	for _, t := range tickets {
		if t.Status.IsClosed() {
			out.Close = append(out.Close, t)
		} else {
			out.Open = append(out.Open, t)
		}
	}
	return out
}

// ReadTicket returns the ticket and its public conversation if the caller owns it.
func (s *TicketService) ReadTicket(ctx context.Context, rc model.RequestContext, ticketID, userID string) (*TicketDetail, error) {
	if err := requireParams(map[string]string{"id": ticketID, "user_id": userID}, "id", "user_id"); err != nil {
		return nil, err
	}
	ticket, err := s.ownedTicket(ctx, rc, ticketID, userID)
	if err != nil {
		return nil, err
	}
	conversations, err := s.helpdesk.ListConversations(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return &TicketDetail{Ticket: *ticket, ConversationList: PublicConversations(conversations)}, nil
}

// PublicConversations keeps entries explicitly marked non-private, preserving order.
func PublicConversations(in []freshdesk.Conversation) []freshdesk.Conversation {
	out := make([]freshdesk.Conversation, 0, len(in))
	for _, c := range in {
		if c.IsPublic() {
			out = append(out, c)
		}
	}
	return out
}

// CreateTicket opens a ticket for the caller. Priority and status are always
// Low/Open: requesters cannot choose them.
func (s *TicketService) CreateTicket(ctx context.Context, rc model.RequestContext, form model.TicketForm) (*freshdesk.Response, error) {
	fields, err := s.fetchCustomerFields(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range requiredFieldNames(fields) {
		if !form.Has(name) {
			missing = append(missing, name)
		}
	}
	if err := errs.Missing(missing...); err != nil {
		return nil, err
	}

	if err := s.ensureContact(ctx, rc); err != nil {
		return nil, err
	}

	resp, err := s.helpdesk.CreateTicket(ctx, freshdesk.NewTicket{
		Email:        rc.Email,
		Subject:      form.Subject,
		Description:  form.Description,
		CustomFields: form.CustomFields,
		Attachments:  form.Attachments,
		Priority:     freshdesk.PriorityLow,
		Status:       freshdesk.StatusOpen,
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	s.logger.Info("ticket created", "request_id", rc.RequestID, "ticket_id", resp.ID())
	return resp, nil
}

// UpdateTicketStatus lets the owner reopen or close a ticket. Only the
// Open and Closed codes are accepted.
func (s *TicketService) UpdateTicketStatus(ctx context.Context, rc model.RequestContext, ticketID, userID, status string) (*freshdesk.Response, error) {
	params := map[string]string{"id": ticketID, "status": status, "user_id": userID}
	if err := requireParams(params, "id", "status", "user_id"); err != nil {
		return nil, err
	}
	code, err := strconv.Atoi(strings.TrimSpace(status))
	if err != nil {
		return nil, errs.Invalid("status")
	}
	target := freshdesk.Status(code)
	if target != freshdesk.StatusOpen && target != freshdesk.StatusClosed {
		return nil, errs.Invalid("status")
	}

	if _, err := s.ownedTicket(ctx, rc, ticketID, userID); err != nil {
		return nil, err
	}
	resp, err := s.helpdesk.UpdateTicketStatus(ctx, ticketID, target)
	if err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	s.logger.Info("ticket status updated", "request_id", rc.RequestID, "ticket_id", ticketID, "status", target.String())
	return resp, nil
}

// ReplyToTicket adds a public note from the requester and notifies the
// assigned agent, if any.
func (s *TicketService) ReplyToTicket(ctx context.Context, rc model.RequestContext, reply model.Reply) (*freshdesk.Response, error) {
	params := map[string]string{
		"agent_id": reply.AgentID,
		"body":     reply.Body,
		"id":       reply.TicketID,
		"user_id":  reply.UserID,
	}
	if err := requireParams(params, "agent_id", "body", "id", "user_id"); err != nil {
		return nil, err
	}

	ticket, err := s.ownedTicket(ctx, rc, reply.TicketID, reply.UserID)
	if err != nil {
		return nil, err
	}

	note := freshdesk.NewNote{
		Body:        reply.Body,
		UserID:      ticket.RequesterID,
		Private:     false,
		Attachments: reply.Attachments,
	}
	if hasAgent(reply.AgentID) {
		agent, err := s.helpdesk.GetAgent(ctx, reply.AgentID)
		if err != nil {
			return nil, fmt.Errorf("get agent: %w", err)
		}
		if agent.Contact.Email != "" {
			note.NotifyEmails = []string{agent.Contact.Email}
		}
	}

	resp, err := s.helpdesk.AddNote(ctx, reply.TicketID, note)
	if err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	return resp, nil
}

// ownedTicket fetches a ticket and hides it unless the signed-in user is its
// requester. A user_id parameter naming anyone else is answered the same way,
// before the helpdesk is asked.
func (s *TicketService) ownedTicket(ctx context.Context, rc model.RequestContext, ticketID, userID string) (*freshdesk.Ticket, error) {
	caller := strings.TrimSpace(rc.UserID)
	if caller == "" || strings.TrimSpace(userID) != caller {
		return nil, errs.ErrTicketNotFound
	}
	ticket, err := s.helpdesk.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if !ticket.OwnedBy(caller) {
		return nil, errs.ErrTicketNotFound
	}
	return ticket, nil
}

// The browser sends "null" when the ticket has no responder.
func hasAgent(agentID string) bool {
	switch strings.TrimSpace(agentID) {
	case "", "null", "0":
		return false
	}
	return true
}

// requireParams returns a MissingParamsError naming every blank param, in order.
func requireParams(params map[string]string, names ...string) error {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(params[name]) == "" {
			missing = append(missing, name)
		}
	}
	return errs.Missing(missing...)
}
