package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/psds-microservice/freshdesk-service/internal/freshdesk"
	"github.com/psds-microservice/freshdesk-service/internal/model"
)

// ensureContact makes sure the helpdesk knows the caller before a ticket is
// opened for them. A contact created here is kept even if the ticket fails;
// the existence check makes a retry safe.
func (s *TicketService) ensureContact(ctx context.Context, rc model.RequestContext) error {
	contacts, err := s.helpdesk.FindContacts(ctx, rc.Email)
	if err != nil {
		return fmt.Errorf("find contact: %w", err)
	}
	if len(contacts) > 0 {
		return nil
	}

	name := strings.TrimSpace(rc.Name)
	if name == "" {
		name = rc.Email
	}
	contact, err := s.helpdesk.CreateContact(ctx, freshdesk.NewContact{
		Name:         name,
		Email:        rc.Email,
		CustomFields: rc.Profile.Without("name"),
	})
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	s.logger.Info("contact created", "request_id", rc.RequestID, "contact_id", contact.ID)
	return nil
}
