package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/psds-microservice/freshdesk-service/internal/freshdesk"
	"github.com/tidwall/gjson"
)

// Fields the requester must never see on the new-ticket form.
var discardedFields = map[string]bool{
	"requester": true,
	"company":   true,
}

// FormField is a ticket field reshaped for the new-ticket form.
type FormField struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	Label                string          `json:"label"`
	LabelForCustomers    string          `json:"label_for_customers"`
	Description          string          `json:"description"`
	Position             int             `json:"position"`
	Default              bool            `json:"default"`
	RequiredForCustomers bool            `json:"required_for_customers"`
	CustomersCanEdit     bool            `json:"customers_can_edit"`
	Type                 string          `json:"type"`
	InputType            string          `json:"input_type,omitempty"`
	Choices              json.RawMessage `json:"choices,omitempty"`
	NestedTicketFields   json.RawMessage `json:"nested_ticket_fields,omitempty"`
}

// UIType maps an upstream field type tag to the form widget type and,
// for plain inputs, the HTML input type. Unknown tags render as textarea.
func UIType(upstream string) (fieldType, inputType string) {
	switch upstream {
	case "default_requester", "default_subject", "custom_text":
		return "text", "text"
	case "default_ticket_type", "default_source", "default_priority",
		"default_group", "default_agent", "default_company", "custom_dropdown":
		return "select", ""
	case "default_status":
		return "select", ""
	case "custom_checkbox":
		return "checkbox", ""
	case "nested_field":
		return "nested_dropdown", ""
	case "custom_date":
		return "date", "date"
	case "custom_number":
		return "number", "text"
	case "custom_decimal":
		return "decimal", "text"
	}
	return "textarea", ""
}

// customerFields keeps the fields a requester may fill in.
func customerFields(fields []freshdesk.TicketField) []freshdesk.TicketField {
	out := make([]freshdesk.TicketField, 0, len(fields))
	for _, f := range fields {
		if !f.CustomersCanEdit || discardedFields[f.Name] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func requiredFieldNames(fields []freshdesk.TicketField) []string {
	var names []string
	for _, f := range fields {
		if f.RequiredForCustomers {
			names = append(names, f.Name)
		}
	}
	return names
}

// RemapField converts one upstream field to its form representation.
func RemapField(f freshdesk.TicketField) (FormField, error) {
	fieldType, inputType := UIType(f.Type)
	out := FormField{
		ID:                   f.ID,
		Name:                 f.Name,
		Label:                f.Label,
		LabelForCustomers:    f.LabelForCustomers,
		Description:          f.Description,
		Position:             f.Position,
		Default:              f.Default,
		RequiredForCustomers: f.RequiredForCustomers,
		CustomersCanEdit:     f.CustomersCanEdit,
		Type:                 fieldType,
		InputType:            inputType,
		Choices:              f.Choices,
		NestedTicketFields:   f.NestedTicketFields,
	}
	if f.Type == "default_status" && len(f.Choices) > 0 {
		inverted, err := invertChoices(f.Choices)
		if err != nil {
			return FormField{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out.Choices = inverted
	}
	return out, nil
}

// invertChoices turns {"2": ["Open", "Being processed"]} into {"Open": "2"},
// keeping the upstream order. The form submits the label; the helpdesk
// wants the numeric code back.
func invertChoices(raw json.RawMessage) (json.RawMessage, error) {
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("status choices must be an object, got %s", parsed.Type)
	}

	var (
		labels []string
		values = map[string]string{}
	)
	parsed.ForEach(func(key, value gjson.Result) bool {
		label := value.String()
		if value.IsArray() {
			items := value.Array()
			if len(items) == 0 {
				return true
			}
			label = items[0].String()
		}
		if _, seen := values[label]; !seen {
			labels = append(labels, label)
		}
		values[label] = key.String()
		return true
	})

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(label)
		v, _ := json.Marshal(values[label])
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// GetTicketFieldSchema returns the new-ticket form, in upstream order.
func (s *TicketService) GetTicketFieldSchema(ctx context.Context) ([]FormField, error) {
	fields, err := s.fetchCustomerFields(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FormField, 0, len(fields))
	for _, f := range fields {
		ff, err := RemapField(f)
		if err != nil {
			return nil, err
		}
		out = append(out, ff)
	}
	return out, nil
}

func (s *TicketService) fetchCustomerFields(ctx context.Context) ([]freshdesk.TicketField, error) {
	fields, err := s.helpdesk.TicketFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("ticket fields: %w", err)
	}
	return customerFields(fields), nil
}
