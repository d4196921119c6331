// Package errs holds the proxy's domain errors. Their messages are safe to show to the caller.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ServerErrorMessage is what the caller sees for any failure outside the taxonomy.
const ServerErrorMessage = "Server Error"

// ErrTicketNotFound is returned when a ticket does not exist or does not belong to the caller.
var ErrTicketNotFound = &NotFoundError{What: "Ticket"}

// ErrNoContact is returned when the helpdesk reports no contact for the caller's email.
var ErrNoContact = &NotFoundError{What: "Tickets"}

// MissingParamsError lists required parameters that were absent or blank.
type MissingParamsError struct {
	Fields []string
}

func (e *MissingParamsError) Error() string {
	return "Missing parameters: " + strings.Join(e.Fields, ", ")
}

// InvalidRequestError reports a parameter with a malformed value.
type InvalidRequestError struct {
	What string
}

func (e *InvalidRequestError) Error() string {
	return "Invalid " + e.What
}

// NotFoundError hides whether a resource exists at all.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// Is lets errors.Is match any NotFoundError for the same resource.
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	return ok && t.What == e.What
}

// UpstreamError is a non-2xx helpdesk response. Body is kept for server logs only.
type UpstreamError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("freshdesk: %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, truncate(e.Body, 512))
}

// Missing builds a MissingParamsError, or nil when nothing is missing.
func Missing(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return &MissingParamsError{Fields: fields}
}

// Invalid builds an InvalidRequestError.
func Invalid(what string) error {
	return &InvalidRequestError{What: what}
}

// IsDomain reports whether err carries a message meant for the caller.
func IsDomain(err error) bool {
	var (
		missing  *MissingParamsError
		invalid  *InvalidRequestError
		notFound *NotFoundError
	)
	return errors.As(err, &missing) || errors.As(err, &invalid) || errors.As(err, &notFound)
}

// IsNotFound reports whether err is any NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsUpstream reports whether err came from a rejected helpdesk call.
func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}

// PublicMessage returns the message the caller may see for err.
func PublicMessage(err error) string {
	var (
		missing  *MissingParamsError
		invalid  *InvalidRequestError
		notFound *NotFoundError
	)
	switch {
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.As(err, &notFound):
		return notFound.Error()
	}
	return ServerErrorMessage
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
