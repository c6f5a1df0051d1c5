// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the short classifier carried in error records and responses.
type Kind string

const (
	KindValidation             Kind = "ValidationError"
	KindNotFound               Kind = "NotFoundError"
	KindInvalidStateTransition Kind = "InvalidStateTransition"
	KindDatabase               Kind = "DatabaseError"
	KindOperational            Kind = "OperationalError"
	KindIntegrity              Kind = "IntegrityError"
	KindUnexpected             Kind = "UnexpectedError"
)

// StatusCode is the default HTTP status for the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation, KindInvalidStateTransition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Reportable reports whether faults of this kind go to the capture sink.
// Business-rule failures never do.
func (k Kind) Reportable() bool {
	return k.StatusCode() >= http.StatusInternalServerError
}

// ErrCampaignNotFound is returned when a campaign id does not exist
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ValidationError is an input shape/content failure at the request boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateTransitionError is returned when a lifecycle step is attempted
// from the wrong stage.
type InvalidStateTransitionError struct {
	CampaignID int
	From       string
	Required   string
	To         string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("campaign %d must be %s before moving to %s (current status: %s)",
		e.CampaignID, e.Required, e.To, e.From)
}

func NewInvalidStateTransition(campaignID int, from, required, to string) error {
	return &InvalidStateTransitionError{CampaignID: campaignID, From: from, Required: required, To: to}
}

// DatabaseError wraps a fault surfaced by the persistence layer. Kind is one
// of KindDatabase, KindOperational or KindIntegrity.
type DatabaseError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func NewDatabase(kind Kind, op string, err error) error {
	return &DatabaseError{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err. Anything not recognised is KindUnexpected.
func KindOf(err error) Kind {
	var (
		notFound   *ErrCampaignNotFound
		validation *ValidationError
		transition *InvalidStateTransitionError
		dbErr      *DatabaseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &transition):
		return KindInvalidStateTransition
	case errors.As(err, &dbErr):
		if dbErr.Kind == "" {
			return KindDatabase
		}
		return dbErr.Kind
	default:
		return KindUnexpected
	}
}
