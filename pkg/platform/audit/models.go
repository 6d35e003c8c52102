package audit

import (
	"context"
	"errors"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: issuance,
	// record changes and deactivation of a traveler's digital ID.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to fraud monitoring, such as
	// verification attempts with IDs this system never issued.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the digital ID the action concerns.
	Subject  string
	Action   string
	Decision string
	Reason   string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	ClientIP  string
	Device    string
	// SubjectIDHash is a SHA-256 hash of the passport number, for traceability
	// without storing raw PII. Only set on issuance.
	SubjectIDHash string
}

type AuditEvent string

const (
	EventDigitalIDIssued      AuditEvent = "digital_id_issued"
	EventDigitalIDVerified    AuditEvent = "digital_id_verified"
	EventVerificationRejected AuditEvent = "digital_id_verification_rejected"
	EventDigitalIDUpdated     AuditEvent = "digital_id_updated"
	EventDigitalIDDeactivated AuditEvent = "digital_id_deactivated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDigitalIDIssued:      CategoryCompliance,
	EventDigitalIDUpdated:     CategoryCompliance,
	EventDigitalIDDeactivated: CategoryCompliance,

	EventVerificationRejected: CategorySecurity,

	EventDigitalIDVerified: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// ErrListUnsupported is returned when the configured sink cannot read events back.
var ErrListUnsupported = errors.New("audit store does not support listing")

// Lister is implemented by stores that can read events back by subject.
type Lister interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
