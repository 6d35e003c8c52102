package models

import "time"

// AuditEntry is one audit event as exposed by GET /ids/{digitalId}/audit.
// Client IP, device and the passport hash are not returned.
type AuditEntry struct {
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditTrailResponse lists a digital ID's audit events, oldest first.
type AuditTrailResponse struct {
	DigitalID string       `json:"digitalId"`
	Events    []AuditEntry `json:"events"`
}
