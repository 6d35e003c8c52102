package models

import dErrors "safepilgrim/pkg/domain-errors"

// GenerateIDRequest is the body of POST /generate.
type GenerateIDRequest struct {
	PassportData      *PassportData      `json:"passportData"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`
	TravelItinerary   *TravelItinerary   `json:"travelItinerary"`
	KycDocuments      []KycDocument      `json:"kycDocuments"`
	BiometricData     *BiometricData     `json:"biometricData"`
}

// VerifyIDRequest is the body of POST /verify. DigitalID is a pointer so a
// missing or null ID can be told apart from an empty one.
type VerifyIDRequest struct {
	DigitalID     *string        `json:"digitalId"`
	BiometricData *BiometricData `json:"biometricData"`
	LocationData  *LocationData  `json:"locationData"`
}

// UpdateIDRequest is the body of POST /update. Updates is open-ended on the wire;
// ParseUpdates narrows it to the updatable fields.
type UpdateIDRequest struct {
	DigitalID string         `json:"digitalId"`
	Updates   map[string]any `json:"updates"`
}

// Validate rejects a verify request without a digital ID. An empty string is
// allowed and simply fails verification.
func (r *VerifyIDRequest) Validate() error {
	if r.DigitalID == nil {
		return dErrors.New(dErrors.CodeValidation, "digitalId is required")
	}
	return nil
}
