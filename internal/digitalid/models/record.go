package models

import (
	"slices"
	"time"
)

// RecordStatus is the lifecycle state of an issued digital ID.
type RecordStatus string

const (
	RecordStatusActive   RecordStatus = "ACTIVE"
	RecordStatusInactive RecordStatus = "INACTIVE"
)

// IsValid reports whether s is a known record status.
func (s RecordStatus) IsValid() bool {
	return s == RecordStatusActive || s == RecordStatusInactive
}

// Record is the stored trace of an issued digital ID. It never carries raw passport
// numbers, document images or biometric templates.
type Record struct {
	DigitalID          string       `json:"digitalId"`
	QRCode             string       `json:"qrCode"`
	BlockchainHash     string       `json:"blockchainHash"`
	HashHistory        []string     `json:"hashHistory"`
	Status             RecordStatus `json:"status"`
	PassportNumberHash string       `json:"passportNumberHash,omitempty"`
	Nationality        string       `json:"nationality,omitempty"`
	EntryDate          string       `json:"entryDate,omitempty"`
	ExitDate           string       `json:"exitDate,omitempty"`
	DestinationCount   int          `json:"destinationCount"`
	Commitment         string       `json:"commitment"`
	IssuedAt           time.Time    `json:"issuedAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// Anchor appends a new blockchain hash, making it current, and applies field updates.
func (r *Record) Anchor(hash string, updates FieldUpdates, at time.Time) {
	r.HashHistory = append(slices.Clone(r.HashHistory), hash)
	r.BlockchainHash = hash
	updates.ApplyTo(r)
	r.UpdatedAt = at
}
