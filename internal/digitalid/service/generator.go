package service

import (
	"strings"

	"github.com/google/uuid"
)

// DigitalIDPrefix marks every digital ID issued by this service.
const DigitalIDPrefix = "SP-"

// Generator mints the opaque tokens handed back to travelers.
type Generator interface {
	DigitalID() string
	QRCode() string
	BlockchainHash() string
}

// UUIDGenerator derives every token from a fresh random UUID.
type UUIDGenerator struct{}

// DigitalID returns "SP-" followed by the first 8 hex characters of a UUID, uppercased.
func (UUIDGenerator) DigitalID() string {
	return DigitalIDPrefix + strings.ToUpper(uuid.NewString()[:8])
}

func (UUIDGenerator) QRCode() string {
	return "QR-" + uuid.NewString()
}

// BlockchainHash returns "0x" followed by 32 lowercase hex characters. It is
// random, not a digest of anything.
func (UUIDGenerator) BlockchainHash() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
