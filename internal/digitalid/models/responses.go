package models

// Issuance status values.
const (
	StatusSuccess = "SUCCESS"
)

// VerificationLevel is the coarse trust classification returned by verify.
type VerificationLevel string

const (
	VerificationLevelHigh VerificationLevel = "HIGH"
	VerificationLevelLow  VerificationLevel = "LOW"
)

// GenerateIDResponse is returned by POST /generate.
type GenerateIDResponse struct {
	DigitalID      string `json:"digitalId"`
	QRCode         string `json:"qrCode"`
	BlockchainHash string `json:"blockchainHash"`
	Status         string `json:"status"`
	Message        string `json:"message"`
}

// VerifyIDResponse is returned by POST /verify. Timestamp is epoch milliseconds.
type VerifyIDResponse struct {
	Valid             bool              `json:"valid"`
	VerificationLevel VerificationLevel `json:"verificationLevel"`
	Message           string            `json:"message"`
	Timestamp         int64             `json:"timestamp"`
}

// UpdateIDResponse is returned by POST /update.
type UpdateIDResponse struct {
	Success           bool   `json:"success"`
	NewBlockchainHash string `json:"newBlockchainHash"`
	Message           string `json:"message"`
}
