package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"

	"safepilgrim/internal/digitalid/models"
)

// commitment is the Keccak-256 digest of the request's JSON encoding, stored
// with the record so later tooling can check what was submitted at issuance
// without the record holding the submission itself.
func commitment(req *models.GenerateIDRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request for commitment: %w", err)
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(payload)
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

// passportNumberHash returns the SHA-256 of the passport number, or "" when absent.
func passportNumberHash(req *models.GenerateIDRequest) string {
	if req.PassportData == nil || req.PassportData.PassportNumber == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(req.PassportData.PassportNumber))
	return hex.EncodeToString(sum[:])
}
