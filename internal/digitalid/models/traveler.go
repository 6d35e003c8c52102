package models

// PassportData is the machine-readable identity page of a traveler's passport.
// Dates are kept as supplied; no format validation is performed.
type PassportData struct {
	PassportNumber string `json:"passportNumber"`
	FullName       string `json:"fullName"`
	Nationality    string `json:"nationality"`
	DateOfBirth    string `json:"dateOfBirth"`
	ExpiryDate     string `json:"expiryDate"`
}

// EmergencyContact is a person to reach on the traveler's behalf.
type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	PhoneNumber  string `json:"phoneNumber"`
	Email        string `json:"email"`
}

// KycDocument is a supporting identity document (passport, visa, ...).
// DocumentImage is expected to be base64 but is never decoded.
type KycDocument struct {
	Type           string `json:"type"`
	DocumentNumber string `json:"documentNumber"`
	IssueDate      string `json:"issueDate"`
	ExpiryDate     string `json:"expiryDate"`
	DocumentImage  string `json:"documentImage"`
}

// BiometricData holds opaque enrolment templates. No schema is enforced on their content.
type BiometricData struct {
	FingerprintTemplate string `json:"fingerprintTemplate"`
	FaceTemplate        string `json:"faceTemplate"`
	VoiceTemplate       string `json:"voiceTemplate"`
}
