package digitalid

import (
	"context"
	"fmt"
	"regexp"

	"github.com/cucumber/godog"
)

var (
	digitalIDPattern = regexp.MustCompile(`^SP-[0-9A-F]{8}$`)
	hashPattern      = regexp.MustCompile(`^0x[0-9a-f]{32}$`)
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetDigitalID() string
	SetDigitalID(id string)
	RecordHash(hash string)
	GetHashes() []string
}

// RegisterSteps registers digital ID issuance step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &digitalIDSteps{tc: tc}

	ctx.Step(`^I generate a digital ID for "([^"]*)" with (\d+) destinations$`, steps.generate)
	ctx.Step(`^I save the issued digital ID$`, steps.saveIssued)
	ctx.Step(`^the issued digital ID should be well formed$`, steps.issuedIsWellFormed)
	ctx.Step(`^I verify the issued digital ID$`, steps.verifyIssued)
	ctx.Step(`^I verify digital ID "([^"]*)"$`, steps.verify)
	ctx.Step(`^I update the issued digital ID setting "([^"]*)" to "([^"]*)"$`, steps.updateIssued)
	ctx.Step(`^I save the new blockchain hash$`, steps.saveNewHash)
	ctx.Step(`^I deactivate the issued digital ID$`, steps.deactivateIssued)
	ctx.Step(`^I fetch the issued digital ID$`, steps.fetchIssued)
	ctx.Step(`^I fetch the QR code of the issued digital ID$`, steps.fetchQR)
	ctx.Step(`^I fetch the audit trail of the issued digital ID$`, steps.fetchAudit)
	ctx.Step(`^the record should list every saved hash in order$`, steps.historyMatches)
}

type digitalIDSteps struct {
	tc TestContext
}

func (s *digitalIDSteps) generate(ctx context.Context, fullName string, destinations int) error {
	stops := make([]map[string]interface{}, 0, destinations)
	for i := range destinations {
		stops = append(stops, map[string]interface{}{
			"id":          fmt.Sprintf("d%d", i+1),
			"name":        fmt.Sprintf("Stop %d", i+1),
			"coordinates": map[string]interface{}{"latitude": 21.42, "longitude": 39.82, "accuracy": 5, "provider": "gps"},
			"plannedDate": "2026-05-02",
		})
	}
	body := map[string]interface{}{
		"passportData": map[string]interface{}{
			"passportNumber": "P1234567",
			"fullName":       fullName,
			"nationality":    "KE",
			"dateOfBirth":    "1990-04-12",
			"expiryDate":     "2030-04-11",
		},
		"travelItinerary": map[string]interface{}{
			"entryDate":    "2026-05-01",
			"exitDate":     "2026-05-20",
			"destinations": stops,
		},
		"kycDocuments": []map[string]interface{}{
			{"type": "PASSPORT", "documentNumber": "P1234567"},
		},
	}
	return s.tc.POST("/generate", body)
}

func (s *digitalIDSteps) saveIssued(ctx context.Context) error {
	id, err := stringField(s.tc, "digitalId")
	if err != nil {
		return err
	}
	hash, err := stringField(s.tc, "blockchainHash")
	if err != nil {
		return err
	}
	s.tc.SetDigitalID(id)
	s.tc.RecordHash(hash)
	return nil
}

func (s *digitalIDSteps) issuedIsWellFormed(ctx context.Context) error {
	id := s.tc.GetDigitalID()
	if !digitalIDPattern.MatchString(id) {
		return fmt.Errorf("digital ID %q does not match %s", id, digitalIDPattern)
	}
	hashes := s.tc.GetHashes()
	if len(hashes) == 0 || !hashPattern.MatchString(hashes[0]) {
		return fmt.Errorf("blockchain hash %v does not match %s", hashes, hashPattern)
	}
	return nil
}

func (s *digitalIDSteps) verifyIssued(ctx context.Context) error {
	return s.verify(ctx, s.tc.GetDigitalID())
}

func (s *digitalIDSteps) verify(ctx context.Context, id string) error {
	return s.tc.POST("/verify", map[string]interface{}{
		"digitalId":     id,
		"biometricData": map[string]interface{}{"faceTemplate": "ZmFjZQ=="},
	})
}

func (s *digitalIDSteps) updateIssued(ctx context.Context, field, value string) error {
	return s.tc.POST("/update", map[string]interface{}{
		"digitalId": s.tc.GetDigitalID(),
		"updates":   map[string]interface{}{field: value},
	})
}

func (s *digitalIDSteps) saveNewHash(ctx context.Context) error {
	hash, err := stringField(s.tc, "newBlockchainHash")
	if err != nil {
		return err
	}
	s.tc.RecordHash(hash)
	return nil
}

func (s *digitalIDSteps) deactivateIssued(ctx context.Context) error {
	return s.tc.POST("/ids/"+s.tc.GetDigitalID()+"/deactivate", nil)
}

func (s *digitalIDSteps) fetchIssued(ctx context.Context) error {
	return s.tc.GET("/ids/"+s.tc.GetDigitalID(), nil)
}

func (s *digitalIDSteps) fetchQR(ctx context.Context) error {
	return s.tc.GET("/ids/"+s.tc.GetDigitalID()+"/qr?size=128", nil)
}

func (s *digitalIDSteps) fetchAudit(ctx context.Context) error {
	return s.tc.GET("/ids/"+s.tc.GetDigitalID()+"/audit", nil)
}

func (s *digitalIDSteps) historyMatches(ctx context.Context) error {
	v, err := s.tc.GetResponseField("hashHistory")
	if err != nil {
		return err
	}
	raw, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("hashHistory is %T", v)
	}
	want := s.tc.GetHashes()
	if len(raw) != len(want) {
		return fmt.Errorf("expected %d hashes, got %d", len(want), len(raw))
	}
	for i, h := range raw {
		if h != want[i] {
			return fmt.Errorf("hash %d: expected %s, got %v", i, want[i], h)
		}
	}
	return nil
}

func stringField(tc TestContext, field string) (string, error) {
	v, err := tc.GetResponseField(field)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s is %T, not a string", field, v)
	}
	return str, nil
}
