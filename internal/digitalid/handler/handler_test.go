package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"safepilgrim/internal/digitalid/handler/mocks"
	"safepilgrim/internal/digitalid/models"
	dErrors "safepilgrim/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/digitalid-mocks.go -package=mocks Service
type DigitalIDHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
	checks  []ReadinessCheck
}

func TestDigitalIDHandlerSuite(t *testing.T) {
	suite.Run(t, new(DigitalIDHandlerSuite))
}

func (s *DigitalIDHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.checks = nil
	s.buildRouter()
}

func (s *DigitalIDHandlerSuite) buildRouter() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(s.service, logger, s.checks...).Register(r)
	s.router = r
}

func (s *DigitalIDHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Issuance routes
// =============================================================================

func (s *DigitalIDHandlerSuite) TestGenerate_Success() {
	s.service.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *models.GenerateIDRequest) (*models.GenerateIDResponse, error) {
			s.Require().NotNil(req.PassportData)
			s.Equal("P1234567", req.PassportData.PassportNumber)
			s.Len(req.KycDocuments, 2)
			return &models.GenerateIDResponse{
				DigitalID:      "SP-1A2B3C4D",
				QRCode:         "QR-1",
				BlockchainHash: "0x0123456789abcdef0123456789abcdef",
				Status:         models.StatusSuccess,
				Message:        "Digital ID generated successfully",
			}, nil
		})

	w := s.do(http.MethodPost, "/generate", `{
		"passportData": {"passportNumber": "P1234567"},
		"kycDocuments": [{"type": "PASSPORT"}, {"type": "VISA"}]
	}`)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("application/json", w.Header().Get("Content-Type"))
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("SP-1A2B3C4D", resp["digitalId"])
	s.Equal("SUCCESS", resp["status"])
	s.Equal("0x0123456789abcdef0123456789abcdef", resp["blockchainHash"])
}

func (s *DigitalIDHandlerSuite) TestMalformedBodyIsEmpty400() {
	for _, path := range []string{"/generate", "/verify", "/update"} {
		for name, body := range map[string]string{
			"empty":      "",
			"null":       "null",
			"not json":   "{not json",
			"truncated":  `{"digitalId": "SP-1`,
			"wrong type": `{"digitalId": 42, "passportData": "x", "updates": []}`,
		} {
			s.Run(path+" "+name, func() {
				w := s.do(http.MethodPost, path, body)
				s.Equal(http.StatusBadRequest, w.Code)
				s.Empty(w.Body.String())
			})
		}
	}

	// Verify dereferences the ID; update never reads it.
	for name, body := range map[string]string{
		"missing id": `{"biometricData": {"faceTemplate": "x"}}`,
		"null id":    `{"digitalId": null}`,
		"empty":      `{}`,
	} {
		s.Run("/verify "+name, func() {
			w := s.do(http.MethodPost, "/verify", body)
			s.Equal(http.StatusBadRequest, w.Code)
			s.Empty(w.Body.String())
		})
	}
}

func (s *DigitalIDHandlerSuite) TestServiceErrorIsEmpty400() {
	s.service.EXPECT().Generate(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "failed to persist digital id"))
	s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("boom"))
	s.service.EXPECT().Update(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "failed to record update"))

	for path, body := range map[string]string{
		"/generate": `{}`,
		"/verify":   `{"digitalId": "SP-1A2B3C4D"}`,
		"/update":   `{}`,
	} {
		w := s.do(http.MethodPost, path, body)
		s.Equal(http.StatusBadRequest, w.Code, path)
		s.Empty(w.Body.String(), path)
	}
}

func (s *DigitalIDHandlerSuite) TestVerify_Success() {
	s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *models.VerifyIDRequest) (*models.VerifyIDResponse, error) {
			s.Require().NotNil(req.DigitalID)
			s.Equal("SP-1A2B3C4D", *req.DigitalID)
			s.Require().NotNil(req.LocationData)
			s.Nil(req.LocationData.Altitude)
			return &models.VerifyIDResponse{
				Valid:             true,
				VerificationLevel: models.VerificationLevelHigh,
				Message:           "Digital ID verified successfully",
				Timestamp:         1717230600000,
			}, nil
		})

	w := s.do(http.MethodPost, "/verify", `{
		"digitalId": "SP-1A2B3C4D",
		"locationData": {"latitude": 21.4, "longitude": 39.8, "accuracy": 5, "altitude": null}
	}`)

	s.Equal(http.StatusOK, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(true, resp["valid"])
	s.Equal("HIGH", resp["verificationLevel"])
	s.Equal(float64(1717230600000), resp["timestamp"])
}

func (s *DigitalIDHandlerSuite) TestUpdate_PassesRawUpdates() {
	s.service.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *models.UpdateIDRequest) (*models.UpdateIDResponse, error) {
			s.Equal("SP-1A2B3C4D", req.DigitalID)
			s.Equal(map[string]any{"nationality": "KE", "note": nil}, req.Updates)
			return &models.UpdateIDResponse{
				Success:           true,
				NewBlockchainHash: "0xfedcba9876543210fedcba9876543210",
				Message:           "Digital ID updated successfully",
			}, nil
		})

	w := s.do(http.MethodPost, "/update", `{"digitalId": "SP-1A2B3C4D", "updates": {"nationality": "KE", "note": null}}`)

	s.Equal(http.StatusOK, w.Code)
	var resp models.UpdateIDResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.Success)
	s.Equal("0xfedcba9876543210fedcba9876543210", resp.NewBlockchainHash)
}

func (s *DigitalIDHandlerSuite) TestWrongMethod() {
	w := s.do(http.MethodGet, "/generate", "")
	s.Equal(http.StatusMethodNotAllowed, w.Code)
}

// =============================================================================
// Health and readiness
// =============================================================================

func (s *DigitalIDHandlerSuite) TestHealth_Idempotent() {
	for range 3 {
		w := s.do(http.MethodGet, "/health", "")
		s.Equal(http.StatusOK, w.Code)
		s.Equal(HealthMessage, w.Body.String())
		s.Contains(w.Header().Get("Content-Type"), "text/plain")
	}
}

func (s *DigitalIDHandlerSuite) TestReady() {
	s.Run("all checks pass", func() {
		s.checks = []ReadinessCheck{{Name: "store", Check: func(context.Context) error { return nil }}}
		s.buildRouter()

		w := s.do(http.MethodGet, "/ready", "")
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"status":"ready"}`, w.Body.String())
	})

	s.Run("failing component reported", func() {
		s.checks = []ReadinessCheck{
			{Name: "store", Check: func(context.Context) error { return nil }},
			{Name: "kafka", Check: func(context.Context) error { return errors.New("no brokers") }},
		}
		s.buildRouter()

		w := s.do(http.MethodGet, "/ready", "")
		s.Equal(http.StatusServiceUnavailable, w.Code)
		s.JSONEq(`{"status":"unavailable","component":"kafka"}`, w.Body.String())
	})
}

// =============================================================================
// Record routes
// =============================================================================

func (s *DigitalIDHandlerSuite) TestGetRecord() {
	s.service.EXPECT().Get(gomock.Any(), "SP-1A2B3C4D").Return(&models.Record{
		DigitalID:      "SP-1A2B3C4D",
		QRCode:         "QR-abc",
		BlockchainHash: "0x01",
		HashHistory:    []string{"0x01"},
		Status:         models.RecordStatusActive,
	}, nil)

	w := s.do(http.MethodGet, "/ids/SP-1A2B3C4D", "")

	s.Equal(http.StatusOK, w.Code)
	var rec models.Record
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &rec))
	s.Equal("SP-1A2B3C4D", rec.DigitalID)
	s.Equal(models.RecordStatusActive, rec.Status)
}

func (s *DigitalIDHandlerSuite) TestGetRecord_NotFound() {
	s.service.EXPECT().Get(gomock.Any(), "SP-MISSING0").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "digital id not found"))

	w := s.do(http.MethodGet, "/ids/SP-MISSING0", "")

	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"error":"not_found","error_description":"digital id not found"}`, w.Body.String())
}

func (s *DigitalIDHandlerSuite) TestUpdate_NullIDStillSucceeds() {
	s.service.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *models.UpdateIDRequest) (*models.UpdateIDResponse, error) {
			s.Empty(req.DigitalID)
			return &models.UpdateIDResponse{Success: true, Message: "Digital ID updated successfully"}, nil
		})

	w := s.do(http.MethodPost, "/update", `{"digitalId": null, "updates": {"nationality": "KE"}}`)
	s.Equal(http.StatusOK, w.Code)
}

func (s *DigitalIDHandlerSuite) TestAuditTrail() {
	s.Run("success", func() {
		at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
		s.service.EXPECT().AuditTrail(gomock.Any(), "SP-1A2B3C4D").Return(&models.AuditTrailResponse{
			DigitalID: "SP-1A2B3C4D",
			Events: []models.AuditEntry{
				{Action: "digital_id_issued", Category: "compliance", RequestID: "req-1", Timestamp: at},
				{Action: "digital_id_verified", Category: "operations", Decision: "valid", Timestamp: at},
			},
		}, nil)

		w := s.do(http.MethodGet, "/ids/SP-1A2B3C4D/audit", "")

		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Header().Get("Content-Type"), "application/json")
		var resp models.AuditTrailResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal("SP-1A2B3C4D", resp.DigitalID)
		s.Require().Len(resp.Events, 2)
		s.Equal("digital_id_issued", resp.Events[0].Action)
		s.Equal("valid", resp.Events[1].Decision)
	})

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"unknown id", dErrors.New(dErrors.CodeNotFound, "digital id not found"), http.StatusNotFound,
			`{"error":"not_found","error_description":"digital id not found"}`},
		{"sink not readable", dErrors.New(dErrors.CodeUnavailable, "audit trail is not readable"), http.StatusServiceUnavailable,
			`{"error":"unavailable"}`},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.service.EXPECT().AuditTrail(gomock.Any(), "SP-1A2B3C4D").Return(nil, tt.err)

			w := s.do(http.MethodGet, "/ids/SP-1A2B3C4D/audit", "")
			s.Equal(tt.status, w.Code)
			s.JSONEq(tt.body, w.Body.String())
		})
	}
}

func (s *DigitalIDHandlerSuite) TestQR() {
	s.Run("default size", func() {
		s.service.EXPECT().Get(gomock.Any(), "SP-1A2B3C4D").
			Return(&models.Record{DigitalID: "SP-1A2B3C4D", QRCode: "QR-abc"}, nil)

		w := s.do(http.MethodGet, "/ids/SP-1A2B3C4D/qr", "")

		s.Equal(http.StatusOK, w.Code)
		s.Equal("image/png", w.Header().Get("Content-Type"))
		cfg, err := png.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
		s.Require().NoError(err)
		s.Equal(defaultQRSize, cfg.Width)
	})

	s.Run("custom size", func() {
		s.service.EXPECT().Get(gomock.Any(), "SP-1A2B3C4D").
			Return(&models.Record{DigitalID: "SP-1A2B3C4D", QRCode: "QR-abc"}, nil)

		w := s.do(http.MethodGet, "/ids/SP-1A2B3C4D/qr?size=128", "")

		s.Equal(http.StatusOK, w.Code)
		cfg, err := png.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
		s.Require().NoError(err)
		s.Equal(128, cfg.Width)
	})

	s.Run("size out of range", func() {
		for _, size := range []string{"10", "5000", "big"} {
			w := s.do(http.MethodGet, "/ids/SP-1A2B3C4D/qr?size="+size, "")
			s.Equal(http.StatusBadRequest, w.Code, size)
		}
	})

	s.Run("unknown id", func() {
		s.service.EXPECT().Get(gomock.Any(), "SP-MISSING0").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "digital id not found"))

		w := s.do(http.MethodGet, "/ids/SP-MISSING0/qr", "")
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *DigitalIDHandlerSuite) TestDeactivate() {
	s.Run("success", func() {
		s.service.EXPECT().Deactivate(gomock.Any(), "SP-1A2B3C4D").Return(nil)

		w := s.do(http.MethodPost, "/ids/SP-1A2B3C4D/deactivate", "")
		s.Equal(http.StatusNoContent, w.Code)
		s.Empty(w.Body.String())
	})

	s.Run("unknown id", func() {
		s.service.EXPECT().Deactivate(gomock.Any(), "SP-MISSING0").
			Return(dErrors.New(dErrors.CodeNotFound, "digital id not found"))

		w := s.do(http.MethodPost, "/ids/SP-MISSING0/deactivate", "")
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("store unavailable hides detail", func() {
		s.service.EXPECT().Deactivate(gomock.Any(), "SP-1A2B3C4D").
			Return(dErrors.New(dErrors.CodeUnavailable, "record store unavailable"))

		w := s.do(http.MethodPost, "/ids/SP-1A2B3C4D/deactivate", "")
		s.Equal(http.StatusServiceUnavailable, w.Code)
		s.JSONEq(`{"error":"unavailable"}`, w.Body.String())
	})
}

func TestParseQRSize(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", defaultQRSize, false},
		{"64", 64, false},
		{"1024", 1024, false},
		{"63", 0, true},
		{"1025", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseQRSize(tt.raw)
		if tt.wantErr {
			if err == nil || !dErrors.HasCode(err, dErrors.CodeBadRequest) {
				t.Fatalf("parseQRSize(%q): expected bad_request error, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("parseQRSize(%q) = %d, %v; want %d", tt.raw, got, err, tt.want)
		}
	}
}
