package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"safepilgrim/internal/digitalid/models"
	"safepilgrim/internal/platform/middleware"
	dErrors "safepilgrim/pkg/domain-errors"
	"safepilgrim/pkg/platform/httputil"
)

// HealthMessage is the fixed liveness body.
const HealthMessage = "Digital ID Service is healthy"

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// Service defines the interface for digital ID operations.
type Service interface {
	Generate(ctx context.Context, req *models.GenerateIDRequest) (*models.GenerateIDResponse, error)
	Verify(ctx context.Context, req *models.VerifyIDRequest) (*models.VerifyIDResponse, error)
	Update(ctx context.Context, req *models.UpdateIDRequest) (*models.UpdateIDResponse, error)
	Get(ctx context.Context, digitalID string) (*models.Record, error)
	Deactivate(ctx context.Context, digitalID string) error
	AuditTrail(ctx context.Context, digitalID string) (*models.AuditTrailResponse, error)
}

// ReadinessCheck is one backend probed by GET /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler handles digital ID endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	checks  []ReadinessCheck
}

// New creates a new digital ID Handler.
func New(service Service, logger *slog.Logger, checks ...ReadinessCheck) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		checks:  checks,
	}
}

// Register registers the digital ID routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/generate", h.handleGenerate)
	r.Post("/verify", h.handleVerify)
	r.Post("/update", h.handleUpdate)
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/ids/{digitalId}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Get("/qr", h.handleQR)
		r.Post("/deactivate", h.handleDeactivate)
		r.Get("/audit", h.handleAudit)
	})
}

// The three issuance routes answer every failure with an empty 400, whatever
// the cause.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := httputil.DecodeJSON[models.GenerateIDRequest](r)
	if err != nil {
		h.rejectLegacy(ctx, w, "generate", requestID, err)
		return
	}
	resp, err := h.service.Generate(ctx, req)
	if err != nil {
		h.rejectLegacy(ctx, w, "generate", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := httputil.DecodeJSON[models.VerifyIDRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.rejectLegacy(ctx, w, "verify", requestID, err)
		return
	}
	resp, err := h.service.Verify(ctx, req)
	if err != nil {
		h.rejectLegacy(ctx, w, "verify", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := httputil.DecodeJSON[models.UpdateIDRequest](r)
	if err != nil {
		h.rejectLegacy(ctx, w, "update", requestID, err)
		return
	}
	resp, err := h.service.Update(ctx, req)
	if err != nil {
		h.rejectLegacy(ctx, w, "update", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) rejectLegacy(ctx context.Context, w http.ResponseWriter, op, requestID string, err error) {
	level := slog.LevelWarn
	if de, ok := dErrors.As(err); !ok || dErrors.ToHTTPStatus(de.Code) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "digital id request failed",
		"operation", op,
		"error", err,
		"request_id", requestID,
	)
	w.WriteHeader(http.StatusBadRequest)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HealthMessage))
}

type readyResponse struct {
	Status    string `json:"status"`
	Component string `json:"component,omitempty"`
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed",
				"component", c.Name,
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "unavailable", Component: c.Name})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, readyResponse{Status: "ready"})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, err := h.service.Get(ctx, chi.URLParam(r, "digitalId"))
	if err != nil {
		h.writeError(ctx, w, "get", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	size, err := parseQRSize(r.URL.Query().Get("size"))
	if err != nil {
		h.writeError(ctx, w, "qr", err)
		return
	}
	record, err := h.service.Get(ctx, chi.URLParam(r, "digitalId"))
	if err != nil {
		h.writeError(ctx, w, "qr", err)
		return
	}
	png, err := qrcode.Encode(record.QRCode, qrcode.Medium, size)
	if err != nil {
		h.writeError(ctx, w, "qr", dErrors.Wrap(err, dErrors.CodeInternal, "failed to render qr code"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Deactivate(ctx, chi.URLParam(r, "digitalId")); err != nil {
		h.writeError(ctx, w, "deactivate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trail, err := h.service.AuditTrail(ctx, chi.URLParam(r, "digitalId"))
	if err != nil {
		h.writeError(ctx, w, "audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trail)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if !dErrors.HasCode(err, dErrors.CodeNotFound) && !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		h.logger.ErrorContext(ctx, "digital id request failed",
			"operation", op,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

var errQRSize = errors.New("size must be an integer between 64 and 1024")

func parseQRSize(raw string) (int, error) {
	if raw == "" {
		return defaultQRSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < minQRSize || size > maxQRSize {
		return 0, dErrors.Wrap(errQRSize, dErrors.CodeBadRequest, errQRSize.Error())
	}
	return size, nil
}
