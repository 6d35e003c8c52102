// Package service issues, verifies, updates and deactivates traveler digital IDs.
//
// Verification is a prefix check and every "blockchain hash" is a random
// token: nothing here is cryptographically bound to the traveler.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"safepilgrim/internal/digitalid/metrics"
	"safepilgrim/internal/digitalid/models"
	dErrors "safepilgrim/pkg/domain-errors"
	audit "safepilgrim/pkg/platform/audit"
	"safepilgrim/pkg/platform/sentinel"
	"safepilgrim/pkg/requestcontext"
)

const (
	MessageGenerated          = "Digital ID generated successfully"
	MessageVerified           = "Digital ID verified successfully"
	MessageVerificationFailed = "Digital ID verification failed"
	MessageUpdated            = "Digital ID updated successfully"

	// maxIssueAttempts bounds retries when a freshly minted ID collides with
	// an existing record. Eight hex characters leave 2^32 IDs.
	maxIssueAttempts = 3
)

// Audit decisions attached to update events.
const (
	DecisionLinked   = "linked"
	DecisionUnlinked = "unlinked"
)

var tracer = otel.Tracer("safepilgrim/internal/digitalid/service")

// Store persists issued records. Implementations return sentinel.ErrNotFound
// for unknown IDs and sentinel.ErrConflict when Save meets an existing ID.
type Store interface {
	Save(ctx context.Context, record models.Record) error
	FindByID(ctx context.Context, digitalID string) (models.Record, error)
	Anchor(ctx context.Context, digitalID, hash string, updates models.FieldUpdates, at time.Time) (models.Record, error)
	SetStatus(ctx context.Context, digitalID string, status models.RecordStatus, at time.Time) error
}

// Auditor receives audit events. Emit failures are logged, never returned.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuditReader reads back the events recorded for one digital ID.
type AuditReader interface {
	List(ctx context.Context, subject string) ([]audit.Event, error)
}

type Service struct {
	store     Store
	auditor   Auditor
	reader    AuditReader
	generator Generator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Service)

// WithAuditor sets the audit sink. A sink that is also an AuditReader backs AuditTrail.
func WithAuditor(a Auditor) Option {
	return func(s *Service) {
		s.auditor = a
		if r, ok := a.(AuditReader); ok {
			s.reader = r
		}
	}
}

func WithGenerator(g Generator) Option {
	return func(s *Service) { s.generator = g }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	s := &Service{
		store:     store,
		generator: UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.generator == nil {
		return nil, errors.New("generator is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Generate issues a new digital ID. The response is independent of the
// request content; the request only feeds the stored record.
func (s *Service) Generate(ctx context.Context, req *models.GenerateIDRequest) (*models.GenerateIDResponse, error) {
	ctx, span := tracer.Start(ctx, "digitalid.Generate")
	defer span.End()

	if req == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeBadRequest, "request is required"))
	}
	now := requestcontext.Now(ctx)

	digest, err := commitment(req)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeBadRequest, "request cannot be encoded"))
	}

	record := models.Record{
		QRCode:             s.generator.QRCode(),
		Status:             models.RecordStatusActive,
		PassportNumberHash: passportNumberHash(req),
		Commitment:         digest,
		IssuedAt:           now,
		UpdatedAt:          now,
	}
	if req.PassportData != nil {
		record.Nationality = req.PassportData.Nationality
	}
	if req.TravelItinerary != nil {
		record.EntryDate = req.TravelItinerary.EntryDate
		record.ExitDate = req.TravelItinerary.ExitDate
		record.DestinationCount = len(req.TravelItinerary.Destinations)
	}
	hash := s.generator.BlockchainHash()
	record.BlockchainHash = hash
	record.HashHistory = []string{hash}

	for attempt := 1; ; attempt++ {
		record.DigitalID = s.generator.DigitalID()
		err = s.store.Save(ctx, record)
		if err == nil {
			break
		}
		if errors.Is(err, sentinel.ErrConflict) && attempt < maxIssueAttempts {
			s.logger.WarnContext(ctx, "digital id collision, retrying",
				"digital_id", record.DigitalID,
				"attempt", attempt,
				"request_id", requestcontext.RequestID(ctx),
			)
			continue
		}
		s.metrics.IncPersistenceFailure("save")
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist digital id"))
	}

	span.SetAttributes(attribute.String("digitalid.id", record.DigitalID))
	s.metrics.IncIssued()
	s.emit(ctx, audit.EventDigitalIDIssued, record.DigitalID, func(e *audit.Event) {
		e.Decision = "issued"
		e.SubjectIDHash = record.PassportNumberHash
	})
	s.logger.InfoContext(ctx, "digital id issued",
		"digital_id", record.DigitalID,
		"destinations", record.DestinationCount,
		"request_id", requestcontext.RequestID(ctx),
	)

	return &models.GenerateIDResponse{
		DigitalID:      record.DigitalID,
		QRCode:         record.QRCode,
		BlockchainHash: hash,
		Status:         models.StatusSuccess,
		Message:        MessageGenerated,
	}, nil
}

// Verify reports whether the ID carries the issuer prefix. Biometric and
// location payloads are accepted and not inspected.
func (s *Service) Verify(ctx context.Context, req *models.VerifyIDRequest) (*models.VerifyIDResponse, error) {
	_, span := tracer.Start(ctx, "digitalid.Verify")
	defer span.End()

	if req == nil || req.DigitalID == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeBadRequest, "digitalId is required"))
	}
	digitalID := *req.DigitalID
	valid := strings.HasPrefix(digitalID, DigitalIDPrefix)

	resp := &models.VerifyIDResponse{
		Valid:             valid,
		VerificationLevel: models.VerificationLevelLow,
		Message:           MessageVerificationFailed,
		Timestamp:         requestcontext.Now(ctx).UnixMilli(),
	}
	event := audit.EventVerificationRejected
	if valid {
		resp.VerificationLevel = models.VerificationLevelHigh
		resp.Message = MessageVerified
		event = audit.EventDigitalIDVerified
	}

	span.SetAttributes(
		attribute.Bool("digitalid.valid", valid),
		attribute.String("digitalid.level", string(resp.VerificationLevel)),
	)
	s.metrics.IncVerification(string(resp.VerificationLevel))
	s.emit(ctx, event, digitalID, func(e *audit.Event) {
		e.Decision = string(resp.VerificationLevel)
	})
	return resp, nil
}

// Update mints a new hash for the ID. When the ID has a record, the hash is
// appended to its history and recognised fields are applied; unknown IDs
// still succeed. Unknown or mistyped update keys are logged and ignored.
func (s *Service) Update(ctx context.Context, req *models.UpdateIDRequest) (*models.UpdateIDResponse, error) {
	ctx, span := tracer.Start(ctx, "digitalid.Update")
	defer span.End()

	if req == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeBadRequest, "request is required"))
	}
	updates, rejected := models.ParseUpdates(req.Updates)
	if len(rejected) > 0 {
		s.metrics.AddRejectedUpdateKeys(len(rejected))
		s.logger.WarnContext(ctx, "ignoring unsupported update keys",
			"digital_id", req.DigitalID,
			"keys", rejected,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	hash := s.generator.BlockchainHash()
	decision := DecisionLinked
	_, err := s.store.Anchor(ctx, req.DigitalID, hash, updates, requestcontext.Now(ctx))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		decision = DecisionUnlinked
	case err != nil:
		s.metrics.IncPersistenceFailure("anchor")
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record update"))
	}

	span.SetAttributes(attribute.String("digitalid.linkage", decision))
	s.metrics.IncUpdate(decision)
	s.emit(ctx, audit.EventDigitalIDUpdated, req.DigitalID, func(e *audit.Event) {
		e.Decision = decision
		e.Reason = updateReason(updates, rejected)
	})

	return &models.UpdateIDResponse{
		Success:           true,
		NewBlockchainHash: hash,
		Message:           MessageUpdated,
	}, nil
}

// Get returns the stored record for an issued ID.
func (s *Service) Get(ctx context.Context, digitalID string) (*models.Record, error) {
	ctx, span := tracer.Start(ctx, "digitalid.Get")
	defer span.End()

	record, err := s.store.FindByID(ctx, digitalID)
	if err != nil {
		return nil, s.fail(span, s.translate(err, "lookup"))
	}
	return &record, nil
}

// Deactivate marks an issued ID inactive. Deactivating twice is not an error.
func (s *Service) Deactivate(ctx context.Context, digitalID string) error {
	ctx, span := tracer.Start(ctx, "digitalid.Deactivate")
	defer span.End()

	err := s.store.SetStatus(ctx, digitalID, models.RecordStatusInactive, requestcontext.Now(ctx))
	if err != nil {
		return s.fail(span, s.translate(err, "deactivate"))
	}

	s.metrics.IncDeactivated()
	s.emit(ctx, audit.EventDigitalIDDeactivated, digitalID, func(e *audit.Event) {
		e.Decision = string(models.RecordStatusInactive)
	})
	s.logger.InfoContext(ctx, "digital id deactivated",
		"digital_id", digitalID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// AuditTrail returns the audit events of an issued ID, oldest first.
func (s *Service) AuditTrail(ctx context.Context, digitalID string) (*models.AuditTrailResponse, error) {
	ctx, span := tracer.Start(ctx, "digitalid.AuditTrail")
	defer span.End()

	if _, err := s.store.FindByID(ctx, digitalID); err != nil {
		return nil, s.fail(span, s.translate(err, "audit_lookup"))
	}
	if s.reader == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeUnavailable, "audit trail is not readable"))
	}
	events, err := s.reader.List(ctx, digitalID)
	switch {
	case errors.Is(err, audit.ErrListUnsupported):
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit trail is not readable"))
	case err != nil:
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
	}

	resp := &models.AuditTrailResponse{DigitalID: digitalID, Events: make([]models.AuditEntry, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, models.AuditEntry{
			Action:    e.Action,
			Category:  string(e.Category),
			Decision:  e.Decision,
			Reason:    e.Reason,
			RequestID: e.RequestID,
			Timestamp: e.Timestamp,
		})
	}
	return resp, nil
}

func (s *Service) translate(err error, operation string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "digital id not found")
	}
	s.metrics.IncPersistenceFailure(operation)
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "record store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "record store failure")
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subject string, fill func(*audit.Event)) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Category:  action.Category(),
		Timestamp: requestcontext.Now(ctx),
		Subject:   subject,
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	}
	if fill != nil {
		fill(&event)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"digital_id", subject,
			"error", err,
			"request_id", event.RequestID,
		)
	}
}

func updateReason(updates models.FieldUpdates, rejected []string) string {
	var parts []string
	if fields := updates.Fields(); len(fields) > 0 {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = string(f)
		}
		parts = append(parts, "applied="+strings.Join(names, ","))
	}
	if len(rejected) > 0 {
		parts = append(parts, "ignored="+strings.Join(rejected, ","))
	}
	return strings.Join(parts, ";")
}
