package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"safepilgrim/internal/digitalid/models"
	"safepilgrim/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newRecord(digitalID string) models.Record {
	return models.Record{
		DigitalID:      digitalID,
		QRCode:         "QR-" + digitalID,
		BlockchainHash: "0x00",
		HashHistory:    []string{"0x00"},
		Status:         models.RecordStatusActive,
		IssuedAt:       s.now,
		UpdatedAt:      s.now,
	}
}

func (s *InMemoryStoreSuite) TestSaveAndFind() {
	rec := s.newRecord("SP-AAAA0001")
	s.Require().NoError(s.store.Save(s.ctx, rec))

	found, err := s.store.FindByID(s.ctx, rec.DigitalID)
	s.Require().NoError(err)
	s.Equal(rec, found)
}

func (s *InMemoryStoreSuite) TestSaveDuplicateConflicts() {
	rec := s.newRecord("SP-AAAA0002")
	s.Require().NoError(s.store.Save(s.ctx, rec))
	s.ErrorIs(s.store.Save(s.ctx, rec), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, "SP-NOPE0000")
	s.ErrorIs(err, ErrNotFound)
}

func (s *InMemoryStoreSuite) TestReturnedRecordsAreCopies() {
	rec := s.newRecord("SP-AAAA0003")
	s.Require().NoError(s.store.Save(s.ctx, rec))

	found, err := s.store.FindByID(s.ctx, rec.DigitalID)
	s.Require().NoError(err)
	found.HashHistory[0] = "tampered"

	again, err := s.store.FindByID(s.ctx, rec.DigitalID)
	s.Require().NoError(err)
	s.Equal("0x00", again.HashHistory[0])
}

func (s *InMemoryStoreSuite) TestAnchorAppendsHistory() {
	rec := s.newRecord("SP-AAAA0004")
	s.Require().NoError(s.store.Save(s.ctx, rec))

	status := models.RecordStatusInactive
	updated, err := s.store.Anchor(s.ctx, rec.DigitalID, "0x01", models.FieldUpdates{Status: &status}, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal("0x01", updated.BlockchainHash)
	s.Equal([]string{"0x00", "0x01"}, updated.HashHistory)
	s.Equal(models.RecordStatusInactive, updated.Status)
}

func (s *InMemoryStoreSuite) TestAnchorMissing() {
	_, err := s.store.Anchor(s.ctx, "SP-NOPE0000", "0x01", models.FieldUpdates{}, s.now)
	s.ErrorIs(err, ErrNotFound)
}

func (s *InMemoryStoreSuite) TestConcurrentAnchorsLoseNothing() {
	rec := s.newRecord("SP-AAAA0005")
	s.Require().NoError(s.store.Save(s.ctx, rec))

	const writers = 50
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.Anchor(s.ctx, rec.DigitalID, fmt.Sprintf("0x%02d", i), models.FieldUpdates{}, s.now)
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	found, err := s.store.FindByID(s.ctx, rec.DigitalID)
	s.Require().NoError(err)
	s.Len(found.HashHistory, writers+1)
}

func (s *InMemoryStoreSuite) TestSetStatus() {
	rec := s.newRecord("SP-AAAA0006")
	s.Require().NoError(s.store.Save(s.ctx, rec))

	s.Require().NoError(s.store.SetStatus(s.ctx, rec.DigitalID, models.RecordStatusInactive, s.now.Add(time.Hour)))
	found, err := s.store.FindByID(s.ctx, rec.DigitalID)
	s.Require().NoError(err)
	s.Equal(models.RecordStatusInactive, found.Status)
	s.Equal(s.now.Add(time.Hour), found.UpdatedAt)

	s.ErrorIs(s.store.SetStatus(s.ctx, "SP-NOPE0000", models.RecordStatusInactive, s.now), ErrNotFound)
}

func (s *InMemoryStoreSuite) TestRecordsExpireAfterTTL() {
	now := s.now
	st := NewInMemoryStore(WithTTL(time.Hour), WithMemoryClock(func() time.Time { return now }))
	rec := s.newRecord("SP-AAAA0007")
	s.Require().NoError(st.Save(s.ctx, rec))

	now = now.Add(30 * time.Minute)
	_, err := st.Anchor(s.ctx, rec.DigitalID, "0x01", models.FieldUpdates{}, now)
	s.Require().NoError(err)

	now = now.Add(30 * time.Minute)
	_, err = st.FindByID(s.ctx, rec.DigitalID)
	s.ErrorIs(err, ErrNotFound, "anchoring does not extend the expiry")
	s.ErrorIs(st.SetStatus(s.ctx, rec.DigitalID, models.RecordStatusInactive, now), ErrNotFound)

	s.Require().NoError(st.Save(s.ctx, s.newRecord("SP-AAAA0008")))
	s.Equal(1, st.Len(), "expired records are swept on save")

	s.Require().NoError(st.Save(s.ctx, rec), "an expired ID can be issued again")
}

func (s *InMemoryStoreSuite) TestCapacityEvictsOldest() {
	st := NewInMemoryStore(WithCapacity(3))
	for i := range 5 {
		s.Require().NoError(st.Save(s.ctx, s.newRecord(fmt.Sprintf("SP-0000000%d", i))))
	}
	s.Equal(3, st.Len())

	for i := range 2 {
		_, err := st.FindByID(s.ctx, fmt.Sprintf("SP-0000000%d", i))
		s.ErrorIs(err, ErrNotFound)
	}
	for i := 2; i < 5; i++ {
		_, err := st.FindByID(s.ctx, fmt.Sprintf("SP-0000000%d", i))
		s.NoError(err)
	}
}

func (s *InMemoryStoreSuite) TestCapacityIgnoresDuplicateSaves() {
	st := NewInMemoryStore(WithCapacity(2))
	rec := s.newRecord("SP-AAAA0009")
	s.Require().NoError(st.Save(s.ctx, rec))
	s.ErrorIs(st.Save(s.ctx, rec), sentinel.ErrConflict)
	s.Equal(1, st.Len())
}
