package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"safepilgrim/internal/digitalid/models"
	"safepilgrim/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

const recordColumns = `digital_id, qr_code, blockchain_hash, hash_history, status, passport_number_hash,
	nationality, entry_date, exit_date, destination_count, commitment, issued_at, updated_at`

// PostgresStore persists issued records in PostgreSQL. Anchors are single UPDATE
// statements, so row locking serialises concurrent updates to one ID.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the digital_ids table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate digital_ids: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, record models.Record) error {
	query := `
		INSERT INTO digital_ids (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (digital_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		record.DigitalID,
		record.QRCode,
		record.BlockchainHash,
		pq.Array(record.HashHistory),
		string(record.Status),
		record.PassportNumberHash,
		text(record.Nationality),
		text(record.EntryDate),
		text(record.ExitDate),
		record.DestinationCount,
		record.Commitment,
		record.IssuedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, digitalID string) (models.Record, error) {
	if !storable(digitalID) {
		return models.Record{}, ErrNotFound
	}
	query := `SELECT ` + recordColumns + ` FROM digital_ids WHERE digital_id = $1`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, digitalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, ErrNotFound
		}
		return models.Record{}, fmt.Errorf("find record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Anchor(ctx context.Context, digitalID, hash string, updates models.FieldUpdates, at time.Time) (models.Record, error) {
	query := `
		UPDATE digital_ids SET
			blockchain_hash = $2,
			hash_history    = array_append(hash_history, $2),
			nationality     = COALESCE($3, nationality),
			entry_date      = COALESCE($4, entry_date),
			exit_date       = COALESCE($5, exit_date),
			status          = COALESCE($6, status),
			updated_at      = $7
		WHERE digital_id = $1
		RETURNING ` + recordColumns
	if !storable(digitalID) {
		return models.Record{}, ErrNotFound
	}
	var status *string
	if updates.Status != nil {
		v := string(*updates.Status)
		status = &v
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query,
		digitalID,
		hash,
		nullString(updates.Nationality),
		nullString(updates.EntryDate),
		nullString(updates.ExitDate),
		nullString(status),
		at,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, ErrNotFound
		}
		return models.Record{}, fmt.Errorf("anchor record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, digitalID string, status models.RecordStatus, at time.Time) error {
	if !storable(digitalID) {
		return ErrNotFound
	}
	query := `UPDATE digital_ids SET status = $2, updated_at = $3 WHERE digital_id = $1`
	res, err := s.db.ExecContext(ctx, query, digitalID, string(status), at)
	if err != nil {
		return fmt.Errorf("set record status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set record status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.Record, error) {
	var (
		rec    models.Record
		status string
	)
	err := row.Scan(
		&rec.DigitalID,
		&rec.QRCode,
		&rec.BlockchainHash,
		pq.Array(&rec.HashHistory),
		&status,
		&rec.PassportNumberHash,
		&rec.Nationality,
		&rec.EntryDate,
		&rec.ExitDate,
		&rec.DestinationCount,
		&rec.Commitment,
		&rec.IssuedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return models.Record{}, err
	}
	rec.Status = models.RecordStatus(status)
	return rec, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: text(*v), Valid: true}
}

// text drops NUL bytes, which PostgreSQL TEXT columns reject.
func text(v string) string {
	return strings.ReplaceAll(v, "\x00", "")
}

// Issued IDs never contain NUL, so such a key cannot match a row.
func storable(digitalID string) bool {
	return !strings.ContainsRune(digitalID, 0)
}
