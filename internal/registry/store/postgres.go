package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"vsauth/pkg/domain"
	"vsauth/pkg/platform/sentinel"
)

// Postgres persists the registry in two tables: vs_codes (one row per key,
// unique constraints on both product_id and short_code) and
// vs_verification_events (append-only). The upsert path relies on row locks
// and the unique constraints rather than read-then-write, so cross-key code
// uniqueness holds under concurrent registration.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables when missing. Kept here rather than in a
// migration tool because the schema is two tables that the service
// auto-creates on boot.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS vs_codes (
			product_id  TEXT PRIMARY KEY,
			short_code  TEXT NOT NULL,
			model       TEXT,
			color       TEXT,
			material    TEXT,
			price       INTEGER,
			year        INTEGER,
			size        TEXT,
			serial      TEXT,
			created_at  TIMESTAMPTZ NOT NULL,
			CONSTRAINT uq_vs_codes_short_code UNIQUE (short_code)
		);
		CREATE TABLE IF NOT EXISTS vs_verification_events (
			id          UUID PRIMARY KEY,
			product_id  TEXT NOT NULL,
			source      TEXT NOT NULL,
			verdict     TEXT NOT NULL,
			details     JSONB,
			at          TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vs_verification_events_product_id
			ON vs_verification_events (product_id, at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, key domain.ProductKey) (*domain.CodeRecord, error) {
	query := `
		SELECT product_id, short_code, model, color, material, price, year, size, serial, created_at
		FROM vs_codes
		WHERE product_id = $1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, key.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get code record: %w: %w", sentinel.ErrUnavailable, err)
	}
	return record, nil
}

func (s *Postgres) Create(ctx context.Context, record *domain.CodeRecord) error {
	query := `
		INSERT INTO vs_codes (product_id, short_code, model, color, material, price, year, size, serial, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	meta := record.Meta
	_, err := s.db.ExecContext(ctx, query,
		record.Key.String(),
		record.Code.String(),
		nullString(meta.Model),
		nullString(meta.Color),
		nullString(meta.Material),
		nullInt(meta.Price),
		nullInt(meta.Year),
		nullString(meta.Size),
		nullString(meta.Serial),
		record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			if pqErr.Constraint == "uq_vs_codes_short_code" {
				return ErrCodeExists
			}
			return ErrKeyExists
		}
		return fmt.Errorf("create code record: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// MergeMeta applies the per-field last-write-wins merge inside the database
// so concurrent patches to different fields cannot clobber each other. The
// row lock implied by UPDATE serializes against concurrent merges.
func (s *Postgres) MergeMeta(ctx context.Context, key domain.ProductKey, patch domain.Metadata) (domain.Metadata, error) {
	query := `
		UPDATE vs_codes SET
			model    = COALESCE(NULLIF($2, ''), model),
			color    = COALESCE(NULLIF($3, ''), color),
			material = COALESCE(NULLIF($4, ''), material),
			price    = COALESCE(NULLIF($5, 0), price),
			year     = COALESCE(NULLIF($6, 0), year),
			size     = COALESCE(NULLIF($7, ''), size),
			serial   = COALESCE(NULLIF($8, ''), serial)
		WHERE product_id = $1
		RETURNING model, color, material, price, year, size, serial
	`
	row := s.db.QueryRowContext(ctx, query,
		key.String(),
		patch.Model, patch.Color, patch.Material, patch.Price, patch.Year, patch.Size, patch.Serial,
	)
	merged, err := scanMetadata(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Metadata{}, ErrNotFound
		}
		return domain.Metadata{}, fmt.Errorf("merge metadata: %w: %w", sentinel.ErrUnavailable, err)
	}
	return merged, nil
}

func (s *Postgres) FindByCode(ctx context.Context, code string) (*domain.CodeRecord, error) {
	query := `
		SELECT product_id, short_code, model, color, material, price, year, size, serial, created_at
		FROM vs_codes
		WHERE UPPER(short_code) = $1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, domain.NormalizeCandidateCode(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find by code: %w: %w", sentinel.ErrUnavailable, err)
	}
	return record, nil
}

func (s *Postgres) AppendEvent(ctx context.Context, rawKey string, event domain.VerificationEvent) error {
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
	}
	query := `
		INSERT INTO vs_verification_events (id, product_id, source, verdict, details, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		rawKey,
		string(event.Source),
		string(event.Verdict),
		details,
		event.At,
	)
	if err != nil {
		return fmt.Errorf("append verification event: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Postgres) History(ctx context.Context, rawKey string) ([]domain.VerificationEvent, error) {
	query := `
		SELECT id, source, verdict, details, at
		FROM vs_verification_events
		WHERE product_id = $1
		ORDER BY at, id
	`
	rows, err := s.db.QueryContext(ctx, query, rawKey)
	if err != nil {
		return nil, fmt.Errorf("list verification events: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var events []domain.VerificationEvent
	for rows.Next() {
		var event domain.VerificationEvent
		var details []byte
		if err := rows.Scan(&event.ID, &event.Source, &event.Verdict, &details, &event.At); err != nil {
			return nil, fmt.Errorf("scan verification event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("decode event details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification events: %w: %w", sentinel.ErrUnavailable, err)
	}
	return events, nil
}

func scanRecord(row *sql.Row) (*domain.CodeRecord, error) {
	var (
		record                               domain.CodeRecord
		key, code                            string
		model, color, material, size, serial sql.NullString
		price, year                          sql.NullInt64
	)
	err := row.Scan(&key, &code, &model, &color, &material, &price, &year, &size, &serial, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	record.Key = domain.ProductKey(key)
	record.Code = domain.SecurityCode(code)
	record.Meta = domain.Metadata{
		Model:    model.String,
		Color:    color.String,
		Material: material.String,
		Price:    int(price.Int64),
		Year:     int(year.Int64),
		Size:     size.String,
		Serial:   serial.String,
	}
	return &record, nil
}

func scanMetadata(row *sql.Row) (domain.Metadata, error) {
	var (
		model, color, material, size, serial sql.NullString
		price, year                          sql.NullInt64
	)
	if err := row.Scan(&model, &color, &material, &price, &year, &size, &serial); err != nil {
		return domain.Metadata{}, err
	}
	return domain.Metadata{
		Model:    model.String,
		Color:    color.String,
		Material: material.String,
		Price:    int(price.Int64),
		Year:     int(year.Int64),
		Size:     size.String,
		Serial:   serial.String,
	}, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullInt(value int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(value), Valid: value != 0}
}
