// Package postgres is the relational request store. Transition runs inside
// a transaction with SELECT ... FOR UPDATE so concurrent administrative
// decisions on one request serialize at the row and the last committed one
// wins with consistent fields.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lifelane/lifelane/internal/model"
	"github.com/lifelane/lifelane/internal/store"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the tables if needed. Having the migration in code
// keeps deployments self-contained so docker-compose can bootstrap everything.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS emergency_requests (
	id TEXT PRIMARY KEY,
	patient_name TEXT NOT NULL,
	problem_description TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	owner_id TEXT,
	status TEXT NOT NULL,
	code TEXT,
	granted_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emergency_requests_status ON emergency_requests(status);
CREATE INDEX IF NOT EXISTS idx_emergency_requests_owner ON emergency_requests(owner_id);
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Store is the pgx-backed request store.
type Store struct {
	pool   *pgxpool.Pool
	policy store.TransitionPolicy
}

// New constructs a Store.
func New(pool *pgxpool.Pool, policy store.TransitionPolicy) *Store {
	return &Store{pool: pool, policy: policy}
}

const requestColumns = `id, patient_name, problem_description, details, COALESCE(owner_id,''), status, code, granted_at, created_at`

// Create validates and inserts a new pending request.
func (s *Store) Create(ctx context.Context, in store.NewRequest) (*model.EmergencyRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	rec := &model.EmergencyRequest{
		ID:                 uuid.NewString(),
		PatientName:        in.PatientName,
		ProblemDescription: in.ProblemDescription,
		Details:            in.Details,
		OwnerID:            in.OwnerID,
		Status:             model.StatusPending,
		CreatedAt:          time.Now().UTC(),
	}
	var owner *string
	if rec.OwnerID != "" {
		owner = &rec.OwnerID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO emergency_requests (id, patient_name, problem_description, details, owner_id, status, code, granted_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NULL,NULL,$7)
	`, rec.ID, rec.PatientName, rec.ProblemDescription, rec.Details, owner, rec.Status, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	return rec, nil
}

// Get returns a request by id.
func (s *Store) Get(ctx context.Context, id string) (*model.EmergencyRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM emergency_requests WHERE id=$1`, id)
	rec, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select request: %w", err)
	}
	return rec, nil
}

// ListAll returns requests in insertion order, optionally filtered by owner.
func (s *Store) ListAll(ctx context.Context, f store.Filter) ([]*model.EmergencyRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM emergency_requests`
	args := []interface{}{}
	if f.OwnerID != "" {
		query += ` WHERE owner_id=$1`
		args = append(args, f.OwnerID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select requests: %w", err)
	}
	defer rows.Close()
	out := []*model.EmergencyRequest{}
	for rows.Next() {
		rec, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

// Transition applies an administrative decision under a row lock.
func (s *Store) Transition(ctx context.Context, id string, target model.Status) (*model.EmergencyRequest, error) {
	if err := store.ValidateTarget(s.policy, target); err != nil {
		return nil, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM emergency_requests WHERE id=$1 FOR UPDATE`, id)
	rec, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("lock request: %w", err)
	}
	if err := store.Apply(rec, target, time.Now()); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE emergency_requests SET status=$1, code=$2, granted_at=$3 WHERE id=$4
	`, rec.Status, rec.Code, rec.GrantedAt, rec.ID); err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return rec, nil
}

// Expire clears the grant only when the stored code still matches. The
// conditional UPDATE makes the check-and-clear a single atomic statement.
func (s *Store) Expire(ctx context.Context, id, code string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE emergency_requests
		SET status=$1, code=NULL, granted_at=NULL
		WHERE id=$2 AND status=$3 AND code=$4
	`, model.StatusPending, id, model.StatusGranted, code)
	if err != nil {
		return false, fmt.Errorf("expire request: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	// Distinguish a superseded code from an unknown id.
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*model.EmergencyRequest, error) {
	var (
		rec       model.EmergencyRequest
		code      sql.NullString
		grantedAt sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.PatientName, &rec.ProblemDescription, &rec.Details,
		&rec.OwnerID, &rec.Status, &code, &grantedAt, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if code.Valid {
		c := code.String
		rec.Code = &c
	}
	if grantedAt.Valid {
		ts := grantedAt.Time
		rec.GrantedAt = &ts
	}
	return &rec, nil
}
