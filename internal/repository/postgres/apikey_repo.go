// internal/repository/postgres/apikey_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pressroom-service/internal/domain/apikey"
	"pressroom-service/internal/domain/audit"
	xerrors "pressroom-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type APIKeyRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewAPIKeyRepository(db *pgxpool.Pool, dbWrapper *DB) *APIKeyRepository {
	return &APIKeyRepository{
		db:        db,
		dbWrapper: dbWrapper,
	}
}

// Create stores a new automation key.
func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.Key) error {
	query := `
		INSERT INTO console_api_keys (name, prefix, secret_hash, roles, site, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(ctx, query,
		key.Name, key.Prefix, key.SecretHash, pq.Array(key.Roles), key.Site, key.CreatedBy, key.CreatedAt,
	).Scan(&key.ID)

	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// FindByPrefix looks a key up by its public prefix.
func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*apikey.Key, error) {
	query := `
		SELECT id, name, prefix, secret_hash, roles, site, created_by, created_at, revoked_at
		FROM console_api_keys
		WHERE prefix = $1
	`

	var key apikey.Key
	err := r.db.QueryRow(ctx, query, prefix).Scan(
		&key.ID, &key.Name, &key.Prefix, &key.SecretHash, &key.Roles,
		&key.Site, &key.CreatedBy, &key.CreatedAt, &key.RevokedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find api key: %w", err)
	}

	return &key, nil
}

// List returns every key, newest first.
func (r *APIKeyRepository) List(ctx context.Context) ([]*apikey.Key, error) {
	query := `
		SELECT id, name, prefix, secret_hash, roles, site, created_by, created_at, revoked_at
		FROM console_api_keys
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*apikey.Key
	for rows.Next() {
		var key apikey.Key
		if err := rows.Scan(
			&key.ID, &key.Name, &key.Prefix, &key.SecretHash, &key.Roles,
			&key.Site, &key.CreatedBy, &key.CreatedAt, &key.RevokedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, &key)
	}

	return keys, rows.Err()
}

// Revoke marks a key unusable and appends the revocation to the audit
// trail in the same transaction. Revoking an already revoked key keeps its
// original revocation time.
func (r *APIKeyRepository) Revoke(ctx context.Context, id int64, event *audit.Event) error {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var prefix, site string
	err = tx.QueryRow(ctx, `
		UPDATE console_api_keys
		SET revoked_at = COALESCE(revoked_at, NOW())
		WHERE id = $1
		RETURNING prefix, site
	`, id).Scan(&prefix, &site)

	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	event.Site = site
	event.Detail.String = fmt.Sprintf("key prefix %s", prefix)
	event.Detail.Valid = true
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO console_audit_events
			(actor_id, actor_email, session_jti, event_type, site, roles, detail, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.ActorID, event.ActorEmail, event.SessionJTI, event.EventType,
		event.Site, pq.Array(event.Roles), event.Detail, event.IPAddress, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record revocation: %w", err)
	}

	return tx.Commit(ctx)
}
