// internal/repository/postgres/audit_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"pressroom-service/internal/domain/audit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends one event to the console audit trail.
func (r *AuditRepository) Record(ctx context.Context, event *audit.Event) error {
	query := `
		INSERT INTO console_audit_events
			(actor_id, actor_email, session_jti, event_type, site, roles, detail, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(ctx, query,
		event.ActorID, event.ActorEmail, event.SessionJTI, event.EventType,
		event.Site, pq.Array(event.Roles), event.Detail, event.IPAddress, event.CreatedAt,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events, most recent first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*audit.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, actor_id, actor_email, session_jti, event_type, site, roles, detail, ip_address, created_at
		FROM console_audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var event audit.Event
		if err := rows.Scan(
			&event.ID, &event.ActorID, &event.ActorEmail, &event.SessionJTI, &event.EventType,
			&event.Site, &event.Roles, &event.Detail, &event.IPAddress, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

// ListForActor returns the newest events of one user.
func (r *AuditRepository) ListForActor(ctx context.Context, actorID string, limit int) ([]*audit.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, actor_id, actor_email, session_jti, event_type, site, roles, detail, ip_address, created_at
		FROM console_audit_events
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var event audit.Event
		if err := rows.Scan(
			&event.ID, &event.ActorID, &event.ActorEmail, &event.SessionJTI, &event.EventType,
			&event.Site, &event.Roles, &event.Detail, &event.IPAddress, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}
