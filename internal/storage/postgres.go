package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"kycflow/internal/domain"
)

// PostgresAuditStore persists the append-only audit trail in the
// audit_events table. Events are immutable once written; there is no
// update or delete path.
type PostgresAuditStore struct {
	db *sql.DB
}

// OpenPostgres opens and pings a Postgres connection for the audit trail.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgresAuditStore(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

func (s *PostgresAuditStore) Append(ctx context.Context, event domain.AuditEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, identity_kind, masked_id, result,
			error_code, error_message, actor, ip, provider,
			cost, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		string(event.Kind),
		event.MaskedID,
		string(event.Result),
		event.ErrorCode,
		event.ErrorMsg,
		event.Actor,
		event.IP,
		event.Provider,
		event.Cost,
		metadata,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresAuditStore) ListByUser(ctx context.Context, userID string) ([]domain.AuditEvent, error) {
	query := auditSelect + ` WHERE actor = $1 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanAuditEvents(rows)
}

func (s *PostgresAuditStore) ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 10000
	}
	query := auditSelect + ` WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanAuditEvents(rows)
}

const auditSelect = `
	SELECT id, event_type, identity_kind, masked_id, result,
		   error_code, error_message, actor, ip, provider,
		   cost, metadata, created_at
	FROM audit_events`

func scanAuditEvents(rows *sql.Rows) ([]domain.AuditEvent, error) {
	var events []domain.AuditEvent
	for rows.Next() {
		var (
			event     domain.AuditEvent
			eventType string
			kind      string
			result    string
			metadata  []byte
		)
		err := rows.Scan(
			&event.ID,
			&eventType,
			&kind,
			&event.MaskedID,
			&result,
			&event.ErrorCode,
			&event.ErrorMsg,
			&event.Actor,
			&event.IP,
			&event.Provider,
			&event.Cost,
			&metadata,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Type = domain.AuditEventType(eventType)
		event.Kind = domain.IdentityKind(kind)
		event.Result = domain.AuditResult(result)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
