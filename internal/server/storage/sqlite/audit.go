package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caresync-io/caresync/internal/server/storage"
)

// InsertAuditEvent stores an uploaded audit event. Re-uploads of the same id
// are acknowledged as duplicates.
func (s *Storage) InsertAuditEvent(ctx context.Context, rec *storage.AuditRecord) (bool, error) {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, entity_type, entity_id, action, actor_id, metadata, occurred_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.EntityType,
		rec.EntityID,
		rec.Action,
		rec.ActorID,
		string(metadata),
		rec.OccurredAt,
		rec.ReceivedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: audit_events.id") {
			return true, nil
		}
		return false, fmt.Errorf("failed to insert audit event: %w", err)
	}

	return false, nil
}

// ListAuditEvents returns events for an entity, oldest first.
func (s *Storage) ListAuditEvents(ctx context.Context, entityID string) ([]*storage.AuditRecord, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, metadata, occurred_at, received_at
		FROM audit_events
		WHERE entity_id = ?
		ORDER BY occurred_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var records []*storage.AuditRecord
	for rows.Next() {
		rec := &storage.AuditRecord{}
		var metadata string
		if err := rows.Scan(
			&rec.ID,
			&rec.EntityType,
			&rec.EntityID,
			&rec.Action,
			&rec.ActorID,
			&metadata,
			&rec.OccurredAt,
			&rec.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return records, nil
}
