package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/caresync-io/caresync/internal/server/storage"
)

// InsertEvidence stores an uploaded artifact. Re-uploads of the same id are
// acknowledged as duplicates so a client can safely retry after a crash.
func (s *Storage) InsertEvidence(ctx context.Context, rec *storage.EvidenceRecord) (bool, error) {
	query := `
		INSERT INTO evidence (id, task_id, actor_id, kind, payload, captured_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.TaskID,
		rec.ActorID,
		rec.Kind,
		rec.Payload,
		rec.CapturedAt,
		rec.ReceivedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: evidence.id") {
			return true, nil
		}
		return false, fmt.Errorf("failed to insert evidence: %w", err)
	}

	return false, nil
}

// ListEvidenceByTask returns artifacts owned by a task, oldest first.
func (s *Storage) ListEvidenceByTask(ctx context.Context, taskID string) ([]*storage.EvidenceRecord, error) {
	query := `
		SELECT id, task_id, actor_id, kind, payload, captured_at, received_at
		FROM evidence
		WHERE task_id = ?
		ORDER BY captured_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var records []*storage.EvidenceRecord
	for rows.Next() {
		rec := &storage.EvidenceRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.TaskID,
			&rec.ActorID,
			&rec.Kind,
			&rec.Payload,
			&rec.CapturedAt,
			&rec.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence: %w", err)
	}

	return records, nil
}
