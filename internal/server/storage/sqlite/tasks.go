package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/caresync-io/caresync/internal/models"
	"github.com/caresync-io/caresync/internal/server/storage"
)

const taskColumns = `id, resident_id, title, state, version, created_at, updated_at`

// CreateTask inserts a task at version 1 in the scheduled state.
func (s *Storage) CreateTask(ctx context.Context, task *models.CareTask) error {
	query := `
		INSERT INTO tasks (id, resident_id, title, state, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.ResidentID,
		task.Title,
		task.State,
		task.Version,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by id.
func (s *Storage) GetTask(ctx context.Context, id string) (*models.CareTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	return scanTask(s.db.QueryRowContext(ctx, query, id))
}

// ListTasks returns all tasks, newest first.
func (s *Storage) ListTasks(ctx context.Context) ([]*models.CareTask, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.CareTask
	for rows.Next() {
		task := &models.CareTask{}
		if err := rows.Scan(
			&task.ID,
			&task.ResidentID,
			&task.Title,
			&task.State,
			&task.Version,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// TransitionTask applies a version-checked state transition atomically.
// The applied-operation ledger is consulted first: a replayed operation id
// that already took effect returns the current row instead of a spurious
// version mismatch.
func (s *Storage) TransitionTask(ctx context.Context, params storage.TransitionParams) (*models.CareTask, bool, error) {
	if !models.KnownTaskState(params.TargetState) {
		return nil, false, storage.ErrInvalidState
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Ledger lookup: has this exact operation already applied?
	var ledgerTaskID string
	err = tx.QueryRowContext(ctx,
		`SELECT task_id FROM applied_operations WHERE operation_id = ?`,
		params.OperationID,
	).Scan(&ledgerTaskID)
	switch {
	case err == nil:
		task, err := scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, ledgerTaskID))
		if err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return task, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("failed to check applied operations: %w", err)
	}

	task, err := scanTask(tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, params.TaskID))
	if err != nil {
		return nil, false, err
	}

	if task.Version != params.ExpectedVersion {
		return nil, false, &storage.VersionMismatchError{
			Task:            task,
			ExpectedVersion: params.ExpectedVersion,
		}
	}

	now := time.Now().UTC()
	newVersion := task.Version + 1

	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET state = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
		params.TargetState, newVersion, now, params.TaskID, params.ExpectedVersion,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// The guard failed inside the transaction; should not happen with a
		// single writer, but report it as a mismatch rather than corrupting.
		return nil, false, &storage.VersionMismatchError{
			Task:            task,
			ExpectedVersion: params.ExpectedVersion,
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO applied_operations
			(operation_id, task_id, actor_id, action_kind, target_state, note, initiated_at, applied_at, result_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.OperationID, params.TaskID, params.ActorID, params.ActionKind,
		params.TargetState, params.Note, params.InitiatedAt, now, newVersion,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record applied operation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	task.State = params.TargetState
	task.Version = newVersion
	task.UpdatedAt = now
	return task, false, nil
}

func scanTask(row *sql.Row) (*models.CareTask, error) {
	task := &models.CareTask{}
	err := row.Scan(
		&task.ID,
		&task.ResidentID,
		&task.Title,
		&task.State,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}
