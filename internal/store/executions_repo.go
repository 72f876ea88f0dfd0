package store

import (
	"context"
	"database/sql"
	"fmt"

	"automationdash/internal/core"
)

func executionsCollection(automationID string) string {
	return "executions:" + automationID
}

// SaveExecutions replaces the execution snapshot of one automation and prunes
// snapshots beyond the retention limit.
func (s *Store) SaveExecutions(ctx context.Context, automationID string, page core.ExecutionPage) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save executions: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM execution_snapshots WHERE automation_id = ?`, automationID); err != nil {
		return fmt.Errorf("clear execution snapshots: %w", err)
	}
	for i, e := range page.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO execution_snapshots (id, automation_id, position, status, scheduled_at, started_at,
				completed_at, thread_id, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, automationID, i, e.Status, nullableTime(e.ScheduledAt), nullableTime(e.StartedAt),
			nullableTime(e.CompletedAt), nullableStringPtr(e.ThreadID), nullableStringPtr(e.ErrorMessage))
		if err != nil {
			return fmt.Errorf("insert execution snapshot %s: %w", e.ID, err)
		}
	}
	if err := saveMeta(ctx, tx, executionsCollection(automationID), page.Total); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit execution snapshot: %w", err)
	}
	return s.PruneExecutionSnapshots(ctx)
}

// LoadExecutions returns the saved execution snapshot of one automation.
func (s *Store) LoadExecutions(ctx context.Context, automationID string) (*core.ExecutionPage, error) {
	total, err := s.loadMeta(ctx, executionsCollection(automationID))
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, automation_id, status, scheduled_at, started_at, completed_at, thread_id, error_message
		FROM execution_snapshots
		WHERE automation_id = ?
		ORDER BY position ASC
	`, automationID)
	if err != nil {
		return nil, fmt.Errorf("query execution snapshots: %w", err)
	}
	defer rows.Close()

	page := &core.ExecutionPage{Total: total}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

// PruneExecutionSnapshots keeps execution snapshots only for the most
// recently saved automations.
func (s *Store) PruneExecutionSnapshots(ctx context.Context) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT collection FROM snapshot_meta
		WHERE collection LIKE 'executions:%'
		ORDER BY saved_at DESC, rowid DESC
		LIMIT -1 OFFSET ?
	`, s.ExecutionRetention)
	if err != nil {
		return fmt.Errorf("query execution snapshots for pruning: %w", err)
	}
	var stale []string
	for rows.Next() {
		var collection string
		if err := rows.Scan(&collection); err != nil {
			rows.Close()
			return err
		}
		stale = append(stale, collection)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, collection := range stale {
		automationID := collection[len("executions:"):]
		if _, err := s.DB.ExecContext(ctx, `DELETE FROM execution_snapshots WHERE automation_id = ?`, automationID); err != nil {
			return fmt.Errorf("prune execution snapshots: %w", err)
		}
		if _, err := s.DB.ExecContext(ctx, `DELETE FROM snapshot_meta WHERE collection = ?`, collection); err != nil {
			return fmt.Errorf("prune snapshot meta: %w", err)
		}
	}
	return nil
}

func scanExecution(scanner interface {
	Scan(dest ...any) error
}) (*core.Execution, error) {
	var (
		e           core.Execution
		status      string
		scheduledAt sql.NullString
		startedAt   sql.NullString
		completedAt sql.NullString
		threadID    sql.NullString
		errMsg      sql.NullString
	)
	if err := scanner.Scan(&e.ID, &e.AutomationID, &status, &scheduledAt, &startedAt, &completedAt, &threadID, &errMsg); err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}
	e.Status = core.ExecutionStatus(status)
	e.ScheduledAt = parseNullableTime(scheduledAt)
	e.StartedAt = parseNullableTime(startedAt)
	e.CompletedAt = parseNullableTime(completedAt)
	if threadID.Valid {
		e.ThreadID = &threadID.String
	}
	if errMsg.Valid {
		e.ErrorMessage = &errMsg.String
	}
	return &e, nil
}
