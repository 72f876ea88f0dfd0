package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"automationdash/internal/core"
)

const automationsCollection = "automations"

// SaveAutomations replaces the automation snapshot with page.
func (s *Store) SaveAutomations(ctx context.Context, page core.AutomationPage) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save automations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM automation_snapshots`); err != nil {
		return fmt.Errorf("clear automation snapshots: %w", err)
	}
	for i, a := range page.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO automation_snapshots (id, position, name, description, trigger_type, cron_expression, timezone,
				next_run_at, last_run_at, status, failure_count, max_failures, agent_mode, workspace_id, instruction,
				thread_strategy, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, i, a.Name, nullableString(a.Description), a.TriggerType, nullableString(a.CronExpression),
			nullableString(a.Timezone), nullableTime(a.NextRunAt), nullableTime(a.LastRunAt), a.Status,
			a.FailureCount, a.MaxFailures, a.AgentMode, nullableString(a.WorkspaceID), a.Instruction,
			nullableString(string(a.ThreadStrategy)), a.CreatedAt.UTC().Format(time.RFC3339Nano),
			a.UpdatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert automation snapshot %s: %w", a.ID, err)
		}
	}
	if err := saveMeta(ctx, tx, automationsCollection, page.Total); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit automation snapshot: %w", err)
	}
	return nil
}

// LoadAutomations returns the saved automation snapshot.
func (s *Store) LoadAutomations(ctx context.Context) (*core.AutomationPage, error) {
	total, err := s.loadMeta(ctx, automationsCollection)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, description, trigger_type, cron_expression, timezone, next_run_at, last_run_at, status,
			failure_count, max_failures, agent_mode, workspace_id, instruction, thread_strategy, created_at, updated_at
		FROM automation_snapshots
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query automation snapshots: %w", err)
	}
	defer rows.Close()

	page := &core.AutomationPage{Total: total}
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

// GetAutomation returns one automation from the snapshot.
func (s *Store) GetAutomation(ctx context.Context, id string) (*core.Automation, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, description, trigger_type, cron_expression, timezone, next_run_at, last_run_at, status,
			failure_count, max_failures, agent_mode, workspace_id, instruction, thread_strategy, created_at, updated_at
		FROM automation_snapshots WHERE id = ?
	`, id)
	a, err := scanAutomation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return a, nil
}

func scanAutomation(scanner interface {
	Scan(dest ...any) error
}) (*core.Automation, error) {
	var (
		a              core.Automation
		description    sql.NullString
		triggerType    string
		cronExpr       sql.NullString
		timezone       sql.NullString
		nextRun        sql.NullString
		lastRun        sql.NullString
		status         string
		agentMode      string
		workspaceID    sql.NullString
		threadStrategy sql.NullString
		createdAt      string
		updatedAt      string
	)
	if err := scanner.Scan(&a.ID, &a.Name, &description, &triggerType, &cronExpr, &timezone, &nextRun, &lastRun,
		&status, &a.FailureCount, &a.MaxFailures, &agentMode, &workspaceID, &a.Instruction, &threadStrategy,
		&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scan automation: %w", err)
	}
	a.Description = description.String
	a.TriggerType = core.TriggerType(triggerType)
	a.CronExpression = cronExpr.String
	a.Timezone = timezone.String
	a.NextRunAt = parseNullableTime(nextRun)
	a.LastRunAt = parseNullableTime(lastRun)
	a.Status = core.AutomationStatus(status)
	a.AgentMode = core.AgentMode(agentMode)
	a.WorkspaceID = workspaceID.String
	a.ThreadStrategy = core.ThreadStrategy(threadStrategy.String)
	a.CreatedAt = mustParseTime(createdAt)
	a.UpdatedAt = mustParseTime(updatedAt)
	return &a, nil
}

func saveMeta(ctx context.Context, tx *sql.Tx, collection string, total int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (collection, total, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET total = excluded.total, saved_at = excluded.saved_at
	`, collection, total, time.Now().UTC().Format(savedAtLayout))
	if err != nil {
		return fmt.Errorf("save snapshot meta %s: %w", collection, err)
	}
	return nil
}

func (s *Store) loadMeta(ctx context.Context, collection string) (int, error) {
	var total int
	err := s.DB.QueryRowContext(ctx, `SELECT total FROM snapshot_meta WHERE collection = ?`, collection).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSnapshotNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load snapshot meta %s: %w", collection, err)
	}
	return total, nil
}
