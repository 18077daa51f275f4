package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/vision/internal/types"
)

const insertTacticSQL = `
	INSERT INTO tactics (id, plan_id, user_id, title, description, status, week_number, display_order, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectTacticColumns = `
	SELECT id, plan_id, user_id, title, description, status, completed_at,
	       week_number, display_order, created_at, updated_at
	FROM tactics`

func scanTactic(scanner interface{ Scan(...any) error }) (*types.TacticRecord, error) {
	var t types.TacticRecord
	var status string
	var completedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&t.ID, &t.PlanID, &t.UserID, &t.Title, &t.Description, &status, &completedAt,
		&t.WeekNumber, &t.DisplayOrder, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	st, err := types.ParseTacticStatus(status)
	if err != nil {
		return nil, err
	}
	t.Status = st
	t.CompletedAt = parseNullTime(completedAt)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func listTactics(ctx context.Context, q queryer, planID string) ([]types.TacticRecord, error) {
	rows, err := q.QueryContext(ctx, selectTacticColumns+`
		WHERE plan_id = ?
		ORDER BY week_number ASC, display_order ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("query tactics: %w", err)
	}
	defer rows.Close()

	tactics := []types.TacticRecord{}
	for rows.Next() {
		t, err := scanTactic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tactic: %w", err)
		}
		tactics = append(tactics, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tactics, nil
}

// SetTacticStatus changes the status of the tactic for the given week.
// The owner's total_completed_tactics counter moves in the same transaction.
func (s *SQLiteStore) SetTacticStatus(ctx context.Context, planID string, week int, status types.TacticStatus) (*types.TacticRecord, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid tactic status: %q", status)
	}

	now := s.timestamp()
	var updated *types.TacticRecord

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActivePlan(ctx, tx, planID); err != nil {
			return err
		}

		current, err := scanTactic(tx.QueryRowContext(ctx, selectTacticColumns+`
			WHERE plan_id = ? AND week_number = ?
		`, planID, week))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("scan tactic: %w", err)
		}

		var completedAt sql.NullString
		if status == types.TacticCompleted {
			completedAt = sql.NullString{String: now, Valid: true}
			if current.Status == types.TacticCompleted && current.CompletedAt != nil {
				completedAt.String = formatTime(*current.CompletedAt)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE tactics SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?
		`, string(status), completedAt, now, current.ID); err != nil {
			return fmt.Errorf("update tactic: %w", err)
		}

		delta := 0
		switch {
		case current.Status != types.TacticCompleted && status == types.TacticCompleted:
			delta = 1
		case current.Status == types.TacticCompleted && status != types.TacticCompleted:
			delta = -1
		}
		if delta != 0 {
			if _, err := tx.ExecContext(ctx, `
				UPDATE profiles
				SET total_completed_tactics = MAX(total_completed_tactics + ?, 0), updated_at = ?
				WHERE id = ?
			`, delta, now, current.UserID); err != nil {
				return fmt.Errorf("update completed counter: %w", err)
			}
		}

		updated, err = scanTactic(tx.QueryRowContext(ctx, selectTacticColumns+` WHERE id = ?`, current.ID))
		if err != nil {
			return fmt.Errorf("scan tactic: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateTacticText replaces the title and description of a tactic in the plan.
// Status is not touched. Tactics of a replaced plan are read-only.
func (s *SQLiteStore) UpdateTacticText(ctx context.Context, planID, tacticID, title, description string) (*types.TacticRecord, error) {
	var updated *types.TacticRecord

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActivePlan(ctx, tx, planID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE tactics SET title = ?, description = ?, updated_at = ?
			WHERE id = ? AND plan_id = ?
		`, title, description, s.timestamp(), tacticID, planID)
		if err != nil {
			return fmt.Errorf("update tactic: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		updated, err = scanTactic(tx.QueryRowContext(ctx, selectTacticColumns+` WHERE id = ?`, tacticID))
		if err != nil {
			return fmt.Errorf("scan tactic: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// requireActivePlan returns ErrNotFound for an unknown plan and ErrPlanInactive
// for one that has been replaced.
func requireActivePlan(ctx context.Context, q queryer, planID string) error {
	var active int
	err := q.QueryRowContext(ctx, `SELECT is_active FROM strategic_plans WHERE id = ?`, planID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query plan: %w", err)
	}
	if active == 0 {
		return ErrPlanInactive
	}
	return nil
}
