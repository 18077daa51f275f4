package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/vision/internal/types"
	"github.com/oklog/ulid/v2"
)

const selectGoalColumns = `
	SELECT id, user_id, title, description, status, created_at, updated_at
	FROM goals`

func scanGoal(scanner interface{ Scan(...any) error }) (*types.Goal, error) {
	var g types.Goal
	var status, createdAt, updatedAt string

	if err := scanner.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	st, err := types.ParseGoalStatus(status)
	if err != nil {
		return nil, err
	}
	g.Status = st
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return &g, nil
}

// ListGoals returns the user's goals, newest first.
func (s *SQLiteStore) ListGoals(ctx context.Context, userID string) ([]types.Goal, error) {
	rows, err := s.db.QueryContext(ctx, selectGoalColumns+`
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	goals := []types.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return goals, nil
}

// CreateGoal stores a new active goal.
func (s *SQLiteStore) CreateGoal(ctx context.Context, userID, title, description string) (*types.Goal, error) {
	now := s.now().UTC()
	g := types.Goal{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      types.GoalActive,
	}
	g.CreatedAt = parseTime(formatTime(now))
	g.UpdatedAt = g.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.UserID, g.Title, g.Description, string(g.Status), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	return &g, nil
}

// ToggleGoal flips a goal between active and completed.
func (s *SQLiteStore) ToggleGoal(ctx context.Context, userID, goalID string) (*types.Goal, error) {
	var toggled *types.Goal

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := scanGoal(tx.QueryRowContext(ctx, selectGoalColumns+`
			WHERE id = ? AND user_id = ?
		`, goalID, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("scan goal: %w", err)
		}

		g.Status = g.Status.Toggled()
		g.UpdatedAt = parseTime(s.timestamp())
		if _, err := tx.ExecContext(ctx, `
			UPDATE goals SET status = ?, updated_at = ? WHERE id = ?
		`, string(g.Status), formatTime(g.UpdatedAt), g.ID); err != nil {
			return fmt.Errorf("update goal: %w", err)
		}
		toggled = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toggled, nil
}

// DeleteGoal removes a goal permanently.
func (s *SQLiteStore) DeleteGoal(ctx context.Context, userID, goalID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, goalID, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
