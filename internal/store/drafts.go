package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/vision/internal/types"
)

// GetDraft returns the user's saved onboarding draft.
func (s *SQLiteStore) GetDraft(ctx context.Context, userID string) (*types.OnboardingDraft, error) {
	var d types.OnboardingDraft
	var data, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, step, data, updated_at FROM onboarding_drafts WHERE user_id = ?
	`, userID).Scan(&d.UserID, &d.Step, &data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft: %w", err)
	}

	c, err := types.DecodeOnboardingContext([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("draft context: %w", err)
	}
	if c != nil {
		d.Data = *c
	}
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// SaveDraft creates or replaces the user's onboarding draft.
func (s *SQLiteStore) SaveDraft(ctx context.Context, draft types.OnboardingDraft) error {
	data, err := types.EncodeOnboardingContext(draft.Data)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO onboarding_drafts (user_id, step, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			step = excluded.step,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, draft.UserID, draft.Step, string(data), s.timestamp())
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// DeleteDraft removes the user's draft. Deleting a missing draft is not an error.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM onboarding_drafts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// DeleteStaleDrafts removes drafts last saved before cutoff and returns how
// many were deleted.
func (s *SQLiteStore) DeleteStaleDrafts(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM onboarding_drafts WHERE updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete stale drafts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}
