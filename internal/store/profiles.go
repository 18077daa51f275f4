package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/vision/internal/types"
)

const selectProfileSQL = `
	SELECT id, email, full_name, avatar_url, current_streak, longest_streak,
	       last_active_date, total_completed_tactics, created_at, updated_at
	FROM profiles
	WHERE id = ?`

// EnsureProfile creates the profile row for the session user if it does not exist yet.
// Existing profiles are returned untouched.
func (s *SQLiteStore) EnsureProfile(ctx context.Context, session types.Session) (*types.UserProfile, error) {
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, session.UserID, session.Email, session.FullName, now, now)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return s.GetProfile(ctx, session.UserID)
}

// GetProfile retrieves a profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	return getProfile(ctx, s.db, userID)
}

func getProfile(ctx context.Context, q queryer, userID string) (*types.UserProfile, error) {
	var p types.UserProfile
	var lastActive sql.NullString
	var createdAt, updatedAt string

	err := q.QueryRowContext(ctx, selectProfileSQL, userID).Scan(
		&p.ID, &p.Email, &p.FullName, &p.AvatarURL,
		&p.CurrentStreak, &p.LongestStreak, &lastActive,
		&p.TotalCompletedTactics, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	p.LastActiveDate = lastActive.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// UpdateProfileName sets the display name of a profile.
func (s *SQLiteStore) UpdateProfileName(ctx context.Context, userID, fullName string) (*types.UserProfile, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET full_name = ?, updated_at = ? WHERE id = ?
	`, fullName, s.timestamp(), userID)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetProfile(ctx, userID)
}

// GetStreak reads the streak fields of a profile.
func (s *SQLiteStore) GetStreak(ctx context.Context, userID string) (*types.Streak, error) {
	var st types.Streak
	var lastActive sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT current_streak, longest_streak, last_active_date FROM profiles WHERE id = ?
	`, userID).Scan(&st.CurrentStreak, &st.LongestStreak, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan streak: %w", err)
	}
	st.LastActiveDate = lastActive.String
	return &st, nil
}

// UpdateStreak writes new streak values, provided the stored last-active date still
// equals expectedLastActive. Returns ErrStreakConflict when another writer got there first.
func (s *SQLiteStore) UpdateStreak(ctx context.Context, userID, expectedLastActive string, next types.Streak) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET current_streak = ?, longest_streak = ?, last_active_date = ?, updated_at = ?
		WHERE id = ? AND COALESCE(last_active_date, '') = ?
	`, next.CurrentStreak, next.LongestStreak, nullString(next.LastActiveDate), s.timestamp(), userID, expectedLastActive)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetStreak(ctx, userID); err != nil {
			return err
		}
		return ErrStreakConflict
	}
	return nil
}
