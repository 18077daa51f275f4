// Package streak tracks consecutive days of user activity.
package streak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/vision/internal/store"
	"github.com/hyperengineering/vision/internal/types"
)

// ErrUnavailable means the streak could not be read or written.
// Callers must treat it as "streak unknown", never as a zero streak.
var ErrUnavailable = errors.New("streak unavailable")

// Store is the persistence the tracker needs.
type Store interface {
	GetStreak(ctx context.Context, userID string) (*types.Streak, error)
	UpdateStreak(ctx context.Context, userID, expectedLastActive string, next types.Streak) error
}

// Tracker updates a user's streak at most once per calendar day.
type Tracker struct {
	store  Store
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker. Calendar days are evaluated in loc (UTC when nil).
func NewTracker(s Store, loc *time.Location, logger *slog.Logger, opts ...Option) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		store:  s,
		loc:    loc,
		now:    time.Now,
		logger: logger.With("component", "streak"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Today returns the current calendar day in the tracker's location.
func (t *Tracker) Today() string {
	return t.now().In(t.loc).Format(types.DateLayout)
}

// Touch records activity for today and returns the resulting streak.
// Errors wrap ErrUnavailable.
func (t *Tracker) Touch(ctx context.Context, userID string) (*types.Streak, error) {
	today := t.Today()

	current, err := t.store.GetStreak(ctx, userID)
	if err != nil {
		t.logger.Error("failed to read streak", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	next, changed := Advance(*current, today)
	if !changed {
		return &next, nil
	}

	err = t.store.UpdateStreak(ctx, userID, current.LastActiveDate, next)
	if errors.Is(err, store.ErrStreakConflict) {
		// Another request touched first; its result stands if it was today.
		latest, rerr := t.store.GetStreak(ctx, userID)
		if rerr == nil && latest.LastActiveDate == today {
			return latest, nil
		}
		if rerr != nil {
			err = rerr
		}
	}
	if err != nil {
		t.logger.Error("failed to update streak", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	t.logger.Debug("streak updated",
		"user_id", userID,
		"current_streak", next.CurrentStreak,
		"longest_streak", next.LongestStreak,
	)
	return &next, nil
}

// Advance computes the streak after activity on today (YYYY-MM-DD).
// It reports false when prev already counts today.
//
// One day after the last active day extends the streak. Any other gap, a
// missing or unreadable last date, or a last date in the future restarts it at 1.
func Advance(prev types.Streak, today string) (types.Streak, bool) {
	if prev.LastActiveDate == today {
		return prev, false
	}

	next := types.Streak{LastActiveDate: today}

	if prev.LastActiveDate == "" {
		next.CurrentStreak = 1
		next.LongestStreak = 1
		return next, true
	}

	if daysBetween(prev.LastActiveDate, today) == 1 {
		next.CurrentStreak = prev.CurrentStreak + 1
	} else {
		next.CurrentStreak = 1
	}
	next.LongestStreak = max(prev.LongestStreak, next.CurrentStreak)
	return next, true
}

// daysBetween returns the whole days from a to b, or 0 if either is not a date.
func daysBetween(a, b string) int {
	da, err := time.Parse(types.DateLayout, a)
	if err != nil {
		return 0
	}
	db, err := time.Parse(types.DateLayout, b)
	if err != nil {
		return 0
	}
	return int(db.Sub(da).Hours() / 24)
}
