package streak

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hyperengineering/vision/internal/store"
	"github.com/hyperengineering/vision/internal/types"
)

const userID = "0b7e3c52-8d11-4f0e-b1a3-6a2f9f3e4c21"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// clock is a settable time source
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advanceDays(n int) { c.t = c.t.AddDate(0, 0, n) }

func newSQLiteTracker(t *testing.T) (*Tracker, *clock) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.EnsureProfile(context.Background(), types.Session{UserID: userID}); err != nil {
		t.Fatal(err)
	}
	c := &clock{t: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)}
	return NewTracker(s, time.UTC, discardLogger(), WithClock(c.now)), c
}

func TestTouch_FirstActivity(t *testing.T) {
	tr, _ := newSQLiteTracker(t)

	got, err := tr.Touch(context.Background(), userID)
	if err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	want := types.Streak{CurrentStreak: 1, LongestStreak: 1, LastActiveDate: "2026-02-10"}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("streak mismatch (-want +got):\n%s", diff)
	}
}

func TestTouch_SameDayIsIdempotent(t *testing.T) {
	tr, c := newSQLiteTracker(t)
	ctx := context.Background()

	first, err := tr.Touch(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	c.t = c.t.Add(10 * time.Hour)
	second, err := tr.Touch(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same-day touches differ (-first +second):\n%s", diff)
	}
}

func TestTouch_ConsecutiveDaysIncrement(t *testing.T) {
	tr, c := newSQLiteTracker(t)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		got, err := tr.Touch(ctx, userID)
		if err != nil {
			t.Fatal(err)
		}
		if got.CurrentStreak != day || got.LongestStreak != day {
			t.Errorf("day %d: streak = %+v", day, got)
		}
		c.advanceDays(1)
	}
}

func TestTouch_GapResets(t *testing.T) {
	tr, c := newSQLiteTracker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := tr.Touch(ctx, userID); err != nil {
			t.Fatal(err)
		}
		c.advanceDays(1)
	}
	// Last touch was day 4; skip to a 3-day gap
	c.advanceDays(2)

	got, err := tr.Touch(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", got.CurrentStreak)
	}
	if got.LongestStreak != 4 {
		t.Errorf("LongestStreak = %d, want 4", got.LongestStreak)
	}
}

func TestTouch_UsesTrackerTimezone(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.EnsureProfile(context.Background(), types.Session{UserID: userID}); err != nil {
		t.Fatal(err)
	}

	saoPaulo := time.FixedZone("BRT", -3*60*60)
	// 01:00 UTC is still the previous evening in Sao Paulo
	c := &clock{t: time.Date(2026, 2, 10, 1, 0, 0, 0, time.UTC)}
	tr := NewTracker(s, saoPaulo, discardLogger(), WithClock(c.now))

	got, err := tr.Touch(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastActiveDate != "2026-02-09" {
		t.Errorf("LastActiveDate = %q, want 2026-02-09", got.LastActiveDate)
	}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name        string
		prev        types.Streak
		today       string
		want        types.Streak
		wantChanged bool
	}{
		{
			name:        "same day",
			prev:        types.Streak{CurrentStreak: 3, LongestStreak: 5, LastActiveDate: "2026-05-01"},
			today:       "2026-05-01",
			want:        types.Streak{CurrentStreak: 3, LongestStreak: 5, LastActiveDate: "2026-05-01"},
			wantChanged: false,
		},
		{
			name:        "next day below longest",
			prev:        types.Streak{CurrentStreak: 3, LongestStreak: 5, LastActiveDate: "2026-05-01"},
			today:       "2026-05-02",
			want:        types.Streak{CurrentStreak: 4, LongestStreak: 5, LastActiveDate: "2026-05-02"},
			wantChanged: true,
		},
		{
			name:        "next day beats longest",
			prev:        types.Streak{CurrentStreak: 5, LongestStreak: 5, LastActiveDate: "2026-05-01"},
			today:       "2026-05-02",
			want:        types.Streak{CurrentStreak: 6, LongestStreak: 6, LastActiveDate: "2026-05-02"},
			wantChanged: true,
		},
		{
			name:        "across month end",
			prev:        types.Streak{CurrentStreak: 1, LongestStreak: 1, LastActiveDate: "2026-02-28"},
			today:       "2026-03-01",
			want:        types.Streak{CurrentStreak: 2, LongestStreak: 2, LastActiveDate: "2026-03-01"},
			wantChanged: true,
		},
		{
			name:        "three day gap",
			prev:        types.Streak{CurrentStreak: 7, LongestStreak: 9, LastActiveDate: "2026-05-01"},
			today:       "2026-05-04",
			want:        types.Streak{CurrentStreak: 1, LongestStreak: 9, LastActiveDate: "2026-05-04"},
			wantChanged: true,
		},
		{
			name:        "no prior date",
			prev:        types.Streak{},
			today:       "2026-05-04",
			want:        types.Streak{CurrentStreak: 1, LongestStreak: 1, LastActiveDate: "2026-05-04"},
			wantChanged: true,
		},
		{
			name:        "future last date",
			prev:        types.Streak{CurrentStreak: 2, LongestStreak: 2, LastActiveDate: "2026-05-05"},
			today:       "2026-05-04",
			want:        types.Streak{CurrentStreak: 1, LongestStreak: 2, LastActiveDate: "2026-05-04"},
			wantChanged: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Advance(tt.prev, tt.today)
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Advance() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// failingStore lets each call fail on demand
type failingStore struct {
	streak    types.Streak
	getErr    error
	updateErr error
	updates   int
}

func (f *failingStore) GetStreak(ctx context.Context, userID string) (*types.Streak, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	s := f.streak
	return &s, nil
}

func (f *failingStore) UpdateStreak(ctx context.Context, userID, expected string, next types.Streak) error {
	f.updates++
	return f.updateErr
}

func TestTouch_ReadFailureIsUnavailable(t *testing.T) {
	fs := &failingStore{getErr: errors.New("disk gone")}
	tr := NewTracker(fs, nil, discardLogger())

	got, err := tr.Touch(context.Background(), userID)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if got != nil {
		t.Errorf("streak = %+v, want nil", got)
	}
}

func TestTouch_WriteFailureIsUnavailable(t *testing.T) {
	fs := &failingStore{updateErr: errors.New("read-only")}
	tr := NewTracker(fs, nil, discardLogger())

	got, err := tr.Touch(context.Background(), userID)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if got != nil {
		t.Errorf("streak = %+v, want nil", got)
	}
}

func TestTouch_ConflictReturnsWinner(t *testing.T) {
	c := &clock{t: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)}
	fs := &conflictStore{winner: types.Streak{CurrentStreak: 8, LongestStreak: 8, LastActiveDate: "2026-02-10"}}
	tr := NewTracker(fs, time.UTC, discardLogger(), WithClock(c.now))

	got, err := tr.Touch(context.Background(), userID)
	if err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if diff := cmp.Diff(fs.winner, *got); diff != "" {
		t.Errorf("streak mismatch (-want +got):\n%s", diff)
	}
}

// conflictStore reports yesterday on the first read, then the concurrent winner.
type conflictStore struct {
	winner types.Streak
	reads  int
}

func (c *conflictStore) GetStreak(ctx context.Context, userID string) (*types.Streak, error) {
	c.reads++
	if c.reads == 1 {
		return &types.Streak{CurrentStreak: 7, LongestStreak: 7, LastActiveDate: "2026-02-09"}, nil
	}
	w := c.winner
	return &w, nil
}

func (c *conflictStore) UpdateStreak(ctx context.Context, userID, expected string, next types.Streak) error {
	return store.ErrStreakConflict
}
