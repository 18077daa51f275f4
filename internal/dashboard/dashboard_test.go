package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hyperengineering/vision/internal/planner"
	"github.com/hyperengineering/vision/internal/store"
	"github.com/hyperengineering/vision/internal/types"
)

const userID = "5c0a9d7e-2f44-4b8e-8f0d-1e6b3a7c9d20"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func samplePlan(goal string) types.StrategicPlan {
	weekly := make([]types.Tactic, types.WeeksPerPlan)
	for i := range weekly {
		weekly[i] = types.Tactic{Title: fmt.Sprintf("Semana %d", i+1), Description: "Executar"}
	}
	monthly := make([]string, types.MonthsPerPlan)
	for i := range monthly {
		monthly[i] = fmt.Sprintf("Mês %d", i+1)
	}
	return types.StrategicPlan{
		Goal: goal,
		Quarters: types.Quarters{
			Q1: []string{"Validação"}, Q2: []string{"Escala"},
			Q3: []string{"Otimização"}, Q4: []string{"Consolidação"},
		},
		MonthlyFocus:  monthly,
		WeeklyTactics: weekly,
	}
}

func newTestSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if _, err := s.EnsureProfile(ctx, types.Session{UserID: userID}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReplaceActivePlan(ctx, userID, nil, samplePlan("Dobrar o faturamento")); err != nil {
		t.Fatal(err)
	}
	return s
}

// flakyStore fails writes while failWrites is set.
type flakyStore struct {
	*store.SQLiteStore
	failWrites bool
}

var errWrite = errors.New("disk full")

func (f *flakyStore) SetTacticStatus(ctx context.Context, planID string, week int, status types.TacticStatus) (*types.TacticRecord, error) {
	if f.failWrites {
		return nil, errWrite
	}
	return f.SQLiteStore.SetTacticStatus(ctx, planID, week, status)
}

func (f *flakyStore) UpdateTacticText(ctx context.Context, planID, tacticID, title, description string) (*types.TacticRecord, error) {
	if f.failWrites {
		return nil, errWrite
	}
	return f.SQLiteStore.UpdateTacticText(ctx, planID, tacticID, title, description)
}

type fakeRecalculator struct {
	got  planner.RecalcRequest
	plan *types.StrategicPlan
	err  error
}

func (f *fakeRecalculator) Recalculate(ctx context.Context, req planner.RecalcRequest) (*types.StrategicPlan, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

type fakeStreak struct{ err error }

func (f fakeStreak) Touch(ctx context.Context, userID string) (*types.Streak, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Streak{CurrentStreak: 3, LongestStreak: 5, LastActiveDate: "2026-03-02"}, nil
}

func newTestController(t *testing.T, s Store, r Recalculator) *Controller {
	t.Helper()
	if r == nil {
		r = &fakeRecalculator{}
	}
	m := NewManager(s, r, fakeStreak{}, Policy{UnlockThreshold: 0.7}, discardLogger())
	return m.For(userID)
}

func TestLoad_ReturnsPlanAndStreak(t *testing.T) {
	c := newTestController(t, newTestSQLite(t), nil)

	v, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v.Goal != "Dobrar o faturamento" || v.Progress != 0 {
		t.Errorf("view = goal %q progress %d", v.Goal, v.Progress)
	}
	if v.Streak == nil || v.Streak.CurrentStreak != 3 {
		t.Errorf("streak = %+v", v.Streak)
	}
}

func TestLoad_StreakFailureIsNotFatal(t *testing.T) {
	s := newTestSQLite(t)
	m := NewManager(s, &fakeRecalculator{}, fakeStreak{err: errors.New("down")}, Policy{}, discardLogger())

	v, err := m.For(userID).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v.Streak != nil {
		t.Errorf("streak should be empty, got %+v", v.Streak)
	}
}

func TestLoad_NoActivePlan(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	c := newTestController(t, s, nil)

	_, err = c.Load(context.Background())
	if !errors.Is(err, store.ErrNoActivePlan) {
		t.Errorf("Load() error = %v, want ErrNoActivePlan", err)
	}
}

func TestToggle_UpdatesProgressBothWays(t *testing.T) {
	// Given: A loaded plan with nothing completed
	s := newTestSQLite(t)
	c := newTestController(t, s, nil)
	ctx := context.Background()

	// When: Week index 4 is toggled on, then off
	on, err := c.Toggle(ctx, 4)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	off, err := c.Toggle(ctx, 4)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	// Then: Progress goes 0 -> 2 -> 0 and the store agrees
	if on.Progress != 2 || off.Progress != 0 {
		t.Errorf("progress on=%d off=%d, want 2 and 0", on.Progress, off.Progress)
	}
	p, err := s.GetActivePlan(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Tactics[4].Status; got != types.TacticPending {
		t.Errorf("week 5 status = %q, want pending", got)
	}
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if profile.TotalCompletedTactics != 0 {
		t.Errorf("total completed = %d, want 0", profile.TotalCompletedTactics)
	}
}

func TestToggle_PersistsCompletion(t *testing.T) {
	s := newTestSQLite(t)
	c := newTestController(t, s, nil)
	ctx := context.Background()

	if _, err := c.Toggle(ctx, 0); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	p, err := s.GetActivePlan(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Tactics[0].Status != types.TacticCompleted || p.Tactics[0].CompletedAt == nil {
		t.Errorf("week 1 = %+v", p.Tactics[0])
	}
	if diff := cmp.Diff([]int{0}, c.CompletedWeeks()); diff != "" {
		t.Errorf("completed weeks (-want +got):\n%s", diff)
	}
}

func TestToggle_RollsBackOnStoreFailure(t *testing.T) {
	// Given: A controller whose store rejects writes
	fs := &flakyStore{SQLiteStore: newTestSQLite(t)}
	c := newTestController(t, fs, nil)
	ctx := context.Background()
	if _, err := c.Toggle(ctx, 2); err != nil {
		t.Fatal(err)
	}
	before := c.View()
	fs.failWrites = true

	// When: Toggling fails in both directions
	_, errOn := c.Toggle(ctx, 7)
	_, errOff := c.Toggle(ctx, 2)

	// Then: The errors surface and the view is unchanged
	if !errors.Is(errOn, errWrite) || !errors.Is(errOff, errWrite) {
		t.Fatalf("errors = %v, %v", errOn, errOff)
	}
	if diff := cmp.Diff(before, c.View()); diff != "" {
		t.Errorf("view changed after rollback (-before +after):\n%s", diff)
	}
}

func TestToggle_OutOfRange(t *testing.T) {
	c := newTestController(t, newTestSQLite(t), nil)

	for _, idx := range []int{-1, 52, 100} {
		if _, err := c.Toggle(context.Background(), idx); !errors.Is(err, ErrWeekOutOfRange) {
			t.Errorf("Toggle(%d) error = %v, want ErrWeekOutOfRange", idx, err)
		}
	}
}

func TestEdit_ChangesTextKeepsStatus(t *testing.T) {
	s := newTestSQLite(t)
	c := newTestController(t, s, nil)
	ctx := context.Background()
	v, err := c.Toggle(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	id := v.Quarters[0].Tactics[0].ID

	v, err = c.Edit(ctx, id, "  Lançar oferta  ", "Landing page")
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	got := v.Quarters[0].Tactics[0]
	if got.Title != "Lançar oferta" || got.Description != "Landing page" {
		t.Errorf("tactic = %+v", got)
	}
	if !got.Completed || got.Status != types.TacticCompleted {
		t.Errorf("edit should not change status: %+v", got)
	}
}

func TestEdit_Errors(t *testing.T) {
	fs := &flakyStore{SQLiteStore: newTestSQLite(t)}
	c := newTestController(t, fs, nil)
	ctx := context.Background()
	v, err := c.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id := v.Quarters[0].Tactics[0].ID

	if _, err := c.Edit(ctx, id, "   ", "x"); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("blank title error = %v", err)
	}
	if _, err := c.Edit(ctx, "missing", "Title", ""); !errors.Is(err, ErrTacticNotFound) {
		t.Errorf("missing tactic error = %v", err)
	}

	fs.failWrites = true
	if _, err := c.Edit(ctx, id, "New", "desc"); !errors.Is(err, errWrite) {
		t.Fatalf("Edit() error = %v", err)
	}
	if got := c.View().Quarters[0].Tactics[0].Title; got != "Semana 1" {
		t.Errorf("title after rollback = %q", got)
	}
}

func TestRecalculate_KeepsCompletedWeeks(t *testing.T) {
	// Given: Weeks 1 and 3 completed
	s := newTestSQLite(t)
	next := samplePlan("Abrir filial")
	for i := range next.WeeklyTactics {
		next.WeeklyTactics[i].Title = fmt.Sprintf("Nova semana %d", i+1)
	}
	r := &fakeRecalculator{plan: &next}
	c := newTestController(t, s, r)
	ctx := context.Background()
	for _, idx := range []int{2, 0} {
		if _, err := c.Toggle(ctx, idx); err != nil {
			t.Fatal(err)
		}
	}

	// When: The plan is recalculated with a new goal
	v, err := c.Recalculate(ctx, " Abrir filial ", "Contratei dois vendedores")
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}

	// Then: The planner saw the completed weeks and the stored rows keep them
	if diff := cmp.Diff([]int{0, 2}, r.got.CompletedWeeks); diff != "" {
		t.Errorf("completed weeks sent (-want +got):\n%s", diff)
	}
	if r.got.NewGoal != "Abrir filial" || r.got.ContextDelta != "Contratei dois vendedores" {
		t.Errorf("request = %+v", r.got)
	}
	if v.Goal != "Abrir filial" {
		t.Errorf("goal = %q", v.Goal)
	}
	q1 := v.Quarters[0].Tactics
	if q1[0].Title != "Semana 1" || !q1[0].Completed {
		t.Errorf("completed week 1 = %+v", q1[0])
	}
	if q1[1].Title != "Nova semana 2" || q1[1].Completed {
		t.Errorf("pending week 2 = %+v", q1[1])
	}
	if v.CompletedCount != 2 {
		t.Errorf("completed count = %d", v.CompletedCount)
	}
}

func TestRecalculate_FailureLeavesStateUntouched(t *testing.T) {
	s := newTestSQLite(t)
	r := &fakeRecalculator{err: &planner.RecalculationError{Err: errors.New("timeout")}}
	c := newTestController(t, s, r)
	ctx := context.Background()
	before, err := c.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Recalculate(ctx, "", "mudou tudo")

	var rerr *planner.RecalculationError
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want RecalculationError", err)
	}
	if diff := cmp.Diff(before, c.View()); diff != "" {
		t.Errorf("view changed (-before +after):\n%s", diff)
	}
}

func TestRecalculate_IncompletePlanIsRecalculationError(t *testing.T) {
	s := newTestSQLite(t)
	short := samplePlan("x")
	short.WeeklyTactics = short.WeeklyTactics[:10]
	c := newTestController(t, s, &fakeRecalculator{plan: &short})

	_, err := c.Recalculate(context.Background(), "", "")

	var rerr *planner.RecalculationError
	if !errors.As(err, &rerr) || !errors.Is(err, store.ErrIncompletePlan) {
		t.Errorf("error = %v", err)
	}
}

func TestManager_CachesAndInvalidates(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(nil, nil, nil, Policy{}, discardLogger(),
		WithClock(func() time.Time { return now }),
		WithIdleTTL(time.Hour),
	)

	a := m.For("u1")
	if m.For("u1") != a {
		t.Error("For() should return the cached controller")
	}

	m.Invalidate("u1")
	if m.For("u1") == a {
		t.Error("Invalidate() should drop the cached controller")
	}

	m.For("u2")
	now = now.Add(2 * time.Hour)
	m.For("u3")
	if m.Len() != 1 {
		t.Errorf("idle controllers should be evicted, have %d", m.Len())
	}
}

func TestManager_EvictIdle(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(nil, nil, nil, Policy{}, discardLogger(),
		WithClock(func() time.Time { return now }),
		WithIdleTTL(time.Hour),
	)
	m.For("u1")
	now = now.Add(30 * time.Minute)
	m.For("u2")

	now = now.Add(45 * time.Minute)
	if n := m.EvictIdle(); n != 1 {
		t.Errorf("EvictIdle() = %d, want 1", n)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

// replaceElsewhere swaps the active plan without going through the controller.
func replaceElsewhere(t *testing.T, s *store.SQLiteStore) string {
	t.Helper()
	res, err := s.ReplaceActivePlan(context.Background(), userID, nil, samplePlan("Novo plano"))
	if err != nil {
		t.Fatal(err)
	}
	return res.Plan.Plan.ID
}

func TestToggle_AfterPlanReplacedElsewhere(t *testing.T) {
	// Given: a loaded controller whose plan is then replaced by another writer
	s := newTestSQLite(t)
	c := newTestController(t, s, nil)
	ctx := context.Background()
	loaded, err := c.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	newID := replaceElsewhere(t, s)

	// When: toggling through the stale state
	_, err = c.Toggle(ctx, 4)

	// Then: the write is refused and neither plan changes
	if !errors.Is(err, ErrPlanChanged) {
		t.Fatalf("Toggle() error = %v, want ErrPlanChanged", err)
	}
	old, err := s.GetPlan(ctx, userID, loaded.PlanID)
	if err != nil {
		t.Fatal(err)
	}
	if old.Tactics[4].Status != types.TacticPending {
		t.Errorf("replaced plan week 5 = %q, want pending", old.Tactics[4].Status)
	}
	if p, _ := s.GetProfile(ctx, userID); p.TotalCompletedTactics != 0 {
		t.Errorf("TotalCompletedTactics = %d, want 0", p.TotalCompletedTactics)
	}

	// When: toggling again
	v, err := c.Toggle(ctx, 4)

	// Then: the new active plan is loaded and receives the write
	if err != nil {
		t.Fatalf("second Toggle() error = %v", err)
	}
	if v.PlanID != newID || v.Goal != "Novo plano" || v.CompletedCount != 1 {
		t.Errorf("view = plan %s goal %q completed %d", v.PlanID, v.Goal, v.CompletedCount)
	}
	active, _ := s.GetActivePlan(ctx, userID)
	if active.Tactics[4].Status != types.TacticCompleted {
		t.Errorf("active plan week 5 = %q, want completed", active.Tactics[4].Status)
	}
}

func TestEditAndRecalculate_AfterPlanReplacedElsewhere(t *testing.T) {
	s := newTestSQLite(t)
	next := samplePlan("Recalculado")
	c := newTestController(t, s, &fakeRecalculator{plan: &next})
	ctx := context.Background()
	loaded, err := c.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	tacticID := loaded.Quarters[0].Tactics[0].ID
	replaceElsewhere(t, s)

	if _, err := c.Edit(ctx, tacticID, "Outro título", ""); !errors.Is(err, ErrPlanChanged) {
		t.Errorf("Edit() error = %v, want ErrPlanChanged", err)
	}

	// Edit dropped the stale state, so load it again before recalculating
	if _, err := c.Load(ctx); err != nil {
		t.Fatal(err)
	}
	replaceElsewhere(t, s)
	if _, err := c.Recalculate(ctx, "", ""); !errors.Is(err, ErrPlanChanged) {
		t.Errorf("Recalculate() error = %v, want ErrPlanChanged", err)
	}

	active, _ := s.GetActivePlan(ctx, userID)
	if active.Plan.Goal != "Novo plano" {
		t.Errorf("active goal = %q, want untouched", active.Plan.Goal)
	}
	old, _ := s.GetPlan(ctx, userID, loaded.PlanID)
	if old.Tactics[0].Title != "Semana 1" {
		t.Errorf("replaced plan title = %q, want untouched", old.Tactics[0].Title)
	}
}

func TestToggle_ConcurrentCallsAreSerialized(t *testing.T) {
	// Given: one controller shared by many requests
	s := newTestSQLite(t)
	c := newTestController(t, s, nil)
	ctx := context.Background()
	if _, err := c.Load(ctx); err != nil {
		t.Fatal(err)
	}

	// When: the same week is toggled concurrently, interleaved with edits
	const n = 21
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	tacticID := c.View().Quarters[0].Tactics[4].ID
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := c.Toggle(ctx, 4); err != nil {
				errs <- err
			}
		}()
		go func(i int) {
			defer wg.Done()
			if _, err := c.Edit(ctx, tacticID, fmt.Sprintf("Título %d", i), ""); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call error = %v", err)
	}

	// Then: an odd number of toggles leaves week 5 completed everywhere
	if diff := cmp.Diff([]int{4}, c.CompletedWeeks()); diff != "" {
		t.Errorf("completed weeks (-want +got):\n%s", diff)
	}
	active, _ := s.GetActivePlan(ctx, userID)
	if active.Tactics[4].Status != types.TacticCompleted {
		t.Errorf("stored week 5 = %q, want completed", active.Tactics[4].Status)
	}
	if p, _ := s.GetProfile(ctx, userID); p.TotalCompletedTactics != 1 {
		t.Errorf("TotalCompletedTactics = %d, want 1", p.TotalCompletedTactics)
	}
	if got, want := c.View().Quarters[0].Tactics[4].Title, active.Tactics[4].Title; got != want {
		t.Errorf("cached title %q, stored title %q", got, want)
	}
}

// waitingStreak reports the context state it observed after a short wait.
type waitingStreak struct{ seen chan error }

func (w waitingStreak) Touch(ctx context.Context, userID string) (*types.Streak, error) {
	select {
	case <-ctx.Done():
	case <-time.After(20 * time.Millisecond):
	}
	w.seen <- ctx.Err()
	return &types.Streak{CurrentStreak: 1}, nil
}

func TestLoad_PlanFailureDoesNotCancelStreak(t *testing.T) {
	// Given: a user without a plan
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seen := make(chan error, 1)
	m := NewManager(s, &fakeRecalculator{}, waitingStreak{seen: seen}, Policy{}, discardLogger())

	// When
	_, err = m.For(userID).Load(context.Background())

	// Then: the load fails but the streak write ran to completion
	if !errors.Is(err, store.ErrNoActivePlan) {
		t.Fatalf("Load() error = %v, want ErrNoActivePlan", err)
	}
	if got := <-seen; got != nil {
		t.Errorf("streak context error = %v, want nil", got)
	}
}
