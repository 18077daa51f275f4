package dashboard

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultIdleTTL is how long an unused controller stays cached.
const DefaultIdleTTL = 30 * time.Minute

type entry struct {
	ctrl     *Controller
	lastUsed time.Time
}

// Manager hands out one Controller per user.
type Manager struct {
	store   Store
	recalc  Recalculator
	streak  StreakToucher
	policy  Policy
	now     func() time.Time
	idleTTL time.Duration
	logger  *slog.Logger

	mu          sync.Mutex
	controllers map[string]*entry
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for quarter unlocking and eviction.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithIdleTTL sets how long unused controllers are kept.
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idleTTL = d }
}

// NewManager creates a Manager. streak may be nil.
func NewManager(s Store, r Recalculator, streak StreakToucher, policy Policy, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:       s,
		recalc:      r,
		streak:      streak,
		policy:      policy,
		now:         time.Now,
		idleTTL:     DefaultIdleTTL,
		logger:      logger.With("component", "dashboard"),
		controllers: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// For returns the user's controller, creating it on first use.
func (m *Manager) For(userID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictIdleLocked(now)

	e, ok := m.controllers[userID]
	if !ok {
		e = &entry{ctrl: newController(userID, m)}
		m.controllers[userID] = e
	}
	e.lastUsed = now
	return e.ctrl
}

// Invalidate drops the cached controller so the next request reloads from the store.
// Called after a new plan replaces the active one.
func (m *Manager) Invalidate(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.controllers, userID)
}

// Len returns the number of cached controllers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}

// EvictIdle drops controllers unused for longer than the idle TTL and
// returns how many were dropped.
func (m *Manager) EvictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictIdleLocked(m.now())
}

func (m *Manager) evictIdleLocked(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}
	evicted := 0
	for id, e := range m.controllers {
		if now.Sub(e.lastUsed) > m.idleTTL {
			delete(m.controllers, id)
			evicted++
		}
	}
	return evicted
}
