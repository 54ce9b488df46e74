package payments_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agricapital/agricapital/internal/pkg/payments"
)

// scriptedChecker returns state for every check until it is changed.
type scriptedChecker struct {
	mu    sync.Mutex
	state payments.ReturnState
	calls int
}

func (c *scriptedChecker) Check(context.Context, payments.ReturnParams) payments.CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return payments.CheckResult{State: c.state}
}

func (c *scriptedChecker) set(state payments.ReturnState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *scriptedChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type memoryStore struct {
	mu    sync.Mutex
	snaps map[string]payments.Snapshot
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snaps: make(map[string]payments.Snapshot)}
}

func (s *memoryStore) Save(_ context.Context, snap payments.Snapshot, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Session] = snap
	return nil
}

func (s *memoryStore) Load(_ context.Context, session string) (*payments.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[session]
	if !ok {
		return nil, payments.ErrSessionNotFound
	}
	return &snap, nil
}

func fastPolling(budget int) payments.PollerConfig {
	return payments.PollerConfig{Interval: 5 * time.Millisecond, MaxAutoChecks: budget, SessionTTL: time.Minute}
}

var testParams = payments.ReturnParams{Reference: "REF-005", Provider: payments.ProviderAuto}

func TestPoller_ExhaustsBudgetThenAcceptsRefresh(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	p := payments.NewPoller("s-1", testParams, checker, fastPolling(10))
	t.Cleanup(p.Stop)

	first := p.Start()
	assert.Equal(t, payments.ReturnAwaiting, first.State)
	assert.Zero(t, first.AutoChecks)

	require.Eventually(t, func() bool {
		return p.Snapshot().AutoRetriesExhausted
	}, 2*time.Second, 5*time.Millisecond)

	// No further automatic checks after the budget is spent.
	time.Sleep(30 * time.Millisecond)
	snap := p.Snapshot()
	assert.Equal(t, 10, snap.AutoChecks)
	assert.Equal(t, 11, checker.count())

	refreshed := p.Refresh()
	assert.Equal(t, 12, checker.count())
	assert.Equal(t, 10, refreshed.AutoChecks)
	assert.True(t, refreshed.AutoRetriesExhausted)

	checker.set(payments.ReturnSucceeded)
	done := p.Refresh()
	assert.Equal(t, payments.ReturnSucceeded, done.State)
	assert.False(t, done.AutoRetriesExhausted)
}

func TestPoller_StopsOnTerminalState(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	p := payments.NewPoller("s-2", testParams, checker, fastPolling(50))
	t.Cleanup(p.Stop)

	var mu sync.Mutex
	var published []payments.Snapshot
	p.OnChange(func(s payments.Snapshot) {
		mu.Lock()
		published = append(published, s)
		mu.Unlock()
	})

	p.Start()
	require.Eventually(t, func() bool { return checker.count() >= 3 }, time.Second, time.Millisecond)
	checker.set(payments.ReturnSucceeded)

	require.Eventually(t, func() bool {
		return p.Snapshot().State == payments.ReturnSucceeded
	}, time.Second, time.Millisecond)

	calls := checker.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, checker.count())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, published)
	assert.Equal(t, payments.ReturnSucceeded, published[len(published)-1].State)
}

func TestPoller_StopCancelsSchedule(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	p := payments.NewPoller("s-3", testParams, checker, payments.PollerConfig{Interval: 20 * time.Millisecond, MaxAutoChecks: 10})

	p.Start()
	p.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, checker.count())

	// A stopped poller does not run checks.
	p.Refresh()
	assert.Equal(t, 1, checker.count())
}

func TestPoller_ZeroBudget(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	p := payments.NewPoller("s-4", testParams, checker, fastPolling(0))
	t.Cleanup(p.Stop)

	snap := p.Start()
	assert.True(t, snap.AutoRetriesExhausted)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, checker.count())
}

func TestRegistry_Lifecycle(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	store := newMemoryStore()
	reg := payments.NewRegistry(checker, fastPolling(0), store)
	t.Cleanup(reg.Close)
	ctx := context.Background()

	snap := reg.Start(testParams)
	require.NotEmpty(t, snap.Session)
	assert.Equal(t, 1, reg.Len())

	got, err := reg.Get(ctx, snap.Session)
	require.NoError(t, err)
	assert.Equal(t, payments.ReturnAwaiting, got.State)

	saved, err := store.Load(ctx, snap.Session)
	require.NoError(t, err)
	assert.Equal(t, "REF-005", saved.Params.Reference)

	checker.set(payments.ReturnFailed)
	refreshed, err := reg.Refresh(ctx, snap.Session)
	require.NoError(t, err)
	assert.Equal(t, payments.ReturnFailed, refreshed.State)

	_, err = reg.Get(ctx, "missing")
	assert.ErrorIs(t, err, payments.ErrSessionNotFound)
	_, err = reg.Refresh(ctx, "missing")
	assert.ErrorIs(t, err, payments.ErrSessionNotFound)

	assert.Zero(t, reg.Sweep(time.Now()))
	assert.Equal(t, 1, reg.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, reg.Len())

	// Evicted sessions are still served from the store.
	got, err = reg.Get(ctx, snap.Session)
	require.NoError(t, err)
	assert.Equal(t, payments.ReturnFailed, got.State)
}

func TestRegistry_RefreshRevivesStoredSession(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	store := newMemoryStore()
	require.NoError(t, store.Save(context.Background(), payments.Snapshot{
		Session:       "stored",
		State:         payments.ReturnAwaiting,
		AutoChecks:    3,
		MaxAutoChecks: 3,
		Params:        testParams,
	}, time.Minute))

	reg := payments.NewRegistry(checker, fastPolling(3), store)
	t.Cleanup(reg.Close)

	snap, err := reg.Refresh(context.Background(), "stored")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.AutoChecks)
	assert.True(t, snap.AutoRetriesExhausted)
	assert.Equal(t, 1, reg.Len())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, checker.count())
}

func TestRegistry_WithoutStore(t *testing.T) {
	reg := payments.NewRegistry(&scriptedChecker{state: payments.ReturnSucceeded}, fastPolling(1), nil)
	t.Cleanup(reg.Close)

	snap := reg.Start(testParams)
	assert.Equal(t, payments.ReturnSucceeded, snap.State)

	reg.Close()
	_, err := reg.Get(context.Background(), snap.Session)
	assert.ErrorIs(t, err, payments.ErrSessionNotFound)
}

func TestPoller_NoIdentifiersSchedulesNothing(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	p := payments.NewPoller("s-5", payments.ReturnParams{Status: "success", Provider: payments.ProviderAuto}, checker, fastPolling(10))
	t.Cleanup(p.Stop)

	snap := p.Start()
	assert.Equal(t, payments.ReturnAwaiting, snap.State)
	assert.True(t, snap.AutoRetriesExhausted)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, checker.count())
	assert.Zero(t, p.Snapshot().AutoChecks)
}

func TestRegistry_ReusesLiveSessionForSameIdentifiers(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	reg := payments.NewRegistry(checker, fastPolling(0), nil)
	t.Cleanup(reg.Close)

	first := reg.Start(testParams)
	again := reg.Start(payments.ReturnParams{Reference: "REF-005", Status: "success", Provider: payments.ProviderAuto})
	assert.Equal(t, first.Session, again.Session)
	assert.Equal(t, 1, checker.count())
	assert.Equal(t, 1, reg.Len())

	other := reg.Start(payments.ReturnParams{Reference: "REF-005", TransactionID: "T-5", Provider: payments.ProviderAuto})
	assert.NotEqual(t, first.Session, other.Session)
	assert.Equal(t, 2, checker.count())
	assert.Equal(t, 2, reg.Len())

	// Once evicted, the same identifiers open a fresh session.
	reg.Sweep(time.Now().Add(2 * time.Minute))
	fresh := reg.Start(testParams)
	assert.NotEqual(t, first.Session, fresh.Session)
	assert.Equal(t, 3, checker.count())
}

func TestRegistry_CapsLiveSessions(t *testing.T) {
	checker := &scriptedChecker{state: payments.ReturnAwaiting}
	cfg := fastPolling(0)
	cfg.MaxSessions = 2
	reg := payments.NewRegistry(checker, cfg, nil)
	t.Cleanup(reg.Close)
	ctx := context.Background()

	oldest := reg.Start(payments.ReturnParams{Reference: "REF-A", Provider: payments.ProviderAuto})
	time.Sleep(2 * time.Millisecond)
	second := reg.Start(payments.ReturnParams{Reference: "REF-B", Provider: payments.ProviderAuto})
	time.Sleep(2 * time.Millisecond)
	third := reg.Start(payments.ReturnParams{Reference: "REF-C", Provider: payments.ProviderAuto})

	assert.Equal(t, 2, reg.Len())
	_, err := reg.Get(ctx, oldest.Session)
	assert.ErrorIs(t, err, payments.ErrSessionNotFound)
	for _, s := range []payments.Snapshot{second, third} {
		_, err := reg.Get(ctx, s.Session)
		assert.NoError(t, err)
	}

	for i := 0; i < 20; i++ {
		reg.Start(payments.ReturnParams{Reference: fmt.Sprintf("REF-%d", i), Provider: payments.ProviderAuto})
	}
	assert.Equal(t, 2, reg.Len())
}
