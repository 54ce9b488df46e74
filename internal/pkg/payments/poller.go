package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired return sessions.
var ErrSessionNotFound = errors.New("return session not found")

// Snapshot is the published state of one return session.
type Snapshot struct {
	Session              string          `json:"session"`
	State                ReturnState     `json:"state"`
	AutoChecks           int             `json:"auto_checks"`
	MaxAutoChecks        int             `json:"max_auto_checks"`
	AutoRetriesExhausted bool            `json:"auto_retries_exhausted"`
	Payment              *PaymentSummary `json:"payment,omitempty"`
	Provider             string          `json:"verified_provider,omitempty"`
	Params               ReturnParams    `json:"params"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Poller re-runs return-flow checks for one payer session. The initial check
// is free; while the state is awaiting-confirmation at most MaxAutoChecks more
// run every Interval. Refresh can be called at any time and never uses up the
// automatic budget.
type Poller struct {
	session string
	params  ReturnParams
	checker Checker
	cfg     PollerConfig

	ctx    context.Context
	cancel context.CancelFunc

	// runMu keeps checks of one session sequential.
	runMu sync.Mutex

	mu         sync.Mutex
	state      ReturnState
	payment    *PaymentSummary
	provider   string
	autoChecks int
	timer      *time.Timer
	stopped    bool
	updatedAt  time.Time
	onChange   func(Snapshot)
}

// NewPoller creates a stopped-until-Start poller.
func NewPoller(session string, params ReturnParams, checker Checker, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.MaxAutoChecks < 0 {
		cfg.MaxAutoChecks = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		session:   session,
		params:    params,
		checker:   checker,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		state:     ReturnChecking,
		updatedAt: time.Now(),
	}
}

// OnChange registers fn to receive every snapshot published after a check.
func (p *Poller) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Start runs the initial check and schedules automatic re-checks.
func (p *Poller) Start() Snapshot {
	return p.run(false)
}

// Refresh runs a manual check.
func (p *Poller) Refresh() Snapshot {
	return p.run(false)
}

// Stop cancels pending re-checks and any in-flight provider call.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	p.cancel()
}

// Snapshot returns the current state without running a check.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) run(auto bool) Snapshot {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		snap := p.snapshotLocked()
		p.mu.Unlock()
		return snap
	}
	if auto {
		// The fired timer stays set until here so a concurrent Refresh does
		// not schedule a second one.
		p.timer = nil
		p.autoChecks++
	}
	p.state = ReturnChecking
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(p.ctx, checkTimeout)
	res := p.checker.Check(ctx, p.params)
	cancel()

	p.mu.Lock()
	p.state = res.State
	if res.Payment != nil {
		p.payment = res.Payment
	}
	if res.Provider != "" {
		p.provider = res.Provider
	}
	p.updatedAt = time.Now()
	p.scheduleLocked()
	snap := p.snapshotLocked()
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
	return snap
}

func (p *Poller) scheduleLocked() {
	if p.state.IsTerminal() || p.stopped {
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
		return
	}
	if p.state != ReturnAwaiting || p.timer != nil || p.exhaustedLocked() {
		return
	}
	p.timer = time.AfterFunc(p.cfg.Interval, func() { p.run(true) })
}

// exhaustedLocked reports whether no automatic check is left. Without
// identifiers a re-check cannot change anything.
func (p *Poller) exhaustedLocked() bool {
	return p.autoChecks >= p.cfg.MaxAutoChecks || !p.params.HasIdentifiers()
}

func (p *Poller) snapshotLocked() Snapshot {
	return Snapshot{
		Session:              p.session,
		State:                p.state,
		AutoChecks:           p.autoChecks,
		MaxAutoChecks:        p.cfg.MaxAutoChecks,
		AutoRetriesExhausted: p.state == ReturnAwaiting && p.exhaustedLocked(),
		Payment:              p.payment,
		Provider:             p.provider,
		Params:               p.params,
		UpdatedAt:            p.updatedAt,
	}
}

// SnapshotStore persists session snapshots so any instance can serve them.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot, ttl time.Duration) error
	Load(ctx context.Context, session string) (*Snapshot, error)
}

type registryEntry struct {
	poller  *Poller
	key     string
	expires time.Time
}

// Registry owns the pollers of all live return sessions.
type Registry struct {
	checker Checker
	cfg     PollerConfig
	store   SnapshotStore

	mu      sync.Mutex
	entries map[string]*registryEntry
	// byKey maps reference and transaction id to the live session for them.
	byKey   map[string]string
}

// NewRegistry creates a registry. store may be nil.
func NewRegistry(checker Checker, cfg PollerConfig, store SnapshotStore) *Registry {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultReturnSessionTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultReturnMaxSessions
	}
	return &Registry{
		checker: checker,
		cfg:     cfg,
		store:   store,
		entries: make(map[string]*registryEntry),
		byKey:   make(map[string]string),
	}
}

// Start opens a session for params and runs its first check. A live session
// for the same reference and transaction id is returned as is, without a new
// check or a new automatic budget.
func (r *Registry) Start(params ReturnParams) Snapshot {
	key := sessionKey(params)

	r.mu.Lock()
	if id, ok := r.byKey[key]; ok {
		if e, ok := r.entries[id]; ok {
			e.expires = time.Now().Add(r.cfg.SessionTTL)
			r.mu.Unlock()
			return e.poller.Snapshot()
		}
	}
	r.mu.Unlock()

	p := r.track(uuid.NewString(), params, 0)
	return p.Start()
}

func sessionKey(params ReturnParams) string {
	return params.Reference + "\x00" + params.TransactionID
}

// Get returns the latest snapshot of session.
func (r *Registry) Get(ctx context.Context, session string) (Snapshot, error) {
	if p := r.lookup(session); p != nil {
		return p.Snapshot(), nil
	}
	if r.store == nil {
		return Snapshot{}, ErrSessionNotFound
	}
	snap, err := r.store.Load(ctx, session)
	if err != nil {
		return Snapshot{}, err
	}
	return *snap, nil
}

// Refresh runs a manual check. Sessions only known to the store are revived
// with their spent automatic budget.
func (r *Registry) Refresh(ctx context.Context, session string) (Snapshot, error) {
	if p := r.lookup(session); p != nil {
		r.touch(session)
		return p.Refresh(), nil
	}
	if r.store == nil {
		return Snapshot{}, ErrSessionNotFound
	}
	snap, err := r.store.Load(ctx, session)
	if err != nil {
		return Snapshot{}, err
	}
	p := r.track(session, snap.Params, snap.AutoChecks)
	return p.Refresh(), nil
}

// Sweep stops and forgets sessions idle for longer than the session TTL.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*Poller
	for id, e := range r.entries {
		if now.After(e.expires) {
			expired = append(expired, e.poller)
			r.removeLocked(id, e)
		}
	}
	r.mu.Unlock()

	for _, p := range expired {
		p.Stop()
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is done, then stops every poller.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				log.Debugf("[ReturnFlow] evicted %d return sessions", n)
			}
		}
	}
}

// Close stops all pollers.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.byKey = make(map[string]string)
	r.mu.Unlock()
	for _, e := range entries {
		e.poller.Stop()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) track(session string, params ReturnParams, spent int) *Poller {
	p := NewPoller(session, params, r.checker, r.cfg)
	p.autoChecks = spent
	p.OnChange(func(snap Snapshot) { r.publish(snap) })

	key := sessionKey(params)
	var stale []*Poller

	r.mu.Lock()
	if old, ok := r.entries[session]; ok {
		stale = append(stale, old.poller)
		r.removeLocked(session, old)
	}
	for len(r.entries) >= r.cfg.MaxSessions {
		id, e := r.oldestLocked()
		stale = append(stale, e.poller)
		r.removeLocked(id, e)
	}
	r.entries[session] = &registryEntry{poller: p, key: key, expires: time.Now().Add(r.cfg.SessionTTL)}
	r.byKey[key] = session
	r.mu.Unlock()

	for _, old := range stale {
		old.Stop()
	}
	return p
}

// oldestLocked returns the entry closest to expiry. r.entries must not be empty.
func (r *Registry) oldestLocked() (string, *registryEntry) {
	var oldestID string
	var oldest *registryEntry
	for id, e := range r.entries {
		if oldest == nil || e.expires.Before(oldest.expires) {
			oldestID, oldest = id, e
		}
	}
	return oldestID, oldest
}

func (r *Registry) removeLocked(session string, e *registryEntry) {
	delete(r.entries, session)
	if r.byKey[e.key] == session {
		delete(r.byKey, e.key)
	}
}

func (r *Registry) lookup(session string) *Poller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[session]; ok {
		return e.poller
	}
	return nil
}

func (r *Registry) touch(session string) {
	r.mu.Lock()
	if e, ok := r.entries[session]; ok {
		e.expires = time.Now().Add(r.cfg.SessionTTL)
	}
	r.mu.Unlock()
}

func (r *Registry) publish(snap Snapshot) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.store.Save(ctx, snap, r.cfg.SessionTTL); err != nil {
		log.Warnf("[ReturnFlow] saving snapshot %s: %v", snap.Session, err)
	}
}
