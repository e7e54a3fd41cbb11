package drafts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/printshop-backend/internal/cart"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/metrics"
)

const (
	DefaultDebounce    = 2 * time.Second
	DefaultSaveTimeout = 5 * time.Second
)

// Skip reasons reported to metrics.
const (
	skipFinalized = "finalized"
	skipPersisted = "editing_persisted"
	skipEmpty     = "empty"
)

// Options tune a Manager. Zero values fall back to defaults.
type Options struct {
	Debounce    time.Duration
	SaveTimeout time.Duration
	Logger      *logger.Logger
	Metrics     *metrics.DraftMetrics
	Now         func() time.Time
}

// Manager autosaves one cart into one draft slot.
//
// It moves idle -> pending -> saving -> idle. Each cart change restarts a
// single debounce timer; when it fires the latest full snapshot is written.
// At most one save is in flight. A change during a save marks the manager
// dirty and re-arms the timer once the save completes. Failed saves are only
// retried by the next change.
type Manager struct {
	store      Store
	cart       *cart.Cart
	sessionKey string
	opts       Options
	logg       *logger.Logger

	mu          sync.Mutex
	state       enums.DraftSaveState
	timer       *time.Timer
	gen         uint64
	dirty       bool
	closed      bool
	inflight    chan struct{}
	cancelSave  context.CancelFunc
	createdAt   time.Time
	unsubscribe func()
}

// NewManager attaches a manager to c. Call Close when the session ends.
func NewManager(store Store, c *cart.Cart, sessionKey string, opts Options) (*Manager, error) {
	if store == nil {
		return nil, errors.New("draft store is required")
	}
	if c == nil {
		return nil, errors.New("cart is required")
	}
	if sessionKey == "" {
		return nil, errors.New("session key is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultSaveTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	m := &Manager{
		store:      store,
		cart:       c,
		sessionKey: sessionKey,
		opts:       opts,
		logg:       logg,
		state:      enums.DraftSaveIdle,
	}
	m.unsubscribe = c.Subscribe(m.onChange)
	return m, nil
}

// State reports where the autosave loop is.
func (m *Manager) State() enums.DraftSaveState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) onChange(ch cart.Change) {
	switch ch.Kind {
	case cart.ChangeRestored:
	case cart.ChangeCleared:
		m.clearSlot()
	case cart.ChangeFinalized:
		m.cancelPending()
	default:
		m.Touch()
	}
}

// clearSlot drops the remote draft of a cart that was explicitly cleared so
// the next session does not restore it. Discard logs and counts a failure.
func (m *Manager) clearSlot() {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SaveTimeout)
	defer cancel()
	_ = m.Discard(ctx)
}

// Touch (re)starts the debounce timer.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.state == enums.DraftSaveSaving {
		m.dirty = true
		return
	}
	m.armLocked()
}

func (m *Manager) armLocked() {
	m.gen++
	gen := m.gen
	if m.timer != nil {
		m.timer.Stop()
	}
	m.state = enums.DraftSavePending
	m.timer = time.AfterFunc(m.opts.Debounce, func() { m.fire(gen) })
}

func (m *Manager) cancelPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.dirty = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.state == enums.DraftSavePending {
		m.state = enums.DraftSaveIdle
	}
}

func (m *Manager) fire(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen || m.state != enums.DraftSavePending {
		m.mu.Unlock()
		return
	}
	ctx, done := m.beginLocked(context.Background())
	m.mu.Unlock()

	_ = m.save(ctx)
	m.finish(done)
}

// Flush saves the latest snapshot now, waiting for any in-flight save first.
// Guards still apply.
func (m *Manager) Flush(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil
		}
		if wait := m.inflight; wait != nil {
			m.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		m.gen++
		m.dirty = false
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
		saveCtx, done := m.beginLocked(ctx)
		m.mu.Unlock()

		err := m.save(saveCtx)
		m.finish(done)
		return err
	}
}

func (m *Manager) beginLocked(parent context.Context) (context.Context, chan struct{}) {
	ctx, cancel := context.WithTimeout(parent, m.opts.SaveTimeout)
	done := make(chan struct{})
	m.state = enums.DraftSaveSaving
	m.inflight = done
	m.cancelSave = cancel
	return ctx, done
}

func (m *Manager) finish(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelSave != nil {
		m.cancelSave()
		m.cancelSave = nil
	}
	close(done)
	m.inflight = nil
	m.state = enums.DraftSaveIdle
	if m.dirty && !m.closed {
		m.dirty = false
		m.armLocked()
	}
}

func (m *Manager) save(ctx context.Context) error {
	snap := m.cart.Snapshot()
	switch {
	case snap.Finalized:
		m.opts.Metrics.IncSkipped(skipFinalized)
		return nil
	case snap.Source != nil:
		m.opts.Metrics.IncSkipped(skipPersisted)
		return nil
	case !snap.HasContent():
		m.opts.Metrics.IncSkipped(skipEmpty)
		return nil
	}

	now := m.opts.Now().UTC()
	m.mu.Lock()
	if m.createdAt.IsZero() {
		m.createdAt = now
	}
	createdAt := m.createdAt
	m.mu.Unlock()

	draft := &Draft{
		SessionKey: m.sessionKey,
		Status:     enums.DraftStatusDraft,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
		Cart:       snap,
	}
	started := time.Now()
	err := m.store.Save(ctx, m.sessionKey, draft)
	m.opts.Metrics.ObserveSave(time.Since(started), err)
	if err != nil {
		err = persistenceError(err, "save draft")
		logCtx := m.logg.WithSessionKey(ctx, m.sessionKey)
		m.logg.Error(logCtx, "draft save failed", err)
		return err
	}
	return nil
}

// Restore loads the session's draft into the cart. It reports whether a
// draft was applied. Absent and finalized drafts leave the cart at its
// default state; so does a failing store, whose error is logged and returned
// for information only.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	logCtx := m.logg.WithSessionKey(ctx, m.sessionKey)
	draft, err := m.store.Get(ctx, m.sessionKey)
	m.opts.Metrics.ObserveRestore(err)
	if err != nil {
		err = persistenceError(err, "restore draft")
		m.logg.Error(logCtx, "draft restore failed, starting from an empty cart", err)
		return false, err
	}
	if draft == nil {
		return false, nil
	}
	if draft.Status == enums.DraftStatusFinalized || draft.Cart.Finalized {
		m.logg.Info(logCtx, "ignoring finalized draft")
		return false, nil
	}
	if err := m.cart.Restore(draft.Cart); err != nil {
		m.logg.Error(logCtx, "draft could not be applied", err)
		return false, err
	}
	m.mu.Lock()
	m.createdAt = draft.CreatedAt
	m.mu.Unlock()
	return true, nil
}

// Discard cancels pending work, waits for an in-flight save and clears the
// slot. A failed clear is logged and returned; callers may ignore it.
func (m *Manager) Discard(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	m.dirty = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.state == enums.DraftSavePending {
		m.state = enums.DraftSaveIdle
	}
	wait := m.inflight
	m.createdAt = time.Time{}
	m.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := m.store.Clear(ctx, m.sessionKey)
	m.opts.Metrics.ObserveClear(err)
	if err != nil {
		err = persistenceError(err, "clear draft")
		logCtx := m.logg.WithSessionKey(ctx, m.sessionKey)
		m.logg.Warn(logCtx, "draft clear failed: "+err.Error())
		return err
	}
	return nil
}

// Close stops the timer, cancels an in-flight save and detaches from the cart.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancelSave != nil {
		m.cancelSave()
	}
	if m.state == enums.DraftSavePending {
		m.state = enums.DraftSaveIdle
	}
	unsubscribe := m.unsubscribe
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func persistenceError(err error, msg string) error {
	if pkgerrors.IsCode(err, pkgerrors.CodeDraftPersistence) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDraftPersistence, err, msg)
}
