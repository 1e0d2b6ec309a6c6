// Package quota enforces the one-generation-per-caller rule. A caller
// gets one completed generation per window (24h by default); the
// record is written only when a job completes, so failed jobs never
// consume quota.
package quota

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/huynhanhkhoa2895/face-swap/pkg/logging"
)

// DefaultWindow is how long one generation blocks the next
const DefaultWindow = 24 * time.Hour

// DefaultSweepInterval is how often expired records are swept.
// Expiry is also checked lazily on read, so the sweep only bounds
// memory; its absence never changes answers.
const DefaultSweepInterval = time.Hour

// Record tracks one caller's most recent completed generation
type Record struct {
	CallerKey   string
	GeneratedAt time.Time
	ExpiresAt   time.Time
}

// Status answers a quota check
type Status struct {
	Allowed bool
	ResetAt *time.Time
}

// ExceededError carries the time at which the caller's quota resets
type ExceededError struct {
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("generation quota exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Backend stores quota records. Implementations must be safe for
// concurrent use.
type Backend interface {
	Get(callerKey string) (Record, bool, error)
	Put(rec Record) error
	Delete(callerKey string) error
	Sweep(now time.Time) (int, error)
	Close() error
}

// Tracker answers quota checks and records completed generations.
// It owns its backend's lifecycle: Start launches the periodic sweep,
// Close stops it and closes the backend.
type Tracker struct {
	backend       Backend
	window        time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	log           *logging.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Tracker
type Option func(*Tracker)

// WithWindow overrides the quota window
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) { t.window = d }
}

// WithSweepInterval overrides the sweep cadence
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) { t.sweepInterval = d }
}

// WithBackend replaces the default in-memory backend
func WithBackend(b Backend) Option {
	return func(t *Tracker) { t.backend = b }
}

// WithClock injects a clock for tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker with an in-memory backend unless
// overridden by options.
func NewTracker(log *logging.Logger, opts ...Option) *Tracker {
	if log == nil {
		log = logging.New(logging.INFO, false)
	}
	t := &Tracker{
		backend:       NewMemoryBackend(),
		window:        DefaultWindow,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		log:           log.WithComponent("quota"),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Check reports whether the caller may start a new generation. An
// expired record is removed lazily here, so answers stay correct even
// if the sweep never runs.
func (t *Tracker) Check(callerKey string) (Status, error) {
	rec, ok, err := t.backend.Get(callerKey)
	if err != nil {
		return Status{}, fmt.Errorf("quota lookup: %w", err)
	}
	if !ok {
		return Status{Allowed: true}, nil
	}

	now := t.now()
	if now.After(rec.ExpiresAt) {
		if err := t.backend.Delete(callerKey); err != nil {
			t.log.Warn("failed to delete expired quota record for %s: %v", callerKey, err)
		}
		return Status{Allowed: true}, nil
	}

	resetAt := rec.ExpiresAt
	return Status{Allowed: false, ResetAt: &resetAt}, nil
}

// Record stores a completed generation for the caller, overwriting any
// previous record.
func (t *Tracker) Record(callerKey string) error {
	now := t.now()
	rec := Record{
		CallerKey:   callerKey,
		GeneratedAt: now,
		ExpiresAt:   now.Add(t.window),
	}
	if err := t.backend.Put(rec); err != nil {
		return fmt.Errorf("quota record: %w", err)
	}
	t.log.Info("recorded generation for caller %s", callerKey)
	return nil
}

// Start launches the periodic background sweep
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.sweep()
			case <-t.done:
				return
			}
		}
	}()
}

func (t *Tracker) sweep() {
	removed, err := t.backend.Sweep(t.now())
	if err != nil {
		t.log.Warn("quota sweep failed: %v", err)
		return
	}
	if removed > 0 {
		t.log.Info("swept %d expired quota records", removed)
	}
}

// Close stops the sweep and closes the backend
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.started {
		close(t.done)
		t.started = false
	}
	t.mu.Unlock()
	t.wg.Wait()
	return t.backend.Close()
}

// CallerKey derives a stable caller key from identity fields. The raw
// identity is hashed so keys are safe to log and uniform in size.
func CallerKey(ip, userAgent, fingerprint string) string {
	parts := []string{ip, userAgent}
	if fingerprint != "" {
		parts = append(parts, fingerprint)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return "user:" + hex.EncodeToString(sum[:16])
}
