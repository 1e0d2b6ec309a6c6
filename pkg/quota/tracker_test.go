package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is an adjustable clock for expiry tests
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(t *testing.T, clock *fakeClock) *Tracker {
	t.Helper()
	tr := NewTracker(nil, WithClock(clock.Now))
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestCheckAllowsNewCaller(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	tr := newTestTracker(t, clock)

	status, err := tr.Check("user:abc")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Nil(t, status.ResetAt)
}

func TestRecordBlocksWithinWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	tr := newTestTracker(t, clock)

	require.NoError(t, tr.Record("user:abc"))

	status, err := tr.Check("user:abc")
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	require.NotNil(t, status.ResetAt)
	assert.Equal(t, clock.now.Add(DefaultWindow), *status.ResetAt)

	// A different caller is unaffected.
	other, err := tr.Check("user:other")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestCheckAllowsAfterWindowExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	tr := newTestTracker(t, clock)

	require.NoError(t, tr.Record("user:abc"))
	clock.Advance(DefaultWindow + time.Second)

	status, err := tr.Check("user:abc")
	require.NoError(t, err)
	assert.True(t, status.Allowed, "expired record must not block")

	// Lazy expiry removed the record from the backend.
	_, ok, err := tr.backend.Get("user:abc")
	require.NoError(t, err)
	assert.False(t, ok, "expired record should be deleted on read")
}

func TestCheckAtExactExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	tr := newTestTracker(t, clock)

	require.NoError(t, tr.Record("user:abc"))
	clock.Advance(DefaultWindow)

	// Exactly at the boundary the record still stands.
	status, err := tr.Check("user:abc")
	require.NoError(t, err)
	assert.False(t, status.Allowed)
}

func TestRecordOverwrites(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(nil, WithClock(clock.Now), WithWindow(time.Hour))
	defer tr.Close()

	require.NoError(t, tr.Record("user:abc"))
	clock.Advance(2 * time.Hour)
	require.NoError(t, tr.Record("user:abc"))

	status, err := tr.Check("user:abc")
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, clock.now.Add(time.Hour), *status.ResetAt)
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	backend := NewMemoryBackend()
	tr := NewTracker(nil, WithClock(clock.Now), WithBackend(backend), WithWindow(time.Hour))
	defer tr.Close()

	require.NoError(t, tr.Record("user:old"))
	clock.Advance(30 * time.Minute)
	require.NoError(t, tr.Record("user:new"))
	clock.Advance(45 * time.Minute)

	removed, err := backend.Sweep(clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, oldExists, _ := backend.Get("user:old")
	_, newExists, _ := backend.Get("user:new")
	assert.False(t, oldExists)
	assert.True(t, newExists)
}

func TestExceededError(t *testing.T) {
	resetAt := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	err := &ExceededError{ResetAt: resetAt}
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Contains(t, err.Error(), "2026-08-02")
}

func TestCallerKey(t *testing.T) {
	a := CallerKey("1.2.3.4", "agent", "")
	b := CallerKey("1.2.3.4", "agent", "")
	assert.Equal(t, a, b, "key derivation must be stable")
	assert.Regexp(t, `^user:[0-9a-f]{32}$`, a)

	assert.NotEqual(t, a, CallerKey("1.2.3.5", "agent", ""))
	assert.NotEqual(t, a, CallerKey("1.2.3.4", "other-agent", ""))
	assert.NotEqual(t, a, CallerKey("1.2.3.4", "agent", "fp"))
}
