package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit Limit) (*Limiter, *time.Time) {
	l := New(limit)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_AllowWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(Limit{Count: 3, Window: time.Minute})

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"), "fourth event in the window must be rejected")
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(Limit{Count: 1, Window: time.Minute})

	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"), "a saturated window must not affect other identities")
}

func TestLimiter_WindowResets(t *testing.T) {
	l, now := newTestLimiter(Limit{Count: 2, Window: time.Minute})

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))

	*now = now.Add(time.Minute)
	assert.True(t, l.Allow("u1"), "a fresh window must start after the duration elapses")
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
}

func TestLimiter_RejectionDoesNotExtendWindow(t *testing.T) {
	l, now := newTestLimiter(Limit{Count: 1, Window: time.Minute})

	assert.True(t, l.Allow("u1"))
	*now = now.Add(59 * time.Second)
	assert.False(t, l.Allow("u1"))
	*now = now.Add(time.Second)
	assert.True(t, l.Allow("u1"))
}

func TestLimiter_PruneDropsExpiredWindows(t *testing.T) {
	l, now := newTestLimiter(Limit{Count: 1, Window: time.Minute})

	l.Allow("u1")
	l.Allow("u2")
	*now = now.Add(2 * time.Minute)
	l.Allow("u3")

	l.Prune()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.windows, 1)
	assert.Contains(t, l.windows, "u3")
}
