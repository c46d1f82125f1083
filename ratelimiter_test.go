package porby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDisabledWhenZero(t *testing.T) {
	r := newRateLimiter(0)
	for i := 0; i < 100; i++ {
		assert.False(t, r.exceeded())
	}
}

func TestRateLimiterAllowsUpToMaxWithinWindow(t *testing.T) {
	r := newRateLimiter(3)
	base := time.Unix(1000, 0)
	r.now = func() time.Time { return base }

	assert.False(t, r.exceeded()) // 1
	assert.False(t, r.exceeded()) // 2
	assert.False(t, r.exceeded()) // 3
	assert.True(t, r.exceeded())  // 4 exceeds
}

func TestRateLimiterResetsOnSecondBoundary(t *testing.T) {
	r := newRateLimiter(1)
	base := time.Unix(1000, 0)
	r.now = func() time.Time { return base }

	assert.False(t, r.exceeded())
	assert.True(t, r.exceeded())

	r.now = func() time.Time { return base.Add(time.Second) }
	assert.False(t, r.exceeded()) // window slid, counter reset to 1
}
