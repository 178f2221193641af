package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

func TestCallRateLimiterCapsBurst(t *testing.T) {
	rl := NewCallRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("alice"), "attempt %d within limit", i+1)
	}
	assert.False(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))
}

func TestCallRateLimiterIsPerIdentity(t *testing.T) {
	rl := NewCallRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("bob"), "each identity has its own window")
}

func TestCallRateLimiterWindowSlides(t *testing.T) {
	rl := NewCallRateLimiter(2, 20*time.Millisecond)

	assert.True(t, rl.Allow(domain.Identity("alice")))
	assert.True(t, rl.Allow(domain.Identity("alice")))
	assert.False(t, rl.Allow(domain.Identity("alice")))

	time.Sleep(25 * time.Millisecond)
	assert.True(t, rl.Allow(domain.Identity("alice")), "old attempts aged out")
}
