package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_Allow_ConsumesBurst(t *testing.T) {
	l := New(3, 0.001)

	assert.True(t, l.Allow("ws-1"))
	assert.True(t, l.Allow("ws-1"))
	assert.True(t, l.Allow("ws-1"))
	assert.False(t, l.Allow("ws-1"), "fourth request should exhaust the burst")
}

func TestLimiter_Allow_IsolatedPerWorkspace(t *testing.T) {
	l := New(1, 0.001)

	assert.True(t, l.Allow("ws-1"))
	assert.False(t, l.Allow("ws-1"))
	assert.True(t, l.Allow("ws-2"), "a different workspace must have its own bucket")
}

func TestUnlimited_AlwaysAllows(t *testing.T) {
	u := Unlimited{}
	for i := 0; i < 100; i++ {
		assert.True(t, u.Allow("any-workspace"))
	}
}
