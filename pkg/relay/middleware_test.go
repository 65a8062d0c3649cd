package relay

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ClientLimiter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("burst is enforced per client", func(t *testing.T) {
		now := start
		l := newClientLimiter(1, 2)
		l.now = func() time.Time { return now }

		assert.True(t, l.allow("10.0.0.1"))
		assert.True(t, l.allow("10.0.0.1"))
		assert.False(t, l.allow("10.0.0.1"))
		assert.True(t, l.allow("10.0.0.2"))

		now = now.Add(time.Second)
		assert.True(t, l.allow("10.0.0.1"))
	})

	t.Run("idle clients are evicted", func(t *testing.T) {
		now := start
		l := newClientLimiter(1, 1)
		l.now = func() time.Time { return now }

		for i := 0; i < 100; i++ {
			l.allow(fmt.Sprintf("10.0.0.%d", i))
		}
		require.Len(t, l.limiters, 100)

		now = now.Add(5 * time.Minute)
		l.allow("active")
		require.Len(t, l.limiters, 101)

		now = now.Add(limiterIdleTTL)
		l.allow("active")
		assert.Len(t, l.limiters, 1)
		assert.Contains(t, l.limiters, "active")
	})
}
