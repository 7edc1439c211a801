package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeClocker_Sleep(t *testing.T) {
	t.Parallel()

	t.Run("returns after duration", func(t *testing.T) {
		t.Parallel()

		c := New()
		start := c.Now()
		err := c.Sleep(context.Background(), 10*time.Millisecond)

		assert.NoError(t, err)
		assert.GreaterOrEqual(t, c.Now().Sub(start), 10*time.Millisecond)
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := New().Sleep(ctx, time.Minute)

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("zero duration", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, New().Sleep(context.Background(), 0))
	})
}
