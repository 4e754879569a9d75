package concurrency_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelibin/yeetlight/internal/concurrency"
)

func Test_ThrottledWorker(t *testing.T) {

	t.Run("should run every job and wait for them", func(t *testing.T) {
		t.Parallel()
		// arrange
		var (
			mu   sync.Mutex
			seen []string
		)
		w := concurrency.NewThrottledWorker(0, func(_ context.Context, arg string) error {
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, arg)
			return nil
		})

		// act
		err := w.Run(context.Background(), []string{"hall", "kitchen", "porch"})

		// assert
		require.NoError(t, err)
		sort.Strings(seen)
		assert.Equal(t, []string{"hall", "kitchen", "porch"}, seen)
	})

	t.Run("should throttle job starts", func(t *testing.T) {
		t.Parallel()
		w := concurrency.NewThrottledWorker(20, func(context.Context, int) error { return nil })

		start := time.Now()
		err := w.Run(context.Background(), []int{1, 2, 3})

		require.NoError(t, err)
		// first job starts on the burst token, the other two wait 50ms each
		assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	})

	t.Run("should join job errors", func(t *testing.T) {
		t.Parallel()
		errHall := errors.New("hall offline")
		w := concurrency.NewThrottledWorker(0, func(_ context.Context, arg string) error {
			if arg == "hall" {
				return errHall
			}
			return nil
		})

		err := w.Run(context.Background(), []string{"hall", "kitchen"})

		assert.True(t, errors.Is(err, errHall))
	})

	t.Run("cancelled context should skip jobs not yet started", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ran := false
		w := concurrency.NewThrottledWorker(1, func(context.Context, string) error {
			ran = true
			return nil
		})

		err := w.Run(ctx, []string{"hall"})

		assert.Error(t, err)
		assert.False(t, ran)
	})

}
