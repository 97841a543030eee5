package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBeforeWait(t *testing.T) {
	f := New[int]()

	require.True(t, f.Set(42))
	require.True(t, f.Resolved())

	// The value is retained until read even though no waiter was present.
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestWaitBlocksUntilSet(t *testing.T) {
	f := New[string]()

	done := make(chan struct{})
	var got string
	var gotErr error
	go func() {
		defer close(done)
		got, gotErr = f.Wait(context.Background())
	}()

	// The waiter must still be blocked before resolution.
	select {
	case <-done:
		t.Fatal("Wait returned before future was resolved")
	case <-time.After(20 * time.Millisecond):
	}

	f.Set("camera-1")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Set")
	}
	require.NoError(t, gotErr)
	assert.Equal(t, "camera-1", got)
}

func TestFail(t *testing.T) {
	f := New[int]()
	boom := errors.New("scan failed")

	require.True(t, f.Fail(boom))

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLaterAssignmentsAreIgnored(t *testing.T) {
	t.Run("SetThenSet", func(t *testing.T) {
		f := New[int]()
		require.True(t, f.Set(1))
		require.False(t, f.Set(2))

		v, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("SetThenFail", func(t *testing.T) {
		f := New[int]()
		require.True(t, f.Set(1))
		require.False(t, f.Fail(errors.New("late error")))

		v, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("FailThenSet", func(t *testing.T) {
		f := New[int]()
		boom := errors.New("early error")
		require.True(t, f.Fail(boom))
		require.False(t, f.Set(1))

		_, err := f.Wait(context.Background())
		assert.ErrorIs(t, err, boom)
	})
}

// TestResolutionRace exercises the value-vs-error race with both orderings
// forced by injected delays. Whichever call arrives first is authoritative;
// the loser must neither overwrite nor block.
func TestResolutionRace(t *testing.T) {
	boom := errors.New("discovery error")

	cases := []struct {
		name       string
		setDelay   time.Duration
		failDelay  time.Duration
		wantValue  bool
		wantError  bool
		eitherWins bool
	}{
		{name: "SetFirst", setDelay: 0, failDelay: 30 * time.Millisecond, wantValue: true},
		{name: "FailFirst", setDelay: 30 * time.Millisecond, failDelay: 0, wantError: true},
		{name: "Simultaneous", setDelay: 0, failDelay: 0, eitherWins: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := New[int]()

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				time.Sleep(tc.setDelay)
				f.Set(7)
			}()
			go func() {
				defer wg.Done()
				time.Sleep(tc.failDelay)
				f.Fail(boom)
			}()

			v, err := f.Wait(context.Background())
			wg.Wait()

			switch {
			case tc.wantValue:
				require.NoError(t, err)
				assert.Equal(t, 7, v)
			case tc.wantError:
				assert.ErrorIs(t, err, boom)
			case tc.eitherWins:
				if err == nil {
					assert.Equal(t, 7, v)
				} else {
					assert.ErrorIs(t, err, boom)
				}
			}

			// Resolution is idempotent against any further attempts.
			assert.False(t, f.Set(99))
			assert.False(t, f.Fail(errors.New("too late")))
			v2, err2 := f.Wait(context.Background())
			assert.Equal(t, v, v2)
			assert.Equal(t, err, err2)
		})
	}
}

func TestConcurrentSettersResolveExactlyOnce(t *testing.T) {
	const setters = 32
	f := New[int]()

	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(setters)
	for i := 0; i < setters; i++ {
		go func(i int) {
			defer wg.Done()
			if f.Set(i) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins, "exactly one setter must win")

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, setters)
}

func TestWaitHonoursContext(t *testing.T) {
	t.Run("Cancel", func(t *testing.T) {
		f := New[int]()
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			_, err := f.Wait(ctx)
			done <- err
		}()

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("Wait did not return after context cancellation")
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		f := New[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := f.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ResolvedBeforeCancelStillReads", func(t *testing.T) {
		f := New[int]()
		f.Set(5)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// An already-resolved future returns its value even with a dead context.
		v, err := f.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	})

	t.Run("MultipleWaitersAllReleased", func(t *testing.T) {
		f := New[int]()

		const waiters = 8
		var wg sync.WaitGroup
		wg.Add(waiters)
		results := make(chan int, waiters)
		for i := 0; i < waiters; i++ {
			go func() {
				defer wg.Done()
				v, err := f.Wait(context.Background())
				if err == nil {
					results <- v
				}
			}()
		}

		f.Set(11)
		wg.Wait()
		close(results)

		count := 0
		for v := range results {
			assert.Equal(t, 11, v)
			count++
		}
		assert.Equal(t, waiters, count)
	})
}
