package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryAcquireFailsFastWhenHeld(t *testing.T) {
	l := New()

	require.True(t, l.TryAcquire("a"))
	require.False(t, l.TryAcquire("a"))

	l.Release("a")
	require.True(t, l.TryAcquire("a"))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()

	require.True(t, l.TryAcquire("a"))
	require.True(t, l.TryAcquire("b"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := New()

	l.Release("missing")

	require.True(t, l.TryAcquire("a"))
	l.Release("a")
	l.Release("a")
	require.True(t, l.TryAcquire("a"))
}

func TestSingleWinnerUnderContention(t *testing.T) {
	l := New()

	const goroutines = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire("contended") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, acquired)
}
