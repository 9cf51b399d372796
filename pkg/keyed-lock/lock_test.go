package keyedlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryLockExcludesSameKey(t *testing.T) {
	table := New()

	assert.True(t, table.TryLock("a"))
	assert.False(t, table.TryLock("a"))

	table.Unlock("a")
	assert.True(t, table.TryLock("a"))
}

func TestDifferentKeysAreIndependent(t *testing.T) {
	table := New()

	assert.True(t, table.TryLock("a"))
	assert.True(t, table.TryLock("b"))
	assert.True(t, table.TryLock("c"))
}

func TestUnlockUnheldKeyIsNoop(t *testing.T) {
	table := New()
	table.Unlock("never-locked")
	assert.True(t, table.TryLock("never-locked"))
}

func TestConcurrentTryLockAdmitsExactlyOne(t *testing.T) {
	table := New()
	const goroutines = 64

	var wg sync.WaitGroup
	acquired := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if table.TryLock("contested") {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)

	count := 0
	for range acquired {
		count++
	}
	assert.Equal(t, 1, count)
}
