package runner

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardMutualExclusion(t *testing.T) {
	var g Guard

	release, ok := g.TryAcquire()
	assert.True(t, ok)
	assert.True(t, g.Busy())

	_, ok = g.TryAcquire()
	assert.False(t, ok)

	release()
	assert.False(t, g.Busy())

	release2, ok := g.TryAcquire()
	assert.True(t, ok)
	release2()
}

func TestGuardReleaseIdempotent(t *testing.T) {
	var g Guard

	release, ok := g.TryAcquire()
	assert.True(t, ok)

	release()
	release() //second call must not unlock someone else's lease

	release2, ok := g.TryAcquire()
	assert.True(t, ok)
	assert.True(t, g.Busy())

	release() //stale release from the first lease
	assert.True(t, g.Busy())

	release2()
	assert.False(t, g.Busy())
}

func TestGuardConcurrentAcquire(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.TryAcquire(); ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
}
