package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesPerKey(t *testing.T) {
	kl := New()
	keys := []string{"a", "b", "c", "d"}
	counters := map[string]*int{"a": new(int), "b": new(int), "c": new(int), "d": new(int)}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := keys[i%4]
			kl.Lock(key)
			// Unsynchronized increment; only the keyed lock protects it.
			*counters[key]++
			kl.Unlock(key)
		}(i)
	}
	wg.Wait()

	for _, key := range keys {
		assert.Equal(t, 50, *counters[key])
	}
}

func TestEntriesDroppedAfterLastRelease(t *testing.T) {
	kl := New()

	kl.Lock("study:1")
	kl.Lock("study:2")
	assert.Equal(t, 2, kl.Len())

	kl.Unlock("study:1")
	assert.Equal(t, 1, kl.Len())
	kl.Unlock("study:2")
	assert.Equal(t, 0, kl.Len())
}

func TestUnlockOfUnheldKeyPanics(t *testing.T) {
	kl := New()
	assert.Panics(t, func() { kl.Unlock("never-locked") })
}
