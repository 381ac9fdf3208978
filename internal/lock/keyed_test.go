package lock

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	const goroutines = 50
	counter := 0
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			km.Lock("order:1")
			counter++
			km.Unlock("order:1")
		}()
	}
	wg.Wait()

	if counter != goroutines {
		t.Errorf("counter = %d, want %d", counter, goroutines)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock("order:1")
	done := make(chan struct{})
	go func() {
		km.Lock("order:2")
		km.Unlock("order:2")
		close(done)
	}()
	<-done
	km.Unlock("order:1")
}

func TestKeyedMutexDropsReleasedEntries(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock("order:1")
	km.Unlock("order:1")

	km.mu.Lock()
	n := len(km.entries)
	km.mu.Unlock()
	if n != 0 {
		t.Errorf("entries = %d, want 0 after release", n)
	}
}

func TestKeyedMutexUnlockUnheldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on unlock of unheld key")
		}
	}()
	NewKeyedMutex().Unlock("order:1")
}
