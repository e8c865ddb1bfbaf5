package nodelock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/framegraph/framegraph/internal/ids"
	"github.com/stretchr/testify/assert"
)

func TestSameNodeIDReturnsSameLock(t *testing.T) {
	m := New()
	node := ids.NodeID{1}

	m.Lock(node)
	locked := make(chan struct{})
	go func() {
		m.Lock(node) // must block: same underlying lock
		close(locked)
		m.Unlock(node)
	}()

	select {
	case <-locked:
		t.Fatal("second Lock on same NodeID should have blocked")
	case <-time.After(50 * time.Millisecond):
	}
	m.Unlock(node)
	<-locked // now unblocks
}

func TestDistinctNodeIDsDoNotBlock(t *testing.T) {
	m := New()
	n1, n2 := ids.NodeID{1}, ids.NodeID{2}

	m.Lock(n1)
	defer m.Unlock(n1)

	done := make(chan struct{})
	go func() {
		m.Lock(n2)
		m.Unlock(n2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on distinct NodeID should not block")
	}
}

func TestWriterExcludesReader(t *testing.T) {
	m := New()
	node := ids.NodeID{1}

	m.Lock(node)
	readerEntered := make(chan struct{})
	go func() {
		m.RLock(node)
		close(readerEntered)
		m.RUnlock(node)
	}()

	select {
	case <-readerEntered:
		t.Fatal("reader should not acquire while writer holds lock")
	case <-time.After(50 * time.Millisecond):
	}
	m.Unlock(node)
	<-readerEntered
}

func TestReadersDoNotBlockReaders(t *testing.T) {
	m := New()
	node := ids.NodeID{1}

	m.RLock(node)
	defer m.RUnlock(node)

	done := make(chan struct{})
	go func() {
		m.RLock(node)
		m.RUnlock(node)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader should not block behind first reader")
	}
}

func TestConcurrentWritersDistinctNodesBothSucceed(t *testing.T) {
	m := New()
	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		node := ids.NodeID{byte(i + 1)}
		wg.Add(1)
		go func(n ids.NodeID) {
			defer wg.Done()
			_ = m.WithWriteLock(n, func() error {
				atomic.AddInt32(&count, 1)
				return nil
			})
		}(node)
	}
	wg.Wait()
	assert.Equal(t, int32(2), count)
}

func TestWithWriteLockReleasesOnError(t *testing.T) {
	m := New()
	node := ids.NodeID{1}

	err := m.WithWriteLock(node, func() error { return assert.AnError })
	assert.Error(t, err)

	// Lock must be released even though fn returned an error.
	done := make(chan struct{})
	go func() {
		m.Lock(node)
		m.Unlock(node)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock was not released after WithWriteLock error")
	}
}
