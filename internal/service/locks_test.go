package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionLocks_BlocksSameSession(t *testing.T) {
	l := newSessionLocks()
	unlock := l.lock("a")

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		l.lock("a")()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
	assert.Zero(t, l.size())
}

func TestSessionLocks_IndependentSessions(t *testing.T) {
	l := newSessionLocks()
	unlockA := l.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		l.lock("b")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by a")
	}
	assert.Equal(t, 1, l.size())
}
