package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryRejectsNonPositive(t *testing.T) {
	s := New(time.UTC)
	if _, err := s.Every(0, func() {}); err == nil {
		t.Error("Every(0) should fail")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestEveryRuns(t *testing.T) {
	s := New(time.UTC)
	var runs atomic.Int32
	done := make(chan struct{})
	if _, err := s.Every(time.Second, func() {
		if runs.Add(1) == 1 {
			close(done)
		}
	}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}

	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}
