package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutorRunsTasks(t *testing.T) {
	e := NewExecutor(4, 64)
	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		if err := e.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	e.Close()
	if ran.Load() != 32 {
		t.Fatalf("ran = %d, want 32", ran.Load())
	}
	if got := e.Stats()["completed_tasks"]; got != 32 {
		t.Fatalf("completed_tasks = %d", got)
	}
}

func TestExecutorSaturation(t *testing.T) {
	e := NewExecutor(1, 1)
	defer e.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	if err := e.Submit(func() { close(started); <-block }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	if err := e.Submit(func() {}); err != nil {
		t.Fatalf("queued Submit: %v", err)
	}
	if err := e.Submit(func() {}); !errors.Is(err, ErrExecutorSaturated) {
		t.Fatalf("err = %v, want ErrExecutorSaturated", err)
	}
	close(block)
	if got := e.Stats()["rejected_tasks"]; got != 1 {
		t.Fatalf("rejected_tasks = %d", got)
	}
}

func TestExecutorClose(t *testing.T) {
	e := NewExecutor(2, 8)
	e.Close()
	e.Close()
	if err := e.Submit(func() {}); !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("err = %v, want ErrExecutorClosed", err)
	}
	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed")
	}
}

func TestExecutorRecoversPanic(t *testing.T) {
	e := NewExecutor(1, 4)
	done := make(chan struct{})
	_ = e.Submit(func() { panic("boom") })
	_ = e.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
	e.Close()
	if got := e.Stats()["panics"]; got != 1 {
		t.Fatalf("panics = %d", got)
	}
}
