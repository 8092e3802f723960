package notifier

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWaitReturnsImmediatelyWhenPredicateAlreadyHolds(t *testing.T) {
	t.Parallel()

	n := New(5)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := n.Wait(ctx, func(x int) bool { return x == 5 })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 5 {
		t.Fatalf("got %d, want 5", v)
	}
}

func TestWaitWakesOnUpdate(t *testing.T) {
	t.Parallel()

	n := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan int, 1)
	go func() {
		v, err := n.Wait(ctx, func(x int) bool { return x >= 10 })
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	for i := 1; i <= 10; i++ {
		n.Set(i)
	}

	select {
	case v := <-done:
		if v < 10 {
			t.Fatalf("woke early with %d", v)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for wake")
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	n := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Wait(ctx, func(x int) bool { return x == 999 })
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestUpdateReturnsDerivedResult(t *testing.T) {
	t.Parallel()

	n := New(map[int]int{1: 2})
	count := Update(n, func(m *map[int]int) int {
		(*m)[1]--
		return (*m)[1]
	})
	if count != 1 {
		t.Fatalf("got %d, want 1", count)
	}
}

func TestConcurrentWaitersOnlyWakeMatchingPredicates(t *testing.T) {
	t.Parallel()

	n := New(0)
	var wg sync.WaitGroup
	results := make([]int, 4)

	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			v, err := n.Wait(ctx, func(x int) bool { return x == i+1 })
			if err != nil {
				return
			}
			results[i] = v
		}()
	}

	time.Sleep(10 * time.Millisecond)
	for i := 1; i <= 4; i++ {
		n.Set(i)
	}
	wg.Wait()

	for i, v := range results {
		if v != i+1 {
			t.Fatalf("waiter %d got %d, want %d", i, v, i+1)
		}
	}
}
