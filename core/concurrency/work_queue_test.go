package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWorkQueue_FIFOWithinCapacity(t *testing.T) {
	q := NewWorkQueueWithCapacity[int](8)
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	if q.Len() != 5 {
		t.Fatalf("expected len 5, got %d", q.Len())
	}
	for i := 0; i < 5; i++ {
		got, ok := q.TryPop()
		if !ok || got != i {
			t.Fatalf("TryPop() = %d, %v, want %d, true", got, ok, i)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Error("empty queue should not pop")
	}
}

func TestWorkQueue_OverflowNeverDrops(t *testing.T) {
	q := NewWorkQueueWithCapacity[int](2)
	for i := 0; i < 100; i++ {
		q.Push(i)
	}

	items := q.Drain()
	if len(items) != 100 {
		t.Fatalf("expected 100 items, got %d", len(items))
	}
	seen := make(map[int]bool)
	for _, it := range items {
		seen[it] = true
	}
	if len(seen) != 100 {
		t.Errorf("expected 100 distinct items, got %d", len(seen))
	}

	stats := q.Stats()
	if stats.Pending != 0 || stats.PushCount != 100 || stats.PopCount != 100 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestWorkQueue_DefaultCapacity(t *testing.T) {
	q := NewWorkQueueWithCapacity[string](-1)
	if cap(q.ch) != defaultWorkQueueCapacity {
		t.Errorf("expected default capacity %d, got %d", defaultWorkQueueCapacity, cap(q.ch))
	}
}

func TestWorkQueue_PopWithContext(t *testing.T) {
	q := NewWorkQueue[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(42)
	}()
	got, err := q.PopWithContext(context.Background())
	if err != nil || got != 42 {
		t.Fatalf("PopWithContext() = %d, %v, want 42, nil", got, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.PopWithContext(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestWorkQueue_ConcurrentProducersConsumers(t *testing.T) {
	const producers, perProducer = 8, 500
	q := NewWorkQueueWithCapacity[int](16)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}(p)
	}

	var mu sync.Mutex
	seen := make(map[int]bool)
	var consumers sync.WaitGroup
	done := make(chan struct{})
	for c := 0; c < 4; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				item, ok := q.TryPop()
				if !ok {
					select {
					case <-done:
						if q.Len() == 0 {
							return
						}
					default:
					}
					continue
				}
				mu.Lock()
				seen[item] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	close(done)
	consumers.Wait()

	if len(seen) != producers*perProducer {
		t.Errorf("expected %d items, got %d", producers*perProducer, len(seen))
	}
}
