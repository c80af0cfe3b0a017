package work

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func itemsOf(rels ...string) iter.Seq2[WorkItem, error] {
	return func(yield func(WorkItem, error) bool) {
		for _, rel := range rels {
			if !yield(WorkItem{Rel: rel, Kind: KindOf(rel)}, nil) {
				return
			}
		}
	}
}

func TestDispatcherSequentialKeepsOrder(t *testing.T) {
	var got []string
	d := NewDispatcher(DispatcherConfig{}, ProcessorFunc(func(_ context.Context, item WorkItem) {
		got = append(got, item.Rel)
	}))

	summary, err := d.Execute(context.Background(), itemsOf("a.js", "b.css", "c.js"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if summary.Dispatched != 3 || summary.Workers != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	want := []string{"a.js", "b.css", "c.js"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestDispatcherConcurrentRespectsLimit(t *testing.T) {
	var active, peak int32
	var mu sync.Mutex
	seen := map[string]bool{}

	d := NewDispatcher(DispatcherConfig{MaxWorkers: 2}, ProcessorFunc(func(_ context.Context, item WorkItem) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		mu.Lock()
		seen[item.Rel] = true
		mu.Unlock()
	}))

	_, err := d.Execute(context.Background(), itemsOf("a.js", "b.js", "c.js", "d.js", "e.js"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(seen) != 5 {
		t.Errorf("expected all 5 items processed, got %d", len(seen))
	}
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak)
	}
}

func TestDispatcherStopsOnEnumerationError(t *testing.T) {
	boom := errors.New("walk failed")
	items := func(yield func(WorkItem, error) bool) {
		if !yield(WorkItem{Rel: "a.js"}, nil) {
			return
		}
		yield(WorkItem{}, boom)
	}

	processed := 0
	d := NewDispatcher(DispatcherConfig{}, ProcessorFunc(func(context.Context, WorkItem) { processed++ }))
	summary, err := d.Execute(context.Background(), items)
	if !errors.Is(err, boom) {
		t.Errorf("expected enumeration error, got %v", err)
	}
	if processed != 1 || summary.Dispatched != 1 {
		t.Errorf("expected the item before the error to be processed, got %d", processed)
	}
}

func TestDispatcherHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processed := 0
	d := NewDispatcher(DispatcherConfig{}, ProcessorFunc(func(context.Context, WorkItem) { processed++ }))
	_, err := d.Execute(ctx, itemsOf("a.js"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if processed != 0 {
		t.Errorf("expected no items processed, got %d", processed)
	}
}
