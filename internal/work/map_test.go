package work

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestMapPreservesOrderAndIsolatesFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	boom := errors.New("boom")

	results, stats := Map(context.Background(), TypeClassify, items, 3, func(_ context.Context, v int) (int, error) {
		if v == 4 {
			return 0, boom
		}
		return v * 10, nil
	})

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if items[i] == 4 {
			if !errors.Is(r.Err, boom) {
				t.Errorf("result %d: expected boom, got %v", i, r.Err)
			}
			continue
		}
		if r.Err != nil || r.Value != items[i]*10 {
			t.Errorf("result %d = %+v, want %d", i, r, items[i]*10)
		}
	}
	if stats.Completed != 5 || stats.Failed != 1 || stats.Total != 6 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMapRecoversPanics(t *testing.T) {
	results, stats := Map(context.Background(), TypeHash, []int{1, 2}, 2, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			panic("bad element")
		}
		return v, nil
	})
	if results[1].Err == nil {
		t.Error("panic should surface as an error")
	}
	if results[0].Err != nil {
		t.Errorf("unexpected error for healthy element: %v", results[0].Err)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failed)
	}
}

func TestMapRespectsWorkerLimit(t *testing.T) {
	var active, peak int64
	items := make([]int, 50)

	Map(context.Background(), TypeClassify, items, 4, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		atomic.AddInt64(&active, -1)
		return struct{}{}, nil
	})

	if peak > 4 {
		t.Errorf("peak concurrency %d exceeds limit 4", peak)
	}
}

func TestMapSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	results, stats := Map(ctx, TypeClassify, make([]int, 10), 1, func(_ context.Context, _ int) (int, error) {
		if calls.Add(1) == 3 {
			cancel()
		}
		return 1, nil
	})
	if calls.Load() != 3 {
		t.Errorf("fn called %d times, want 3", calls.Load())
	}
	if stats.Completed != 3 || stats.Failed != 7 {
		t.Errorf("stats = %+v", stats)
	}
	for i, r := range results[3:] {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("result %d err = %v, want context.Canceled", i+3, r.Err)
		}
	}
}

func TestChunks(t *testing.T) {
	tests := []struct {
		n, parts int
		want     int
	}{
		{10, 3, 3},
		{10, 1, 1},
		{2, 5, 2},
		{0, 4, 0},
		{7, 0, 1},
	}
	for _, tt := range tests {
		items := make([]int, tt.n)
		chunks := Chunks(items, tt.parts)
		if len(chunks) != tt.want {
			t.Errorf("Chunks(%d items, %d) = %d chunks, want %d", tt.n, tt.parts, len(chunks), tt.want)
		}
		total := 0
		for _, c := range chunks {
			if len(c) == 0 {
				t.Error("empty chunk")
			}
			total += len(c)
		}
		if total != tt.n {
			t.Errorf("chunks cover %d items, want %d", total, tt.n)
		}
	}
}

func TestReduceSumsAcrossChunks(t *testing.T) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i + 1
	}

	for _, workers := range []int{1, 3, 8, 64} {
		sum, err := Reduce(context.Background(), TypeAggregate, items, workers, 0,
			func(acc, _ int, chunk []int) (int, error) {
				for _, v := range chunk {
					acc += v
				}
				return acc, nil
			},
			func(a, b int) int { return a + b })
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if sum != 500500 {
			t.Errorf("workers=%d: sum = %d, want 500500", workers, sum)
		}
	}
}

func TestReduceOffsetsAreGlobal(t *testing.T) {
	items := make([]int, 20)
	var seen [20]int32
	_, err := Reduce(context.Background(), TypeAggregate, items, 4, 0,
		func(acc, offset int, chunk []int) (int, error) {
			for i := range chunk {
				atomic.AddInt32(&seen[offset+i], 1)
			}
			return acc, nil
		},
		func(a, b int) int { return a + b })
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range seen {
		if n != 1 {
			t.Errorf("position %d visited %d times", i, n)
		}
	}
}

func TestReduceAbortsOnError(t *testing.T) {
	bad := errors.New("contract violation")
	_, err := Reduce(context.Background(), TypeAggregate, []int{1, 2, 3, 4}, 2, 0,
		func(acc, _ int, chunk []int) (int, error) {
			for _, v := range chunk {
				if v == 3 {
					return acc, bad
				}
				acc += v
			}
			return acc, nil
		},
		func(a, b int) int { return a + b })
	if !errors.Is(err, bad) {
		t.Errorf("expected contract violation, got %v", err)
	}
}

func TestReduceEmpty(t *testing.T) {
	sum, err := Reduce(context.Background(), TypeAggregate, []int(nil), 4, 0,
		func(acc, _ int, _ []int) (int, error) { return acc + 1, nil },
		func(a, b int) int { return a + b })
	if err != nil || sum != 0 {
		t.Errorf("empty reduce = (%d, %v), want (0, nil)", sum, err)
	}
}
