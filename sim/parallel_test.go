package sim

import (
	"sync/atomic"
	"testing"
)

func TestPoolCoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"below threshold", 17},
		{"at threshold", parallelThreshold},
		{"above threshold", 4*parallelThreshold + 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPool(4)
			defer p.stop()

			counts := make([]int32, tt.n)
			p.run(tt.n, func(start, end, _ int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&counts[i], 1)
				}
			})
			for i, c := range counts {
				if c != 1 {
					t.Fatalf("index %d visited %d times", i, c)
				}
			}
		})
	}
}

func TestPoolRunIsBarrier(t *testing.T) {
	p := newPool(4)
	defer p.stop()

	n := 8 * parallelThreshold
	data := make([]int, n)
	p.run(n, func(start, end, _ int) {
		for i := start; i < end; i++ {
			data[i] = 1
		}
	})
	// run returned, so every write above must be visible here.
	p.run(n, func(start, end, _ int) {
		for i := start; i < end; i++ {
			data[i]++
		}
	})
	for i, v := range data {
		if v != 2 {
			t.Fatalf("index %d = %d after two passes, want 2", i, v)
		}
	}
}

func TestPoolWorkerIDsInRange(t *testing.T) {
	p := newPool(3)
	defer p.stop()

	var bad int32
	p.run(6*parallelThreshold, func(_, _, worker int) {
		if worker < 0 || worker >= 3 {
			atomic.AddInt32(&bad, 1)
		}
	})
	if bad != 0 {
		t.Errorf("%d chunks saw an out-of-range worker id", bad)
	}
}

func TestPoolZeroAndStop(t *testing.T) {
	p := newPool(2)
	p.run(0, func(_, _, _ int) { t.Error("fn called for n=0") })
	p.stop()
	p.stop() // second stop must not panic
}
