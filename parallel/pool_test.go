package parallel

import (
	"sync/atomic"
	"testing"
)

func TestRunCoversEveryItemOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		p := New(workers)
		for _, n := range []int{0, 1, Threshold - 1, Threshold, 1000} {
			hits := make([]int32, n)
			p.Run(n, func(start, end, chunk int) {
				if chunk < 0 || chunk >= p.Workers() {
					t.Errorf("chunk %d out of range", chunk)
				}
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("workers=%d n=%d: item %d visited %d times", workers, n, i, h)
				}
			}
		}
		p.Stop()
	}
}

func TestNilPoolRunsInline(t *testing.T) {
	var p *Pool
	sum := 0
	p.Run(200, func(start, end, chunk int) {
		for i := start; i < end; i++ {
			sum += i
		}
	})
	if sum != 199*200/2 {
		t.Errorf("sum = %d", sum)
	}
	p.Stop()
}

func BenchmarkRun(b *testing.B) {
	p := New(0)
	defer p.Stop()
	data := make([]float64, 1<<14)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Run(len(data), func(start, end, _ int) {
			for j := start; j < end; j++ {
				data[j] = data[j]*0.5 + 1
			}
		})
	}
}
