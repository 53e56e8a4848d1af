package history

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkEvaluateAll measures history evaluation over a 17-month window.
func BenchmarkEvaluateAll(b *testing.B) {
	snap := buildSnapshot(5000, 17)

	for _, workers := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			e := NewEvaluator(workers, 0, nil)
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := e.EvaluateAll(ctx, snap, nil); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportMetric(float64(snap.Len()*b.N)/b.Elapsed().Seconds(), "rows/sec")
		})
	}
}

// BenchmarkEvaluate measures a single 17-month history.
func BenchmarkEvaluate(b *testing.B) {
	flags := []int8{1, 1, 0, 1, 1, 1, 0, 0, 1, 1, 1, 1, 0, 1, 0, 1, 1}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Evaluate(flags); err != nil {
			b.Fatal(err)
		}
	}
}
