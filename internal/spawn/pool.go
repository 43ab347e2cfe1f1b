package spawn

import (
	"sync"
	"sync/atomic"
)

// mapWithLimit applies fn to every element of in using at most limit
// concurrent workers. Results land at the position of their input, so output
// order is stable regardless of completion order.
func mapWithLimit[T, R any](limit int, in []T, fn func(i int, v T) R) []R {
	if limit <= 0 {
		limit = 1
	}
	if limit > len(in) {
		limit = len(in)
	}

	out := make([]R, len(in))
	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= len(in) {
					return
				}
				out[i] = fn(i, in[i])
			}
		}()
	}
	wg.Wait()
	return out
}
