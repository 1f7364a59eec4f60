package util

import (
	"sync"

	"tlog.app/go/tlog"
)

// Partition splits l jobs between at most t workers. Every worker gets l/t jobs and the first l%t workers get one
// extra job. The returned slice holds the [start, end) range of every worker.
func Partition(l, t int) [][2]int {
	if t > l {
		t = l
	}
	if t < 1 {
		return nil
	}
	n := l / t   // Jobs per worker go routine.
	res := l % t // Residual jobs.

	parts := make([][2]int, 0, t)
	start := 0
	end := n
	for i1 := 0; i1 < t; i1++ {
		if i1 < res {
			// Worker should do one extra residual job.
			end++
		}
		parts = append(parts, [2]int{start, end})
		start = end
		end += n
	}
	return parts
}

// Parallel calls job once for every index in [0, l). Jobs are spread over t worker go routines when t > 1 and run
// in order on the calling go routine otherwise. Every job runs even if another job fails. The error of every job is
// kept at its index, so the returned error is the one of the lowest failing index regardless of t.
func Parallel(t, l int, job func(i int) error) error {
	errs := make([]error, l)
	if t <= 1 || l <= 1 {
		// Sequential.
		for i1 := 0; i1 < l; i1++ {
			errs[i1] = job(i1)
		}
	} else {
		// Parallel.
		parts := Partition(l, t)
		wg := sync.WaitGroup{}
		wg.Add(len(parts))
		for _, e1 := range parts {
			go func(start, end int) {
				defer wg.Done()
				for i2 := start; i2 < end; i2++ {
					errs[i2] = job(i2)
				}
			}(e1[0], e1[1])
		}
		wg.Wait()
	}

	// Collect in index order.
	perr := NewPerror(0)
	for _, e1 := range errs {
		perr.Append(e1)
	}
	perr.Stop()

	if perr.Len() > 1 {
		for _, e1 := range perr.Errors() {
			tlog.Printw("parallel job failed", "err", e1)
		}
	}
	return perr.Err()
}
