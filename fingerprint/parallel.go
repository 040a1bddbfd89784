package fingerprint

import (
	"context"
	"runtime"
	"sort"
	"sync"
)

// All fingerprints files on parallel workers and returns the results sorted
// by path. Workers share no mutable state; the sort is the single merge point,
// so worker completion order can never influence the output.
func All(ctx context.Context, files []SourceFile, workers int) ([]FileFingerprint, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	out := make([]FileFingerprint, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = File(files[i])
			}
		}()
	}

	var cancelled bool
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = true
		}
		if cancelled {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
