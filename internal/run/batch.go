package run

import (
	"context"
	"sync"
)

// Batch executes many independent parameter records concurrently. Each run
// owns its solver and system; nothing is shared, which is the intended
// scaling strategy for sensitivity studies.
type Batch struct {
	runner  *Runner
	workers int
}

func NewBatch(r *Runner, workers int) *Batch {
	if workers < 1 {
		workers = 1
	}
	return &Batch{runner: r, workers: workers}
}

// Run executes all inputs against modelName and returns results and errors
// index-aligned with inputs. Input-error records come back as empty outputs
// exactly like single runs; fatal solver conditions land in errs.
func (b *Batch) Run(ctx context.Context, modelName string, inputs []Input) ([]*Output, []error) {
	outs := make([]*Output, len(inputs))
	errs := make([]error, len(inputs))

	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outs[idx], errs[idx] = b.runner.Run(ctx, modelName, inputs[idx])
		}(i)
	}
	wg.Wait()

	return outs, errs
}
