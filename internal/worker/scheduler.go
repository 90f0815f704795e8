package worker

import (
	"context"
	"sync"
)

// Summary describes how a scheduler run ended.
type Summary struct {
	// Interrupted is true when the run stopped on operator cancellation
	// rather than every worker finishing on its own.
	Interrupted bool
	// WorkerErrors holds the fatal error of each worker that failed, keyed
	// by channel.
	WorkerErrors map[string]error
}

// Scheduler supervises one independent Worker per configured channel.
// Workers share no state beyond the processed-state store.
type Scheduler struct {
	workers []*Worker
	logger  Logger
}

// NewScheduler returns a Scheduler over workers. logger may be nil.
func NewScheduler(workers []*Worker, logger Logger) *Scheduler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Scheduler{workers: workers, logger: logger}
}

// Run starts every worker concurrently and blocks until all have
// terminated. Cancellation of ctx propagates to each worker, which finishes
// finalizing any in-flight work before returning.
func (s *Scheduler) Run(ctx context.Context) Summary {
	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make(map[string]error)

	for _, w := range s.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				s.logger.Warnf("%s: worker stopped: %v", w.cfg.Channel, err)
				mu.Lock()
				errs[w.cfg.Channel] = err
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	return Summary{
		Interrupted:  ctx.Err() != nil,
		WorkerErrors: errs,
	}
}
