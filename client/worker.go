package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/pgqueue/types/config"
	"github.com/sourcegraph/conc"
)

// Worker runs processors in a long-lived loop. Each of its slots polls every
// processor in turn and sleeps when a full pass found nothing to do.
type Worker struct {
	processors   []Processor
	concurrency  int
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewWorker(processors []Processor, concurrency int, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if concurrency < 1 {
		concurrency = config.DefaultWorkerCount
	}
	if pollInterval <= 0 {
		pollInterval = config.DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		processors:   processors,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run blocks until ctx is done and every in-flight job has finished.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.processors) == 0 {
		w.logger.Warn("worker has no processors")
		<-ctx.Done()
		return nil
	}

	w.logger.Info("worker started", "slots", w.concurrency, "processors", len(w.processors))

	var wg conc.WaitGroup
	for slot := 0; slot < w.concurrency; slot++ {
		wg.Go(func() {
			w.loop(ctx, slot)
		})
	}
	wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		if w.RunOnce(ctx, slot) {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// RunOnce gives each processor one chance to claim a job, starting at offset so
// slots do not all hit the same queue first. It reports whether any job ran.
func (w *Worker) RunOnce(ctx context.Context, offset int) bool {
	hadJob := false
	for i := range w.processors {
		if ctx.Err() != nil {
			return hadJob
		}
		p := w.processors[(offset+i)%len(w.processors)]

		resp, err := p.ProcessNextJob(ctx, false)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("failed to process next job", "error", err)
			}
			continue
		}
		if resp.HadJob {
			hadJob = true
		}
		if resp.Error != nil {
			w.logger.Warn("job finished with error", "type", resp.Error.Type, "sub_type", resp.Error.SubType, "message", resp.Error.Message)
		}
	}
	return hadJob
}
