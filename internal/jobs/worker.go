package jobs

import (
	"context"
	"log"
	"time"
)

// BatchProcessor handles one batch of queued work per call and reports how many items it handled
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// Worker polls a BatchProcessor until stopped. A batch that handled work is
// followed immediately by another; an empty batch waits for the next tick or a wake-up.
type Worker struct {
	name         string
	processor    BatchProcessor
	pollInterval time.Duration
	wakeChan     chan struct{}
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, processor BatchProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		wakeChan:     make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the worker's polling loop and blocks until the context is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s worker started with poll interval: %v", w.name, w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
		case <-w.wakeChan:
		}

		w.drain(ctx)
	}
}

// Wake asks the worker to poll now instead of waiting for the next tick.
// It never blocks.
func (w *Worker) Wake() {
	select {
	case w.wakeChan <- struct{}{}:
	default:
	}
}

// Stop gracefully stops the worker, waiting for the batch in flight.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("%s worker shutdown complete", w.name)
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		default:
		}

		handled, err := w.processor.ProcessBatch(ctx)
		if err != nil {
			log.Printf("%s worker: error processing batch: %v", w.name, err)
			return
		}
		if handled == 0 {
			return
		}
	}
}
