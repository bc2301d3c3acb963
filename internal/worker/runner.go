package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"edulearn-backend/internal/logger"
)

var (
	// ErrAlreadyRunning is returned when the document already has an active run
	// in this process.
	ErrAlreadyRunning = errors.New("document is already being processed")
	ErrShuttingDown   = errors.New("runner is shutting down")
)

// Processor runs the enrichment pipeline for one document.
type Processor interface {
	Run(ctx context.Context, documentID uuid.UUID) error
}

// Runner launches one detached goroutine per document and allows at most one
// active run per document id. The guard is local to this process.
type Runner struct {
	processor Processor
	log       *logger.Logger

	mu       sync.Mutex
	active   map[uuid.UUID]struct{}
	stopping bool
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(processor Processor, log *logger.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		processor: processor,
		log:       log,
		active:    make(map[uuid.UUID]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit reserves the document, runs prepare while holding the reservation and
// then starts the pipeline in the background. prepare may be nil. When prepare
// fails the reservation is released and nothing is started.
func (r *Runner) Submit(documentID uuid.UUID, prepare func() error) error {
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return ErrShuttingDown
	}
	if _, busy := r.active[documentID]; busy {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.active[documentID] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	if prepare != nil {
		if err := prepare(); err != nil {
			r.release(documentID)
			return err
		}
	}

	go func() {
		defer r.release(documentID)

		start := time.Now()
		if err := r.processor.Run(r.ctx, documentID); err != nil {
			r.log.Warn("document run finished with error", "document_id", documentID, "duration", time.Since(start), "error", err)
			return
		}
		r.log.Info("document run finished", "document_id", documentID, "duration", time.Since(start))
	}()
	return nil
}

func (r *Runner) release(documentID uuid.UUID) {
	r.mu.Lock()
	delete(r.active, documentID)
	r.mu.Unlock()
	r.wg.Done()
}

// IsActive reports whether the document has a run in progress.
func (r *Runner) IsActive(documentID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[documentID]
	return ok
}

// Shutdown stops accepting work and waits for active runs. If ctx expires
// first, the runs are cancelled and ctx.Err() is returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopping = true
	pending := len(r.active)
	r.mu.Unlock()

	if pending > 0 {
		r.log.Info("waiting for active document runs", "count", pending)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
