package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"edulearn-backend/internal/logger"
)

// blockingProcessor holds every run until release is closed.
type blockingProcessor struct {
	mu      sync.Mutex
	started chan uuid.UUID
	release chan struct{}
	runs    int
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{started: make(chan uuid.UUID, 10), release: make(chan struct{})}
}

func (p *blockingProcessor) Run(ctx context.Context, id uuid.UUID) error {
	p.mu.Lock()
	p.runs++
	p.mu.Unlock()
	p.started <- id
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitStarted(t *testing.T, p *blockingProcessor) uuid.UUID {
	t.Helper()
	select {
	case id := <-p.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not start")
		return uuid.Nil
	}
}

func TestRunner_RejectsSecondRunForSameDocument(t *testing.T) {
	p := newBlockingProcessor()
	r := NewRunner(p, logger.Nop())
	id := uuid.New()

	if err := r.Submit(id, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitStarted(t, p)

	prepared := false
	err := r.Submit(id, func() error { prepared = true; return nil })
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if prepared {
		t.Fatalf("prepare must not run for a rejected submission")
	}
	if !r.IsActive(id) {
		t.Fatalf("expected document to be active")
	}

	close(p.release)
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if r.IsActive(id) {
		t.Fatalf("expected document to be released")
	}
}

func TestRunner_DifferentDocumentsRunConcurrently(t *testing.T) {
	p := newBlockingProcessor()
	r := NewRunner(p, logger.Nop())

	for i := 0; i < 3; i++ {
		if err := r.Submit(uuid.New(), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		waitStarted(t, p)
	}

	close(p.release)
	r.Shutdown(context.Background())
	if p.runs != 3 {
		t.Fatalf("expected 3 runs, got %d", p.runs)
	}
}

func TestRunner_PrepareFailureReleasesDocument(t *testing.T) {
	p := newBlockingProcessor()
	r := NewRunner(p, logger.Nop())
	id := uuid.New()

	boom := errors.New("reset failed")
	if err := r.Submit(id, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected prepare error, got %v", err)
	}
	if r.IsActive(id) {
		t.Fatalf("expected reservation to be released")
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if p.runs != 0 {
		t.Fatalf("expected no runs, got %d", p.runs)
	}
}

func TestRunner_ShutdownDeadlineCancelsRuns(t *testing.T) {
	p := newBlockingProcessor()
	r := NewRunner(p, logger.Nop())

	r.Submit(uuid.New(), nil)
	waitStarted(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if err := r.Submit(uuid.New(), nil); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown after shutdown, got %v", err)
	}
}
