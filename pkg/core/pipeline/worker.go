package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thesisengine/pkg/core/filings"
	"thesisengine/pkg/models"
)

const (
	pollInterval = 15 * time.Second

	// outcomeTimeout bounds the detached UPDATE that records a job's
	// outcome after its run context is gone.
	outcomeTimeout = 30 * time.Second

	// defaultReclaimGrace is the stall window when no run timeout is
	// configured.
	defaultReclaimGrace = 30 * time.Minute
)

// JobStore is the slice of the store the worker drives the queue through.
type JobStore interface {
	ClaimDueJobs(ctx context.Context, limit int) ([]models.IngestionJob, error)
	MarkJobSucceeded(ctx context.Context, id uuid.UUID) error
	MarkJobFailed(ctx context.Context, id uuid.UUID, cause string, retryDelay time.Duration) error
	ReclaimStalledJobs(ctx context.Context, cutoff time.Time) (int, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

// FilingProcessor runs the ingestion pipeline for one claimed filing.
type FilingProcessor interface {
	ProcessFiling(ctx context.Context, company *models.Company, filing filings.Filing) (*RunSummary, error)
}

// Worker drains the durable job queue. Claims are handed through
// FOR UPDATE SKIP LOCKED, so any number of workers can share the table.
type Worker struct {
	store      JobStore
	proc       FilingProcessor
	slots      int
	retryDelay time.Duration
	runTimeout time.Duration
	log        *zap.Logger
}

func NewWorker(st JobStore, proc FilingProcessor, slots int, retryDelay, runTimeout time.Duration, log *zap.Logger) *Worker {
	if slots < 1 {
		slots = 1
	}
	return &Worker{
		store:      st,
		proc:       proc,
		slots:      slots,
		retryDelay: retryDelay,
		runTimeout: runTimeout,
		log:        log,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain claims and processes due jobs until the queue is momentarily empty.
// Each pass first requeues running rows whose worker died before recording
// an outcome.
func (w *Worker) drain(ctx context.Context) {
	if n, err := w.store.ReclaimStalledJobs(ctx, w.staleCutoff(time.Now())); err != nil {
		w.log.Error("reclaim stalled jobs failed", zap.Error(err))
	} else if n > 0 {
		w.log.Warn("reclaimed stalled jobs", zap.Int("count", n))
	}

	for {
		jobs, err := w.store.ClaimDueJobs(ctx, w.slots)
		if err != nil {
			w.log.Error("claim jobs failed", zap.Error(err))
			return
		}
		if len(jobs) == 0 {
			return
		}

		var wg sync.WaitGroup
		for i := range jobs {
			job := jobs[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.process(ctx, job)
			}()
		}
		wg.Wait()

		if ctx.Err() != nil {
			return
		}
	}
}

// staleCutoff is the updated_at horizon behind which a running row cannot
// still be owned by a live worker.
func (w *Worker) staleCutoff(now time.Time) time.Time {
	grace := defaultReclaimGrace
	if w.runTimeout > 0 {
		grace = w.runTimeout + pollInterval
	}
	return now.Add(-grace)
}

// process runs one job inside its wall-clock budget and records the outcome.
// The outcome UPDATE runs on a detached context so a cancelled poll loop
// still leaves the row in a terminal or retryable state instead of stranding
// it as running.
func (w *Worker) process(ctx context.Context, job models.IngestionJob) {
	log := w.log.With(zap.String("job", job.ID.String()), zap.Int("attempt", job.Attempts))

	runCtx, cancel := runDeadline(ctx, w.runTimeout)
	defer cancel()

	err := w.runJob(runCtx, job)

	markCtx, markCancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeTimeout)
	defer markCancel()

	if err == nil {
		if err := w.store.MarkJobSucceeded(markCtx, job.ID); err != nil {
			log.Error("mark job succeeded failed", zap.Error(err))
		}
		return
	}

	if job.Attempts >= job.MaxAttempts {
		log.Error("job permanently failed", zap.Error(err))
	} else {
		log.Warn("job failed, will retry", zap.Error(err), zap.Duration("delay", w.retryDelay))
	}
	if markErr := w.store.MarkJobFailed(markCtx, job.ID, err.Error(), w.retryDelay); markErr != nil {
		log.Error("mark job failed failed", zap.Error(markErr))
	}
}

func (w *Worker) runJob(ctx context.Context, job models.IngestionJob) error {
	var filing filings.Filing
	if err := json.Unmarshal(job.Filing, &filing); err != nil {
		return err
	}

	company, err := w.store.GetCompany(ctx, job.CompanyID)
	if err != nil {
		return err
	}

	_, err = w.proc.ProcessFiling(ctx, company, filing)
	return err
}
