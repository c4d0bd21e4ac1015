package worker

import (
	"context"

	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/models"
	"github.com/bookyo/client/internal/pending"
)

// MaxRetries bounds how many times a failed pending record is retried
// before it is left in the queue for manual action.
const MaxRetries = 3

// ListingWorkerName is the unique-work name for the drain-all listing
// worker. Per-record work uses "<name>-<id>".
const ListingWorkerName = "pending_listing_worker"

// ListingSubmitter replays one queued listing record.
type ListingSubmitter interface {
	SubmitPending(ctx context.Context, rec models.PendingListing) (bool, error)
}

// ListingWorker drains the pending-listing queue in the background.
type ListingWorker struct {
	scheduler *Scheduler
	store     *pending.Store[models.PendingListing]
	submitter ListingSubmitter
}

func NewListingWorker(scheduler *Scheduler, store *pending.Store[models.PendingListing],
	submitter ListingSubmitter) *ListingWorker {
	return &ListingWorker{scheduler: scheduler, store: store, submitter: submitter}
}

// EnqueueAll schedules a drain of the whole queue. An already-scheduled
// drain is kept, so repeated connectivity flaps coalesce into one drain.
func (w *ListingWorker) EnqueueAll() {
	w.scheduler.EnqueueUnique(ListingWorkerName, PolicyKeep, w.processAll)
}

// EnqueueOne schedules a retry for one record, replacing any retry cycle
// already in flight for it so its backoff starts fresh.
func (w *ListingWorker) EnqueueOne(id string) {
	retries := 0
	w.scheduler.EnqueueUnique(ListingWorkerName+"-"+id, PolicyReplace,
		func(ctx context.Context) Result {
			return w.processOne(ctx, id, &retries)
		})
}

// processAll replays every queued record once, isolating failures: a
// record that fails is handed its own per-id retry cycle so it cannot
// block the rest of the queue.
func (w *ListingWorker) processAll(ctx context.Context) Result {
	recs := w.store.GetAll(ctx)
	if len(recs) == 0 {
		return ResultSuccess
	}

	logging.Info("Processing pending listings",
		map[string]interface{}{"count": len(recs)})

	for _, rec := range recs {
		if ctx.Err() != nil {
			return ResultRetry
		}

		ok, err := w.submitter.SubmitPending(ctx, rec)
		if ok {
			w.removeDone(ctx, rec.ID)
			continue
		}
		if err == nil {
			// Lost connectivity mid-drain: retry the whole batch once
			// the network gate reopens, without burning a retry budget.
			return ResultRetry
		}
		w.EnqueueOne(rec.ID)
	}
	return ResultSuccess
}

func (w *ListingWorker) processOne(ctx context.Context, id string, retries *int) Result {
	rec, ok := w.store.GetByID(ctx, id)
	if !ok {
		// Removed or hidden since scheduling; nothing to replay.
		return ResultSuccess
	}

	done, err := w.submitter.SubmitPending(ctx, rec)
	if done {
		w.removeDone(ctx, id)
		return ResultSuccess
	}
	if err == nil {
		return ResultRetry
	}
	if errors.Code(err) == errors.ErrValidation {
		logging.Warn("Pending listing is invalid, abandoning retries",
			map[string]interface{}{"id": id})
		return ResultFailure
	}
	if *retries >= MaxRetries {
		logging.Warn("Pending listing exhausted retries",
			map[string]interface{}{"id": id, "retries": *retries})
		return ResultFailure
	}
	*retries++
	return ResultRetry
}

func (w *ListingWorker) removeDone(ctx context.Context, id string) {
	if err := w.store.Remove(ctx, id); err != nil {
		logging.Error("Failed to remove completed pending listing", err,
			map[string]interface{}{"id": id})
	}
}
