package worker

import (
	"context"

	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/models"
	"github.com/bookyo/client/internal/pending"
)

// PublishWorkerName is the unique-work name for the drain-all publish
// worker. Per-record work uses "<name>-<id>".
const PublishWorkerName = "pending_publish_worker"

// PublishSubmitter replays one queued publish record.
type PublishSubmitter interface {
	SubmitPending(ctx context.Context, rec models.PendingPublish) (bool, error)
}

// PublishWorker drains the pending-publish queue in the background.
type PublishWorker struct {
	scheduler *Scheduler
	store     *pending.Store[models.PendingPublish]
	submitter PublishSubmitter
}

func NewPublishWorker(scheduler *Scheduler, store *pending.Store[models.PendingPublish],
	submitter PublishSubmitter) *PublishWorker {
	return &PublishWorker{scheduler: scheduler, store: store, submitter: submitter}
}

// EnqueueAll schedules a drain of the whole queue, replacing a drain
// already scheduled so the latest trigger wins.
func (w *PublishWorker) EnqueueAll() {
	w.scheduler.EnqueueUnique(PublishWorkerName, PolicyReplace, w.processAll)
}

// EnqueueOne schedules a retry for one record, replacing any retry cycle
// already in flight for it.
func (w *PublishWorker) EnqueueOne(id string) {
	retries := 0
	w.scheduler.EnqueueUnique(PublishWorkerName+"-"+id, PolicyReplace,
		func(ctx context.Context) Result {
			return w.processOne(ctx, id, &retries)
		})
}

func (w *PublishWorker) processAll(ctx context.Context) Result {
	recs := w.store.GetAll(ctx)
	if len(recs) == 0 {
		return ResultSuccess
	}

	logging.Info("Processing pending publishes",
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
			return ResultRetry
		}
		w.EnqueueOne(rec.ID)
	}
	return ResultSuccess
}

func (w *PublishWorker) processOne(ctx context.Context, id string, retries *int) Result {
	rec, ok := w.store.GetByID(ctx, id)
	if !ok {
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
		logging.Warn("Pending publish is invalid, abandoning retries",
			map[string]interface{}{"id": id})
		return ResultFailure
	}
	if *retries >= MaxRetries {
		logging.Warn("Pending publish exhausted retries",
			map[string]interface{}{"id": id, "retries": *retries})
		return ResultFailure
	}
	*retries++
	return ResultRetry
}

func (w *PublishWorker) removeDone(ctx context.Context, id string) {
	if err := w.store.Remove(ctx, id); err != nil {
		logging.Error("Failed to remove completed pending publish", err,
			map[string]interface{}{"id": id})
	}
}
