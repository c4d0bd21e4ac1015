package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bookyo/client/internal/connectivity"
	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/kvstore"
	"github.com/bookyo/client/internal/models"
	"github.com/bookyo/client/internal/pending"
)

type fakePublishSubmitter struct {
	mu       sync.Mutex
	attempts map[string]int
	submit   func(rec models.PendingPublish, attempt int) (bool, error)
}

func (f *fakePublishSubmitter) SubmitPending(ctx context.Context, rec models.PendingPublish) (bool, error) {
	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[rec.ID]++
	attempt := f.attempts[rec.ID]
	f.mu.Unlock()

	if f.submit == nil {
		return true, nil
	}
	return f.submit(rec, attempt)
}

func (f *fakePublishSubmitter) attemptCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}

func newPublishStore(t *testing.T) *pending.Store[models.PendingPublish] {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	images, err := pending.NewImageCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageCache() error = %v", err)
	}
	return pending.NewPublishStore(kv, images)
}

func savePublish(t *testing.T, store *pending.Store[models.PendingPublish], title string) models.PendingPublish {
	t.Helper()
	src := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(src, []byte("jpeg"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	rec, err := store.Save(context.Background(),
		models.PendingPublish{Title: title, ISBN: "9780134190440", AuthorName: "Ann"},
		[]string{src})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return rec
}

func TestPublishEnqueueOneRemovesRecordOnSuccess(t *testing.T) {
	store := newPublishStore(t)
	rec := savePublish(t, store, "The Go Programming Language")

	s := newTestScheduler(t, connectivity.NewManual(true))
	submitter := &fakePublishSubmitter{}
	w := NewPublishWorker(s, store, submitter)

	w.EnqueueOne(rec.ID)
	waitFor(t, "record removed", func() bool {
		_, ok := store.GetByID(context.Background(), rec.ID)
		return !ok
	})

	if got := submitter.attemptCount(rec.ID); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestPublishEnqueueOneBoundedRetry(t *testing.T) {
	store := newPublishStore(t)
	rec := savePublish(t, store, "The Go Programming Language")

	s := newTestScheduler(t, connectivity.NewManual(true))
	submitter := &fakePublishSubmitter{
		submit: func(models.PendingPublish, int) (bool, error) {
			return false, errors.New(errors.ErrRemote, "create rejected")
		},
	}
	w := NewPublishWorker(s, store, submitter)

	w.EnqueueOne(rec.ID)
	waitFor(t, "retries exhausted", func() bool {
		return submitter.attemptCount(rec.ID) == MaxRetries+1 &&
			!s.Pending(PublishWorkerName+"-"+rec.ID)
	})

	if _, ok := store.GetByID(context.Background(), rec.ID); !ok {
		t.Error("exhausted record was removed from the store")
	}
}

func TestPublishProcessAllReplacesScheduledDrain(t *testing.T) {
	store := newPublishStore(t)
	savePublish(t, store, "The Go Programming Language")

	monitor := connectivity.NewManual(false)
	s := newTestScheduler(t, monitor)
	submitter := &fakePublishSubmitter{}
	w := NewPublishWorker(s, store, submitter)

	// Both drains gate on the network; the second replaces the first.
	w.EnqueueAll()
	w.EnqueueAll()
	if !s.Pending(PublishWorkerName) {
		t.Fatal("drain not scheduled")
	}

	monitor.Set(true)
	waitFor(t, "queue drained", func() bool {
		return len(store.GetAll(context.Background())) == 0
	})
}
