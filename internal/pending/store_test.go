package pending

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bookyo/client/internal/kvstore"
	"github.com/bookyo/client/internal/models"
)

func newTestStore(t *testing.T) (*Store[models.PendingListing], *kvstore.Store) {
	t.Helper()

	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	images, err := NewImageCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageCache() error = %v", err)
	}

	return NewListingStore(kv, images), kv
}

func writeSourceImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestSaveAssignsIdentityAndCopiesImages(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	src := writeSourceImage(t)

	rec, err := store.Save(ctx, models.PendingListing{BookID: "book-1", Price: 12.50}, []string{src})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if rec.ID == "" {
		t.Error("Save() did not assign an id")
	}
	if rec.Timestamp == 0 {
		t.Error("Save() did not assign a timestamp")
	}
	if len(rec.ImagePaths) != 1 {
		t.Fatalf("Save() cached %d images, want 1", len(rec.ImagePaths))
	}
	if rec.ImagePaths[0] == src {
		t.Error("Save() stored the source path instead of a cache copy")
	}
	if _, err := os.Stat(rec.ImagePaths[0]); err != nil {
		t.Errorf("cached image missing: %v", err)
	}
}

func TestSaveFailsWhenSourceImageMissing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, models.PendingListing{BookID: "book-1", Price: 5},
		[]string{filepath.Join(t.TempDir(), "does-not-exist.jpg")})
	if err == nil {
		t.Fatal("Save() with missing source image succeeded, want error")
	}
	if got := store.GetAll(ctx); len(got) != 0 {
		t.Errorf("GetAll() after failed save = %d records, want 0", len(got))
	}
}

func TestGetAllSortsNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, models.PendingListing{BookID: "older", Price: 1},
		[]string{writeSourceImage(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := store.Save(ctx, models.PendingListing{BookID: "newer", Price: 2},
		[]string{writeSourceImage(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := store.GetAll(ctx)
	if len(got) != 2 {
		t.Fatalf("GetAll() = %d records, want 2", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Errorf("GetAll() order = [%s %s], want newest first [%s %s]",
			got[0].BookID, got[1].BookID, second.BookID, first.BookID)
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	dataDir := t.TempDir()
	cacheDir := t.TempDir()
	ctx := context.Background()

	kv, err := kvstore.Open(dataDir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	images, err := NewImageCache(cacheDir)
	if err != nil {
		t.Fatalf("NewImageCache() error = %v", err)
	}

	store := NewListingStore(kv, images)
	saved, err := store.Save(ctx, models.PendingListing{BookID: "book-1", Price: 9.99},
		[]string{writeSourceImage(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	kv2, err := kvstore.Open(dataDir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer kv2.Close()

	store2 := NewListingStore(kv2, images)
	got := store2.GetAll(ctx)
	if len(got) != 1 {
		t.Fatalf("GetAll() after reopen = %d records, want 1", len(got))
	}
	if got[0].ID != saved.ID || got[0].BookID != "book-1" || got[0].Price != 9.99 {
		t.Errorf("GetAll() after reopen = %+v, want the saved record", got[0])
	}
}

func TestMissingImageHidesRecordButKeepsIt(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Save(ctx, models.PendingListing{BookID: "book-1", Price: 3},
		[]string{writeSourceImage(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Simulate the platform reclaiming cache storage.
	if err := os.Remove(rec.ImagePaths[0]); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if got := store.GetAll(ctx); len(got) != 0 {
		t.Errorf("GetAll() with missing image = %d records, want 0", len(got))
	}
	if _, ok := store.GetByID(ctx, rec.ID); ok {
		t.Error("GetByID() returned a record whose image is missing")
	}

	// The record stays in storage until explicitly removed.
	raw, ok, err := kv.Get(ctx, ListingKey)
	if err != nil || !ok {
		t.Fatalf("Get(%q) = %v, %v", ListingKey, ok, err)
	}
	if !strings.Contains(raw, rec.ID) {
		t.Error("hidden record was dropped from storage")
	}
}

func TestRemoveDeletesRecordAndImages(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Save(ctx, models.PendingListing{BookID: "book-1", Price: 3},
		[]string{writeSourceImage(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Remove(ctx, rec.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if got := store.GetAll(ctx); len(got) != 0 {
		t.Errorf("GetAll() after remove = %d records, want 0", len(got))
	}
	if _, err := os.Stat(rec.ImagePaths[0]); !os.IsNotExist(err) {
		t.Errorf("cached image still exists after remove: %v", err)
	}
}

func TestRemoveUnknownIDIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Remove(context.Background(), "no-such-id"); err != nil {
		t.Errorf("Remove(unknown) error = %v, want nil", err)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Save(ctx, models.PendingListing{BookID: "b", Price: 1},
			[]string{writeSourceImage(t)}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := store.GetAll(ctx); len(got) != 0 {
		t.Errorf("GetAll() after clear = %d records, want 0", len(got))
	}
}

func TestObserveEmitsOnChange(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := store.Observe(ctx)

	select {
	case got := <-updates:
		if len(got) != 0 {
			t.Fatalf("initial emission = %d records, want 0", len(got))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial emission")
	}

	if _, err := store.Save(ctx, models.PendingListing{BookID: "book-1", Price: 1},
		[]string{writeSourceImage(t)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	select {
	case got := <-updates:
		if len(got) != 1 {
			t.Fatalf("emission after save = %d records, want 1", len(got))
		}
	case <-time.After(time.Second):
		t.Fatal("no emission after save")
	}
}

func TestPublishStoreRoundTrip(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer kv.Close()
	images, err := NewImageCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageCache() error = %v", err)
	}

	store := NewPublishStore(kv, images)
	ctx := context.Background()

	rec, err := store.Save(ctx, models.PendingPublish{
		Title: "The Go Programming Language", ISBN: "9780134190440", AuthorName: "Donovan",
	}, []string{writeSourceImage(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if rec.ImagePath == "" {
		t.Error("Save() did not stamp the cached cover path")
	}

	got, ok := store.GetByID(ctx, rec.ID)
	if !ok {
		t.Fatal("GetByID() did not find the saved record")
	}
	if got.ISBN != "9780134190440" || got.AuthorName != "Donovan" {
		t.Errorf("GetByID() = %+v, want the saved record", got)
	}
}
