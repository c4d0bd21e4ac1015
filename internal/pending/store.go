package pending

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/kvstore"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/models"
	"github.com/bookyo/client/internal/uuid"
)

// Storage keys, one serialized record list per action kind.
const (
	ListingKey = "pending_listing_requests"
	PublishKey = "pending_publish_requests"
)

// Record is a pending action record type. WithStorage stamps the identity
// and cached image paths the store assigns at save time.
type Record[T any] interface {
	RecordID() string
	RecordTimestamp() int64
	RecordImagePaths() []string
	WithStorage(id string, timestamp int64, imagePaths []string) T
}

// Store persists one kind of pending record as a single serialized list
// under one storage key. Writes always rewrite the full list; reads always
// re-filter for image existence, because the operating environment may
// reclaim cache storage outside the app's control.
type Store[T Record[T]] struct {
	kv     *kvstore.Store
	key    string
	images *ImageCache
}

// NewStore creates a store over the given storage key.
func NewStore[T Record[T]](kv *kvstore.Store, key string, images *ImageCache) *Store[T] {
	return &Store[T]{kv: kv, key: key, images: images}
}

// NewListingStore creates the pending-listing store.
func NewListingStore(kv *kvstore.Store, images *ImageCache) *Store[models.PendingListing] {
	return NewStore[models.PendingListing](kv, ListingKey, images)
}

// NewPublishStore creates the pending-publish store.
func NewPublishStore(kv *kvstore.Store, images *ImageCache) *Store[models.PendingPublish] {
	return NewStore[models.PendingPublish](kv, PublishKey, images)
}

// Save copies each image into the local cache, stamps the record with a
// fresh id and timestamp, appends it to the persisted list and returns it.
// An image copy failure is a hard failure of the offline path: nothing is
// persisted and already-made copies are cleaned up.
func (s *Store[T]) Save(ctx context.Context, rec T, imageSources []string) (T, error) {
	var zero T

	cached := make([]string, 0, len(imageSources))
	for _, src := range imageSources {
		path, err := s.images.Add(src)
		if err != nil {
			for _, p := range cached {
				s.images.Remove(p)
			}
			return zero, errors.Wrap(errors.ErrImageCacheFailed, "failed to cache image", err)
		}
		cached = append(cached, path)
	}

	rec = rec.WithStorage(uuid.New(), time.Now().UnixMilli(), cached)

	list := s.loadRaw(ctx)
	list = append(list, rec)

	if err := s.persist(ctx, list); err != nil {
		for _, p := range cached {
			s.images.Remove(p)
		}
		return zero, err
	}

	logging.Debug("Saved pending record",
		map[string]interface{}{"key": s.key, "id": rec.RecordID()})
	return rec, nil
}

// GetAll returns the persisted records whose image files all still exist,
// sorted newest-first. Records with missing images stay in the underlying
// storage until explicitly removed; they are only hidden from read paths.
func (s *Store[T]) GetAll(ctx context.Context) []T {
	return filterAndSort(s.loadRaw(ctx))
}

// GetByID returns the record with the given id, or false.
func (s *Store[T]) GetByID(ctx context.Context, id string) (T, bool) {
	for _, rec := range s.GetAll(ctx) {
		if rec.RecordID() == id {
			return rec, true
		}
	}
	var zero T
	return zero, false
}

// Remove deletes the record's cached image files, removes it from the list
// and persists the reduced list. Removing an unknown id is a no-op.
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	list := s.loadRaw(ctx)

	idx := -1
	for i, rec := range list {
		if rec.RecordID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	for _, path := range list[idx].RecordImagePaths() {
		if err := s.images.Remove(path); err != nil {
			logging.Error("Failed to delete cached image", err,
				map[string]interface{}{"path": path})
		}
	}

	list = append(list[:idx], list[idx+1:]...)
	if err := s.persist(ctx, list); err != nil {
		return err
	}

	logging.Debug("Removed pending record",
		map[string]interface{}{"key": s.key, "id": id})
	return nil
}

// Clear removes every record and its cached images.
func (s *Store[T]) Clear(ctx context.Context) error {
	for _, rec := range s.loadRaw(ctx) {
		for _, path := range rec.RecordImagePaths() {
			s.images.Remove(path)
		}
	}
	return s.persist(ctx, nil)
}

// Observe emits the current filtered list immediately, then again whenever
// the underlying storage key changes. The channel is closed when ctx is
// cancelled.
func (s *Store[T]) Observe(ctx context.Context) <-chan []T {
	out := make(chan []T, 1)
	changes := s.kv.Watch(ctx, s.key)

	out <- s.GetAll(ctx)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				select {
				case out <- s.GetAll(ctx):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// loadRaw reads the persisted list without filtering. Any read or
// deserialize error is treated as "no pending records" and logged; it must
// never crash the caller.
func (s *Store[T]) loadRaw(ctx context.Context) []T {
	value, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		logging.ErrorWithCode("Failed to read pending records",
			string(errors.ErrQueueReadFailed), err,
			map[string]interface{}{"key": s.key})
		return nil
	}
	if !ok || value == "" {
		return nil
	}

	var list []T
	if err := json.Unmarshal([]byte(value), &list); err != nil {
		logging.ErrorWithCode("Failed to decode pending records",
			string(errors.ErrQueueReadFailed), err,
			map[string]interface{}{"key": s.key})
		return nil
	}
	return list
}

// persist rewrites the full list. Write errors propagate to the caller.
func (s *Store[T]) persist(ctx context.Context, list []T) error {
	if list == nil {
		list = []T{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(errors.ErrQueueWriteFailed, "failed to encode pending records", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return errors.Wrap(errors.ErrQueueWriteFailed, "failed to persist pending records", err)
	}
	return nil
}

func filterAndSort[T Record[T]](list []T) []T {
	filtered := make([]T, 0, len(list))
	for _, rec := range list {
		usable := true
		for _, path := range rec.RecordImagePaths() {
			if !fileExists(path) {
				usable = false
				break
			}
		}
		if usable {
			filtered = append(filtered, rec)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].RecordTimestamp() > filtered[j].RecordTimestamp()
	})
	return filtered
}
