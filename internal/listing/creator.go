// Package listing implements the create-listing action: validation, the
// shared synchronous submit used by both the interactive path and the
// background retry worker, and the offline fallback.
package listing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bookyo/client/internal/analytics"
	"github.com/bookyo/client/internal/connectivity"
	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/models"
	"github.com/bookyo/client/internal/pending"
	"github.com/bookyo/client/internal/uuid"
)

// MaxImages bounds how many photos a listing carries.
const MaxImages = 5

// API is the slice of the data API the creator needs.
type API interface {
	GetBook(ctx context.Context, id string) (*models.Book, error)
	GetUser(ctx context.Context, email string) (*models.User, error)
	CreateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
}

// Uploader stores image files in the remote bucket.
type Uploader interface {
	UploadFile(ctx context.Context, key, path string) error
}

// Identity resolves the signed-in user's email.
type Identity interface {
	CurrentUserEmail(ctx context.Context) (string, error)
}

// Enqueuer schedules a retry worker for one pending record id.
type Enqueuer interface {
	EnqueueOne(id string)
}

// ValidationError is a field-specific input error, detected before any
// network or storage access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Input is the validated form state for a listing submission. Price stays
// a string until validation, matching the form field it comes from.
type Input struct {
	BookID      string
	Price       string
	Condition   int
	Description string
	ImagePaths  []string

	// IdempotencyKey, when set, is forwarded as the listing's client-
	// generated id so a crash-replay creates the same remote record.
	// Unset by default: remote creation is at-most-effectively-once.
	IdempotencyKey string
}

// Outcome reports how a submission concluded. A queued outcome is a
// supported result, not a degraded one.
type Outcome struct {
	Created   bool
	Queued    bool
	PendingID string
	Message   string
}

// Creator orchestrates listing creation.
type Creator struct {
	api       API
	uploads   Uploader
	identity  Identity
	store     *pending.Store[models.PendingListing]
	monitor   connectivity.Monitor
	queue     Enqueuer
	analytics analytics.Recorder
}

// NewCreator wires a Creator. The retry queue is attached separately
// because the worker that implements it needs the Creator first.
func NewCreator(api API, uploads Uploader, identity Identity,
	store *pending.Store[models.PendingListing], monitor connectivity.Monitor,
	rec analytics.Recorder) *Creator {
	if rec == nil {
		rec = analytics.Nop{}
	}
	return &Creator{
		api:       api,
		uploads:   uploads,
		identity:  identity,
		store:     store,
		monitor:   monitor,
		analytics: rec,
	}
}

// AttachQueue binds the retry enqueuer used by the offline path.
func (c *Creator) AttachQueue(q Enqueuer) {
	c.queue = q
}

// Store exposes the pending store for the pending-list UI.
func (c *Creator) Store() *pending.Store[models.PendingListing] {
	return c.store
}

// Validate checks the input without touching network or storage.
func (c *Creator) Validate(in Input) *ValidationError {
	if in.BookID == "" {
		return &ValidationError{Field: "bookId", Message: "Book is required"}
	}
	if in.Price == "" {
		return &ValidationError{Field: "price", Message: "Price is required"}
	}
	price, err := strconv.ParseFloat(in.Price, 64)
	if err != nil {
		return &ValidationError{Field: "price", Message: "Invalid price format"}
	}
	if price <= 0 {
		return &ValidationError{Field: "price", Message: "Price must be greater than zero"}
	}
	if len(in.ImagePaths) == 0 {
		return &ValidationError{Field: "images", Message: "At least one image is required"}
	}
	if len(in.ImagePaths) > MaxImages {
		return &ValidationError{Field: "images", Message: fmt.Sprintf("At most %d images are allowed", MaxImages)}
	}
	return nil
}

// Submit is the interactive path: offline goes straight to the queue, and
// a network-class failure during an online attempt degrades to
// queued-for-later instead of surfacing a hard error.
func (c *Creator) Submit(ctx context.Context, in Input) (*Outcome, error) {
	if verr := c.Validate(in); verr != nil {
		return nil, verr
	}

	if !c.monitor.IsConnected(ctx) {
		logging.Debug("No connectivity, queueing listing for later")
		return c.queueOffline(ctx, in)
	}

	ok, err := c.SubmitSync(ctx, in)
	if ok {
		c.analytics.RecordEvent("listing_created", map[string]string{
			"book_id":     in.BookID,
			"price":       in.Price,
			"image_count": strconv.Itoa(len(in.ImagePaths)),
		})
		return &Outcome{Created: true, Message: "Listing created successfully!"}, nil
	}

	if err == nil || errors.IsNetwork(err) {
		// Disconnected mid-flight or the request never reached the API.
		return c.queueOffline(ctx, in)
	}

	return nil, err
}

// SubmitSync is the shared synchronous submit: it re-verifies connectivity,
// uploads images before creating the record, and converts every failure
// into a clean (false, classified error) result. Disconnection yields
// (false, nil) so retry logic is never tripped by an ambiguous error.
func (c *Creator) SubmitSync(ctx context.Context, in Input) (bool, error) {
	if verr := c.Validate(in); verr != nil {
		return false, errors.Wrap(errors.ErrValidation, verr.Message, verr)
	}

	if !c.monitor.IsConnected(ctx) {
		logging.Debug("Connectivity lost before listing submit")
		return false, nil
	}

	start := time.Now()
	err := c.submit(ctx, in)
	if err != nil {
		c.analytics.TrackAPICall("createListing", false, time.Since(start),
			string(errors.Code(err)), err.Error())
		logging.Error("Failed to create listing", err,
			map[string]interface{}{"book_id": in.BookID})
		return false, err
	}

	c.analytics.TrackAPICall("createListing", true, time.Since(start), "", "")
	return true, nil
}

// SubmitPending replays a queued record through the same submit logic.
func (c *Creator) SubmitPending(ctx context.Context, rec models.PendingListing) (bool, error) {
	return c.SubmitSync(ctx, Input{
		BookID:      rec.BookID,
		Price:       strconv.FormatFloat(rec.Price, 'f', -1, 64),
		Condition:   rec.Condition,
		Description: rec.Description,
		ImagePaths:  rec.ImagePaths,
	})
}

func (c *Creator) submit(ctx context.Context, in Input) error {
	email, err := c.identity.CurrentUserEmail(ctx)
	if err != nil {
		return err
	}

	book, err := c.api.GetBook(ctx, in.BookID)
	if err != nil {
		return err
	}

	user, err := c.api.GetUser(ctx, email)
	if err != nil {
		return err
	}

	// Images must exist remotely before the record referencing them.
	photoKeys, err := c.uploadImages(ctx, in.ImagePaths)
	if err != nil {
		return err
	}

	price, _ := strconv.ParseFloat(in.Price, 64)

	listing := &models.Listing{
		BookID: book.ID,
		UserID: models.UUID(user.Email),
		Price:  price,
		Status: models.ListingStatusAvailable,
		Photos: photoKeys,
	}
	if in.IdempotencyKey != "" {
		listing.ID = models.UUID(in.IdempotencyKey)
	}

	if _, err := c.api.CreateListing(ctx, listing); err != nil {
		return err
	}

	logging.Info("Created listing",
		map[string]interface{}{"book_id": in.BookID, "photos": len(photoKeys)})

	c.notifyNewListing(ctx, book, price)
	return nil
}

func (c *Creator) uploadImages(ctx context.Context, paths []string) ([]string, error) {
	keys := make([]string, 0, len(paths))
	for _, path := range paths {
		key := "listing-" + uuid.New() + ".jpg"
		if err := c.uploads.UploadFile(ctx, "images/"+key, path); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// notifyNewListing creates a best-effort broadcast notification. Failure
// is logged and swallowed; it never fails the listing creation.
func (c *Creator) notifyNewListing(ctx context.Context, book *models.Book, price float64) {
	n := &models.Notification{
		Title:     "New Book Listing",
		Body:      fmt.Sprintf("%q is now available for $%.2f!", book.Title, price),
		Recipient: models.BroadcastRecipient,
		Read:      false,
		Type:      models.NotificationTypeNewBook,
	}
	if _, err := c.api.CreateNotification(ctx, n); err != nil {
		logging.Error("Failed to create listing notification", err,
			map[string]interface{}{"book_id": string(book.ID)})
	}
}

func (c *Creator) queueOffline(ctx context.Context, in Input) (*Outcome, error) {
	price, _ := strconv.ParseFloat(in.Price, 64)

	rec, err := c.store.Save(ctx, models.PendingListing{
		BookID:      in.BookID,
		Price:       price,
		Condition:   in.Condition,
		Description: in.Description,
	}, in.ImagePaths)
	if err != nil {
		return nil, err
	}

	if c.queue != nil {
		c.queue.EnqueueOne(rec.ID)
	}

	c.analytics.RecordEvent("listing_saved_offline", map[string]string{
		"book_id":     in.BookID,
		"image_count": strconv.Itoa(len(in.ImagePaths)),
	})

	return &Outcome{
		Queued:    true,
		PendingID: rec.ID,
		Message:   "Listing saved and will be created when internet is available",
	}, nil
}
