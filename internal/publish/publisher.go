// Package publish implements the publish-book action: catalog a new book
// with its author, either immediately or through the offline queue.
package publish

import (
	"context"
	"strings"
	"time"

	"github.com/bookyo/client/internal/analytics"
	"github.com/bookyo/client/internal/connectivity"
	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/models"
	"github.com/bookyo/client/internal/pending"
	"github.com/bookyo/client/internal/uuid"
)

// API is the slice of the data API the publisher needs.
type API interface {
	ListAuthorsByName(ctx context.Context, name string) ([]models.Author, error)
	CreateAuthor(ctx context.Context, author *models.Author) (*models.Author, error)
	CreateBook(ctx context.Context, book *models.Book) (*models.Book, error)
	CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
}

// Uploader stores image files in the remote bucket.
type Uploader interface {
	UploadFile(ctx context.Context, key, path string) error
}

// Enqueuer schedules a retry worker for one pending record id.
type Enqueuer interface {
	EnqueueOne(id string)
}

// ValidationError is a field-specific input error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Input is the validated form state for a publish submission.
type Input struct {
	Title      string
	ISBN       string
	AuthorName string
	ImagePath  string
}

// Outcome reports how a submission concluded.
type Outcome struct {
	Created   bool
	Queued    bool
	PendingID string
	Message   string
}

// Publisher orchestrates book publication.
type Publisher struct {
	api       API
	uploads   Uploader
	store     *pending.Store[models.PendingPublish]
	monitor   connectivity.Monitor
	queue     Enqueuer
	analytics analytics.Recorder
}

// NewPublisher wires a Publisher. The retry queue is attached separately.
func NewPublisher(api API, uploads Uploader,
	store *pending.Store[models.PendingPublish], monitor connectivity.Monitor,
	rec analytics.Recorder) *Publisher {
	if rec == nil {
		rec = analytics.Nop{}
	}
	return &Publisher{
		api:       api,
		uploads:   uploads,
		store:     store,
		monitor:   monitor,
		analytics: rec,
	}
}

// AttachQueue binds the retry enqueuer used by the offline path.
func (p *Publisher) AttachQueue(q Enqueuer) {
	p.queue = q
}

// Store exposes the pending store for the pending-list UI.
func (p *Publisher) Store() *pending.Store[models.PendingPublish] {
	return p.store
}

// Validate checks the input without touching network or storage.
func (p *Publisher) Validate(in Input) *ValidationError {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if strings.TrimSpace(in.AuthorName) == "" {
		return &ValidationError{Field: "author", Message: "Author is required"}
	}
	isbn := normalizeISBN(in.ISBN)
	if isbn == "" {
		return &ValidationError{Field: "isbn", Message: "ISBN is required"}
	}
	if len(isbn) != 10 && len(isbn) != 13 {
		return &ValidationError{Field: "isbn", Message: "ISBN must be 10 or 13 digits"}
	}
	if in.ImagePath == "" {
		return &ValidationError{Field: "image", Message: "Cover image is required"}
	}
	return nil
}

func normalizeISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(isbn))
}

// Submit is the interactive path: offline goes straight to the queue, and
// a network-class failure during an online attempt degrades to
// queued-for-later instead of surfacing a hard error.
func (p *Publisher) Submit(ctx context.Context, in Input) (*Outcome, error) {
	if verr := p.Validate(in); verr != nil {
		return nil, verr
	}

	if !p.monitor.IsConnected(ctx) {
		logging.Debug("No connectivity, queueing book for later")
		return p.queueOffline(ctx, in)
	}

	ok, err := p.SubmitSync(ctx, in)
	if ok {
		p.analytics.RecordEvent("book_published", map[string]string{
			"isbn": normalizeISBN(in.ISBN),
		})
		return &Outcome{Created: true, Message: "Book published successfully!"}, nil
	}

	if err == nil || errors.IsNetwork(err) {
		return p.queueOffline(ctx, in)
	}

	return nil, err
}

// SubmitSync is the shared synchronous submit used by both the interactive
// path and the retry worker. Disconnection yields (false, nil).
func (p *Publisher) SubmitSync(ctx context.Context, in Input) (bool, error) {
	if verr := p.Validate(in); verr != nil {
		return false, errors.Wrap(errors.ErrValidation, verr.Message, verr)
	}

	if !p.monitor.IsConnected(ctx) {
		logging.Debug("Connectivity lost before book submit")
		return false, nil
	}

	start := time.Now()
	err := p.submit(ctx, in)
	if err != nil {
		p.analytics.TrackAPICall("createBook", false, time.Since(start),
			string(errors.Code(err)), err.Error())
		logging.Error("Failed to publish book", err,
			map[string]interface{}{"isbn": normalizeISBN(in.ISBN)})
		return false, err
	}

	p.analytics.TrackAPICall("createBook", true, time.Since(start), "", "")
	return true, nil
}

// SubmitPending replays a queued record through the same submit logic.
func (p *Publisher) SubmitPending(ctx context.Context, rec models.PendingPublish) (bool, error) {
	return p.SubmitSync(ctx, Input{
		Title:      rec.Title,
		ISBN:       rec.ISBN,
		AuthorName: rec.AuthorName,
		ImagePath:  rec.ImagePath,
	})
}

func (p *Publisher) submit(ctx context.Context, in Input) error {
	author, err := p.resolveAuthor(ctx, strings.TrimSpace(in.AuthorName))
	if err != nil {
		return err
	}

	// The cover upload is tolerated as a failure: the book still gets
	// published, just without a thumbnail.
	thumbnail := p.uploadCover(ctx, in.ImagePath)

	book := &models.Book{
		Title:     strings.TrimSpace(in.Title),
		ISBN:      normalizeISBN(in.ISBN),
		Thumbnail: thumbnail,
		AuthorID:  author.ID,
	}

	created, err := p.api.CreateBook(ctx, book)
	if err != nil {
		return err
	}

	logging.Info("Published book", map[string]interface{}{
		"book_id": string(created.ID), "isbn": book.ISBN})

	p.notifyNewBook(ctx, created)
	return nil
}

// resolveAuthor reuses an existing author with the same name rather than
// creating a duplicate, so replays of a queued publish stay idempotent on
// the author side.
func (p *Publisher) resolveAuthor(ctx context.Context, name string) (*models.Author, error) {
	existing, err := p.api.ListAuthorsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Name == name {
			return &existing[i], nil
		}
	}
	return p.api.CreateAuthor(ctx, &models.Author{Name: name})
}

func (p *Publisher) uploadCover(ctx context.Context, path string) string {
	key := uuid.New() + ".jpg"
	if err := p.uploads.UploadFile(ctx, "images/"+key, path); err != nil {
		logging.Warn("Cover upload failed, publishing without thumbnail",
			map[string]interface{}{"error": err.Error()})
		return ""
	}
	return key
}

// notifyNewBook creates a best-effort broadcast notification.
func (p *Publisher) notifyNewBook(ctx context.Context, book *models.Book) {
	n := &models.Notification{
		Title:     "New Book Published",
		Body:      book.Title + " was just added to the catalog!",
		Recipient: models.BroadcastRecipient,
		Read:      false,
		Type:      models.NotificationTypeNewBook,
	}
	if _, err := p.api.CreateNotification(ctx, n); err != nil {
		logging.Error("Failed to create publish notification", err,
			map[string]interface{}{"book_id": string(book.ID)})
	}
}

func (p *Publisher) queueOffline(ctx context.Context, in Input) (*Outcome, error) {
	var paths []string
	if in.ImagePath != "" {
		paths = []string{in.ImagePath}
	}

	rec, err := p.store.Save(ctx, models.PendingPublish{
		Title:      strings.TrimSpace(in.Title),
		ISBN:       normalizeISBN(in.ISBN),
		AuthorName: strings.TrimSpace(in.AuthorName),
	}, paths)
	if err != nil {
		return nil, err
	}

	if p.queue != nil {
		p.queue.EnqueueOne(rec.ID)
	}

	p.analytics.RecordEvent("book_saved_offline", map[string]string{
		"isbn": normalizeISBN(in.ISBN),
	})

	return &Outcome{
		Queued:    true,
		PendingID: rec.ID,
		Message:   "Book saved and will be published when internet is available",
	}, nil
}
