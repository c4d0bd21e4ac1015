package models

// PendingListing is a locally-queued listing creation that could not be
// applied remotely yet. ID doubles as the idempotency/dedup key and the
// unique-work key for the retry worker. ImagePaths reference copies owned
// by the pending image cache, made at save time so the original picker
// source does not need to stay valid.
type PendingListing struct {
	ID          string   `json:"id"`
	BookID      string   `json:"bookId"`
	Price       float64  `json:"price"`
	Condition   int      `json:"condition,omitempty"`
	Description string   `json:"description,omitempty"`
	ImagePaths  []string `json:"imagePaths"`
	Timestamp   int64    `json:"timestamp"`
}

func (p PendingListing) RecordID() string { return p.ID }

func (p PendingListing) RecordTimestamp() int64 { return p.Timestamp }

func (p PendingListing) RecordImagePaths() []string { return p.ImagePaths }

// WithStorage returns a copy stamped with the store-assigned identity and
// cached image paths.
func (p PendingListing) WithStorage(id string, timestamp int64, imagePaths []string) PendingListing {
	p.ID = id
	p.Timestamp = timestamp
	p.ImagePaths = imagePaths
	return p
}

// PendingPublish is a locally-queued book publish. The cover image is
// optional; when present, ImagePath references the cache copy.
type PendingPublish struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ISBN       string `json:"isbn"`
	AuthorName string `json:"authorName"`
	ImagePath  string `json:"imagePath,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

func (p PendingPublish) RecordID() string { return p.ID }

func (p PendingPublish) RecordTimestamp() int64 { return p.Timestamp }

func (p PendingPublish) RecordImagePaths() []string {
	if p.ImagePath == "" {
		return nil
	}
	return []string{p.ImagePath}
}

// WithStorage returns a copy stamped with the store-assigned identity and
// cached image path.
func (p PendingPublish) WithStorage(id string, timestamp int64, imagePaths []string) PendingPublish {
	p.ID = id
	p.Timestamp = timestamp
	if len(imagePaths) > 0 {
		p.ImagePath = imagePaths[0]
	} else {
		p.ImagePath = ""
	}
	return p
}
