package models

// ListingStatus represents the lifecycle state of a listing.
type ListingStatus string

const (
	ListingStatusAvailable   ListingStatus = "available"
	ListingStatusSold        ListingStatus = "sold"
	ListingStatusUnavailable ListingStatus = "unavailable"
)

// Listing is a for-sale offer of a book by a user.
// Photos holds object storage keys, uploaded before the listing is created.
type Listing struct {
	ID        UUID          `json:"id"`
	BookID    UUID          `json:"bookId"`
	UserID    UUID          `json:"userId"`
	Price     float64       `json:"price"`
	Status    ListingStatus `json:"status"`
	Photos    []string      `json:"photos"`
	CreatedAt string        `json:"createdAt,omitempty"`
	UpdatedAt string        `json:"updatedAt,omitempty"`
}
