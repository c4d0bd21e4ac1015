package models

// Wishlist is a user's saved-books collection.
type Wishlist struct {
	ID        UUID   `json:"id"`
	UserID    UUID   `json:"userId"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// BookWishlist is a membership row linking a book to a wishlist.
type BookWishlist struct {
	ID         UUID   `json:"id"`
	BookID     UUID   `json:"bookId"`
	WishlistID UUID   `json:"listId"`
	CreatedAt  string `json:"createdAt,omitempty"`
}
