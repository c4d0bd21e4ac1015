package models

// Book is a catalog entry for a physical book that can be listed for sale.
// Thumbnail is an object storage key under the images/ namespace.
type Book struct {
	ID        UUID    `json:"id"`
	Title     string  `json:"title"`
	ISBN      string  `json:"isbn"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	AuthorID  UUID    `json:"authorId"`
	Author    *Author `json:"author,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}
