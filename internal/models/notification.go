package models

// NotificationType classifies a notification for rendering.
type NotificationType string

const (
	NotificationTypeNewBook      NotificationType = "NEW_BOOK"
	NotificationTypeBookSold     NotificationType = "BOOK_SOLD"
	NotificationTypeWishlistSale NotificationType = "WISHLIST_SALE"
)

// BroadcastRecipient addresses a notification to every user.
const BroadcastRecipient = "*"

// Notification is an in-app message addressed to a user id or to "*".
type Notification struct {
	ID        UUID             `json:"id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Recipient string           `json:"recipient"`
	Read      bool             `json:"read"`
	Type      NotificationType `json:"type,omitempty"`
	CreatedAt string           `json:"createdAt,omitempty"`
	UpdatedAt string           `json:"updatedAt,omitempty"`
}

// For reports whether the notification addresses the given user,
// either directly or via broadcast.
func (n *Notification) For(userID string) bool {
	return n.Recipient == userID || n.Recipient == BroadcastRecipient
}
