package models

// Author is resolved by name before creation so that repeated replays of the
// same publish action do not create duplicates.
type Author struct {
	ID        UUID   `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}
