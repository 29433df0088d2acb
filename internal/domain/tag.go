package domain

import "time"

// Tag represents a shared label for categorizing devices.
// Tags are global vocabulary shared across all users; there is no ownership.
// Name is the exact, case-sensitive form supplied at creation.
type Tag struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DeviceCount int       `json:"device_count,omitempty"` // Count of the caller's devices carrying this tag
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
