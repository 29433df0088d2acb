// Package domain defines the core entities of the device catalog.
package domain

import "time"

// Timestamps provides common fields for entities that track their lifecycle.
// Embedded in any domain type that is persisted.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
}

// Touch updates the UpdatedAt timestamp to the current time.
// Call this whenever the underlying entity changes.
func (t *Timestamps) Touch() {
	t.UpdatedAt = time.Now()
}

// InitTimestamps assigns the entity ID and sets both CreatedAt and
// UpdatedAt to now. Call this when creating a new entity.
func (t *Timestamps) InitTimestamps(id string) {
	now := time.Now()
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
}
