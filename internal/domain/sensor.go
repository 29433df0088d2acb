package domain

import "time"

// Sensor represents a sensor capability that devices can declare.
// Like tags, sensors form a global shared vocabulary with no ownership.
type Sensor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DeviceCount int       `json:"device_count,omitempty"` // Count of the caller's devices carrying this sensor
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
