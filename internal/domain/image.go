package domain

import "time"

// Image represents an image attached to a device.
// The bytes live on the filesystem; Path references them relative to the
// image storage root. Blurhash is a compact placeholder for clients.
type Image struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Path      string    `json:"path"`
	Blurhash  string    `json:"blurhash,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
