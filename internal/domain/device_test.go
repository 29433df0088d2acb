package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDevice_HasTag(t *testing.T) {
	device := &Device{
		Tags: []Tag{
			{ID: "tag-1", Name: "outdoor"},
			{ID: "tag-2", Name: "solar"},
		},
	}

	assert.True(t, device.HasTag("outdoor"))
	assert.True(t, device.HasTag("solar"))
	assert.False(t, device.HasTag("indoor"))
	assert.False(t, device.HasTag("Outdoor"), "tag names are case sensitive")
}

func TestDevice_HasSensor(t *testing.T) {
	device := &Device{
		Sensors: []Sensor{
			{ID: "sns-1", Name: "temperature"},
		},
	}

	assert.True(t, device.HasSensor("temperature"))
	assert.False(t, device.HasSensor("humidity"))
}

func TestTimestamps_InitAndTouch(t *testing.T) {
	var ts Timestamps
	ts.InitTimestamps("dev-abc123")

	assert.Equal(t, "dev-abc123", ts.ID)
	assert.False(t, ts.CreatedAt.IsZero())
	assert.Equal(t, ts.CreatedAt, ts.UpdatedAt)

	before := ts.UpdatedAt
	time.Sleep(time.Millisecond)
	ts.Touch()
	assert.True(t, ts.UpdatedAt.After(before))
	assert.Equal(t, before, ts.CreatedAt, "Touch must not move CreatedAt")
}

func TestUser_Name(t *testing.T) {
	tests := []struct {
		name     string
		user     User
		expected string
	}{
		{"display name wins", User{DisplayName: "Ada", Email: "ada@example.com"}, "Ada"},
		{"falls back to email local part", User{Email: "ada@example.com"}, "ada"},
		{"malformed email returned as-is", User{Email: "nobody"}, "nobody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.user.Name())
		})
	}
}

func TestSession_IsExpired(t *testing.T) {
	expired := &Session{ExpiresAt: time.Now().Add(-time.Minute)}
	active := &Session{ExpiresAt: time.Now().Add(time.Minute)}

	assert.True(t, expired.IsExpired())
	assert.False(t, active.IsExpired())
}
