package domain

import (
	"errors"
	"time"
)

// ErrEmptyDeviceID is returned when a device identifier is empty.
var ErrEmptyDeviceID = errors.New("device ID cannot be empty")

// DeviceUser is the anonymous owner of a device's scan list. It is created
// on first contact, touched on every session, and never deleted explicitly;
// deleting a scan decrements its scan count.
type DeviceUser struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ScanCount  int       `json:"scan_count"`
}

// NewDeviceUser creates a DeviceUser for the given opaque device identifier.
func NewDeviceUser(id string) (*DeviceUser, error) {
	now := time.Now().UTC()
	user := &DeviceUser{
		ID:         id,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the DeviceUser has valid data.
func (u *DeviceUser) Validate() error {
	if u.ID == "" {
		return ErrEmptyDeviceID
	}

	if u.ScanCount < 0 {
		return ErrNegativeCounter
	}

	return nil
}

// Touch updates the last-seen timestamp.
func (u *DeviceUser) Touch() {
	u.LastSeenAt = time.Now().UTC()
}
