package model

import (
	"time"

	"github.com/google/uuid"
)

// PushToken represents a device registered to receive push notifications.
// A token is unique per device installation; re-registering the same token
// updates metadata and never creates a duplicate row.
type PushToken struct {
	ID         uuid.UUID `json:"id"`
	Token      string    `json:"token"`       // opaque value issued by the platform push service
	DeviceType string    `json:"device_type"` // "android", "ios", "web", "desktop" or "unknown"
	IsAdmin    bool      `json:"is_admin"`    // eligible to receive administrative broadcasts
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DispatchResult aggregates the outcome of one notification fan-out.
// It is computed fresh per send and never persisted.
type DispatchResult struct {
	RecipientCount int  `json:"recipient_count"`
	SuccessCount   int  `json:"success_count"`
	FailureCount   int  `json:"failure_count"`
	Queued         bool `json:"queued"` // true when the gateway credential is absent and nothing was actually sent
}
