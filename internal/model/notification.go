package model

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is a push registration for a user's device.
type DeviceToken struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Platform  string    `json:"platform" db:"platform"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" binding:"required,max=4096"`
	Platform string `json:"platform" binding:"required,oneof=ios android web"`
}
