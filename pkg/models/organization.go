package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant of the platform. Stored in organizations.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
