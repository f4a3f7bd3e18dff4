package models

import (
	"time"

	"github.com/google/uuid"
)

// Template is a shared, organization-agnostic catalog definition of one of
// the supported entity kinds. The engine treats templates as read-only; they
// are authored and versioned upstream. Stored in catalog_templates.
//
// Fields holds the full customizable field map for the type (including the
// name field); Name and Category are denormalized copies kept indexable for
// catalog search.
type Template struct {
	ID           uuid.UUID      `json:"id"`
	TemplateType string         `json:"template_type"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Fields       map[string]any `json:"fields"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
