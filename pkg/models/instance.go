package models

import (
	"time"

	"github.com/google/uuid"
)

// Instance is an organization's customizable copy of a catalog template.
// Fields is the full snapshot for the type: every eligible field carries
// either the template's value or the organization's override. Stored in
// org_instances.
//
// At most one active instance exists per (organization, template, type);
// a partial unique index enforces this under concurrent imports.
type Instance struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	TemplateID     uuid.UUID      `json:"template_id"`
	TemplateType   string         `json:"template_type"`
	Fields         map[string]any `json:"fields"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
