package models

import (
	"time"

	"github.com/google/uuid"
)

// Inheritance classification values
const (
	InheritanceFull     = "full"     // No field overridden; instance tracks the template
	InheritancePartial  = "partial"  // Some but not all eligible fields overridden
	InheritanceOverride = "override" // All eligible fields overridden, or explicitly detached
)

// InheritanceRecord links an instance to its source template and tracks how
// far the instance has drifted. Created atomically with its instance and
// deactivated (never deleted) alongside it. Stored in inheritance_records.
type InheritanceRecord struct {
	ID             uuid.UUID `json:"id"`
	InstanceID     uuid.UUID `json:"instance_id"`
	TemplateID     uuid.UUID `json:"template_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	TemplateType   string    `json:"template_type"`

	// InheritanceType is one of the classification values above.
	InheritanceType string `json:"inheritance_type"`

	// CustomizationLevel is round(100 * overridden / eligible) for the type.
	CustomizationLevel int `json:"customization_level"`

	// CustomFields is the authoritative map of field name to override value;
	// membership here marks a field as owned by the instance rather than the
	// template.
	CustomFields map[string]any `json:"custom_fields"`

	AutoSyncEnabled  bool      `json:"auto_sync_enabled"`
	LastTemplateSync time.Time `json:"last_template_sync"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsCustomField reports whether the named field is owned by the instance.
func (r *InheritanceRecord) IsCustomField(name string) bool {
	_, ok := r.CustomFields[name]
	return ok
}
