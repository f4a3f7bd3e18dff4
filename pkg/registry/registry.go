// Package registry holds the static entity type table. It is the single
// point of type-specific knowledge: the import, customization, sync and
// catalog layers are all generic over a registry entry, so supporting a new
// entity kind means adding one row here, not touching any algorithm.
package registry

import (
	"sort"

	"github.com/jinzhu/inflection"

	"github.com/talentcore/talent-engine/pkg/apperrors"
)

// Template type keys.
const (
	TypeSkill               = "skill"
	TypeJobRole             = "job_role"
	TypeLeaveType           = "leave_type"
	TypeReviewFormat        = "review_format"
	TypeBenefitPackage      = "benefit_package"
	TypeTrainingProgram     = "training_program"
	TypeComplianceChecklist = "compliance_checklist"
	TypeOnboardingWorkflow  = "onboarding_workflow"
	TypePolicyDocument      = "policy_document"
	TypeCompensationBand    = "compensation_band"
	TypeCareerPath          = "career_path"
	TypeReportingStructure  = "reporting_structure"
)

// EntityType describes one template kind: which fields an organization may
// override, which field carries the display name for catalog search, and
// human-readable labels for stats output.
type EntityType struct {
	Key            string
	Label          string
	PluralLabel    string
	NameField      string
	EligibleFields []string
}

var entityTypes = map[string]EntityType{
	TypeSkill: {
		Key:            TypeSkill,
		Label:          "skill",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "category", "proficiency_levels"},
	},
	TypeJobRole: {
		Key:            TypeJobRole,
		Label:          "job role",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "responsibilities", "requirements", "seniority"},
	},
	TypeLeaveType: {
		Key:            TypeLeaveType,
		Label:          "leave type",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "max_days", "carry_over", "requires_approval"},
	},
	TypeReviewFormat: {
		Key:            TypeReviewFormat,
		Label:          "review format",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "sections", "rating_scale", "frequency"},
	},
	TypeBenefitPackage: {
		Key:            TypeBenefitPackage,
		Label:          "benefit package",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "benefits", "eligibility", "cost_share"},
	},
	TypeTrainingProgram: {
		Key:            TypeTrainingProgram,
		Label:          "training program",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "modules", "duration_hours", "delivery_mode"},
	},
	TypeComplianceChecklist: {
		Key:            TypeComplianceChecklist,
		Label:          "compliance checklist",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "items", "frequency", "mandatory"},
	},
	TypeOnboardingWorkflow: {
		Key:            TypeOnboardingWorkflow,
		Label:          "onboarding workflow",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "steps", "duration_days"},
	},
	TypePolicyDocument: {
		Key:            TypePolicyDocument,
		Label:          "policy document",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "body", "effective_date", "acknowledgement_required"},
	},
	TypeCompensationBand: {
		Key:            TypeCompensationBand,
		Label:          "compensation band",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "currency", "min_salary", "max_salary", "grade"},
	},
	TypeCareerPath: {
		Key:            TypeCareerPath,
		Label:          "career path",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "stages", "target_roles"},
	},
	TypeReportingStructure: {
		Key:            TypeReportingStructure,
		Label:          "reporting structure",
		NameField:      "name",
		EligibleFields: []string{"name", "description", "levels", "span_of_control"},
	},
}

func init() {
	for key, et := range entityTypes {
		et.PluralLabel = inflection.Plural(et.Label)
		entityTypes[key] = et
	}
}

// Lookup returns the entity type for the given key, or ErrUnsupportedType
// for keys absent from the table.
func Lookup(key string) (EntityType, error) {
	et, ok := entityTypes[key]
	if !ok {
		return EntityType{}, apperrors.ErrUnsupportedType
	}
	return et, nil
}

// IsSupported reports whether key names a registered entity type.
func IsSupported(key string) bool {
	_, ok := entityTypes[key]
	return ok
}

// Keys returns all registered type keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(entityTypes))
	for key := range entityTypes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsEligible reports whether field is customizable for this entity type.
func (et EntityType) IsEligible(field string) bool {
	for _, f := range et.EligibleFields {
		if f == field {
			return true
		}
	}
	return false
}
