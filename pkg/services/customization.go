package services

import (
	"math"

	"github.com/talentcore/talent-engine/pkg/models"
	"github.com/talentcore/talent-engine/pkg/registry"
)

// ComputeLevel returns the customization level 0-100 for an override set:
// the rounded percentage of the type's eligible fields that appear in
// overrides. Override keys outside the eligible set do not count.
func ComputeLevel(entityType registry.EntityType, overrides map[string]any) int {
	if len(entityType.EligibleFields) == 0 || len(overrides) == 0 {
		return 0
	}

	overridden := 0
	for _, field := range entityType.EligibleFields {
		if _, ok := overrides[field]; ok {
			overridden++
		}
	}

	return int(math.Round(100 * float64(overridden) / float64(len(entityType.EligibleFields))))
}

// Classify maps a customization level to an inheritance type: 0 is full
// inheritance, 100 is a complete override, anything between is partial.
func Classify(level int) string {
	switch {
	case level == 0:
		return models.InheritanceFull
	case level == 100:
		return models.InheritanceOverride
	default:
		return models.InheritancePartial
	}
}

// Merge produces an instance's full field snapshot: for every eligible field
// the override value wins when present, otherwise the template's current
// value is copied. Fields absent from both are omitted from the snapshot.
func Merge(entityType registry.EntityType, templateFields, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(entityType.EligibleFields))
	for _, field := range entityType.EligibleFields {
		if value, ok := overrides[field]; ok {
			merged[field] = value
			continue
		}
		if value, ok := templateFields[field]; ok {
			merged[field] = value
		}
	}
	return merged
}

// eligibleOverrides filters an override map down to the fields the entity
// type actually allows customizing, so stray keys never become owned fields.
func eligibleOverrides(entityType registry.EntityType, overrides map[string]any) map[string]any {
	filtered := make(map[string]any, len(overrides))
	for _, field := range entityType.EligibleFields {
		if value, ok := overrides[field]; ok {
			filtered[field] = value
		}
	}
	return filtered
}
