package apperrors

import (
	"errors"
	"fmt"
)

// Base sentinels. Handlers map these to HTTP statuses via errors.Is, so the
// wrapped specializations below stay matchable against their base.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

var (
	// ErrTemplateNotFound is returned when a catalog template does not exist.
	ErrTemplateNotFound = fmt.Errorf("template %w", ErrNotFound)

	// ErrInstanceNotFound is returned when an organization instance does not exist.
	ErrInstanceNotFound = fmt.Errorf("instance %w", ErrNotFound)

	// ErrOrganizationNotFound is returned when the owning organization does not exist.
	ErrOrganizationNotFound = fmt.Errorf("organization %w", ErrNotFound)

	// ErrDuplicateImport is returned when an organization already holds an
	// active instance of the template being imported.
	ErrDuplicateImport = fmt.Errorf("template already imported for this organization: %w", ErrConflict)

	// ErrUnsupportedType is returned for template type keys absent from the
	// entity type registry.
	ErrUnsupportedType = fmt.Errorf("unsupported template type: %w", ErrValidation)
)
