package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/registry"
)

// ParseOrganizationID extracts and validates the organization ID from the
// request path. Returns the parsed UUID and true on success, or uuid.Nil and
// false on error (after writing an error response).
// Expects path parameter: oid
func ParseOrganizationID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "oid", "invalid_organization_id", "Invalid organization ID format", logger)
}

// ParseTemplateID extracts and validates the template ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: tid
func ParseTemplateID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "tid", "invalid_template_id", "Invalid template ID format", logger)
}

// ParseInstanceID extracts and validates the instance ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: iid
func ParseInstanceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "iid", "invalid_instance_id", "Invalid instance ID format", logger)
}

// ParseTemplateType extracts the template type key from the request path and
// validates it against the entity type registry. Returns the key and true on
// success, or "" and false on error (after writing an error response).
// Expects path parameter: type
func ParseTemplateType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	templateType := r.PathValue("type")
	if !registry.IsSupported(templateType) {
		if err := ErrorResponse(w, http.StatusBadRequest, "unsupported_type", "Unsupported template type: "+templateType); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return templateType, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
