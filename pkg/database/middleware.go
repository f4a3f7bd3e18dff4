package database

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrganizationChecker reports whether an organization exists and is active.
// Satisfied by repositories.OrganizationRepository.Exists via a method value.
type OrganizationChecker func(ctx context.Context, organizationID uuid.UUID) (bool, error)

// WithTenantContext creates middleware that sets up a tenant-scoped DB
// connection for organization routes. The organization ID comes from the
// {oid} path value (request routing/auth is an external layer; identifiers
// reaching here are still validated). The connection is automatically
// cleaned up after the handler returns.
func WithTenantContext(db *DB, orgExists OrganizationChecker, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			organizationID, err := uuid.Parse(r.PathValue("oid"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_organization_id", "Invalid organization ID format")
				return
			}

			exists, err := orgExists(r.Context(), organizationID)
			if err != nil {
				logger.Error("Failed to check organization",
					zap.String("organization_id", organizationID.String()),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database error")
				return
			}
			if !exists {
				writeError(w, http.StatusNotFound, "organization_not_found", "Organization not found")
				return
			}

			scope, err := db.WithTenant(r.Context(), organizationID)
			if err != nil {
				logger.Error("Failed to acquire tenant connection",
					zap.String("organization_id", organizationID.String()),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			ctx := SetTenantScope(r.Context(), scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
