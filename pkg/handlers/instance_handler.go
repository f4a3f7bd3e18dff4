package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/services"
)

// ImportTemplateRequest for POST /api/organizations/{oid}/templates/import
type ImportTemplateRequest struct {
	TemplateID   uuid.UUID      `json:"template_id"`
	TemplateType string         `json:"template_type"`
	Overrides    map[string]any `json:"overrides,omitempty"`
	AutoSync     *bool          `json:"auto_sync,omitempty"`
}

// BulkImportRequest for POST /api/organizations/{oid}/templates/bulk-import
type BulkImportRequest struct {
	TemplateIDs  []uuid.UUID    `json:"template_ids"`
	TemplateType string         `json:"template_type"`
	Overrides    map[string]any `json:"overrides,omitempty"`
	AutoSync     *bool          `json:"auto_sync,omitempty"`
}

// CustomizeInstanceRequest for PUT .../instances/{type}/{iid}/customize
type CustomizeInstanceRequest struct {
	Overrides map[string]any `json:"overrides"`
	Detach    bool           `json:"detach,omitempty"`
}

// SyncInstanceRequest for PUT .../instances/{type}/{iid}/sync
type SyncInstanceRequest struct {
	Fields []string `json:"fields,omitempty"`
}

// InstanceListResponse for GET .../instances/{type}
type InstanceListResponse struct {
	Instances []*services.InstanceDetail `json:"instances"`
	Total     int                        `json:"total"`
}

// InstanceHandler handles organization instance HTTP requests.
type InstanceHandler struct {
	importService   services.ImportService
	instanceService services.InstanceService
	logger          *zap.Logger
}

// NewInstanceHandler creates a new instance handler.
func NewInstanceHandler(
	importService services.ImportService,
	instanceService services.InstanceService,
	logger *zap.Logger,
) *InstanceHandler {
	return &InstanceHandler{
		importService:   importService,
		instanceService: instanceService,
		logger:          logger,
	}
}

// RegisterRoutes registers the instance handler's routes on the given mux.
// Every route is organization scoped and runs through the tenant middleware.
func (h *InstanceHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/organizations/{oid}/templates/import", tenantMiddleware(h.Import))
	mux.HandleFunc("POST /api/organizations/{oid}/templates/bulk-import", tenantMiddleware(h.BulkImport))
	mux.HandleFunc("GET /api/organizations/{oid}/instances/{type}", tenantMiddleware(h.List))
	mux.HandleFunc("GET /api/organizations/{oid}/instances/{type}/{iid}", tenantMiddleware(h.Get))
	mux.HandleFunc("GET /api/organizations/{oid}/instances/{type}/export", tenantMiddleware(h.Export))
	mux.HandleFunc("PUT /api/organizations/{oid}/instances/{type}/{iid}/customize", tenantMiddleware(h.Customize))
	mux.HandleFunc("PUT /api/organizations/{oid}/instances/{type}/{iid}/sync", tenantMiddleware(h.Sync))
	mux.HandleFunc("GET /api/organizations/{oid}/instances/{type}/{iid}/inheritance", tenantMiddleware(h.GetInheritance))
	mux.HandleFunc("DELETE /api/organizations/{oid}/instances/{type}/{iid}", tenantMiddleware(h.Deactivate))
}

// Import handles POST /api/organizations/{oid}/templates/import
func (h *InstanceHandler) Import(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}

	var req ImportTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.TemplateID == uuid.Nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_template_id", "template_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.importService.Import(r.Context(), organizationID, req.TemplateID, req.TemplateType, req.Overrides, autoSync(req.AutoSync))
	if err != nil {
		h.logger.Error("Failed to import template",
			zap.String("organization_id", organizationID.String()),
			zap.String("template_id", req.TemplateID.String()),
			zap.String("template_type", req.TemplateType),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "import_template_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// BulkImport handles POST /api/organizations/{oid}/templates/bulk-import
func (h *InstanceHandler) BulkImport(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(req.TemplateIDs) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_template_ids", "template_ids must not be empty"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.importService.BulkImport(r.Context(), organizationID, req.TemplateIDs, req.TemplateType, req.Overrides, autoSync(req.AutoSync))
	if err != nil {
		writeServiceError(w, h.logger, err, "bulk_import_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/organizations/{oid}/instances/{type}
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}
	templateType, ok := ParseTemplateType(w, r, h.logger)
	if !ok {
		return
	}

	includeInheritance := r.URL.Query().Get("include_inheritance") == "true"
	includeTemplate := r.URL.Query().Get("include_template") == "true"

	instances, err := h.instanceService.ListByOrganization(r.Context(), organizationID, templateType, includeInheritance, includeTemplate)
	if err != nil {
		h.logger.Error("Failed to list instances",
			zap.String("organization_id", organizationID.String()),
			zap.String("template_type", templateType),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "list_instances_failed")
		return
	}

	response := InstanceListResponse{
		Instances: instances,
		Total:     len(instances),
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/organizations/{oid}/instances/{type}/{iid}
func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}
	templateType, ok := ParseTemplateType(w, r, h.logger)
	if !ok {
		return
	}
	instanceID, ok := ParseInstanceID(w, r, h.logger)
	if !ok {
		return
	}

	detail, err := h.instanceService.Get(r.Context(), instanceID, templateType)
	if err != nil {
		writeServiceError(w, h.logger, err, "get_instance_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: detail}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Customize handles PUT /api/organizations/{oid}/instances/{type}/{iid}/customize
func (h *InstanceHandler) Customize(w http.ResponseWriter, r *http.Request) {
	_, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}
	templateType, ok := ParseTemplateType(w, r, h.logger)
	if !ok {
		return
	}
	instanceID, ok := ParseInstanceID(w, r, h.logger)
	if !ok {
		return
	}

	var req CustomizeInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.instanceService.Customize(r.Context(), instanceID, templateType, req.Overrides, req.Detach)
	if err != nil {
		h.logger.Error("Failed to customize instance",
			zap.String("instance_id", instanceID.String()),
			zap.String("template_type", templateType),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "customize_instance_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Sync handles PUT /api/organizations/{oid}/instances/{type}/{iid}/sync
func (h *InstanceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	_, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}
	templateType, ok := ParseTemplateType(w, r, h.logger)
	if !ok {
		return
	}
	instanceID, ok := ParseInstanceID(w, r, h.logger)
	if !ok {
		return
	}

	var req SyncInstanceRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	result, err := h.instanceService.Sync(r.Context(), instanceID, templateType, req.Fields)
	if err != nil {
		h.logger.Error("Failed to sync instance",
			zap.String("instance_id", instanceID.String()),
			zap.String("template_type", templateType),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "sync_instance_failed")
		return
	}

	// A conflicted sync is a successful HTTP exchange reporting an
	// unapplied outcome, not a server error.
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetInheritance handles GET /api/organizations/{oid}/instances/{type}/{iid}/inheritance
func (h *InstanceHandler) GetInheritance(w http.ResponseWriter, r *http.Request) {
	_, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}
	if _, ok := ParseTemplateType(w, r, h.logger); !ok {
		return
	}
	instanceID, ok := ParseInstanceID(w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.instanceService.GetInheritance(r.Context(), instanceID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get_inheritance_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: record}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Deactivate handles DELETE /api/organizations/{oid}/instances/{type}/{iid}
func (h *InstanceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	_, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}
	if _, ok := ParseTemplateType(w, r, h.logger); !ok {
		return
	}
	instanceID, ok := ParseInstanceID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.instanceService.Deactivate(r.Context(), instanceID); err != nil {
		writeServiceError(w, h.logger, err, "deactivate_instance_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: map[string]string{"status": "deactivated"}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Export handles GET /api/organizations/{oid}/instances/{type}/export
func (h *InstanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}
	templateType, ok := ParseTemplateType(w, r, h.logger)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = services.ExportFormatJSON
	}

	data, contentType, err := h.instanceService.Export(r.Context(), organizationID, templateType, format)
	if err != nil {
		h.logger.Error("Failed to export instances",
			zap.String("organization_id", organizationID.String()),
			zap.String("template_type", templateType),
			zap.String("format", format),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "export_instances_failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+templateType+`-export.`+format+`"`)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write export payload", zap.Error(err))
	}
}

// autoSync applies the default when the request omits the flag.
func autoSync(flag *bool) bool {
	if flag == nil {
		return true
	}
	return *flag
}
