package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/repositories"
	"github.com/talentcore/talent-engine/pkg/services"
)

// TenantMiddleware wraps a handler with organization scoping.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// SearchTemplatesRequest for POST /api/templates/search
type SearchTemplatesRequest struct {
	Types      []string `json:"types,omitempty"`
	SearchTerm string   `json:"search_term"`
	Categories []string `json:"categories,omitempty"`
	Offset     int      `json:"offset,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// CompareTemplatesRequest for POST /api/templates/compare
type CompareTemplatesRequest struct {
	SourceID   uuid.UUID `json:"source_id"`
	TargetID   uuid.UUID `json:"target_id"`
	SourceType string    `json:"source_type"`
	TargetType string    `json:"target_type,omitempty"`
	Fields     []string  `json:"fields,omitempty"`
}

// TemplateHandler handles catalog template HTTP requests.
type TemplateHandler struct {
	templateService services.TemplateService
	logger          *zap.Logger
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(templateService services.TemplateService, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		logger:          logger,
	}
}

// RegisterRoutes registers the template handler's routes on the given mux.
// Catalog routes are shared across organizations; only the stats route is
// organization scoped.
func (h *TemplateHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/templates/{type}", h.List)
	mux.HandleFunc("GET /api/templates/{type}/{tid}", h.Get)
	mux.HandleFunc("POST /api/templates/search", h.Search)
	mux.HandleFunc("POST /api/templates/compare", h.Compare)
	mux.HandleFunc("GET /api/organizations/{oid}/templates/stats", tenantMiddleware(h.Stats))
}

// List handles GET /api/templates/{type}
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templateType, ok := ParseTemplateType(w, r, h.logger)
	if !ok {
		return
	}

	// Inactive templates are listed only on explicit request.
	opts := repositories.ListOptions{
		Search:     r.URL.Query().Get("search"),
		Category:   r.URL.Query().Get("category"),
		ActiveOnly: r.URL.Query().Get("active") != "false",
		Offset:     queryInt(r, "offset"),
		Limit:      queryInt(r, "limit"),
	}

	list, err := h.templateService.List(r.Context(), templateType, opts)
	if err != nil {
		h.logger.Error("Failed to list templates",
			zap.String("template_type", templateType),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "list_templates_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: list}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/templates/{type}/{tid}
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	templateType, ok := ParseTemplateType(w, r, h.logger)
	if !ok {
		return
	}
	templateID, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	template, err := h.templateService.Get(r.Context(), templateType, templateID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get_template_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: template}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Search handles POST /api/templates/search
func (h *TemplateHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchTemplatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	list, err := h.templateService.Search(r.Context(), services.SearchOptions{
		Types:      req.Types,
		SearchTerm: req.SearchTerm,
		Categories: req.Categories,
		Offset:     req.Offset,
		Limit:      req.Limit,
	})
	if err != nil {
		h.logger.Error("Failed to search templates", zap.Error(err))
		writeServiceError(w, h.logger, err, "search_templates_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: list}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Compare handles POST /api/templates/compare
func (h *TemplateHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareTemplatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.templateService.Compare(r.Context(), services.CompareRequest{
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		SourceType: req.SourceType,
		TargetType: req.TargetType,
		Fields:     req.Fields,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "compare_templates_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/organizations/{oid}/templates/stats
func (h *TemplateHandler) Stats(w http.ResponseWriter, r *http.Request) {
	organizationID, ok := ParseOrganizationID(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.templateService.Stats(r.Context(), organizationID, r.URL.Query().Get("type"))
	if err != nil {
		h.logger.Error("Failed to compute template stats",
			zap.String("organization_id", organizationID.String()),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "template_stats_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: stats}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// queryInt reads a non-negative integer query parameter, defaulting to zero.
func queryInt(r *http.Request, name string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
