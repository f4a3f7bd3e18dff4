package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/apperrors"
	"github.com/talentcore/talent-engine/pkg/models"
	"github.com/talentcore/talent-engine/pkg/registry"
	"github.com/talentcore/talent-engine/pkg/services"
)

func TestTemplateHandler_List(t *testing.T) {
	mock := &mockTemplateService{
		list: &services.TemplateList{
			Templates: []*models.Template{
				{ID: uuid.New(), TemplateType: registry.TypeSkill, Name: "Go", IsActive: true},
			},
			Total: 1,
		},
	}
	handler := NewTemplateHandler(mock, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/templates/skill", nil)
	req.SetPathValue("type", registry.TypeSkill)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.True(t, response.Success)

	// Listings exclude inactive templates unless asked otherwise.
	assert.True(t, mock.lastListOpts.ActiveOnly)
}

func TestTemplateHandler_List_IncludeInactive(t *testing.T) {
	mock := &mockTemplateService{}
	handler := NewTemplateHandler(mock, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/templates/skill?active=false", nil)
	req.SetPathValue("type", registry.TypeSkill)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mock.lastListOpts.ActiveOnly)
}

func TestTemplateHandler_List_UnsupportedType(t *testing.T) {
	handler := NewTemplateHandler(&mockTemplateService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/templates/org_chart", nil)
	req.SetPathValue("type", "org_chart")
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unsupported_type", body["error"])
}

func TestTemplateHandler_Get_NotFound(t *testing.T) {
	mock := &mockTemplateService{err: apperrors.ErrTemplateNotFound}
	handler := NewTemplateHandler(mock, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/templates/skill/"+uuid.NewString(), nil)
	req.SetPathValue("type", registry.TypeSkill)
	req.SetPathValue("tid", uuid.NewString())
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "not_found", body["error"])
}

func TestTemplateHandler_Get_InvalidID(t *testing.T) {
	handler := NewTemplateHandler(&mockTemplateService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/templates/skill/not-a-uuid", nil)
	req.SetPathValue("type", registry.TypeSkill)
	req.SetPathValue("tid", "not-a-uuid")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTemplateHandler_Search(t *testing.T) {
	mock := &mockTemplateService{
		list: &services.TemplateList{Templates: []*models.Template{}, Total: 0},
	}
	handler := NewTemplateHandler(mock, zap.NewNop())

	body, _ := json.Marshal(SearchTemplatesRequest{SearchTerm: "leave"})
	req := httptest.NewRequest(http.MethodPost, "/api/templates/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTemplateHandler_Search_InvalidBody(t *testing.T) {
	handler := NewTemplateHandler(&mockTemplateService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/templates/search", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTemplateHandler_Compare(t *testing.T) {
	sourceID := uuid.New()
	targetID := uuid.New()
	mock := &mockTemplateService{
		compare: &services.CompareResult{
			SourceID:    sourceID,
			TargetID:    targetID,
			Differences: map[string]services.FieldDiff{"max_days": {Source: 25, Target: 10}},
		},
	}
	handler := NewTemplateHandler(mock, zap.NewNop())

	body, _ := json.Marshal(CompareTemplatesRequest{
		SourceID:   sourceID,
		TargetID:   targetID,
		SourceType: registry.TypeLeaveType,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/templates/compare", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Compare(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.True(t, response.Success)
}

func TestTemplateHandler_Compare_UnsupportedType(t *testing.T) {
	mock := &mockTemplateService{err: apperrors.ErrUnsupportedType}
	handler := NewTemplateHandler(mock, zap.NewNop())

	body, _ := json.Marshal(CompareTemplatesRequest{
		SourceID:   uuid.New(),
		TargetID:   uuid.New(),
		SourceType: "org_chart",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/templates/compare", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Compare(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var respBody map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&respBody))
	assert.Equal(t, "validation_error", respBody["error"])
}

func TestTemplateHandler_Stats(t *testing.T) {
	orgID := uuid.New()
	mock := &mockTemplateService{
		stats: []services.TypeStats{
			{TemplateType: registry.TypeSkill, Label: "Skills", TemplateCount: 3},
		},
	}
	handler := NewTemplateHandler(mock, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/organizations/"+orgID.String()+"/templates/stats", nil)
	req.SetPathValue("oid", orgID.String())
	rec := httptest.NewRecorder()

	handler.Stats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.True(t, response.Success)
}

func TestTemplateHandler_RegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	handler := NewTemplateHandler(&mockTemplateService{
		list: &services.TemplateList{Templates: []*models.Template{}},
	}, zap.NewNop())
	handler.RegisterRoutes(mux, passthroughTenant)

	req := httptest.NewRequest(http.MethodGet, "/api/templates/skill", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/organizations/"+uuid.NewString()+"/templates/stats", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTemplateHandler_Stats_InvalidOrgID(t *testing.T) {
	handler := NewTemplateHandler(&mockTemplateService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/organizations/nope/templates/stats", nil)
	req.SetPathValue("oid", "nope")
	rec := httptest.NewRecorder()

	handler.Stats(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
