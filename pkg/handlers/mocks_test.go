package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/talentcore/talent-engine/pkg/models"
	"github.com/talentcore/talent-engine/pkg/repositories"
	"github.com/talentcore/talent-engine/pkg/services"
)

// passthroughTenant stands in for the tenant middleware in handler tests.
func passthroughTenant(next http.HandlerFunc) http.HandlerFunc {
	return next
}

// mockTemplateService is a configurable mock for handler tests.
type mockTemplateService struct {
	template *models.Template
	list     *services.TemplateList
	compare  *services.CompareResult
	stats    []services.TypeStats
	err      error

	lastListOpts repositories.ListOptions
}

func (m *mockTemplateService) Get(ctx context.Context, templateType string, templateID uuid.UUID) (*models.Template, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.template != nil {
		return m.template, nil
	}
	return &models.Template{
		ID:           templateID,
		TemplateType: templateType,
		Name:         "Test Template",
		Fields:       map[string]any{"name": "Test Template"},
		IsActive:     true,
	}, nil
}

func (m *mockTemplateService) List(ctx context.Context, templateType string, opts repositories.ListOptions) (*services.TemplateList, error) {
	m.lastListOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.list != nil {
		return m.list, nil
	}
	return &services.TemplateList{Templates: []*models.Template{}}, nil
}

func (m *mockTemplateService) Search(ctx context.Context, opts services.SearchOptions) (*services.TemplateList, error) {
	return m.List(ctx, "", repositories.ListOptions{})
}

func (m *mockTemplateService) Compare(ctx context.Context, req services.CompareRequest) (*services.CompareResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.compare != nil {
		return m.compare, nil
	}
	return &services.CompareResult{
		SourceID:    req.SourceID,
		TargetID:    req.TargetID,
		Differences: map[string]services.FieldDiff{},
		Identical:   true,
	}, nil
}

func (m *mockTemplateService) Stats(ctx context.Context, organizationID uuid.UUID, templateType string) ([]services.TypeStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

// mockImportService is a configurable mock for handler tests.
type mockImportService struct {
	result     *services.ImportResult
	bulkResult *services.BulkImportResult
	err        error

	lastAutoSync bool
}

func (m *mockImportService) Import(ctx context.Context, organizationID, templateID uuid.UUID, templateType string, overrides map[string]any, autoSync bool) (*services.ImportResult, error) {
	m.lastAutoSync = autoSync
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &services.ImportResult{
		Instance: &models.Instance{
			ID:             uuid.New(),
			OrganizationID: organizationID,
			TemplateID:     templateID,
			TemplateType:   templateType,
			IsActive:       true,
		},
		Inheritance: &models.InheritanceRecord{
			InheritanceType: models.InheritanceFull,
			AutoSyncEnabled: autoSync,
		},
	}, nil
}

func (m *mockImportService) BulkImport(ctx context.Context, organizationID uuid.UUID, templateIDs []uuid.UUID, templateType string, overrides map[string]any, autoSync bool) (*services.BulkImportResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.bulkResult != nil {
		return m.bulkResult, nil
	}
	return &services.BulkImportResult{
		Successful: []*services.ImportResult{},
		Failed:     []services.BulkImportFailure{},
		Summary:    services.BulkImportSummary{Total: len(templateIDs)},
	}, nil
}

// mockInstanceService is a configurable mock for handler tests.
type mockInstanceService struct {
	details      []*services.InstanceDetail
	customized   *services.ImportResult
	syncResult   *services.SyncResult
	record       *models.InheritanceRecord
	exportData   []byte
	exportType   string
	err          error
	deactivated  []uuid.UUID
	lastOverride map[string]any
	lastDetach   bool
	lastFields   []string

	lastIncludeInheritance bool
	lastIncludeTemplate    bool
}

func (m *mockInstanceService) ListByOrganization(ctx context.Context, organizationID uuid.UUID, templateType string, includeInheritance, includeTemplate bool) ([]*services.InstanceDetail, error) {
	m.lastIncludeInheritance = includeInheritance
	m.lastIncludeTemplate = includeTemplate
	if m.err != nil {
		return nil, m.err
	}
	return m.details, nil
}

func (m *mockInstanceService) Get(ctx context.Context, instanceID uuid.UUID, templateType string) (*services.InstanceDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &services.InstanceDetail{
		Instance: &models.Instance{ID: instanceID, TemplateType: templateType, IsActive: true},
	}, nil
}

func (m *mockInstanceService) Customize(ctx context.Context, instanceID uuid.UUID, templateType string, overrides map[string]any, detach bool) (*services.ImportResult, error) {
	m.lastOverride = overrides
	m.lastDetach = detach
	if m.err != nil {
		return nil, m.err
	}
	if m.customized != nil {
		return m.customized, nil
	}
	return &services.ImportResult{
		Instance:    &models.Instance{ID: instanceID, TemplateType: templateType, IsActive: true},
		Inheritance: &models.InheritanceRecord{InstanceID: instanceID},
	}, nil
}

func (m *mockInstanceService) Sync(ctx context.Context, instanceID uuid.UUID, templateType string, syncFields []string) (*services.SyncResult, error) {
	m.lastFields = syncFields
	if m.err != nil {
		return nil, m.err
	}
	if m.syncResult != nil {
		return m.syncResult, nil
	}
	return &services.SyncResult{Success: true}, nil
}

func (m *mockInstanceService) GetInheritance(ctx context.Context, instanceID uuid.UUID) (*models.InheritanceRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.record != nil {
		return m.record, nil
	}
	return &models.InheritanceRecord{InstanceID: instanceID, IsActive: true}, nil
}

func (m *mockInstanceService) Deactivate(ctx context.Context, instanceID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.deactivated = append(m.deactivated, instanceID)
	return nil
}

func (m *mockInstanceService) Export(ctx context.Context, organizationID uuid.UUID, templateType, format string) ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	if m.exportData != nil {
		return m.exportData, m.exportType, nil
	}
	return []byte("[]"), "application/json", nil
}
