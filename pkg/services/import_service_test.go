package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/apperrors"
	"github.com/talentcore/talent-engine/pkg/models"
	"github.com/talentcore/talent-engine/pkg/registry"
)

func leaveTemplate() *models.Template {
	return &models.Template{
		ID:           uuid.New(),
		TemplateType: registry.TypeLeaveType,
		Name:         "Annual Leave",
		Category:     "time-off",
		Fields: map[string]any{
			"name":              "Annual Leave",
			"description":       "Paid annual leave",
			"max_days":          25,
			"carry_over":        true,
			"requires_approval": true,
		},
		IsActive:  true,
		UpdatedAt: time.Now().Add(-time.Hour),
	}
}

func newImportFixture(templates ...*models.Template) (*mockTemplateRepo, *mockInstanceRepo, *mockInheritanceRepo, ImportService) {
	templateRepo := &mockTemplateRepo{templates: templates}
	inheritanceRepo := &mockInheritanceRepo{}
	instanceRepo := &mockInstanceRepo{records: inheritanceRepo}
	svc := NewImportService(templateRepo, instanceRepo, zap.NewNop())
	return templateRepo, instanceRepo, inheritanceRepo, svc
}

func TestImportService_Import_FullInheritance(t *testing.T) {
	tpl := leaveTemplate()
	_, instanceRepo, _, svc := newImportFixture(tpl)
	orgID := uuid.New()

	result, err := svc.Import(context.Background(), orgID, tpl.ID, registry.TypeLeaveType, nil, true)
	require.NoError(t, err)

	assert.Equal(t, orgID, result.Instance.OrganizationID)
	assert.Equal(t, tpl.ID, result.Instance.TemplateID)
	assert.Equal(t, tpl.Fields, result.Instance.Fields)

	assert.Equal(t, models.InheritanceFull, result.Inheritance.InheritanceType)
	assert.Equal(t, 0, result.Inheritance.CustomizationLevel)
	assert.Empty(t, result.Inheritance.CustomFields)
	assert.True(t, result.Inheritance.AutoSyncEnabled)
	assert.False(t, result.Inheritance.LastTemplateSync.IsZero())

	assert.Len(t, instanceRepo.instances, 1)
}

func TestImportService_Import_WithOverrides(t *testing.T) {
	tpl := leaveTemplate()
	_, _, _, svc := newImportFixture(tpl)

	overrides := map[string]any{"max_days": 20, "not_a_field": "ignored"}
	result, err := svc.Import(context.Background(), uuid.New(), tpl.ID, registry.TypeLeaveType, overrides, false)
	require.NoError(t, err)

	assert.Equal(t, 20, result.Instance.Fields["max_days"])
	assert.Equal(t, "Annual Leave", result.Instance.Fields["name"])
	assert.NotContains(t, result.Instance.Fields, "not_a_field")

	assert.Equal(t, models.InheritancePartial, result.Inheritance.InheritanceType)
	assert.Equal(t, 20, result.Inheritance.CustomizationLevel)
	assert.Equal(t, map[string]any{"max_days": 20}, result.Inheritance.CustomFields)
	assert.False(t, result.Inheritance.AutoSyncEnabled)
}

func TestImportService_Import_UnsupportedType(t *testing.T) {
	_, _, _, svc := newImportFixture()

	_, err := svc.Import(context.Background(), uuid.New(), uuid.New(), "org_chart", nil, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestImportService_Import_TemplateNotFound(t *testing.T) {
	_, _, _, svc := newImportFixture()

	_, err := svc.Import(context.Background(), uuid.New(), uuid.New(), registry.TypeLeaveType, nil, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTemplateNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestImportService_Import_Duplicate(t *testing.T) {
	tpl := leaveTemplate()
	_, _, _, svc := newImportFixture(tpl)
	orgID := uuid.New()

	_, err := svc.Import(context.Background(), orgID, tpl.ID, registry.TypeLeaveType, nil, true)
	require.NoError(t, err)

	_, err = svc.Import(context.Background(), orgID, tpl.ID, registry.TypeLeaveType, nil, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateImport)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestImportService_Import_OtherOrgUnaffected(t *testing.T) {
	tpl := leaveTemplate()
	_, _, _, svc := newImportFixture(tpl)

	_, err := svc.Import(context.Background(), uuid.New(), tpl.ID, registry.TypeLeaveType, nil, true)
	require.NoError(t, err)

	// A different organization importing the same template is not a duplicate.
	_, err = svc.Import(context.Background(), uuid.New(), tpl.ID, registry.TypeLeaveType, nil, true)
	require.NoError(t, err)
}

func TestImportService_BulkImport_PartialFailure(t *testing.T) {
	first := leaveTemplate()
	second := leaveTemplate()
	second.ID = uuid.New()
	second.Name = "Sick Leave"

	_, instanceRepo, _, svc := newImportFixture(first, second)
	orgID := uuid.New()
	missing := uuid.New()

	result, err := svc.BulkImport(context.Background(), orgID, []uuid.UUID{first.ID, missing, second.ID}, registry.TypeLeaveType, nil, true)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.Total)
	assert.Equal(t, 2, result.Summary.Successful)
	assert.Equal(t, 1, result.Summary.Failed)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, missing, result.Failed[0].TemplateID)
	assert.Contains(t, result.Failed[0].Error, "not found")

	// The failure did not roll back its siblings.
	assert.Len(t, instanceRepo.instances, 2)
}

func TestImportService_BulkImport_Empty(t *testing.T) {
	_, _, _, svc := newImportFixture()

	result, err := svc.BulkImport(context.Background(), uuid.New(), nil, registry.TypeLeaveType, nil, true)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Summary.Total)
	assert.Empty(t, result.Successful)
	assert.Empty(t, result.Failed)
}
