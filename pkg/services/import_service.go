package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/apperrors"
	"github.com/talentcore/talent-engine/pkg/models"
	"github.com/talentcore/talent-engine/pkg/registry"
	"github.com/talentcore/talent-engine/pkg/repositories"
)

// ImportResult pairs a newly created instance with its inheritance metadata.
type ImportResult struct {
	Instance    *models.Instance          `json:"instance"`
	Inheritance *models.InheritanceRecord `json:"inheritance"`
}

// BulkImportFailure reports one failed item of a bulk import.
type BulkImportFailure struct {
	TemplateID uuid.UUID `json:"template_id"`
	Error      string    `json:"error"`
}

// BulkImportSummary totals a bulk import outcome.
type BulkImportSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BulkImportResult reports per-item outcomes of a bulk import. Items succeed
// or fail independently; one failure never aborts its siblings.
type BulkImportResult struct {
	Successful []*ImportResult     `json:"successful"`
	Failed     []BulkImportFailure `json:"failed"`
	Summary    BulkImportSummary   `json:"summary"`
}

// ImportService creates organization instances from catalog templates.
type ImportService interface {
	// Import creates one instance plus its inheritance record atomically.
	Import(ctx context.Context, organizationID, templateID uuid.UUID, templateType string, overrides map[string]any, autoSync bool) (*ImportResult, error)

	// BulkImport runs Import independently per template ID, applying the
	// same default overrides to each.
	BulkImport(ctx context.Context, organizationID uuid.UUID, templateIDs []uuid.UUID, templateType string, overrides map[string]any, autoSync bool) (*BulkImportResult, error)
}

type importService struct {
	templateRepo repositories.TemplateRepository
	instanceRepo repositories.InstanceRepository
	logger       *zap.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(
	templateRepo repositories.TemplateRepository,
	instanceRepo repositories.InstanceRepository,
	logger *zap.Logger,
) ImportService {
	return &importService{
		templateRepo: templateRepo,
		instanceRepo: instanceRepo,
		logger:       logger.Named("import-service"),
	}
}

var _ ImportService = (*importService)(nil)

func (s *importService) Import(ctx context.Context, organizationID, templateID uuid.UUID, templateType string, overrides map[string]any, autoSync bool) (*ImportResult, error) {
	entityType, err := registry.Lookup(templateType)
	if err != nil {
		return nil, err
	}

	template, err := s.templateRepo.GetByID(ctx, templateType, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperrors.ErrTemplateNotFound
	}

	existing, err := s.instanceRepo.GetActiveByTemplate(ctx, organizationID, templateID, templateType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrDuplicateImport
	}

	customFields := eligibleOverrides(entityType, overrides)
	level := ComputeLevel(entityType, customFields)

	instance := &models.Instance{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		TemplateID:     templateID,
		TemplateType:   templateType,
		Fields:         Merge(entityType, template.Fields, customFields),
	}
	record := &models.InheritanceRecord{
		ID:                 uuid.New(),
		InstanceID:         instance.ID,
		TemplateID:         templateID,
		OrganizationID:     organizationID,
		TemplateType:       templateType,
		InheritanceType:    Classify(level),
		CustomizationLevel: level,
		CustomFields:       customFields,
		AutoSyncEnabled:    autoSync,
		LastTemplateSync:   time.Now(),
	}

	if err := s.instanceRepo.CreateWithInheritance(ctx, instance, record); err != nil {
		return nil, err
	}

	s.logger.Info("Imported template",
		zap.String("organization_id", organizationID.String()),
		zap.String("template_id", templateID.String()),
		zap.String("template_type", templateType),
		zap.Int("customization_level", level))

	return &ImportResult{Instance: instance, Inheritance: record}, nil
}

func (s *importService) BulkImport(ctx context.Context, organizationID uuid.UUID, templateIDs []uuid.UUID, templateType string, overrides map[string]any, autoSync bool) (*BulkImportResult, error) {
	result := &BulkImportResult{
		Successful: []*ImportResult{},
		Failed:     []BulkImportFailure{},
	}

	for _, templateID := range templateIDs {
		imported, err := s.Import(ctx, organizationID, templateID, templateType, overrides, autoSync)
		if err != nil {
			result.Failed = append(result.Failed, BulkImportFailure{
				TemplateID: templateID,
				Error:      err.Error(),
			})
			continue
		}
		result.Successful = append(result.Successful, imported)
	}

	result.Summary = BulkImportSummary{
		Total:      len(templateIDs),
		Successful: len(result.Successful),
		Failed:     len(result.Failed),
	}

	if result.Summary.Failed > 0 {
		s.logger.Warn("Bulk import completed with failures",
			zap.String("organization_id", organizationID.String()),
			zap.String("template_type", templateType),
			zap.Int("total", result.Summary.Total),
			zap.Int("failed", result.Summary.Failed))
	}

	return result, nil
}
