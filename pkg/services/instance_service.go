package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/apperrors"
	"github.com/talentcore/talent-engine/pkg/jsonutil"
	"github.com/talentcore/talent-engine/pkg/models"
	"github.com/talentcore/talent-engine/pkg/registry"
	"github.com/talentcore/talent-engine/pkg/repositories"
)

// Export formats
const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
)

// SyncResult reports the outcome of a sync call. Conflicts are a normal,
// expected outcome requiring a caller decision, not an error: when any
// targeted field conflicts, no field was changed.
type SyncResult struct {
	Success       bool     `json:"success"`
	UpdatedFields []string `json:"updated_fields,omitempty"`
	Conflicts     []string `json:"conflicts,omitempty"`
}

// InstanceDetail is an instance with its optional inheritance metadata and
// source template.
type InstanceDetail struct {
	*models.Instance
	Inheritance *models.InheritanceRecord `json:"inheritance,omitempty"`
	Template    *models.Template          `json:"template,omitempty"`
}

// InstanceService operates on an organization's imported instances.
type InstanceService interface {
	// ListByOrganization returns the organization's active instances of a
	// type, optionally joined with their inheritance records and source
	// templates.
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, templateType string, includeInheritance, includeTemplate bool) ([]*InstanceDetail, error)

	// Get returns a single active instance with its inheritance record.
	Get(ctx context.Context, instanceID uuid.UUID, templateType string) (*InstanceDetail, error)

	// Customize replaces the instance's override set and rebuilds its field
	// snapshot from the current template baseline. The new overrides replace,
	// not accumulate onto, the prior set, making the call idempotent. When
	// detach is true the instance is pinned to override classification and
	// detached from auto-sync regardless of how many fields are overridden.
	Customize(ctx context.Context, instanceID uuid.UUID, templateType string, overrides map[string]any, detach bool) (*ImportResult, error)

	// Sync re-applies current template values onto fields the caller did not
	// intend to keep overridden. All-or-nothing: any conflict aborts the
	// whole call with no field changes.
	Sync(ctx context.Context, instanceID uuid.UUID, templateType string, syncFields []string) (*SyncResult, error)

	// GetInheritance returns the inheritance record for an instance.
	GetInheritance(ctx context.Context, instanceID uuid.UUID) (*models.InheritanceRecord, error)

	// Deactivate logically deletes an instance and its inheritance record.
	Deactivate(ctx context.Context, instanceID uuid.UUID) error

	// Export serializes the organization's instances of a type. Returns the
	// payload and its content type.
	Export(ctx context.Context, organizationID uuid.UUID, templateType, format string) ([]byte, string, error)
}

type instanceService struct {
	templateRepo    repositories.TemplateRepository
	instanceRepo    repositories.InstanceRepository
	inheritanceRepo repositories.InheritanceRepository
	logger          *zap.Logger
}

// NewInstanceService creates a new InstanceService.
func NewInstanceService(
	templateRepo repositories.TemplateRepository,
	instanceRepo repositories.InstanceRepository,
	inheritanceRepo repositories.InheritanceRepository,
	logger *zap.Logger,
) InstanceService {
	return &instanceService{
		templateRepo:    templateRepo,
		instanceRepo:    instanceRepo,
		inheritanceRepo: inheritanceRepo,
		logger:          logger.Named("instance-service"),
	}
}

var _ InstanceService = (*instanceService)(nil)

func (s *instanceService) ListByOrganization(ctx context.Context, organizationID uuid.UUID, templateType string, includeInheritance, includeTemplate bool) ([]*InstanceDetail, error) {
	if _, err := registry.Lookup(templateType); err != nil {
		return nil, err
	}

	instances, err := s.instanceRepo.GetByOrganization(ctx, organizationID, templateType)
	if err != nil {
		return nil, err
	}

	// Instances of one type usually share a handful of templates; cache
	// lookups per call.
	templates := make(map[uuid.UUID]*models.Template)

	details := make([]*InstanceDetail, 0, len(instances))
	for _, instance := range instances {
		detail := &InstanceDetail{Instance: instance}
		if includeInheritance {
			record, err := s.inheritanceRepo.GetByInstance(ctx, instance.ID)
			if err != nil {
				return nil, err
			}
			detail.Inheritance = record
		}
		if includeTemplate {
			template, ok := templates[instance.TemplateID]
			if !ok {
				template, err = s.templateRepo.GetByID(ctx, templateType, instance.TemplateID)
				if err != nil {
					return nil, err
				}
				templates[instance.TemplateID] = template
			}
			detail.Template = template
		}
		details = append(details, detail)
	}

	return details, nil
}

func (s *instanceService) Get(ctx context.Context, instanceID uuid.UUID, templateType string) (*InstanceDetail, error) {
	if _, err := registry.Lookup(templateType); err != nil {
		return nil, err
	}

	instance, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil || !instance.IsActive || instance.TemplateType != templateType {
		return nil, apperrors.ErrInstanceNotFound
	}

	record, err := s.inheritanceRepo.GetByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	return &InstanceDetail{Instance: instance, Inheritance: record}, nil
}

// sourceTemplate resolves the template an inheritance record points at.
func (s *instanceService) sourceTemplate(ctx context.Context, templateType string, record *models.InheritanceRecord) (*models.Template, error) {
	template, err := s.templateRepo.GetByID(ctx, templateType, record.TemplateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperrors.ErrTemplateNotFound
	}
	return template, nil
}

func (s *instanceService) Customize(ctx context.Context, instanceID uuid.UUID, templateType string, overrides map[string]any, detach bool) (*ImportResult, error) {
	entityType, err := registry.Lookup(templateType)
	if err != nil {
		return nil, err
	}

	// The instance and record are read under the row lock inside the snapshot
	// transaction, so a concurrent customize or sync committed moments earlier
	// is seen, not clobbered.
	var result *ImportResult
	var level int
	err = s.instanceRepo.UpdateSnapshot(ctx, instanceID, func(instance *models.Instance, record *models.InheritanceRecord) (bool, error) {
		if instance.TemplateType != templateType {
			return false, apperrors.ErrInstanceNotFound
		}
		template, err := s.sourceTemplate(ctx, templateType, record)
		if err != nil {
			return false, err
		}

		customFields := eligibleOverrides(entityType, overrides)
		level = ComputeLevel(entityType, customFields)

		instance.Fields = Merge(entityType, template.Fields, customFields)
		record.CustomFields = customFields
		record.CustomizationLevel = level
		record.InheritanceType = Classify(level)
		if detach {
			record.InheritanceType = models.InheritanceOverride
			record.AutoSyncEnabled = false
		}

		result = &ImportResult{Instance: instance, Inheritance: record}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Customized instance",
		zap.String("instance_id", instanceID.String()),
		zap.String("template_type", templateType),
		zap.Int("customization_level", level),
		zap.Bool("detached", detach))

	return result, nil
}

func (s *instanceService) Sync(ctx context.Context, instanceID uuid.UUID, templateType string, syncFields []string) (*SyncResult, error) {
	entityType, err := registry.Lookup(templateType)
	if err != nil {
		return nil, err
	}

	// Conflict detection and field updates both run against the row state
	// read under the lock, so overrides committed by a concurrent customize
	// are honored rather than overwritten.
	var result *SyncResult
	err = s.instanceRepo.UpdateSnapshot(ctx, instanceID, func(instance *models.Instance, record *models.InheritanceRecord) (bool, error) {
		if instance.TemplateType != templateType {
			return false, apperrors.ErrInstanceNotFound
		}
		template, err := s.sourceTemplate(ctx, templateType, record)
		if err != nil {
			return false, err
		}

		// Empty syncFields means every eligible field the instance does not own.
		targets := make([]string, 0, len(entityType.EligibleFields))
		if len(syncFields) == 0 {
			for _, field := range entityType.EligibleFields {
				if !record.IsCustomField(field) {
					targets = append(targets, field)
				}
			}
		} else {
			for _, field := range syncFields {
				if entityType.IsEligible(field) {
					targets = append(targets, field)
				}
			}
		}

		// A targeted field the instance owns conflicts when the template changed
		// after the last sync: both sides diverged, so the customization must not
		// be silently clobbered.
		var conflicts []string
		for _, field := range targets {
			if record.IsCustomField(field) && template.UpdatedAt.After(record.LastTemplateSync) {
				conflicts = append(conflicts, field)
			}
		}
		if len(conflicts) > 0 {
			sort.Strings(conflicts)
			result = &SyncResult{Success: false, Conflicts: conflicts}
			return false, nil
		}

		updated := make([]string, 0, len(targets))
		for _, field := range targets {
			if value, ok := template.Fields[field]; ok {
				instance.Fields[field] = value
			} else {
				delete(instance.Fields, field)
			}
			// An explicitly synced field is no longer owned by the instance.
			delete(record.CustomFields, field)
			updated = append(updated, field)
		}
		sort.Strings(updated)

		level := ComputeLevel(entityType, record.CustomFields)
		record.CustomizationLevel = level
		record.InheritanceType = Classify(level)
		record.LastTemplateSync = time.Now()

		result = &SyncResult{Success: true, UpdatedFields: updated}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.logger.Info("Synced instance with template",
			zap.String("instance_id", instanceID.String()),
			zap.String("template_type", templateType),
			zap.Strings("updated_fields", result.UpdatedFields))
	}

	return result, nil
}

func (s *instanceService) GetInheritance(ctx context.Context, instanceID uuid.UUID) (*models.InheritanceRecord, error) {
	record, err := s.inheritanceRepo.GetByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperrors.ErrInstanceNotFound
	}
	return record, nil
}

func (s *instanceService) Deactivate(ctx context.Context, instanceID uuid.UUID) error {
	if err := s.instanceRepo.Deactivate(ctx, instanceID); err != nil {
		return err
	}

	s.logger.Info("Deactivated instance", zap.String("instance_id", instanceID.String()))
	return nil
}

func (s *instanceService) Export(ctx context.Context, organizationID uuid.UUID, templateType, format string) ([]byte, string, error) {
	if _, err := registry.Lookup(templateType); err != nil {
		return nil, "", err
	}

	instances, err := s.instanceRepo.GetByOrganization(ctx, organizationID, templateType)
	if err != nil {
		return nil, "", err
	}

	switch format {
	case ExportFormatJSON:
		data, err := json.MarshalIndent(instances, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal export: %w", err)
		}
		return data, "application/json", nil
	case ExportFormatCSV:
		data, err := exportCSV(instances)
		if err != nil {
			return nil, "", err
		}
		return data, "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q: %w", format, apperrors.ErrValidation)
	}
}

// exportCSV flattens instances into rows. The header is derived from the
// first instance's field names (sorted for a stable column order); the csv
// writer quotes values containing commas.
func exportCSV(instances []*models.Instance) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if len(instances) == 0 {
		w.Flush()
		return buf.Bytes(), w.Error()
	}

	fieldNames := make([]string, 0, len(instances[0].Fields))
	for name := range instances[0].Fields {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	header := append([]string{"instance_id", "template_id"}, fieldNames...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, instance := range instances {
		row := make([]string, 0, len(header))
		row = append(row, instance.ID.String(), instance.TemplateID.String())
		for _, name := range fieldNames {
			row = append(row, jsonutil.Stringify(instance.Fields[name]))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
