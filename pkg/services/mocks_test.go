package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/talentcore/talent-engine/pkg/apperrors"
	"github.com/talentcore/talent-engine/pkg/models"
	"github.com/talentcore/talent-engine/pkg/repositories"
)

// mockTemplateRepo implements repositories.TemplateRepository for testing.
type mockTemplateRepo struct {
	templates []*models.Template
	getErr    error
	listErr   error
	countErr  error

	// failTypes makes List fail for specific template types.
	failTypes map[string]error
}

func (m *mockTemplateRepo) GetByID(_ context.Context, templateType string, templateID uuid.UUID) (*models.Template, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, tpl := range m.templates {
		if tpl.TemplateType == templateType && tpl.ID == templateID {
			return tpl, nil
		}
	}
	return nil, nil
}

func (m *mockTemplateRepo) List(_ context.Context, templateType string, opts repositories.ListOptions) ([]*models.Template, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if err, ok := m.failTypes[templateType]; ok {
		return nil, 0, err
	}

	var result []*models.Template
	for _, tpl := range m.templates {
		if tpl.TemplateType != templateType {
			continue
		}
		if opts.ActiveOnly && !tpl.IsActive {
			continue
		}
		if opts.Search != "" && !strings.Contains(strings.ToLower(tpl.Name), strings.ToLower(opts.Search)) {
			continue
		}
		if opts.Category != "" && tpl.Category != opts.Category {
			continue
		}
		result = append(result, tpl)
	}
	return result, len(result), nil
}

func (m *mockTemplateRepo) CountByType(_ context.Context) (map[string]int, error) {
	if m.countErr != nil {
		return nil, m.countErr
	}
	counts := make(map[string]int)
	for _, tpl := range m.templates {
		if tpl.IsActive {
			counts[tpl.TemplateType]++
		}
	}
	return counts, nil
}

// mockInstanceRepo implements repositories.InstanceRepository for testing.
// It keeps the instance and inheritance stores consistent the way the real
// transactional methods do.
type mockInstanceRepo struct {
	instances []*models.Instance
	records   *mockInheritanceRepo

	createErr error
	getErr    error
	updateErr error

	// beforeUpdate runs after UpdateSnapshot locates the rows but before the
	// mutator sees them, standing in for a write committed by a concurrent
	// caller that lost the race for the row lock by a moment.
	beforeUpdate func()

	updateCalls int
}

func (m *mockInstanceRepo) CreateWithInheritance(_ context.Context, instance *models.Instance, record *models.InheritanceRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.instances {
		if existing.OrganizationID == instance.OrganizationID &&
			existing.TemplateID == instance.TemplateID &&
			existing.TemplateType == instance.TemplateType &&
			existing.IsActive {
			return apperrors.ErrDuplicateImport
		}
	}
	instance.IsActive = true
	record.IsActive = true
	m.instances = append(m.instances, instance)
	if m.records != nil {
		m.records.records = append(m.records.records, record)
	}
	return nil
}

func (m *mockInstanceRepo) GetByID(_ context.Context, instanceID uuid.UUID) (*models.Instance, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, instance := range m.instances {
		if instance.ID == instanceID {
			return instance, nil
		}
	}
	return nil, nil
}

func (m *mockInstanceRepo) GetActiveByTemplate(_ context.Context, organizationID, templateID uuid.UUID, templateType string) (*models.Instance, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, instance := range m.instances {
		if instance.OrganizationID == organizationID &&
			instance.TemplateID == templateID &&
			instance.TemplateType == templateType &&
			instance.IsActive {
			return instance, nil
		}
	}
	return nil, nil
}

func (m *mockInstanceRepo) GetByOrganization(_ context.Context, organizationID uuid.UUID, templateType string) ([]*models.Instance, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Instance
	for _, instance := range m.instances {
		if instance.OrganizationID == organizationID && instance.TemplateType == templateType && instance.IsActive {
			result = append(result, instance)
		}
	}
	return result, nil
}

func (m *mockInstanceRepo) UpdateSnapshot(_ context.Context, instanceID uuid.UUID, mutate repositories.SnapshotMutator) error {
	if m.updateErr != nil {
		return m.updateErr
	}

	var instance *models.Instance
	for _, existing := range m.instances {
		if existing.ID == instanceID && existing.IsActive {
			instance = existing
		}
	}
	var record *models.InheritanceRecord
	if m.records != nil {
		for _, existing := range m.records.records {
			if existing.InstanceID == instanceID && existing.IsActive {
				record = existing
			}
		}
	}
	if record == nil {
		return fmt.Errorf("inheritance record for instance %s: %w", instanceID, apperrors.ErrNotFound)
	}
	if instance == nil {
		return apperrors.ErrInstanceNotFound
	}

	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}

	apply, err := mutate(instance, record)
	if err != nil {
		return err
	}
	if apply {
		m.updateCalls++
	}
	return nil
}

func (m *mockInstanceRepo) Deactivate(_ context.Context, instanceID uuid.UUID) error {
	for _, instance := range m.instances {
		if instance.ID == instanceID && instance.IsActive {
			instance.IsActive = false
			if m.records != nil {
				for _, record := range m.records.records {
					if record.InstanceID == instanceID {
						record.IsActive = false
					}
				}
			}
			return nil
		}
	}
	return apperrors.ErrInstanceNotFound
}

// mockInheritanceRepo implements repositories.InheritanceRepository for testing.
type mockInheritanceRepo struct {
	records  []*models.InheritanceRecord
	getErr   error
	statsErr error
	stats    map[string]repositories.InheritanceStats
}

func (m *mockInheritanceRepo) GetByInstance(_ context.Context, instanceID uuid.UUID) (*models.InheritanceRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, record := range m.records {
		if record.InstanceID == instanceID && record.IsActive {
			return record, nil
		}
	}
	return nil, nil
}

func (m *mockInheritanceRepo) StatsByType(_ context.Context, _ uuid.UUID) (map[string]repositories.InheritanceStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	if m.stats != nil {
		return m.stats, nil
	}
	return map[string]repositories.InheritanceStats{}, nil
}
