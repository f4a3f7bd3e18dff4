package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/talentcore/talent-engine/pkg/database"
	"github.com/talentcore/talent-engine/pkg/models"
)

// InheritanceStats aggregates customization metadata for one template type
// within an organization.
type InheritanceStats struct {
	InstanceCount   int     `json:"instance_count"`
	AverageLevel    float64 `json:"average_customization_level"`
	FullCount       int     `json:"full"`
	PartialCount    int     `json:"partial"`
	OverrideCount   int     `json:"override"`
	AutoSyncedCount int     `json:"auto_sync_enabled"`
}

// InheritanceRepository provides data access for inheritance records.
// Writes to records happen through InstanceRepository so instance and record
// always move together.
type InheritanceRepository interface {
	GetByInstance(ctx context.Context, instanceID uuid.UUID) (*models.InheritanceRecord, error)
	StatsByType(ctx context.Context, organizationID uuid.UUID) (map[string]InheritanceStats, error)
}

type inheritanceRepository struct{}

// NewInheritanceRepository creates a new InheritanceRepository.
func NewInheritanceRepository() InheritanceRepository {
	return &inheritanceRepository{}
}

var _ InheritanceRepository = (*inheritanceRepository)(nil)

func (r *inheritanceRepository) GetByInstance(ctx context.Context, instanceID uuid.UUID) (*models.InheritanceRecord, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, instance_id, template_id, organization_id, template_type,
		       inheritance_type, customization_level, custom_fields,
		       auto_sync_enabled, last_template_sync, is_active, created_at, updated_at
		FROM inheritance_records
		WHERE instance_id = $1 AND is_active`

	row := scope.Conn.QueryRow(ctx, query, instanceID)
	record, err := scanInheritanceRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Record not found
		}
		return nil, err
	}

	return record, nil
}

func (r *inheritanceRepository) StatsByType(ctx context.Context, organizationID uuid.UUID) (map[string]InheritanceStats, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT template_type,
		       COUNT(*),
		       COALESCE(AVG(customization_level), 0),
		       COUNT(*) FILTER (WHERE inheritance_type = 'full'),
		       COUNT(*) FILTER (WHERE inheritance_type = 'partial'),
		       COUNT(*) FILTER (WHERE inheritance_type = 'override'),
		       COUNT(*) FILTER (WHERE auto_sync_enabled)
		FROM inheritance_records
		WHERE organization_id = $1 AND is_active
		GROUP BY template_type`

	rows, err := scope.Conn.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inheritance stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]InheritanceStats)
	for rows.Next() {
		var templateType string
		var s InheritanceStats
		err := rows.Scan(
			&templateType,
			&s.InstanceCount,
			&s.AverageLevel,
			&s.FullCount,
			&s.PartialCount,
			&s.OverrideCount,
			&s.AutoSyncedCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inheritance stats: %w", err)
		}
		stats[templateType] = s
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inheritance stats: %w", err)
	}

	return stats, nil
}

func scanInheritanceRecord(row pgx.Row) (*models.InheritanceRecord, error) {
	var rec models.InheritanceRecord
	var customFields []byte

	err := row.Scan(
		&rec.ID,
		&rec.InstanceID,
		&rec.TemplateID,
		&rec.OrganizationID,
		&rec.TemplateType,
		&rec.InheritanceType,
		&rec.CustomizationLevel,
		&customFields,
		&rec.AutoSyncEnabled,
		&rec.LastTemplateSync,
		&rec.IsActive,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan inheritance record: %w", err)
	}

	rec.CustomFields = map[string]any{}
	if len(customFields) > 0 && string(customFields) != "null" {
		if err := json.Unmarshal(customFields, &rec.CustomFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom fields: %w", err)
		}
	}

	return &rec, nil
}
