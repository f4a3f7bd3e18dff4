package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/talentcore/talent-engine/pkg/apperrors"
	"github.com/talentcore/talent-engine/pkg/database"
	"github.com/talentcore/talent-engine/pkg/models"
)

const uniqueViolationCode = "23505"

// InstanceRepository provides data access for organization instances and
// their inheritance records. Creation and mutation always touch both rows in
// one transaction so a failure never leaves an instance without its tracker
// or vice versa.
type InstanceRepository interface {
	// CreateWithInheritance persists a new instance and its inheritance
	// record atomically. Returns ErrDuplicateImport when the organization
	// already holds an active instance of the template (including when a
	// concurrent import wins the race).
	CreateWithInheritance(ctx context.Context, instance *models.Instance, record *models.InheritanceRecord) error

	GetByID(ctx context.Context, instanceID uuid.UUID) (*models.Instance, error)
	GetActiveByTemplate(ctx context.Context, organizationID, templateID uuid.UUID, templateType string) (*models.Instance, error)
	GetByOrganization(ctx context.Context, organizationID uuid.UUID, templateType string) ([]*models.Instance, error)

	// UpdateSnapshot runs an atomic read-modify-write on an instance and its
	// inheritance record. The inheritance row is locked first so concurrent
	// customize/sync calls on the same instance serialize; both rows are then
	// read inside the transaction and handed to mutate, which sees the state
	// as of the lock, never a stale pre-lock read. mutate returns whether to
	// persist: false rolls back without error, which lets callers report an
	// unapplied outcome (a sync conflict) without writing anything.
	UpdateSnapshot(ctx context.Context, instanceID uuid.UUID, mutate SnapshotMutator) error

	// Deactivate logically deletes an instance and its inheritance record.
	// Rows are never physically removed, preserving audit history.
	Deactivate(ctx context.Context, instanceID uuid.UUID) error
}

type instanceRepository struct{}

// NewInstanceRepository creates a new InstanceRepository.
func NewInstanceRepository() InstanceRepository {
	return &instanceRepository{}
}

var _ InstanceRepository = (*instanceRepository)(nil)

func (r *instanceRepository) CreateWithInheritance(ctx context.Context, instance *models.Instance, record *models.InheritanceRecord) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	fields, err := json.Marshal(instance.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal instance fields: %w", err)
	}
	customFields, err := marshalCustomFields(record.CustomFields)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	now := time.Now()

	instanceQuery := `
		INSERT INTO org_instances (
			id, organization_id, template_id, template_type, fields,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, true, $6, $6)
		RETURNING created_at, updated_at`

	err = tx.QueryRow(ctx, instanceQuery,
		instance.ID,
		instance.OrganizationID,
		instance.TemplateID,
		instance.TemplateType,
		fields,
		now,
	).Scan(&instance.CreatedAt, &instance.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateImport
		}
		return fmt.Errorf("failed to create instance: %w", err)
	}
	instance.IsActive = true

	recordQuery := `
		INSERT INTO inheritance_records (
			id, instance_id, template_id, organization_id, template_type,
			inheritance_type, customization_level, custom_fields,
			auto_sync_enabled, last_template_sync, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, $11, $11)
		RETURNING created_at, updated_at`

	err = tx.QueryRow(ctx, recordQuery,
		record.ID,
		record.InstanceID,
		record.TemplateID,
		record.OrganizationID,
		record.TemplateType,
		record.InheritanceType,
		record.CustomizationLevel,
		customFields,
		record.AutoSyncEnabled,
		record.LastTemplateSync,
		now,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create inheritance record: %w", err)
	}
	record.IsActive = true

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	return nil
}

const instanceColumns = `id, organization_id, template_id, template_type, fields, is_active, created_at, updated_at`

func (r *instanceRepository) GetByID(ctx context.Context, instanceID uuid.UUID) (*models.Instance, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `SELECT ` + instanceColumns + ` FROM org_instances WHERE id = $1`

	row := scope.Conn.QueryRow(ctx, query, instanceID)
	instance, err := scanInstance(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Instance not found
		}
		return nil, err
	}

	return instance, nil
}

func (r *instanceRepository) GetActiveByTemplate(ctx context.Context, organizationID, templateID uuid.UUID, templateType string) (*models.Instance, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + instanceColumns + `
		FROM org_instances
		WHERE organization_id = $1 AND template_id = $2 AND template_type = $3 AND is_active`

	row := scope.Conn.QueryRow(ctx, query, organizationID, templateID, templateType)
	instance, err := scanInstance(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return instance, nil
}

func (r *instanceRepository) GetByOrganization(ctx context.Context, organizationID uuid.UUID, templateType string) ([]*models.Instance, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + instanceColumns + `
		FROM org_instances
		WHERE organization_id = $1 AND template_type = $2 AND is_active
		ORDER BY created_at`

	rows, err := scope.Conn.Query(ctx, query, organizationID, templateType)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

// SnapshotMutator recomputes an instance's field snapshot and inheritance
// metadata in place, given both rows as read under the record lock. Returning
// false skips the write; returning an error rolls the transaction back.
type SnapshotMutator func(instance *models.Instance, record *models.InheritanceRecord) (bool, error)

func (r *instanceRepository) UpdateSnapshot(ctx context.Context, instanceID uuid.UUID, mutate SnapshotMutator) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// Lock the inheritance record so concurrent customize/sync calls on the
	// same instance serialize their read-modify-write.
	lockQuery := `
		SELECT id, instance_id, template_id, organization_id, template_type,
		       inheritance_type, customization_level, custom_fields,
		       auto_sync_enabled, last_template_sync, is_active, created_at, updated_at
		FROM inheritance_records
		WHERE instance_id = $1 AND is_active
		FOR UPDATE`
	record, err := scanInheritanceRecord(tx.QueryRow(ctx, lockQuery, instanceID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("inheritance record for instance %s: %w", instanceID, apperrors.ErrNotFound)
		}
		return err
	}

	instanceQuery := `SELECT ` + instanceColumns + ` FROM org_instances WHERE id = $1 AND is_active`
	instance, err := scanInstance(tx.QueryRow(ctx, instanceQuery, instanceID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrInstanceNotFound
		}
		return err
	}

	apply, err := mutate(instance, record)
	if err != nil {
		return err
	}
	if !apply {
		return nil // rollback via defer; nothing written
	}

	fields, err := json.Marshal(instance.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal instance fields: %w", err)
	}
	customFields, err := marshalCustomFields(record.CustomFields)
	if err != nil {
		return err
	}

	updateInstance := `
		UPDATE org_instances
		SET fields = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	if err := tx.QueryRow(ctx, updateInstance, instance.ID, fields).Scan(&instance.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update instance fields: %w", err)
	}

	updateRecord := `
		UPDATE inheritance_records
		SET inheritance_type = $2, customization_level = $3, custom_fields = $4,
		    auto_sync_enabled = $5, last_template_sync = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err = tx.QueryRow(ctx, updateRecord,
		record.ID,
		record.InheritanceType,
		record.CustomizationLevel,
		customFields,
		record.AutoSyncEnabled,
		record.LastTemplateSync,
	).Scan(&record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update inheritance record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot update: %w", err)
	}

	return nil
}

func (r *instanceRepository) Deactivate(ctx context.Context, instanceID uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	result, err := tx.Exec(ctx, `UPDATE org_instances SET is_active = false, updated_at = NOW() WHERE id = $1 AND is_active`, instanceID)
	if err != nil {
		return fmt.Errorf("failed to deactivate instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrInstanceNotFound
	}

	_, err = tx.Exec(ctx, `UPDATE inheritance_records SET is_active = false, updated_at = NOW() WHERE instance_id = $1 AND is_active`, instanceID)
	if err != nil {
		return fmt.Errorf("failed to deactivate inheritance record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit deactivation: %w", err)
	}

	return nil
}

func scanInstance(row pgx.Row) (*models.Instance, error) {
	var inst models.Instance
	var fields []byte

	err := row.Scan(
		&inst.ID,
		&inst.OrganizationID,
		&inst.TemplateID,
		&inst.TemplateType,
		&fields,
		&inst.IsActive,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	if len(fields) > 0 && string(fields) != "null" {
		if err := json.Unmarshal(fields, &inst.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instance fields: %w", err)
		}
	}

	return &inst, nil
}

// marshalCustomFields serializes an override map, storing an empty JSON
// object rather than NULL so membership checks stay uniform.
func marshalCustomFields(customFields map[string]any) ([]byte, error) {
	if customFields == nil {
		customFields = map[string]any{}
	}
	data, err := json.Marshal(customFields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal custom fields: %w", err)
	}
	return data, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
