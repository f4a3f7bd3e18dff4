package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/talentcore/talent-engine/pkg/database"
	"github.com/talentcore/talent-engine/pkg/models"
)

// OrganizationRepository provides read access to tenant organizations.
// It runs against the pool directly: the tenant middleware calls Exists
// before any tenant scope is established.
type OrganizationRepository interface {
	GetByID(ctx context.Context, organizationID uuid.UUID) (*models.Organization, error)
	Exists(ctx context.Context, organizationID uuid.UUID) (bool, error)
}

type organizationRepository struct {
	db *database.DB
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(db *database.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

var _ OrganizationRepository = (*organizationRepository)(nil)

func (r *organizationRepository) GetByID(ctx context.Context, organizationID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT id, name, is_active, created_at, updated_at
		FROM organizations
		WHERE id = $1`

	var org models.Organization
	err := r.db.Pool.QueryRow(ctx, query, organizationID).Scan(
		&org.ID,
		&org.Name,
		&org.IsActive,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Organization not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// Exists reports whether an active organization with the given id is known.
func (r *organizationRepository) Exists(ctx context.Context, organizationID uuid.UUID) (bool, error) {
	org, err := r.GetByID(ctx, organizationID)
	if err != nil {
		return false, err
	}
	return org != nil && org.IsActive, nil
}
