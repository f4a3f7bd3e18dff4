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

// ListOptions narrows a catalog template listing.
type ListOptions struct {
	// Search is a case-insensitive substring match on the template name.
	Search string
	// Category filters on the exact category value when non-empty.
	Category string
	// ActiveOnly restricts to active templates.
	ActiveOnly bool
	Offset     int
	Limit      int
}

// TemplateRepository provides read access to the shared template catalog.
// The catalog is organization-agnostic, so queries run directly against the
// pool rather than a tenant scope. The engine never writes to templates.
type TemplateRepository interface {
	GetByID(ctx context.Context, templateType string, templateID uuid.UUID) (*models.Template, error)
	List(ctx context.Context, templateType string, opts ListOptions) ([]*models.Template, int, error)
	CountByType(ctx context.Context) (map[string]int, error)
}

type templateRepository struct {
	db *database.DB
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(db *database.DB) TemplateRepository {
	return &templateRepository{db: db}
}

var _ TemplateRepository = (*templateRepository)(nil)

const templateColumns = `id, template_type, name, description, category, tags, fields, is_active, created_at, updated_at`

func (r *templateRepository) GetByID(ctx context.Context, templateType string, templateID uuid.UUID) (*models.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM catalog_templates
		WHERE id = $1 AND template_type = $2`

	row := r.db.Pool.QueryRow(ctx, query, templateID, templateType)
	template, err := scanTemplate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Template not found
		}
		return nil, err
	}

	return template, nil
}

func (r *templateRepository) List(ctx context.Context, templateType string, opts ListOptions) ([]*models.Template, int, error) {
	where := `WHERE template_type = $1`
	args := []any{templateType}

	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		where += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if opts.Category != "" {
		args = append(args, opts.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if opts.ActiveOnly {
		where += " AND is_active"
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM catalog_templates ` + where
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	query := `SELECT ` + templateColumns + ` FROM catalog_templates ` + where + ` ORDER BY updated_at DESC, name`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, total, nil
}

func (r *templateRepository) CountByType(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT template_type, COUNT(*)
		FROM catalog_templates
		WHERE is_active
		GROUP BY template_type`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count templates by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var templateType string
		var count int
		if err := rows.Scan(&templateType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan template count: %w", err)
		}
		counts[templateType] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template counts: %w", err)
	}

	return counts, nil
}

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var t models.Template
	var description, category *string
	var tags, fields []byte

	err := row.Scan(
		&t.ID,
		&t.TemplateType,
		&t.Name,
		&description,
		&category,
		&tags,
		&fields,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	if description != nil {
		t.Description = *description
	}
	if category != nil {
		t.Category = *category
	}

	if len(tags) > 0 && string(tags) != "null" {
		if err := json.Unmarshal(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if len(fields) > 0 && string(fields) != "null" {
		if err := json.Unmarshal(fields, &t.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
		}
	}

	return &t, nil
}
