package services

import (
	"context"
	"reflect"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/apperrors"
	"github.com/talentcore/talent-engine/pkg/models"
	"github.com/talentcore/talent-engine/pkg/registry"
	"github.com/talentcore/talent-engine/pkg/repositories"
)

// TemplateList is a paginated catalog listing.
type TemplateList struct {
	Templates []*models.Template `json:"templates"`
	Total     int                `json:"total"`
	Offset    int                `json:"offset"`
	Limit     int                `json:"limit"`
}

// SearchOptions describes a cross-type catalog search.
type SearchOptions struct {
	// Types selects which entity kinds to search; empty means all of them.
	Types      []string
	SearchTerm string
	Categories []string
	Offset     int
	Limit      int
}

// CompareRequest names the two templates to diff. TargetType defaults to
// SourceType; Fields defaults to every field present on the source.
type CompareRequest struct {
	SourceID   uuid.UUID
	TargetID   uuid.UUID
	SourceType string
	TargetType string
	Fields     []string
}

// FieldDiff holds both sides of one differing field.
type FieldDiff struct {
	Source any `json:"source"`
	Target any `json:"target"`
}

// CompareResult is a structural diff between two templates: only fields
// whose values differ appear in Differences.
type CompareResult struct {
	SourceID    uuid.UUID            `json:"source_id"`
	TargetID    uuid.UUID            `json:"target_id"`
	Differences map[string]FieldDiff `json:"differences"`
	Identical   bool                 `json:"identical"`
}

// TypeStats reports catalog and adoption figures for one entity kind.
type TypeStats struct {
	TemplateType  string `json:"template_type"`
	Label         string `json:"label"`
	TemplateCount int    `json:"template_count"`
	repositories.InheritanceStats
}

// TemplateService is the catalog query layer: listing, cross-type search,
// comparison, and adoption stats over the shared template catalog.
type TemplateService interface {
	Get(ctx context.Context, templateType string, templateID uuid.UUID) (*models.Template, error)
	List(ctx context.Context, templateType string, opts repositories.ListOptions) (*TemplateList, error)
	Search(ctx context.Context, opts SearchOptions) (*TemplateList, error)
	Compare(ctx context.Context, req CompareRequest) (*CompareResult, error)
	Stats(ctx context.Context, organizationID uuid.UUID, templateType string) ([]TypeStats, error)
}

type templateService struct {
	templateRepo    repositories.TemplateRepository
	inheritanceRepo repositories.InheritanceRepository
	logger          *zap.Logger
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(
	templateRepo repositories.TemplateRepository,
	inheritanceRepo repositories.InheritanceRepository,
	logger *zap.Logger,
) TemplateService {
	return &templateService{
		templateRepo:    templateRepo,
		inheritanceRepo: inheritanceRepo,
		logger:          logger.Named("template-service"),
	}
}

var _ TemplateService = (*templateService)(nil)

func (s *templateService) Get(ctx context.Context, templateType string, templateID uuid.UUID) (*models.Template, error) {
	if _, err := registry.Lookup(templateType); err != nil {
		return nil, err
	}

	template, err := s.templateRepo.GetByID(ctx, templateType, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperrors.ErrTemplateNotFound
	}
	return template, nil
}

func (s *templateService) List(ctx context.Context, templateType string, opts repositories.ListOptions) (*TemplateList, error) {
	if _, err := registry.Lookup(templateType); err != nil {
		return nil, err
	}

	templates, total, err := s.templateRepo.List(ctx, templateType, opts)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []*models.Template{}
	}

	return &TemplateList{
		Templates: templates,
		Total:     total,
		Offset:    opts.Offset,
		Limit:     opts.Limit,
	}, nil
}

func (s *templateService) Search(ctx context.Context, opts SearchOptions) (*TemplateList, error) {
	types := opts.Types
	if len(types) == 0 {
		types = registry.Keys()
	}

	// Fan the per-type search out; one type failing (unsupported or broken)
	// is skipped rather than aborting the merged search.
	var merged []*models.Template
	for _, templateType := range types {
		if !registry.IsSupported(templateType) {
			s.logger.Warn("Skipping unsupported type in search", zap.String("template_type", templateType))
			continue
		}
		templates, _, err := s.templateRepo.List(ctx, templateType, repositories.ListOptions{
			Search:     opts.SearchTerm,
			ActiveOnly: true,
		})
		if err != nil {
			s.logger.Warn("Search failed for type, skipping",
				zap.String("template_type", templateType),
				zap.Error(err))
			continue
		}
		merged = append(merged, templates...)
	}

	if len(opts.Categories) > 0 {
		allowed := make(map[string]bool, len(opts.Categories))
		for _, c := range opts.Categories {
			allowed[c] = true
		}
		filtered := merged[:0]
		for _, template := range merged {
			if allowed[template.Category] {
				filtered = append(filtered, template)
			}
		}
		merged = filtered
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
	})

	total := len(merged)
	page := paginate(merged, opts.Offset, opts.Limit)

	return &TemplateList{
		Templates: page,
		Total:     total,
		Offset:    opts.Offset,
		Limit:     opts.Limit,
	}, nil
}

func (s *templateService) Compare(ctx context.Context, req CompareRequest) (*CompareResult, error) {
	targetType := req.TargetType
	if targetType == "" {
		targetType = req.SourceType
	}

	source, err := s.Get(ctx, req.SourceType, req.SourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.Get(ctx, targetType, req.TargetID)
	if err != nil {
		return nil, err
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = make([]string, 0, len(source.Fields))
		for name := range source.Fields {
			fields = append(fields, name)
		}
		sort.Strings(fields)
	}

	differences := make(map[string]FieldDiff)
	for _, name := range fields {
		sourceValue := source.Fields[name]
		targetValue := target.Fields[name]
		if !reflect.DeepEqual(sourceValue, targetValue) {
			differences[name] = FieldDiff{Source: sourceValue, Target: targetValue}
		}
	}

	return &CompareResult{
		SourceID:    req.SourceID,
		TargetID:    req.TargetID,
		Differences: differences,
		Identical:   len(differences) == 0,
	}, nil
}

func (s *templateService) Stats(ctx context.Context, organizationID uuid.UUID, templateType string) ([]TypeStats, error) {
	types := registry.Keys()
	if templateType != "" {
		if _, err := registry.Lookup(templateType); err != nil {
			return nil, err
		}
		types = []string{templateType}
	}

	templateCounts, err := s.templateRepo.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	inheritanceStats, err := s.inheritanceRepo.StatsByType(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	stats := make([]TypeStats, 0, len(types))
	for _, key := range types {
		entityType, err := registry.Lookup(key)
		if err != nil {
			return nil, err
		}
		stats = append(stats, TypeStats{
			TemplateType:     key,
			Label:            entityType.PluralLabel,
			TemplateCount:    templateCounts[key],
			InheritanceStats: inheritanceStats[key],
		})
	}

	return stats, nil
}

func paginate(templates []*models.Template, offset, limit int) []*models.Template {
	if offset >= len(templates) {
		return []*models.Template{}
	}
	end := len(templates)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return templates[offset:end]
}
