package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/domain"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uint) (*domain.Project, error) {
	var project domain.Project
	query := r.db.WithContext(ctx).Model(&domain.Project{}).Where("projects.id = ?", id)
	query = ApplyProjectScope(ctx, query)
	err := query.First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *ProjectRepository) List(ctx context.Context, page, pageSize int, search string) ([]domain.Project, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	var projects []domain.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Project{})
	query = ApplyProjectScope(ctx, query)

	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(projects.name) LIKE ? OR LOWER(projects.delivery_address) LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("projects.created_at DESC").Find(&projects).Error

	return projects, total, err
}
