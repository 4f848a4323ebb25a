package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/mapper"
	"github.com/bulkmat/order-api/internal/repository"
)

// ProjectService handles business logic for projects. A project belongs to
// the client that created it and supplies the default delivery address and
// site contact of that client's orders.
type ProjectService struct {
	projectRepo *repository.ProjectRepository
	logger      *zap.Logger
}

// NewProjectService creates a new ProjectService
func NewProjectService(projectRepo *repository.ProjectRepository, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// Create registers a project for the calling client
func (s *ProjectService) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.ProjectDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if user.Role != domain.RoleClient {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, fmt.Errorf("%w: name and delivery address are required", ErrInvalidInput)
	}

	project := &domain.Project{ClientID: user.UserID}
	applyProjectRequest(project, req)

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Info("project created",
		zap.Uint("project_id", project.ID),
		zap.Uint("client_id", project.ClientID))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// GetByID returns a project visible to the caller
func (s *ProjectService) GetByID(ctx context.Context, id uint) (*domain.ProjectDTO, error) {
	project, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// Update replaces a project's editable fields. Existing orders keep the
// address and contact they were placed with.
func (s *ProjectService) Update(ctx context.Context, id uint, req *domain.UpdateProjectRequest) (*domain.ProjectDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !user.HasRole(domain.RoleClient, domain.RoleAdmin) {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, fmt.Errorf("%w: name and delivery address are required", ErrInvalidInput)
	}

	project, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyProjectRequest(project, req)

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.logger.Info("project updated", zap.Uint("project_id", project.ID), zap.Uint("user_id", user.UserID))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// List returns a page of the caller's projects
func (s *ProjectService) List(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}

	projects, total, err := s.projectRepo.List(ctx, page, pageSize, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	dtos := make([]domain.ProjectDTO, len(projects))
	for i := range projects {
		dtos[i] = mapper.ToProjectDTO(&projects[i])
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *ProjectService) get(ctx context.Context, id uint) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func applyProjectRequest(project *domain.Project, req *domain.CreateProjectRequest) {
	project.Name = strings.TrimSpace(req.Name)
	project.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
	project.Latitude = req.Latitude
	project.Longitude = req.Longitude
	project.SiteContactName = req.SiteContactName
	project.SiteContactNumber = req.SiteContactNumber
	project.SiteInstructions = req.SiteInstructions
}
