package projectsrv

import (
	"context"
	"sort"
	"time"

	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/kernel"
	"github.com/xtown/projecthub/pkg/logx"
)

// CreateProjectInput carries the fields needed to register a project.
type CreateProjectInput struct {
	CustomID    string
	Name        string
	Icon        string
	Description string
	URL         string
}

// UpdateProjectInput carries optional field updates. Nil fields are left
// untouched. The custom ID is immutable after creation.
type UpdateProjectInput struct {
	Name        *string
	Icon        *string
	Description *string
	URL         *string
	IsActive    *bool
}

// ProjectStats summarizes the project inventory.
type ProjectStats struct {
	Total int `json:"total"`
	// Top holds the five projects with the most live grants.
	Top []ProjectUserCount `json:"top"`
	// Recent holds the five newest projects.
	Recent []*project.Project `json:"-"`
}

// ProjectUserCount is the number of live grants on one project.
type ProjectUserCount struct {
	ProjectID   kernel.ProjectID `json:"projectId"`
	CustomID    string           `json:"customId"`
	Name        string           `json:"name"`
	ActiveUsers int              `json:"activeUsers"`
}

// ProjectService manages the project inventory.
type ProjectService struct {
	repo   project.Repository
	grants project.GrantRepository
}

// NewProjectService creates a project service.
func NewProjectService(repo project.Repository, grants project.GrantRepository) *ProjectService {
	return &ProjectService{repo: repo, grants: grants}
}

// Create registers a new project after validating its custom identifier.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*project.Project, error) {
	if !project.ValidCustomID(input.CustomID) {
		return nil, project.ErrInvalidCustomID().WithDetail("custom_id", input.CustomID)
	}

	now := time.Now()
	p := &project.Project{
		ID:          kernel.NewProjectID(),
		CustomID:    input.CustomID,
		Name:        input.Name,
		Icon:        input.Icon,
		Description: input.Description,
		URL:         input.URL,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{"project_id": p.ID.String(), "custom_id": p.CustomID}).
		Info("project created")
	return p, nil
}

// Get fetches a project by internal ID.
func (s *ProjectService) Get(ctx context.Context, id kernel.ProjectID) (*project.Project, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCustomID fetches a project by its human-chosen identifier.
func (s *ProjectService) GetByCustomID(ctx context.Context, customID string) (*project.Project, error) {
	return s.repo.GetByCustomID(ctx, customID)
}

// List returns all projects.
func (s *ProjectService) List(ctx context.Context) ([]*project.Project, error) {
	return s.repo.List(ctx)
}

// Update applies partial updates to a project.
func (s *ProjectService) Update(ctx context.Context, id kernel.ProjectID, input UpdateProjectInput) (*project.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Icon != nil {
		p.Icon = *input.Icon
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.URL != nil {
		p.URL = *input.URL
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}
	p.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a project and all grants pointing at it.
func (s *ProjectService) Delete(ctx context.Context, id kernel.ProjectID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logx.WithFields(logx.Fields{"project_id": id.String()}).Info("project deleted")
	return nil
}

// Members returns every grant on a project, live or not.
func (s *ProjectService) Members(ctx context.Context, id kernel.ProjectID) ([]*project.UserProject, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.grants.ListByProject(ctx, id)
}

// Stats returns the project count, the five projects with the most
// live grants, and the five newest projects.
func (s *ProjectService) Stats(ctx context.Context) (*ProjectStats, error) {
	projects, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := make([]ProjectUserCount, 0, len(projects))
	for _, p := range projects {
		n, err := s.grants.CountActiveByProject(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		counts = append(counts, ProjectUserCount{
			ProjectID:   p.ID,
			CustomID:    p.CustomID,
			Name:        p.Name,
			ActiveUsers: n,
		})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].ActiveUsers > counts[j].ActiveUsers
	})
	if len(counts) > 5 {
		counts = counts[:5]
	}

	// List returns newest first.
	recent := projects
	if len(recent) > 5 {
		recent = recent[:5]
	}

	return &ProjectStats{Total: len(projects), Top: counts, Recent: recent}, nil
}
