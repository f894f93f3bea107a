package projectapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xtown/projecthub/pkg/iam"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/iam/project"
	"github.com/xtown/projecthub/pkg/iam/project/projectsrv"
	"github.com/xtown/projecthub/pkg/kernel"
)

// ProjectHandlers exposes the project inventory. Mutations are super
// admin only; reads are grant-gated for everyone else.
type ProjectHandlers struct {
	projects *projectsrv.ProjectService
	grants   project.GrantRepository
}

func NewProjectHandlers(projects *projectsrv.ProjectService, grants project.GrantRepository) *ProjectHandlers {
	return &ProjectHandlers{projects: projects, grants: grants}
}

// RegisterRoutes mounts the inventory endpoints under /api/projects.
func (h *ProjectHandlers) RegisterRoutes(app *fiber.App, mw *auth.TokenMiddleware) {
	g := app.Group("/api/projects", mw.Authenticate())

	g.Post("/", mw.RequireSuperAdmin(), h.create)
	g.Get("/", h.list)
	g.Get("/stats", mw.RequireSuperAdmin(), h.stats)

	g.Get("/:customProjectId", h.get)
	g.Put("/:id", mw.RequireSuperAdmin(), h.update)
	g.Delete("/:id", mw.RequireSuperAdmin(), h.delete)
	g.Get("/:id/members", mw.RequireSuperAdmin(), h.members)
}

// ProjectResponse is the public shape of a project.
type ProjectResponse struct {
	ID          kernel.ProjectID `json:"id"`
	CustomID    string           `json:"customProjectId"`
	Name        string           `json:"name"`
	Icon        string           `json:"icon,omitempty"`
	Description string           `json:"description,omitempty"`
	URL         string           `json:"projectUrl,omitempty"`
	IsActive    bool             `json:"isActive"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func newProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		CustomID:    p.CustomID,
		Name:        p.Name,
		Icon:        p.Icon,
		Description: p.Description,
		URL:         p.URL,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
	}
}

type createProjectRequest struct {
	CustomID    string `json:"customProjectId"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	URL         string `json:"projectUrl"`
}

func (h *ProjectHandlers) create(c *fiber.Ctx) error {
	var req createProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if req.Name == "" {
		return iam.ErrMissingField("name")
	}

	p, err := h.projects.Create(c.Context(), projectsrv.CreateProjectInput{
		CustomID:    req.CustomID,
		Name:        req.Name,
		Icon:        req.Icon,
		Description: req.Description,
		URL:         req.URL,
	})
	if err != nil {
		return err
	}

	return iam.Created(c, "Project created", fiber.Map{"project": newProjectResponse(p)})
}

// list returns every project for the super admin and the actor's
// actively granted projects for everyone else.
func (h *ProjectHandlers) list(c *fiber.Ctx) error {
	actor, ok := auth.AuthFromFiber(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	if actor.IsSuperAdmin() {
		all, err := h.projects.List(c.Context())
		if err != nil {
			return err
		}
		out := make([]ProjectResponse, len(all))
		for i, p := range all {
			out[i] = newProjectResponse(p)
		}
		return iam.OK(c, "", fiber.Map{"projects": out})
	}

	views, err := h.grants.ListActiveByUser(c.Context(), actor.UserID)
	if err != nil {
		return err
	}
	out := make([]ProjectResponse, 0, len(views))
	for _, v := range views {
		if !v.Project.IsActive {
			continue
		}
		p := v.Project
		out = append(out, newProjectResponse(&p))
	}
	return iam.OK(c, "", fiber.Map{"projects": out})
}

func (h *ProjectHandlers) stats(c *fiber.Ctx) error {
	stats, err := h.projects.Stats(c.Context())
	if err != nil {
		return err
	}

	recent := make([]ProjectResponse, len(stats.Recent))
	for i, p := range stats.Recent {
		recent[i] = newProjectResponse(p)
	}
	return iam.OK(c, "", fiber.Map{
		"total":  stats.Total,
		"top":    stats.Top,
		"recent": recent,
	})
}

func (h *ProjectHandlers) get(c *fiber.Ctx) error {
	actor, ok := auth.AuthFromFiber(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	p, err := h.projects.GetByCustomID(c.Context(), c.Params("customProjectId"))
	if err != nil {
		return err
	}

	if !actor.IsSuperAdmin() {
		grant, err := h.grants.GetActive(c.Context(), actor.UserID, p.ID)
		if err != nil {
			return err
		}
		if grant == nil {
			return iam.ErrAccessDenied()
		}
	}

	return iam.OK(c, "", fiber.Map{"project": newProjectResponse(p)})
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Icon        *string `json:"icon"`
	Description *string `json:"description"`
	URL         *string `json:"projectUrl"`
	IsActive    *bool   `json:"isActive"`
}

func (h *ProjectHandlers) update(c *fiber.Ctx) error {
	var req updateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}

	p, err := h.projects.Update(c.Context(), kernel.ProjectID(c.Params("id")), projectsrv.UpdateProjectInput{
		Name:        req.Name,
		Icon:        req.Icon,
		Description: req.Description,
		URL:         req.URL,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return err
	}

	return iam.OK(c, "Project updated", fiber.Map{"project": newProjectResponse(p)})
}

func (h *ProjectHandlers) delete(c *fiber.Ctx) error {
	if err := h.projects.Delete(c.Context(), kernel.ProjectID(c.Params("id"))); err != nil {
		return err
	}
	return iam.OK(c, "Project deleted", nil)
}

// MemberResponse is one grant row on a project.
type MemberResponse struct {
	UserID       kernel.UserID      `json:"userId"`
	Role         kernel.ProjectRole `json:"role"`
	ProjectURL   string             `json:"projectUrl,omitempty"`
	LastAccessed *time.Time         `json:"lastAccessed,omitempty"`
	GrantedBy    kernel.UserID      `json:"grantedBy"`
	GrantedAt    time.Time          `json:"grantedAt"`
}

func (h *ProjectHandlers) members(c *fiber.Ctx) error {
	grants, err := h.projects.Members(c.Context(), kernel.ProjectID(c.Params("id")))
	if err != nil {
		return err
	}

	out := make([]MemberResponse, len(grants))
	for i, g := range grants {
		out[i] = MemberResponse{
			UserID:       g.UserID,
			Role:         g.Role,
			ProjectURL:   g.ProjectURL,
			LastAccessed: g.LastAccessed,
			GrantedBy:    g.GrantedBy,
			GrantedAt:    g.CreatedAt,
		}
	}
	return iam.OK(c, "", fiber.Map{"members": out})
}
