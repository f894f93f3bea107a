package userapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/xtown/projecthub/pkg/iam"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/iam/user/usersrv"
	"github.com/xtown/projecthub/pkg/kernel"
)

// UserHandlers exposes account administration: creating admins and sub
// users, profile updates, project reassignment, suspension and deletion.
type UserHandlers struct {
	users *usersrv.UserService
}

func NewUserHandlers(users *usersrv.UserService) *UserHandlers {
	return &UserHandlers{users: users}
}

// RegisterRoutes mounts the management endpoints under /api/users. All
// routes require an authenticated admin; some are super admin only.
func (h *UserHandlers) RegisterRoutes(app *fiber.App, mw *auth.TokenMiddleware) {
	g := app.Group("/api/users", mw.Authenticate())

	g.Post("/project-admin", mw.RequireSuperAdmin(), h.createAdmin)
	g.Post("/sub-user", mw.RequireAdmin(), h.createSubUser)

	g.Get("/", mw.RequireAdmin(), h.list)
	g.Get("/stats", mw.RequireSuperAdmin(), h.stats)

	g.Get("/:id", h.get)
	g.Put("/:id", h.update)
	g.Put("/:id/projects", mw.RequireAdmin(), h.updateProjects)
	g.Post("/:id/suspend", mw.RequireAdmin(), h.suspend)
	g.Post("/:id/unsuspend", mw.RequireAdmin(), h.unsuspend)
	g.Delete("/:id", mw.RequireAdmin(), h.delete)
}

func actorFrom(c *fiber.Ctx) (kernel.AuthContext, error) {
	actor, ok := auth.AuthFromFiber(c)
	if !ok {
		return kernel.AuthContext{}, iam.ErrUnauthorized()
	}
	return actor, nil
}

type createAdminRequest struct {
	Email          string                     `json:"email"`
	Password       string                     `json:"password"`
	FirstName      string                     `json:"firstName"`
	LastName       string                     `json:"lastName"`
	Phone          string                     `json:"phone"`
	Company        string                     `json:"company"`
	CompanyAddress string                     `json:"companyAddress"`
	CompanyPhone   string                     `json:"companyPhone"`
	CustomRole     string                     `json:"customRole"`
	SubUserLimit   int                        `json:"subUserLimit"`
	Projects       []projectAssignmentRequest `json:"projects"`
}

func (h *UserHandlers) createAdmin(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req createAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}

	u, err := h.users.CreateAdmin(c.Context(), actor.UserID, usersrv.CreateAdminInput{
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		Company:        req.Company,
		CompanyAddress: req.CompanyAddress,
		CompanyPhone:   req.CompanyPhone,
		CustomRole:     req.CustomRole,
		SubUserLimit:   req.SubUserLimit,
		Projects:       toAssignments(req.Projects),
	})
	if err != nil {
		return err
	}

	return iam.Created(c, "Admin created, activation code sent", fiber.Map{
		"user": newUserResponse(u),
	})
}

type createSubUserRequest struct {
	Email      string                     `json:"email"`
	Password   string                     `json:"password"`
	FirstName  string                     `json:"firstName"`
	LastName   string                     `json:"lastName"`
	Phone      string                     `json:"phone"`
	CustomRole string                     `json:"customRole"`
	Projects   []projectAssignmentRequest `json:"projects"`
}

func (h *UserHandlers) createSubUser(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req createSubUserRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}

	u, err := h.users.CreateSubUser(c.Context(), actor.UserID, usersrv.CreateSubUserInput{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		CustomRole: req.CustomRole,
		Projects:   toAssignments(req.Projects),
	})
	if err != nil {
		return err
	}

	return iam.Created(c, "Sub user created, activation code sent", fiber.Map{
		"user": newUserResponse(u),
	})
}

func (h *UserHandlers) list(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	users, err := h.users.List(c.Context(), actor)
	if err != nil {
		return err
	}
	return iam.OK(c, "", fiber.Map{"users": newUserResponses(users)})
}

func (h *UserHandlers) stats(c *fiber.Ctx) error {
	stats, err := h.users.Stats(c.Context())
	if err != nil {
		return err
	}
	return iam.OK(c, "", fiber.Map{
		"totals": stats,
		"recent": newUserResponses(stats.Recent),
	})
}

func (h *UserHandlers) get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	u, err := h.users.Get(c.Context(), actor, kernel.UserID(c.Params("id")))
	if err != nil {
		return err
	}
	return iam.OK(c, "", fiber.Map{"user": newUserResponse(u)})
}

type updateUserRequest struct {
	FirstName    *string `json:"firstName"`
	LastName     *string `json:"lastName"`
	Phone        *string `json:"phone"`
	Company      *string `json:"company"`
	CustomRole   *string `json:"customRole"`
	SubUserLimit *int    `json:"subUserLimit"`
}

func (h *UserHandlers) update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}

	u, err := h.users.Update(c.Context(), actor, kernel.UserID(c.Params("id")), usersrv.UpdateUserInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Company:      req.Company,
		CustomRole:   req.CustomRole,
		SubUserLimit: req.SubUserLimit,
	})
	if err != nil {
		return err
	}

	return iam.OK(c, "User updated", fiber.Map{"user": newUserResponse(u)})
}

type projectAssignmentRequest struct {
	ProjectID  kernel.ProjectID   `json:"projectId"`
	Role       kernel.ProjectRole `json:"role"`
	ProjectURL string             `json:"projectUrl"`
}

func toAssignments(reqs []projectAssignmentRequest) []usersrv.ProjectAssignment {
	assignments := make([]usersrv.ProjectAssignment, len(reqs))
	for i, p := range reqs {
		assignments[i] = usersrv.ProjectAssignment{
			ProjectID:  p.ProjectID,
			Role:       p.Role,
			ProjectURL: p.ProjectURL,
		}
	}
	return assignments
}

type updateProjectsRequest struct {
	Projects []projectAssignmentRequest `json:"projects"`
}

func (h *UserHandlers) updateProjects(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req updateProjectsRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}

	if err := h.users.UpdateProjects(c.Context(), actor, kernel.UserID(c.Params("id")), toAssignments(req.Projects)); err != nil {
		return err
	}
	return iam.OK(c, "Project access updated", nil)
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

func (h *UserHandlers) suspend(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req suspendRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}

	if err := h.users.Suspend(c.Context(), actor, kernel.UserID(c.Params("id")), req.Reason); err != nil {
		return err
	}
	return iam.OK(c, "User suspended", nil)
}

func (h *UserHandlers) unsuspend(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.users.Unsuspend(c.Context(), actor, kernel.UserID(c.Params("id"))); err != nil {
		return err
	}
	return iam.OK(c, "User unsuspended", nil)
}

func (h *UserHandlers) delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.Context(), actor, kernel.UserID(c.Params("id"))); err != nil {
		return err
	}
	return iam.OK(c, "User deleted", nil)
}
