package accessapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/xtown/projecthub/pkg/iam"
	"github.com/xtown/projecthub/pkg/iam/access"
	"github.com/xtown/projecthub/pkg/iam/auth"
)

// AccessHandlers exposes delegated project access: minting project
// tokens, redirecting into destination projects, and the downstream
// validation surface project backends call without a session.
type AccessHandlers struct {
	access *access.Service
}

func NewAccessHandlers(svc *access.Service) *AccessHandlers {
	return &AccessHandlers{access: svc}
}

// RegisterRoutes mounts the delegation endpoints. The project-access
// group is public: destination backends authenticate with the token
// under inspection, not a session.
func (h *AccessHandlers) RegisterRoutes(app *fiber.App, mw *auth.TokenMiddleware, apiLimit fiber.Handler) {
	authed := app.Group("/api/auth", mw.Authenticate())
	authed.Post("/project-token/:customProjectId", h.issueProjectToken)
	authed.Get("/redirect/:customProjectId", h.redirect)
	authed.Get("/my-projects", h.myProjects)

	public := app.Group("/api/project-access")
	if apiLimit != nil {
		public.Use(apiLimit)
	}
	public.Post("/validate-token", h.validateToken)
	public.Get("/check-access/:projectId", h.checkAccess)
}

func meta(c *fiber.Ctx) access.RequestMeta {
	return access.RequestMeta{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
}

func (h *AccessHandlers) issueProjectToken(c *fiber.Ctx) error {
	actor, ok := auth.AuthFromFiber(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	token, claim, err := h.access.IssueProjectToken(c.Context(), actor.UserID, c.Params("customProjectId"), meta(c))
	if err != nil {
		return err
	}

	return iam.OK(c, "Project token issued", fiber.Map{
		"projectToken": token,
		"redirectUrl":  claim.URL,
		"project": fiber.Map{
			"id":              claim.ProjectID,
			"customProjectId": claim.CustomID,
			"name":            claim.Name,
			"role":            claim.Role,
		},
	})
}

func (h *AccessHandlers) redirect(c *fiber.Ctx) error {
	actor, ok := auth.AuthFromFiber(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	target, err := h.access.ResolveRedirect(c.Context(), actor.UserID, c.Params("customProjectId"), meta(c))
	if err != nil {
		return err
	}
	return c.Redirect(target, fiber.StatusFound)
}

func (h *AccessHandlers) myProjects(c *fiber.Ctx) error {
	actor, ok := auth.AuthFromFiber(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	projects, err := h.access.MyProjects(c.Context(), actor.UserID)
	if err != nil {
		return err
	}
	return iam.OK(c, "", fiber.Map{"projects": projects})
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

func (h *AccessHandlers) validateToken(c *fiber.Ctx) error {
	var req validateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if req.Token == "" {
		return auth.ErrMissingToken()
	}

	result, err := h.access.ValidateToken(c.Context(), req.Token, meta(c))
	if err != nil {
		return err
	}
	return iam.OK(c, "Token valid", result)
}

// checkAccess authenticates by the presented token itself, not a
// session, so destination backends can call it directly.
func (h *AccessHandlers) checkAccess(c *fiber.Ctx) error {
	token := auth.BearerToken(c)
	if token == "" {
		return auth.ErrMissingToken()
	}

	check, err := h.access.CheckAccessByToken(c.Context(), token, c.Params("projectId"), meta(c))
	if err != nil {
		return err
	}
	return iam.OK(c, "", check)
}
