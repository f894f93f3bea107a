package userapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/xtown/projecthub/pkg/iam"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/iam/auth/authsrv"
	"github.com/xtown/projecthub/pkg/iam/user/usersrv"
)

// AuthHandlers exposes the account lifecycle over HTTP: registration,
// activation, login, token refresh and password recovery.
type AuthHandlers struct {
	users  *usersrv.UserService
	tokens *authsrv.AuthService
}

func NewAuthHandlers(users *usersrv.UserService, tokens *authsrv.AuthService) *AuthHandlers {
	return &AuthHandlers{users: users, tokens: tokens}
}

// RouteLimits carries the per-concern rate limit middleware. Nil entries
// fall back to a passthrough so routes register cleanly with limiting
// disabled.
type RouteLimits struct {
	Auth  fiber.Handler
	OTP   fiber.Handler
	Reset fiber.Handler
}

func passthrough(c *fiber.Ctx) error { return c.Next() }

func (l RouteLimits) normalized() RouteLimits {
	if l.Auth == nil {
		l.Auth = passthrough
	}
	if l.OTP == nil {
		l.OTP = passthrough
	}
	if l.Reset == nil {
		l.Reset = passthrough
	}
	return l
}

// RegisterRoutes mounts the lifecycle endpoints under /api/auth.
func (h *AuthHandlers) RegisterRoutes(app *fiber.App, mw *auth.TokenMiddleware, limits RouteLimits) {
	limits = limits.normalized()

	g := app.Group("/api/auth")

	g.Post("/register", limits.OTP, h.register)
	g.Post("/verify-registration-otp", limits.Auth, h.verifyRegistration)
	g.Get("/check-super-admin", h.checkSuperAdmin)

	g.Post("/login", limits.Auth, h.login)
	g.Post("/refresh-token", limits.Auth, h.refresh)
	g.Post("/logout", h.logout)

	g.Post("/send-activation-otp", limits.OTP, h.sendActivationOTP)
	g.Post("/activate-account", limits.Auth, h.activate)

	g.Post("/forgot-password", limits.Reset, h.forgotPassword)
	g.Post("/reset-password", limits.Reset, h.resetPassword)

	g.Get("/me", mw.Authenticate(), h.me)
}

type registerRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Phone          string `json:"phone"`
	Company        string `json:"company"`
	CompanyAddress string `json:"companyAddress"`
	CompanyPhone   string `json:"companyPhone"`
}

func (r registerRequest) toInput() usersrv.RegisterSuperAdminInput {
	return usersrv.RegisterSuperAdminInput{
		Email:          r.Email,
		Password:       r.Password,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Phone:          r.Phone,
		Company:        r.Company,
		CompanyAddress: r.CompanyAddress,
		CompanyPhone:   r.CompanyPhone,
	}
}

// register only validates and sends the registration OTP. The account is
// created when the OTP comes back on /verify-registration-otp, so an
// abandoned registration leaves nothing behind.
func (h *AuthHandlers) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if req.Email == "" {
		return iam.ErrMissingField("email")
	}

	if err := h.users.RegisterSuperAdmin(c.Context(), req.toInput()); err != nil {
		return err
	}

	return iam.OK(c, "Verification code sent to your email", fiber.Map{
		"email": req.Email,
	})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"otp"`
}

// verifyRegistration re-carries the identity fields from /register
// alongside the OTP and creates the account.
type verifyRegistrationRequest struct {
	registerRequest
	Code string `json:"otp"`
}

func (h *AuthHandlers) verifyRegistration(c *fiber.Ctx) error {
	var req verifyRegistrationRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if req.Email == "" {
		return iam.ErrMissingField("email")
	}

	u, err := h.users.VerifyRegistration(c.Context(), req.registerRequest.toInput(), req.Code)
	if err != nil {
		return err
	}

	pair, err := h.tokens.IssueTokens(c.Context(), u)
	if err != nil {
		return err
	}

	return iam.Created(c, "Account verified", fiber.Map{
		"user":   newUserResponse(u),
		"tokens": pair,
	})
}

func (h *AuthHandlers) checkSuperAdmin(c *fiber.Ctx) error {
	exists, err := h.users.SuperAdminExists(c.Context())
	if err != nil {
		return err
	}
	return iam.OK(c, "", fiber.Map{"exists": exists})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}

	u, err := h.users.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	pair, err := h.tokens.IssueTokens(c.Context(), u)
	if err != nil {
		return err
	}

	projects, err := h.tokens.ProjectClaims(c.Context(), u.ID)
	if err != nil {
		return err
	}

	return iam.OK(c, "Login successful", fiber.Map{
		"user":     newUserResponse(u),
		"tokens":   pair,
		"projects": projects,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandlers) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if req.RefreshToken == "" {
		return auth.ErrMissingToken()
	}

	pair, u, err := h.tokens.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return iam.OK(c, "Token refreshed", fiber.Map{
		"user":   newUserResponse(u),
		"tokens": pair,
	})
}

func (h *AuthHandlers) logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if err := h.tokens.Logout(c.Context(), req.RefreshToken); err != nil {
		return err
	}
	return iam.OK(c, "Logged out", nil)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandlers) sendActivationOTP(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if err := h.users.SendActivationOTP(c.Context(), req.Email); err != nil {
		return err
	}
	return iam.OK(c, "Activation code sent", nil)
}

func (h *AuthHandlers) activate(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}

	u, err := h.users.Activate(c.Context(), req.Email, req.Code)
	if err != nil {
		return err
	}

	return iam.OK(c, "Account activated", fiber.Map{"user": newUserResponse(u)})
}

func (h *AuthHandlers) forgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if err := h.users.ForgotPassword(c.Context(), req.Email); err != nil {
		return err
	}
	// The same message goes out whether or not the email exists.
	return iam.OK(c, "If that email is registered, a reset code is on its way", nil)
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandlers) resetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return iam.ErrInvalidBody()
	}
	if err := h.users.ResetPassword(c.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		return err
	}
	return iam.OK(c, "Password updated", nil)
}

func (h *AuthHandlers) me(c *fiber.Ctx) error {
	actor, ok := auth.AuthFromFiber(c)
	if !ok {
		return iam.ErrUnauthorized()
	}
	u, err := h.users.Get(c.Context(), actor, actor.UserID)
	if err != nil {
		return err
	}
	return iam.OK(c, "", fiber.Map{"user": newUserResponse(u)})
}
