package iamcontainer

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/xtown/projecthub/pkg/config"
	"github.com/xtown/projecthub/pkg/iam/access"
	"github.com/xtown/projecthub/pkg/iam/access/accessapi"
	"github.com/xtown/projecthub/pkg/iam/auth"
	"github.com/xtown/projecthub/pkg/iam/auth/authinfra"
	"github.com/xtown/projecthub/pkg/iam/auth/authsrv"
	"github.com/xtown/projecthub/pkg/iam/mail"
	"github.com/xtown/projecthub/pkg/iam/otp/otpinfra"
	"github.com/xtown/projecthub/pkg/iam/otp/otpsrv"
	"github.com/xtown/projecthub/pkg/iam/project/projectapi"
	"github.com/xtown/projecthub/pkg/iam/project/projectinfra"
	"github.com/xtown/projecthub/pkg/iam/project/projectsrv"
	"github.com/xtown/projecthub/pkg/iam/user/userapi"
	"github.com/xtown/projecthub/pkg/iam/user/userinfra"
	"github.com/xtown/projecthub/pkg/iam/user/usersrv"
	"github.com/xtown/projecthub/pkg/logx"
	"github.com/xtown/projecthub/pkg/notifx"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// No hidden globals, no ambient state. Everything comes through here.
// ---------------------------------------------------------------------------

type Deps struct {
	DB    *sqlx.DB
	Redis *redis.Client
	Cfg   *config.Config

	// Notifier is the transactional email client. The IAM module has no
	// knowledge of the concrete provider behind it.
	Notifier *notifx.Client
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module. Only expose what
// cmd/ actually needs. Repos and infra details stay private.
// ---------------------------------------------------------------------------

type Container struct {
	// Services, available for cross-module consumption
	UserService    *usersrv.UserService
	AuthService    *authsrv.AuthService
	OTPService     *otpsrv.OTPService
	ProjectService *projectsrv.ProjectService
	AccessService  *access.Service
	TokenService   auth.TokenService

	// Handlers, needed by cmd/ to register routes
	AuthHandlers    *userapi.AuthHandlers
	UserHandlers    *userapi.UserHandlers
	ProjectHandlers *projectapi.ProjectHandlers
	AccessHandlers  *accessapi.AccessHandlers

	// Middleware, needed by cmd/ to protect route groups
	AuthMiddleware *auth.TokenMiddleware

	// Background services
	CleanupService *authinfra.CleanupService

	limits   userapi.RouteLimits
	apiLimit fiber.Handler
}

// New constructs the entire IAM dependency graph. Order matters:
// repos, then services, then handlers and middleware.
func New(deps Deps) (*Container, error) {
	logx.Info("initializing IAM container")

	c := &Container{}
	cfg := deps.Cfg

	// Repositories
	userRepo := userinfra.NewPostgresUserRepository(deps.DB)
	projectRepo := projectinfra.NewPostgresProjectRepository(deps.DB)
	grantRepo := projectinfra.NewPostgresGrantRepository(deps.DB)
	otpRepo := otpinfra.NewPostgresOTPRepository(deps.DB)
	tokenRepo := authinfra.NewPostgresTokenRepository(deps.DB)
	auditRepo := authinfra.NewPostgresAuditRepository(deps.DB)

	// Infrastructure services
	passwordSvc := userinfra.NewBcryptPasswordService(cfg.Auth.BcryptCost)
	c.TokenService = auth.NewJWTService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.ProjectTokenTTL,
		"projecthub",
	)

	mailer, err := mail.New(deps.Notifier, cfg.Notif.FromEmail, cfg.Notif.FromName)
	if err != nil {
		return nil, err
	}

	// Domain services
	c.OTPService = otpsrv.NewOTPService(otpRepo, mailer, cfg.Auth.OTPTTL, cfg.Auth.OTPResendWindow)

	c.AuthService = authsrv.NewAuthService(
		c.TokenService,
		tokenRepo,
		userRepo,
		grantRepo,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	c.UserService = usersrv.NewUserService(
		userRepo,
		passwordSvc,
		c.OTPService,
		c.AuthService,
		grantRepo,
		mailer,
		cfg.Auth.DefaultSubUsers,
	)

	c.ProjectService = projectsrv.NewProjectService(projectRepo, grantRepo)

	c.AccessService = access.NewService(userRepo, projectRepo, grantRepo, c.TokenService, auditRepo)

	// Middleware
	c.AuthMiddleware = auth.NewAuthMiddleware(c.TokenService, userRepo)

	if cfg.RateLimit.Enabled {
		c.limits = userapi.RouteLimits{
			Auth:  authinfra.RateLimitMiddleware(authinfra.NewRedisRateLimiter(deps.Redis, authinfra.ProfileAuth), authinfra.ProfileAuth.Max),
			OTP:   authinfra.RateLimitMiddleware(authinfra.NewRedisRateLimiter(deps.Redis, authinfra.ProfileOTP), authinfra.ProfileOTP.Max),
			Reset: authinfra.RateLimitMiddleware(authinfra.NewRedisRateLimiter(deps.Redis, authinfra.ProfileReset), authinfra.ProfileReset.Max),
		}
		c.apiLimit = authinfra.RateLimitMiddleware(authinfra.NewRedisRateLimiter(deps.Redis, authinfra.ProfileAPI), authinfra.ProfileAPI.Max)
		logx.Info("rate limiting enabled")
	}

	// Handlers
	c.AuthHandlers = userapi.NewAuthHandlers(c.UserService, c.AuthService)
	c.UserHandlers = userapi.NewUserHandlers(c.UserService)
	c.ProjectHandlers = projectapi.NewProjectHandlers(c.ProjectService, grantRepo)
	c.AccessHandlers = accessapi.NewAccessHandlers(c.AccessService)

	// Background sweeps
	c.CleanupService = authinfra.NewCleanupService(cfg.Auth.CleanupInterval, map[string]authinfra.Sweeper{
		"refresh_tokens": c.AuthService,
		"otp_requests":   c.OTPService,
	})

	logx.Info("IAM container initialized")
	return c, nil
}

// RegisterRoutes mounts every IAM endpoint on the app.
func (c *Container) RegisterRoutes(app *fiber.App) {
	c.AuthHandlers.RegisterRoutes(app, c.AuthMiddleware, c.limits)
	c.UserHandlers.RegisterRoutes(app, c.AuthMiddleware)
	c.ProjectHandlers.RegisterRoutes(app, c.AuthMiddleware)
	c.AccessHandlers.RegisterRoutes(app, c.AuthMiddleware, c.apiLimit)
}

// StartBackgroundServices launches the cleanup loop.
func (c *Container) StartBackgroundServices() {
	c.CleanupService.Start()
	logx.Info("IAM cleanup service started")
}

// StopBackgroundServices ends the cleanup loop, waiting for a running
// sweep to finish.
func (c *Container) StopBackgroundServices() {
	c.CleanupService.Stop()
}
