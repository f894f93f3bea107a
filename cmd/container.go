// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, email provider)
// and composes bounded-context containers. This is the only place that
// knows about ALL modules.
package main

import (
	"context"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/xtown/projecthub/pkg/config"
	"github.com/xtown/projecthub/pkg/iam/iamcontainer"
	"github.com/xtown/projecthub/pkg/logx"
	"github.com/xtown/projecthub/pkg/notifx"
	"github.com/xtown/projecthub/pkg/notifx/notifxconsole"
	"github.com/xtown/projecthub/pkg/notifx/notifxses"
	"github.com/xtown/projecthub/pkg/notifx/notifxsmtp"
)

// Container holds shared infrastructure and composed module containers.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB       *sqlx.DB
	Redis    *redis.Client
	Notifier *notifx.Client

	// Bounded-context containers
	IAM *iamcontainer.Container
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("initializing application container")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure: DB, Redis, email provider
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	c.DB = db
	logx.Info("database connected")

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		if c.Config.RateLimit.Enabled {
			logx.Fatalf("failed to connect to Redis: %v (required while rate limiting is enabled)", err)
		}
		logx.Warnf("Redis unavailable: %v", err)
	} else {
		logx.Info("redis connected")
	}

	c.initNotifier()
}

func (c *Container) initNotifier() {
	notif := c.Config.Notif

	switch notif.Provider {
	case "ses":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(), awsConfig.WithRegion(notif.AWSRegion))
		if err != nil {
			logx.Fatalf("unable to load AWS SDK config: %v", err)
		}
		c.Notifier = notifx.NewClient(notifxses.New(ses.NewFromConfig(awsCfg), notif.FromEmail))
		logx.Infof("email provider: SES (region %s)", notif.AWSRegion)

	case "smtp":
		c.Notifier = notifx.NewClient(notifxsmtp.New(
			notif.SMTPHost, notif.SMTPPort, notif.SMTPUser, notif.SMTPPass, notif.FromEmail,
		))
		logx.Infof("email provider: SMTP (%s:%d)", notif.SMTPHost, notif.SMTPPort)

	case "console":
		c.Notifier = notifx.NewClient(notifxconsole.New())
		logx.Warn("email provider: console (codes are logged, not sent)")

	default:
		logx.Fatalf("unknown NOTIF_PROVIDER: %s (use 'ses', 'smtp' or 'console')", notif.Provider)
	}
}

// ---------------------------------------------------------------------------
// Module composition: each bounded context wires itself
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	iam, err := iamcontainer.New(iamcontainer.Deps{
		DB:       c.DB,
		Redis:    c.Redis,
		Cfg:      c.Config,
		Notifier: c.Notifier,
	})
	if err != nil {
		logx.Fatalf("failed to initialize IAM module: %v", err)
	}
	c.IAM = iam
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices() {
	c.IAM.StartBackgroundServices()
}

func (c *Container) Cleanup() {
	logx.Info("cleaning up resources")

	c.IAM.StopBackgroundServices()

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("error closing database: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("error closing Redis: %v", err)
		}
	}

	logx.Info("cleanup complete")
}
