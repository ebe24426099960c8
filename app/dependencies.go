package app

import (
	"context"
	"fmt"

	"github.com/marvargas/email-registry/auth"
	"github.com/marvargas/email-registry/config"
	"github.com/marvargas/email-registry/handlers"
	"github.com/marvargas/email-registry/middleware"
	"github.com/marvargas/email-registry/policy"
	"github.com/marvargas/email-registry/repositories"
	"github.com/marvargas/email-registry/repositories/postgres"
	"github.com/marvargas/email-registry/services/registry"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Emails    repositories.EmailRepository
	TxManager repositories.TransactionManager

	// Domain
	Evaluator *policy.Evaluator
	Registry  *registry.Service

	// Auth
	TokenService   *auth.TokenService
	AuthMiddleware *middleware.AuthMiddleware

	// HTTP handlers
	EmailHandler  *handlers.EmailHandler
	HealthHandler *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	// Test the connection
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Create the schema in place when migrations are not run separately
	if cfg.Database.InitSchema {
		if err := d.DB.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		d.Logger.Info("schema initialized")
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Emails = repos.Emails
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initAuth initializes the token service and auth middleware
func (d *Dependencies) initAuth(cfg *config.Config) error {
	tokenService, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	d.TokenService = tokenService
	d.AuthMiddleware = middleware.NewAuthMiddleware(tokenService, d.Logger)

	d.Logger.Info("auth initialized", zap.String("issuer", cfg.Auth.Issuer))
	return nil
}

// initServices initializes the policy evaluator and the registry service
func (d *Dependencies) initServices() {
	d.Evaluator = policy.NewEvaluator(d.Logger)
	d.Registry = registry.NewService(d.Emails, d.TxManager, d.Evaluator, d.Logger)
}

// initHandlers initializes the HTTP handlers
func (d *Dependencies) initHandlers() {
	d.EmailHandler = handlers.NewEmailHandler(d.Registry, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
