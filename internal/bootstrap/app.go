// Package bootstrap assembles the application dependency graph from
// configuration: database, object store, model client, services, handlers
// and finally the HTTP router.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"cvgenius-backend/internal/account"
	"cvgenius-backend/internal/analytics"
	googleauth "cvgenius-backend/internal/auth"
	"cvgenius-backend/internal/cvs"
	"cvgenius-backend/internal/llm"
	"cvgenius-backend/internal/llm/anthropic"
	"cvgenius-backend/internal/llm/broker"
	"cvgenius-backend/internal/plans"
	"cvgenius-backend/internal/render"
	"cvgenius-backend/internal/shared/config"
	"cvgenius-backend/internal/shared/server"
	"cvgenius-backend/internal/shared/storage/db"
	"cvgenius-backend/internal/shared/storage/object"
	localstore "cvgenius-backend/internal/shared/storage/object/local"
	s3store "cvgenius-backend/internal/shared/storage/object/s3"
	"cvgenius-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	LLM    llm.Client

	CVGateway        *cvs.Gateway
	UsersRepo        users.Repo
	CVService        *cvs.Service
	PlansService     *plans.Service
	AnalyticsService *analytics.Service
	AccountService   *account.Service
	UsersService     *users.Service
	CVHandler        *cvs.Handler
	AnalyticsHandler *analytics.Handler
	PlansHandler     *plans.Handler
	AccountHandler   *account.Handler
	UsersHandler     *users.Handler
	GoogleAuth       *googleauth.GoogleService
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB, Store: store, LLM: llmClient}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		CVHandler:        app.CVHandler,
		AnalyticsHandler: app.AnalyticsHandler,
		PlansHandler:     app.PlansHandler,
		UsersHandler:     app.UsersHandler,
		AccountHandler:   app.AccountHandler,
		GoogleAuth:       app.GoogleAuth,
		StorageMode:      app.CVGateway.Mode(),
	})

	return app, nil
}

// buildDB connects to Postgres. An empty DATABASE_URL or a failed connection
// selects memory mode for the lifetime of the process; the choice is never
// revisited at runtime.
func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; using in-memory storage")
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("bootstrap: database connect failed; using in-memory storage: %v", err)
		return nil, nil
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("bootstrap: migrations failed; using in-memory storage: %v", err)
		sqlDB.Close()
		return nil, nil
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMTransport {
	case "broker":
		return broker.NewClient(cfg.LLMBrokerURL, cfg.AnthropicModel, cfg.LLMTimeout)
	default:
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			log.Printf("bootstrap: ANTHROPIC_API_KEY empty; model calls will fail")
			return llm.PlaceholderClient{}, nil
		}
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicVersion, cfg.LLMTimeout)
	}
}

func buildServices(app *App) error {
	var primary cvs.CVRepo
	var userRepo users.Repo
	var planSvc *plans.Service

	if app.DB != nil {
		primary = &cvs.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		planSvc = plans.NewPostgresService(plans.NewPGStore(app.DB))
	} else {
		userRepo = users.NewMemoryRepo()
		planSvc = plans.NewService()
	}
	gateway := cvs.NewGateway(primary, cvs.NewMemoryRepo())

	cvSvc := &cvs.Service{
		Repo:    gateway,
		Store:   app.Store,
		LLM:     app.LLM,
		Plans:   planSvc,
		BaseURL: app.Config.BaseURL,
	}

	analyticsSvc := &analytics.Service{Repo: gateway, Access: planSvc}

	userSvc := users.NewService(userRepo)
	googleAuthSvc := googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
	)
	googleAuthSvc.Users = userSvc

	var renderer cvs.PDFRenderer
	if app.Config.ChromePath != "" || app.Config.Env == "production" {
		cr := render.NewChromeRenderer()
		if app.Config.ChromePath != "" {
			cr.ExecPath = app.Config.ChromePath
		}
		renderer = cr
	}

	app.CVGateway = gateway
	app.UsersRepo = userRepo
	app.CVService = cvSvc
	app.PlansService = planSvc
	app.AnalyticsService = analyticsSvc
	app.AccountService = account.NewService(gateway)
	app.UsersService = userSvc
	app.CVHandler = cvs.NewHandler(cvSvc, renderer)
	app.AnalyticsHandler = analytics.NewHandler(analyticsSvc)
	app.PlansHandler = plans.NewHandler(planSvc)
	app.AccountHandler = account.NewHandler(app.AccountService)
	app.UsersHandler = users.NewHandler(userSvc, planSvc)
	app.GoogleAuth = googleAuthSvc

	return nil
}
