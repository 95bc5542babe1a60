package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/ai"
	openai "tailor-backend/internal/ai/openai"
	"tailor-backend/internal/convert"
	"tailor-backend/internal/customizations"
	"tailor-backend/internal/documents"
	"tailor-backend/internal/jobqueue"
	"tailor-backend/internal/render"
	"tailor-backend/internal/server"
	"tailor-backend/internal/shared/config"
	"tailor-backend/internal/shared/storage/db"
	"tailor-backend/internal/shared/storage/object"
	localstore "tailor-backend/internal/shared/storage/object/local"
	s3store "tailor-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies for the api and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  *jobqueue.Queue

	Renderer *render.Pool

	DocumentsRepo      documents.Repo
	CustomizationsRepo customizations.Repo

	DocumentsService      *documents.Service
	CustomizationsService *customizations.Service

	DocumentsHandler      *documents.Handler
	CustomizationsHandler *customizations.Handler
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
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

	queue, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queue,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:               app.Config,
		DocumentHandler:      app.DocumentsHandler,
		CustomizationHandler: app.CustomizationsHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (*jobqueue.Queue, error) {
	queueCfg := jobqueue.Config{
		MaxAttempts: cfg.QueueMaxAttempts,
		BackoffBase: cfg.QueueBackoffBase,
		Concurrency: cfg.QueueConcurrency,
	}

	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Printf("bootstrap: REDIS_ADDR empty; using in-memory job broker")
		return jobqueue.New(jobqueue.NewMemoryBroker(), queueCfg), nil
	}

	broker, err := jobqueue.NewRedisBroker(ctx, jobqueue.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Name:     "customize",
	})
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis connect failed; using in-memory job broker: %v", err)
			return jobqueue.New(jobqueue.NewMemoryBroker(), queueCfg), nil
		}
		return nil, err
	}
	return jobqueue.New(broker, queueCfg), nil
}

func buildServices(app *App) error {
	var docRepo documents.Repo
	var custRepo customizations.Repo
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		custRepo = &customizations.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		custRepo = customizations.NewMemoryRepo()
	}

	aiClient := ai.Client(ai.PlaceholderClient{})
	if strings.TrimSpace(app.Config.OpenAIAPIKey) != "" {
		openaiClient, err := openai.NewClient(app.Config.OpenAIAPIKey, app.Config.LLMModel, app.Config.LLMTimeout)
		if err != nil {
			return err
		}
		aiClient = openaiClient
	}
	aiClient = ai.NewRetryingClient(aiClient, ai.RetryConfig{
		Attempts:  app.Config.LLMRetryAttempts,
		BaseDelay: app.Config.LLMRetryBaseDelay,
	})

	app.Renderer = render.NewPool(func() (render.Engine, error) {
		return render.NewDocxEngine(), nil
	}, app.Config.RenderPoolSize)

	docSvc := documents.NewService(app.Store, docRepo)
	custSvc := &customizations.Service{
		Repo:      custRepo,
		DocRepo:   docRepo,
		Store:     app.Store,
		Converter: convert.NewPDFConverter(app.Store),
		AI:        aiClient,
		Renderer:  app.Renderer,
		Queue:     app.Queue,
	}

	app.DocumentsRepo = docRepo
	app.CustomizationsRepo = custRepo
	app.DocumentsService = docSvc
	app.CustomizationsService = custSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.CustomizationsHandler = customizations.NewHandler(custSvc, app.Store)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
