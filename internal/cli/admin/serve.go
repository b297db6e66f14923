package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/studycompanion/internal/api/handlers"
	"github.com/cloo-solutions/studycompanion/internal/config"
	"github.com/cloo-solutions/studycompanion/internal/database"
	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/jobs"
	"github.com/cloo-solutions/studycompanion/internal/openai"
	"github.com/cloo-solutions/studycompanion/internal/repository"
	"github.com/cloo-solutions/studycompanion/internal/retrieval"
	"github.com/cloo-solutions/studycompanion/internal/server"
	"github.com/cloo-solutions/studycompanion/internal/service"
	"github.com/cloo-solutions/studycompanion/internal/storage"
	"github.com/cloo-solutions/studycompanion/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the study companion API server and, in async mode, the processing worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides STUDY_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "studyd",
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Println("connected to database")

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if _, err := database.Migrate(cfg.DatabaseURL, database.DefaultMigrationsSource); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	app, err := NewApp(ctx, cfg, pool)
	if err != nil {
		return err
	}

	if cfg.InitUserName != "" {
		if err := bootstrapInitialUser(ctx, cfg.InitUserName, cfg.InitAPIKey, app.Auth); err != nil {
			return fmt.Errorf("failed to bootstrap initial user: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if app.Worker != nil {
		go app.Worker.Start(ctx)
		log.Printf("processing worker started (poll interval: %s)", cfg.WorkerPollInterval)
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if app.Worker != nil {
		app.Worker.Stop()
	}

	log.Println("server exited")
	return nil
}

// App is the wired server: its HTTP handler, the auth service used for
// bootstrapping and the processing worker, which is nil in inline mode.
type App struct {
	Router http.Handler
	Auth   *service.AuthService
	Worker *jobs.Worker
}

// NewApp wires repositories, services and handlers for one database pool.
func NewApp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*App, error) {
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	queryRepo := repository.NewQueryRecordRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)

	store, err := newContentStore(ctx, cfg, pool)
	if err != nil {
		return nil, err
	}

	if !cfg.HasOpenAI() {
		log.Println("openai: no API key configured, embedding and generation are unavailable")
	}
	ai := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
		EmbedTimeout:        cfg.EmbedTimeout,
		GenerationTimeout:   cfg.GenerationTimeout,
		Limiter:             openai.NewLimiter(cfg.OpenAIRPS, cfg.OpenAIBurst),
	})

	processor := service.NewDocumentProcessor(docRepo, store, ai, repository.NewTxRunner(pool), service.ProcessorConfig{
		Chunk:        retrieval.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		EmbedWorkers: cfg.EmbedWorkers,
	})

	authSvc := service.NewAuthService(userRepo, apiKeyRepo, &service.DefaultUUIDGenerator{})
	docSvc := service.NewDocumentService(docRepo, chunkRepo, store, processor, !cfg.AsyncProcessing())
	ragSvc := service.NewRAGService(docRepo, chunkRepo, queryRepo, ai, ai, service.RAGConfig{
		MaxChunks:   cfg.MaxChunks,
		MaxTokens:   cfg.RAGMaxTokens,
		Temperature: cfg.RAGTemperature,
	})
	agentSvc := service.NewAgentService(ai, service.AgentConfig{
		MaxTokens:   cfg.AgentMaxTokens,
		Temperature: cfg.AgentTemperature,
	})
	chatSvc := service.NewChatService(conversationRepo, docRepo, ragSvc, agentSvc, service.NewSubjectDetector(ai))

	routerCfg := server.RouterConfig{
		AuthValidator:   authSvc,
		DocumentHandler: handlers.NewDocumentHandler(docSvc, cfg.MaxUploadBytes),
		RAGHandler:      handlers.NewRAGHandler(ragSvc),
		SubjectHandler:  handlers.NewSubjectHandler(agentSvc),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
	}
	if cfg.SignupEnabled {
		routerCfg.AuthHandler = handlers.NewAuthHandler(authSvc)
	}

	app := &App{
		Router: server.NewRouter(routerCfg),
		Auth:   authSvc,
	}
	if cfg.AsyncProcessing() {
		app.Worker = jobs.NewWorker("processing",
			jobs.NewProcessingWorker(docRepo, processor, cfg.WorkerBatchSize),
			cfg.WorkerPollInterval)
	}
	return app, nil
}

// newContentStore prefers S3 when it is configured and falls back to the database.
func newContentStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (service.ContentStore, error) {
	if !cfg.HasS3() {
		log.Println("storage: S3 not configured, storing document content in the database")
		return repository.NewContentRepository(pool), nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	return client, nil
}

type bootstrapAuth interface {
	GetUserByName(ctx context.Context, name string) (*domain.User, error)
	CreateUser(ctx context.Context, name string) (*domain.User, error)
	CreateAPIKeyWithToken(ctx context.Context, userID, name, token string) error
}

// bootstrapInitialUser makes sure the named user exists and, when a token is given,
// owns a key for it. Running it again with the same values changes nothing.
func bootstrapInitialUser(ctx context.Context, userName, token string, auth bootstrapAuth) error {
	if token != "" && !service.IsValidAPIToken(token) {
		return fmt.Errorf("invalid STUDY_INIT_API_KEY format (expected 'stc_<64 hex chars>')")
	}

	user, err := auth.GetUserByName(ctx, userName)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user, err = auth.CreateUser(ctx, userName)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		log.Printf("bootstrap: created user '%s' (id: %s)", user.Name, user.ID)
	case err != nil:
		return fmt.Errorf("failed to check existing user: %w", err)
	default:
		log.Printf("bootstrap: user '%s' already exists (id: %s)", user.Name, user.ID)
	}

	if token == "" {
		return nil
	}

	err = auth.CreateAPIKeyWithToken(ctx, user.ID, "bootstrap", token)
	switch {
	case errors.Is(err, domain.ErrAPIKeyAlreadyExists):
		log.Printf("bootstrap: API key already exists")
	case err != nil:
		return fmt.Errorf("failed to create API key: %w", err)
	default:
		log.Printf("bootstrap: created API key")
	}
	return nil
}
