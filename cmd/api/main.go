package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/laminate-navigator/api/internal/handlers"
	"github.com/laminate-navigator/api/internal/platform/config"
	pfirestore "github.com/laminate-navigator/api/internal/platform/firestore"
	"github.com/laminate-navigator/api/internal/platform/observability"
	"github.com/laminate-navigator/api/internal/platform/pagination"
	"github.com/laminate-navigator/api/internal/platform/secrets"
	"github.com/laminate-navigator/api/internal/repositories"
	"github.com/laminate-navigator/api/internal/repositories/filerepo"
	"github.com/laminate-navigator/api/internal/repositories/firestorerepo"
	"github.com/laminate-navigator/api/internal/repositories/lambdarepo"
	"github.com/laminate-navigator/api/internal/services"
	"github.com/laminate-navigator/api/internal/sessions"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if secrets.IsRef(cfg.Agent.APIKey) {
		fetcher, err := secrets.NewFetcher(ctx,
			secrets.WithLogger(logger),
			secrets.WithDefaultProject(os.Getenv("GOOGLE_CLOUD_PROJECT")),
		)
		if err != nil {
			logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
		}
		key, err := fetcher.Resolve(ctx, cfg.Agent.APIKey)
		if err != nil {
			logger.Fatal("failed to resolve agent API key", zap.Error(err))
		}
		cfg.Agent.APIKey = key
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}

	catalog, cleanup, err := newCatalogRepository(ctx, cfg.Catalog)
	if err != nil {
		logger.Fatal("failed to initialise catalog source", zap.Error(err), zap.String("source", cfg.Catalog.Source))
	}
	defer cleanup(logger)

	resolver, err := services.NewAgentResolver(services.AgentResolverDeps{
		Client:    newOpenAIClient(cfg.Agent),
		Model:     cfg.Agent.Model,
		MaxTokens: cfg.Agent.MaxTokens,
		Timeout:   cfg.Agent.Timeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise agent resolver", zap.Error(err))
	}

	ranker := services.NewRanker()
	cursor, err := services.NewPageCursor(ranker, time.Now)
	if err != nil {
		logger.Fatal("failed to initialise page cursor", zap.Error(err))
	}

	chat, err := services.NewConversationService(services.ConversationServiceDeps{
		Catalog:      catalog,
		Resolver:     resolver,
		Ranker:       ranker,
		Cursor:       cursor,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Clock:        time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise conversation service", zap.Error(err))
	}

	store := sessions.NewStore(sessions.Options{
		TTL:       cfg.Chat.SessionTTL,
		MaxColors: cfg.Chat.MaxColorsPerUser,
		Clock:     time.Now,
	})

	sessionHandlers := handlers.NewSessionHandlers(store, chat, pagination.Options{
		DefaultBatchSize: cfg.Chat.BatchSize,
		MaxBatchSize:     cfg.Chat.MaxBatchSize,
	})

	health := handlers.NewHealthHandlers(
		handlers.WithHealthStartedAt(startedAt),
		handlers.WithReadinessCheck("catalog", func(ctx context.Context) error {
			_, err := catalog.FetchCatalog(ctx)
			return err
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithSessionRoutes(sessionHandlers.Routes),
	)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessionJanitor(sweepCtx, logger, store, cfg.Chat.SessionSweep)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("catalog_source", cfg.Catalog.Source),
			zap.String("agent_model", cfg.Agent.Model),
		)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
	logger.Info("server stopped")
}

// newCatalogRepository builds the catalog source selected by CATALOG_SOURCE
// and a cleanup func for any client it opened.
func newCatalogRepository(ctx context.Context, cfg config.CatalogConfig) (repositories.CatalogRepository, func(*zap.Logger), error) {
	noop := func(*zap.Logger) {}

	switch cfg.Source {
	case config.SourceFile:
		repo, err := filerepo.NewCatalogRepository(cfg.FilePath, cfg.ProductLinkBase)
		return repo, noop, err

	case config.SourceLambda:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.LambdaRegion))
		if err != nil {
			return nil, noop, fmt.Errorf("load aws config: %w", err)
		}
		repo, err := lambdarepo.NewCatalogRepository(lambda.NewFromConfig(awsCfg), lambdarepo.Options{
			FunctionName:    cfg.LambdaFunction,
			PageSize:        cfg.PageSize,
			FetchTimeout:    cfg.FetchTimeout,
			ProductLinkBase: cfg.ProductLinkBase,
		})
		return repo, noop, err

	case config.SourceFirestore:
		provider := pfirestore.NewProvider(pfirestore.Config{ProjectID: cfg.FirestoreProject})
		repo, err := firestorerepo.NewCatalogRepository(provider, cfg.FirestoreCollection, cfg.ProductLinkBase)
		cleanup := func(logger *zap.Logger) {
			if err := provider.Close(); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}
		return repo, cleanup, err

	default:
		return nil, noop, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}

func newOpenAIClient(cfg config.AgentConfig) *openai.Client {
	if cfg.BaseURL == "" {
		return openai.NewClient(cfg.APIKey)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(clientCfg)
}

// sessionJanitor drops idle sessions on a fixed interval until ctx ends.
func sessionJanitor(ctx context.Context, logger *zap.Logger, store *sessions.Store, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.CleanupExpired(time.Now()); removed > 0 {
				logger.Info("expired sessions removed", zap.Int("count", removed))
			}
		}
	}
}
