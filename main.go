package main

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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/mux"
	"github.com/redis/rueidis"
	"github.com/rs/cors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"safespace/config"
	"safespace/query"
	"safespace/routes"
	"safespace/services"
	"safespace/socket"
	"safespace/store"
	"safespace/utils"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	serve := func(ctx context.Context, c *cli.Command) error {
		cfg, err := loadConfig(c.String("config"), c.Bool("local"))
		if err != nil {
			return err
		}
		return serveHTTP(ctx, cfg)
	}

	app := &cli.Command{
		Name:  "safespace",
		Usage: "Run the safespace API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to " + config.FileName + " (searched in the config paths when empty)",
			},
			&cli.BoolFlag{
				Name:  "local",
				Usage: "Keep documents, files and the query cache in memory",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP and Socket.IO server",
				Action: serve,
			},
		},
		Action: serve,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx, os.Args)
}

// loadConfig reads the config file. In local mode a missing file falls back
// to the defaults and every backend is forced to memory.
func loadConfig(path string, local bool) (*config.Config, error) {
	cfg, used, err := config.Load(path)
	switch {
	case err == nil:
		log.Printf("Using config file: %s", used)
	case local && errors.Is(err, config.ErrConfigFileNotFound):
		cfg = config.Default()
	default:
		return nil, err
	}

	if local {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Cache.Backend = config.BackendMemory
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	return cfg, nil
}

// backends are the store adapters selected by the config.
type backends struct {
	docs  store.Documents
	files store.Files
	cache query.Cache
	close func()
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{close: func() {}}

	switch cfg.Storage.Backend {
	case config.BackendDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			}
		})
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
				o.UsePathStyle = true
			}
		})

		b.docs = store.NewDynamo(dynamoClient, cfg.Storage.TablePrefix, logger)
		b.files = store.NewS3Files(s3Client, s3.NewPresignClient(s3Client), store.S3Options{
			Bucket:         cfg.Storage.Bucket,
			KeyPrefix:      cfg.Storage.KeyPrefix,
			PreviewBaseURL: cfg.Storage.PreviewBaseURL,
			PresignExpires: cfg.PresignExpires(),
		}, logger)
	default:
		b.docs = store.NewMemory()
		b.files = store.NewMemoryFiles(cfg.Storage.FilesBaseURL)
	}

	switch cfg.Cache.Backend {
	case config.BackendRedis:
		client, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: []string{cfg.RedisAddress()},
			Username:    cfg.Redis.Username,
			Password:    cfg.Redis.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.cache = query.NewRedisCache(client, cfg.CacheTTL(), logger)
		b.close = client.Close
	default:
		b.cache = query.NewMemoryCache()
	}

	return b, nil
}

func serveHTTP(ctx context.Context, cfg *config.Config) error {
	logger, err := utils.NewLogger(cfg.Debug.LogLevel, cfg.Debug.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	logger.Info("Backends ready",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("cache", cfg.Cache.Backend))

	// Initialize Services
	retry := cfg.RetryOptions()
	moderation := services.NewModerationService(cfg.Moderation.Endpoint, cfg.ModerationTimeout(), logger)
	accounts := store.NewDocumentAccounts(b.docs, cfg.Storage.BcryptCost)
	avatars := store.InitialsAvatars{BaseURL: cfg.Avatars.BaseURL}

	api := query.NewAPI(
		query.NewClient(b.cache, query.Options{StaleTime: cfg.StaleTime()}, logger),
		query.Services{
			Auth:    services.NewAuthService(accounts, avatars, b.docs, retry, logger),
			Posts:   services.NewPostService(b.docs, b.files, moderation, retry, logger),
			Users:   services.NewUserService(b.docs, b.files, moderation, retry, logger),
			Follows: services.NewFollowService(b.docs, retry, cfg.Concurrency.MaxLookups, logger),
			Chat:    services.NewChatService(b.docs, retry, cfg.Concurrency.MaxLookups, logger),
		},
	)

	socketServer := socket.NewServer(api, logger)
	go func() {
		if err := socketServer.Serve(); err != nil {
			logger.Error("Socket server stopped", zap.Error(err))
		}
	}()
	defer func() { _ = socketServer.Close() }()

	// Initialize the router
	r := mux.NewRouter()
	routes.RegisterRoutes(r)
	routes.RegisterSocketRoutes(r, socketServer.Handler())

	limiter := routes.NewRateLimiter(routes.RateLimitOptions{
		RequestsPerSecond: cfg.Server.RateLimit,
		Burst:             cfg.Server.RateBurst,
		TrustProxy:        cfg.Server.TrustProxy,
	}, logger)
	apiRouter := routes.APIRouter(r, limiter)
	routes.RegisterAuthRoutes(apiRouter, api, logger)
	routes.RegisterPostRoutes(apiRouter, api, logger)
	routes.RegisterUserRoutes(apiRouter, api, logger)
	routes.RegisterChatRoutes(apiRouter, api, socketServer, logger)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
