package cli

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/IrishDec/heiyuquiz-server/internal/app"
	"github.com/IrishDec/heiyuquiz-server/internal/config"
	"github.com/IrishDec/heiyuquiz-server/internal/content"
	"github.com/IrishDec/heiyuquiz-server/internal/infra/memory"
	pgbackend "github.com/IrishDec/heiyuquiz-server/internal/infra/postgres"
	redisinfra "github.com/IrishDec/heiyuquiz-server/internal/infra/redis"
	"github.com/IrishDec/heiyuquiz-server/internal/logging"
	aiprovider "github.com/IrishDec/heiyuquiz-server/internal/providers/ai"
	"github.com/IrishDec/heiyuquiz-server/internal/providers/trivia"
	"github.com/IrishDec/heiyuquiz-server/internal/region"
	transport "github.com/IrishDec/heiyuquiz-server/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(os.Stdout, logging.ParseLevel(cfg.Server.LogLevel))

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var durable app.DurableBackend
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		durable = pgbackend.NewBackend(pool)
	}

	noveltyWindow := config.TTLDuration(cfg.Quiz.NoveltyWindow, 14*24*time.Hour)
	var novelty app.NoveltyStore
	if redisClient != nil {
		novelty = redisinfra.NewNoveltyStore(redisClient, noveltyWindow, log)
	} else {
		novelty = memory.NewNoveltyStore(noveltyWindow)
	}

	var limiter transport.RateLimiter
	if redisClient != nil {
		limiter = redisinfra.NewRateLimiter(redisClient, cfg.RateLimit.PerMinute, time.Minute, log)
	} else {
		limiter = memory.NewRateLimiter(cfg.RateLimit.PerMinute, time.Minute)
	}

	triviaClient := trivia.NewClient(cfg.Trivia.BaseURL, config.TTLDuration(cfg.Trivia.Timeout, 0))
	var ai app.AIProvider
	if cfg.AI.BaseURL != "" && cfg.AI.APIKey != "" {
		ai = aiprovider.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, config.TTLDuration(cfg.AI.Timeout, 0))
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	supplier := app.NewQuestionSupplier(
		triviaClient,
		ai,
		content.NewDefaultFilter(),
		region.NewDefaultPool(),
		region.Categories{},
		novelty,
		rnd,
		log,
	)

	store := memory.NewSessionStore(durable, log)
	service := app.NewSessionLifecycle(store, supplier, app.Options{
		MaxParticipants:      cfg.Quiz.MaxParticipants,
		EnforceCloseOnSubmit: cfg.Quiz.EnforceCloseOnSubmit,
	}, time.Now, rnd, log)

	mux := http.NewServeMux()
	transport.NewHandler(service, log).Register(mux)

	handler := transport.CORS(transport.RateLimit(limiter)(transport.AccessLog(log)(mux)))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting heiyuquiz server", "port", finalPort, "durable", durable != nil, "redis", redisClient != nil, "ai", ai != nil)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
