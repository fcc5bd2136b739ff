package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/config"
	"quizmaster-service/internal/infra/memory"
	"quizmaster-service/internal/infra/postgres"
	rediscache "quizmaster-service/internal/infra/redis"
	"quizmaster-service/internal/jobs"
	"quizmaster-service/internal/mail"
	transport "quizmaster-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz management server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// Storage: Postgres when configured, process memory otherwise so the
	// server still runs for local development.
	var (
		userStore    app.UserStore
		catalogStore app.CatalogStore
		attemptStore app.AttemptStore
		attemptRead  app.AttemptReader
		catalogRead  app.Catalog
		reportStore  app.ReportStore
	)
	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		defer db.Close()

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		catalog := postgres.NewCatalogStore(db)
		attempts := postgres.NewAttemptStore(db)
		userStore = postgres.NewUserStore(db)
		catalogStore = catalog
		catalogRead = catalog
		attemptStore = attempts
		attemptRead = attempts
		reportStore = postgres.NewReportStore(pool)
	} else {
		log.Printf("postgres not configured, using in-memory storage")
		store := memory.NewStore()
		userStore = store
		catalogStore = store
		catalogRead = store
		attemptStore = store
		attemptRead = store
		reportStore = store
	}

	cacheTTL := config.TTLDuration(cfg.Cache.TTL, 5*time.Minute)
	var cache transport.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = rediscache.NewStatsCache(client, cacheTTL)
	} else {
		cache = memory.NewCache(cacheTTL)
	}

	var mailer mail.Mailer = mail.Nop{}
	if client := mail.NewAPIClient(cfg.Mail.Endpoint, cfg.Mail.APIKey, cfg.Mail.SenderEmail, cfg.Mail.SenderName); client != nil {
		mailer = client
	}

	authService := app.NewAuthService(userStore)
	catalogService := app.NewCatalogService(catalogStore, attemptRead)
	attemptService := app.NewAttemptService(catalogRead, attemptStore)
	statsService := app.NewStatsService(reportStore)
	exportService := app.NewExportService(reportStore, userStore, mailer)
	hub := app.NewLeaderboardHub(statsService)

	tokenTTL := config.TTLDuration(cfg.Auth.TokenTTL, 72*time.Hour)
	tokens := transport.NewTokenIssuer(cfg.Auth.JWTSecret, tokenTTL)

	scheduler := jobs.NewScheduler(reportStore, statsService, mailer)
	if err := scheduler.Start(cfg.Jobs.RemindersCron, cfg.Jobs.ReportsCron); err != nil {
		return err
	}
	defer scheduler.Stop()

	api := transport.NewServer(authService, catalogService, attemptService, statsService, exportService, hub, tokens, cache)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/", api.Routes())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizmaster service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
