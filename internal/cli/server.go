package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daily-reflection-service/internal/app"
	"daily-reflection-service/internal/config"
	"daily-reflection-service/internal/domain"
	"daily-reflection-service/internal/infra/memory"
	pgloader "daily-reflection-service/internal/infra/postgres"
	redisinfra "daily-reflection-service/internal/infra/redis"
	transport "daily-reflection-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the reflection server",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(defaultCatalog())
	if pool != nil {
		loader = pgloader.NewCatalogLoader(pool, cfg.Postgres.CatalogID)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalogs app.CatalogRepository
	if redisClient != nil {
		catalogs = redisinfra.NewCatalogCache(redisClient, loader, cfg.Redis.Namespace, catalogTTL)
	} else {
		catalogs = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var store app.StateStore
	if redisClient != nil {
		store = redisinfra.NewStateStore(redisClient, cfg.Redis.Namespace)
	} else {
		store = memory.NewStateStore()
	}

	tracker, err := app.NewTracker(ctx, store, catalogs)
	if err != nil {
		return err
	}
	wsHandler := transport.NewWSHandler(tracker)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting reflection service on :%s", finalPort)
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

// defaultCatalog is the built-in category set; swap the loader with the
// Postgres-backed one to manage catalogs out of band.
func defaultCatalog() domain.Catalog {
	return domain.Catalog{
		ID: "default",
		Categories: []domain.Category{
			{
				ID:   "self-reflection",
				Name: "Self-Reflection",
				Icon: "mirror",
				Questions: []domain.Question{
					{ID: "sr-1", Prompt: "What did you learn about yourself today?"},
					{ID: "sr-2", Prompt: "What's a habit you'd like to develop?"},
					{ID: "sr-3", Prompt: "When did you last step outside your comfort zone?"},
				},
			},
			{
				ID:   "gratitude",
				Name: "Gratitude",
				Icon: "heart",
				Questions: []domain.Question{
					{ID: "gr-1", Prompt: "What are you grateful for today?"},
					{ID: "gr-2", Prompt: "Who made your day a little better?"},
					{ID: "gr-3", Prompt: "What small thing brought you joy recently?"},
					{ID: "gr-4", Prompt: "What comfort do you usually take for granted?"},
				},
			},
			{
				ID:   "mood",
				Name: "Mood Check-in",
				Icon: "sun",
				Questions: []domain.Question{
					{
						ID:      "md-1",
						Prompt:  "How would you describe your energy today?",
						Choices: []string{"Low", "Steady", "High"},
					},
					{
						ID:      "md-2",
						Prompt:  "How connected did you feel to others today?",
						Choices: []string{"Isolated", "Neutral", "Connected"},
					},
					{
						ID:      "md-3",
						Prompt:  "How was your overall mood today?",
						Choices: []string{"Rough", "Okay", "Good", "Great"},
					},
				},
			},
			{
				ID:   "goals",
				Name: "Goals",
				Icon: "target",
				Questions: []domain.Question{
					{ID: "gl-1", Prompt: "What's one step you took toward a goal today?"},
					{ID: "gl-2", Prompt: "What would make tomorrow feel like a success?"},
					{ID: "gl-3", Prompt: "Which goal deserves more of your attention?"},
				},
			},
		},
	}
}
