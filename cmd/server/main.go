package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/stormline/dispatch/api"
	contentdb "github.com/stormline/dispatch/db"
	"github.com/stormline/dispatch/internal/classify"
	"github.com/stormline/dispatch/internal/config"
	"github.com/stormline/dispatch/internal/db"
	"github.com/stormline/dispatch/internal/knowledge"
	"github.com/stormline/dispatch/internal/notify"
	"github.com/stormline/dispatch/internal/repository/sqlite"
	"github.com/stormline/dispatch/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	api.SetLogger(logger)
	ollama.SetLogger(logger)

	log.Printf("Starting dispatch server version %s (built at %s)", version, buildTime)

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}

	if err := db.Migrate(ctx, database, contentdb.Migrations); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// import knowledge content: embedded defaults first, then the external
	// content directory if one is configured, with a watcher for live edits
	repo := sqlite.New(database, logger)
	syncer, err := knowledge.NewSyncer(repo, contentdb.KnowledgeSchema, logger)
	if err != nil {
		log.Fatalf("Failed to create knowledge syncer: %v", err)
	}
	if n, err := syncer.ImportFS(ctx, contentdb.Content, "content"); err != nil {
		log.Fatalf("Failed to import embedded knowledge content: %v", err)
	} else {
		logger.Info("embedded knowledge content imported", slog.Int("entries", n))
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if cfg.ContentDir != "" {
		if _, err := syncer.ImportDir(ctx, cfg.ContentDir); err != nil {
			log.Fatalf("Failed to import knowledge content from %s: %v", cfg.ContentDir, err)
		}
		watcher, err := knowledge.NewWatcher(syncer, logger)
		if err != nil {
			log.Fatalf("Failed to create content watcher: %v", err)
		}
		defer watcher.Stop()
		if err := watcher.Watch(watchCtx, cfg.ContentDir); err != nil {
			log.Fatalf("Failed to watch content dir: %v", err)
		}
	}

	// generative fallback is optional; without it the cascade serves static
	// defaults below the database tiers
	var provider classify.Provider
	if cfg.Ollama.BaseURL != "" && cfg.Cascade.Model != "" {
		client, err := ollama.NewDefaultClient(cfg.Ollama, cfg.Cascade.Model)
		if err != nil {
			log.Fatalf("Failed to create ollama client: %v", err)
		}
		defer client.Close()
		provider = client
	}

	hub := notify.NewHub(logger)
	defer hub.Close()

	handler := api.SetupRoutes(cfg, version, buildTime, database, provider, hub)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := database.Close(); err != nil {
		log.Printf("Error closing DB: %v", err)
	}

	log.Println("Server exited")
}
