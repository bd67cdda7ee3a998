package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"famibot/internal/ai"
	"famibot/internal/api"
	"famibot/internal/config"
	"famibot/internal/line"
	"famibot/internal/repository/postgres"
	"famibot/internal/service"
	"famibot/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting famibot...")

	// Database
	db, err := config.NewDatabase(cfg, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate("migrations"); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	profileRepo := postgres.NewProfileRepository(db.DB)
	familyRepo := postgres.NewFamilyRepository(db.DB)
	conversationRepo := postgres.NewConversationRepository(db.DB)
	topicRepo := postgres.NewTopicRepository(db.DB)

	// External collaborators
	lineClient, err := line.New(cfg.LineChannelSecret, cfg.LineChannelToken, l)
	if err != nil {
		l.Fatalf("Failed to create LINE client: %v", err)
	}
	generator := ai.NewChatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, 60, 0.9, cfg.AITimeout)

	// Service layer
	svc := service.New(l, service.Config{
		ParticipationRate: cfg.ParticipationRate,
		HistoryLimit:      cfg.HistoryLimit,
		AITimeout:         cfg.AITimeout,
	}, profileRepo, familyRepo, conversationRepo, topicRepo, lineClient, generator)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Scheduled topic broadcasts
	go svc.StartBroadcastScheduler(ctx, cfg.BroadcastHours)

	// HTTP server: webhook + API + metrics
	apiServer := api.NewServer(svc, lineClient, l)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Handler(),
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	l.Info("famibot started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP server...")
	httpServer.Close()

	l.Info("famibot stopped")
}
