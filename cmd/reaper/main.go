package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/config"
	"github.com/noah-isme/grading-core/internal/database"
	"github.com/noah-isme/grading-core/internal/repository"
	"github.com/noah-isme/grading-core/internal/service"
)

// Standalone sweep worker. Run this instead of the in-process reaper when the
// API is deployed with more than one replica.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "reaper_worker").Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	events := service.NewNopPublisher()
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-reaper")
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		events = service.NewNATSPublisher(natsConn, cfg.EventBase, logger)
	}

	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	modelRepo := repository.NewModelRepository(db)

	policy := service.Policy{
		MinStaffBeforeML:              cfg.MinStaffBeforeML,
		MinToUsePeer:                  cfg.MinToUsePeer,
		StallTimeout:                  cfg.StallTimeout,
		ExpireAfter:                   cfg.ExpireAfter,
		PeerGradersRequired:           cfg.PeerGradersRequired,
		RequiredPeerGradingPerStudent: cfg.RequiredPeerGradingPerStudent,
		SimilarityThreshold:           cfg.SimilarityThreshold,
		ExcludeBannedGraders:          cfg.ExcludeBannedGraders,
		PeerSearchWindow:              cfg.PeerSearchWindow,
	}

	routingService := service.NewRoutingService(submissionRepo, gradeRepo, modelRepo, policy, logger)
	duplicateService := service.NewDuplicateService(submissionRepo, gradeRepo, events, logger)
	reaperService := service.NewReaperService(submissionRepo, gradeRepo, routingService, duplicateService, events, policy, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Dur("interval", cfg.ReaperInterval).Msg("sweep worker started")
	reaperService.Run(ctx, cfg.ReaperInterval)
	logger.Info().Msg("sweep worker stopped")
}
