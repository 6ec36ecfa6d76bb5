package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/config"
	"github.com/noah-isme/grading-core/internal/database"
	"github.com/noah-isme/grading-core/internal/handler"
	"github.com/noah-isme/grading-core/internal/middleware"
	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/repository"
	"github.com/noah-isme/grading-core/internal/router"
	"github.com/noah-isme/grading-core/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Submission{},
		&models.GradeRecord{},
		&models.Rubric{},
		&models.RubricItem{},
		&models.RubricOption{},
		&models.StudentProfile{},
		&models.GradingModel{},
		&models.TimingRecord{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	similarity := service.NewNopSimilarityStore()
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		similarity = service.NewRedisSimilarityStore(redisClient, logger)
	}

	events := service.NewNopPublisher()
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		events = service.NewNATSPublisher(natsConn, cfg.EventBase, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	modelRepo := repository.NewModelRepository(db)
	timingRepo := repository.NewTimingRepository(db)

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
	intakeService := service.NewIntakeService(submissionRepo, profileRepo, validate, logger)
	selectorService := service.NewSelectorService(submissionRepo, gradeRepo, profileRepo, timingRepo, routingService, similarity, policy, logger)
	gradingService := service.NewGradingService(submissionRepo, gradeRepo, timingRepo, routingService, events, validate, logger)
	duplicateService := service.NewDuplicateService(submissionRepo, gradeRepo, events, logger)
	reaperService := service.NewReaperService(submissionRepo, gradeRepo, routingService, duplicateService, events, policy, logger)
	moderationService := service.NewModerationService(submissionRepo, gradeRepo, profileRepo, routingService, policy, logger)
	notificationService := service.NewNotificationService(submissionRepo, gradeRepo, policy, logger)

	intakeHandler := handler.NewIntakeHandler(intakeService, logger)
	gradingHandler := handler.NewGradingHandler(selectorService, gradingService, submissionRepo, logger)
	moderationHandler := handler.NewModerationHandler(moderationService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)
	sweepHandler := handler.NewSweepHandler(reaperService, duplicateService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		IntakeHandler:       intakeHandler,
		GradingHandler:      gradingHandler,
		ModerationHandler:   moderationHandler,
		NotificationHandler: notificationHandler,
		SweepHandler:        sweepHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	reaperCtx, cancelReaper := context.WithCancel(context.Background())
	defer cancelReaper()
	go reaperService.Run(reaperCtx, cfg.ReaperInterval)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
