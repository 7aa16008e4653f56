package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	api "karmaterra-backend/cmd/api"
	authUsecase "karmaterra-backend/internal/auth/usecase"
	"karmaterra-backend/internal/notification"
	pushDelivery "karmaterra-backend/internal/push/delivery"
	pushRepo "karmaterra-backend/internal/push/repository"
	"karmaterra-backend/internal/push/scheduler"
	pushUsecase "karmaterra-backend/internal/push/usecase"
	"karmaterra-backend/pkg/config"
	"karmaterra-backend/pkg/database"
	"karmaterra-backend/pkg/fcm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize repositories (dependency injection)
	var (
		tokenRepo        pushRepo.TokenRepository
		notificationRepo pushRepo.NotificationRepository
	)
	if cfg.Database.Driver == config.DriverBolt {
		boltStore, err := pushRepo.NewBoltStore(cfg.Database.BoltPath)
		if err != nil {
			log.Fatal("Failed to open bolt store:", err)
		}
		defer boltStore.Close()
		tokenRepo, notificationRepo = boltStore, boltStore
		log.Printf("[DB] Using bolt store at %s", cfg.Database.BoltPath)
	} else {
		db, err := database.Open(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		// Auto-migrate database schemas
		if err := database.AutoMigrate(db); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		tokenRepo = pushRepo.NewGormTokenRepository(db)
		notificationRepo = pushRepo.NewGormNotificationRepository(db)
	}

	// Initialize FCM Client (optional, history is still recorded without it)
	var sender pushUsecase.PushSender
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			sender = fcmClient
		}
	} else {
		log.Printf("[WARN] No Firebase credentials configured, FCM disabled")
	}

	// Dispatch workers
	dispatcher := pushUsecase.NewDispatcher(tokenRepo, notificationRepo, sender)
	dispatchQueue := pushUsecase.NewDispatchQueue(dispatcher, cfg.Push.DispatchWorkers, cfg.Push.DispatchQueueSize)
	dispatchQueue.Start()
	defer dispatchQueue.Stop()

	// Stale token pruning
	pruner := scheduler.NewTokenPruner(tokenRepo, cfg.Push.StaleTokenAfter, cfg.Push.PruneInterval)
	pruner.Start()
	defer pruner.Stop()

	// Initialize Notification Service (Pub/Sub)
	// Only start if project ID is configured
	if cfg.GoogleProjectID != "" {
		// Extract short topic name from full resource name if necessary
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, dispatchQueue, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			defer notifService.Close()
			go notifService.Start(ctx)
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, Pub/Sub ingress disabled")
	}

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(cfg)
	router := pushUsecase.NewRouter(cfg.Push.AllowedRoutes, cfg.Push.HomeRoute)
	receipts := pushUsecase.NewReadReceiptUpdater(notificationRepo, cfg.Push.ReceiptTimeout)
	actions := pushUsecase.NewActionHandler(router, nil, receipts)

	// Initialize HTTP handler
	pushHandler := pushDelivery.NewPushHandler(tokenRepo, notificationRepo, actions, dispatchQueue)
	handler := api.NewHandler(authUsecaseInstance, pushHandler)

	// Start server
	if err := handler.Start(ctx, ":"+cfg.Port); err != nil {
		log.Printf("Server error: %v", err)
	}
}
