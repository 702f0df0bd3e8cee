package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"classifieds/internal/adapter/api"
	"classifieds/internal/adapter/api/handler"
	apimiddleware "classifieds/internal/adapter/api/middleware"
	"classifieds/internal/adapter/api/router"
	"classifieds/internal/adapter/repository"
	"classifieds/internal/domain/service"
	"classifieds/internal/infrastructure/firebase"
	"classifieds/internal/infrastructure/session"
	"classifieds/internal/infrastructure/storage"
	"classifieds/internal/infrastructure/websocket"
	"classifieds/internal/observability"
	"classifieds/internal/usecase"
	"classifieds/pkg/config"
	"classifieds/pkg/logger"
)

const (
	viewIdleTTL     = 30 * time.Minute
	janitorInterval = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Validator = api.NewValidator()

	if !cfg.Ready() {
		logger.Warn("Missing configuration %v, starting in setup mode", cfg.MissingKeys)
		router.SetupSetupModeRouter(e, handler.NewSetupHandler(cfg.MissingKeys))
		serve(ctx, e, cfg.HTTPAddress())
		return
	}

	var opt option.ClientOption
	if cfg.FirebaseServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	} else {
		if _, err := os.Stat(cfg.FirebaseServiceAccountPath); os.IsNotExist(err) {
			logger.Fatal("Service account file does not exist: %s", cfg.FirebaseServiceAccountPath)
		}
		logger.Info("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
		opt = option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		logger.Fatal("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	files, err := newFileService(ctx, cfg, opt)
	if err != nil {
		logger.Fatal("Failed to initialize object storage: %v", err)
	}
	defer files.Close()

	profileRepo := repository.NewFirestoreProfileRepository(firestoreClient)
	postRepo := repository.NewFirestorePostRepository(firestoreClient)
	categoryRepo := repository.NewFirestoreCategoryRepository(firestoreClient)
	locationRepo := repository.NewFirestoreLocationRepository(firestoreClient)
	conversationRepo := repository.NewFirestoreConversationRepository(firestoreClient)
	participantRepo := repository.NewFirestoreParticipantRepository(firestoreClient)
	messageRepo := repository.NewFirestoreMessageRepository(firestoreClient)
	notificationRepo := repository.NewFirestoreNotificationRepository(firestoreClient)
	changeFeed := repository.NewFirestoreChangeFeed(firestoreClient)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)
	tokens := session.NewJWTIssuer(cfg.SessionTokenSecret, cfg.FirebaseProject, map[string]session.Template{
		cfg.SessionTokenTemplate: {Audience: cfg.SessionTokenTemplate, TTL: cfg.SessionTokenTTL},
	})

	roleCache := usecase.NewRoleCache(profileRepo)
	expiry := usecase.NewExpiryCorrector(postRepo, notificationRepo)
	userUseCase := usecase.NewUserUseCase(profileRepo, locationRepo, roleCache)
	authUseCase := usecase.NewAuthUseCase(firebaseAuthClient, tokens, userUseCase, roleCache, cfg.SessionTokenTemplate)
	postUseCase := usecase.NewPostUseCase(postRepo, categoryRepo, locationRepo, files, expiry)
	listingSubmission := usecase.NewListingSubmission(postRepo, categoryRepo, locationRepo, files)
	moderationUseCase := usecase.NewModerationUseCase(postRepo, notificationRepo)
	catalogUseCase := usecase.NewCatalogUseCase(categoryRepo, locationRepo)
	notificationUseCase := usecase.NewNotificationUseCase(notificationRepo)
	conversationService := usecase.NewConversationService(conversationRepo, participantRepo, messageRepo, profileRepo, postRepo)

	wsManager := websocket.NewManager()

	syncOpts := usecase.SyncOptions{
		ConversationPageSize: cfg.ConversationPageSize,
		MessagePageSize:      cfg.MessagePageSize,
		Cooldown:             cfg.MessageCooldown,
	}
	registry := usecase.NewSyncRegistry(func(userID string) *usecase.ConversationSync {
		return usecase.NewConversationSync(userID, conversationService, syncOpts, func(ev usecase.SyncEvent) {
			wsManager.SendToUser(userID, websocket.Event{Type: ev.Type, Data: ev.Data})
		})
	}, viewIdleTTL)
	registry.StartJanitor(ctx, janitorInterval)

	wsManager.SetHandler(handler.NewConversationCommands(registry, wsManager))
	wsManager.OnDisconnect(func(client *websocket.Client, lastForUser bool) {
		handler.StopSession(client)
		if lastForUser {
			registry.Drop(client.UserID)
		}
	})
	wsManager.Start(ctx)

	dispatcher := usecase.NewFeedDispatcher(changeFeed, conversationRepo, registry)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Change feed stopped: %v", err)
		}
	}()

	roleMiddleware := apimiddleware.NewRoleMiddleware(roleCache)
	authMiddleware := apimiddleware.NewAuthMiddleware(authUseCase)

	handlers := &handler.Handlers{
		Auth:         handler.NewAuthHandler(authUseCase),
		User:         handler.NewUserHandler(userUseCase),
		Post:         handler.NewPostHandler(postUseCase, listingSubmission, conversationService, roleMiddleware),
		Catalog:      handler.NewCatalogHandler(catalogUseCase),
		Conversation: handler.NewConversationHandler(conversationService, registry, cfg.ConversationPageSize, cfg.MessagePageSize),
		Notification: handler.NewNotificationHandler(notificationUseCase),
		Admin:        handler.NewAdminHandler(moderationUseCase, userUseCase),
		WebSocket:    handler.NewWebSocketHandler(ctx, wsManager, tokens, cfg.SessionTokenTemplate, cfg.SessionRefreshInterval),
		Health:       handler.NewHealthHandler(firebaseAuthClient, registry),
	}

	e.Use(apimiddleware.RateLimit(cfg.HTTPRateLimit))

	router.Setup(e, handlers, authMiddleware, roleMiddleware)
	router.SetupMetricsRouter(e)
	observability.RegisterMetrics()

	serve(ctx, e, cfg.HTTPAddress())
	expiry.Wait()
}

func newFileService(ctx context.Context, cfg *config.Config, opt option.ClientOption) (service.FileUploadService, error) {
	if cfg.StorageDriver == config.StorageDriverS3 {
		logger.Info("Using S3-compatible storage at %s", cfg.S3Endpoint)
		return storage.NewMinioClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.StorageBucket, cfg.S3PublicBaseURL)
	}
	return storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opt)
}

// serve runs the server until ctx is cancelled and then drains it.
func serve(ctx context.Context, e *echo.Echo, addr string) {
	go func() {
		logger.Info("Starting server on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
