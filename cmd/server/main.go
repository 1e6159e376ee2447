package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/imagevault/backend/internal/config"
	"github.com/imagevault/backend/internal/database"
	"github.com/imagevault/backend/internal/handlers"
	"github.com/imagevault/backend/internal/middleware"
	"github.com/imagevault/backend/internal/services"
	"github.com/imagevault/backend/internal/storage"
	"github.com/imagevault/backend/pkg/logger"
	"github.com/imagevault/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	objectStore, err := newObjectStore(cfg)
	if err != nil {
		log.Fatalf("object store initialization failed: %v", err)
	}

	pathService := services.NewPathService(db)

	authHandler := handlers.NewAuthHandler(db)
	foldersHandler := handlers.NewFoldersHandler(db, pathService)
	imagesHandler := handlers.NewImagesHandler(db, objectStore, int64(cfg.Upload.MaxBytes))

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: cfg.Upload.MaxBytes})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 15 * time.Minute,
	}))
	app.Use(middleware.CORS(cfg.Server.ClientURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/signup", authHandler.Signup)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/", foldersHandler.List)
	folderRoutes.Get("/:id", foldersHandler.Get)
	folderRoutes.Put("/:id", foldersHandler.Update)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	imageRoutes := api.Group("/images", authMiddleware.RequireAuth)
	imageRoutes.Post("/upload", imagesHandler.Upload)
	imageRoutes.Get("/", imagesHandler.List)
	imageRoutes.Get("/search", imagesHandler.Search)
	imageRoutes.Get("/:id", imagesHandler.Get)
	imageRoutes.Put("/:id", imagesHandler.Update)
	imageRoutes.Delete("/:id", imagesHandler.Delete)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":           cfg.Server.Port,
		"storage_driver": cfg.Server.StorageDriver,
		"upload_limit":   cfg.Upload.MaxBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

type bucketEnsurer interface {
	storage.ObjectStore
	EnsureBucket(ctx context.Context) error
}

func newObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	var (
		store bucketEnsurer
		err   error
	)

	switch cfg.Server.StorageDriver {
	case config.StorageDriverS3:
		store, err = storage.NewS3Client(cfg.S3)
	case config.StorageDriverMinIO:
		store, err = storage.NewMinIOClient(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Server.StorageDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.EnsureBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("failed ensuring bucket: %w", err)
	}
	return store, nil
}
