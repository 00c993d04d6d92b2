package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"p9e.in/pothole/config"
	"p9e.in/pothole/handlers"
	"p9e.in/pothole/middleware"
	"p9e.in/pothole/repository"
	"p9e.in/pothole/routes"
	"p9e.in/pothole/services"
	"p9e.in/pothole/storage"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {

	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	db, err := config.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	defer config.Close(db)

	// Run migrations
	if err := config.Migrations(db); err != nil {
		log.Fatalf("could not run migrations: %v", err)
	}
	if err := config.SeedAdmin(db, cfg.Seed); err != nil {
		log.Printf("Warning: seeding encountered issues: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	images, err := storage.New(context.Background(), storage.Options{
		Backend:         cfg.Storage.Backend,
		UploadDir:       cfg.Storage.UploadDir,
		PublicPrefix:    cfg.Storage.PublicPrefix,
		GCSBucket:       cfg.Storage.GCSBucket,
		GCSCredentials:  cfg.Storage.GCSCredentials,
		GCSObjectPrefix: cfg.Storage.GCSObjectPrefix,
		MaxImageBytes:   cfg.Storage.MaxImageBytes,
	})
	if err != nil {
		log.Fatalf("could not initialise image storage: %v", err)
	}
	if c, ok := images.(io.Closer); ok {
		defer c.Close()
	}

	auth, err := middleware.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("could not initialise auth: %v", err)
	}

	reports := repository.NewPotholeRepository(db)
	lifecycle := services.NewLifecycleService(reports, images)
	query := services.NewQueryService(reports)

	deps := routes.Dependencies{
		Auth:     auth,
		Users:    handlers.NewAuthHandler(db, auth),
		Potholes: handlers.NewPotholeHandler(lifecycle, query, cfg.Storage.MaxImageBytes),
		Exports:  handlers.NewExportHandler(query),
	}
	if cfg.Storage.Backend == "" || cfg.Storage.Backend == "local" {
		deps.UploadDir = cfg.Storage.UploadDir
		deps.UploadPrefix = cfg.Storage.PublicPrefix
	}

	handler := middleware.CORS(cfg.HTTP.CORSOrigin)(routes.RegisterRoutes(deps))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Println("Server starting at port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
