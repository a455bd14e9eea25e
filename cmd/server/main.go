package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"textbook-reader/internal/config"
	"textbook-reader/internal/db"
	"textbook-reader/internal/handlers"
	"textbook-reader/internal/logger"
	"textbook-reader/internal/services"
)

func main() {
	// Bootstrap logger until the configured mode is known
	bootLog, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	// Load configuration
	cfg, err := config.LoadConfig(bootLog)
	if err != nil {
		bootLog.Fatal("Invalid configuration", "error", err)
	}
	bootLog.Sync()

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		bootLog.Fatal("Invalid log mode", "mode", cfg.Log.Mode, "error", err)
	}
	defer log.Sync()

	// Initialize database
	database, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()

	var seed *db.SeedFile
	if cfg.Database.SeedFile != "" {
		seed, err = db.LoadSeedFile(cfg.Database.SeedFile)
		if err != nil {
			log.Fatal("Failed to load seed file", "path", cfg.Database.SeedFile, "error", err)
		}
		if err := db.Seed(database, seed, log); err != nil {
			log.Fatal("Failed to seed content", "error", err)
		}
	}

	// Initialize services
	contentService := services.NewContentService(database, log)
	imageProbe := services.NewImageProbe(cfg.Data.AssetsPath, log)
	progressStore, err := services.NewProgressStore(cfg.Data.Path, log)
	if err != nil {
		log.Fatal("Failed to initialize progress store", "error", err)
	}
	if seed != nil {
		if _, err := imageProbe.ProbeAll(context.Background(), seed.ImageRefs()); err != nil {
			log.Warn("Some page images could not be probed", "error", err)
		}
	}
	readerService := services.NewReaderService(contentService, imageProbe, progressStore, cfg.Reader, log)

	// Initialize handlers
	contentHandler := handlers.NewContentHandler(contentService, log)
	progressHandler := handlers.NewProgressHandler(progressStore, log)
	readerHandler := handlers.NewReaderHandler(readerService, log)
	staticHandler := handlers.NewStaticHandler(imageProbe.Root())

	// Setup routes
	router := handlers.SetupRoutes(contentHandler, progressHandler, readerHandler, staticHandler)

	// Configure server
	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Info("Shutting down", "sessions", readerService.SessionCount())
		readerService.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("Server shutdown incomplete", "error", err)
		}
	}()

	// Configure TLS if enabled
	if cfg.TLS.Enabled {
		server.TLSConfig = &tls.Config{
			MinVersion: getTLSVersion(cfg.TLS.MinVersion),
		}

		log.Info("Starting HTTPS server",
			"addr", server.Addr,
			"cert_file", cfg.TLS.CertFile,
			"key_file", cfg.TLS.KeyFile,
			"min_version", cfg.TLS.MinVersion,
		)
		err = server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		log.Info("Starting HTTP server", "addr", server.Addr)
		log.Warn("HTTP mode is not recommended for production")
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server stopped", "error", err)
	}
}

// getTLSVersion converts string version to tls.Version constant
func getTLSVersion(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
