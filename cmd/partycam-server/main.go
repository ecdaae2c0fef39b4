package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
	"github.com/jlyon1/party-camera-ios/config"
	"github.com/jlyon1/party-camera-ios/devserver"
)

func main() {
	configPath := flag.String("config", "partycam-server.json", "Path to the server config file")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Save the config in case it was not found or updated
	if err := cfg.SaveServerConfig(*configPath); err != nil {
		log.Printf("Failed to save configuration: %v", err)
	}

	logger := logging.CreateLogger(logging.LogLevel(cfg.LogLevel), cfg.LogPath, "partycam-server")
	logger.Info("Starting partycam server", "port", cfg.Port, "publicUrl", cfg.PublicURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := initializeGin(cfg)
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	server, err := devserver.NewServer(ctx, cfg, router, logger)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer server.Close()

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddr, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("Server listening", "address", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
