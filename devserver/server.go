package devserver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jlyon1/party-camera-ios/ccc/db"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
	"github.com/jlyon1/party-camera-ios/config"
	"github.com/jlyon1/party-camera-ios/photo"
)

// Server bundles the database and the wired service behind a router
type Server struct {
	Service *Service
	Router  *gin.Engine
	db      *sql.DB
}

// NewServer opens the database and object store named in cfg, registers the
// API on router and seeds the first event.
func NewServer(ctx context.Context, cfg *config.ServerConfig, router *gin.Engine, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NopLogger
	}

	var database *sql.DB
	var err error
	if cfg.DatabasePath == ":memory:" {
		database, err = db.NewInMemoryDB()
	} else {
		database, err = db.Open(cfg.DatabasePath)
	}
	if err != nil {
		return nil, err
	}

	eventRepo, err := NewSQLiteEventRepository(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create event repository: %w", err)
	}
	imageRepo, err := NewSQLiteImageRepository(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create image repository: %w", err)
	}

	store, err := NewObjectStore(cfg.StoragePath)
	if err != nil {
		database.Close()
		return nil, err
	}

	service := NewService(
		logger,
		eventRepo,
		imageRepo,
		store,
		NewSigner(cfg.SigningSecret, cfg.PresignTTL()),
		NewJPEGThumbnailGenerator(logger, photo.DefaultThumbnailMaxEdge),
		cfg.PublicURL,
	)

	if err := service.EnsureEvent(ctx, cfg.SeedEventName); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to seed event: %w", err)
	}

	RegisterRoutes(router, NewHandler(logger, service))

	return &Server{Service: service, Router: router, db: database}, nil
}

func (s *Server) Close() error {
	return s.db.Close()
}
