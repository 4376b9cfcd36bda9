package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/demux"
	v1 "github.com/jaennil/guide_helper/backend/demultiplexer/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/protocol"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/usecase"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/config"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/telemetry"
)

// NewRegistry builds the registry of every tile source scheme the service can open.
func NewRegistry(cfg *config.Config, l logger.Logger) *protocol.Registry {
	registry := protocol.NewRegistry(l)
	protocol.RegisterBuiltin(registry, protocol.Options{
		Upstream: cfg.Upstream,
		Logger:   l,
	})
	demux.Register(registry, registry, l)

	for name, uri := range cfg.Demux.Sources {
		registry.Alias(name, uri)
	}

	return registry
}

// NewEngine opens the root tile source and wires it into the HTTP router.
// The returned source must be closed by the caller if it implements io.Closer.
func NewEngine(ctx context.Context, cfg *config.Config, l logger.Logger) (*gin.Engine, tilesource.Source, error) {
	registry := NewRegistry(cfg, l)

	source, err := registry.LoadSource(ctx, cfg.Demux.URI)
	if err != nil {
		return nil, nil, err
	}

	tileUseCase := usecase.NewTileUseCase(source, l)
	h := handler.NewHandler(validator.New(), tileUseCase)

	return v1.NewRouter(h, l, cfg.Telemetry.Enabled), source, nil
}

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("starting demultiplexer service", "aliases", len(cfg.Demux.Sources))

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
	}

	ctx := logger.WithLogger(context.Background(), l)

	gin.SetMode(gin.ReleaseMode)
	router, source, err := NewEngine(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to load tile source", "error", err)
	}
	defer func() {
		if c, ok := source.(io.Closer); ok {
			if err := c.Close(); err != nil {
				l.Error("failed to close tile source", "error", err)
			}
		}
	}()

	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	} else {
		l.Info("http server shutdown completed")
	}

	l.Info("application shutdown completed")
}
