package http_server

import (
	"context"
	"net/http"

	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/config"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
)

func NewServer(ctx context.Context, cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withLoggerMiddleware(ctx, handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// withLoggerMiddleware makes the application logger reachable from every request context.
func withLoggerMiddleware(ctx context.Context, next http.Handler) http.Handler {
	l := logger.FromContext(ctx)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), l)))
	})
}
