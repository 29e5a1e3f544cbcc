package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/queryfed/queryfed/internal/config"
	"github.com/queryfed/queryfed/internal/connector"
)

type Server struct {
	cfg      *config.Config
	http     *http.Server
	registry *connector.Registry // held for graceful close
}

func New(cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	router, registry, err := s.setupRoutes()
	if err != nil {
		return nil, fmt.Errorf("setup routes: %w", err)
	}
	s.registry = registry

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 620 * time.Second, // must outlast the largest per-request timeout
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)

		if s.registry != nil {
			if closeErr := s.registry.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("error closing database connectors")
			} else {
				log.Info().Msg("database connectors closed")
			}
		}

		return err
	case err := <-errCh:
		return err
	}
}
