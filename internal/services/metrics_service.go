package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/DanNixon/matrix-remote-closedown/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const serverShutdownTimeout = 5 * time.Second

// MetricsService serves the Prometheus registry and a health check over HTTP.
type MetricsService struct {
	address string
	metrics *metrics.Metrics
	logger  zerolog.Logger

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewMetricsService initializes and returns a new instance of MetricsService.
func NewMetricsService(address string, m *metrics.Metrics, logger zerolog.Logger) *MetricsService {
	return &MetricsService{
		address: address,
		metrics: m,
		logger:  logger,
	}
}

// Start binds the listen address and serves in the background.
func (s *MetricsService) Start() error {
	if s.server != nil {
		s.logger.Warn().Msg("MetricsService is already running")
		return errors.New("metrics service is already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error().Err(err).Str("address", s.address).Msg("Failed to listen")
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.listener = listener
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	s.logger.Info().Str("address", listener.Addr().String()).Msg("MetricsService started successfully")
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight scrapes.
func (s *MetricsService) Stop() error {
	if s.server == nil {
		s.logger.Warn().Msg("MetricsService is not running")
		return errors.New("metrics service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.wg.Wait()

	s.server = nil
	s.listener = nil

	if err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	s.logger.Info().Msg("MetricsService stopped successfully")
	return nil
}

// Addr returns the bound address, or nil if the service is not running.
func (s *MetricsService) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
