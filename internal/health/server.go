// Package health exposes a lightweight HTTP health endpoint for container probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
)

const (
	checkTimeout       = 2 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// UpstreamChecker reports whether the schedule API answers. The current
// schedule date is the cheapest call the API offers.
type UpstreamChecker interface {
	ScheduleDate(ctx context.Context) (time.Time, error)
}

// StatsProvider supplies the subscription count shown in the health body.
type StatsProvider interface {
	CountSubscriptions(ctx context.Context) (int64, error)
}

// Server hosts the health endpoint and owns the underlying HTTP server.
type Server struct {
	server          *http.Server
	logger          *logrus.Entry
	mongoChecker    MongoChecker
	upstreamChecker UpstreamChecker
	stats           StatsProvider
}

type response struct {
	Status        string `json:"status"`
	Mongo         string `json:"mongo,omitempty"`
	ScheduleAPI   string `json:"schedule_api,omitempty"`
	Subscriptions *int64 `json:"subscriptions,omitempty"`
}

// NewServer constructs a health server that exposes GET /healthz on the provided port.
func NewServer(port int, mongoChecker MongoChecker, upstreamChecker UpstreamChecker, stats StatsProvider, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:          logger,
		mongoChecker:    mongoChecker,
		upstreamChecker: upstreamChecker,
		stats:           stats,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the health server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "health_stopped").Info("health server stopped")
			return nil
		}

		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !s.checkMongo(ctx) {
		resp.Status = "degraded"
		resp.Mongo = "error"
	}
	if !s.checkUpstream(ctx) {
		resp.Status = "degraded"
		resp.ScheduleAPI = "error"
	}

	if count, ok := s.countSubscriptions(ctx); ok {
		resp.Subscriptions = &count
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

func (s *Server) checkMongo(ctx context.Context) bool {
	if s.mongoChecker == nil {
		s.logger.WithField("event", "health_mongo_missing").Warn("mongo checker is not configured for health endpoint")
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := s.mongoChecker.Ping(pingCtx); err != nil {
		s.logger.WithField("event", "health_mongo_error").WithError(err).Warn("mongo ping failed during health check")
		return false
	}

	return true
}

func (s *Server) checkUpstream(ctx context.Context) bool {
	if s.upstreamChecker == nil {
		s.logger.WithField("event", "health_upstream_missing").Warn("schedule API checker is not configured for health endpoint")
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if _, err := s.upstreamChecker.ScheduleDate(checkCtx); err != nil {
		s.logger.WithField("event", "health_upstream_error").WithError(err).Warn("schedule API check failed")
		return false
	}

	return true
}

func (s *Server) countSubscriptions(ctx context.Context) (int64, bool) {
	if s.stats == nil {
		return 0, false
	}

	countCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	count, err := s.stats.CountSubscriptions(countCtx)
	if err != nil {
		s.logger.WithField("event", "health_stats_error").WithError(err).Warn("failed to count subscriptions for health check")
		return 0, false
	}

	return count, true
}
