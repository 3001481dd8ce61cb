/*
Copyright 2024 The CloudNet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package adminserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the metrics of a registry on /metrics and the registered health checks on
// /live and /ready. Check results are exported as metrics too
type Server struct {
	logger        logger.Logger
	listenAddress string
	router        chi.Router
	health        healthcheck.Handler
	httpServer    *http.Server
}

func NewServer(parentLogger logger.Logger, listenAddress string, metricRegistry *prometheus.Registry) *Server {
	newServer := &Server{
		logger:        parentLogger.GetChild("admin"),
		listenAddress: listenAddress,
		health:        healthcheck.NewMetricsHandler(metricRegistry, "cloudnet"),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)

	router.Get("/live", newServer.health.LiveEndpoint)
	router.Get("/ready", newServer.health.ReadyEndpoint)
	router.Handle("/metrics", promhttp.HandlerFor(metricRegistry, promhttp.HandlerOpts{}))

	newServer.router = router

	return newServer
}

// AddLivenessCheck registers a check failing /live. Must be called before serving
func (s *Server) AddLivenessCheck(name string, check func() error) {
	s.health.AddLivenessCheck(name, check)
}

// AddReadinessCheck registers a check failing /ready. Readiness includes liveness
func (s *Server) AddReadinessCheck(name string, check func() error) {
	s.health.AddReadinessCheck(name, check)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return errors.Wrapf(err, "Failed to listen on %s", s.listenAddress)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.WarnWith("Admin server stopped", "err", err.Error())
		}
	}()

	s.logger.InfoWith("Listening", "listenAddress", listener.Addr().String())

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}
