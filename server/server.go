// Package server wires the HTTP layer: echo, middleware, the REST API,
// health, and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/encompliance/encompliance/ai/llm"
	"github.com/encompliance/encompliance/internal/profile"
	apiv1 "github.com/encompliance/encompliance/server/router/api/v1"
	"github.com/encompliance/encompliance/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(requestLogger())

	s := &Server{
		Profile:    profile,
		Store:      store,
		echoServer: e,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	hostedLLM, localLLM, err := buildLLMServices(profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create llm services")
	}

	apiService := apiv1.NewAPIV1Service(profile.Secret, profile, store, hostedLLM, localLLM)
	apiService.RegisterRoutes(e)

	return s, nil
}

// buildLLMServices creates the hosted and local model clients. The hosted
// client is nil when no API key is configured; hosted-model requests then
// get the canned fallback reply.
func buildLLMServices(p *profile.Profile) (hosted, local llm.Service, err error) {
	if p.IsHostedLLMEnabled() {
		hosted, err = llm.NewService(&llm.Config{
			Provider: p.LLMProvider,
			APIKey:   p.LLMAPIKey,
			BaseURL:  p.LLMBaseURL,
			Timeout:  p.LLMTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
	} else {
		slog.Warn("no LLM API key configured, hosted models will use fallback replies")
	}

	local, err = llm.NewService(&llm.Config{
		Provider: "lmstudio",
		APIKey:   "not-needed",
		BaseURL:  p.LocalLLMBaseURL,
		Timeout:  p.LLMTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return hosted, local, nil
}

// Start begins serving. It returns once the listener is bound; serving
// continues on a background goroutine until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.echoServer.Listener = listener

	go func() {
		server := &http.Server{
			ReadHeaderTimeout: 30 * time.Second,
		}
		if err := s.echoServer.StartServer(server); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	slog.Info("server shutdown complete")
}

// requestLogger emits one structured line per request. Streaming chat
// responses log after the stream finishes.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				slog.Error("request",
					"method", v.Method, "uri", v.URI, "status", v.Status,
					"latency", v.Latency, "error", v.Error)
				return nil
			}
			slog.Info("request",
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency)
			return nil
		},
	})
}
