// Package v1 implements the REST API consumed by the chat clients.
package v1

import (
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/encompliance/encompliance/ai/llm"
	"github.com/encompliance/encompliance/internal/profile"
	"github.com/encompliance/encompliance/store"
)

// maxConcurrentStreams caps simultaneously open SSE replies to protect
// the local model endpoint.
const maxConcurrentStreams = 8

type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	// HostedLLM serves recognized hosted models; nil when no API key is
	// configured, in which case hosted requests get the fallback reply.
	HostedLLM llm.Service
	// LocalLLM serves the locally hosted compliance model.
	LocalLLM llm.Service

	streamSemaphore *semaphore.Weighted
}

func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, hostedLLM, localLLM llm.Service) *APIV1Service {
	return &APIV1Service{
		Secret:          secret,
		Profile:         profile,
		Store:           store,
		HostedLLM:       hostedLLM,
		LocalLLM:        localLLM,
		streamSemaphore: semaphore.NewWeighted(maxConcurrentStreams),
	}
}

// RegisterRoutes mounts the API under /api/v1. Everything except the auth
// endpoints requires a valid access token.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	apiV1 := e.Group("/api/v1")

	apiV1.POST("/auth/signup", s.Signup)
	apiV1.POST("/auth/login", s.Login)

	authed := apiV1.Group("", s.AuthMiddleware)
	authed.POST("/chat", s.Chat)
	authed.POST("/chat/stream", s.ChatStream)
	authed.POST("/query-logs", s.CreateQueryLog)
	authed.GET("/query-logs", s.ListQueryLogs)
	authed.DELETE("/query-logs/:id", s.DeleteQueryLog)
	authed.GET("/documents", s.ListDocuments)
	authed.GET("/documents/:id", s.GetDocument)
}
