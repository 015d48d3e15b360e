package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/encompliance/encompliance/ai/llm"
	"github.com/encompliance/encompliance/server/metrics"
	"github.com/encompliance/encompliance/store"
)

type chatRequest struct {
	Prompt        string  `json:"prompt"`
	OperationType string  `json:"operation_type"`
	Model         string  `json:"model"`
	DocumentIDs   []int64 `json:"document_ids"`
}

type chatResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// streamEvent is one SSE data payload. Exactly one of Text, Done, or
// Error is set per event.
type streamEvent struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// Chat serves a one-shot completion: the full reply in a single JSON
// response. Hosted-model requests without a configured API key, and
// requests that fail upstream, get the canned fallback reply.
func (s *APIV1Service) Chat(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed chat request")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	if !globalChatLimiter.Allow(fmt.Sprintf("user/%d", user.ID)) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}
	metrics.ChatRequests.WithLabelValues("one_shot").Inc()

	ctx := c.Request().Context()
	service, model := s.routeModel(req.Model)
	if service == nil {
		return c.JSON(http.StatusOK, chatResponse{Text: fallbackReply(req.Prompt, req.OperationType)})
	}

	messages := s.buildMessages(c, &req)
	text, err := service.Chat(ctx, model, messages)
	if err != nil {
		metrics.ChatErrors.WithLabelValues("one_shot").Inc()
		slog.Error("chat completion failed", "model", model, "err", err)
		return c.JSON(http.StatusOK, chatResponse{Text: fallbackReply(req.Prompt, req.OperationType)})
	}
	return c.JSON(http.StatusOK, chatResponse{Text: text})
}

// ChatStream serves a completion as a server-sent event stream of
// incremental text fragments, terminated by a done sentinel or an error
// event.
func (s *APIV1Service) ChatStream(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed chat request")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	if !globalChatLimiter.Allow(fmt.Sprintf("user/%d", user.ID)) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	ctx := c.Request().Context()
	if err := s.streamSemaphore.Acquire(ctx, 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "too many open streams")
	}
	defer s.streamSemaphore.Release(1)

	metrics.ChatRequests.WithLabelValues("stream").Inc()
	started := time.Now()
	defer func() {
		metrics.ChatStreamDuration.Observe(time.Since(started).Seconds())
	}()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	service, model := s.routeModel(req.Model)
	if service == nil {
		// No backing model; deliver the fallback as a single fragment.
		if err := writeEvent(resp, streamEvent{Text: fallbackReply(req.Prompt, req.OperationType)}); err != nil {
			return nil
		}
		return writeEvent(resp, streamEvent{Done: true})
	}

	messages := s.buildMessages(c, &req)
	contentChan, errChan := service.ChatStream(ctx, model, messages)

	for chunk := range contentChan {
		if err := writeEvent(resp, streamEvent{Text: chunk}); err != nil {
			// Client went away; drain is handled by ctx cancellation.
			slog.Debug("chat stream client disconnected", "err", err)
			return nil
		}
	}
	if err := <-errChan; err != nil {
		metrics.ChatErrors.WithLabelValues("stream").Inc()
		slog.Error("chat stream failed", "model", model, "err", err)
		return writeEvent(resp, streamEvent{Error: err.Error()})
	}
	return writeEvent(resp, streamEvent{Done: true})
}

// routeModel picks the serving model. Anything that is not a recognized
// hosted model name runs on the local endpoint; hosted models need an API
// key, otherwise nil is returned and the caller falls back.
func (s *APIV1Service) routeModel(requested string) (llm.Service, string) {
	if requested == "" {
		requested = s.Profile.LLMModel
	}
	if requested == s.Profile.LocalLLMModel || !strings.HasPrefix(requested, "gpt") {
		return s.LocalLLM, s.Profile.LocalLLMModel
	}
	if s.HostedLLM == nil {
		return nil, ""
	}
	return s.HostedLLM, requested
}

// buildMessages assembles the system prompt and user prompt. Referenced
// document names are folded into the system prompt so the model can cite
// them.
func (s *APIV1Service) buildMessages(c echo.Context, req *chatRequest) []llm.Message {
	operationType := req.OperationType
	if operationType == "" {
		operationType = "daycare"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a compliance assistant for %s operations in Texas. ", operationType)
	sb.WriteString("Answer questions about childcare regulations accurately, citing the relevant ")
	sb.WriteString("minimum standards sections when possible. If you are not sure, say so rather than guessing.")

	if len(req.DocumentIDs) > 0 {
		names := s.documentNames(c, req.DocumentIDs)
		if len(names) > 0 {
			sb.WriteString(" The user is viewing the following documents: ")
			sb.WriteString(strings.Join(names, ", "))
			sb.WriteString(".")
		}
	}

	return []llm.Message{
		llm.SystemPrompt(sb.String()),
		llm.UserMessage(req.Prompt),
	}
}

func (s *APIV1Service) documentNames(c echo.Context, ids []int64) []string {
	ctx := c.Request().Context()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		id32 := int32(id)
		docs, err := s.Store.ListDocuments(ctx, &store.FindDocument{ID: &id32})
		if err != nil {
			slog.Warn("failed to resolve document", "id", id, "err", err)
			continue
		}
		if len(docs) > 0 {
			names = append(names, docs[0].Filename)
		}
	}
	return names
}

func writeEvent(resp *echo.Response, event streamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
		return err
	}
	resp.Flush()
	return nil
}

// fallbackReply answers common compliance questions without a model.
func fallbackReply(prompt, operationType string) string {
	lower := strings.ToLower(prompt)
	gsa := operationType == "gsa" || strings.Contains(strings.ToLower(operationType), "residential")

	switch {
	case strings.Contains(lower, "ratio") || strings.Contains(lower, "how many children"):
		if gsa {
			return "For general residential operations, caregiver-to-child ratios depend on the ages and needs of the children in care. See the minimum standards for your operation type, particularly §748.1601, for the applicable ratios."
		}
		return "Per §746.1601, the child-to-caregiver ratio for school-age children in a licensed daycare is 26:1. For children aged 5, the ratio is 22:1. For 4-year-olds it is 18:1, and for 3-year-olds it is 15:1. Ratios for younger children are stricter; see §746.1609 for the full table."
	case strings.Contains(lower, "background check"):
		return "All employees, volunteers, and household members at a childcare operation must complete a background check before being present while children are in care. Checks must be renewed every five years, and certain results require a risk evaluation before the person may work."
	case strings.Contains(lower, "training"):
		if gsa {
			return "Caregivers at general residential operations must complete pre-service training before being counted in ratio, plus annual training hours. See §748.930 for the required curriculum and hours."
		}
		return "Daycare caregivers must complete orientation before working with children and at least 24 clock hours of annual training, including required topics in §746.1309 such as child development and age-appropriate activities."
	default:
		return "I can help with questions about childcare minimum standards, including ratios, background checks, training requirements, and physical facility rules. Could you provide more detail about what you'd like to know?"
	}
}
