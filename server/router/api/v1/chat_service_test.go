package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encompliance/encompliance/ai/llm"
	"github.com/encompliance/encompliance/store"
)

func doChat(t *testing.T, s *APIV1Service, user *store.User, body string, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(userContextKey, user)

	err := handler(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestChat_LocalModel(t *testing.T) {
	driver := newFakeDriver()
	local := &stubLLM{
		chatFn: func(ctx context.Context, model string, messages []llm.Message) (string, error) {
			require.Equal(t, "local-model", model)
			require.Len(t, messages, 2)
			assert.Equal(t, "system", messages[0].Role)
			assert.Contains(t, messages[0].Content, "daycare operations")
			assert.Equal(t, "What is the ratio for infants?", messages[1].Content)
			return "Per §746.1601, the ratio is 4:1 for infants.", nil
		},
	}
	s := newTestService(driver, nil, local)
	user := newTestUser(driver)

	rec := doChat(t, s, user, `{"prompt":"What is the ratio for infants?","operation_type":"daycare","model":"local-model"}`, s.Chat)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Per §746.1601, the ratio is 4:1 for infants.", resp.Text)
	assert.Empty(t, resp.Error)
}

func TestChat_HostedModel(t *testing.T) {
	driver := newFakeDriver()
	hosted := &stubLLM{
		chatFn: func(ctx context.Context, model string, messages []llm.Message) (string, error) {
			require.Equal(t, "gpt-4o", model)
			return "hosted reply", nil
		},
	}
	local := &stubLLM{
		chatFn: func(ctx context.Context, model string, messages []llm.Message) (string, error) {
			t.Fatal("local model should not be used for gpt models")
			return "", nil
		},
	}
	s := newTestService(driver, hosted, local)
	user := newTestUser(driver)

	rec := doChat(t, s, user, `{"prompt":"hello","model":"gpt-4o"}`, s.Chat)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hosted reply", resp.Text)
}

func TestChat_FallbackWithoutHostedModel(t *testing.T) {
	driver := newFakeDriver()
	s := newTestService(driver, nil, &stubLLM{})
	user := newTestUser(driver)

	rec := doChat(t, s, user, `{"prompt":"What is the child ratio?","model":"gpt-4o"}`, s.Chat)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Text, "§746.1601")
}

func TestChat_FallbackOnUpstreamError(t *testing.T) {
	driver := newFakeDriver()
	local := &stubLLM{
		chatFn: func(ctx context.Context, model string, messages []llm.Message) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	s := newTestService(driver, nil, local)
	user := newTestUser(driver)

	rec := doChat(t, s, user, `{"prompt":"What training is required?"}`, s.Chat)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Text, "§746.1309")
}

func TestChat_EmptyPromptRejected(t *testing.T) {
	driver := newFakeDriver()
	s := newTestService(driver, nil, &stubLLM{})
	user := newTestUser(driver)

	rec := doChat(t, s, user, `{"prompt":"   "}`, s.Chat)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_RateLimited(t *testing.T) {
	driver := newFakeDriver()
	local := &stubLLM{
		chatFn: func(ctx context.Context, model string, messages []llm.Message) (string, error) {
			return "ok", nil
		},
	}
	s := newTestService(driver, nil, local)
	user := newTestUser(driver)

	limited := false
	for i := 0; i < 10; i++ {
		rec := doChat(t, s, user, `{"prompt":"hello"}`, s.Chat)
		if rec.Code == http.StatusTooManyRequests {
			assert.Contains(t, rec.Body.String(), "rate limit exceeded")
			limited = true
			break
		}
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.True(t, limited, "expected the burst to exhaust within 10 requests")
}

func TestChat_DocumentNamesInSystemPrompt(t *testing.T) {
	driver := newFakeDriver()
	doc, err := driver.CreateDocument(context.Background(), &store.Document{Filename: "minimum-standards-746.pdf"})
	require.NoError(t, err)

	var gotSystem string
	local := &stubLLM{
		chatFn: func(ctx context.Context, model string, messages []llm.Message) (string, error) {
			gotSystem = messages[0].Content
			return "ok", nil
		},
	}
	s := newTestService(driver, nil, local)
	user := newTestUser(driver)

	body, _ := json.Marshal(chatRequest{Prompt: "hello", DocumentIDs: []int64{int64(doc.ID)}})
	rec := doChat(t, s, user, string(body), s.Chat)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, gotSystem, "minimum-standards-746.pdf")
}

func parseSSE(t *testing.T, body string) []streamEvent {
	t.Helper()
	events := []streamEvent{}
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var event streamEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &event))
		events = append(events, event)
	}
	return events
}

func TestChatStream_ChunksThenDone(t *testing.T) {
	driver := newFakeDriver()
	local := &stubLLM{
		streamFn: func(ctx context.Context, model string, messages []llm.Message) ([]string, error) {
			return []string{"Per §746.1601, ", "ratio is ", "11:1"}, nil
		},
	}
	s := newTestService(driver, nil, local)
	user := newTestUser(driver)

	rec := doChat(t, s, user, `{"prompt":"ratio?","model":"local-model"}`, s.ChatStream)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, "Per §746.1601, ", events[0].Text)
	assert.Equal(t, "ratio is ", events[1].Text)
	assert.Equal(t, "11:1", events[2].Text)
	assert.True(t, events[3].Done)
}

func TestChatStream_ErrorEvent(t *testing.T) {
	driver := newFakeDriver()
	local := &stubLLM{
		streamFn: func(ctx context.Context, model string, messages []llm.Message) ([]string, error) {
			return []string{"partial"}, errors.New("model crashed")
		},
	}
	s := newTestService(driver, nil, local)
	user := newTestUser(driver)

	rec := doChat(t, s, user, `{"prompt":"hello"}`, s.ChatStream)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "partial", events[0].Text)
	assert.Contains(t, events[1].Error, "model crashed")
	assert.False(t, events[1].Done)
}

func TestChatStream_FallbackWithoutHostedModel(t *testing.T) {
	driver := newFakeDriver()
	s := newTestService(driver, nil, &stubLLM{})
	user := newTestUser(driver)

	rec := doChat(t, s, user, `{"prompt":"background check requirements","model":"gpt-4o"}`, s.ChatStream)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Contains(t, events[0].Text, "background check")
	assert.True(t, events[1].Done)
}

func TestRouteModel(t *testing.T) {
	hosted := &stubLLM{}
	local := &stubLLM{}
	s := newTestService(newFakeDriver(), hosted, local)

	tests := []struct {
		requested string
		want      llm.Service
		wantModel string
	}{
		{"local-model", local, "local-model"},
		{"llama3.1", local, "local-model"},
		{"gpt-4o", hosted, "gpt-4o"},
		{"gpt-3.5-turbo", hosted, "gpt-3.5-turbo"},
		{"", hosted, "gpt-4o-mini"},
	}
	for _, tt := range tests {
		service, model := s.routeModel(tt.requested)
		assert.True(t, service == tt.want, "requested %q routed to wrong service", tt.requested)
		assert.Equal(t, tt.wantModel, model, "requested %q", tt.requested)
	}

	// Hosted models fall back when no API key is configured.
	s.HostedLLM = nil
	service, _ := s.routeModel("gpt-4o")
	assert.Nil(t, service)
}
