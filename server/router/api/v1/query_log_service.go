package v1

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/encompliance/encompliance/server/metrics"
	"github.com/encompliance/encompliance/store"
)

type createQueryLogRequest struct {
	Query         string  `json:"query"`
	Response      string  `json:"response"`
	OperationType string  `json:"operation_type"`
	DocumentIDs   []int64 `json:"document_ids"`
}

type queryLogResponse struct {
	ID            int32   `json:"id"`
	UID           string  `json:"uid"`
	Query         string  `json:"query"`
	Response      string  `json:"response"`
	OperationType string  `json:"operation_type,omitempty"`
	DocumentIDs   []int64 `json:"document_ids,omitempty"`
	CreatedTs     int64   `json:"created_ts"`
}

// CreateQueryLog records one completed chat exchange. The client treats
// this as best effort, so failures here never affect reply delivery.
func (s *APIV1Service) CreateQueryLog(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createQueryLogRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed query log request")
	}
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.Response) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query and response are required")
	}

	log, err := s.Store.CreateQueryLog(c.Request().Context(), &store.QueryLog{
		UID:           shortuuid.New(),
		UserID:        user.ID,
		Query:         req.Query,
		Response:      req.Response,
		OperationType: req.OperationType,
		DocumentIDs:   req.DocumentIDs,
		CreatedTs:     time.Now().Unix(),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save query log")
	}

	metrics.QueryLogWrites.Inc()
	return c.JSON(http.StatusCreated, convertQueryLog(log))
}

// ListQueryLogs returns the current user's history, newest first.
func (s *APIV1Service) ListQueryLogs(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
		}
		limit = parsed
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be non-negative")
		}
		offset = parsed
	}

	logs, err := s.Store.ListQueryLogs(c.Request().Context(), &store.FindQueryLog{
		UserID: &user.ID,
		Limit:  &limit,
		Offset: &offset,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list query logs")
	}

	out := make([]*queryLogResponse, 0, len(logs))
	for _, log := range logs {
		out = append(out, convertQueryLog(log))
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteQueryLog removes one of the current user's history entries.
func (s *APIV1Service) DeleteQueryLog(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query log id")
	}
	id32 := int32(id)

	logs, err := s.Store.ListQueryLogs(c.Request().Context(), &store.FindQueryLog{ID: &id32, UserID: &user.ID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up query log")
	}
	if len(logs) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "query log not found")
	}

	if err := s.Store.DeleteQueryLog(c.Request().Context(), &store.DeleteQueryLog{ID: id32, UserID: user.ID}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete query log")
	}
	return c.NoContent(http.StatusNoContent)
}

func convertQueryLog(log *store.QueryLog) *queryLogResponse {
	return &queryLogResponse{
		ID:            log.ID,
		UID:           log.UID,
		Query:         log.Query,
		Response:      log.Response,
		OperationType: log.OperationType,
		DocumentIDs:   log.DocumentIDs,
		CreatedTs:     log.CreatedTs,
	}
}
