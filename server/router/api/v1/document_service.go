package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/encompliance/encompliance/store"
)

type documentResponse struct {
	ID         int32  `json:"id"`
	Filename   string `json:"filename"`
	FileType   string `json:"file_type,omitempty"`
	FileSize   int64  `json:"file_size"`
	UploadedTs int64  `json:"uploaded_ts"`
}

// ListDocuments returns the live regulatory documents.
func (s *APIV1Service) ListDocuments(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	docs, err := s.Store.ListDocuments(c.Request().Context(), &store.FindDocument{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list documents")
	}

	out := make([]*documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, convertDocument(doc))
	}
	return c.JSON(http.StatusOK, out)
}

// GetDocument returns one document by id.
func (s *APIV1Service) GetDocument(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	id32 := int32(id)

	docs, err := s.Store.ListDocuments(c.Request().Context(), &store.FindDocument{ID: &id32})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get document")
	}
	if len(docs) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return c.JSON(http.StatusOK, convertDocument(docs[0]))
}

func convertDocument(doc *store.Document) *documentResponse {
	return &documentResponse{
		ID:         doc.ID,
		Filename:   doc.Filename,
		FileType:   doc.FileType,
		FileSize:   doc.FileSize,
		UploadedTs: doc.UploadedTs,
	}
}
