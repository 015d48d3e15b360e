package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encompliance/encompliance/store"
)

func TestListDocuments_ExcludesDeleted(t *testing.T) {
	driver := newFakeDriver()
	s := newTestService(driver, nil, &stubLLM{})
	user := newTestUser(driver)
	e := echo.New()

	live, err := driver.CreateDocument(t.Context(), &store.Document{Filename: "chapter-746.pdf"})
	require.NoError(t, err)
	gone, err := driver.CreateDocument(t.Context(), &store.Document{Filename: "old.pdf"})
	require.NoError(t, err)
	require.NoError(t, driver.DeleteDocument(t.Context(), &store.DeleteDocument{ID: gone.ID}))

	c, rec := requestAs(t, e, user, http.MethodGet, "/api/v1/documents", "")
	require.NoError(t, s.ListDocuments(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []*documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, live.ID, docs[0].ID)
	assert.Equal(t, "chapter-746.pdf", docs[0].Filename)
}

func TestGetDocument(t *testing.T) {
	driver := newFakeDriver()
	s := newTestService(driver, nil, &stubLLM{})
	user := newTestUser(driver)
	e := echo.New()

	doc, err := driver.CreateDocument(t.Context(), &store.Document{Filename: "chapter-748.pdf", FileSize: 1024})
	require.NoError(t, err)

	c, rec := requestAs(t, e, user, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", doc.ID))
	require.NoError(t, s.GetDocument(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "chapter-748.pdf", got.Filename)
	assert.Equal(t, int64(1024), got.FileSize)

	c, rec = requestAs(t, e, user, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("99999")
	if err := s.GetDocument(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
