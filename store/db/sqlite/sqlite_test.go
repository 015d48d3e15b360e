package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encompliance/encompliance/internal/profile"
	"github.com/encompliance/encompliance/store"
)

func newTestDB(t *testing.T) store.Driver {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}
	driver, err := NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	require.NoError(t, driver.Migrate(t.Context()))
	return driver
}

func TestUserCRUD(t *testing.T) {
	driver := newTestDB(t)
	ctx := t.Context()

	created, err := driver.CreateUser(ctx, &store.User{
		Username:     "director",
		Email:        "director@example.com",
		PasswordHash: "hash",
		Role:         store.RoleMember,
		CreatedTs:    100,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	username := "director"
	users, err := driver.ListUsers(ctx, &store.FindUser{Username: &username})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "director@example.com", users[0].Email)
	assert.Equal(t, store.RoleMember, users[0].Role)

	newHash := "newhash"
	updated, err := driver.UpdateUser(ctx, &store.UpdateUser{ID: created.ID, PasswordHash: &newHash})
	require.NoError(t, err)
	assert.Equal(t, "newhash", updated.PasswordHash)
}

func TestQueryLogCRUD(t *testing.T) {
	driver := newTestDB(t)
	ctx := t.Context()

	user, err := driver.CreateUser(ctx, &store.User{
		Username: "u", Email: "u@example.com", PasswordHash: "h",
		Role: store.RoleMember, CreatedTs: 1,
	})
	require.NoError(t, err)

	created, err := driver.CreateQueryLog(ctx, &store.QueryLog{
		UID:           "log-1",
		UserID:        user.ID,
		Query:         "What is the infant ratio?",
		Response:      "4:1 per §746.1601.",
		OperationType: "daycare",
		DocumentIDs:   []int64{7, 9},
		CreatedTs:     200,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	logs, err := driver.ListQueryLogs(ctx, &store.FindQueryLog{UserID: &user.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []int64{7, 9}, logs[0].DocumentIDs)
	assert.Equal(t, "daycare", logs[0].OperationType)

	// Nil document list round-trips as an empty slice.
	_, err = driver.CreateQueryLog(ctx, &store.QueryLog{
		UID: "log-2", UserID: user.ID, Query: "q", Response: "r", CreatedTs: 201,
	})
	require.NoError(t, err)
	uid := "log-2"
	logs, err = driver.ListQueryLogs(ctx, &store.FindQueryLog{UID: &uid})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].DocumentIDs)

	require.NoError(t, driver.DeleteQueryLog(ctx, &store.DeleteQueryLog{ID: created.ID, UserID: user.ID}))
	logs, err = driver.ListQueryLogs(ctx, &store.FindQueryLog{UserID: &user.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestQueryLogPagination(t *testing.T) {
	driver := newTestDB(t)
	ctx := t.Context()

	for i := int64(0); i < 5; i++ {
		_, err := driver.CreateQueryLog(ctx, &store.QueryLog{
			UID: "page-" + string(rune('a'+i)), UserID: 1,
			Query: "q", Response: "r", CreatedTs: 100 + i,
		})
		require.NoError(t, err)
	}

	limit, offset := 2, 1
	userID := int32(1)
	logs, err := driver.ListQueryLogs(ctx, &store.FindQueryLog{UserID: &userID, Limit: &limit, Offset: &offset})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	// Newest first: offset 1 skips created_ts 104.
	assert.EqualValues(t, 103, logs[0].CreatedTs)
	assert.EqualValues(t, 102, logs[1].CreatedTs)
}

func TestDocumentSoftDelete(t *testing.T) {
	driver := newTestDB(t)
	ctx := t.Context()

	doc, err := driver.CreateDocument(ctx, &store.Document{
		Filename: "chapter-746.pdf", Filepath: "/docs/chapter-746.pdf",
		FileType: "pdf", FileSize: 2048, UploadedBy: 1, UploadedTs: 300,
	})
	require.NoError(t, err)

	docs, err := driver.ListDocuments(ctx, &store.FindDocument{})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, driver.DeleteDocument(ctx, &store.DeleteDocument{ID: doc.ID}))

	docs, err = driver.ListDocuments(ctx, &store.FindDocument{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	deleted := true
	docs, err = driver.ListDocuments(ctx, &store.FindDocument{Deleted: &deleted})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Deleted)
}
