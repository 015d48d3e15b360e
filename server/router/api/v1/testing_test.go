package v1

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encompliance/encompliance/ai/llm"
	"github.com/encompliance/encompliance/internal/profile"
	"github.com/encompliance/encompliance/store"
)

// testUserID hands out IDs that are unique across the test binary, so the
// per-user chat rate limiter never carries state between tests.
var testUserID atomic.Int32

func newTestUser(d *fakeDriver) *store.User {
	id := testUserID.Add(1)
	user := &store.User{
		ID:        id,
		Username:  fmt.Sprintf("user-%d", id),
		Email:     fmt.Sprintf("user-%d@example.com", id),
		Role:      store.RoleMember,
		CreatedTs: time.Now().Unix(),
	}
	d.mu.Lock()
	d.users = append(d.users, user)
	if id >= d.nextID {
		d.nextID = id + 1
	}
	d.mu.Unlock()
	return user
}

// fakeDriver is an in-memory store.Driver for handler tests.
type fakeDriver struct {
	mu        sync.Mutex
	users     []*store.User
	documents []*store.Document
	queryLogs []*store.QueryLog
	nextID    int32
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{nextID: 1}
}

func (d *fakeDriver) GetDB() *sql.DB                    { return nil }
func (d *fakeDriver) Close() error                      { return nil }
func (d *fakeDriver) Migrate(ctx context.Context) error { return nil }

func (d *fakeDriver) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.nextID
	d.nextID++
	d.users = append(d.users, create)
	return create, nil
}

func (d *fakeDriver) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []*store.User{}
	for _, u := range d.users {
		if find.ID != nil && u.ID != *find.ID {
			continue
		}
		if find.Username != nil && u.Username != *find.Username {
			continue
		}
		if find.Email != nil && u.Email != *find.Email {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (d *fakeDriver) UpdateUser(ctx context.Context, update *store.UpdateUser) (*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.ID == update.ID {
			if update.Email != nil {
				u.Email = *update.Email
			}
			if update.PasswordHash != nil {
				u.PasswordHash = *update.PasswordHash
			}
			if update.Role != nil {
				u.Role = *update.Role
			}
			return u, nil
		}
	}
	return nil, nil
}

func (d *fakeDriver) CreateDocument(ctx context.Context, create *store.Document) (*store.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.nextID
	d.nextID++
	d.documents = append(d.documents, create)
	return create, nil
}

func (d *fakeDriver) ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []*store.Document{}
	for _, doc := range d.documents {
		if find.ID != nil && doc.ID != *find.ID {
			continue
		}
		if find.UploadedBy != nil && doc.UploadedBy != *find.UploadedBy {
			continue
		}
		if find.Deleted != nil {
			if doc.Deleted != *find.Deleted {
				continue
			}
		} else if doc.Deleted {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (d *fakeDriver) DeleteDocument(ctx context.Context, delete *store.DeleteDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range d.documents {
		if doc.ID == delete.ID {
			doc.Deleted = true
		}
	}
	return nil
}

func (d *fakeDriver) CreateQueryLog(ctx context.Context, create *store.QueryLog) (*store.QueryLog, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.nextID
	d.nextID++
	d.queryLogs = append(d.queryLogs, create)
	return create, nil
}

func (d *fakeDriver) ListQueryLogs(ctx context.Context, find *store.FindQueryLog) ([]*store.QueryLog, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []*store.QueryLog{}
	for _, log := range d.queryLogs {
		if find.ID != nil && log.ID != *find.ID {
			continue
		}
		if find.UID != nil && log.UID != *find.UID {
			continue
		}
		if find.UserID != nil && log.UserID != *find.UserID {
			continue
		}
		out = append(out, log)
	}
	if find.Offset != nil && *find.Offset < len(out) {
		out = out[*find.Offset:]
	} else if find.Offset != nil {
		out = nil
	}
	if find.Limit != nil && *find.Limit < len(out) {
		out = out[:*find.Limit]
	}
	return out, nil
}

func (d *fakeDriver) DeleteQueryLog(ctx context.Context, delete *store.DeleteQueryLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.queryLogs[:0]
	for _, log := range d.queryLogs {
		if log.ID == delete.ID && log.UserID == delete.UserID {
			continue
		}
		kept = append(kept, log)
	}
	d.queryLogs = kept
	return nil
}

// stubLLM is a scriptable llm.Service.
type stubLLM struct {
	chatFn   func(ctx context.Context, model string, messages []llm.Message) (string, error)
	streamFn func(ctx context.Context, model string, messages []llm.Message) ([]string, error)
}

func (s *stubLLM) Chat(ctx context.Context, model string, messages []llm.Message) (string, error) {
	return s.chatFn(ctx, model, messages)
}

func (s *stubLLM) ChatStream(ctx context.Context, model string, messages []llm.Message) (<-chan string, <-chan error) {
	contentChan := make(chan string, 16)
	errChan := make(chan error, 1)
	go func() {
		defer close(contentChan)
		defer close(errChan)
		chunks, err := s.streamFn(ctx, model, messages)
		for _, chunk := range chunks {
			contentChan <- chunk
		}
		if err != nil {
			errChan <- err
		}
	}()
	return contentChan, errChan
}

func newTestService(driver *fakeDriver, hosted, local llm.Service) *APIV1Service {
	p := &profile.Profile{
		Mode:          "dev",
		Secret:        "test-secret",
		LLMModel:      "gpt-4o-mini",
		LocalLLMModel: "local-model",
	}
	return NewAPIV1Service(p.Secret, p, store.New(driver, p), hosted, local)
}
