package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store drivers.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// QueryLog model related methods.
	CreateQueryLog(ctx context.Context, create *QueryLog) (*QueryLog, error)
	ListQueryLogs(ctx context.Context, find *FindQueryLog) ([]*QueryLog, error)
	DeleteQueryLog(ctx context.Context, delete *DeleteQueryLog) error

	// Document model related methods.
	CreateDocument(ctx context.Context, create *Document) (*Document, error)
	ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error)
	DeleteDocument(ctx context.Context, delete *DeleteDocument) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)
	UpdateUser(ctx context.Context, update *UpdateUser) (*User, error)
}
