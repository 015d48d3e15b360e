package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/encompliance/encompliance/store"
)

func (d *DB) CreateDocument(ctx context.Context, create *store.Document) (*store.Document, error) {
	stmt := `
		INSERT INTO document (filename, filepath, file_type, file_size, uploaded_by, uploaded_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.Filename, create.Filepath, create.FileType, create.FileSize,
		create.UploadedBy, create.UploadedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create document")
	}
	return create, nil
}

func (d *DB) ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UploadedBy != nil {
		where, args = append(where, "uploaded_by = "+placeholder(len(args)+1)), append(args, *find.UploadedBy)
	}
	if find.Deleted != nil {
		where, args = append(where, "is_deleted = "+placeholder(len(args)+1)), append(args, *find.Deleted)
	} else {
		where = append(where, "is_deleted = FALSE")
	}

	query := `
		SELECT id, filename, filepath, file_type, file_size, uploaded_by, uploaded_ts, is_deleted
		FROM document
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY uploaded_ts DESC, id DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list documents")
	}
	defer rows.Close()

	list := make([]*store.Document, 0)
	for rows.Next() {
		doc := &store.Document{}
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Filepath, &doc.FileType,
			&doc.FileSize, &doc.UploadedBy, &doc.UploadedTs, &doc.Deleted); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

func (d *DB) DeleteDocument(ctx context.Context, delete *store.DeleteDocument) error {
	_, err := d.db.ExecContext(ctx, "UPDATE document SET is_deleted = TRUE WHERE id = $1", delete.ID)
	return errors.Wrap(err, "failed to delete document")
}
