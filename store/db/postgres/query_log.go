package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/encompliance/encompliance/store"
)

func (d *DB) CreateQueryLog(ctx context.Context, create *store.QueryLog) (*store.QueryLog, error) {
	documentIDs, err := marshalDocumentIDs(create.DocumentIDs)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO query_log (uid, user_id, query, response, operation_type, document_ids, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID, create.UserID, create.Query, create.Response,
		create.OperationType, documentIDs, create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create query_log")
	}
	return create, nil
}

func (d *DB) ListQueryLogs(ctx context.Context, find *store.FindQueryLog) ([]*store.QueryLog, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}

	query := `
		SELECT id, uid, user_id, query, response, operation_type, document_ids, created_ts
		FROM query_log
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list query_logs")
	}
	defer rows.Close()

	list := make([]*store.QueryLog, 0)
	for rows.Next() {
		log := &store.QueryLog{}
		var documentIDs string
		if err := rows.Scan(&log.ID, &log.UID, &log.UserID, &log.Query, &log.Response,
			&log.OperationType, &documentIDs, &log.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan query_log")
		}
		if err := json.Unmarshal([]byte(documentIDs), &log.DocumentIDs); err != nil {
			return nil, errors.Wrap(err, "failed to decode document_ids")
		}
		list = append(list, log)
	}
	return list, rows.Err()
}

func (d *DB) DeleteQueryLog(ctx context.Context, delete *store.DeleteQueryLog) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM query_log WHERE id = $1 AND user_id = $2", delete.ID, delete.UserID)
	return errors.Wrap(err, "failed to delete query_log")
}

func marshalDocumentIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode document_ids")
	}
	return string(encoded), nil
}
