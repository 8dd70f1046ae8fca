package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/tastevec/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	taste, err := encodeVector(create.TasteVector)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode taste vector")
	}
	now := time.Now().Unix()
	stmt := `INSERT INTO user (username, taste_vector, created_ts, updated_ts) VALUES (` + placeholders(4) + `) RETURNING id, taste_version, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt, create.Username, taste, now, now).Scan(
		&create.ID,
		&create.TasteVersion,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return create, nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Username != nil {
		where, args = append(where, "username = ?"), append(args, *find.Username)
	}

	query := `SELECT id, username, taste_vector, taste_version, created_ts, updated_ts FROM user WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	list := []*store.User{}
	for rows.Next() {
		var user store.User
		var taste string
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&taste,
			&user.TasteVersion,
			&user.CreatedTs,
			&user.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan user")
		}
		if user.TasteVector, err = decodeVector(taste); err != nil {
			return nil, errors.Wrap(err, "failed to decode taste vector")
		}
		list = append(list, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteUser(ctx context.Context, delete *store.DeleteUser) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM user WHERE id = ?`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	return nil
}

func (d *DB) CompareAndSwapTasteVector(ctx context.Context, update *store.UpdateTasteVector) (int64, error) {
	taste, err := encodeVector(update.Vector)
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode taste vector")
	}

	stmt := `UPDATE user SET taste_vector = ?, taste_version = taste_version + 1, updated_ts = ? WHERE id = ? AND taste_version = ?`
	result, err := d.db.ExecContext(ctx, stmt, taste, time.Now().Unix(), update.UserID, update.ExpectedVersion)
	if err != nil {
		return 0, errors.Wrap(err, "failed to update taste vector")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return 0, store.ErrVersionConflict
	}
	return update.ExpectedVersion + 1, nil
}
