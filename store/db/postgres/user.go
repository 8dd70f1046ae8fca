package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/tastevec/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	now := time.Now().Unix()
	stmt := `
		INSERT INTO "user" (username, taste_vector, created_ts, updated_ts)
		VALUES (` + placeholders(4) + `)
		RETURNING id, taste_version, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.Username,
		vectorArg(create.TasteVector),
		now,
		now,
	).Scan(&create.ID, &create.TasteVersion, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return create, nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Username != nil {
		where, args = append(where, "username = "+placeholder(len(args)+1)), append(args, *find.Username)
	}

	query := `
		SELECT id, username, taste_vector::text, taste_version, created_ts, updated_ts
		FROM "user"
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
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
		var taste sql.NullString
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
		if user.TasteVector, err = vectorFromNullable(taste); err != nil {
			return nil, errors.Wrap(err, "failed to parse taste vector")
		}
		list = append(list, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteUser(ctx context.Context, delete *store.DeleteUser) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = `+placeholder(1), delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	return nil
}

// CompareAndSwapTasteVector conditions the write on taste_version so that a
// concurrent writer that committed first makes this update affect zero rows.
func (d *DB) CompareAndSwapTasteVector(ctx context.Context, update *store.UpdateTasteVector) (int64, error) {
	stmt := `
		UPDATE "user"
		SET taste_vector = ` + placeholder(1) + `,
			taste_version = taste_version + 1,
			updated_ts = ` + placeholder(2) + `
		WHERE id = ` + placeholder(3) + ` AND taste_version = ` + placeholder(4) + `
		RETURNING taste_version`

	var version int64
	err := d.db.QueryRowContext(ctx, stmt,
		vectorArg(update.Vector),
		time.Now().Unix(),
		update.UserID,
		update.ExpectedVersion,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrVersionConflict
		}
		return 0, errors.Wrap(err, "failed to update taste vector")
	}
	return version, nil
}
