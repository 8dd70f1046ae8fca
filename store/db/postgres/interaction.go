package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/tastevec/store"
)

func (d *DB) UpsertInteraction(ctx context.Context, upsert *store.Interaction) (*store.Interaction, error) {
	stmt := `
		INSERT INTO interaction (user_id, content_id, kind, created_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (user_id, content_id, kind) DO UPDATE SET kind = EXCLUDED.kind
		RETURNING created_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UserID,
		upsert.ContentID,
		upsert.Kind.String(),
		time.Now().Unix(),
	).Scan(&upsert.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert interaction")
	}
	return upsert, nil
}

func (d *DB) ListInteractions(ctx context.Context, find *store.FindInteraction) ([]*store.Interaction, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.ContentID != nil {
		where, args = append(where, "content_id = "+placeholder(len(args)+1)), append(args, *find.ContentID)
	}
	if len(find.KindList) > 0 {
		kinds := make([]string, 0, len(find.KindList))
		for _, kind := range find.KindList {
			kinds = append(kinds, kind.String())
		}
		where, args = append(where, "kind = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(kinds))
	}

	query := `
		SELECT user_id, content_id, kind, created_ts
		FROM interaction
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, content_id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list interactions")
	}
	defer rows.Close()

	list := []*store.Interaction{}
	for rows.Next() {
		var interaction store.Interaction
		var kind string
		if err := rows.Scan(&interaction.UserID, &interaction.ContentID, &kind, &interaction.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan interaction")
		}
		interaction.Kind = store.InteractionKind(kind)
		list = append(list, &interaction)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
