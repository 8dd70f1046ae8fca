package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/tastevec/store"
)

const contentColumns = `id, uid, title, description, thumbnail_url, view_count, rating, embedding::text, embedding_model, created_ts, updated_ts`

func (d *DB) CreateContent(ctx context.Context, create *store.Content) (*store.Content, error) {
	now := time.Now().Unix()
	stmt := `
		INSERT INTO content (uid, title, description, thumbnail_url, view_count, rating, embedding, embedding_model, created_ts, updated_ts)
		VALUES (` + placeholders(10) + `)
		RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.Title,
		create.Description,
		create.ThumbnailURL,
		create.ViewCount,
		create.Rating,
		vectorArg(create.Embedding),
		create.EmbeddingModel,
		now,
		now,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create content")
	}
	return create, nil
}

func (d *DB) ListContents(ctx context.Context, find *store.FindContent) ([]*store.Content, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.IDList != nil {
		where, args = append(where, "id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.IDList))
	}

	orderBy := "created_ts DESC, id DESC"
	if find.OrderBy == store.OrderByPopularity {
		orderBy = "view_count DESC, rating DESC, id ASC"
	}

	query := `SELECT ` + contentColumns + ` FROM content WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + orderBy
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list contents")
	}
	defer rows.Close()

	list := []*store.Content{}
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateContent(ctx context.Context, update *store.UpdateContent) (*store.Content, error) {
	set, args := []string{"updated_ts = " + placeholder(1)}, []any{time.Now().Unix()}
	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	// SET expressions read the old row, so the embedding survives only when
	// the embedded text is unchanged.
	if update.Title != nil || update.Description != nil {
		same := []string{}
		if update.Title != nil {
			same = append(same, "title = "+placeholder(2))
		}
		if update.Description != nil {
			same = append(same, "description = "+placeholder(len(args)))
		}
		cond := strings.Join(same, " AND ")
		set = append(set,
			"embedding = CASE WHEN "+cond+" THEN embedding ELSE NULL END",
			"embedding_model = CASE WHEN "+cond+" THEN embedding_model ELSE '' END",
			"embedding_failed_ts = CASE WHEN "+cond+" THEN embedding_failed_ts ELSE 0 END",
		)
	}
	if v := update.ThumbnailURL; v != nil {
		set, args = append(set, "thumbnail_url = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.ViewCount; v != nil {
		set, args = append(set, "view_count = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Rating; v != nil {
		set, args = append(set, "rating = "+placeholder(len(args)+1)), append(args, *v)
	}
	args = append(args, update.ID)

	stmt := `UPDATE content SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + contentColumns
	content, err := scanContent(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (d *DB) UpdateContentEmbedding(ctx context.Context, update *store.UpdateContentEmbedding) error {
	stmt := `UPDATE content SET embedding = ` + placeholder(1) + `, embedding_model = ` + placeholder(2) + `, embedding_failed_ts = 0, updated_ts = ` + placeholder(3) + ` WHERE id = ` + placeholder(4)
	result, err := d.db.ExecContext(ctx, stmt, vectorArg(update.Embedding), update.Model, time.Now().Unix(), update.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update content embedding")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("content with id %d not found", update.ID)
	}
	return nil
}

func (d *DB) DeleteContent(ctx context.Context, delete *store.DeleteContent) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM content WHERE id = `+placeholder(1), delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete content")
	}
	return nil
}

// FindContentsWithoutEmbedding finds content that has no embedding yet,
// never-failed first, then oldest.
func (d *DB) FindContentsWithoutEmbedding(ctx context.Context, find *store.FindContentsWithoutEmbedding) ([]*store.Content, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + contentColumns + ` FROM content WHERE embedding IS NULL ORDER BY embedding_failed_ts ASC, created_ts ASC, id ASC LIMIT ` + placeholder(1)
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find contents without embedding")
	}
	defer rows.Close()

	list := []*store.Content{}
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// SearchContentsByVector performs cosine similarity search using pgvector.
//
// The <=> operator computes cosine distance (1 - cosine_similarity), so rows
// are ordered by distance ASC. The candidate pool is applied as
// hnsw.ef_search for the duration of the read transaction.
func (d *DB) SearchContentsByVector(ctx context.Context, opts *store.ContentSearchOptions) ([]*store.ContentWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(opts.Vector) == 0 {
		return nil, errors.New("query vector is empty")
	}

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin search transaction")
	}
	defer tx.Rollback()

	if opts.CandidatePool > 0 {
		// SET does not accept bind parameters; CandidatePool is an int.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", opts.CandidatePool)); err != nil {
			return nil, errors.Wrap(err, "failed to set hnsw.ef_search")
		}
	}

	excludeIDs := opts.ExcludeIDs
	if excludeIDs == nil {
		excludeIDs = []int32{}
	}
	query := `
		SELECT ` + contentColumns + `,
			1 - (embedding <=> ` + placeholder(1) + `) AS score
		FROM content
		WHERE embedding IS NOT NULL
			AND NOT (id = ANY(` + placeholder(2) + `))
		ORDER BY embedding <=> ` + placeholder(1) + `
		LIMIT ` + placeholder(3)

	rows, err := tx.QueryContext(ctx, query, vectorArg(opts.Vector), pq.Array(excludeIDs), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.ContentWithScore{}
	for rows.Next() {
		var result store.ContentWithScore
		content, err := scanContent(rows, &result.Score)
		if err != nil {
			return nil, err
		}
		result.Content = content
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanContent scans contentColumns followed by any extra destinations.
func scanContent(row scanner, extra ...any) (*store.Content, error) {
	var content store.Content
	var embedding sql.NullString
	dest := []any{
		&content.ID,
		&content.UID,
		&content.Title,
		&content.Description,
		&content.ThumbnailURL,
		&content.ViewCount,
		&content.Rating,
		&embedding,
		&content.EmbeddingModel,
		&content.CreatedTs,
		&content.UpdatedTs,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, errors.Wrap(err, "failed to scan content")
	}
	vec, err := vectorFromNullable(embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse content embedding")
	}
	content.Embedding = vec
	return &content, nil
}

func (d *DB) MarkContentEmbeddingFailed(ctx context.Context, mark *store.MarkContentEmbeddingFailed) error {
	stmt := `UPDATE content SET embedding_failed_ts = ` + placeholder(1) + ` WHERE id = ANY(` + placeholder(2) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, time.Now().Unix(), pq.Array(mark.IDList)); err != nil {
		return errors.Wrap(err, "failed to mark content embedding failed")
	}
	return nil
}
