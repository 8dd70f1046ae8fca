package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/tastevec/plugin/ai/vector"
	"github.com/hrygo/tastevec/store"
)

const contentColumns = `id, uid, title, description, thumbnail_url, view_count, rating, embedding, embedding_model, created_ts, updated_ts`

func (d *DB) CreateContent(ctx context.Context, create *store.Content) (*store.Content, error) {
	embedding, err := encodeVector(create.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode embedding")
	}
	now := time.Now().Unix()
	stmt := `INSERT INTO content (uid, title, description, thumbnail_url, view_count, rating, embedding, embedding_model, created_ts, updated_ts) VALUES (` + placeholders(10) + `) RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.Title,
		create.Description,
		create.ThumbnailURL,
		create.ViewCount,
		create.Rating,
		embedding,
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
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.IDList != nil {
		if len(find.IDList) == 0 {
			return []*store.Content{}, nil
		}
		holders, idArgs := int32Args(find.IDList)
		where, args = append(where, "id IN ("+holders+")"), append(args, idArgs...)
	}

	orderBy := "created_ts DESC, id DESC"
	if find.OrderBy == store.OrderByPopularity {
		orderBy = "view_count DESC, rating DESC, id ASC"
	}

	query := `SELECT ` + contentColumns + ` FROM content WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + orderBy
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}
	return d.queryContents(ctx, query, args...)
}

func (d *DB) UpdateContent(ctx context.Context, update *store.UpdateContent) (*store.Content, error) {
	set, args := []string{"updated_ts = ?"}, []any{time.Now().Unix()}
	if v := update.Title; v != nil {
		set, args = append(set, "title = ?"), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = ?"), append(args, *v)
	}
	// SET expressions read the old row, so the embedding survives only when
	// the embedded text is unchanged.
	if update.Title != nil || update.Description != nil {
		same, sameArgs := []string{}, []any{}
		if v := update.Title; v != nil {
			same, sameArgs = append(same, "title = ?"), append(sameArgs, *v)
		}
		if v := update.Description; v != nil {
			same, sameArgs = append(same, "description = ?"), append(sameArgs, *v)
		}
		cond := strings.Join(same, " AND ")
		set = append(set,
			"embedding = CASE WHEN "+cond+" THEN embedding ELSE '' END",
			"embedding_model = CASE WHEN "+cond+" THEN embedding_model ELSE '' END",
			"embedding_failed_ts = CASE WHEN "+cond+" THEN embedding_failed_ts ELSE 0 END",
		)
		for range 3 {
			args = append(args, sameArgs...)
		}
	}
	if v := update.ThumbnailURL; v != nil {
		set, args = append(set, "thumbnail_url = ?"), append(args, *v)
	}
	if v := update.ViewCount; v != nil {
		set, args = append(set, "view_count = ?"), append(args, *v)
	}
	if v := update.Rating; v != nil {
		set, args = append(set, "rating = ?"), append(args, *v)
	}
	args = append(args, update.ID)

	stmt := `UPDATE content SET ` + strings.Join(set, ", ") + ` WHERE id = ? RETURNING ` + contentColumns
	return scanContent(d.db.QueryRowContext(ctx, stmt, args...))
}

func (d *DB) UpdateContentEmbedding(ctx context.Context, update *store.UpdateContentEmbedding) error {
	embedding, err := encodeVector(update.Embedding)
	if err != nil {
		return errors.Wrap(err, "failed to encode embedding")
	}
	result, err := d.db.ExecContext(ctx, `UPDATE content SET embedding = ?, embedding_model = ?, embedding_failed_ts = 0, updated_ts = ? WHERE id = ?`,
		embedding, update.Model, time.Now().Unix(), update.ID)
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
	if _, err := d.db.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete content")
	}
	return nil
}

func (d *DB) FindContentsWithoutEmbedding(ctx context.Context, find *store.FindContentsWithoutEmbedding) ([]*store.Content, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + contentColumns + ` FROM content WHERE embedding = '' ORDER BY embedding_failed_ts ASC, created_ts ASC, id ASC LIMIT ?`
	return d.queryContents(ctx, query, limit)
}

func (d *DB) MarkContentEmbeddingFailed(ctx context.Context, mark *store.MarkContentEmbeddingFailed) error {
	holders, args := int32Args(mark.IDList)
	stmt := `UPDATE content SET embedding_failed_ts = ? WHERE id IN (` + holders + `)`
	if _, err := d.db.ExecContext(ctx, stmt, append([]any{time.Now().Unix()}, args...)...); err != nil {
		return errors.Wrap(err, "failed to mark content embedding failed")
	}
	return nil
}

// SearchContentsByVector scans every embedded row and ranks by cosine
// similarity. CandidatePool is ignored: the scan is exact.
func (d *DB) SearchContentsByVector(ctx context.Context, opts *store.ContentSearchOptions) ([]*store.ContentWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(opts.Vector) == 0 {
		return nil, errors.New("query vector is empty")
	}

	where, args := []string{"embedding != ''"}, []any{}
	if len(opts.ExcludeIDs) > 0 {
		holders, idArgs := int32Args(opts.ExcludeIDs)
		where, args = append(where, "id NOT IN ("+holders+")"), append(args, idArgs...)
	}

	contents, err := d.queryContents(ctx, `SELECT `+contentColumns+` FROM content WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}

	results := make([]*store.ContentWithScore, 0, len(contents))
	for _, content := range contents {
		if len(content.Embedding) != len(opts.Vector) {
			continue
		}
		results = append(results, &store.ContentWithScore{
			Content: content,
			Score:   float32(vector.CosineSimilarity(opts.Vector, content.Embedding)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Content.ID < results[j].Content.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (d *DB) queryContents(ctx context.Context, query string, args ...any) ([]*store.Content, error) {
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

type scanner interface {
	Scan(dest ...any) error
}

func scanContent(row scanner) (*store.Content, error) {
	var content store.Content
	var embedding string
	if err := row.Scan(
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
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan content")
	}
	vec, err := decodeVector(embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode content embedding")
	}
	content.Embedding = vec
	return &content, nil
}
