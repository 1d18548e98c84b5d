package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgallion1/docannot/internal/config"
	"github.com/dgallion1/docannot/internal/store"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var annotationColumns = []string{"id", "doc_id", "set_name", "type", "start_offset", "end_offset", "features"}

// Store implements store.Store over a Querier.
type Store struct {
	q    Querier
	pool *pgxpool.Pool
}

// New wraps an existing querier. Close is a no-op for stores created
// this way.
func New(q Querier) *Store {
	return &Store{q: q}
}

// Open connects to cfg.DSN, migrates the schema and returns a store that
// owns the pool.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{q: pool, pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) PutDocument(ctx context.Context, d store.Document) error {
	if d.ID == "" {
		return fmt.Errorf("put document: empty id")
	}
	sql, args, err := psql.Insert("documents").
		Columns("id", "name", "language", "content", "content_length", "created_at").
		Values(d.ID, d.Name, d.Language, d.Content, int64(len(d.Content)), d.CreatedAt.UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	language = EXCLUDED.language,
	content = EXCLUDED.content,
	content_length = EXCLUDED.content_length,
	created_at = EXCLUDED.created_at`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("put document %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (store.Document, error) {
	sql, args, err := psql.Select("id", "name", "language", "content", "created_at").
		From("documents").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return store.Document{}, err
	}

	var d store.Document
	err = s.q.QueryRow(ctx, sql, args...).Scan(&d.ID, &d.Name, &d.Language, &d.Content, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Document{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]store.DocumentInfo, error) {
	sql, args, err := psql.Select("id", "name", "language", "content_length", "created_at").
		From("documents").
		OrderBy("created_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []store.DocumentInfo
	for rows.Next() {
		var d store.DocumentInfo
		var length int64
		if err := rows.Scan(&d.ID, &d.Name, &d.Language, &length, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Length = int(length)
		d.CreatedAt = d.CreatedAt.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	sql, args, err := psql.Delete("documents").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) AddAnnotation(ctx context.Context, a store.Annotation) (int64, error) {
	length, err := s.contentLength(ctx, a.DocID)
	if err != nil {
		return 0, err
	}
	if err := store.CheckSpan(a.Start, a.End, int(length)); err != nil {
		return 0, err
	}
	features, err := encodeFeatures(a.Features)
	if err != nil {
		return 0, err
	}

	sql, args, err := psql.Insert("annotations").
		Columns("doc_id", "set_name", "type", "start_offset", "end_offset", "features").
		Values(a.DocID, a.Set, a.Type, int64(a.Start), int64(a.End), features).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert annotation: %w", err)
	}
	return id, nil
}

func (s *Store) AnnotationsByType(ctx context.Context, docID, set, typ string) ([]store.Annotation, error) {
	where := squirrel.Eq{"doc_id": docID, "set_name": set}
	if typ != "" {
		where["type"] = typ
	}
	return s.queryAnnotations(ctx, docID, where)
}

func (s *Store) AnnotationsOverlapping(ctx context.Context, docID, set string, start, end uint64) ([]store.Annotation, error) {
	return s.queryAnnotations(ctx, docID, squirrel.And{
		squirrel.Eq{"doc_id": docID, "set_name": set},
		squirrel.Or{
			squirrel.And{
				squirrel.Expr("start_offset < end_offset"),
				squirrel.Lt{"start_offset": int64(end)},
				squirrel.Gt{"end_offset": int64(start)},
			},
			squirrel.And{
				squirrel.Expr("start_offset = end_offset"),
				squirrel.GtOrEq{"start_offset": int64(start)},
				squirrel.Lt{"start_offset": int64(end)},
			},
		},
	})
}

func (s *Store) queryAnnotations(ctx context.Context, docID string, where squirrel.Sqlizer) ([]store.Annotation, error) {
	if _, err := s.contentLength(ctx, docID); err != nil {
		return nil, err
	}
	sql, args, err := psql.Select(annotationColumns...).
		From("annotations").
		Where(where).
		OrderBy("start_offset", "end_offset", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	var out []store.Annotation
	for rows.Next() {
		var a store.Annotation
		var start, end int64
		var features []byte
		if err := rows.Scan(&a.ID, &a.DocID, &a.Set, &a.Type, &start, &end, &features); err != nil {
			return nil, err
		}
		a.Start, a.End = uint64(start), uint64(end)
		if len(features) > 0 {
			if err := json.Unmarshal(features, &a.Features); err != nil {
				return nil, fmt.Errorf("decode features of annotation %d: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AnnotationSets(ctx context.Context, docID string) ([]string, error) {
	if _, err := s.contentLength(ctx, docID); err != nil {
		return nil, err
	}
	sql, args, err := psql.Select("set_name").Distinct().
		From("annotations").
		Where(squirrel.Eq{"doc_id": docID}).
		OrderBy("set_name").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("annotation sets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) RemoveAnnotationSet(ctx context.Context, docID, set string) (int, error) {
	if _, err := s.contentLength(ctx, docID); err != nil {
		return 0, err
	}
	sql, args, err := psql.Delete("annotations").
		Where(squirrel.Eq{"doc_id": docID, "set_name": set}).
		ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("remove annotation set %s: %w", set, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) contentLength(ctx context.Context, docID string) (int64, error) {
	sql, args, err := psql.Select("content_length").
		From("documents").
		Where(squirrel.Eq{"id": docID}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var length int64
	err = s.q.QueryRow(ctx, sql, args...).Scan(&length)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("document %s: %w", docID, err)
	}
	return length, nil
}

func encodeFeatures(f map[string]any) ([]byte, error) {
	if len(f) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	return b, nil
}

var _ store.Store = (*Store)(nil)
