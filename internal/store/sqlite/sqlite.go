package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/docannot/internal/store"
)

// timeLayout sorts lexically in creation order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore implements store.Store on a single SQLite file.
type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database with WAL mode and
// foreign keys enabled.
func Open(ctx context.Context, path string) (store.Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	content_length INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS annotations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL,
	set_name TEXT NOT NULL,
	type TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset INTEGER NOT NULL,
	features TEXT,
	FOREIGN KEY(doc_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_annotations_doc_set
	ON annotations(doc_id, set_name, type, start_offset);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteStore) PutDocument(ctx context.Context, d store.Document) error {
	if d.ID == "" {
		return fmt.Errorf("put document: empty id")
	}
	const stmt = `
INSERT INTO documents (id, name, language, content, content_length, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name=excluded.name,
	language=excluded.language,
	content=excluded.content,
	content_length=excluded.content_length,
	created_at=excluded.created_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		d.ID, d.Name, d.Language, d.Content, len(d.Content),
		d.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("put document %s: %w", d.ID, err)
	}
	return nil
}

func (s *sqliteStore) GetDocument(ctx context.Context, id string) (store.Document, error) {
	var d store.Document
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, language, content, created_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.Language, &d.Content, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	d.CreatedAt, _ = time.Parse(timeLayout, created)
	return d, nil
}

func (s *sqliteStore) ListDocuments(ctx context.Context) ([]store.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, language, content_length, created_at FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []store.DocumentInfo
	for rows.Next() {
		var d store.DocumentInfo
		var created string
		if err := rows.Scan(&d.ID, &d.Name, &d.Language, &d.Length, &created); err != nil {
			return nil, err
		}
		d.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) AddAnnotation(ctx context.Context, a store.Annotation) (int64, error) {
	features, err := encodeFeatures(a.Features)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var length int
	err = tx.QueryRowContext(ctx, `SELECT content_length FROM documents WHERE id = ?`, a.DocID).Scan(&length)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("document %s: %w", a.DocID, store.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	if err := store.CheckSpan(a.Start, a.End, length); err != nil {
		return 0, err
	}

	const stmt = `
INSERT INTO annotations (doc_id, set_name, type, start_offset, end_offset, features)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id;
`
	var id int64
	err = tx.QueryRowContext(ctx, stmt,
		a.DocID, a.Set, a.Type, int64(a.Start), int64(a.End), features,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert annotation: %w", err)
	}
	return id, tx.Commit()
}

func (s *sqliteStore) AnnotationsByType(ctx context.Context, docID, set, typ string) ([]store.Annotation, error) {
	q := `SELECT id, doc_id, set_name, type, start_offset, end_offset, features
FROM annotations WHERE doc_id = ? AND set_name = ?`
	args := []any{docID, set}
	if typ != "" {
		q += ` AND type = ?`
		args = append(args, typ)
	}
	return s.queryAnnotations(ctx, docID, q, args...)
}

func (s *sqliteStore) AnnotationsOverlapping(ctx context.Context, docID, set string, start, end uint64) ([]store.Annotation, error) {
	const q = `SELECT id, doc_id, set_name, type, start_offset, end_offset, features
FROM annotations WHERE doc_id = ? AND set_name = ? AND (
	(start_offset < end_offset AND start_offset < ? AND end_offset > ?) OR
	(start_offset = end_offset AND start_offset >= ? AND start_offset < ?))`
	return s.queryAnnotations(ctx, docID, q, docID, set, int64(end), int64(start), int64(start), int64(end))
}

func (s *sqliteStore) queryAnnotations(ctx context.Context, docID, q string, args ...any) ([]store.Annotation, error) {
	if err := s.requireDocument(ctx, docID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY start_offset, end_offset, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	var out []store.Annotation
	for rows.Next() {
		var a store.Annotation
		var start, end int64
		var features sql.NullString
		if err := rows.Scan(&a.ID, &a.DocID, &a.Set, &a.Type, &start, &end, &features); err != nil {
			return nil, err
		}
		a.Start, a.End = uint64(start), uint64(end)
		if features.Valid && features.String != "" {
			if err := json.Unmarshal([]byte(features.String), &a.Features); err != nil {
				return nil, fmt.Errorf("decode features of annotation %d: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AnnotationSets(ctx context.Context, docID string) ([]string, error) {
	if err := s.requireDocument(ctx, docID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT set_name FROM annotations WHERE doc_id = ? ORDER BY set_name`, docID)
	if err != nil {
		return nil, err
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

func (s *sqliteStore) RemoveAnnotationSet(ctx context.Context, docID, set string) (int, error) {
	if err := s.requireDocument(ctx, docID); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE doc_id = ? AND set_name = ?`, docID, set)
	if err != nil {
		return 0, fmt.Errorf("remove annotation set %s: %w", set, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) requireDocument(ctx context.Context, docID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, docID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	return err
}

func encodeFeatures(f map[string]any) (sql.NullString, error) {
	if len(f) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode features: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
