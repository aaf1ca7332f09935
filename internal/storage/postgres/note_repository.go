// Package postgres provides the Postgres-backed note repository.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

// DefaultTable is the table notes are stored in when none is configured.
const DefaultTable = "cornell"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for note rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// NoteRepository reads and writes notes in a single Postgres table.
type NoteRepository struct {
	pool  pool
	table string

	mu    sync.Mutex
	ready bool
}

// New creates a NoteRepository with its own connection pool.
func New(ctx context.Context, cfg Config) (*NoteRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &NoteRepository{pool: p, table: table}, nil
}

// NewWithPool constructs a repository from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*NoteRepository, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &NoteRepository{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (r *NoteRepository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Ping checks database connectivity.
func (r *NoteRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// ensureTable creates the notes table the first time it is needed.
func (r *NoteRepository) ensureTable(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}

	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = $1`,
		r.table,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check table %s: %w", r.table, err)
	}
	if count == 0 {
		query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY NOT NULL,
	uid VARCHAR(255) NOT NULL,
	title VARCHAR(255) NOT NULL,
	link VARCHAR(255) NOT NULL,
	icon_url VARCHAR(255),
	description VARCHAR(255),
	tags VARCHAR(255),
	screenshot VARCHAR(255),
	point TEXT,
	summary TEXT
)`, r.table)
		if _, err := r.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("create table %s: %w", r.table, err)
		}
	}
	r.ready = true
	return nil
}

const noteColumns = `uid, title, link, icon_url, description, tags, screenshot, point, summary`

// List returns notes in insertion order. A limited listing returns one page.
func (r *NoteRepository) List(ctx context.Context, opts note.ListOptions) ([]note.Note, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, &note.PersistenceError{Op: "list", Err: err}
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id ASC`, noteColumns, r.table)
	var args []any
	if opts.Limited {
		if opts.PageSize <= 0 || opts.Page < 0 {
			return nil, &note.ValidationError{Field: "page", Reason: "page must be >= 0 and page_size > 0"}
		}
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.PageSize, opts.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &note.PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	notes := make([]note.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, &note.PersistenceError{Op: "list", Err: err}
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &note.PersistenceError{Op: "list", Err: err}
	}
	return notes, nil
}

func scanNote(row pgx.Row) (note.Note, error) {
	var n note.Note
	var icon, description, tags, screenshot, point, summary pgtype.Text
	if err := row.Scan(&n.UID, &n.Title, &n.Link, &icon, &description, &tags, &screenshot, &point, &summary); err != nil {
		return note.Note{}, fmt.Errorf("scan note: %w", err)
	}
	n.IconURL = icon.String
	n.Description = description.String
	n.Tags = note.DecodeTags(tags.String)
	n.Screenshot = screenshot.String
	n.Point = point.String
	n.Summary = summary.String
	return n, nil
}

// Insert stores a new note row.
func (r *NoteRepository) Insert(ctx context.Context, n note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if err := r.ensureTable(ctx); err != nil {
		return &note.PersistenceError{Op: "insert", UID: n.UID, Err: err}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, r.table, noteColumns)
	_, err := r.pool.Exec(ctx, query,
		n.UID,
		n.Title,
		n.Link,
		n.IconURL,
		n.Description,
		note.EncodeTags(n.Tags),
		n.Screenshot,
		n.Point,
		n.Summary,
	)
	if err != nil {
		return &note.PersistenceError{Op: "insert", UID: n.UID, Err: err}
	}
	return nil
}

// Update rewrites every mutable field of the note identified by uid.
func (r *NoteRepository) Update(ctx context.Context, n note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s
SET title = $1, link = $2, icon_url = $3, description = $4, tags = $5, screenshot = $6, point = $7, summary = $8
WHERE uid = $9`, r.table)
	tag, err := r.pool.Exec(ctx, query,
		n.Title,
		n.Link,
		n.IconURL,
		n.Description,
		note.EncodeTags(n.Tags),
		n.Screenshot,
		n.Point,
		n.Summary,
		n.UID,
	)
	if err != nil {
		return &note.PersistenceError{Op: "update", UID: n.UID, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &note.PersistenceError{Op: "update", UID: n.UID, Err: note.ErrNotFound}
	}
	return nil
}

// Delete removes the row for uid.
func (r *NoteRepository) Delete(ctx context.Context, uid string) error {
	if uid == "" {
		return &note.ValidationError{Field: "uid", Reason: "is required"}
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE uid = $1`, r.table), uid)
	if err != nil {
		return &note.PersistenceError{Op: "delete", UID: uid, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &note.PersistenceError{Op: "delete", UID: uid, Err: note.ErrNotFound}
	}
	return nil
}
