package folio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/eringen/folio/guestlist"
	"github.com/eringen/folio/migrations"
)

var (
	// ErrNotFound is returned when a requested article does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSlugTaken is returned when another article already uses a slug.
	ErrSlugTaken = errors.New("slug already in use")
)

// Store wraps the SQLite database holding guests and articles.
type Store struct {
	db *sql.DB
}

var _ guestlist.Repository = (*Store)(nil)

// NewStore opens (or creates) the SQLite database at path, creating the data
// directory if needed. Call Migrate before use.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func newStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// sqliteDSN applies the pragmas on every pooled connection: WAL so readers
// don't block the writer, a busy timeout so writers queue instead of failing
// with SQLITE_BUSY, and synchronous=NORMAL which is safe under WAL.
func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	p, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations.FS)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SchemaVersion returns the version of the newest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	p, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations.FS)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface{ Scan(...any) error }

const guestColumns = `id, name, added_by, created_at`

func scanGuest(row scanner) (guestlist.Guest, error) {
	var g guestlist.Guest
	var created int64
	if err := row.Scan(&g.ID, &g.Name, &g.AddedBy, &created); err != nil {
		return guestlist.Guest{}, err
	}
	g.CreatedAt = fromUnixNano(created)
	return g, nil
}

// ListGuests returns guests newest first, optionally filtered by a
// case-insensitive name substring and paginated.
func (s *Store) ListGuests(ctx context.Context, f guestlist.Filter) ([]guestlist.Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guests`
	var args []any
	if f.Query != "" {
		query += ` WHERE instr(lower(name), lower(?)) > 0`
		args = append(args, f.Query)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	guests := []guestlist.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	return guests, rows.Err()
}

// LatestGuestBy returns the newest guest added by addedBy.
func (s *Store) LatestGuestBy(ctx context.Context, addedBy string) (guestlist.Guest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE added_by = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		addedBy)
	g, err := scanGuest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return guestlist.Guest{}, guestlist.ErrNotFound
	}
	return g, err
}

// CreateGuest inserts g only if g.AddedBy has no guest created after since.
// The check and the insert are one statement, so SQLite's single writer
// serializes concurrent attempts by the same identity.
func (s *Store) CreateGuest(ctx context.Context, g guestlist.Guest, since time.Time) (guestlist.Guest, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO guests (name, added_by, created_at)
SELECT ?, ?, ?
WHERE NOT EXISTS (
    SELECT 1 FROM guests WHERE added_by = ? AND created_at > ?
)`, g.Name, g.AddedBy, g.CreatedAt.UnixNano(), g.AddedBy, since.UnixNano())
	if err != nil {
		return guestlist.Guest{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return guestlist.Guest{}, err
	}
	if n == 0 {
		return guestlist.Guest{}, guestlist.ErrRateLimited
	}
	id, err := res.LastInsertId()
	if err != nil {
		return guestlist.Guest{}, err
	}
	g.ID = id
	g.CreatedAt = fromUnixNano(g.CreatedAt.UnixNano())
	return g, nil
}

// UpdateGuestName renames a guest and returns the stored row.
func (s *Store) UpdateGuestName(ctx context.Context, id int64, name string) (guestlist.Guest, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE guests SET name = ? WHERE id = ? RETURNING `+guestColumns, name, id)
	g, err := scanGuest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return guestlist.Guest{}, guestlist.ErrNotFound
	}
	return g, err
}

// DeleteGuest removes a guest.
func (s *Store) DeleteGuest(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return guestlist.ErrNotFound
	}
	return nil
}

// SeedGuests adds the initial guest to an empty guestlist. It reports whether
// a row was written.
func (s *Store) SeedGuests(ctx context.Context, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO guests (name, added_by, created_at)
SELECT 'Initial Guest', 'Admin', ?
WHERE NOT EXISTS (SELECT 1 FROM guests)`, now.UnixNano())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const articleColumns = `id, title, slug, description, content, created_at, updated_at`

func scanArticle(row scanner) (Article, error) {
	var a Article
	var created, updated int64
	if err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Description, &a.Content, &created, &updated); err != nil {
		return Article{}, err
	}
	a.CreatedAt = fromUnixNano(created)
	a.UpdatedAt = fromUnixNano(updated)
	return a, nil
}

// ListArticles returns every article, newest first.
func (s *Store) ListArticles(ctx context.Context) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// GetArticle returns the article with the given slug.
func (s *Store) GetArticle(ctx context.Context, slug string) (Article, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, ErrNotFound
	}
	return a, err
}

// CreateArticle inserts a and returns it with its id.
func (s *Store) CreateArticle(ctx context.Context, a Article) (Article, error) {
	row := s.db.QueryRowContext(ctx, `
INSERT INTO articles (title, slug, description, content, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING `+articleColumns,
		a.Title, a.Slug, a.Description, a.Content, a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	created, err := scanArticle(row)
	if isUniqueViolation(err) {
		return Article{}, ErrSlugTaken
	}
	return created, err
}

// UpdateArticle overwrites the editable fields of article a.ID.
func (s *Store) UpdateArticle(ctx context.Context, a Article) (Article, error) {
	row := s.db.QueryRowContext(ctx, `
UPDATE articles SET title = ?, slug = ?, description = ?, content = ?, updated_at = ?
WHERE id = ?
RETURNING `+articleColumns,
		a.Title, a.Slug, a.Description, a.Content, a.UpdatedAt.UnixNano(), a.ID)
	updated, err := scanArticle(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Article{}, ErrNotFound
	case isUniqueViolation(err):
		return Article{}, ErrSlugTaken
	}
	return updated, err
}

// DeleteArticle removes an article by id.
func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
