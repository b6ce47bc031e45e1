package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBFile is the history database name inside the state directory.
const DBFile = "history.db"

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	url   TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	date  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS history_url ON history(url);
CREATE INDEX IF NOT EXISTS history_date ON history(date);
`

// SQLiteBackend stores history in a SQLite database.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (and creates if needed) the history database in dir.
func OpenSQLite(dir string) (*SQLiteBackend, error) {
	path := filepath.Join(dir, DBFile)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

func (b *SQLiteBackend) Path() string { return b.path }

// Close closes the database connection
func (b *SQLiteBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *SQLiteBackend) Append(item Item) error {
	_, err := b.db.Exec(`INSERT INTO history (url, title, date) VALUES (?, ?, ?)`,
		item.URL, item.Title, item.Date.UnixNano())
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Load returns the newest limit entries in chronological order. A limit of
// zero loads everything.
func (b *SQLiteBackend) Load(limit int) ([]Item, error) {
	query := `SELECT url, title, date FROM (
		SELECT id, url, title, date FROM history ORDER BY date DESC, id DESC LIMIT ?
	) ORDER BY date ASC, id ASC`
	if limit <= 0 {
		limit = -1
	}
	rows, err := b.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			it   Item
			nsec int64
		)
		if err := rows.Scan(&it.URL, &it.Title, &nsec); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		it.Date = time.Unix(0, nsec)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func (b *SQLiteBackend) Delete(url string) error {
	if _, err := b.db.Exec(`DELETE FROM history WHERE url = ?`, url); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Clear() error {
	if _, err := b.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Trim keeps only the newest max entries.
func (b *SQLiteBackend) Trim(max int) error {
	if max <= 0 {
		return nil
	}
	_, err := b.db.Exec(`DELETE FROM history WHERE id NOT IN (
		SELECT id FROM history ORDER BY date DESC, id DESC LIMIT ?
	)`, max)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}
