package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore keeps finished interviews in a single recaps table, transcript
// serialized as JSON. Suitable when interviews must outlive the process on a
// shared volume.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteDSNForFile derives a DSN with sane defaults for a database file path.
func SQLiteDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite archive: empty path")
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path), nil
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite archive: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmt := `CREATE TABLE IF NOT EXISTS recaps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		title TEXT NOT NULL,
		recap TEXT NOT NULL,
		transcript_json TEXT NOT NULL DEFAULT '[]',
		created_at_ms INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(stmt); err != nil {
		return errors.Wrap(err, "sqlite archive: migrate")
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) (string, error) {
	transcript, err := json.Marshal(rec.Turns)
	if err != nil {
		return "", errors.Wrap(err, "marshal transcript")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO recaps (session_id, subject, title, recap, transcript_json, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, SafeName(rec.Subject), rec.Title, rec.Recap, string(transcript), rec.CreatedAt.UnixMilli())
	if err != nil {
		return "", errors.Wrap(err, "insert recap")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", errors.Wrap(err, "recap row id")
	}
	return fmt.Sprintf("recap:%d", id), nil
}
