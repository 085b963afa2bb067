package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the message cache shared by all profiles.
type DB struct {
	*sql.DB
}

// Open opens the cache for reading and writing in WAL mode, creating it if
// needed.
func Open(path string) (*DB, error) {
	return open(path, url.Values{
		"_journal_mode": {"WAL"},
		"_busy_timeout": {"5000"},
		"_foreign_keys": {"on"},
	})
}

// OpenReadOnly opens an existing cache and rejects every write on it.
func OpenReadOnly(path string) (*DB, error) {
	return open(path, url.Values{
		"mode":          {"rw"},
		"_query_only":   {"1"},
		"_busy_timeout": {"5000"},
	})
}

func open(path string, params url.Values) (*DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{db}, nil
}
