package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Path returns the database file for cfg.
func (c Config) Path() string {
	return filepath.Join(c.DataDir, "duckdb", c.DBName+".duckdb")
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(cfg.Path()), 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}
		instance, initErr = Open(cfg.Path())
	})
	return instance, initErr
}

// Open opens a DuckDB database outside the singleton. An empty path opens
// an in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
