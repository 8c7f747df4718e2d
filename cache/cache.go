// Package cache stores compiled chunks in SQLite, keyed by the hash of the
// source they were compiled from. A hit lets the driver skip compilation.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/lox/vm"
	"github.com/chazu/lox/vm/dist"
	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

// ErrMiss indicates no chunk is cached for the requested source.
var ErrMiss = errors.New("cache miss")

// MemoryPath opens a cache that lives only as long as the process.
const MemoryPath = ":memory:"

var log = commonlog.GetLogger("lox.cache")

// Cache is a persistent map from source hash to compiled chunk. Entries
// written by another image format version are ignored.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Cache, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A second connection to :memory: would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		hash       TEXT    NOT NULL,
		version    INTEGER NOT NULL,
		data       BLOB    NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (hash, version)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened chunk cache at %s", path)
	return &Cache{db: db, path: path}, nil
}

// Path returns the database location.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the chunk cached for hash, or ErrMiss. An entry that no
// longer decodes is dropped and reported as a miss.
func (c *Cache) Get(hash dist.SourceHash) (*vm.Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err := c.db.QueryRow(
		"SELECT data FROM chunks WHERE hash = ? AND version = ?",
		hash.String(), int(dist.FormatVersion),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debugf("miss %s", hash)
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying chunk: %w", err)
	}

	chunk, stored, err := dist.DecodeChunk(data)
	if err == nil && stored != hash {
		err = fmt.Errorf("stored hash %s does not match key", stored)
	}
	if err != nil {
		log.Warningf("dropping unreadable cache entry %s: %s", hash, err)
		_, derr := c.db.Exec(
			"DELETE FROM chunks WHERE hash = ? AND version = ?",
			hash.String(), int(dist.FormatVersion),
		)
		if derr != nil {
			return nil, fmt.Errorf("deleting chunk: %w", derr)
		}
		return nil, ErrMiss
	}

	log.Debugf("hit %s", hash)
	return chunk, nil
}

// Put stores chunk under hash, replacing any previous entry.
func (c *Cache) Put(hash dist.SourceHash, chunk *vm.Chunk) error {
	data, err := dist.EncodeChunk(chunk, hash)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO chunks (hash, version, data, created_at) VALUES (?, ?, ?, ?)",
		hash.String(), int(dist.FormatVersion), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}

	log.Debugf("stored %s (%d bytes)", hash, len(data))
	return nil
}

// Len returns the number of cached chunks.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Clear removes every cached chunk.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	return nil
}
