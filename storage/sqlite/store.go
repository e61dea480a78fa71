// Package sqlite provides a SQLite implementation of the offline action
// Store, for clients that already carry a local database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	stdSync "sync"
	"time"

	offline "github.com/c0deZ3R0/go-offline-kit"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Config holds configuration options for the ActionStore.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// When true, automatically appends "?_journal_mode=WAL" to
	// DataSourceName.
	EnableWAL bool

	// Logger is an optional logger for internal operations and errors.
	// If nil, logging is disabled.
	Logger *log.Logger

	// TableName is the table holding the action collection.
	// Defaults to "offline_actions" if empty.
	TableName string

	// Connection pool settings.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "offline_actions"
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "?_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with WAL mode enabled and the default
// connection pool settings.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// ActionStore implements the offline.Store interface on SQLite. Save
// rewrites the whole collection in one transaction, preserving the action
// log's read-modify-write contract.
type ActionStore struct {
	db        *sql.DB
	mu        stdSync.RWMutex
	closed    bool
	logger    *log.Logger
	tableName string
}

var _ offline.Store = (*ActionStore)(nil)

// New creates a new ActionStore from a Config.
func New(config *Config) (*ActionStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &ActionStore{
		db:        db,
		logger:    config.Logger,
		tableName: config.TableName,
	}

	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	return store, nil
}

// NewWithDataSource is a convenience constructor using DefaultConfig.
func NewWithDataSource(dataSourceName string) (*ActionStore, error) {
	return New(DefaultConfig(dataSourceName))
}

func (s *ActionStore) setupSchema() error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        seq             INTEGER PRIMARY KEY AUTOINCREMENT,
        id              TEXT NOT NULL UNIQUE,
        kind            TEXT NOT NULL,
        event_id        TEXT,
        user_id         TEXT,
        payload         TEXT,
        enqueued_at     TIMESTAMP NOT NULL,
        attempts        INTEGER NOT NULL DEFAULT 0,
        schema_version  INTEGER NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_%s_enqueued_at ON %s (enqueued_at);
    `, s.tableName, s.tableName, s.tableName)
	_, err := s.db.Exec(query)
	return err
}

// Load retrieves the full action collection in enqueue order.
func (s *ActionStore) Load(ctx context.Context) ([]offline.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	query := fmt.Sprintf(`
        SELECT id, kind, event_id, user_id, payload, enqueued_at, attempts, schema_version
        FROM %s ORDER BY seq ASC`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []offline.Action
	for rows.Next() {
		var (
			a          offline.Action
			eventID    sql.NullString
			userID     sql.NullString
			payload    sql.NullString
			enqueuedAt time.Time
		)
		if err := rows.Scan(&a.ID, &a.Kind, &eventID, &userID, &payload, &enqueuedAt, &a.Attempts, &a.SchemaVersion); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		a.EventID = eventID.String
		a.UserID = userID.String
		a.EnqueuedAt = enqueuedAt

		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &a.Payload); err != nil {
				// Corrupt payloads are dropped, not fatal: the action log
				// must degrade instead of blocking the queue.
				s.logger.Printf("dropping action %s with corrupt payload: %v", a.ID, err)
				continue
			}
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action rows: %w", err)
	}

	return actions, nil
}

// Save overwrites the full action collection in one transaction.
func (s *ActionStore) Save(ctx context.Context, actions []offline.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.tableName)); err != nil {
		return fmt.Errorf("failed to clear actions: %w", err)
	}

	insert := fmt.Sprintf(`
        INSERT INTO %s (id, kind, event_id, user_id, payload, enqueued_at, attempts, schema_version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.tableName)

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range actions {
		var payload interface{}
		if a.Payload != nil {
			data, err := json.Marshal(a.Payload)
			if err != nil {
				return fmt.Errorf("failed to encode payload for action %s: %w", a.ID, err)
			}
			payload = string(data)
		}
		if _, err := stmt.ExecContext(ctx, a.ID, string(a.Kind), nullable(a.EventID), nullable(a.UserID), payload, a.EnqueuedAt, a.Attempts, a.SchemaVersion); err != nil {
			return fmt.Errorf("failed to insert action %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit actions: %w", err)
	}
	return nil
}

// Reset clears the collection unconditionally.
func (s *ActionStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.tableName)); err != nil {
		return fmt.Errorf("failed to reset actions: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *ActionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
