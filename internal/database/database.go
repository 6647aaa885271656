// Package database manages the MySQL spatial catalog connection.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/dbsmedya/accesstally/internal/config"
	"github.com/dbsmedya/accesstally/internal/logger"
)

// Opener opens a database handle for a DSN. Tests replace it to avoid a
// real server.
type Opener func(dsn string) (*sql.DB, error)

func openMySQL(dsn string) (*sql.DB, error) {
	return sql.Open("mysql", dsn)
}

// Manager owns the catalog connection pool.
type Manager struct {
	Catalog *sql.DB

	config     *config.DatabaseConfig
	logger     *logger.Logger
	open       Opener
	maxRetries int
	backoff    time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.DatabaseConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		config:     cfg,
		logger:     log,
		open:       openMySQL,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// SetOpener replaces the function used to open connections.
func (m *Manager) SetOpener(open Opener) {
	if open != nil {
		m.open = open
	}
}

// SetRetry sets the number of connection attempts and the initial backoff.
func (m *Manager) SetRetry(maxRetries int, backoff time.Duration) {
	if maxRetries > 0 {
		m.maxRetries = maxRetries
	}
	if backoff >= 0 {
		m.backoff = backoff
	}
}

// Connect opens and pings the catalog, retrying with exponential backoff.
func (m *Manager) Connect(ctx context.Context) error {
	if m.config == nil || !m.config.Enabled {
		return fmt.Errorf("catalog is not enabled")
	}
	if m.Catalog != nil {
		return nil
	}

	db, err := m.connectWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to catalog database: %w", err)
	}
	m.Catalog = db
	m.logger.Infow("Connected to catalog", "host", m.config.Host, "port", m.config.Port, "database", m.config.Database)
	return nil
}

func (m *Manager) connectWithRetry(ctx context.Context) (*sql.DB, error) {
	var err error
	backoff := m.backoff

	for i := 0; i < m.maxRetries; i++ {
		var db *sql.DB
		db, err = m.connect()
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				return db, nil
			}
			db.Close()
		}

		m.logger.Warnw("Catalog connection attempt failed", "attempt", i+1, "max_attempts", m.maxRetries, "error", err)
		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.maxRetries, err)
}

func (m *Manager) connect() (*sql.DB, error) {
	db, err := m.open(BuildDSN(m.config))
	if err != nil {
		return nil, err
	}

	if m.config.MaxConnections > 0 {
		db.SetMaxOpenConns(m.config.MaxConnections)
	}
	if m.config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(m.config.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	params := "?parseTime=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes the catalog connection.
func (m *Manager) Close() error {
	if m.Catalog == nil {
		return nil
	}
	err := m.Catalog.Close()
	m.Catalog = nil
	if err != nil {
		return fmt.Errorf("catalog close: %w", err)
	}
	return nil
}

// Ping verifies the catalog connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Catalog == nil {
		return fmt.Errorf("catalog is not connected")
	}
	if err := m.Catalog.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog ping failed: %w", err)
	}
	return nil
}
