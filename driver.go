package neoquery

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Driver is the capability a Connection needs from the underlying graph
// database: opening sessions and shutting down. It keeps the rest of the
// driver surface out of reach.
type Driver interface {
	// NewSession opens a session for a single query.
	NewSession(ctx context.Context) Session

	// Close releases the driver and its connection pool.
	Close(ctx context.Context) error
}

// Session is a single-use execution context.
type Session interface {
	// Run executes a query and buffers all of its records.
	Run(ctx context.Context, cypher string, params map[string]any) (*RawResult, error)

	// Close releases the session.
	Close(ctx context.Context) error
}

// RawResult is a fully buffered, untransformed result.
type RawResult struct {
	Keys    []string
	Records []*neo4j.Record
}

// Credentials authenticate a connection.
type Credentials struct {
	Username string
	Password string
}

// DriverConfig tunes the Neo4j driver. Zero values keep the driver defaults.
type DriverConfig struct {
	// Database is the target database; empty selects the server default.
	Database string

	MaxConnectionPoolSize   int
	ConnectionTimeout       time.Duration
	MaxTransactionRetryTime time.Duration
}

type neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver creates a Driver backed by the official Neo4j Go driver.
// It does not verify connectivity; see Connection.WaitReady.
func NewNeo4jDriver(url string, creds Credentials, cfg DriverConfig) (Driver, error) {
	auth := neo4j.BasicAuth(creds.Username, creds.Password, "")
	driver, err := neo4j.NewDriverWithContext(url, auth, func(c *neo4j.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.ConnectionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
		}
		if cfg.MaxTransactionRetryTime > 0 {
			c.MaxTransactionRetryTime = cfg.MaxTransactionRetryTime
		}
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &neo4jDriver{driver: driver, database: cfg.Database}, nil
}

func (d *neo4jDriver) NewSession(ctx context.Context) Session {
	return &neo4jSession{session: d.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: d.database})}
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

type neo4jSession struct {
	session neo4j.SessionWithContext
}

// Run executes cypher in an auto-commit transaction. Driver errors are
// returned unchanged.
func (s *neo4jSession) Run(ctx context.Context, cypher string, params map[string]any) (*RawResult, error) {
	result, err := s.session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	keys, err := result.Keys()
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return &RawResult{Keys: keys, Records: records}, nil
}

func (s *neo4jSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}
