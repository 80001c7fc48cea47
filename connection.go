package neoquery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/saulfrancisco-ruizacevedo/go-neoquery"

// Connection owns a driver and executes queries on it, one session per run.
// It is safe for concurrent use. Runs on the same connection are isolated
// from each other but not ordered.
type Connection struct {
	id     string
	url    string
	driver Driver
	logger *zap.Logger
	tracer trace.Tracer

	mu       sync.RWMutex
	open     bool
	shut     bool // driver closed
	inflight sync.WaitGroup
}

// Option configures a Connection.
type Option func(*connectionOptions)

type connectionOptions struct {
	driver       Driver
	driverConfig DriverConfig
	logger       *zap.Logger
	tracer       trace.Tracer
}

// WithDriver makes the connection use d instead of dialing Neo4j.
func WithDriver(d Driver) Option {
	return func(o *connectionOptions) { o.driver = d }
}

// WithDriverConfig sets the Neo4j driver tuning.
func WithDriverConfig(cfg DriverConfig) Option {
	return func(o *connectionOptions) { o.driverConfig = cfg }
}

// WithDatabase selects the database sessions are opened against.
func WithDatabase(name string) Option {
	return func(o *connectionOptions) { o.driverConfig.Database = name }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *connectionOptions) { o.logger = l }
}

// WithTracer sets the tracer used for one span per run. The default comes
// from the global OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *connectionOptions) { o.tracer = t }
}

// NewConnection creates a connection to the database at url and registers it
// so that Shutdown can close it.
func NewConnection(url string, creds Credentials, opts ...Option) (*Connection, error) {
	o := connectionOptions{
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	driver := o.driver
	if driver == nil {
		var err error
		driver, err = NewNeo4jDriver(url, creds, o.driverConfig)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	c := &Connection{
		id:     id,
		url:    url,
		driver: driver,
		logger: o.logger.With(zap.String("connection", id)),
		tracer: o.tracer,
		open:   true,
	}
	defaultRegistry.add(c)
	c.logger.Info("connection opened", zap.String("url", url))
	return c, nil
}

// NewConnectionFromConfig creates a connection from a validated Config.
func NewConnectionFromConfig(cfg Config, opts ...Option) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = append([]Option{WithDriverConfig(cfg.DriverConfig())}, opts...)
	return NewConnection(cfg.URL, cfg.Credentials(), opts...)
}

// ID returns the connection's unique id, as used in log fields.
func (c *Connection) ID() string { return c.id }

// IsOpen reports whether Close has not been called yet.
func (c *Connection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Close marks the connection closed, waits for runs and sessions that are
// still in use, then closes the driver. If ctx ends first, Close returns its
// error and leaves the driver open; a later Close resumes the wait. Calls
// after the driver is closed are no-ops.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("could not wait for in-flight queries: %w", ctx.Err())
	}

	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return nil
	}
	c.shut = true
	c.mu.Unlock()

	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("could not close driver: %w", err)
	}
	c.logger.Info("connection closed")
	return nil
}

// Session opens a session for callers that drive the database directly.
// The caller must close it; Close on the connection waits until it does.
func (c *Connection) Session(ctx context.Context) (Session, error) {
	session, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &trackedSession{Session: session, release: c.inflight.Done}, nil
}

// trackedSession releases its in-flight slot on the first Close.
type trackedSession struct {
	Session
	once    sync.Once
	release func()
}

func (s *trackedSession) Close(ctx context.Context) error {
	err := s.Session.Close(ctx)
	s.once.Do(s.release)
	return err
}

// acquire opens a session and counts it as in flight so that Close waits
// for it.
func (c *Connection) acquire(ctx context.Context) (Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open {
		return nil, ErrConnectionClosed
	}
	c.inflight.Add(1)
	return c.driver.NewSession(ctx), nil
}

// Run builds b and executes it, returning the transformed rows.
func (c *Connection) Run(ctx context.Context, b Builder) ([]Row, error) {
	res, err := c.RunResult(ctx, b)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// RunResult builds b and executes it in a fresh session.
//
// A closed connection or a build error fails before any session is opened.
// The session is closed whether or not execution succeeds, and execution
// errors are returned unchanged.
func (c *Connection) RunResult(ctx context.Context, b Builder) (*Result, error) {
	if !c.IsOpen() {
		return nil, ErrConnectionClosed
	}
	text, params, err := b.Build()
	if err != nil {
		return nil, err
	}

	raw, err := c.execute(ctx, b, text, params)
	if err != nil {
		return nil, err
	}
	return &Result{Columns: raw.Keys, Rows: TransformRecords(raw.Records)}, nil
}

func (c *Connection) execute(ctx context.Context, b Builder, text string, params map[string]any) (*RawResult, error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "neo4j"),
		attribute.String("db.statement", text),
	}
	if q, ok := b.(*Query); ok {
		attrs = append(attrs, attribute.Int("neoquery.clauses", len(q.clauses)))
	}
	ctx, span := c.tracer.Start(ctx, "neoquery.Run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	defer span.End()

	session, err := c.acquire(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer c.inflight.Done()

	c.logger.Debug("running query", zap.String("query", text), zap.Int("params", len(params)))
	start := time.Now()
	raw, err := session.Run(ctx, text, params)
	if closeErr := session.Close(context.WithoutCancel(ctx)); closeErr != nil {
		c.logger.Warn("could not close session", zap.Error(closeErr))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("query failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	span.SetAttributes(attribute.Int("neoquery.rows", len(raw.Records)))
	c.logger.Debug("query finished",
		zap.Int("rows", len(raw.Records)),
		zap.Duration("elapsed", time.Since(start)))
	return raw, nil
}

// WaitReady runs RETURN 1 until it succeeds, trying at most attempts times
// with interval between tries.
func (c *Connection) WaitReady(ctx context.Context, attempts int, interval time.Duration) error {
	attempts = max(attempts, 1)
	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		_, lastErr = c.Return("1").Run(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrConnectionClosed) {
			return lastErr
		}
		c.logger.Debug("database not ready", zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return fmt.Errorf("database not ready after %d attempts: %w", attempts, lastErr)
}

// Query returns an empty query bound to this connection.
func (c *Connection) Query() *Query {
	return &Query{conn: c}
}

// MatchNode starts a bound query with MATCH (name:Labels {conditions}).
func (c *Connection) MatchNode(name string, labels []string, conditions map[string]any) *Query {
	return c.Query().MatchNode(name, labels, conditions)
}

// Match starts a bound query with MATCH.
func (c *Connection) Match(patterns ...Pattern) *Query {
	return c.Query().Match(patterns...)
}

// OptionalMatch starts a bound query with OPTIONAL MATCH.
func (c *Connection) OptionalMatch(patterns ...Pattern) *Query {
	return c.Query().OptionalMatch(patterns...)
}

// CreateNode starts a bound query with CREATE (name:Labels {conditions}).
func (c *Connection) CreateNode(name string, labels []string, conditions map[string]any) *Query {
	return c.Query().CreateNode(name, labels, conditions)
}

// Create starts a bound query with CREATE.
func (c *Connection) Create(patterns ...Pattern) *Query {
	return c.Query().Create(patterns...)
}

// Merge starts a bound query with MERGE.
func (c *Connection) Merge(patterns ...Pattern) *Query {
	return c.Query().Merge(patterns...)
}

// Return starts a bound query with RETURN.
func (c *Connection) Return(terms ...string) *Query {
	return c.Query().Return(terms...)
}

// With starts a bound query with WITH.
func (c *Connection) With(terms ...string) *Query {
	return c.Query().With(terms...)
}

// Unwind starts a bound query with UNWIND.
func (c *Connection) Unwind(list any, name string) *Query {
	return c.Query().Unwind(list, name)
}

// Delete starts a bound query with DELETE.
func (c *Connection) Delete(terms ...string) *Query {
	return c.Query().Delete(terms...)
}

// DetachDelete starts a bound query with DETACH DELETE.
func (c *Connection) DetachDelete(terms ...string) *Query {
	return c.Query().DetachDelete(terms...)
}

// Set starts a bound query with SET.
func (c *Connection) Set(a Assignments, override bool) *Query {
	return c.Query().Set(a, override)
}

// SetLabels starts a bound query with SET n:Label.
func (c *Connection) SetLabels(labels map[string][]string) *Query {
	return c.Query().SetLabels(labels)
}

// SetValues starts a bound query with SET n.prop = $param.
func (c *Connection) SetValues(values map[string]any, override bool) *Query {
	return c.Query().SetValues(values, override)
}

// SetVariables starts a bound query with SET n.prop = expr.
func (c *Connection) SetVariables(variables map[string]string, override bool) *Query {
	return c.Query().SetVariables(variables, override)
}
