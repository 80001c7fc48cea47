package neoquery

import (
	"context"
	"sync"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/require"
)

// fakeCall is one query received by a fakeSession.
type fakeCall struct {
	Text   string
	Params map[string]any
}

// fakeDriver records sessions and queries. handler decides the outcome of
// every run; by default runs return no records.
type fakeDriver struct {
	mu             sync.Mutex
	handler        func(ctx context.Context, call fakeCall) (*RawResult, error)
	calls          []fakeCall
	sessionsOpened int
	sessionsClosed int
	closed         bool
	closeErr       error
	closeSessErr   error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{}
}

// returning makes every run answer with records built from keys and rows.
func (d *fakeDriver) returning(keys []string, rows ...[]any) *fakeDriver {
	records := make([]*neo4j.Record, 0, len(rows))
	for _, values := range rows {
		records = append(records, &neo4j.Record{Keys: keys, Values: values})
	}
	d.handler = func(context.Context, fakeCall) (*RawResult, error) {
		return &RawResult{Keys: keys, Records: records}, nil
	}
	return d
}

func (d *fakeDriver) failing(err error) *fakeDriver {
	d.handler = func(context.Context, fakeCall) (*RawResult, error) {
		return nil, err
	}
	return d
}

func (d *fakeDriver) NewSession(context.Context) Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionsOpened++
	return &fakeSession{driver: d}
}

func (d *fakeDriver) Close(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.closeErr
}

func (d *fakeDriver) Calls() []fakeCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]fakeCall(nil), d.calls...)
}

func (d *fakeDriver) Sessions() (opened, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionsOpened, d.sessionsClosed
}

func (d *fakeDriver) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeSession struct {
	driver *fakeDriver
}

func (s *fakeSession) Run(ctx context.Context, cypher string, params map[string]any) (*RawResult, error) {
	call := fakeCall{Text: cypher, Params: params}
	s.driver.mu.Lock()
	s.driver.calls = append(s.driver.calls, call)
	handler := s.driver.handler
	s.driver.mu.Unlock()

	if handler == nil {
		return &RawResult{}, nil
	}
	return handler(ctx, call)
}

func (s *fakeSession) Close(context.Context) error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	s.driver.sessionsClosed++
	return s.driver.closeSessErr
}

// newTestConnection opens a connection on d and closes it when the test ends.
func newTestConnection(t *testing.T, d Driver, opts ...Option) *Connection {
	t.Helper()
	conn, err := NewConnection("bolt://fake:7687", Credentials{Username: "neo4j", Password: "secret"},
		append([]Option{WithDriver(d)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	return conn
}

func personNode(id, name string) neo4j.Node {
	return neo4j.Node{
		ElementId: id,
		Labels:    []string{"Person"},
		Props:     map[string]any{"name": name},
	}
}
