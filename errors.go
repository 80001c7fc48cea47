package neoquery

import "errors"

var (
	// ErrNotFound is returned by lookups when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrNoClauses is returned when a query with no clauses is built or run.
	ErrNoClauses = errors.New("no clauses attached to the query")

	// ErrIncompleteQuery is returned when a query does not end with RETURN or
	// an updating clause.
	ErrIncompleteQuery = errors.New("query must end with RETURN or an updating clause")

	// ErrInvalidClause is returned when a clause was given arguments of the
	// wrong shape, such as DELETE without terms.
	ErrInvalidClause = errors.New("invalid clause")

	// ErrInvalidPattern is returned for pattern sequences that do not form paths.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrConnectionClosed is returned when a closed connection is asked to
	// open a session or run a query.
	ErrConnectionClosed = errors.New("connection is not open")

	// ErrNoConnection is returned by Query.Run on a query not bound to a connection.
	ErrNoConnection = errors.New("query is not bound to a connection")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")
)
