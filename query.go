package neoquery

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Builder is anything that compiles to Cypher text plus parameters.
// *Query implements it, and so does gocypher's *QueryBuilder.
type Builder interface {
	Build() (string, map[string]any, error)
}

var (
	_ Builder = (*Query)(nil)
	_ Builder = (*gocypher.QueryBuilder)(nil)
)

// CompiledQuery is the final query text with its bound parameters.
type CompiledQuery struct {
	Text   string
	Params map[string]any
}

// Query accumulates clauses into one Cypher statement.
//
// Query values are never modified after construction: each clause method
// returns a new Query, so a partially built query can be shared and extended
// from several places without aliasing. The first invalid argument is kept
// and reported by Compile, Build and Run.
type Query struct {
	conn    *Connection
	clauses []Clause
	err     error
}

// NewQuery returns an empty query that is not bound to a connection.
func NewQuery() *Query {
	return &Query{}
}

func (q *Query) with(c Clause) *Query {
	if q.err != nil {
		return q
	}
	clauses := make([]Clause, len(q.clauses), len(q.clauses)+1)
	copy(clauses, q.clauses)
	return &Query{conn: q.conn, clauses: append(clauses, c)}
}

func (q *Query) fail(kind ClauseKind, format string, args ...any) *Query {
	if q.err != nil {
		return q
	}
	err := fmt.Errorf("%w: %s: %s", ErrInvalidClause, kind, fmt.Sprintf(format, args...))
	return &Query{conn: q.conn, clauses: q.clauses, err: err}
}

// Clauses returns the clauses appended so far, in order.
func (q *Query) Clauses() []Clause {
	return slices.Clone(q.clauses)
}

// Err returns the first argument error recorded while chaining, if any.
func (q *Query) Err() error {
	return q.err
}

// MatchNode appends MATCH (name:Labels {conditions}).
func (q *Query) MatchNode(name string, labels []string, conditions map[string]any) *Query {
	return q.Match(Node(name, labels...).WithProperties(conditions))
}

// Match appends a MATCH clause. See Pattern for how patterns chain into paths.
func (q *Query) Match(patterns ...Pattern) *Query {
	return q.patterns(MatchClause, patterns)
}

// OptionalMatch appends an OPTIONAL MATCH clause.
func (q *Query) OptionalMatch(patterns ...Pattern) *Query {
	return q.patterns(OptionalMatchClause, patterns)
}

// CreateNode appends CREATE (name:Labels {conditions}).
func (q *Query) CreateNode(name string, labels []string, conditions map[string]any) *Query {
	return q.Create(Node(name, labels...).WithProperties(conditions))
}

// Create appends a CREATE clause.
func (q *Query) Create(patterns ...Pattern) *Query {
	return q.patterns(CreateClause, patterns)
}

// Merge appends a MERGE clause.
func (q *Query) Merge(patterns ...Pattern) *Query {
	return q.patterns(MergeClause, patterns)
}

func (q *Query) patterns(kind ClauseKind, patterns []Pattern) *Query {
	if len(patterns) == 0 {
		return q.fail(kind, "at least one pattern is required")
	}
	return q.with(patternClause{kind: kind, patterns: slices.Clone(patterns)})
}

// Where appends WHERE with one equality per entry, joined by AND. Keys are
// "n.prop" or a bare variable; a nil value renders IS NULL.
func (q *Query) Where(conditions map[string]any) *Query {
	if len(conditions) == 0 {
		return q.fail(WhereClause, "at least one condition is required")
	}
	return q.with(whereClause{conditions: maps.Clone(conditions)})
}

// Return appends RETURN with the given terms. Use As to alias a term.
func (q *Query) Return(terms ...string) *Query {
	return q.terms(ReturnClause, terms)
}

// With appends WITH with the given terms.
func (q *Query) With(terms ...string) *Query {
	return q.terms(WithClause, terms)
}

// OrderBy appends ORDER BY, e.g. OrderBy("n.name DESC").
func (q *Query) OrderBy(terms ...string) *Query {
	return q.terms(OrderByClause, terms)
}

func (q *Query) terms(kind ClauseKind, terms []string) *Query {
	if err := checkTerms(terms); err != nil {
		return q.fail(kind, "%v", err)
	}
	return q.with(termClause{kind: kind, terms: slices.Clone(terms)})
}

// As renders "expr AS alias" for use in Return and With.
func As(expr, alias string) string {
	return expr + " AS " + quoteIdent(alias)
}

// Unwind appends UNWIND $list AS name. list must be a slice or array and is
// bound as a parameter.
func (q *Query) Unwind(list any, name string) *Query {
	if strings.TrimSpace(name) == "" {
		return q.fail(UnwindClause, "a variable name is required")
	}
	if list == nil {
		return q.fail(UnwindClause, "list must not be nil")
	}
	if k := reflect.TypeOf(list).Kind(); k != reflect.Slice && k != reflect.Array {
		return q.fail(UnwindClause, "list must be a slice, got %T", list)
	}
	return q.with(unwindClause{list: list, name: name})
}

// Delete appends DELETE with the given variables.
func (q *Query) Delete(terms ...string) *Query {
	if err := checkTerms(terms); err != nil {
		return q.fail(DeleteClause, "%v", err)
	}
	return q.with(deleteClause{terms: slices.Clone(terms)})
}

// DetachDelete appends DETACH DELETE with the given variables.
func (q *Query) DetachDelete(terms ...string) *Query {
	if err := checkTerms(terms); err != nil {
		return q.fail(DetachDeleteClause, "%v", err)
	}
	return q.with(deleteClause{detach: true, terms: slices.Clone(terms)})
}

// Set appends one SET clause combining labels, values and variables.
// override only affects whole-variable keys: "n = $n" instead of "n += $n".
func (q *Query) Set(a Assignments, override bool) *Query {
	return q.set(SetClause, a, override)
}

// SetLabels appends SET n:Label for each variable.
func (q *Query) SetLabels(labels map[string][]string) *Query {
	return q.set(SetLabelsClause, Assignments{Labels: labels}, false)
}

// SetValues appends SET n.prop = $param for each entry.
func (q *Query) SetValues(values map[string]any, override bool) *Query {
	return q.set(SetValuesClause, Assignments{Values: values}, override)
}

// SetVariables appends SET n.prop = expr for each entry; expressions are
// written verbatim and bind no parameters.
func (q *Query) SetVariables(variables map[string]string, override bool) *Query {
	return q.set(SetVariablesClause, Assignments{Variables: variables}, override)
}

func (q *Query) set(kind ClauseKind, a Assignments, override bool) *Query {
	if a.empty() {
		return q.fail(kind, "nothing to set")
	}
	for name, labels := range a.Labels {
		if len(normalizeLabels(labels)) == 0 {
			return q.fail(kind, "no labels given for %q", name)
		}
	}
	items := Assignments{
		Labels:    cloneLabels(a.Labels),
		Values:    maps.Clone(a.Values),
		Variables: maps.Clone(a.Variables),
	}
	return q.with(setClause{kind: kind, items: items, override: override})
}

// Remove appends REMOVE for labels and "n.prop" properties.
func (q *Query) Remove(r Removals) *Query {
	if len(r.Labels) == 0 && len(r.Properties) == 0 {
		return q.fail(RemoveClause, "nothing to remove")
	}
	return q.with(removeClause{items: Removals{
		Labels:     cloneLabels(r.Labels),
		Properties: slices.Clone(r.Properties),
	}})
}

// Skip appends SKIP $skip.
func (q *Query) Skip(n int64) *Query {
	if n < 0 {
		return q.fail(SkipClause, "must not be negative")
	}
	return q.with(pageClause{kind: SkipClause, n: n})
}

// Limit appends LIMIT $limit.
func (q *Query) Limit(n int64) *Query {
	if n < 0 {
		return q.fail(LimitClause, "must not be negative")
	}
	return q.with(pageClause{kind: LimitClause, n: n})
}

// Compile walks the clauses in order and produces the query text and its
// parameters.
func (q *Query) Compile() (*CompiledQuery, error) {
	if q.err != nil {
		return nil, q.err
	}
	if len(q.clauses) == 0 {
		return nil, ErrNoClauses
	}
	if err := checkTerminal(q.clauses); err != nil {
		return nil, err
	}

	params := newParameterBag()
	lines := make([]string, 0, len(q.clauses))
	for _, c := range q.clauses {
		text, err := c.build(params)
		if err != nil {
			return nil, err
		}
		lines = append(lines, text)
	}
	return &CompiledQuery{Text: strings.Join(lines, "\n"), Params: params.params}, nil
}

// Build implements Builder.
func (q *Query) Build() (string, map[string]any, error) {
	compiled, err := q.Compile()
	if err != nil {
		return "", nil, err
	}
	return compiled.Text, compiled.Params, nil
}

// String returns the compiled text, or the build error message.
func (q *Query) String() string {
	text, _, err := q.Build()
	if err != nil {
		return "<invalid query: " + err.Error() + ">"
	}
	return text
}

// Run compiles the query and executes it on the bound connection.
func (q *Query) Run(ctx context.Context) ([]Row, error) {
	if q.conn == nil {
		return nil, ErrNoConnection
	}
	return q.conn.Run(ctx, q)
}

// RunResult is like Run but also reports the projected columns.
func (q *Query) RunResult(ctx context.Context) (*Result, error) {
	if q.conn == nil {
		return nil, ErrNoConnection
	}
	return q.conn.RunResult(ctx, q)
}

func checkTerminal(clauses []Clause) error {
	for i := len(clauses) - 1; i >= 0; i-- {
		kind := clauses[i].Kind()
		if kind.modifier() {
			continue
		}
		if kind == ReturnClause || kind.updating() {
			return nil
		}
		return fmt.Errorf("%w: last clause is %s", ErrIncompleteQuery, kind)
	}
	return fmt.Errorf("%w: only %s", ErrIncompleteQuery, clauses[len(clauses)-1].Kind())
}

func checkTerms(terms []string) error {
	if len(terms) == 0 {
		return errors.New("at least one term is required")
	}
	for _, t := range terms {
		if strings.TrimSpace(t) == "" {
			return errors.New("terms must not be empty")
		}
	}
	return nil
}

func cloneLabels(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
