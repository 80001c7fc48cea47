package neoquery

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ClauseKind identifies one syntactic step of a query.
type ClauseKind int

const (
	MatchClause ClauseKind = iota
	OptionalMatchClause
	CreateClause
	MergeClause
	WhereClause
	ReturnClause
	WithClause
	UnwindClause
	DeleteClause
	DetachDeleteClause
	SetClause
	SetLabelsClause
	SetValuesClause
	SetVariablesClause
	RemoveClause
	OrderByClause
	SkipClause
	LimitClause
)

var clauseKeywords = map[ClauseKind]string{
	MatchClause:         "MATCH",
	OptionalMatchClause: "OPTIONAL MATCH",
	CreateClause:        "CREATE",
	MergeClause:         "MERGE",
	WhereClause:         "WHERE",
	ReturnClause:        "RETURN",
	WithClause:          "WITH",
	UnwindClause:        "UNWIND",
	DeleteClause:        "DELETE",
	DetachDeleteClause:  "DETACH DELETE",
	SetClause:           "SET",
	SetLabelsClause:     "SET",
	SetValuesClause:     "SET",
	SetVariablesClause:  "SET",
	RemoveClause:        "REMOVE",
	OrderByClause:       "ORDER BY",
	SkipClause:          "SKIP",
	LimitClause:         "LIMIT",
}

func (k ClauseKind) String() string {
	if kw, ok := clauseKeywords[k]; ok {
		return kw
	}
	return fmt.Sprintf("ClauseKind(%d)", int(k))
}

// updating reports whether a query may end with a clause of this kind.
func (k ClauseKind) updating() bool {
	switch k {
	case CreateClause, MergeClause, DeleteClause, DetachDeleteClause,
		SetClause, SetLabelsClause, SetValuesClause, SetVariablesClause, RemoveClause:
		return true
	}
	return false
}

// modifier reports whether the clause only refines the preceding projection.
func (k ClauseKind) modifier() bool {
	return k == OrderByClause || k == SkipClause || k == LimitClause
}

// Clause is one step of a query. The set of clause implementations is
// closed; clauses are created through Query methods.
type Clause interface {
	Kind() ClauseKind
	build(params *parameterBag) (string, error)
}

type patternClause struct {
	kind     ClauseKind
	patterns []Pattern
}

func (c patternClause) Kind() ClauseKind { return c.kind }

func (c patternClause) build(params *parameterBag) (string, error) {
	text, err := renderPatterns(c.patterns, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.kind, err)
	}
	return c.kind.String() + " " + text, nil
}

// termClause covers RETURN, WITH and ORDER BY, which list expressions verbatim.
type termClause struct {
	kind  ClauseKind
	terms []string
}

func (c termClause) Kind() ClauseKind { return c.kind }

func (c termClause) build(*parameterBag) (string, error) {
	return c.kind.String() + " " + strings.Join(c.terms, ", "), nil
}

type unwindClause struct {
	list any
	name string
}

func (c unwindClause) Kind() ClauseKind { return UnwindClause }

func (c unwindClause) build(params *parameterBag) (string, error) {
	key := params.add(paramBase(c.name, "list"), c.list)
	return fmt.Sprintf("UNWIND $%s AS %s", key, quoteIdent(c.name)), nil
}

type deleteClause struct {
	detach bool
	terms  []string
}

func (c deleteClause) Kind() ClauseKind {
	if c.detach {
		return DetachDeleteClause
	}
	return DeleteClause
}

func (c deleteClause) build(*parameterBag) (string, error) {
	return c.Kind().String() + " " + strings.Join(c.terms, ", "), nil
}

// Assignments groups the items of a SET clause.
//
// Labels maps a variable to the labels to add. Values maps "n.prop" (or a
// whole variable "n") to a literal bound as a parameter. Variables maps the
// same kind of keys to Cypher expressions written verbatim.
type Assignments struct {
	Labels    map[string][]string
	Values    map[string]any
	Variables map[string]string
}

func (a Assignments) empty() bool {
	return len(a.Labels) == 0 && len(a.Values) == 0 && len(a.Variables) == 0
}

type setClause struct {
	kind     ClauseKind
	items    Assignments
	override bool
}

func (c setClause) Kind() ClauseKind { return c.kind }

func (c setClause) build(params *parameterBag) (string, error) {
	var parts []string
	for _, name := range slices.Sorted(maps.Keys(c.items.Labels)) {
		parts = append(parts, quoteIdent(name)+labelSuffix(c.items.Labels[name]))
	}
	for _, key := range slices.Sorted(maps.Keys(c.items.Values)) {
		entity, prop := splitProperty(key)
		param := "$" + params.add(paramBase(entity, prop), c.items.Values[key])
		parts = append(parts, c.assign(entity, prop, param))
	}
	for _, key := range slices.Sorted(maps.Keys(c.items.Variables)) {
		entity, prop := splitProperty(key)
		parts = append(parts, c.assign(entity, prop, c.items.Variables[key]))
	}
	return "SET " + strings.Join(parts, ", "), nil
}

func (c setClause) assign(entity, prop, expr string) string {
	if prop != "" {
		return propertyRef(entity, prop) + " = " + expr
	}
	if c.override {
		return quoteIdent(entity) + " = " + expr
	}
	return quoteIdent(entity) + " += " + expr
}

// Removals groups the items of a REMOVE clause.
type Removals struct {
	Labels     map[string][]string
	Properties []string
}

type removeClause struct {
	items Removals
}

func (c removeClause) Kind() ClauseKind { return RemoveClause }

func (c removeClause) build(*parameterBag) (string, error) {
	var parts []string
	for _, name := range slices.Sorted(maps.Keys(c.items.Labels)) {
		parts = append(parts, quoteIdent(name)+labelSuffix(c.items.Labels[name]))
	}
	for _, key := range c.items.Properties {
		entity, prop := splitProperty(key)
		if prop == "" {
			return "", fmt.Errorf("%w: REMOVE property %q must be of the form var.prop", ErrInvalidClause, key)
		}
		parts = append(parts, propertyRef(entity, prop))
	}
	return "REMOVE " + strings.Join(parts, ", "), nil
}

type whereClause struct {
	conditions map[string]any
}

func (c whereClause) Kind() ClauseKind { return WhereClause }

func (c whereClause) build(params *parameterBag) (string, error) {
	var parts []string
	for _, key := range slices.Sorted(maps.Keys(c.conditions)) {
		entity, prop := splitProperty(key)
		ref := quoteIdent(entity)
		if prop != "" {
			ref = propertyRef(entity, prop)
		}
		value := c.conditions[key]
		if value == nil {
			parts = append(parts, ref+" IS NULL")
			continue
		}
		parts = append(parts, ref+" = $"+params.add(paramBase(entity, prop), value))
	}
	return "WHERE " + strings.Join(parts, " AND "), nil
}

// pageClause covers SKIP and LIMIT.
type pageClause struct {
	kind ClauseKind
	n    int64
}

func (c pageClause) Kind() ClauseKind { return c.kind }

func (c pageClause) build(params *parameterBag) (string, error) {
	base := "skip"
	if c.kind == LimitClause {
		base = "limit"
	}
	return c.kind.String() + " $" + params.add(base, c.n), nil
}

// splitProperty splits "n.prop" into ("n", "prop"). Keys without a dot
// refer to the whole variable.
func splitProperty(key string) (string, string) {
	entity, prop, _ := strings.Cut(key, ".")
	return entity, prop
}

func propertyRef(entity, prop string) string {
	return quoteIdent(entity) + "." + quoteIdent(prop)
}

func labelSuffix(labels []string) string {
	var b strings.Builder
	for _, l := range normalizeLabels(labels) {
		b.WriteByte(':')
		b.WriteString(quoteIdent(l))
	}
	return b.String()
}
