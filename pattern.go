package neoquery

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Direction is the orientation of a relationship pattern.
type Direction int

const (
	// Either matches a relationship regardless of its orientation: -[r]-
	Either Direction = iota
	// Out points from the preceding node to the following one: -[r]->
	Out
	// In points from the following node to the preceding one: <-[r]-
	In
)

type patternKind int

const (
	nodePattern patternKind = iota
	relationshipPattern
)

// Pattern describes a node or relationship to match, create or merge.
// It is an immutable value: every modifier returns a copy.
type Pattern struct {
	kind       patternKind
	name       string
	labels     []string
	conditions map[string]any
	direction  Direction
}

// Node creates a node pattern. A single label or an ordered list of labels
// may be given; the order is kept in the generated Cypher.
func Node(name string, labels ...string) Pattern {
	return Pattern{
		kind:   nodePattern,
		name:   name,
		labels: normalizeLabels(labels),
	}
}

// Relation creates a relationship pattern with the given direction and
// relationship types. Multiple types render as alternatives (:A|B).
func Relation(dir Direction, name string, types ...string) Pattern {
	return Pattern{
		kind:      relationshipPattern,
		name:      name,
		labels:    normalizeLabels(types),
		direction: dir,
	}
}

// WithProperties returns a copy of the pattern whose property conditions are
// props. Each entry is bound as its own query parameter.
func (p Pattern) WithProperties(props map[string]any) Pattern {
	p.conditions = maps.Clone(props)
	return p
}

// Name returns the variable the pattern binds, or "" for anonymous patterns.
func (p Pattern) Name() string { return p.name }

// Labels returns a copy of the pattern's labels (or relationship types).
func (p Pattern) Labels() []string { return slices.Clone(p.labels) }

// IsRelationship reports whether the pattern describes a relationship.
func (p Pattern) IsRelationship() bool { return p.kind == relationshipPattern }

func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// render writes the pattern text, registering its conditions in params.
func (p Pattern) render(params *parameterBag) string {
	var b strings.Builder
	b.WriteString(quoteIdent(p.name))
	if len(p.labels) > 0 {
		if p.kind == nodePattern {
			for _, l := range p.labels {
				b.WriteByte(':')
				b.WriteString(quoteIdent(l))
			}
		} else {
			quoted := make([]string, len(p.labels))
			for i, l := range p.labels {
				quoted[i] = quoteIdent(l)
			}
			b.WriteByte(':')
			b.WriteString(strings.Join(quoted, "|"))
		}
	}
	if len(p.conditions) > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('{')
		for i, key := range slices.Sorted(maps.Keys(p.conditions)) {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quoteIdent(key))
			b.WriteString(": $")
			b.WriteString(params.add(paramBase(p.name, key), p.conditions[key]))
		}
		b.WriteByte('}')
	}

	if p.kind == nodePattern {
		return "(" + b.String() + ")"
	}
	inner := "[" + b.String() + "]"
	if b.Len() == 0 {
		inner = ""
	}
	switch p.direction {
	case Out:
		return "-" + inner + "->"
	case In:
		return "<-" + inner + "-"
	default:
		return "-" + inner + "-"
	}
}

// renderPatterns chains patterns into paths. A relationship joins the nodes
// around it; a node directly after a node starts a new path.
func renderPatterns(patterns []Pattern, params *parameterBag) (string, error) {
	if len(patterns) == 0 {
		return "", fmt.Errorf("%w: at least one pattern is required", ErrInvalidPattern)
	}

	var (
		paths   []string
		current strings.Builder
		prev    *Pattern
	)
	for i := range patterns {
		p := patterns[i]
		switch {
		case p.kind == relationshipPattern && (prev == nil || prev.kind == relationshipPattern):
			return "", fmt.Errorf("%w: relationship %q must follow a node", ErrInvalidPattern, p.name)
		case p.kind == nodePattern && prev != nil && prev.kind == nodePattern:
			paths = append(paths, current.String())
			current.Reset()
		}
		current.WriteString(p.render(params))
		prev = &patterns[i]
	}
	if prev.kind == relationshipPattern {
		return "", fmt.Errorf("%w: relationship %q must be followed by a node", ErrInvalidPattern, prev.name)
	}
	paths = append(paths, current.String())
	return strings.Join(paths, ", "), nil
}

// quoteIdent backtick-quotes names that are not plain Cypher identifiers.
func quoteIdent(s string) string {
	if s == "" || isPlainIdent(s) {
		return s
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func isPlainIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
