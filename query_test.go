package neoquery

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Compile(t *testing.T) {
	tests := []struct {
		name       string
		query      *Query
		wantText   string
		wantParams map[string]any
	}{
		{
			name:       "match node and return",
			query:      NewQuery().MatchNode("n", []string{"Person"}, map[string]any{"name": "Alice"}).Return("n"),
			wantText:   "MATCH (n:Person {name: $n_name})\nRETURN n",
			wantParams: map[string]any{"n_name": "Alice"},
		},
		{
			name: "create node with several properties",
			query: NewQuery().
				CreateNode("n", []string{"Person"}, map[string]any{"name": "Alice", "age": 30}).
				Return("n"),
			wantText:   "CREATE (n:Person {age: $n_age, name: $n_name})\nRETURN n",
			wantParams: map[string]any{"n_age": 30, "n_name": "Alice"},
		},
		{
			name: "optional match forwards its patterns",
			query: NewQuery().
				MatchNode("a", []string{"Person"}, nil).
				OptionalMatch(Node("a"), Relation(Out, "r", "KNOWS"), Node("b")).
				Return("a", "b"),
			wantText:   "MATCH (a:Person)\nOPTIONAL MATCH (a)-[r:KNOWS]->(b)\nRETURN a, b",
			wantParams: map[string]any{},
		},
		{
			name: "merge",
			query: NewQuery().
				Merge(Node("u", "User").WithProperties(map[string]any{"userId": "u1"})).
				Return("u"),
			wantText:   "MERGE (u:User {userId: $u_userId})\nRETURN u",
			wantParams: map[string]any{"u_userId": "u1"},
		},
		{
			name: "with and aliases",
			query: NewQuery().
				MatchNode("n", []string{"Person"}, nil).
				With("n", As("count(*)", "total")).
				Return("total"),
			wantText:   "MATCH (n:Person)\nWITH n, count(*) AS total\nRETURN total",
			wantParams: map[string]any{},
		},
		{
			name: "unwind binds the list",
			query: NewQuery().
				Unwind([]string{"a", "b"}, "name").
				CreateNode("t", []string{"Tag"}, nil).
				SetVariables(map[string]string{"t.name": "name"}, false),
			wantText:   "UNWIND $name_list AS name\nCREATE (t:Tag)\nSET t.name = name",
			wantParams: map[string]any{"name_list": []string{"a", "b"}},
		},
		{
			name:       "delete",
			query:      NewQuery().MatchNode("n", nil, nil).Delete("n"),
			wantText:   "MATCH (n)\nDELETE n",
			wantParams: map[string]any{},
		},
		{
			name:       "detach delete several terms",
			query:      NewQuery().Match(Node("a"), Relation(Either, "r"), Node("b")).DetachDelete("a", "b"),
			wantText:   "MATCH (a)-[r]-(b)\nDETACH DELETE a, b",
			wantParams: map[string]any{},
		},
		{
			name: "set combines labels values and variables",
			query: NewQuery().
				MatchNode("n", []string{"Person"}, nil).
				Set(Assignments{
					Labels:    map[string][]string{"n": {"Admin", "Staff"}},
					Values:    map[string]any{"n.age": 31},
					Variables: map[string]string{"n.updated": "timestamp()"},
				}, false),
			wantText:   "MATCH (n:Person)\nSET n:Admin:Staff, n.age = $n_age, n.updated = timestamp()",
			wantParams: map[string]any{"n_age": 31},
		},
		{
			name: "set labels",
			query: NewQuery().
				MatchNode("n", nil, nil).
				SetLabels(map[string][]string{"n": {"Archived"}}),
			wantText:   "MATCH (n)\nSET n:Archived",
			wantParams: map[string]any{},
		},
		{
			name: "set values merges whole variable by default",
			query: NewQuery().
				MatchNode("n", nil, nil).
				SetValues(map[string]any{"n": map[string]any{"a": 1}}, false),
			wantText:   "MATCH (n)\nSET n += $n",
			wantParams: map[string]any{"n": map[string]any{"a": 1}},
		},
		{
			name: "set values override replaces whole variable",
			query: NewQuery().
				MatchNode("n", nil, nil).
				SetValues(map[string]any{"n": map[string]any{"a": 1}}, true),
			wantText:   "MATCH (n)\nSET n = $n",
			wantParams: map[string]any{"n": map[string]any{"a": 1}},
		},
		{
			name: "set variables override",
			query: NewQuery().
				Match(Node("n"), Node("m")).
				SetVariables(map[string]string{"n": "m"}, true),
			wantText:   "MATCH (n), (m)\nSET n = m",
			wantParams: map[string]any{},
		},
		{
			name: "where with null check",
			query: NewQuery().
				MatchNode("n", []string{"Person"}, nil).
				Where(map[string]any{"n.name": "Alice", "n.deleted": nil}).
				Return("n"),
			wantText:   "MATCH (n:Person)\nWHERE n.deleted IS NULL AND n.name = $n_name\nRETURN n",
			wantParams: map[string]any{"n_name": "Alice"},
		},
		{
			name: "order skip and limit follow return",
			query: NewQuery().
				MatchNode("n", []string{"Person"}, nil).
				Return("n").
				OrderBy("n.name DESC").
				Skip(10).
				Limit(5),
			wantText:   "MATCH (n:Person)\nRETURN n\nORDER BY n.name DESC\nSKIP $skip\nLIMIT $limit",
			wantParams: map[string]any{"skip": int64(10), "limit": int64(5)},
		},
		{
			name: "remove",
			query: NewQuery().
				MatchNode("n", nil, nil).
				Remove(Removals{Labels: map[string][]string{"n": {"Admin"}}, Properties: []string{"n.age"}}),
			wantText:   "MATCH (n)\nREMOVE n:Admin, n.age",
			wantParams: map[string]any{},
		},
		{
			name:       "return only",
			query:      NewQuery().Return("1"),
			wantText:   "RETURN 1",
			wantParams: map[string]any{},
		},
		{
			name:       "delete without match still compiles",
			query:      NewQuery().Delete("n"),
			wantText:   "DELETE n",
			wantParams: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := tt.query.Compile()
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, compiled.Text)
			assert.Equal(t, tt.wantParams, compiled.Params)
		})
	}
}

func TestQuery_CompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   *Query
		wantErr error
	}{
		{"no clauses", NewQuery(), ErrNoClauses},
		{"match without return", NewQuery().MatchNode("n", nil, nil), ErrIncompleteQuery},
		{"with at the end", NewQuery().MatchNode("n", nil, nil).With("n"), ErrIncompleteQuery},
		{"only modifiers", NewQuery().Limit(1), ErrIncompleteQuery},
		{"delete without terms", NewQuery().MatchNode("n", nil, nil).Delete(), ErrInvalidClause},
		{"detach delete with blank term", NewQuery().DetachDelete(" "), ErrInvalidClause},
		{"return without terms", NewQuery().Return(), ErrInvalidClause},
		{"match without patterns", NewQuery().Match().Return("n"), ErrInvalidClause},
		{"optional match without patterns", NewQuery().OptionalMatch().Return("n"), ErrInvalidClause},
		{"unwind a scalar", NewQuery().Unwind("abc", "x").Return("x"), ErrInvalidClause},
		{"unwind nil", NewQuery().Unwind(nil, "x").Return("x"), ErrInvalidClause},
		{"unwind without name", NewQuery().Unwind([]int{1}, "").Return("1"), ErrInvalidClause},
		{"empty set", NewQuery().Set(Assignments{}, false), ErrInvalidClause},
		{"set labels without labels", NewQuery().SetLabels(map[string][]string{"n": {}}), ErrInvalidClause},
		{"empty where", NewQuery().MatchNode("n", nil, nil).Where(nil).Return("n"), ErrInvalidClause},
		{"negative skip", NewQuery().Return("n").Skip(-1), ErrInvalidClause},
		{"negative limit", NewQuery().Return("n").Limit(-1), ErrInvalidClause},
		{"empty remove", NewQuery().Remove(Removals{}), ErrInvalidClause},
		{"remove property without variable", NewQuery().Remove(Removals{Properties: []string{"age"}}), ErrInvalidClause},
		{"dangling relationship", NewQuery().Match(Node("a"), Relation(Out, "r")).Return("a"), ErrInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.query.Compile()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			text, params, err := tt.query.Build()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, text)
			assert.Nil(t, params)
		})
	}
}

func TestQuery_FirstErrorWins(t *testing.T) {
	q := NewQuery().Delete().Return().MatchNode("n", nil, nil)
	require.Error(t, q.Err())
	assert.ErrorIs(t, q.Err(), ErrInvalidClause)
	assert.Contains(t, q.Err().Error(), "DELETE")
	assert.Empty(t, q.Clauses())
	assert.True(t, strings.HasPrefix(q.String(), "<invalid query:"))
}

func TestQuery_BranchesDoNotAlias(t *testing.T) {
	base := NewQuery().MatchNode("n", []string{"Person"}, nil)
	read := base.Return("n")
	write := base.Delete("n")

	assert.Len(t, base.Clauses(), 1)
	assert.Equal(t, "MATCH (n:Person)\nRETURN n", read.String())
	assert.Equal(t, "MATCH (n:Person)\nDELETE n", write.String())

	// Extending a branch many times must not leak into its sibling even when
	// the backing array has spare capacity.
	a := read.Limit(1)
	b := read.Skip(2)
	assert.Equal(t, LimitClause, a.Clauses()[2].Kind())
	assert.Equal(t, SkipClause, b.Clauses()[2].Kind())
}

func TestQuery_ClauseKinds(t *testing.T) {
	q := NewQuery().
		MatchNode("n", nil, nil).
		OptionalMatch(Node("m")).
		SetLabels(map[string][]string{"n": {"A"}}).
		SetValues(map[string]any{"n.a": 1}, false).
		SetVariables(map[string]string{"n.b": "m.b"}, false).
		Set(Assignments{Values: map[string]any{"n.c": 2}}, false).
		With("n").
		Unwind([]int{1}, "x").
		Create(Node("c")).
		Delete("m").
		DetachDelete("c").
		Return("n")

	var kinds []ClauseKind
	for _, c := range q.Clauses() {
		kinds = append(kinds, c.Kind())
	}
	assert.Equal(t, []ClauseKind{
		MatchClause, OptionalMatchClause, SetLabelsClause, SetValuesClause,
		SetVariablesClause, SetClause, WithClause, UnwindClause, CreateClause,
		DeleteClause, DetachDeleteClause, ReturnClause,
	}, kinds)
	assert.Equal(t, "DETACH DELETE", DetachDeleteClause.String())
	assert.Equal(t, "ClauseKind(99)", ClauseKind(99).String())
}

func TestQuery_ParameterKeysNeverCollide(t *testing.T) {
	q := NewQuery()
	for i := 0; i < 5; i++ {
		q = q.MatchNode("n", []string{"Person"}, map[string]any{"name": i, "age": i * 10})
	}
	q = q.SetValues(map[string]any{"n.name": "last"}, false).Return("n")

	compiled, err := q.Compile()
	require.NoError(t, err)
	assert.Len(t, compiled.Params, 11)
	assert.Equal(t, 11, strings.Count(compiled.Text, "$"))
	for key := range compiled.Params {
		assert.Equal(t, 1, strings.Count(compiled.Text, "$"+key+"}")+
			strings.Count(compiled.Text, "$"+key+",")+
			strings.Count(compiled.Text, "$"+key+"\n"),
			"key %s must be referenced exactly once", key)
	}
	assert.Equal(t, 0, compiled.Params["n_name"])
	assert.Equal(t, 4, compiled.Params["n_name5"])
	assert.Equal(t, "last", compiled.Params["n_name6"])
}

func TestQuery_InputsAreCopied(t *testing.T) {
	conds := map[string]any{"name": "Alice"}
	terms := []string{"n"}
	values := map[string]any{"n.age": 1}
	q := NewQuery().MatchNode("n", nil, conds).SetValues(values, false).Return(terms...)

	conds["name"] = "Bob"
	values["n.age"] = 2
	terms[0] = "m"

	compiled, err := q.Compile()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n {name: $n_name})\nSET n.age = $n_age\nRETURN n", compiled.Text)
	assert.Equal(t, map[string]any{"n_name": "Alice", "n_age": 1}, compiled.Params)
}

func TestQuery_RunWithoutConnection(t *testing.T) {
	_, err := NewQuery().Return("1").Run(context.Background())
	assert.ErrorIs(t, err, ErrNoConnection)

	_, err = NewQuery().Return("1").RunResult(context.Background())
	assert.ErrorIs(t, err, ErrNoConnection)
}
