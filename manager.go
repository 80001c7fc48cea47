package neoquery

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Manager gives access to repositories and to operations that span entity
// types, such as relating two entities.
type Manager struct {
	conn *Connection
	// metaCache holds *entityMetadata per reflect.Type.
	metaCache sync.Map
}

// NewManager creates a Manager on conn.
func NewManager(conn *Connection) *Manager {
	return &Manager{conn: conn}
}

// RepositoryFor returns a repository for T that shares m's metadata cache.
//
// Returns:
//
//	A new Repository, or an error if T's struct tags are invalid.
func RepositoryFor[T any](m *Manager) (*Repository[T], error) {
	meta, err := m.metadata(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return &Repository[T]{conn: m.conn, meta: meta}, nil
}

// CreateRelation creates (from)-[:relType {props}]->(to) between two saved
// entities, matched by label and primary key.
//
// Parameters:
//   - ctx: controls cancellation of the query.
//   - from: pointer to the start entity.
//   - to: pointer to the end entity.
//   - relType: the relationship type, e.g. "WROTE"; it must not be empty.
//   - props: relationship properties, bound as parameters; may be nil.
//
// Returns:
//
//	An error if an entity is not a tagged struct pointer, relType is empty
//	or the query fails. Nothing is created if either node is missing.
func (m *Manager) CreateRelation(ctx context.Context, from, to any, relType string, props map[string]any) error {
	if relType == "" {
		return fmt.Errorf("relationship type cannot be empty")
	}
	fromMeta, fromPK, err := m.metaAndPK(from)
	if err != nil {
		return err
	}
	toMeta, toPK, err := m.metaAndPK(to)
	if err != nil {
		return err
	}

	_, err = m.conn.
		Match(Node("a", fromMeta.Label).WithProperties(map[string]any{fromMeta.PKProp: fromPK})).
		Match(Node("b", toMeta.Label).WithProperties(map[string]any{toMeta.PKProp: toPK})).
		Create(Node("a"), Relation(Out, "r", relType).WithProperties(props), Node("b")).
		Run(ctx)
	return err
}

// FindGraph runs any Builder, including a gocypher query builder, and
// collects the returned nodes and relationships into a de-duplicated graph.
// The query must RETURN the elements to include, e.g. RETURN u, r, p.
//
// Parameters:
//   - ctx: controls cancellation of the query.
//   - b: a *Query or any other Builder, such as *gocypher.QueryBuilder.
//
// Returns:
//
//	The collected graph, ErrNotFound if the query succeeds with zero
//	records, or the query's error.
func (m *Manager) FindGraph(ctx context.Context, b Builder) (*GraphResult, error) {
	rows, err := m.conn.Run(ctx, b)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return CollectGraph(rows), nil
}

func (m *Manager) metadata(typ reflect.Type) (*entityMetadata, error) {
	if cached, ok := m.metaCache.Load(typ); ok {
		return cached.(*entityMetadata), nil
	}
	meta, err := parseTagsFromType(typ)
	if err != nil {
		return nil, err
	}
	m.metaCache.Store(typ, meta)
	return meta, nil
}

// metaAndPK returns the metadata and primary key value of a struct pointer.
func (m *Manager) metaAndPK(entity any) (*entityMetadata, any, error) {
	val := reflect.ValueOf(entity)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return nil, nil, fmt.Errorf("entity must be a non-nil pointer")
	}
	meta, err := m.metadata(val.Elem().Type())
	if err != nil {
		return nil, nil, err
	}
	return meta, val.Elem().FieldByName(meta.PKField).Interface(), nil
}
