package neoquery

import (
	"context"
	"fmt"
	"reflect"
)

// Repository provides CRUD operations for one entity type T, mapped to nodes
// through `graph` struct tags.
type Repository[T any] struct {
	conn *Connection
	meta *entityMetadata
}

// NewRepository creates a repository for T on conn.
//
// Parameters:
//   - conn: the connection every query of the repository runs on.
//
// Returns:
//
//	A new Repository, or an error if T's struct tags are invalid.
func NewRepository[T any](conn *Connection) (*Repository[T], error) {
	meta, err := parseTagsFromType(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return &Repository[T]{conn: conn, meta: meta}, nil
}

// Save creates the node or updates the existing one. It merges on the
// primary key and sets every other tagged field.
//
// Parameters:
//   - ctx: controls cancellation of the query.
//   - entity: the entity to store; it must not be nil.
//
// Returns:
//
//	An error if entity is nil or the query fails.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("cannot save a nil %s", r.meta.Label)
	}
	val := reflect.ValueOf(entity).Elem()
	pk := val.FieldByName(r.meta.PKField).Interface()

	values := make(map[string]any)
	for field, prop := range r.meta.Mappings {
		if field != r.meta.PKField {
			values["n."+prop] = val.FieldByName(field).Interface()
		}
	}

	q := r.conn.Merge(Node("n", r.meta.Label).WithProperties(map[string]any{r.meta.PKProp: pk}))
	if len(values) > 0 {
		q = q.SetValues(values, false)
	}
	_, err := q.Run(ctx)
	return err
}

// FindByID returns the entity whose primary key is id.
//
// Parameters:
//   - ctx: controls cancellation of the query.
//   - id: the primary key value to match.
//
// Returns:
//
//	The entity, ErrNotFound if no node matches, or an error if more than one
//	node matches or mapping fails.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return r.FindOne(ctx, r.conn.
		MatchNode("n", []string{r.meta.Label}, map[string]any{r.meta.PKProp: id}).
		Return("n"))
}

// FindAll returns every node with T's label.
//
// Returns:
//
//	One entity per node, in the order the database returns them, or an
//	error if the query or mapping fails.
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	return r.Find(ctx, r.conn.MatchNode("n", []string{r.meta.Label}, nil).Return("n"))
}

// FindByProperty returns every node with T's label whose prop equals value.
//
// Parameters:
//   - ctx: controls cancellation of the query.
//   - prop: the node property name, e.g. "email".
//   - value: the value the property must equal.
//
// Returns:
//
//	The matching entities, possibly none, or an error.
func (r *Repository[T]) FindByProperty(ctx context.Context, prop string, value any) ([]*T, error) {
	return r.Find(ctx, r.conn.
		MatchNode("n", []string{r.meta.Label}, map[string]any{prop: value}).
		Return("n"))
}

// Find runs b on the repository's connection and maps the single node of
// every returned row to T. b may be a *Query or a gocypher builder.
func (r *Repository[T]) Find(ctx context.Context, b Builder) ([]*T, error) {
	rows, err := r.conn.Run(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(rows))
	for i, row := range rows {
		entity, err := r.fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// FindOne runs b and expects exactly one row.
//
// Returns:
//
//	The entity, ErrNotFound for zero rows, or an error for more than one.
func (r *Repository[T]) FindOne(ctx context.Context, b Builder) (*T, error) {
	found, err := r.Find(ctx, b)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("expected 1 record but found %d", len(found))
	}
}

// Count returns the number of nodes with T's label.
//
// Returns:
//
//	The count as reported by count(n), or an error if the query fails or
//	the result is not a single integer.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	rows, err := r.conn.
		MatchNode("n", []string{r.meta.Label}, nil).
		Return(As("count(n)", "count")).
		Run(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("expected 1 record but found %d", len(rows))
	}
	count, ok := rows[0]["count"].(int64)
	if !ok {
		return 0, fmt.Errorf("count is %T, not an integer", rows[0]["count"])
	}
	return count, nil
}

// Delete removes the node with primary key id and its relationships.
//
// Parameters:
//   - ctx: controls cancellation of the query.
//   - id: the primary key value of the node to delete.
//
// Returns:
//
//	An error if the query fails. Deleting a missing node is not an error.
func (r *Repository[T]) Delete(ctx context.Context, id any) error {
	_, err := r.conn.
		MatchNode("n", []string{r.meta.Label}, map[string]any{r.meta.PKProp: id}).
		DetachDelete("n").
		Run(ctx)
	return err
}

func (r *Repository[T]) fromRow(row Row) (*T, error) {
	var node *GraphNode
	for _, v := range row {
		if n, ok := v.(GraphNode); ok {
			if node != nil {
				return nil, fmt.Errorf("row holds more than one node")
			}
			node = &n
		}
	}
	if node == nil {
		return nil, fmt.Errorf("row holds no node")
	}
	entity := new(T)
	if err := mapNodeToStruct(*node, entity, r.meta); err != nil {
		return nil, err
	}
	return entity, nil
}

// mapNodeToStruct fills the tagged fields of entity from node's properties.
// Properties missing from the node leave their field untouched.
func mapNodeToStruct(node GraphNode, entity any, meta *entityMetadata) error {
	val := reflect.ValueOf(entity).Elem()
	for field, prop := range meta.Mappings {
		f := val.FieldByName(field)
		if !f.IsValid() || !f.CanSet() {
			continue
		}
		value, ok := node.Properties[prop]
		if !ok {
			continue
		}
		if err := assignValue(f, value); err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
	}
	return nil
}
