package neoquery

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Row is one result record keyed by projected name, holding plain values.
type Row map[string]any

// Result is a transformed result set. Columns keeps the projection order,
// which Row alone cannot.
type Result struct {
	Columns []string
	Rows    []Row
}

// TransformRecords converts driver records into plain rows.
func TransformRecords(records []*neo4j.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, TransformRecord(record))
	}
	return rows
}

// TransformRecord converts one driver record into a plain row.
func TransformRecord(record *neo4j.Record) Row {
	if record == nil {
		return Row{}
	}
	row := make(Row, len(record.Keys))
	for i, key := range record.Keys {
		var value any
		if i < len(record.Values) {
			value = record.Values[i]
		}
		row[key] = TransformValue(value)
	}
	return row
}

// TransformValue normalizes a single driver value:
//
//   - nodes and relationships become GraphNode and Relationship
//   - paths become []any alternating GraphNode, Relationship, GraphNode, ...
//   - lists and maps are transformed element-wise at any depth
//   - integers become int64; integers outside the int64 range are kept as
//     *big.Int and never converted to float64
//   - Date, LocalDateTime, LocalTime and Time become time.Time
//
// Anything else, including Duration and spatial points, is returned as is.
func TransformValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case dbtype.Node:
		return transformNode(v)
	case *dbtype.Node:
		if v == nil {
			return nil
		}
		return transformNode(*v)
	case dbtype.Relationship:
		return transformRelationship(v)
	case *dbtype.Relationship:
		if v == nil {
			return nil
		}
		return transformRelationship(*v)
	case dbtype.Path:
		return transformPath(v)
	case *dbtype.Path:
		if v == nil {
			return nil
		}
		return transformPath(*v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = TransformValue(item)
		}
		return out
	case map[string]any:
		return transformMap(v)
	case Row:
		return Row(transformMap(v))
	case dbtype.Date:
		return time.Time(v)
	case dbtype.LocalDateTime:
		return time.Time(v)
	case dbtype.LocalTime:
		return time.Time(v)
	case dbtype.Time:
		return time.Time(v)
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return transformUnsigned(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return transformUnsigned(v)
	case *big.Int:
		return transformBigInt(v)
	case json.Number:
		return transformNumber(v)
	}
	return transformReflect(value)
}

func transformNode(n dbtype.Node) GraphNode {
	return GraphNode{
		Identity:   n.ElementId,
		Labels:     append([]string{}, n.Labels...),
		Properties: transformMap(n.Props),
	}
}

func transformRelationship(r dbtype.Relationship) Relationship {
	return Relationship{
		Identity:   r.ElementId,
		Start:      r.StartElementId,
		End:        r.EndElementId,
		Type:       r.Type,
		Properties: transformMap(r.Props),
	}
}

func transformPath(p dbtype.Path) []any {
	out := make([]any, 0, len(p.Nodes)+len(p.Relationships))
	for i, n := range p.Nodes {
		out = append(out, transformNode(n))
		if i < len(p.Relationships) {
			out = append(out, transformRelationship(p.Relationships[i]))
		}
	}
	return out
}

func transformMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = TransformValue(v)
	}
	return out
}

func transformUnsigned(v uint64) any {
	if v > math.MaxInt64 {
		return new(big.Int).SetUint64(v)
	}
	return int64(v)
}

func transformBigInt(v *big.Int) any {
	if v == nil {
		return nil
	}
	if v.IsInt64() {
		return v.Int64()
	}
	return new(big.Int).Set(v)
}

func transformNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if i, ok := new(big.Int).SetString(n.String(), 10); ok {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// transformReflect handles typed slices and maps whose elements may still
// hold driver values, such as []neo4j.Node. Slices and maps of basic types
// are already plain and are returned untouched.
func transformReflect(value any) any {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return value
		}
		if !mayHoldDriverValue(rv.Type().Elem()) {
			return value
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = TransformValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || !mayHoldDriverValue(rv.Type().Elem()) {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = TransformValue(iter.Value().Interface())
		}
		return out
	}
	return value
}

func mayHoldDriverValue(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Struct, reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return t != timeType
	}
	return false
}

var timeType = reflect.TypeOf(time.Time{})
