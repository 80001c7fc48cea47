package neoquery

import (
	"fmt"
	"reflect"
	"strings"
)

// tagName is the struct tag read by the persistence layer:
//
//	type User struct {
//		UserID string `graph:"userId,pk"`
//		Name   string `graph:"name"`
//	}
const tagName = "graph"

// entityMetadata is the parsed mapping between a struct type and a node.
type entityMetadata struct {
	// Label is the node label, the struct's type name.
	Label string
	// PKField and PKProp name the primary key field and its property.
	PKField string
	PKProp  string
	// Mappings maps struct field names to property names.
	Mappings map[string]string
}

// parseTagsFromType reads `graph` tags from a struct type (or a pointer to one).
func parseTagsFromType(typ reflect.Type) (*entityMetadata, error) {
	if typ == nil {
		return nil, fmt.Errorf("entity type is nil")
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", typ)
	}

	meta := &entityMetadata{
		Label:    typ.Name(),
		Mappings: make(map[string]string),
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag, ok := field.Tag.Lookup(tagName)
		if !ok || tag == "-" || !field.IsExported() {
			continue
		}

		prop, opts, _ := strings.Cut(tag, ",")
		if prop == "" {
			prop = field.Name
		}
		for _, opt := range strings.Split(opts, ",") {
			switch opt {
			case "":
			case "pk":
				if meta.PKField != "" {
					return nil, fmt.Errorf("struct %s has more than one pk field", typ.Name())
				}
				meta.PKField = field.Name
				meta.PKProp = prop
			default:
				return nil, fmt.Errorf("field %s: unknown %s tag option %q", field.Name, tagName, opt)
			}
		}
		meta.Mappings[field.Name] = prop
	}

	if meta.PKField == "" {
		return nil, fmt.Errorf("no primary key (pk) tag defined for struct %s", typ.Name())
	}
	return meta, nil
}

// assignValue stores a transformed property value into dst. Values are
// assigned directly, numbers are converted between numeric kinds, and []any
// is converted element by element into typed slices.
func assignValue(dst reflect.Value, src any) error {
	if src == nil {
		dst.SetZero()
		return nil
	}
	sv := reflect.ValueOf(src)
	dt := dst.Type()
	switch {
	case sv.Type().AssignableTo(dt):
		dst.Set(sv)
	case isNumber(sv.Kind()) && isNumber(dt.Kind()) && sv.Type().ConvertibleTo(dt):
		dst.Set(sv.Convert(dt))
	case dt.Kind() == reflect.Slice && sv.Kind() == reflect.Slice:
		out := reflect.MakeSlice(dt, sv.Len(), sv.Len())
		for i := 0; i < sv.Len(); i++ {
			if err := assignValue(out.Index(i), sv.Index(i).Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		dst.Set(out)
	default:
		return fmt.Errorf("cannot assign %T to %s", src, dt)
	}
	return nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
