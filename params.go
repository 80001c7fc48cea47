package neoquery

import (
	"strconv"
	"strings"
)

// parameterBag mints statement-unique parameter keys. Keys are never reused,
// even when two values are equal.
type parameterBag struct {
	params map[string]any
}

func newParameterBag() *parameterBag {
	return &parameterBag{params: make(map[string]any)}
}

// add stores value under a key derived from base and returns the key.
func (b *parameterBag) add(base string, value any) string {
	base = sanitizeParamName(base)
	key := base
	for n := 2; ; n++ {
		if _, taken := b.params[key]; !taken {
			break
		}
		key = base + strconv.Itoa(n)
	}
	b.params[key] = value
	return key
}

// paramBase derives a parameter name from an entity name and a property.
func paramBase(entity, prop string) string {
	switch {
	case entity == "":
		return prop
	case prop == "":
		return entity
	default:
		return entity + "_" + prop
	}
}

func sanitizeParamName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "p"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "p" + out
	}
	return out
}
