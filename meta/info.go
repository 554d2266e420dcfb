// Package meta provides the typed key-value context that carries structural
// facts between the stages of the ingestion pipeline.
//
// Keys are namespaced by convention:
//
//   - d<axis>: extent of the axis (dx, dy, dz, ...)
//   - skip.<axis>: padding bytes after one full pass over the axis
//   - dimstr: axis letters, fastest-varying first
//   - datatype_in, handler_datatype_out, datatype_out: element kind per stage
//   - start_offset: first byte of real data
//
// Vector values are stored as three float keys with .0, .1 and .2 suffixes.
package meta

import (
	"sort"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind uint8

// Value kinds.
const (
	KindString Kind = iota
	KindInt
	KindDouble
	KindBool
	KindHash
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindHash:
		return "hash"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single typed entry of an Info.
type Value struct {
	kind Kind
	s    string
	i    int64
	d    float64
	b    bool
	h    *Info
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// String returns the value formatted as text. Hashes render as "**hash**".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.d, 'g', -1, 64)
	case KindBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	default:
		return "**hash**"
	}
}

// Int returns the value as an integer. Doubles are truncated and booleans map
// to 0 or 1.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindDouble:
		return int64(v.d)
	case KindBool:
		if v.b {
			return 1
		}
	case KindString:
		n, _ := strconv.ParseInt(v.s, 10, 64)
		return n
	}
	return 0
}

// Double returns the value as a float64.
func (v Value) Double() float64 {
	switch v.kind {
	case KindDouble:
		return v.d
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
	case KindString:
		f, _ := strconv.ParseFloat(v.s, 64)
		return f
	}
	return 0
}

// Bool returns the value as a boolean. Numbers are true when non-zero.
func (v Value) Bool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindDouble:
		return v.d != 0
	}
	return false
}

// Hash returns the nested Info, or nil for non-hash values.
func (v Value) Hash() *Info {
	if v.kind == KindHash {
		return v.h
	}
	return nil
}

// Info is a string-keyed map of typed values. The zero value is not usable;
// create one with New.
type Info struct {
	m map[string]Value
}

// New creates an empty Info.
func New() *Info {
	return &Info{m: make(map[string]Value)}
}

// Len returns the number of keys.
func (in *Info) Len() int { return len(in.m) }

// Has reports whether key is defined.
func (in *Info) Has(key string) bool {
	_, ok := in.m[key]
	return ok
}

// Lookup returns the value stored under key.
func (in *Info) Lookup(key string) (Value, bool) {
	v, ok := in.m[key]
	return v, ok
}

// Set stores an already-typed value.
func (in *Info) Set(key string, v Value) { in.m[key] = v }

// SetString stores a string value.
func (in *Info) SetString(key, v string) { in.m[key] = Value{kind: KindString, s: v} }

// SetInt stores an integer value.
func (in *Info) SetInt(key string, v int64) { in.m[key] = Value{kind: KindInt, i: v} }

// SetDouble stores a floating point value.
func (in *Info) SetDouble(key string, v float64) { in.m[key] = Value{kind: KindDouble, d: v} }

// SetBool stores a boolean value.
func (in *Info) SetBool(key string, v bool) { in.m[key] = Value{kind: KindBool, b: v} }

// SetHash stores a nested Info.
func (in *Info) SetHash(key string, h *Info) { in.m[key] = Value{kind: KindHash, h: h} }

// Delete removes key if present.
func (in *Info) Delete(key string) { delete(in.m, key) }

// String returns the string form of key, or "" when absent.
func (in *Info) String(key string) string {
	if v, ok := in.m[key]; ok {
		return v.String()
	}
	return ""
}

// Int returns key as an integer, or 0 when absent.
func (in *Info) Int(key string) int64 { return in.m[key].Int() }

// Double returns key as a float64, or 0 when absent.
func (in *Info) Double(key string) float64 { return in.m[key].Double() }

// Bool returns key as a boolean, or false when absent.
func (in *Info) Bool(key string) bool { return in.m[key].Bool() }

// Hash returns the nested Info stored under key, or nil.
func (in *Info) Hash(key string) *Info { return in.m[key].Hash() }

// EnsureHash returns the nested Info under key, creating it if needed.
func (in *Info) EnsureHash(key string) *Info {
	if h := in.Hash(key); h != nil {
		return h
	}
	h := New()
	in.SetHash(key, h)
	return h
}

// Keys returns all keys in sorted order.
func (in *Info) Keys() []string {
	keys := make([]string, 0, len(in.m))
	for k := range in.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy; nested hashes are cloned too.
func (in *Info) Clone() *Info {
	out := &Info{m: make(map[string]Value, len(in.m))}
	for k, v := range in.m {
		if v.kind == KindHash && v.h != nil {
			v.h = v.h.Clone()
		}
		out.m[k] = v
	}
	return out
}

// CopyUniqueExceptHashes copies every non-hash entry of src into in,
// overwriting existing keys.
func (in *Info) CopyUniqueExceptHashes(src *Info) {
	if src == nil {
		return
	}
	for k, v := range src.m {
		if v.kind == KindHash {
			continue
		}
		in.m[k] = v
	}
}
