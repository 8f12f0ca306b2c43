// Package structaccess resolves struct fields by document name, memoizing
// lookups per concrete type. Field inheritance from the source data model maps
// onto Go's embedded structs: a name that is not declared directly is searched
// through promoted fields of embedded types.
package structaccess

import (
	"reflect"
	"strings"
	"sync"
)

// fieldCache memoizes name → index-path resolutions per struct type.
// compute-if-absent, never invalidated: types are fixed for the process
// lifetime.
var fieldCache sync.Map // reflect.Type -> *typeFields

type typeFields struct {
	mu     sync.RWMutex
	byName map[string][]int
}

// Lookup returns the index path of the field named name on t, which must be a
// struct type. The name matches either the Go field name or its bson/json tag
// name. The second result is false when no such field exists anywhere in the
// promotion chain.
func Lookup(t reflect.Type, name string) ([]int, bool) {
	entry, _ := fieldCache.LoadOrStore(t, &typeFields{byName: make(map[string][]int)})
	tf := entry.(*typeFields)

	tf.mu.RLock()
	idx, ok := tf.byName[name]
	tf.mu.RUnlock()
	if ok {
		return indexOrMiss(idx)
	}

	idx = resolve(t, name)
	tf.mu.Lock()
	tf.byName[name] = idx
	tf.mu.Unlock()
	return indexOrMiss(idx)
}

// Field returns the addressable value of the named field on v, which must be
// an addressable struct value. Traversal through a nil embedded pointer
// reports a miss rather than panicking.
func Field(v reflect.Value, name string) (reflect.Value, bool) {
	idx, ok := Lookup(v.Type(), name)
	if !ok {
		return reflect.Value{}, false
	}
	fv, err := v.FieldByIndexErr(idx)
	if err != nil {
		return reflect.Value{}, false
	}
	return fv, true
}

// Misses are cached as nil index paths.
func indexOrMiss(idx []int) ([]int, bool) {
	if idx == nil {
		return nil, false
	}
	return idx, true
}

func resolve(t reflect.Type, name string) []int {
	// Direct and tag-name matches first, then embedded promotion, mirroring
	// the walk up the declaring type chain in the source model.
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		// Case-insensitive fallback matches the mongo driver's default of
		// lowercasing untagged field names.
		if f.Name == name || tagName(f) == name || strings.EqualFold(f.Name, name) {
			return []int{i}
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() != reflect.Struct {
			continue
		}
		if sub := resolve(ft, name); sub != nil {
			return append([]int{i}, sub...)
		}
	}
	return nil
}

func tagName(f reflect.StructField) string {
	for _, key := range [...]string{"bson", "json"} {
		tag, ok := f.Tag.Lookup(key)
		if !ok {
			continue
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return ""
}
