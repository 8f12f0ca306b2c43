package traverse

import (
	"context"
	"reflect"

	"github.com/hengadev/fieldvault/internal/fverr"
)

// walkGeneric is the fallback for leaf values with structure the dotted path
// did not spell out: a depth-first descent that processes every string found
// and recurses through maps, slices, structs, and pointers. The visited set
// tracks container identities (pointers, not values) so cyclic graphs
// terminate without false positives on equal-but-distinct instances.
func (e *Engine) walkGeneric(ctx context.Context, v reflect.Value, set setter, action fverr.Action, visited map[uintptr]struct{}) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		elem := v.Elem()
		if elem.Kind() == reflect.Struct && !elem.CanAddr() && set != nil && !isOpaque(elem.Type()) {
			cp := reflect.New(elem.Type()).Elem()
			cp.Set(elem)
			if err := e.walkGeneric(ctx, cp, nil, action, visited); err != nil {
				return err
			}
			set(cp)
			return nil
		}
		return e.walkGeneric(ctx, elem, set, action, visited)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if e.seen(visited, v.Pointer()) {
			return nil
		}
		return e.walkGeneric(ctx, v.Elem(), nil, action, visited)
	case reflect.String:
		return e.processString(ctx, v, set, action)
	case reflect.Map:
		if v.IsNil() || e.seen(visited, v.Pointer()) {
			return nil
		}
		return e.genericMap(ctx, v, action, visited)
	case reflect.Slice:
		if v.IsNil() || e.seen(visited, v.Pointer()) {
			return nil
		}
		return e.genericSlice(ctx, v, action, visited)
	case reflect.Array:
		return e.genericSlice(ctx, v, action, visited)
	case reflect.Struct:
		if isOpaque(v.Type()) {
			return nil
		}
		if !v.CanAddr() {
			if set == nil {
				return nil
			}
			cp := reflect.New(v.Type()).Elem()
			cp.Set(v)
			if err := e.genericStruct(ctx, cp, action, visited); err != nil {
				return err
			}
			set(cp)
			return nil
		}
		return e.genericStruct(ctx, v, action, visited)
	default:
		return nil
	}
}

func (e *Engine) genericMap(ctx context.Context, m reflect.Value, action fverr.Action, visited map[uintptr]struct{}) error {
	iter := m.MapRange()
	for iter.Next() {
		key, value := iter.Key(), iter.Value()
		entrySet := func(nv reflect.Value) { setMapEntry(m, key, nv) }
		concrete := unwrap(value)
		if concrete.IsValid() && concrete.Kind() == reflect.String {
			if err := e.processString(ctx, concrete, entrySet, action); err != nil {
				return err
			}
			continue
		}
		if err := e.walkGeneric(ctx, value, entrySet, action, visited); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) genericSlice(ctx context.Context, s reflect.Value, action fverr.Action, visited map[uintptr]struct{}) error {
	if s.Type().Elem().Kind() == reflect.Uint8 {
		return nil
	}
	for i := 0; i < s.Len(); i++ {
		item := s.Index(i)
		itemSet := func(nv reflect.Value) { setAssignable(item, nv) }
		concrete := unwrap(item)
		if concrete.IsValid() && concrete.Kind() == reflect.String {
			if err := e.processString(ctx, concrete, itemSet, action); err != nil {
				return err
			}
			continue
		}
		if err := e.walkGeneric(ctx, item, itemSet, action, visited); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) genericStruct(ctx context.Context, s reflect.Value, action fverr.Action, visited map[uintptr]struct{}) error {
	t := s.Type()
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		fv := s.Field(i)
		if fv.Kind() == reflect.String {
			if err := e.processString(ctx, fv, nil, action); err != nil {
				return err
			}
			continue
		}
		field := fv
		fieldSet := func(nv reflect.Value) { setAssignable(field, nv) }
		if err := e.walkGeneric(ctx, fv, fieldSet, action, visited); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) seen(visited map[uintptr]struct{}, p uintptr) bool {
	if _, ok := visited[p]; ok {
		return true
	}
	visited[p] = struct{}{}
	return false
}
