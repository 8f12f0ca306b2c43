package traverse

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/hengadev/fieldvault/internal/schema"
	"github.com/hengadev/fieldvault/internal/structaccess"
)

// shouldSkipDocument evaluates the schema's conditional rules against one
// document. NotSkipIf runs first and short-circuits: if any watched field is
// absent or holds a value outside its allowed set, the document is skipped.
// SkipIf runs second and skips when any watched field holds a trigger value.
// The precedence is deliberate and not symmetric.
func (e *Engine) shouldSkipDocument(entity any, sch *schema.CollectionSchema) bool {
	for path, allowed := range sch.NotSkipIf {
		value, ok := nestedFieldValue(entity, path)
		if !ok || !slices.Contains(allowed, stringify(value)) {
			e.logger.Debug("document fails notSkipIf rule", "path", path)
			return true
		}
	}
	for path, triggers := range sch.SkipIf {
		value, ok := nestedFieldValue(entity, path)
		if ok && slices.Contains(triggers, stringify(value)) {
			e.logger.Debug("document matches skipIf rule", "path", path)
			return true
		}
	}
	return false
}

// nestedFieldValue resolves a dotted path for rule evaluation only; it never
// mutates and never fans out over lists.
func nestedFieldValue(entity any, path string) (any, bool) {
	if entity == nil || path == "" {
		return nil, false
	}
	current := rootValue(entity)
	for _, segment := range strings.Split(path, ".") {
		current = unwrap(current)
		for current.IsValid() && current.Kind() == reflect.Pointer {
			if current.IsNil() {
				return nil, false
			}
			current = current.Elem()
		}
		if !current.IsValid() {
			return nil, false
		}
		switch {
		case current.Kind() == reflect.Map:
			key, ok := mapKey(current.Type(), segment)
			if !ok {
				return nil, false
			}
			current = current.MapIndex(key)
			if !current.IsValid() {
				return nil, false
			}
		case isOrderedDoc(current.Type()):
			found := false
			for i := 0; i < current.Len(); i++ {
				if current.Index(i).Field(0).String() == segment {
					current = current.Index(i).Field(1)
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		case current.Kind() == reflect.Struct:
			fv, ok := structaccess.Field(current, segment)
			if !ok {
				return nil, false
			}
			current = fv
		default:
			return nil, false
		}
	}
	current = unwrap(current)
	if !current.IsValid() || isNilValue(current) {
		return nil, false
	}
	return current.Interface(), true
}

func stringify(v any) string {
	return fmt.Sprintf("%v", v)
}
