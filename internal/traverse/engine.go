// Package traverse implements the field-path traversal engine. Given a
// document (maps, bson documents, structs, slices in any nesting) and a
// collection schema, it locates every leaf addressed by the schema's dotted
// field paths and encrypts or decrypts it in place.
package traverse

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hengadev/fieldvault/internal/fverr"
	"github.com/hengadev/fieldvault/internal/schema"
	"github.com/hengadev/fieldvault/internal/structaccess"
	"github.com/hengadev/fieldvault/internal/typecodec"
)

// TagPrefix marks a value as already encrypted. Encrypt leaves tagged strings
// alone and decrypt only touches tagged strings, so both passes are
// idempotent.
const TagPrefix = "vault:"

// Codec is the orchestrator the engine calls per leaf. Both operations return
// their input unchanged on recoverable cipher failures; only unrecoverable
// conditions (missing transit key) surface as errors.
type Codec interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// Engine walks documents. It holds no per-document state; a single Engine is
// safe for concurrent use across documents.
type Engine struct {
	codec  Codec
	logger *slog.Logger
}

// New creates an engine around the given codec.
func New(codec Codec, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{codec: codec, logger: logger}
}

// setter writes a replacement value back into the parent container. A nil
// setter means the value can only be mutated in place.
type setter func(reflect.Value)

// ProcessDocument applies action to every schema field path of entity. Any
// error aborts the whole document and is reported to the caller; partially
// processed documents are the caller's problem to reject or tolerate.
//
// Struct entities must be passed by pointer for mutations to stick.
func (e *Engine) ProcessDocument(ctx context.Context, entity any, collection string, sch *schema.CollectionSchema, action fverr.Action) error {
	if entity == nil || sch == nil || len(sch.Encrypt) == 0 {
		return nil
	}
	for _, path := range sch.Encrypt {
		e.logger.Debug("processing field path", "collection", collection, "path", path, "action", action.String())
		if e.shouldSkipDocument(entity, sch) {
			e.logger.Info("skip conditions triggered for document", "collection", collection, "action", action.String())
			return nil
		}
		parts := strings.Split(path, ".")
		if err := e.walk(ctx, rootValue(entity), nil, parts, 0, action); err != nil {
			return fverr.NewTraversalError(path, action, err)
		}
	}
	return nil
}

func rootValue(entity any) reflect.Value {
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		return v.Elem()
	}
	return v
}

// walk descends one path segment at a time. Missing segments end the path
// silently: schemas may name fields that a given document variant lacks.
func (e *Engine) walk(ctx context.Context, v reflect.Value, set setter, parts []string, idx int, action fverr.Action) error {
	if !v.IsValid() || idx >= len(parts) {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface:
		return e.walkInterface(ctx, v, set, parts, idx, action)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return e.walk(ctx, v.Elem(), nil, parts, idx, action)
	case reflect.Map:
		return e.walkMap(ctx, v, parts, idx, action)
	case reflect.Struct:
		return e.walkStruct(ctx, v, parts, idx, action)
	case reflect.Slice:
		if isOrderedDoc(v.Type()) {
			return e.walkOrderedDoc(ctx, v, parts, idx, action)
		}
		return nil
	default:
		return nil
	}
}

// walkInterface unwraps an interface slot. A bare struct stored in an
// interface is copied to an addressable temporary, walked, and written back,
// since reflection cannot mutate it through the interface.
func (e *Engine) walkInterface(ctx context.Context, v reflect.Value, set setter, parts []string, idx int, action fverr.Action) error {
	if v.IsNil() {
		return nil
	}
	elem := v.Elem()
	if elem.Kind() == reflect.Struct && !isOrderedElem(elem.Type()) && set != nil {
		cp := reflect.New(elem.Type()).Elem()
		cp.Set(elem)
		if err := e.walk(ctx, cp, nil, parts, idx, action); err != nil {
			return err
		}
		set(cp)
		return nil
	}
	return e.walk(ctx, elem, set, parts, idx, action)
}

func (e *Engine) walkMap(ctx context.Context, m reflect.Value, parts []string, idx int, action fverr.Action) error {
	key, ok := mapKey(m.Type(), parts[idx])
	if !ok {
		return nil
	}
	value := m.MapIndex(key)
	if !value.IsValid() || isNilValue(value) {
		e.logger.Debug("key not found in map", "key", parts[idx])
		return nil
	}
	set := func(nv reflect.Value) { setMapEntry(m, key, nv) }
	if idx == len(parts)-1 {
		return e.processLeaf(ctx, value, set, action)
	}
	return e.descend(ctx, value, set, parts, idx, action)
}

func (e *Engine) walkStruct(ctx context.Context, s reflect.Value, parts []string, idx int, action fverr.Action) error {
	fv, ok := structaccess.Field(s, parts[idx])
	if !ok {
		e.logger.Debug("field not found in struct", "field", parts[idx], "type", s.Type().String())
		return nil
	}
	if isNilValue(fv) {
		return nil
	}
	var set setter
	if fv.CanSet() {
		field := fv
		set = func(nv reflect.Value) { setAssignable(field, nv) }
	}
	if idx == len(parts)-1 {
		return e.processLeaf(ctx, fv, set, action)
	}
	return e.descend(ctx, fv, set, parts, idx, action)
}

// walkOrderedDoc handles bson.D documents, which are keyed mappings stored as
// element slices.
func (e *Engine) walkOrderedDoc(ctx context.Context, d reflect.Value, parts []string, idx int, action fverr.Action) error {
	for i := 0; i < d.Len(); i++ {
		elem := d.Index(i)
		if elem.Field(0).String() != parts[idx] {
			continue
		}
		value := elem.Field(1)
		set := func(nv reflect.Value) { setAssignable(value, nv) }
		if idx == len(parts)-1 {
			return e.processLeaf(ctx, value, set, action)
		}
		return e.descend(ctx, value, set, parts, idx, action)
	}
	return nil
}

// descend moves past a resolved intermediate segment. A slice at an
// intermediate position fans out: every element is traversed independently
// with the same remaining path suffix.
func (e *Engine) descend(ctx context.Context, value reflect.Value, set setter, parts []string, idx int, action fverr.Action) error {
	concrete := unwrap(value)
	if concrete.Kind() == reflect.Slice && !isOrderedDoc(concrete.Type()) && concrete.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < concrete.Len(); i++ {
			item := concrete.Index(i)
			itemSet := func(nv reflect.Value) { setAssignable(item, nv) }
			if err := e.walkInto(ctx, item, itemSet, parts, idx+1, action); err != nil {
				return err
			}
		}
		return nil
	}
	return e.walkInto(ctx, value, set, parts, idx+1, action)
}

// walkInto is walk with interface unwrapping that preserves the setter, used
// where the next node may be a struct living inside an interface slot.
func (e *Engine) walkInto(ctx context.Context, v reflect.Value, set setter, parts []string, idx int, action fverr.Action) error {
	if v.Kind() == reflect.Interface {
		return e.walkInterface(ctx, v, set, parts, idx, action)
	}
	return e.walk(ctx, v, set, parts, idx, action)
}

// processLeaf dispatches on the resolved leaf value. Slices of scalars are
// processed element-wise under the same rules.
func (e *Engine) processLeaf(ctx context.Context, v reflect.Value, set setter, action fverr.Action) error {
	concrete := unwrap(v)
	if !concrete.IsValid() {
		return nil
	}
	if concrete.Kind() == reflect.Slice && !isOrderedDoc(concrete.Type()) && concrete.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < concrete.Len(); i++ {
			item := concrete.Index(i)
			itemSet := func(nv reflect.Value) { setAssignable(item, nv) }
			if err := e.processScalar(ctx, unwrap(item), itemSet, action); err != nil {
				return err
			}
		}
		return nil
	}
	return e.processScalar(ctx, concrete, set, action)
}

// processScalar applies the leaf rules of the two processing modes:
//
//   - strings are encrypted unless already tagged and decrypted only when
//     tagged, making both directions idempotent;
//   - numeric, boolean and rune scalars are written back as tagged strings on
//     encrypt; decrypt of a raw scalar is deliberately a no-op, since
//     encrypted scalars are persisted as strings and only ever read back
//     through the string branch;
//   - anything else recurses generically, encrypting or decrypting every
//     string found.
func (e *Engine) processScalar(ctx context.Context, v reflect.Value, set setter, action fverr.Action) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.String:
		return e.processString(ctx, v, set, action)
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64, reflect.Bool:
		if action != fverr.Encrypt {
			return nil
		}
		if set == nil {
			e.logger.Warn("scalar leaf is not settable, leaving unchanged", "type", v.Type().String())
			return nil
		}
		tagged, err := typecodec.Encode(v.Interface())
		if err != nil {
			e.logger.Warn("skipping leaf of unrecognized type", "type", v.Type().String(), "error", err)
			return nil
		}
		out, err := e.codec.Encrypt(ctx, tagged)
		if err != nil {
			return err
		}
		set(reflect.ValueOf(out))
		return nil
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return e.processScalar(ctx, v.Elem(), nil, action)
	default:
		if isOpaque(v.Type()) {
			return nil
		}
		return e.walkGeneric(ctx, v, set, action, make(map[uintptr]struct{}))
	}
}

func (e *Engine) processString(ctx context.Context, v reflect.Value, set setter, action fverr.Action) error {
	s := v.String()
	if s == "" {
		return nil
	}
	switch action {
	case fverr.Encrypt:
		if strings.HasPrefix(s, TagPrefix) {
			return nil
		}
		tagged, err := typecodec.Encode(s)
		if err != nil {
			return err
		}
		out, err := e.codec.Encrypt(ctx, tagged)
		if err != nil {
			return err
		}
		e.setString(v, set, out)
		return nil
	default:
		if !strings.HasPrefix(s, TagPrefix) {
			return nil
		}
		plain, err := e.codec.Decrypt(ctx, s)
		if err != nil {
			return err
		}
		if strings.HasPrefix(plain, TagPrefix) {
			// Decrypt fell back to the tagged input; leave the stored value
			// as-is so the document stays readable.
			return nil
		}
		decoded, err := typecodec.Decode(plain)
		if err != nil {
			return err
		}
		if v.CanSet() && reflect.TypeOf(decoded).AssignableTo(v.Type()) {
			v.Set(reflect.ValueOf(decoded))
			return nil
		}
		if set != nil {
			set(reflect.ValueOf(decoded))
			return nil
		}
		e.logger.Warn("decrypted leaf is not settable, leaving unchanged")
		return nil
	}
}

// setString writes a string back to a leaf, preferring in-place mutation.
func (e *Engine) setString(v reflect.Value, set setter, s string) {
	if v.CanSet() && v.Kind() == reflect.String {
		v.SetString(s)
		return
	}
	if set != nil {
		set(reflect.ValueOf(s))
		return
	}
	e.logger.Warn("string leaf is not settable, leaving unchanged")
}

func mapKey(mt reflect.Type, segment string) (reflect.Value, bool) {
	switch mt.Key().Kind() {
	case reflect.String:
		return reflect.ValueOf(segment).Convert(mt.Key()), true
	case reflect.Interface:
		return reflect.ValueOf(segment), true
	default:
		return reflect.Value{}, false
	}
}

// setMapEntry writes a value into a map slot, tolerating element-type
// mismatches by leaving the entry untouched.
func setMapEntry(m, key, nv reflect.Value) {
	et := m.Type().Elem()
	switch {
	case et.Kind() == reflect.Interface, nv.Type().AssignableTo(et):
		m.SetMapIndex(key, nv)
	case isNumericConvert(nv.Type(), et):
		m.SetMapIndex(key, nv.Convert(et))
	}
}

// setAssignable writes nv into dst when the types allow it; otherwise the
// destination keeps its current value.
func setAssignable(dst, nv reflect.Value) {
	if !dst.CanSet() {
		return
	}
	switch {
	case dst.Kind() == reflect.Interface, nv.Type().AssignableTo(dst.Type()):
		dst.Set(nv)
	case isNumericConvert(nv.Type(), dst.Type()):
		dst.Set(nv.Convert(dst.Type()))
	}
}

// isNumericConvert permits widening between numeric kinds only; string/rune
// style conversions are never wanted here.
func isNumericConvert(from, to reflect.Type) bool {
	return isNumericKind(from.Kind()) && isNumericKind(to.Kind()) && from.ConvertibleTo(to)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

var (
	orderedDocType  = reflect.TypeOf(primitive.D(nil))
	orderedElemType = reflect.TypeOf(primitive.E{})
	timeType        = reflect.TypeOf(time.Time{})
	dateTimeType    = reflect.TypeOf(primitive.DateTime(0))
	objectIDType    = reflect.TypeOf(primitive.ObjectID{})
	binaryType      = reflect.TypeOf(primitive.Binary{})
)

func isOrderedDoc(t reflect.Type) bool {
	return t == orderedDocType || (t.Kind() == reflect.Slice && t.Elem() == orderedElemType)
}

func isOrderedElem(t reflect.Type) bool {
	return t == orderedElemType
}

// isOpaque reports types the engine treats as indivisible leaves: temporal
// values, database identifiers, binary blobs, and anything from the standard
// library.
func isOpaque(t reflect.Type) bool {
	switch t {
	case timeType, dateTimeType, objectIDType, binaryType:
		return true
	}
	if t.Kind() == reflect.Struct {
		return isStdlibType(t)
	}
	return false
}

// Standard library import paths have no dot in their first element; that is
// the cheapest reliable way to tell library types from application types.
func isStdlibType(t reflect.Type) bool {
	pkg := t.PkgPath()
	if pkg == "" {
		return false
	}
	first, _, _ := strings.Cut(pkg, "/")
	return !strings.Contains(first, ".")
}
