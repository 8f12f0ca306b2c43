// Package typecodec encodes a scalar value's runtime type into the plaintext
// string so decryption can restore the original type. The wire form is
// "<type>:<value>", e.g. "int:42" or "string:alice".
package typecodec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hengadev/fieldvault/internal/fverr"
)

// Type tags understood by Decode. The set is closed; anything else fails with
// ErrUnsupportedType, since an unknown tag means data corruption or version
// skew rather than a new value kind to tolerate.
const (
	TagInt     = "int"
	TagInt64   = "int64"
	TagFloat64 = "float64"
	TagBool    = "bool"
	TagChar    = "char"
	TagString  = "string"
)

// Encode renders value as a type-tagged string. The empty string encodes to
// the empty string so that empty leaves stay untouched end to end.
func Encode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return "", nil
		}
		return TagString + ":" + v, nil
	case int:
		return TagInt + ":" + strconv.Itoa(v), nil
	case int32:
		return TagInt + ":" + strconv.FormatInt(int64(v), 10), nil
	case int64:
		return TagInt64 + ":" + strconv.FormatInt(v, 10), nil
	case float32:
		return TagFloat64 + ":" + strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	case float64:
		return TagFloat64 + ":" + strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return TagBool + ":" + strconv.FormatBool(v), nil
	default:
		return "", fverr.NewUnsupportedTypeError(fmt.Sprintf("%T", value))
	}
}

// Decode parses a type-tagged string back into its original value. The value
// part may itself contain colons; only the first separator splits.
func Decode(tagged string) (any, error) {
	if tagged == "" {
		return "", nil
	}
	tag, raw, found := strings.Cut(tagged, ":")
	if !found {
		return nil, fmt.Errorf("%w: missing type tag in %q", fverr.ErrUnsupportedType, tagged)
	}
	switch tag {
	case TagInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an int", fverr.ErrUnsupportedType, raw)
		}
		return n, nil
	case TagInt64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an int64", fverr.ErrUnsupportedType, raw)
		}
		return n, nil
	case TagFloat64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a float64", fverr.ErrUnsupportedType, raw)
		}
		return f, nil
	case TagBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", fverr.ErrUnsupportedType, raw)
		}
		return b, nil
	case TagChar:
		r, _ := utf8.DecodeRuneInString(raw)
		if r == utf8.RuneError && raw == "" {
			return nil, fmt.Errorf("%w: empty char value", fverr.ErrUnsupportedType)
		}
		return r, nil
	case TagString:
		return raw, nil
	default:
		return nil, fverr.NewUnsupportedTypeError(tag)
	}
}
