// Package coverage defines the canonical line-coverage model shared by every
// format parser: reports, files, lines, sessions and derived totals.
package coverage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidValue is returned when a JSON coverage value is neither null,
// a non-negative integer nor a boolean.
var ErrInvalidValue = errors.New("invalid coverage value")

// Kind discriminates the variants of [Value].
type Kind uint8

// Value kinds.
const (
	KindNoData Kind = iota
	KindInt
	KindBool
)

// Value is a single coverage observation: a hit counter, a hit/miss flag,
// or no data at all. The zero Value is NoData.
type Value struct {
	kind Kind
	n    int64
	b    bool
}

// NoData returns the empty value.
func NoData() Value { return Value{} }

// Int returns a hit-count value. Negative counts are clamped to zero.
func Int(n int64) Value {
	if n < 0 {
		n = 0
	}

	return Value{kind: KindInt, n: n}
}

// Bool returns a hit/miss value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNoData reports whether v carries no data.
func (v Value) IsNoData() bool { return v.kind == KindNoData }

// Count returns the hit count. Booleans count as 1 or 0.
func (v Value) Count() int64 {
	switch v.kind {
	case KindInt:
		return v.n
	case KindBool:
		if v.b {
			return 1
		}

		return 0
	default:
		return 0
	}
}

// Hit reports whether the value records at least one execution.
func (v Value) Hit() bool {
	return v.Count() > 0
}

// Merge combines two observations of the same line.
// Integers sum, booleans OR, NoData is the identity. A mix of integer and
// boolean yields an integer with the boolean counted as 1 or 0.
func (v Value) Merge(other Value) Value {
	switch {
	case v.kind == KindNoData:
		return other
	case other.kind == KindNoData:
		return v
	case v.kind == KindBool && other.kind == KindBool:
		return Bool(v.b || other.b)
	default:
		return Int(v.Count() + other.Count())
	}
}

// String renders the value for logs and tables.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.n, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

// MarshalJSON encodes NoData as null, integers as numbers and booleans as
// true/false.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON is the inverse of [Value.MarshalJSON].
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSONValue(data)
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}

// ParseJSONValue decodes a raw JSON token into a Value.
// Floats with a zero fractional part are accepted as integers since several
// producers emit "1.0" style counters.
func ParseJSONValue(raw []byte) (Value, error) {
	trimmed := bytes.TrimSpace(raw)

	switch string(trimmed) {
	case "", "null":
		return NoData(), nil
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}

	var number json.Number

	decodeErr := json.Unmarshal(trimmed, &number)
	if decodeErr != nil {
		return NoData(), fmt.Errorf("%w: %s", ErrInvalidValue, trimmed)
	}

	n, intErr := number.Int64()
	if intErr == nil {
		if n < 0 {
			return NoData(), fmt.Errorf("%w: negative count %d", ErrInvalidValue, n)
		}

		return Int(n), nil
	}

	f, floatErr := number.Float64()
	if floatErr != nil || f < 0 || f != float64(int64(f)) {
		return NoData(), fmt.Errorf("%w: %s", ErrInvalidValue, trimmed)
	}

	return Int(int64(f)), nil
}
