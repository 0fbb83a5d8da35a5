package domain

import (
	"encoding/json"
	"errors"
)

// FeatureValue is a tagged union over the three shapes a feature value can
// take: a finite number, null (the kernels emit this for empty channels and
// missing crossings), or text (metadata passthrough values). Representing
// features this way keeps internal/storage opaque to feature semantics -
// it marshals/unmarshals the tag, never interprets it.
type FeatureValue struct {
	kind kind
	num  float64
	text string
}

type kind uint8

const (
	kindNull kind = iota
	kindNumber
	kindText
)

// ErrFeatureValueUnknownKind is returned when a JSON payload contains a
// value shape that isn't one of number, null, or string.
var ErrFeatureValueUnknownKind = errors.New("feature value: unsupported JSON shape")

// Null is the null feature value.
func Null() FeatureValue { return FeatureValue{kind: kindNull} }

// Number wraps a finite numeric feature value.
func Number(v float64) FeatureValue { return FeatureValue{kind: kindNumber, num: v} }

// Text wraps a string feature value (used for metadata.* keys).
func Text(v string) FeatureValue { return FeatureValue{kind: kindText, text: v} }

// IsNull reports whether the value is null.
func (v FeatureValue) IsNull() bool { return v.kind == kindNull }

// IsNumber reports whether the value carries a number.
func (v FeatureValue) IsNumber() bool { return v.kind == kindNumber }

// Float64 returns the numeric value and whether the value was a number.
func (v FeatureValue) Float64() (float64, bool) {
	if v.kind != kindNumber {
		return 0, false
	}

	return v.num, true
}

// String returns the text value and whether the value was text.
func (v FeatureValue) String() (string, bool) {
	if v.kind != kindText {
		return "", false
	}

	return v.text, true
}

// MarshalJSON implements json.Marshaler.
func (v FeatureValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNull:
		return []byte("null"), nil
	case kindNumber:
		return json.Marshal(v.num)
	case kindText:
		return json.Marshal(v.text)
	default:
		return nil, ErrFeatureValueUnknownKind
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *FeatureValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Null()

		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = Number(num)

		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*v = Text(text)

		return nil
	}

	return ErrFeatureValueUnknownKind
}
