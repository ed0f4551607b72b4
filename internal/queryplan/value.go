package queryplan

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Value is the document database's tagged, polymorphic query value. It
// wraps the driver's own wire representation (bson.RawValue) so every
// comparison in this package operates on exactly the bytes a real index
// would see, rather than re-decoding into Go native types and losing BSON's
// type distinctions (Int32 vs Int64 vs Double, Symbol vs String, ...).
type Value struct {
	raw bson.RawValue
}

// NewValue wraps a driver RawValue as a Value.
func NewValue(rv bson.RawValue) Value { return Value{raw: rv} }

// Raw returns the underlying driver representation.
func (v Value) Raw() bson.RawValue { return v.raw }

// Type returns the BSON type tag.
func (v Value) Type() bson.Type { return v.raw.Type }

// ExtJSON renders the value as MongoDB relaxed Extended JSON, the format the
// "plan" CLI command uses to print compiled bounds.
func (v Value) ExtJSON() (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v.raw}}, false, false)
	if err != nil {
		return "", fmt.Errorf("queryplan: render value as extended JSON: %w", err)
	}
	var wrapper struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return "", fmt.Errorf("queryplan: render value as extended JSON: %w", err)
	}
	return string(wrapper.V), nil
}

func mustMarshalValue(native any) Value {
	t, data, err := bson.MarshalValue(native)
	if err != nil {
		panic(fmt.Sprintf("queryplan: marshal literal value: %v", err))
	}
	return Value{raw: bson.RawValue{Type: t, Value: data}}
}

func stringValue(s string) Value    { return mustMarshalValue(s) }
func boolValue(b bool) Value        { return mustMarshalValue(b) }
func objectValue(d bson.D) Value    { return mustMarshalValue(d) }
func arrayValue(a bson.A) Value     { return mustMarshalValue(a) }
func nullValue() Value              { return mustMarshalValue(bson.Null{}) }
func minKeyValue() Value            { return mustMarshalValue(bson.MinKey{}) }
func maxKeyValue() Value            { return mustMarshalValue(bson.MaxKey{}) }
func regexValue(pattern, opts string) Value {
	return mustMarshalValue(bson.Regex{Pattern: pattern, Options: opts})
}

// Bound is one side of an Interval: a value plus whether the bound includes
// that value.
type Bound struct {
	Value     Value
	Inclusive bool
}

func boundEqual(a, b Bound) bool {
	return a.Inclusive == b.Inclusive && compareValues(a.Value, b.Value) == 0
}

func flipInclusive(b Bound) Bound { return Bound{Value: b.Value, Inclusive: !b.Inclusive} }

// Interval is a closed/half-open range between two bounds.
type Interval struct {
	Lower Bound
	Upper Bound
}

// valid reports whether lower < upper, or lower == upper with both bounds
// inclusive (an equality interval).
func (iv Interval) valid() bool {
	c := compareValues(iv.Lower.Value, iv.Upper.Value)
	if c < 0 {
		return true
	}
	return c == 0 && iv.Lower.Inclusive && iv.Upper.Inclusive
}

// isEquality reports whether the interval pins a single value.
func (iv Interval) isEquality() bool {
	return boundEqual(iv.Lower, iv.Upper) && iv.Lower.Inclusive
}

// maxBound returns the "greater" lower bound of a and b for intersection
// purposes; on a value tie an exclusive bound wins (it excludes more).
func maxBound(a, b Bound) Bound {
	c := compareValues(a.Value, b.Value)
	if (c == 0 && !b.Inclusive) || c < 0 {
		return b
	}
	return a
}

// minBound returns the "lesser" upper bound of a and b for intersection
// purposes; on a value tie an exclusive bound wins.
func minBound(a, b Bound) Bound {
	c := compareValues(a.Value, b.Value)
	if (c == 0 && !b.Inclusive) || c > 0 {
		return b
	}
	return a
}

// overlap computes the intersection of two intervals; ok is false when the
// result is not a valid (non-empty) interval.
func overlap(a, b Interval) (Interval, bool) {
	r := Interval{Lower: maxBound(a.Lower, b.Lower), Upper: minBound(a.Upper, b.Upper)}
	return r, r.valid()
}
