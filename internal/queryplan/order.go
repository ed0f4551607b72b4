package queryplan

import (
	"bytes"
	"math"
	"math/big"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// typeRank is BSON's canonical cross-type sort order, used whenever two
// values of different types are compared. MinKey sorts before everything,
// MaxKey after everything; Null, then the numeric family (Double/Int32/
// Int64/Decimal128 compare as one type), then String/Symbol, then Object,
// Array, Binary, ObjectID, Boolean, Date, Timestamp, RegEx.
//
// The driver does not expose this table publicly (it's an internal
// implementation detail of its own comparison helpers), so it is
// reimplemented here directly: this ordering IS the hard part this package
// exists to get right, not a gap to be filled by a library.
func typeRank(t bson.Type) int {
	switch t {
	case bson.TypeMinKey:
		return 0
	case bson.TypeNull:
		return 1
	case bson.TypeDouble, bson.TypeInt32, bson.TypeInt64, bson.TypeDecimal128:
		return 2
	case bson.TypeString, bson.TypeSymbol:
		return 3
	case bson.TypeEmbeddedDocument:
		return 4
	case bson.TypeArray:
		return 5
	case bson.TypeBinary:
		return 6
	case bson.TypeObjectID:
		return 7
	case bson.TypeBoolean:
		return 8
	case bson.TypeDateTime:
		return 9
	case bson.TypeTimestamp:
		return 10
	case bson.TypeRegex:
		return 11
	case bson.TypeMaxKey:
		return 12
	case bson.TypeUndefined:
		return 1 // Undefined sorts alongside Null.
	default:
		// JavaScript, DBPointer and similar rarely-indexed types share RegEx's
		// rank, after Timestamp and before MaxKey; their exact position among
		// themselves and against RegEx values does not matter for this
		// package since no query operator targets them.
		return 11
	}
}

// compareValues implements BSON's total order: cross-type by typeRank, then
// a type-specific comparison within a rank.
func compareValues(a, b Value) int {
	ra, rb := typeRank(a.Type()), typeRank(b.Type())
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 2:
		return compareNumeric(a, b)
	case 3:
		return compareStrings(a, b)
	case 4:
		return compareDocs(a, b)
	case 5:
		return compareArrays(a, b)
	case 6:
		return bytes.Compare(asBinary(a), asBinary(b))
	case 7:
		return bytes.Compare(asObjectID(a), asObjectID(b))
	case 8:
		return compareBool(a, b)
	case 9, 10:
		return compareInt64(asMillisOrCounter(a), asMillisOrCounter(b))
	case 11:
		pa, oa, _ := a.raw.RegexOK()
		pb, ob, _ := b.raw.RegexOK()
		if c := bytes.Compare([]byte(pa), []byte(pb)); c != 0 {
			return c
		}
		return bytes.Compare([]byte(oa), []byte(ob))
	default:
		return 0
	}
}

func compareNumeric(a, b Value) int {
	fa, fb := asFloat64(a), asFloat64(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	default:
		return 0
	}
}

func asFloat64(v Value) float64 {
	switch v.Type() {
	case bson.TypeDouble:
		f, _ := v.raw.DoubleOK()
		return f
	case bson.TypeInt32:
		i, _ := v.raw.Int32OK()
		return float64(i)
	case bson.TypeInt64:
		i, _ := v.raw.Int64OK()
		return float64(i)
	case bson.TypeDecimal128:
		// Decimal128 is compared via its closest float64 approximation.
		// Faithful Decimal128 comparison would need a dedicated decimal
		// library not present anywhere in the example pack, so Decimal128
		// values that differ only beyond float64 precision compare equal.
		d, _ := v.raw.Decimal128OK()
		bi, exp, err := d.BigInt()
		if err != nil {
			return math.NaN()
		}
		bf := new(big.Float).SetInt(bi)
		bf.Mul(bf, big.NewFloat(math.Pow10(exp)))
		f, _ := bf.Float64()
		return f
	default:
		return math.NaN()
	}
}

func compareStrings(a, b Value) int {
	sa, sb := asString(a), asString(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func asString(v Value) string {
	switch v.Type() {
	case bson.TypeString:
		s, _ := v.raw.StringValueOK()
		return s
	case bson.TypeSymbol:
		s, _ := v.raw.SymbolOK()
		return s
	default:
		return ""
	}
}

func compareDocs(a, b Value) int {
	da, _ := a.raw.DocumentOK()
	db, _ := b.raw.DocumentOK()
	return compareRawDocs(da, db)
}

// compareRawDocs compares two embedded documents element-by-element in
// field order: field names first, then values, the first mismatch deciding.
func compareRawDocs(a, b bson.Raw) int {
	ae, _ := a.Elements()
	be, _ := b.Elements()
	n := len(ae)
	if len(be) < n {
		n = len(be)
	}
	for i := 0; i < n; i++ {
		ak, bk := ae[i].Key(), be[i].Key()
		if ak != bk {
			if ak < bk {
				return -1
			}
			return 1
		}
		av, _ := ae[i].ValueErr()
		bv, _ := be[i].ValueErr()
		if c := compareValues(NewValue(av), NewValue(bv)); c != 0 {
			return c
		}
	}
	switch {
	case len(ae) < len(be):
		return -1
	case len(ae) > len(be):
		return 1
	default:
		return 0
	}
}

func compareArrays(a, b Value) int {
	aa, _ := a.raw.ArrayOK()
	ba, _ := b.raw.ArrayOK()
	return compareRawDocs(bson.Raw(aa), bson.Raw(ba))
}

func asBinary(v Value) []byte {
	_, data, _ := v.raw.BinaryOK()
	return data
}

func asObjectID(v Value) []byte {
	oid, _ := v.raw.ObjectIDOK()
	return oid[:]
}

func compareBool(a, b Value) int {
	ba, _ := a.raw.BooleanOK()
	bb, _ := b.raw.BooleanOK()
	switch {
	case ba == bb:
		return 0
	case !ba:
		return -1
	default:
		return 1
	}
}

func asMillisOrCounter(v Value) int64 {
	switch v.Type() {
	case bson.TypeDateTime:
		d, _ := v.raw.DateTimeOK()
		return d
	case bson.TypeTimestamp:
		t, i, _ := v.raw.TimestampOK()
		return int64(t)<<32 | int64(i)
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// minForType and maxForType build sentinel values used to turn a bare
// existence/type predicate into a bounding interval: the half-open range
// [minForType(T), maxForType(T)) contains exactly the values of type T.
//
// maxForType(T) is the min-sentinel of the next type up in canonical order,
// mirroring queryutil.cpp's comment that "MaxForType String is an empty
// Object": there is no maximal String, only the minimal value of whatever
// sorts immediately after strings.
func minForType(t bson.Type) Value {
	switch typeRank(t) {
	case 0:
		return minKeyValue()
	case 1:
		return nullValue()
	case 2:
		return mustMarshalValue(math.Inf(-1))
	case 3:
		return stringValue("")
	case 4:
		return objectValue(bson.D{})
	case 5:
		return arrayValue(bson.A{})
	case 6:
		return mustMarshalValue(bson.Binary{})
	case 7:
		return mustMarshalValue(bson.ObjectID{})
	case 8:
		return boolValue(false)
	case 9:
		return mustMarshalValue(bson.DateTime(math.MinInt64))
	case 10:
		return mustMarshalValue(bson.Timestamp{})
	case 11:
		return regexValue("", "")
	default:
		return maxKeyValue()
	}
}

func maxForType(t bson.Type) Value {
	r := typeRank(t)
	if r >= 12 {
		return maxKeyValue()
	}
	return minForRank(r + 1)
}

func minForRank(rank int) Value {
	switch rank {
	case 0:
		return minKeyValue()
	case 1:
		return nullValue()
	case 2:
		return mustMarshalValue(math.Inf(-1))
	case 3:
		return stringValue("")
	case 4:
		return objectValue(bson.D{})
	case 5:
		return arrayValue(bson.A{})
	case 6:
		return mustMarshalValue(bson.Binary{})
	case 7:
		return mustMarshalValue(bson.ObjectID{})
	case 8:
		return boolValue(false)
	case 9:
		return mustMarshalValue(bson.DateTime(math.MinInt64))
	case 10:
		return mustMarshalValue(bson.Timestamp{})
	case 11:
		return regexValue("", "")
	default:
		return maxKeyValue()
	}
}
