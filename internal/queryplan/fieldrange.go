package queryplan

import (
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// FieldRange is the compiled set of intervals a single field's clauses
// narrow it to: an ordered, disjoint interval list (ported from
// queryutil.cpp::FieldRange). Multiple clauses on the same field intersect
// via andWith; $in/$or style alternatives union via orWith.
type FieldRange struct {
	Intervals []Interval
	special   string // non-empty for opaque operators like $near ("2d")
}

// trivialRange is the unconstrained [MinKey, MaxKey] range every field
// starts from before any clause narrows it. Built once; never mutated.
var trivialRangeOnce = sync.OnceValue(func() FieldRange {
	return FieldRange{Intervals: []Interval{trivialInterval()}}
})

func trivialRange() FieldRange { return trivialRangeOnce() }

func trivialInterval() Interval {
	return Interval{
		Lower: Bound{Value: minKeyValue(), Inclusive: true},
		Upper: Bound{Value: maxKeyValue(), Inclusive: true},
	}
}

// newFieldRange builds the FieldRange a single element (key, val)
// contributes on its own, before intersecting with any sibling clause on the
// same field. key is the element's own field name: the real query field name
// for a bare value or regex, or the operator key ("$gt", "$in", ...) when
// val is the operand of an operator-object clause. isNot flips the operator
// to its complement; optimize tightens open MinKey/MaxKey sides to the
// opposing bound's type sentinels.
func newFieldRange(key string, val Value, isNot, optimize bool) (FieldRange, error) {
	op := classifyOp(key)

	// With $not we could form a complementary interval set, but no bound
	// calculation is attempted for negated $in or regex.
	if !isNot && val.Type() != bson.TypeRegex && op == opIn {
		return inRange(val, optimize)
	}

	if val.Type() == bson.TypeArray && op == opEqual {
		return arrayEqualityRange(val), nil
	}

	// Everything below narrows a single interval starting from the
	// universal range.
	iv := trivialInterval()

	if val.Type() == bson.TypeRegex || (val.Type() == bson.TypeEmbeddedDocument && hasRegexKey(val)) {
		if isNot {
			return FieldRange{Intervals: []Interval{iv}}, nil
		}
		return regexRange(val), nil
	}

	if isNot {
		switch op {
		case opEqual, opAll, opMod, opType:
			// No bound calculation; for $mod and $type a complementary
			// interval pair is conceivable but not attempted.
			op = opNE
		case opNE:
			op = opEqual
		case opLT:
			op = opGTE
		case opLTE:
			op = opGT
		case opGT:
			op = opLTE
		case opGTE:
			op = opLT
		}
	}

	switch op {
	case opEqual:
		iv.Lower = Bound{Value: val, Inclusive: true}
		iv.Upper = Bound{Value: val, Inclusive: true}
	case opLT:
		iv.Upper = Bound{Value: val, Inclusive: false}
	case opLTE:
		iv.Upper = Bound{Value: val, Inclusive: true}
	case opGT:
		iv.Lower = Bound{Value: val, Inclusive: false}
	case opGTE:
		iv.Lower = Bound{Value: val, Inclusive: true}
	case opAll:
		if err := allBounds(&iv, val); err != nil {
			return FieldRange{}, err
		}
	case opMod:
		iv.Lower = Bound{Value: minForType(bson.TypeDouble), Inclusive: true}
		iv.Upper = Bound{Value: maxForType(bson.TypeDouble), Inclusive: true}
	case opType:
		if t, ok := typeArg(val); ok {
			iv.Lower = Bound{Value: minForType(t), Inclusive: true}
			iv.Upper = Bound{Value: maxForType(t), Inclusive: true}
		}
	case opNear, opWithin:
		return FieldRange{Intervals: []Interval{iv}, special: "2d"}, nil
	default:
		// opNE, opRegex, opOptions, opElemMatch, $size, $exists, $nin and
		// unrecognized operators contribute no interval tightening here;
		// a residual matcher filters the candidates.
	}

	if optimize {
		optimizeInterval(&iv)
	}

	return FieldRange{Intervals: []Interval{iv}}, nil
}

// optimizeInterval tightens a half-open side: when exactly one bound is a
// global sentinel and the other is a simple scalar, the scan can be
// restricted to that scalar's type class without changing the match set,
// since indexes order strictly by type first.
func optimizeInterval(iv *Interval) {
	lowerMin := iv.Lower.Value.Type() == bson.TypeMinKey
	upperMax := iv.Upper.Value.Type() == bson.TypeMaxKey
	if !lowerMin && upperMax && isSimpleType(iv.Lower.Value.Type()) {
		iv.Upper = Bound{Value: maxForType(iv.Lower.Value.Type()), Inclusive: true}
	} else if lowerMin && !upperMax && isSimpleType(iv.Upper.Value.Type()) {
		iv.Lower = Bound{Value: minForType(iv.Upper.Value.Type()), Inclusive: true}
	}
}

func isSimpleType(t bson.Type) bool {
	switch t {
	case bson.TypeDouble, bson.TypeInt32, bson.TypeInt64,
		bson.TypeString, bson.TypeDateTime, bson.TypeObjectID:
		return true
	}
	return false
}

// arrayEqualityRange handles an equality match against an array literal: a
// stored field matches either by being exactly that array, or by containing
// its first element (the element-match case the bounds approximate with just
// the first element). The two equality intervals are pushed in value order.
func arrayEqualityRange(val Value) FieldRange {
	whole := pointInterval(val)
	arr, _ := val.raw.ArrayOK()
	els, _ := bson.Raw(arr).Elements()
	if len(els) == 0 {
		return FieldRange{Intervals: []Interval{whole}}
	}
	fv, _ := els[0].ValueErr()
	first := pointInterval(NewValue(fv))

	if compareValues(NewValue(fv), val) < 0 {
		return FieldRange{Intervals: []Interval{first, whole}}
	}
	return FieldRange{Intervals: []Interval{whole, first}}
}

func pointInterval(val Value) Interval {
	return Interval{
		Lower: Bound{Value: val, Inclusive: true},
		Upper: Bound{Value: val, Inclusive: true},
	}
}

// regexRange bounds a regex predicate: the extracted prefix narrows the scan
// to [prefix, prefix+1), or failing that to all strings. A second equality
// interval on the regex value itself is always added, since a stored field
// can be a regex of the same text and regexes sort above strings.
func regexRange(val Value) FieldRange {
	pattern, options := regexArgs(val)
	prefix, _ := simpleRegex(pattern, options)

	var iv Interval
	if prefix != "" {
		iv = Interval{
			Lower: Bound{Value: stringValue(prefix), Inclusive: true},
			Upper: Bound{Value: stringValue(simpleRegexEnd(prefix)), Inclusive: false},
		}
	} else {
		iv = Interval{
			Lower: Bound{Value: minForType(bson.TypeString), Inclusive: true},
			// maxForType for String is the min Object sentinel, so the upper
			// bound stays exclusive.
			Upper: Bound{Value: maxForType(bson.TypeString), Inclusive: false},
		}
	}
	return FieldRange{Intervals: []Interval{iv, pointInterval(regexValue(pattern, options))}}
}

// regexArgs extracts (pattern, options) from either a native regex value or
// a {$regex: "...", $options: "..."} operator document.
func regexArgs(val Value) (string, string) {
	if val.Type() == bson.TypeRegex {
		pattern, options, _ := val.raw.RegexOK()
		return pattern, options
	}
	doc, _ := val.raw.DocumentOK()
	var pattern, options string
	if rv, err := bson.Raw(doc).LookupErr("$regex"); err == nil {
		pattern, _ = rv.StringValueOK()
	}
	if ov, err := bson.Raw(doc).LookupErr("$options"); err == nil {
		options, _ = ov.StringValueOK()
	}
	return pattern, options
}

func hasRegexKey(val Value) bool {
	doc, ok := val.raw.DocumentOK()
	if !ok {
		return false
	}
	_, err := bson.Raw(doc).LookupErr("$regex")
	return err == nil
}

// inRange builds the union of equality points (and, for regex operands,
// their covering string ranges) listed in a $in array, deduplicated and in
// value order.
func inRange(val Value, optimize bool) (FieldRange, error) {
	if val.Type() != bson.TypeArray {
		return FieldRange{}, newQueryError(CodeInvalidIn, "$in requires an array")
	}
	arr, _ := val.raw.ArrayOK()
	els, err := bson.Raw(arr).Elements()
	if err != nil {
		return FieldRange{}, newQueryError(CodeInvalidIn, "invalid $in array: %v", err)
	}

	var vals []Value
	var regexes []FieldRange
	for _, el := range els {
		ev, err := el.ValueErr()
		if err != nil {
			return FieldRange{}, newQueryError(CodeInvalidIn, "invalid $in element: %v", err)
		}
		v := NewValue(ev)
		if v.Type() == bson.TypeRegex {
			fr, err := newFieldRange("", v, false, optimize)
			if err != nil {
				return FieldRange{}, err
			}
			regexes = append(regexes, fr)
		} else {
			vals = append(vals, v)
		}
	}

	sort.SliceStable(vals, func(i, j int) bool { return compareValues(vals[i], vals[j]) < 0 })
	fr := FieldRange{}
	for _, v := range vals {
		if len(fr.Intervals) > 0 && compareValues(fr.Intervals[len(fr.Intervals)-1].Lower.Value, v) == 0 {
			continue
		}
		fr.Intervals = append(fr.Intervals, pointInterval(v))
	}
	for _, re := range regexes {
		fr.orWith(re)
	}
	return fr, nil
}

// allBounds tightens an interval from a $all array: the first non-regex,
// non-$elemMatch element serves as an equality bound (every listed value
// must be present, so any one of them can seed the scan); with only regex
// elements, the first one with an extractable prefix bounds a string range.
func allBounds(iv *Interval, val Value) error {
	if val.Type() != bson.TypeArray {
		return newQueryError(CodeAllRequiresArray, "$all requires array")
	}
	arr, _ := val.raw.ArrayOK()
	els, _ := bson.Raw(arr).Elements()

	for _, el := range els {
		ev, _ := el.ValueErr()
		v := NewValue(ev)
		if v.Type() == bson.TypeRegex {
			continue
		}
		if v.Type() == bson.TypeEmbeddedDocument && firstKeyIsElemMatch(v) {
			// Decomposed into dotted sub-field ranges by the range set.
			continue
		}
		iv.Lower = Bound{Value: v, Inclusive: true}
		iv.Upper = Bound{Value: v, Inclusive: true}
		return nil
	}

	// No usable non-regex bound: fall back to the first regex prefix.
	for _, el := range els {
		ev, _ := el.ValueErr()
		v := NewValue(ev)
		if v.Type() != bson.TypeRegex {
			continue
		}
		pattern, options, _ := v.raw.RegexOK()
		prefix, _ := simpleRegex(pattern, options)
		if prefix != "" {
			iv.Lower = Bound{Value: stringValue(prefix), Inclusive: true}
			iv.Upper = Bound{Value: stringValue(simpleRegexEnd(prefix)), Inclusive: false}
			return nil
		}
	}
	return nil
}

func firstKeyIsElemMatch(v Value) bool {
	doc, _ := v.raw.DocumentOK()
	els, _ := bson.Raw(doc).Elements()
	return len(els) > 0 && classifyOp(els[0].Key()) == opElemMatch
}

// typeArg reads $type's numeric type-code operand; a non-numeric operand
// yields no bound (the matcher rejects it downstream).
func typeArg(val Value) (bson.Type, bool) {
	switch val.Type() {
	case bson.TypeInt32:
		n, _ := val.raw.Int32OK()
		return bson.Type(n), true
	case bson.TypeInt64:
		n, _ := val.raw.Int64OK()
		return bson.Type(n), true
	case bson.TypeDouble:
		n, _ := val.raw.DoubleOK()
		return bson.Type(int32(n)), true
	default:
		return 0, false
	}
}

// inheritSpecial completes an algebraic operation: an empty special tag on
// the left inherits the right-hand side's (finishOperation in the original).
func (fr *FieldRange) inheritSpecial(other FieldRange) {
	if fr.special == "" && other.special != "" {
		fr.special = other.special
	}
}

// andWith intersects fr with other in place (operator&=): every interval in
// fr is replaced with its overlap against every interval in other, dropping
// empty results. An empty result list is legal and means no value can match.
func (fr *FieldRange) andWith(other FieldRange) {
	var out []Interval
	for _, a := range fr.Intervals {
		for _, b := range other.Intervals {
			if r, ok := overlap(a, b); ok {
				out = append(out, r)
			}
		}
	}
	fr.Intervals = sortedDisjoint(out)
	fr.inheritSpecial(other)
}

// orWith unions fr with other in place (operator|=): concatenate, then merge
// overlapping or touching intervals. Bounds that meet at an equal value are
// merged even when neither side is inclusive, since the btree cursor scans
// the seam just as efficiently either way.
func (fr *FieldRange) orWith(other FieldRange) {
	fr.Intervals = mergeSorted(append(append([]Interval{}, fr.Intervals...), other.Intervals...))
	fr.inheritSpecial(other)
}

// subtract removes other's intervals from fr in place (operator-=).
func (fr *FieldRange) subtract(other FieldRange) {
	result := fr.Intervals
	for _, b := range other.Intervals {
		var next []Interval
		for _, a := range result {
			next = append(next, diffInterval(a, b)...)
		}
		result = next
	}
	fr.Intervals = sortedDisjoint(result)
	fr.inheritSpecial(other)
}

// diffInterval computes a minus b, which is zero, one, or two intervals.
// "Just past" an excluded bound is the same value with inclusivity flipped.
func diffInterval(a, b Interval) []Interval {
	if _, ok := overlap(a, b); !ok {
		return []Interval{a}
	}
	var out []Interval
	if compareValues(a.Lower.Value, b.Lower.Value) < 0 ||
		(compareValues(a.Lower.Value, b.Lower.Value) == 0 && a.Lower.Inclusive && !b.Lower.Inclusive) {
		left := Interval{Lower: a.Lower, Upper: flipInclusive(b.Lower)}
		if left.valid() {
			out = append(out, left)
		}
	}
	if compareValues(a.Upper.Value, b.Upper.Value) > 0 ||
		(compareValues(a.Upper.Value, b.Upper.Value) == 0 && a.Upper.Inclusive && !b.Upper.Inclusive) {
		right := Interval{Lower: flipInclusive(b.Upper), Upper: a.Upper}
		if right.valid() {
			out = append(out, right)
		}
	}
	return out
}

// mergeSorted sorts intervals by lower bound and merges any that overlap or
// meet at an equal value, producing the canonical disjoint representation.
func mergeSorted(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := append([]Interval{}, ivs...)
	insertionSortIntervals(sorted)

	out := sorted[:1:1]
	for _, cur := range sorted[1:] {
		last := &out[len(out)-1]
		if compareValues(last.Upper.Value, cur.Lower.Value) >= 0 {
			last.Upper = greaterUpper(last.Upper, cur.Upper)
			continue
		}
		out = append(out, cur)
	}
	return out
}

// sortedDisjoint restores ordering without merging seams; subtraction
// results stay disjoint by construction and must not re-merge the two sides
// of a removed point.
func sortedDisjoint(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := append([]Interval{}, ivs...)
	insertionSortIntervals(sorted)
	return sorted
}

// greaterUpper picks whichever upper bound extends further, preferring the
// inclusive one on a value tie.
func greaterUpper(a, b Bound) Bound {
	c := compareValues(a.Value, b.Value)
	switch {
	case c > 0:
		return a
	case c < 0:
		return b
	case a.Inclusive:
		return a
	default:
		return b
	}
}

func insertionSortIntervals(ivs []Interval) {
	for i := 1; i < len(ivs); i++ {
		for j := i; j > 0; j-- {
			a, b := ivs[j-1], ivs[j]
			if lessBound(b.Lower, a.Lower) {
				ivs[j-1], ivs[j] = ivs[j], ivs[j-1]
				continue
			}
			break
		}
	}
}

func lessBound(a, b Bound) bool {
	c := compareValues(a.Value, b.Value)
	if c != 0 {
		return c < 0
	}
	return a.Inclusive && !b.Inclusive
}

// Special returns the opaque non-orderable-operator tag ("2d" for $near/
// $within), or "" if this range is a plain interval set.
func (fr FieldRange) Special() string { return fr.special }

// Empty reports whether fr constrains its field to no possible value.
func (fr FieldRange) Empty() bool { return len(fr.Intervals) == 0 }

// IsEquality reports whether fr pins its field to exactly one value.
func (fr FieldRange) IsEquality() bool {
	return len(fr.Intervals) == 1 && fr.Intervals[0].isEquality()
}

// InQuery reports whether fr came solely from an enumeration ($in, $all, or
// an array of equalities): every interval is a single point. The bounds
// compiler fans such ranges out instead of treating them as an inequality.
func (fr FieldRange) InQuery() bool {
	if len(fr.Intervals) == 0 {
		return false
	}
	for _, iv := range fr.Intervals {
		if !iv.isEquality() {
			return false
		}
	}
	return true
}

// Min and Max return the extreme bounds of the whole range.
func (fr FieldRange) Min() Bound { return fr.Intervals[0].Lower }
func (fr FieldRange) Max() Bound { return fr.Intervals[len(fr.Intervals)-1].Upper }

// Nontrivial reports whether fr is anything other than the universal
// [MinKey, MaxKey] range.
func (fr FieldRange) Nontrivial() bool {
	if len(fr.Intervals) != 1 {
		return true
	}
	iv := fr.Intervals[0]
	return iv.Lower.Value.Type() != bson.TypeMinKey ||
		iv.Upper.Value.Type() != bson.TypeMaxKey ||
		!iv.Lower.Inclusive || !iv.Upper.Inclusive
}

func (fr FieldRange) String() string {
	return fmt.Sprintf("FieldRange{intervals=%d equality=%v}", len(fr.Intervals), fr.IsEquality())
}
