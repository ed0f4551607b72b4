package queryplan

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func mustFieldRange(t *testing.T, key string, native any, isNot, optimize bool) FieldRange {
	t.Helper()
	fr, err := newFieldRange(key, mustMarshalValue(native), isNot, optimize)
	if err != nil {
		t.Fatalf("newFieldRange(%s): %v", key, err)
	}
	return fr
}

func TestEqualityClauseIsSinglePoint(t *testing.T) {
	fr := mustFieldRange(t, "a", int32(5), false, true)
	if !fr.IsEquality() {
		t.Fatalf("bare value should compile to an equality range")
	}
	if len(fr.Intervals) != 1 || !fr.Intervals[0].isEquality() {
		t.Fatalf("expected a single point interval, got %v", fr.Intervals)
	}
}

func TestComparisonInclusivity(t *testing.T) {
	lt := mustFieldRange(t, "$lt", int32(10), false, false)
	if lt.Intervals[0].Upper.Inclusive {
		t.Fatalf("$lt should produce an exclusive upper bound")
	}
	lte := mustFieldRange(t, "$lte", int32(10), false, false)
	if !lte.Intervals[0].Upper.Inclusive {
		t.Fatalf("$lte should produce an inclusive upper bound")
	}
	gt := mustFieldRange(t, "$gt", int32(10), false, false)
	if gt.Intervals[0].Lower.Inclusive {
		t.Fatalf("$gt should produce an exclusive lower bound")
	}
	if gt.Intervals[0].Lower.Value.Type() != bson.TypeInt32 {
		t.Fatalf("$gt lower bound should carry the operand")
	}
}

func TestUnoptimizedComparisonKeepsSentinel(t *testing.T) {
	lt := mustFieldRange(t, "$lt", int32(10), false, false)
	if lt.Intervals[0].Lower.Value.Type() != bson.TypeMinKey {
		t.Fatalf("without optimize, $lt should leave the lower bound at MinKey")
	}
}

func TestOptimizeTightensOpenSideToTypeSentinel(t *testing.T) {
	lt := mustFieldRange(t, "$lt", int32(10), false, true)
	lower := lt.Intervals[0].Lower.Value
	if lower.Type() == bson.TypeMinKey {
		t.Fatalf("optimize should replace MinKey with the numeric type's min sentinel")
	}
	if compareValues(lower, minForType(bson.TypeInt32)) != 0 {
		t.Fatalf("optimize should restrict the scan to the number type class")
	}

	gt := mustFieldRange(t, "$gt", "m", false, true)
	upper := gt.Intervals[0].Upper.Value
	if compareValues(upper, maxForType(bson.TypeString)) != 0 {
		t.Fatalf("optimize should cap a string lower bound at the string type's max sentinel")
	}
}

func TestNegatedComparisonFlipsToComplement(t *testing.T) {
	// not($gt: 5) == $lte: 5 — [MinKey, 5] with an inclusive upper bound.
	fr := mustFieldRange(t, "$gt", int32(5), true, false)
	iv := fr.Intervals[0]
	if iv.Lower.Value.Type() != bson.TypeMinKey || !iv.Lower.Inclusive {
		t.Fatalf("negated $gt should keep the MinKey lower bound, got %v", iv.Lower)
	}
	if compareValues(iv.Upper.Value, mustMarshalValue(int32(5))) != 0 || !iv.Upper.Inclusive {
		t.Fatalf("negated $gt should become an inclusive upper bound at 5, got %v", iv.Upper)
	}

	// not($lte: 5) == $gt: 5.
	fr = mustFieldRange(t, "$lte", int32(5), true, false)
	iv = fr.Intervals[0]
	if compareValues(iv.Lower.Value, mustMarshalValue(int32(5))) != 0 || iv.Lower.Inclusive {
		t.Fatalf("negated $lte should become an exclusive lower bound at 5, got %v", iv.Lower)
	}

	// not($ne: 5) == equality on 5.
	fr = mustFieldRange(t, "$ne", int32(5), true, false)
	if !fr.IsEquality() {
		t.Fatalf("negated $ne should pin a single value")
	}
}

func TestNegatedEqualityIsUnconstrained(t *testing.T) {
	fr := mustFieldRange(t, "a", int32(5), true, false)
	if fr.Nontrivial() {
		t.Fatalf("no bound is calculated for a negated equality, got %v", fr.Intervals)
	}
}

func TestNeAloneIsUnconstrained(t *testing.T) {
	fr := mustFieldRange(t, "$ne", int32(5), false, true)
	if fr.Nontrivial() {
		t.Fatalf("$ne contributes no interval tightening, got %v", fr.Intervals)
	}
}

func TestInRangeSortsAndDedups(t *testing.T) {
	fr := mustFieldRange(t, "$in", bson.A{int32(3), int32(1), int32(2), int32(1)}, false, true)
	if len(fr.Intervals) != 3 {
		t.Fatalf("expected 3 deduplicated points, got %d", len(fr.Intervals))
	}
	for i, want := range []int32{1, 2, 3} {
		iv := fr.Intervals[i]
		if !iv.isEquality() || compareValues(iv.Lower.Value, mustMarshalValue(want)) != 0 {
			t.Fatalf("interval %d should be the equality [%d,%d]", i, want, want)
		}
	}
	if !fr.InQuery() {
		t.Fatalf("a pure $in range should report InQuery")
	}
}

func TestInRangeRequiresArray(t *testing.T) {
	_, err := newFieldRange("$in", mustMarshalValue(int32(1)), false, true)
	qe, ok := err.(*QueryError)
	if !ok || qe.Code != CodeInvalidIn {
		t.Fatalf("expected code %d, got %v", CodeInvalidIn, err)
	}
}

func TestInRangeUnionsRegexMembers(t *testing.T) {
	fr, err := newFieldRange("$in", mustMarshalValue(bson.A{int32(1), bson.Regex{Pattern: "^foo"}}), false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// [1,1], ["foo","fop"), and the regex value itself.
	if len(fr.Intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d: %v", len(fr.Intervals), fr.Intervals)
	}
}

func TestRegexRangeEmitsPrefixAndSelfMatch(t *testing.T) {
	fr := mustFieldRange(t, "r", bson.Regex{Pattern: "^foo"}, false, true)
	if len(fr.Intervals) != 2 {
		t.Fatalf("expected prefix interval plus regex self-match, got %d", len(fr.Intervals))
	}
	prefix := fr.Intervals[0]
	if s, _ := prefix.Lower.Value.Raw().StringValueOK(); s != "foo" {
		t.Fatalf("prefix interval should start at %q, got %q", "foo", s)
	}
	if s, _ := prefix.Upper.Value.Raw().StringValueOK(); s != "fop" || prefix.Upper.Inclusive {
		t.Fatalf("prefix interval should end exclusively at %q, got %q", "fop", s)
	}
	self := fr.Intervals[1]
	if self.Lower.Value.Type() != bson.TypeRegex || !self.isEquality() {
		t.Fatalf("second interval should be the regex value's own equality")
	}
}

func TestRegexRangeFallsBackToAllStrings(t *testing.T) {
	fr := mustFieldRange(t, "r", bson.Regex{Pattern: "^f?oo"}, false, true)
	prefix := fr.Intervals[0]
	if compareValues(prefix.Lower.Value, minForType(bson.TypeString)) != 0 {
		t.Fatalf("unextractable prefix should fall back to the whole string type range")
	}
	if compareValues(prefix.Upper.Value, maxForType(bson.TypeString)) != 0 || prefix.Upper.Inclusive {
		t.Fatalf("string-type fallback upper bound should be the exclusive type sentinel")
	}
}

func TestRegexOperatorObjectForm(t *testing.T) {
	fr := mustFieldRange(t, "r", bson.D{{Key: "$regex", Value: "^foo"}, {Key: "$options", Value: ""}}, false, true)
	if len(fr.Intervals) != 2 {
		t.Fatalf("object-form regex should bound like a native regex, got %d intervals", len(fr.Intervals))
	}
}

func TestNegatedRegexIsUnconstrained(t *testing.T) {
	fr := mustFieldRange(t, "r", bson.Regex{Pattern: "^foo"}, true, true)
	if fr.Nontrivial() {
		t.Fatalf("no complementary intervals are formed for a negated regex")
	}
}

func TestAllPicksFirstPlainElementAsEquality(t *testing.T) {
	fr := mustFieldRange(t, "$all", bson.A{bson.Regex{Pattern: "^x"}, int32(7), int32(9)}, false, false)
	if !fr.IsEquality() {
		t.Fatalf("$all should bound on its first non-regex element")
	}
	if compareValues(fr.Min().Value, mustMarshalValue(int32(7))) != 0 {
		t.Fatalf("$all equality bound should be 7")
	}
}

func TestAllFallsBackToRegexPrefix(t *testing.T) {
	fr := mustFieldRange(t, "$all", bson.A{bson.Regex{Pattern: "abc"}, bson.Regex{Pattern: "^foo"}}, false, false)
	iv := fr.Intervals[0]
	if s, _ := iv.Lower.Value.Raw().StringValueOK(); s != "foo" {
		t.Fatalf("with only regex elements, the first extractable prefix should bound the range, got %q", s)
	}
}

func TestAllRequiresArray(t *testing.T) {
	_, err := newFieldRange("$all", mustMarshalValue(int32(1)), false, false)
	qe, ok := err.(*QueryError)
	if !ok || qe.Code != CodeAllRequiresArray {
		t.Fatalf("expected code %d, got %v", CodeAllRequiresArray, err)
	}
}

func TestTypeRangeBracketsTypeClass(t *testing.T) {
	// BSON type tag 2 is String.
	fr := mustFieldRange(t, "$type", int32(2), false, false)
	iv := fr.Intervals[0]
	if compareValues(iv.Lower.Value, minForType(bson.TypeString)) != 0 {
		t.Fatalf("$type lower bound should be the string min sentinel")
	}
	if compareValues(iv.Upper.Value, maxForType(bson.TypeString)) != 0 || !iv.Upper.Inclusive {
		t.Fatalf("$type upper bound should be the inclusive string max sentinel")
	}
}

func TestModBracketsNumbers(t *testing.T) {
	fr := mustFieldRange(t, "$mod", bson.A{int32(3), int32(1)}, false, false)
	iv := fr.Intervals[0]
	if compareValues(iv.Lower.Value, minForType(bson.TypeDouble)) != 0 {
		t.Fatalf("$mod should cover the numeric type class")
	}
}

func TestNearSetsSpecialTag(t *testing.T) {
	fr := mustFieldRange(t, "$near", bson.A{1.0, 2.0}, false, false)
	if fr.Special() != "2d" {
		t.Fatalf("$near should set the opaque 2d tag, got %q", fr.Special())
	}
	if fr.Nontrivial() {
		t.Fatalf("$near must not constrain the interval")
	}
}

func TestArrayEqualityPushesFirstElement(t *testing.T) {
	fr := mustFieldRange(t, "a", bson.A{int32(1), int32(2)}, false, true)
	if len(fr.Intervals) != 2 {
		t.Fatalf("expected first-element and whole-array intervals, got %d", len(fr.Intervals))
	}
	// The scalar 1 sorts before the array value.
	if fr.Intervals[0].Lower.Value.Type() != bson.TypeInt32 {
		t.Fatalf("first interval should be the first element's equality")
	}
	if fr.Intervals[1].Lower.Value.Type() != bson.TypeArray {
		t.Fatalf("second interval should be the whole-array equality")
	}
}

func TestArrayEqualityEmptyArray(t *testing.T) {
	fr := mustFieldRange(t, "a", bson.A{}, false, true)
	if len(fr.Intervals) != 1 {
		t.Fatalf("empty array equality should produce one interval, got %d", len(fr.Intervals))
	}
}

func TestAndWithIntersection(t *testing.T) {
	// field > 5 AND field < 10  =>  (5, 10)
	gt5 := mustFieldRange(t, "$gt", int32(5), false, false)
	lt10 := mustFieldRange(t, "$lt", int32(10), false, false)
	gt5.andWith(lt10)
	if len(gt5.Intervals) != 1 {
		t.Fatalf("expected a single resulting interval, got %d", len(gt5.Intervals))
	}
	iv := gt5.Intervals[0]
	if compareValues(iv.Lower.Value, mustMarshalValue(int32(5))) != 0 || iv.Lower.Inclusive {
		t.Fatalf("wrong lower bound after intersection")
	}
	if compareValues(iv.Upper.Value, mustMarshalValue(int32(10))) != 0 || iv.Upper.Inclusive {
		t.Fatalf("wrong upper bound after intersection")
	}
}

func TestAndWithDisjointIsEmpty(t *testing.T) {
	lt5 := mustFieldRange(t, "$lte", int32(5), false, false)
	gt10 := mustFieldRange(t, "$gte", int32(10), false, false)
	lt5.andWith(gt10)
	if !lt5.Empty() {
		t.Fatalf("disjoint intersection should be empty, got %d intervals", len(lt5.Intervals))
	}
}

func TestAndWithIdempotent(t *testing.T) {
	a := mustFieldRange(t, "$in", bson.A{int32(1), int32(5), int32(9)}, false, true)
	before := len(a.Intervals)
	a.andWith(a)
	if len(a.Intervals) != before {
		t.Fatalf("x &= x should be a no-op, got %d intervals from %d", len(a.Intervals), before)
	}
}

func TestOrWithUnionMergesOverlap(t *testing.T) {
	a := mustFieldRange(t, "$lte", int32(5), false, false) // [MinKey, 5]
	b := mustFieldRange(t, "$gte", int32(3), false, false) // [3, MaxKey]
	a.orWith(b)
	if len(a.Intervals) != 1 {
		t.Fatalf("overlapping ranges should merge into one interval, got %d", len(a.Intervals))
	}
}

func TestOrWithMergesTouchingExclusiveBounds(t *testing.T) {
	// (MinKey, 5) | (5, MaxKey): equal seam values merge even when neither
	// side is inclusive, since the cursor scans the seam either way.
	a := mustFieldRange(t, "$lt", int32(5), false, false)
	b := mustFieldRange(t, "$gt", int32(5), false, false)
	a.orWith(b)
	if len(a.Intervals) != 1 {
		t.Fatalf("equal-valued exclusive seam should merge, got %d intervals", len(a.Intervals))
	}
}

func TestOrWithUnionKeepsDisjoint(t *testing.T) {
	a := mustFieldRange(t, "a", int32(1), false, true)
	b := mustFieldRange(t, "a", int32(100), false, true)
	a.orWith(b)
	if len(a.Intervals) != 2 {
		t.Fatalf("disjoint equality ranges should stay separate, got %d", len(a.Intervals))
	}
}

func TestOrWithCommutative(t *testing.T) {
	mk := func() (FieldRange, FieldRange) {
		return mustFieldRange(t, "$in", bson.A{int32(1), int32(7)}, false, true),
			mustFieldRange(t, "$in", bson.A{int32(3), int32(7), int32(9)}, false, true)
	}
	x, y := mk()
	x.orWith(y)
	a, b := mk()
	b.orWith(a)
	if len(x.Intervals) != len(b.Intervals) {
		t.Fatalf("union should be commutative: %d vs %d intervals", len(x.Intervals), len(b.Intervals))
	}
	for i := range x.Intervals {
		if compareValues(x.Intervals[i].Lower.Value, b.Intervals[i].Lower.Value) != 0 {
			t.Fatalf("union results differ at interval %d", i)
		}
	}
}

func TestSubtractRemovesMiddle(t *testing.T) {
	// [0, 100] minus [40, 60] => [0,40) and (60,100]
	whole := FieldRange{Intervals: []Interval{{
		Lower: Bound{Value: mustMarshalValue(int32(0)), Inclusive: true},
		Upper: Bound{Value: mustMarshalValue(int32(100)), Inclusive: true},
	}}}
	middle := FieldRange{Intervals: []Interval{{
		Lower: Bound{Value: mustMarshalValue(int32(40)), Inclusive: true},
		Upper: Bound{Value: mustMarshalValue(int32(60)), Inclusive: true},
	}}}
	whole.subtract(middle)
	if len(whole.Intervals) != 2 {
		t.Fatalf("expected 2 remaining intervals, got %d", len(whole.Intervals))
	}
	if whole.Intervals[0].Upper.Inclusive || whole.Intervals[1].Lower.Inclusive {
		t.Fatalf("bounds adjacent to the removed region must be exclusive")
	}
}

func TestSubtractSelfIsEmpty(t *testing.T) {
	a := mustFieldRange(t, "$in", bson.A{int32(1), int32(2), int32(3)}, false, true)
	b := mustFieldRange(t, "$in", bson.A{int32(1), int32(2), int32(3)}, false, true)
	a.subtract(b)
	if !a.Empty() {
		t.Fatalf("x -= x should be empty, got %v", a.Intervals)
	}
}

func TestUnionThenDifferenceRecoversDisjointOperand(t *testing.T) {
	a := mustFieldRange(t, "$in", bson.A{int32(1), int32(2)}, false, true)
	b := mustFieldRange(t, "$in", bson.A{int32(10), int32(20)}, false, true)
	u := mustFieldRange(t, "$in", bson.A{int32(1), int32(2)}, false, true)
	u.orWith(b)
	u.subtract(b)
	if len(u.Intervals) != len(a.Intervals) {
		t.Fatalf("(a|b)-b should equal a for disjoint a,b: %d vs %d", len(u.Intervals), len(a.Intervals))
	}
	for i := range u.Intervals {
		if compareValues(u.Intervals[i].Lower.Value, a.Intervals[i].Lower.Value) != 0 {
			t.Fatalf("(a|b)-b differs from a at interval %d", i)
		}
	}
}

func TestAlgebraKeepsIntervalsWellFormed(t *testing.T) {
	check := func(name string, fr FieldRange) {
		t.Helper()
		for i, iv := range fr.Intervals {
			if !iv.valid() {
				t.Fatalf("%s: interval %d invalid", name, i)
			}
			if i > 0 && compareValues(fr.Intervals[i-1].Lower.Value, iv.Lower.Value) >= 0 {
				t.Fatalf("%s: intervals not strictly ordered at %d", name, i)
			}
		}
	}
	a := mustFieldRange(t, "$in", bson.A{int32(5), int32(1), int32(3)}, false, true)
	check("construction", a)
	b := mustFieldRange(t, "$gte", int32(2), false, false)
	a.andWith(b)
	check("andWith", a)
	a.orWith(mustFieldRange(t, "a", int32(40), false, true))
	check("orWith", a)
	a.subtract(mustFieldRange(t, "a", int32(3), false, true))
	check("subtract", a)
}

func TestAndWithInheritsSpecial(t *testing.T) {
	plain := mustFieldRange(t, "$gt", int32(1), false, false)
	near := mustFieldRange(t, "$near", bson.A{1.0, 2.0}, false, false)
	plain.andWith(near)
	if plain.Special() != "2d" {
		t.Fatalf("an empty special tag should inherit from the other operand")
	}
}

func TestTrivialRangeSingleton(t *testing.T) {
	a := trivialRange()
	b := trivialRange()
	if len(a.Intervals) != 1 || len(b.Intervals) != 1 {
		t.Fatalf("trivial range should have exactly one interval")
	}
	if a.Intervals[0].Lower.Value.Type() != bson.TypeMinKey {
		t.Fatalf("trivial range should start at MinKey")
	}
	if a.Nontrivial() {
		t.Fatalf("trivial range should not report Nontrivial")
	}
}
