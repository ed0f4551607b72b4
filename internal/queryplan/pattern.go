package queryplan

import "go.mongodb.org/mongo-driver/v2/bson"

// FieldKind is the coarse shape of a single field's compiled range, used to
// build a QueryPattern fingerprint for plan-cache keys: two queries with the
// same pattern can safely reuse the same chosen index plan even though
// their literal bound values differ.
type FieldKind int

const (
	KindEquality FieldKind = iota
	KindLowerBound
	KindUpperBound
	KindUpperAndLowerBound
)

// String renders the FieldKind the way the "plan" CLI command prints a
// QueryPattern fingerprint.
func (k FieldKind) String() string {
	switch k {
	case KindEquality:
		return "equality"
	case KindLowerBound:
		return "lowerBound"
	case KindUpperBound:
		return "upperBound"
	case KindUpperAndLowerBound:
		return "upperAndLowerBound"
	default:
		return "unknown"
	}
}

// QueryPattern is the per-field FieldKind fingerprint of a compiled
// FieldRangeSet plus the requested sort, ported from queryutil.cpp's
// QueryPattern / FieldRangeSet::pattern. It is the plan-cache key: two
// queries with the same pattern can safely reuse the same chosen index plan
// even though their literal bound values differ.
type QueryPattern struct {
	FieldKind map[string]FieldKind
	Sort      bson.D
}

// Pattern computes the QueryPattern fingerprint for every field frs has a
// non-trivial range for, with no sort. Equivalent to PatternWithSort(nil).
func (frs *FieldRangeSet) Pattern() QueryPattern {
	return frs.PatternWithSort(nil)
}

// PatternWithSort computes the QueryPattern fingerprint, recording sort as
// part of the cache key since a plan chosen for one sort order cannot
// always serve another.
func (frs *FieldRangeSet) PatternWithSort(sort bson.D) QueryPattern {
	fk := make(map[string]FieldKind, len(frs.ranges))
	for field, fr := range frs.ranges {
		invariant(!fr.Empty(), "pattern of an empty range")
		if fr.IsEquality() {
			fk[field] = KindEquality
			continue
		}
		if !fr.Nontrivial() {
			continue // unconstrained fields are no part of the fingerprint
		}
		lower := fr.Min().Value.Type() != bson.TypeMinKey
		upper := fr.Max().Value.Type() != bson.TypeMaxKey
		switch {
		case lower && upper:
			fk[field] = KindUpperAndLowerBound
		case upper:
			fk[field] = KindUpperBound
		case lower:
			fk[field] = KindLowerBound
		}
	}
	return QueryPattern{FieldKind: fk, Sort: sort}
}
