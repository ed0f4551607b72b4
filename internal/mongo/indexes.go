package mongo

import (
	"github.com/ppiankov/mongospectre/internal/queryplan"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// KeyPattern converts this index's key fields into the queryplan package's
// KeyPattern shape, so a live index can be fed straight into an
// IndexBoundsCompiler.
func (idx IndexInfo) KeyPattern() queryplan.KeyPattern {
	kp := make(queryplan.KeyPattern, 0, len(idx.Key))
	for _, kf := range idx.Key {
		kp = append(kp, queryplan.KeyField{Name: kf.Field, Direction: kf.Direction})
	}
	return kp
}

// IndexRecommendation scores one candidate index against a compiled query.
type IndexRecommendation struct {
	Index      IndexInfo
	Bounds     queryplan.BoundList
	ScanPoints int // total compound bound tuples; lower is a tighter scan
	Err        error
}

// RecommendIndex compiles frs against every candidate index and returns the
// recommendation list sorted with the tightest (fewest scan points,
// boundless fields last) first. An index the compiler rejects (fan-out over
// cap) still appears, with Err set, so callers can report why it was passed
// over.
func RecommendIndex(frs *queryplan.FieldRangeSet, candidates []IndexInfo) []IndexRecommendation {
	out := make([]IndexRecommendation, 0, len(candidates))
	for _, idx := range candidates {
		compiler := queryplan.IndexBoundsCompiler{Pattern: idx.KeyPattern()}
		bounds, err := compiler.Compile(frs)
		rec := IndexRecommendation{Index: idx, Err: err}
		if err == nil {
			rec.Bounds = bounds
			rec.ScanPoints = len(bounds)
		}
		out = append(out, rec)
	}

	sortRecommendations(out)
	return out
}

// sortRecommendations orders successfully-compiled recommendations by scan
// tightness (fewest tuples first, then fewest boundless key fields), with
// every failed compilation pushed to the end.
func sortRecommendations(recs []IndexRecommendation) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recommendationLess(recs[j], recs[j-1]); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}

func recommendationLess(a, b IndexRecommendation) bool {
	if (a.Err == nil) != (b.Err == nil) {
		return a.Err == nil
	}
	if a.Err != nil {
		return false
	}
	if a.ScanPoints != b.ScanPoints {
		return a.ScanPoints < b.ScanPoints
	}
	// Equal scan points: fewer key fields left at the full [MinKey, MaxKey]
	// range (counted on the first tuple) sorts first.
	isKey := func(bd queryplan.Bound) bool {
		t := bd.Value.Type()
		return t == bson.TypeMinKey || t == bson.TypeMaxKey
	}
	boundless := func(bl queryplan.BoundList) (n int) {
		if len(bl) > 0 {
			for _, bp := range bl[0] {
				if isKey(bp.Lower) && isKey(bp.Upper) {
					n++
				}
			}
		}
		return n
	}
	return boundless(a.Bounds) < boundless(b.Bounds)
}
