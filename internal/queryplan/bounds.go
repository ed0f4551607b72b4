package queryplan

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// maxFanout bounds the number of compound key-bound tuples a single Compile
// call may produce, guarding against a query whose independent per-field
// interval counts multiply into an unusable scan plan. Matches the
// historical 1,000,000 cap.
const maxFanout = 1_000_000

// KeyField is one field of an index key pattern: a field name and a
// direction (1 ascending, -1 descending; 0, used for 2d/2dsphere/text/hashed
// fields that have no direction, compiles as ascending).
type KeyField struct {
	Name      string
	Direction int
}

// KeyPattern is an ordered compound index key: {a: 1, b: -1, ...}.
type KeyPattern []KeyField

// BoundPair is one Lower/Upper pair for a single key-pattern field in a
// single compiled bound tuple; each Bound carries its own inclusivity.
type BoundPair struct {
	Lower Bound
	Upper Bound
}

// BoundTuple is one compound bound: one BoundPair per field of the key
// pattern, in key-pattern order.
type BoundTuple []BoundPair

// BoundList is the full result of compiling a query against a key pattern:
// the ordered set of compound bound tuples an index scan must cover,
// already adjusted for each field's scan direction.
type BoundList []BoundTuple

// IndexBoundsCompiler expands a FieldRangeSet's per-field intervals into the
// compound bound tuples a specific index key pattern needs, ported from
// queryutil.cpp::FieldRangeSet::indexBounds.
type IndexBoundsCompiler struct {
	Pattern   KeyPattern
	Direction int // scan direction, +1 or -1; 0 treated as +1
	MaxScan   int // 0 uses maxFanout
}

// Compile expands frs against c.Pattern. Fields of the pattern with no
// entry in frs use the trivial (unconstrained) range, contributing exactly
// one [MinKey, MaxKey] factor and no extra fan-out.
//
// Only a prefix of the key pattern up to and including the first
// non-enumerated inequality field is used to fan out real bound tuples; an
// enumeration ($in, $all, or an array of equalities) does not count as an
// inequality and lets the walk continue to the next field. Once a true
// inequality has been seen, every remaining key is left unconstrained
// ([min, max], direction-adjusted) because a compound btree can only use a
// single range field as a scan boundary — fields after it are filtered by
// the residual matcher instead of the index.
func (c IndexBoundsCompiler) Compile(frs *FieldRangeSet) (BoundList, error) {
	cap_ := c.MaxScan
	if cap_ <= 0 {
		cap_ = maxFanout
	}
	scanDir := c.Direction
	if scanDir == 0 {
		scanDir = 1
	}

	if !frs.MatchPossible() {
		// A contradictory query intersects some field to the empty range; no
		// scan is needed at all.
		return BoundList{}, nil
	}

	pairs := []BoundTuple{{}}
	ineqSeen := false

	for _, kf := range c.Pattern {
		fr := frs.Range(kf.Name)
		keyDir := kf.Direction
		if keyDir == 0 {
			keyDir = 1
		}
		forward := (keyDir * scanDir) > 0

		if ineqSeen {
			trivial := trivialBoundPair(forward)
			for i := range pairs {
				pairs[i] = append(pairs[i], trivial)
			}
			continue
		}

		if fr.IsEquality() {
			bp := BoundPair{Lower: fr.Min(), Upper: fr.Min()}
			for i := range pairs {
				pairs[i] = append(pairs[i], bp)
			}
			continue
		}

		if !fr.InQuery() {
			ineqSeen = true
		}

		ordered := orderedForScan(fr.Intervals, forward)
		next := make([]BoundTuple, 0, len(pairs)*len(ordered))
		for _, p := range pairs {
			for _, bp := range ordered {
				if len(next) >= cap_ {
					code := CodeFanoutForward
					if !forward {
						code = CodeFanoutReverse
					}
					return nil, newQueryError(code, "combinatorial limit of $in partitioning of result set exceeded")
				}
				tup := make(BoundTuple, len(p)+1)
				copy(tup, p)
				tup[len(p)] = bp
				next = append(next, tup)
			}
		}
		pairs = next
	}

	return BoundList(pairs), nil
}

// orderedForScan returns one BoundPair per interval, in the order a cursor
// scanning in the given direction would encounter them: ascending with
// lower/upper as-is when forward, reversed with lower/upper swapped
// otherwise.
func orderedForScan(ivs []Interval, forward bool) []BoundPair {
	out := make([]BoundPair, len(ivs))
	if forward {
		for i, iv := range ivs {
			out[i] = BoundPair{Lower: iv.Lower, Upper: iv.Upper}
		}
		return out
	}
	n := len(ivs)
	for i, iv := range ivs {
		out[n-1-i] = BoundPair{Lower: iv.Upper, Upper: iv.Lower}
	}
	return out
}

// trivialBoundPair is the unconstrained [min, max] factor appended for every
// key-pattern field once a real inequality has fixed the scan's shape,
// swapped when the field scans backward.
func trivialBoundPair(forward bool) BoundPair {
	iv := trivialInterval()
	if forward {
		return BoundPair{Lower: iv.Lower, Upper: iv.Upper}
	}
	return BoundPair{Lower: iv.Upper, Upper: iv.Lower}
}

// KeyPatternFromBSON converts a raw {field: direction, ...} document (as
// returned by a live index's key specification) into a KeyPattern.
func KeyPatternFromBSON(doc bson.Raw) (KeyPattern, error) {
	els, err := doc.Elements()
	if err != nil {
		return nil, err
	}
	kp := make(KeyPattern, 0, len(els))
	for _, el := range els {
		v, err := el.ValueErr()
		if err != nil {
			return nil, err
		}
		dir := 1
		switch v.Type {
		case bson.TypeInt32:
			n, _ := v.Int32OK()
			if n < 0 {
				dir = -1
			}
		case bson.TypeInt64:
			n, _ := v.Int64OK()
			if n < 0 {
				dir = -1
			}
		case bson.TypeDouble:
			f, _ := v.DoubleOK()
			if f < 0 {
				dir = -1
			}
		default:
			// 2d/2dsphere/text/hashed key fields carry a string tag
			// instead of a direction; treated as ascending for bound
			// compilation purposes since they are never indexed by
			// ordered value (the compiler will just see the trivial
			// range for that field).
		}
		kp = append(kp, KeyField{Name: el.Key(), Direction: dir})
	}
	return kp, nil
}
