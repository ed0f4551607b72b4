package queryplan

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// FieldRangeSet is the per-field aggregation of every clause in a single
// query document (top-level $or/$nor/$where excluded), ported from
// queryutil.cpp::FieldRangeSet.
type FieldRangeSet struct {
	ranges map[string]FieldRange
	query  bson.Raw
}

// NewFieldRangeSet walks a query document and builds the per-field
// FieldRange for every field it constrains. optimize tightens half-open
// intervals to single-type ranges where the bound's type allows it.
func NewFieldRangeSet(query bson.Raw, optimize bool) (*FieldRangeSet, error) {
	frs := &FieldRangeSet{ranges: map[string]FieldRange{}, query: query}
	els, err := query.Elements()
	if err != nil {
		return nil, fmt.Errorf("queryplan: decode query document: %w", err)
	}
	for _, el := range els {
		key := el.Key()
		if key == "$or" || key == "$nor" || key == "$where" {
			continue // handled by FieldRangeOrSet / the matcher, not per-field.
		}
		val, err := el.ValueErr()
		if err != nil {
			return nil, fmt.Errorf("queryplan: decode field %q: %w", key, err)
		}
		if err := frs.processQueryField(key, NewValue(val), optimize); err != nil {
			return nil, err
		}
	}
	return frs, nil
}

// gtLtOp classifies a clause value the way the element-level operator
// extractor does: an embedded document whose first key is an operator takes
// that operator's tag; everything else is a plain equality.
func gtLtOp(val Value) opTag {
	if val.Type() != bson.TypeEmbeddedDocument {
		return opEqual
	}
	doc, _ := val.raw.DocumentOK()
	els, _ := bson.Raw(doc).Elements()
	if len(els) == 0 || !isOperatorKey(els[0].Key()) {
		return opEqual
	}
	return classifyOp(els[0].Key())
}

// processQueryField dispatches one top-level clause: a bare equality value,
// an object-form regex, or an object of operators iterated one by one.
func (frs *FieldRangeSet) processQueryField(field string, val Value, optimize bool) error {
	equality := gtLtOp(val) == opEqual
	if equality && val.Type() == bson.TypeEmbeddedDocument {
		doc, _ := val.raw.DocumentOK()
		els, _ := bson.Raw(doc).Elements()
		equality = len(els) == 0 || els[0].Key() != "$not"
	}

	if equality || (val.Type() == bson.TypeEmbeddedDocument && hasRegexKey(val)) {
		fr, err := newFieldRange(field, val, false, optimize)
		if err != nil {
			return err
		}
		frs.intersect(field, fr)
	}
	if equality {
		return nil
	}

	doc, _ := val.raw.DocumentOK()
	els, err := bson.Raw(doc).Elements()
	if err != nil {
		return fmt.Errorf("queryplan: decode clause for field %q: %w", field, err)
	}
	for _, el := range els {
		opKey := el.Key()
		opVal, err := el.ValueErr()
		if err != nil {
			return fmt.Errorf("queryplan: decode operator %q for field %q: %w", opKey, field, err)
		}
		if opKey == "$not" {
			if err := frs.processNot(field, NewValue(opVal), optimize); err != nil {
				return err
			}
			continue
		}
		if err := frs.processOpElement(field, opKey, NewValue(opVal), false, optimize); err != nil {
			return err
		}
	}
	return nil
}

// processNot dispatches $not's operand: an operator object whose inner
// operators run negated, or a regex (negated, contributing no bound). A
// bare value or a nested equality operator is invalid.
func (frs *FieldRangeSet) processNot(field string, inner Value, optimize bool) error {
	switch inner.Type() {
	case bson.TypeEmbeddedDocument:
		doc, _ := inner.raw.DocumentOK()
		els, err := bson.Raw(doc).Elements()
		if err != nil {
			return fmt.Errorf("queryplan: decode $not clause for field %q: %w", field, err)
		}
		for _, el := range els {
			opVal, err := el.ValueErr()
			if err != nil {
				return err
			}
			v := NewValue(opVal)
			if op := classifyOp(el.Key()); op == opEqual || op == opUnknown {
				return newQueryError(CodeNotOnEquality, "invalid use of $not")
			}
			if err := frs.processOpElement(field, el.Key(), v, true, optimize); err != nil {
				return err
			}
		}
		return nil
	case bson.TypeRegex:
		return frs.processOpElement(field, field, inner, true, optimize)
	default:
		return newQueryError(CodeNotBadShape, "invalid use of $not")
	}
}

// processOpElement handles one operator of a field's clause object. $all
// whose first element is an $elemMatch unwraps to it; $elemMatch decomposes
// its inner predicates into dotted sub-field ranges; everything else
// intersects a single per-operator FieldRange into the field's entry.
func (frs *FieldRangeSet) processOpElement(field, opKey string, opVal Value, isNot, optimize bool) error {
	key, val := opKey, opVal
	if classifyOp(key) == opAll {
		if val.Type() != bson.TypeArray {
			return newQueryError(CodeAllRequiresArray, "$all requires array")
		}
		arr, _ := val.raw.ArrayOK()
		els, _ := bson.Raw(arr).Elements()
		if len(els) > 0 {
			fv, _ := els[0].ValueErr()
			first := NewValue(fv)
			if first.Type() == bson.TypeEmbeddedDocument && firstKeyIsElemMatch(first) {
				doc, _ := first.raw.DocumentOK()
				inner, _ := bson.Raw(doc).Elements()
				iv, _ := inner[0].ValueErr()
				key, val = inner[0].Key(), NewValue(iv)
			}
		}
	}

	if classifyOp(key) == opElemMatch {
		return frs.processElemMatch(field, val, isNot, optimize)
	}

	fr, err := newFieldRange(key, val, isNot, optimize)
	if err != nil {
		return err
	}
	frs.intersect(field, fr)
	return nil
}

// processElemMatch composes each inner predicate's field name as a dotted
// path under the array field, so {a: {$elemMatch: {b: {$gt: 1}}}} bounds
// "a.b" like a direct dotted clause would.
func (frs *FieldRangeSet) processElemMatch(field string, val Value, isNot, optimize bool) error {
	if val.Type() != bson.TypeEmbeddedDocument {
		return newQueryError(CodeNotBadShape, "$elemMatch requires an object for field %q", field)
	}
	doc, _ := val.raw.DocumentOK()
	els, err := bson.Raw(doc).Elements()
	if err != nil {
		return fmt.Errorf("queryplan: decode $elemMatch for field %q: %w", field, err)
	}
	for _, el := range els {
		hv, err := el.ValueErr()
		if err != nil {
			return err
		}
		h := NewValue(hv)
		fullname := field + "." + el.Key()
		if gtLtOp(h) == opEqual {
			fr, err := newFieldRange(el.Key(), h, isNot, optimize)
			if err != nil {
				return err
			}
			frs.intersect(fullname, fr)
			continue
		}
		hdoc, _ := h.raw.DocumentOK()
		inner, _ := bson.Raw(hdoc).Elements()
		for _, op := range inner {
			ov, err := op.ValueErr()
			if err != nil {
				return err
			}
			fr, err := newFieldRange(op.Key(), NewValue(ov), isNot, optimize)
			if err != nil {
				return err
			}
			frs.intersect(fullname, fr)
		}
	}
	return nil
}

// intersect ANDs fr into the field's accumulated range. An empty result is
// kept as-is: it means no document can match, which MatchPossible reports.
func (frs *FieldRangeSet) intersect(field string, fr FieldRange) {
	if existing, ok := frs.ranges[field]; ok {
		existing.andWith(fr)
		frs.ranges[field] = existing
		return
	}
	frs.ranges[field] = fr
}

// Range returns the compiled FieldRange for field, or the unconstrained
// trivial range if nothing in the query touches it.
func (frs *FieldRangeSet) Range(field string) FieldRange {
	if fr, ok := frs.ranges[field]; ok {
		return fr
	}
	return trivialRange()
}

// Fields returns every field this set holds a range entry for, sorted.
func (frs *FieldRangeSet) Fields() []string {
	out := make([]string, 0, len(frs.ranges))
	for f := range frs.ranges {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// GetSpecial returns the single non-orderable operator tag this set carries
// ("" if none). Two distinct special fields cannot drive one index scan.
func (frs *FieldRangeSet) GetSpecial() (string, error) {
	s := ""
	for _, f := range frs.Fields() {
		tag := frs.ranges[f].Special()
		if tag == "" {
			continue
		}
		if s != "" {
			return "", newQueryError(CodeTwoSpecialFields, "can't have 2 special fields")
		}
		s = tag
	}
	return s, nil
}

// MatchPossible reports whether every field's range is still satisfiable:
// contradictory clauses (e.g. {a: {$gt: 5, $lt: 3}}) intersect to an empty
// range, and no document can match such a query.
func (frs *FieldRangeSet) MatchPossible() bool {
	for _, fr := range frs.ranges {
		if fr.Empty() {
			return false
		}
	}
	return true
}

// SimplifiedQuery rebuilds a canonical query document from the compiled
// ranges: per field, the equality value, an expanded {$in: [...], $gte/$lte}
// form when expandIn is set, or a plain $gt(e)/$lt(e) pair. Trivial fields
// are omitted. fields narrows the output to the named fields; nil means all.
func (frs *FieldRangeSet) SimplifiedQuery(fields []string, expandIn bool) bson.D {
	if fields == nil {
		fields = frs.Fields()
	}
	out := bson.D{}
	for _, f := range fields {
		fr := frs.Range(f)
		invariant(!fr.Empty(), "simplified query of an empty range")
		if fr.IsEquality() {
			out = append(out, bson.E{Key: f, Value: fr.Min().Value.Raw()})
			continue
		}
		if !fr.Nontrivial() {
			continue
		}
		if expandIn {
			out = append(out, bson.E{Key: f, Value: fr.simplifiedComplex()})
			continue
		}
		d := bson.D{}
		if fr.Min().Value.Type() != bson.TypeMinKey {
			key := "$gte"
			if !fr.Min().Inclusive {
				key = "$gt"
			}
			d = append(d, bson.E{Key: key, Value: fr.Min().Value.Raw()})
		}
		if fr.Max().Value.Type() != bson.TypeMaxKey {
			key := "$lte"
			if !fr.Max().Inclusive {
				key = "$lt"
			}
			d = append(d, bson.E{Key: key, Value: fr.Max().Value.Raw()})
		}
		out = append(out, bson.E{Key: f, Value: d})
	}
	return out
}

// simplifiedComplex renders a multi-interval range in expanded form: the
// equality points (recovering $in members and regex prefixes) as a $in
// array, plus the single inequality interval's $gte/$lte pair. Regex-derived
// prefix bounds already covered by the $in list are suppressed.
func (fr FieldRange) simplifiedComplex() bson.D {
	in := bson.A{}
	regexLow := map[string]bool{}
	regexHigh := map[string]bool{}
	for _, iv := range fr.Intervals {
		if !iv.isEquality() {
			continue
		}
		in = append(in, iv.Upper.Value.Raw())
		if iv.Upper.Value.Type() == bson.TypeRegex {
			pattern, options, _ := iv.Upper.Value.raw.RegexOK()
			if prefix, _ := simpleRegex(pattern, options); prefix != "" {
				regexLow[prefix] = true
				end := simpleRegexEnd(prefix)
				regexHigh[end] = true
				// The btree cursor has no exclusive bounds, so the end of the
				// covering prefix range must itself be matchable.
				in = append(in, end)
			}
		}
	}

	d := bson.D{}
	if len(in) > 0 {
		d = append(d, bson.E{Key: "$in", Value: in})
	}
	for _, iv := range fr.Intervals {
		if iv.isEquality() {
			continue
		}
		lo, _ := iv.Lower.Value.raw.StringValueOK()
		if !iv.Lower.Inclusive || iv.Lower.Value.Type() != bson.TypeString || !regexLow[lo] {
			d = append(d, bson.E{Key: "$gte", Value: iv.Lower.Value.Raw()})
		}
		hi, _ := iv.Upper.Value.raw.StringValueOK()
		if iv.Upper.Inclusive || iv.Upper.Value.Type() != bson.TypeString || !regexHigh[hi] {
			d = append(d, bson.E{Key: "$lte", Value: iv.Upper.Value.Raw()})
		}
	}
	return d
}
