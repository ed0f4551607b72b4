package queryplan

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// FieldRangeOrSet holds a base FieldRangeSet (every non-$or clause of the
// query) plus one FieldRangeSet per arm of a top-level $or clause, ported
// from queryutil.cpp::FieldRangeOrSet. Each arm is ANDed with the base and
// compiled independently; $or's arms are not generally combinable into a
// single per-field interval set, so the caller runs one index scan per arm.
type FieldRangeOrSet struct {
	Base    *FieldRangeSet
	OrFound bool
	arms    []*FieldRangeSet
}

// NewFieldRangeOrSetFromQuery builds Base from every non-$or clause of
// query, then appends one arm per element of its top-level $or array (if
// any; OrFound reports whether one was present).
func NewFieldRangeOrSetFromQuery(query bson.Raw, optimize bool) (*FieldRangeOrSet, error) {
	base, err := NewFieldRangeSet(query, optimize)
	if err != nil {
		return nil, err
	}
	els, err := query.Elements()
	if err != nil {
		return nil, fmt.Errorf("queryplan: decode query document: %w", err)
	}
	set := &FieldRangeOrSet{Base: base}
	for _, el := range els {
		if el.Key() != "$or" {
			continue
		}
		orVal, err := el.ValueErr()
		if err != nil {
			return nil, err
		}
		if err := set.addArms(NewValue(orVal), optimize); err != nil {
			return nil, err
		}
		set.OrFound = true
	}
	return set, nil
}

func (s *FieldRangeOrSet) addArms(orVal Value, optimize bool) error {
	if orVal.Type() != bson.TypeArray {
		return newQueryError(CodeOrEmpty, "$or requires nonempty array")
	}
	els, err := arrayValues(orVal)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return newQueryError(CodeOrEmpty, "$or requires nonempty array")
	}
	for i, v := range els {
		if v.Type() != bson.TypeEmbeddedDocument {
			return newQueryError(CodeOrArrayOfObjects, "$or array must contain objects")
		}
		doc, _ := v.raw.DocumentOK()
		frs, err := NewFieldRangeSet(bson.Raw(doc), optimize)
		if err != nil {
			return fmt.Errorf("$or element %d: %w", i, err)
		}
		if special, err := frs.GetSpecial(); err != nil {
			return err
		} else if special != "" {
			return newQueryError(CodeOrSpecial, "$or may not contain 'special' query")
		}
		s.arms = append(s.arms, frs)
	}
	return nil
}

// Arms returns the compiled FieldRangeSet for each $or element, in order.
func (s *FieldRangeOrSet) Arms() []*FieldRangeSet { return s.arms }

// Effective returns the FieldRangeSet arm i should be compiled against: its
// own ranges ANDed with every field of the base set, since the non-$or
// clauses of the query apply to every arm. Producing one independent scan
// per arm from the result is the caller's concern.
func (s *FieldRangeOrSet) Effective(i int) *FieldRangeSet {
	arm := s.arms[i]
	if s.Base == nil || len(s.Base.ranges) == 0 {
		return arm
	}
	merged := &FieldRangeSet{
		ranges: make(map[string]FieldRange, len(s.Base.ranges)+len(arm.ranges)),
		query:  arm.query,
	}
	for f, fr := range s.Base.ranges {
		merged.ranges[f] = fr
	}
	for f, fr := range arm.ranges {
		merged.intersect(f, fr)
	}
	return merged
}

// arrayValues decodes a Value known to hold a BSON array into its elements'
// values, in index order.
func arrayValues(v Value) ([]Value, error) {
	arr, ok := v.raw.ArrayOK()
	if !ok {
		return nil, fmt.Errorf("queryplan: value is not an array")
	}
	els, err := bson.Raw(arr).Elements()
	if err != nil {
		return nil, fmt.Errorf("queryplan: decode array elements: %w", err)
	}
	out := make([]Value, 0, len(els))
	for _, el := range els {
		ev, err := el.ValueErr()
		if err != nil {
			return nil, fmt.Errorf("queryplan: decode array element: %w", err)
		}
		out = append(out, NewValue(ev))
	}
	return out, nil
}
