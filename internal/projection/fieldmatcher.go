// Package projection implements the field-inclusion/exclusion projection
// engine: given a compiled include/exclude field tree, it rebuilds the
// subset of a document's fields (with $slice array trimming) a query
// projection should return.
package projection

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// QueryError mirrors the numeric-code user error shape the query planner
// uses, kept local to this package to avoid importing internal/queryplan
// purely for its error type.
type QueryError struct {
	Code    int
	Message string
}

func (e *QueryError) Error() string { return fmt.Sprintf("projection error %d: %s", e.Code, e.Message) }

const (
	codeMixedProjection    = 10053
	codeDoubleAdd          = 10371
	codeUnsupportedProjKey = 13097
	codeSliceArgType       = 13098
	codeSliceArraySize     = 13099
	codeSliceLimitPositive = 13100
)

// FieldMatcher is one node of the compiled projection tree, ported from
// queryutil.cpp::FieldMatcher. The root's include decides whether fields not
// explicitly mentioned are kept (exclusion projection) or dropped (inclusion
// projection); each child node represents one path segment.
type FieldMatcher struct {
	include   bool
	includeID bool
	special   bool // a $slice lives on this chain; the subtree can't be copied whole
	skip      int
	limit     int
	children  map[string]*FieldMatcher
	source    bson.Raw
}

// NewFieldMatcher compiles a projection document ({field: 1/0/{$slice: ...},
// ...}) into a FieldMatcher tree.
func NewFieldMatcher(spec bson.Raw) (*FieldMatcher, error) {
	fm := newNode()
	if err := fm.Add(spec); err != nil {
		return nil, err
	}
	return fm, nil
}

func newNode() *FieldMatcher {
	return &FieldMatcher{include: true, includeID: true, limit: -1, children: map[string]*FieldMatcher{}}
}

// Add installs the projection spec. It may only be called once per matcher.
func (fm *FieldMatcher) Add(spec bson.Raw) error {
	if fm.source != nil {
		return &QueryError{Code: codeDoubleAdd, Message: "can only add to FieldMatcher once"}
	}
	fm.source = spec

	els, err := spec.Elements()
	if err != nil {
		return fmt.Errorf("projection: decode projection document: %w", err)
	}

	// -1 until the first include/exclude field fixes the polarity.
	trueFalse := -1
	for _, el := range els {
		key := el.Key()
		val, err := el.ValueErr()
		if err != nil {
			return fmt.Errorf("projection: decode field %q: %w", key, err)
		}

		if val.Type == bson.TypeEmbeddedDocument {
			doc, _ := val.DocumentOK()
			inner, _ := bson.Raw(doc).Elements()
			if len(inner) == 0 || inner[0].Key() != "$slice" {
				name := "(empty)"
				if len(inner) > 0 {
					name = inner[0].Key()
				}
				return &QueryError{Code: codeUnsupportedProjKey, Message: "Unsupported projection option: " + name}
			}
			arg, err := inner[0].ValueErr()
			if err != nil {
				return err
			}
			if err := fm.addSlice(key, arg); err != nil {
				return err
			}
			continue
		}

		if key == "_id" && !truthy(val) {
			fm.includeID = false
			continue
		}

		fm.addPath(key, truthy(val))
		if trueFalse == -1 {
			trueFalse = boolToInt(truthy(val))
			fm.include = !truthy(val)
		} else if intToBool(trueFalse) != truthy(val) {
			return &QueryError{Code: codeMixedProjection, Message: "You cannot currently mix including and excluding fields."}
		}
	}
	return nil
}

func (fm *FieldMatcher) addSlice(field string, arg bson.RawValue) error {
	switch arg.Type {
	case bson.TypeInt32, bson.TypeInt64, bson.TypeDouble:
		n := int(asInt(arg))
		if n < 0 {
			fm.addSlicePath(field, n, -n) // limit is now positive
		} else {
			fm.addSlicePath(field, 0, n)
		}
		return nil
	case bson.TypeArray:
		a, _ := arg.ArrayOK()
		els, _ := bson.Raw(a).Elements()
		if len(els) != 2 {
			return &QueryError{Code: codeSliceArraySize, Message: "$slice array wrong size"}
		}
		sv, _ := els[0].ValueErr()
		lv, _ := els[1].ValueErr()
		skip, limit := int(asInt(sv)), int(asInt(lv))
		if limit <= 0 {
			return &QueryError{Code: codeSliceLimitPositive, Message: "$slice limit must be positive"}
		}
		fm.addSlicePath(field, skip, limit)
		return nil
	default:
		return &QueryError{Code: codeSliceArgType, Message: "$slice only supports numbers and [skip, limit] arrays"}
	}
}

// addPath splits the dotted field at the first '.', inverting the parent's
// polarity at each level: a subprojection overrides the enclosing
// include/exclude for everything it names.
func (fm *FieldMatcher) addPath(field string, include bool) {
	if field == "" {
		fm.include = include
		return
	}
	fm.include = !include
	head, rest, _ := strings.Cut(field, ".")
	fm.child(head).addPath(rest, include)
}

// addSlicePath marks every node on the chain special and installs the slice
// window at the leaf.
func (fm *FieldMatcher) addSlicePath(field string, skip, limit int) {
	fm.special = true // can't include or exclude the whole object
	if field == "" {
		fm.skip = skip
		fm.limit = limit
		return
	}
	head, rest, _ := strings.Cut(field, ".")
	fm.child(head).addSlicePath(rest, skip, limit)
}

func (fm *FieldMatcher) child(name string) *FieldMatcher {
	c, ok := fm.children[name]
	if !ok {
		c = newNode()
		fm.children[name] = c
	}
	return c
}

// Source returns the raw projection spec this matcher was compiled from.
func (fm *FieldMatcher) Source() bson.Raw { return fm.source }

// IncludeID reports whether _id survives the projection.
func (fm *FieldMatcher) IncludeID() bool { return fm.includeID }

// Project filters a whole document through the matcher, the common entry
// point wrapping per-element Append calls.
func (fm *FieldMatcher) Project(src bson.Raw) (bson.D, error) {
	els, err := src.Elements()
	if err != nil {
		return nil, fmt.Errorf("projection: decode source document: %w", err)
	}
	out := bson.D{}
	for _, el := range els {
		if el.Key() == "_id" {
			if !fm.includeID {
				continue
			}
			if _, named := fm.children["_id"]; !named {
				// _id rides along regardless of the projection's polarity
				// unless the spec names it.
				val, err := el.ValueErr()
				if err != nil {
					return nil, err
				}
				out = append(out, bson.E{Key: "_id", Value: val})
				continue
			}
		}
		if err := fm.Append(&out, el); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Append projects one element of the source document into dst, ported from
// queryutil.cpp::FieldMatcher::append. Fields with no matching child are
// copied or dropped per the tree's polarity; object and array values with a
// nested spec are rebuilt recursively.
func (fm *FieldMatcher) Append(dst *bson.D, el bson.RawElement) error {
	key := el.Key()
	child, ok := fm.children[key]
	if !ok {
		if fm.include {
			val, err := el.ValueErr()
			if err != nil {
				return fmt.Errorf("projection: decode field %q: %w", key, err)
			}
			*dst = append(*dst, bson.E{Key: key, Value: val})
		}
		return nil
	}

	val, err := el.ValueErr()
	if err != nil {
		return fmt.Errorf("projection: decode field %q: %w", key, err)
	}
	switch {
	case (len(child.children) == 0 && !child.special) ||
		(val.Type != bson.TypeEmbeddedDocument && val.Type != bson.TypeArray):
		if child.include {
			*dst = append(*dst, bson.E{Key: key, Value: val})
		}
	case val.Type == bson.TypeEmbeddedDocument:
		doc, _ := val.DocumentOK()
		els, err := bson.Raw(doc).Elements()
		if err != nil {
			return fmt.Errorf("projection: decode field %q: %w", key, err)
		}
		sub := bson.D{}
		for _, e := range els {
			if err := child.Append(&sub, e); err != nil {
				return err
			}
		}
		*dst = append(*dst, bson.E{Key: key, Value: sub})
	default: // array
		sub, err := child.appendArray(val, false)
		if err != nil {
			return err
		}
		*dst = append(*dst, bson.E{Key: key, Value: sub})
	}
	return nil
}

// appendArray rebuilds an array value: the slice window applies at the top
// level only, nested arrays recurse without it, nested objects are projected
// through the tree, and bare scalars survive only under include polarity.
// Surviving elements are renumbered densely by construction.
func (fm *FieldMatcher) appendArray(val bson.RawValue, nested bool) (bson.A, error) {
	arr, _ := val.ArrayOK()
	els, err := bson.Raw(arr).Elements()
	if err != nil {
		return nil, fmt.Errorf("projection: decode array elements: %w", err)
	}

	skip, limit := fm.skip, fm.limit
	if nested {
		skip, limit = 0, -1
	}
	if skip < 0 {
		skip = max(0, skip+len(els))
	}

	out := bson.A{}
	for _, el := range els {
		if skip > 0 {
			skip--
			continue
		}
		if limit != -1 {
			if limit == 0 {
				break
			}
			limit--
		}

		ev, err := el.ValueErr()
		if err != nil {
			return nil, err
		}
		switch ev.Type {
		case bson.TypeArray:
			inner, err := fm.appendArray(ev, true)
			if err != nil {
				return nil, err
			}
			out = append(out, inner)
		case bson.TypeEmbeddedDocument:
			doc, _ := ev.DocumentOK()
			inner, _ := bson.Raw(doc).Elements()
			sub := bson.D{}
			for _, e := range inner {
				if err := fm.Append(&sub, e); err != nil {
					return nil, err
				}
			}
			out = append(out, sub)
		default:
			if fm.include {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

func truthy(v bson.RawValue) bool {
	switch v.Type {
	case bson.TypeBoolean:
		b, _ := v.BooleanOK()
		return b
	case bson.TypeInt32, bson.TypeInt64:
		return asInt(v) != 0
	case bson.TypeDouble:
		f, _ := v.DoubleOK()
		return f != 0
	default:
		return false
	}
}

func asInt(v bson.RawValue) int64 {
	switch v.Type {
	case bson.TypeInt32:
		n, _ := v.Int32OK()
		return int64(n)
	case bson.TypeInt64:
		n, _ := v.Int64OK()
		return n
	case bson.TypeDouble:
		f, _ := v.DoubleOK()
		return int64(f)
	default:
		return 0
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(n int) bool { return n != 0 }
