package queryplan

// opTag classifies a query operator key ("$gt", "$in", a bare field name,
// ...) into the small enum the FieldRange constructor switches on. Kept as
// an explicit enum rather than comparing operator strings at each use site,
// mirroring queryutil.cpp's BSONObj::GtLtOp.
type opTag int

const (
	opEqual opTag = iota
	opLT
	opLTE
	opGT
	opGTE
	opNE
	opIn
	opAll
	opMod
	opType
	opRegex
	opOptions
	opElemMatch
	opSize
	opExists
	opNot
	opNin
	opNear
	opWithin
	opMaxDistance
	opUnknown
)

// classifyOp maps an element's own key to its opTag. key is the element's
// field name as it appears in the query document: either a real field name
// (opEqual, unless the value itself is a regex/object-of-operators handled
// by the caller) or an operator key such as "$gt" found inside an
// operator-object clause.
func classifyOp(key string) opTag {
	switch key {
	case "$eq":
		return opEqual
	case "$lt":
		return opLT
	case "$lte":
		return opLTE
	case "$gt":
		return opGT
	case "$gte":
		return opGTE
	case "$ne":
		return opNE
	case "$in":
		return opIn
	case "$nin":
		return opNin
	case "$all":
		return opAll
	case "$mod":
		return opMod
	case "$type":
		return opType
	case "$regex":
		return opRegex
	case "$options":
		return opOptions
	case "$elemMatch":
		return opElemMatch
	case "$size":
		return opSize
	case "$exists":
		return opExists
	case "$not":
		return opNot
	case "$near", "$nearSphere":
		return opNear
	case "$within", "$geoWithin":
		return opWithin
	case "$maxDistance":
		return opMaxDistance
	default:
		if len(key) > 0 && key[0] == '$' {
			return opUnknown
		}
		return opEqual
	}
}

// isOperatorKey reports whether key spells a query operator. A clause object
// whose first key is an operator is iterated operator by operator; one whose
// first key is a plain field name is a literal equality match against an
// embedded document.
func isOperatorKey(key string) bool {
	return len(key) > 0 && key[0] == '$'
}
