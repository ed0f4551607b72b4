// Package queryplan implements the query-to-index-bound translator: the part
// of a document database that turns a query clause into the per-field value
// intervals an ordered (B-tree) index scan needs.
//
// The algebra here — FieldRange, FieldRangeSet, FieldRangeOrSet and the
// IndexBoundsCompiler — is a direct port of early MongoDB's
// db/queryutil.cpp, rebuilt on top of go.mongodb.org/mongo-driver/v2/bson
// instead of BSONElement/BSONObj.
package queryplan
