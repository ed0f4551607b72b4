// Package reporter formats the output of the "plan" and "explain" CLI
// commands: a compiled BoundList, a QueryPattern fingerprint, and a scored
// list of candidate indexes, rendered as either human-readable text or JSON.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ppiankov/mongospectre/internal/mongo"
	"github.com/ppiankov/mongospectre/internal/queryplan"
)

// Format specifies the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Metadata holds context about how and when the report was generated.
type Metadata struct {
	Version    string `json:"version,omitempty"`
	Command    string `json:"command"`
	Timestamp  string `json:"timestamp"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
}

func newMetadata(command string) Metadata {
	return Metadata{Command: command, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// BoundPairView is a single field's lower/upper bound in a compiled
// BoundTuple, rendered as Extended JSON for display.
type BoundPairView struct {
	Field          string `json:"field"`
	Lower          string `json:"lower"`
	LowerInclusive bool   `json:"lowerInclusive"`
	Upper          string `json:"upper"`
	UpperInclusive bool   `json:"upperInclusive"`
}

// BoundTupleView is one compound bound tuple, one BoundPairView per
// key-pattern field.
type BoundTupleView []BoundPairView

// RenderBoundList converts a compiled BoundList into its display form,
// labeling each BoundPair with the key-pattern field it belongs to.
func RenderBoundList(pattern queryplan.KeyPattern, bounds queryplan.BoundList) ([]BoundTupleView, error) {
	out := make([]BoundTupleView, 0, len(bounds))
	for _, tup := range bounds {
		view := make(BoundTupleView, 0, len(tup))
		for i, bp := range tup {
			name := ""
			if i < len(pattern) {
				name = pattern[i].Name
			}
			lower, err := bp.Lower.Value.ExtJSON()
			if err != nil {
				return nil, err
			}
			upper, err := bp.Upper.Value.ExtJSON()
			if err != nil {
				return nil, err
			}
			view = append(view, BoundPairView{
				Field:          name,
				Lower:          lower,
				LowerInclusive: bp.Lower.Inclusive,
				Upper:          upper,
				UpperInclusive: bp.Upper.Inclusive,
			})
		}
		out = append(out, view)
	}
	return out, nil
}

// renderPattern converts a QueryPattern's FieldKind map into a display
// friendly field->kind-name mapping.
func renderPattern(p queryplan.QueryPattern) map[string]string {
	out := make(map[string]string, len(p.FieldKind))
	for field, kind := range p.FieldKind {
		out[field] = kind.String()
	}
	return out
}

func sortedPatternFields(p map[string]string) []string {
	fields := make([]string, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// PlanScan is one index scan the "plan" command would need to run: a single
// compiled BoundList, one per $or arm (or the only scan when the query has
// no top-level $or).
type PlanScan struct {
	Arm    int              `json:"arm"`
	Bounds []BoundTupleView `json:"bounds"`
}

// PlanReport is the structured output of "mongospectre plan": a query
// document compiled against a single index key pattern.
type PlanReport struct {
	Metadata        Metadata             `json:"metadata"`
	QueryJSON       string               `json:"query"`
	KeyPattern      queryplan.KeyPattern `json:"keyPattern"`
	Direction       int                  `json:"direction"`
	SimplifiedQuery string               `json:"simplifiedQuery,omitempty"`
	Pattern         map[string]string    `json:"pattern,omitempty"`
	Scans           []PlanScan           `json:"scans"`
}

// NewPlanReport assembles a PlanReport from a compiled query. qp may be nil
// when the query top-level has a $or (no single pattern fingerprint applies
// across arms).
func NewPlanReport(queryJSON string, pattern queryplan.KeyPattern, direction int, simplified string, qp *queryplan.QueryPattern, scans []PlanScan) PlanReport {
	r := PlanReport{
		Metadata:        newMetadata("plan"),
		QueryJSON:       queryJSON,
		KeyPattern:      pattern,
		Direction:       direction,
		SimplifiedQuery: simplified,
		Scans:           scans,
	}
	if qp != nil {
		r.Pattern = renderPattern(*qp)
	}
	return r
}

// WritePlan outputs a PlanReport in the given format.
func WritePlan(w io.Writer, r *PlanReport, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}
	return writePlanText(w, r)
}

func writePlanText(w io.Writer, r *PlanReport) error {
	if _, err := fmt.Fprintf(w, "mongospectre plan | %s\n\n", r.Metadata.Timestamp); err != nil {
		return err
	}
	dir := "forward"
	if r.Direction < 0 {
		dir = "reverse"
	}
	if _, err := fmt.Fprintf(w, "query:      %s\n", r.QueryJSON); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "keyPattern: %s\n", formatKeyPattern(r.KeyPattern)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "direction:  %s\n\n", dir); err != nil {
		return err
	}
	if r.SimplifiedQuery != "" {
		if _, err := fmt.Fprintf(w, "simplified: %s\n", r.SimplifiedQuery); err != nil {
			return err
		}
	}
	if len(r.Pattern) > 0 {
		if _, err := fmt.Fprint(w, "pattern:    "); err != nil {
			return err
		}
		for i, f := range sortedPatternFields(r.Pattern) {
			if i > 0 {
				if _, err := fmt.Fprint(w, " "); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%s=%s", f, r.Pattern[f]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	total := 0
	for _, scan := range r.Scans {
		total += len(scan.Bounds)
	}
	if _, err := fmt.Fprintf(w, "bounds (%d):\n", total); err != nil {
		return err
	}
	n := 0
	for _, scan := range r.Scans {
		for _, tup := range scan.Bounds {
			n++
			label := ""
			if len(r.Scans) > 1 {
				label = fmt.Sprintf(" [arm %d]", scan.Arm)
			}
			if _, err := fmt.Fprintf(w, "  %d.%s %s\n", n, label, formatBoundTuple(tup)); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatKeyPattern(kp queryplan.KeyPattern) string {
	s := "{"
	for i, kf := range kp {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %d", kf.Name, kf.Direction)
	}
	return s + "}"
}

func formatBoundTuple(tup BoundTupleView) string {
	low, high := "[", "["
	for i, bp := range tup {
		if i > 0 {
			low += ", "
			high += ", "
		}
		low += fmt.Sprintf("%s:%s", bp.Field, bp.Lower)
		high += fmt.Sprintf("%s:%s", bp.Field, bp.Upper)
	}
	highClose := ")"
	if len(tup) > 0 && tup[len(tup)-1].UpperInclusive {
		highClose = "]"
	}
	return low + "]" + " -> " + high + highClose
}

// IndexRecommendationView is one candidate index, scored for display.
type IndexRecommendationView struct {
	Name       string               `json:"name"`
	Key        queryplan.KeyPattern `json:"key"`
	Unique     bool                 `json:"unique,omitempty"`
	Sparse     bool                 `json:"sparse,omitempty"`
	ScanPoints int                  `json:"scanPoints,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// ExplainReport is the structured output of "mongospectre explain": a
// query's candidate indexes on a live collection, ranked tightest-first.
type ExplainReport struct {
	Metadata        Metadata                   `json:"metadata"`
	QueryJSON       string                     `json:"query"`
	Recommendations []IndexRecommendationView `json:"recommendations"`
}

// NewExplainReport builds an ExplainReport from a scored recommendation list
// (already sorted tightest-first by mongo.RecommendIndex).
func NewExplainReport(db, coll, queryJSON string, recs []mongo.IndexRecommendation) ExplainReport {
	meta := newMetadata("explain")
	meta.Database = db
	meta.Collection = coll

	views := make([]IndexRecommendationView, 0, len(recs))
	for _, rec := range recs {
		v := IndexRecommendationView{
			Name:       rec.Index.Name,
			Key:        rec.Index.KeyPattern(),
			Unique:     rec.Index.Unique,
			Sparse:     rec.Index.Sparse,
			ScanPoints: rec.ScanPoints,
		}
		if rec.Err != nil {
			v.Error = rec.Err.Error()
		}
		views = append(views, v)
	}
	return ExplainReport{Metadata: meta, QueryJSON: queryJSON, Recommendations: views}
}

// WriteExplain outputs an ExplainReport in the given format.
func WriteExplain(w io.Writer, r *ExplainReport, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}
	return writeExplainText(w, r)
}

func writeExplainText(w io.Writer, r *ExplainReport) error {
	header := fmt.Sprintf("mongospectre explain | %s.%s | %s", r.Metadata.Database, r.Metadata.Collection, r.Metadata.Timestamp)
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "query: %s\n\n", r.QueryJSON); err != nil {
		return err
	}
	if len(r.Recommendations) == 0 {
		_, err := fmt.Fprintln(w, "No candidate indexes.")
		return err
	}
	for i, rec := range r.Recommendations {
		marker := " "
		if i == 0 && rec.Error == "" {
			marker = "*"
		}
		if rec.Error != "" {
			if _, err := fmt.Fprintf(w, "%s %-20s %s (rejected: %s)\n", marker, rec.Name, formatKeyPattern(rec.Key), rec.Error); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s %-20s %s scanPoints=%d\n", marker, rec.Name, formatKeyPattern(rec.Key), rec.ScanPoints); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
