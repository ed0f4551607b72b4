package cli

import (
	"fmt"

	"github.com/ppiankov/mongospectre/internal/queryplan"
	"github.com/ppiankov/mongospectre/internal/reporter"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newPlanCmd() *cobra.Command {
	var queryArg, keyPatternArg, format string
	var direction int
	var expandIn bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compile a query document into index bounds for a key pattern",
		Long: "Reads a query document (Extended JSON, via --query or stdin) and an index\n" +
			"key pattern, and prints the compound (low, high) bounds a scan of that\n" +
			"index would need, the simplified query, and the plan-cache pattern\n" +
			"fingerprint. A top-level $or produces one set of bounds per arm.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if keyPatternArg == "" {
				return fmt.Errorf("--key-pattern is required")
			}

			queryText, err := readQueryText(cmd, queryArg)
			if err != nil {
				return err
			}
			queryDoc, err := decodeExtJSON(queryText)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			queryJSON, err := canonicalJSON(queryDoc)
			if err != nil {
				return err
			}

			kpDoc, err := decodeExtJSON(keyPatternArg)
			if err != nil {
				return fmt.Errorf("key-pattern: %w", err)
			}
			kpRaw, err := bson.Marshal(kpDoc)
			if err != nil {
				return fmt.Errorf("encode key-pattern: %w", err)
			}
			keyPattern, err := queryplan.KeyPatternFromBSON(kpRaw)
			if err != nil {
				return fmt.Errorf("key-pattern: %w", err)
			}

			queryRaw, err := bson.Marshal(queryDoc)
			if err != nil {
				return fmt.Errorf("encode query: %w", err)
			}

			compiler := queryplan.IndexBoundsCompiler{
				Pattern:   keyPattern,
				Direction: direction,
				MaxScan:   cfg.Planner.MaxFanout,
			}

			var (
				simplified string
				pattern    *queryplan.QueryPattern
				scans      []reporter.PlanScan
			)

			orSet, err := queryplan.NewFieldRangeOrSetFromQuery(queryRaw, cfg.Planner.Optimize)
			if err != nil {
				return err
			}
			if orSet.OrFound {
				for i := range orSet.Arms() {
					bounds, err := compiler.Compile(orSet.Effective(i))
					if err != nil {
						return fmt.Errorf("$or arm %d: %w", i, err)
					}
					views, err := reporter.RenderBoundList(keyPattern, bounds)
					if err != nil {
						return err
					}
					scans = append(scans, reporter.PlanScan{Arm: i, Bounds: views})
				}
			} else {
				frs := orSet.Base
				bounds, err := compiler.Compile(frs)
				if err != nil {
					return err
				}
				views, err := reporter.RenderBoundList(keyPattern, bounds)
				if err != nil {
					return err
				}
				scans = []reporter.PlanScan{{Arm: 0, Bounds: views}}

				if frs.MatchPossible() {
					simplifiedDoc := frs.SimplifiedQuery(nil, expandIn)
					simplified, err = canonicalJSON(simplifiedDoc)
					if err != nil {
						return err
					}
					qp := frs.Pattern()
					pattern = &qp
				}
			}

			report := reporter.NewPlanReport(queryJSON, keyPattern, direction, simplified, pattern, scans)
			return reporter.WritePlan(cmd.OutOrStdout(), &report, reporter.Format(format))
		},
	}

	cmd.Flags().StringVar(&queryArg, "query", "", "query document as Extended JSON (reads stdin if omitted)")
	cmd.Flags().StringVar(&keyPatternArg, "key-pattern", "", `index key pattern as Extended JSON, e.g. '{"a":1,"b":-1}'`)
	cmd.Flags().IntVar(&direction, "direction", 1, "scan direction: 1 (forward) or -1 (reverse)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&expandIn, "expand-in", false, "render the simplified query with explicit $in member lists")

	return cmd
}
