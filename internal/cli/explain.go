package cli

import (
	"context"
	"fmt"

	"github.com/ppiankov/mongospectre/internal/mongo"
	"github.com/ppiankov/mongospectre/internal/queryplan"
	"github.com/ppiankov/mongospectre/internal/reporter"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newExplainCmd() *cobra.Command {
	var queryArg, dbName, collName, format string

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Recommend the tightest-fitting index on a live collection for a query",
		Long: "Connects to a live collection, lists its indexes, compiles the query\n" +
			"against each of their key patterns, and ranks them by how few scan\n" +
			"points the compiled bounds would need — the fewer, the tighter the\n" +
			"index fits the query.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if dbName == "" {
				dbName = cfg.Database
			}
			if dbName == "" {
				return fmt.Errorf("--database is required")
			}
			if collName == "" {
				return fmt.Errorf("--collection is required")
			}
			if uri == "" {
				return fmt.Errorf("--uri or MONGODB_URI is required")
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
			queryRaw, err := bson.Marshal(queryDoc)
			if err != nil {
				return fmt.Errorf("encode query: %w", err)
			}
			frs, err := queryplan.NewFieldRangeSet(queryRaw, cfg.Planner.Optimize)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			inspector, err := mongo.NewInspector(ctx, mongo.Config{URI: uri, Database: dbName})
			if err != nil {
				return err
			}
			defer func() { _ = inspector.Close(ctx) }()

			indexes, err := inspector.GetIndexes(ctx, dbName, collName)
			if err != nil {
				return err
			}

			recs := mongo.RecommendIndex(frs, indexes)
			report := reporter.NewExplainReport(dbName, collName, queryJSON, recs)
			return reporter.WriteExplain(cmd.OutOrStdout(), &report, reporter.Format(format))
		},
	}

	cmd.Flags().StringVar(&queryArg, "query", "", "query document as Extended JSON (reads stdin if omitted)")
	cmd.Flags().StringVar(&dbName, "database", "", "database name (required)")
	cmd.Flags().StringVar(&collName, "collection", "", "collection name (required)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")

	return cmd
}
