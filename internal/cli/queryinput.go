package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// readQueryText returns queryArg verbatim if non-empty, otherwise reads the
// query document from the command's stdin (so "plan"/"explain" can be piped
// into, the way a shell pipeline or a saved query file would feed them).
func readQueryText(cmd *cobra.Command, queryArg string) (string, error) {
	if queryArg != "" {
		return queryArg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read query from stdin: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("no query provided: pass --query or pipe a JSON document on stdin")
	}
	return string(data), nil
}

// decodeExtJSON parses a MongoDB Extended JSON document into a bson.D,
// preserving field order (the order the query planner and index bounds
// compiler both depend on).
func decodeExtJSON(text string) (bson.D, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON([]byte(text), false, &d); err != nil {
		return nil, fmt.Errorf("parse extended JSON: %w", err)
	}
	return d, nil
}

// canonicalJSON re-renders an Extended JSON document into its canonical
// (no extra whitespace) relaxed form, for stable display in reports.
func canonicalJSON(d bson.D) (string, error) {
	data, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return "", fmt.Errorf("render extended JSON: %w", err)
	}
	return string(data), nil
}

func validateFormat(format string) error {
	if format == "" || format == "text" || format == "json" {
		return nil
	}
	return fmt.Errorf("invalid --format %q: must be text or json", format)
}
