package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter .mongospectre.yml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getwd: %w", err)
			}

			wrote := 0
			for _, f := range initFiles {
				path := filepath.Join(cwd, f.name)
				if _, err := os.Stat(path); err == nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skip: %s already exists\n", f.name)
					continue
				}
				if err := os.WriteFile(path, []byte(f.content), 0o600); err != nil {
					return fmt.Errorf("write %s: %w", f.name, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", f.name)
				wrote++
			}

			if wrote == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do — all config files already exist.")
			}
			return nil
		},
	}
	return cmd
}

type initFile struct {
	name    string
	content string
}

var initFiles = []initFile{
	{
		name: ".mongospectre.yml",
		content: `# mongospectre configuration
# See: https://github.com/ppiankov/mongospectre

# MongoDB connection URI (overridden by --uri flag or MONGODB_URI env var)
# uri: mongodb://localhost:27017

# Database "explain" inspects when --database is not given
# database: myapp

planner:
  # Tighten half-open bounds ($lt, $gte, ...) to the operand's type class,
  # so a numeric inequality never scans strings or dates.
  optimize: true
  # "plan" rejects queries whose compiled compound bounds would expand past
  # this many scan points (guards against unbounded $in/$or fan-out);
  # "explain" always uses the built-in cap of 1000000.
  max_fanout: 1000000

defaults:
  format: text
  verbose: false
  timeout: 30s
`,
	},
}
