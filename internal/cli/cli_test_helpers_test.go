package cli

import (
	"bytes"
	"testing"
)

var testBuildInfo = BuildInfo{Version: "test", Commit: "deadbeef", Date: "2026-01-01", GoVersion: "go1.25"}

// execCLI runs the root command with args against a fresh BuildInfo and
// returns its captured stdout, stderr, and execution error.
func execCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd(testBuildInfo)
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}
