package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
)

// execRoot runs a fresh command tree so flag state never leaks between tests.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	registerSubcommands(root)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	// Reduce log noise to capture clean command output for parsing
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return buf.String(), err
}

// isolateHome points HOME and PKGSYNC_HOME at a temp dir so no real
// configuration is picked up.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PKGSYNC_HOME", filepath.Join(home, ".pkgsync"))
	return home
}
