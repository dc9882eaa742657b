package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against a memory backend persisted in dir.
func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	global := []string{
		"--database", "memory:" + filepath.Join(dir, "db.json"),
		"--config", filepath.Join(dir, "absent.yaml"),
	}
	cmd.SetArgs(append(global, args...))
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestAddAndList(t *testing.T) {
	dir := t.TempDir()

	out := run(t, dir, "add", "write tests")
	assert.Contains(t, out, "write tests")

	out = run(t, dir, "list")
	assert.Contains(t, out, "[ ]")
	assert.Contains(t, out, "write tests")
}

func TestCompleteTask(t *testing.T) {
	dir := t.TempDir()

	out := run(t, dir, "add", "ship it")
	// Output shape: "added <id>: <title>"
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2)
	id := strings.TrimSuffix(fields[1], ":")

	run(t, dir, "complete", id)

	out = run(t, dir, "list")
	assert.Contains(t, out, "[x]")
	assert.Contains(t, out, "ship it")
}

func TestPrefs(t *testing.T) {
	dir := t.TempDir()

	run(t, dir, "set-pref", "ui/theme", "dark")
	run(t, dir, "set-user", "alice", "alice@example.com")

	out := run(t, dir, "show-prefs")
	assert.Contains(t, out, "ui/theme = dark")
	assert.Contains(t, out, "user/name = alice")

	out = run(t, dir, "show-user")
	assert.Contains(t, out, "alice <alice@example.com>")
}

func TestTrees(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "add", "anything")

	out := run(t, dir, "trees")
	assert.Contains(t, out, "todo")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
