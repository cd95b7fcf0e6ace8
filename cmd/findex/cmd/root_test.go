package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findex-dev/findex/internal/config"
)

// execute runs the CLI with args against a project directory and
// returns combined output.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--dir", dir}, args...))

	err := root.Execute()
	return buf.String(), err
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, config.ConfigFileName)

	_, err = os.Stat(filepath.Join(dir, config.ConfigFileName))
	require.NoError(t, err)

	// Second init without --force refuses to overwrite.
	_, err = execute(t, dir, "init")
	require.Error(t, err)

	_, err = execute(t, dir, "init", "--force")
	require.NoError(t, err)
}

func TestIndexAndSearchCommands(t *testing.T) {
	dir := t.TempDir()

	small := writeTestFile(t, dir, "small.txt", "the quick brown fox")
	large := writeTestFile(t, dir, "large.txt",
		strings.Repeat("searchable content with needle keywords ", 40))

	out, err := execute(t, dir, "index", small, large)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed small.txt")
	assert.Contains(t, out, "indexed large.txt")
	assert.Contains(t, out, "chunks")

	out, err = execute(t, dir, "search", "needle", "--mode", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "large.txt#")
	assert.NotContains(t, out, "small.txt")

	out, err = execute(t, dir, "search", "quick fox")
	require.NoError(t, err)
	assert.Contains(t, out, "small.txt")

	out, err = execute(t, dir, "search", "quick fox", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"doc_id"`)
}

func TestSearchCommand_UnknownMode(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "content")

	_, err := execute(t, dir, "search", "anything", "--mode", "bogus")
	require.Error(t, err)
}

func TestRemoveCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.txt",
		strings.Repeat("removable text body ", 60))

	_, err := execute(t, dir, "index", path)
	require.NoError(t, err)

	out, err := execute(t, dir, "remove", "doc.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "removed doc.txt")

	out, err = execute(t, dir, "search", "removable", "--mode", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "no results")

	out, err = execute(t, dir, "remove", "ghost.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "not found")
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.txt", strings.Repeat("words ", 200))

	_, err := execute(t, dir, "index", path)
	require.NoError(t, err)

	out, err := execute(t, dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:")

	out, err = execute(t, dir, "stats", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"vector_size"`)
	assert.Contains(t, out, `"chunk_records"`)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "findex")

	out, err = execute(t, t.TempDir(), "version", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"go_version"`)
}
