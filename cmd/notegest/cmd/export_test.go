package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/notegest/internal/export"
)

const fixture = `
name: CLI
sections:
  - pages:
      - id: p1
        title: Groceries
        contents:
          - type: Outline
            outline:
              paragraphs:
                - type: RichText
                  richText: {text: milk}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	t.Setenv("HOST_URL", "")

	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"export", "--fixture", path}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExportMarkdown(t *testing.T) {
	out, err := run(t, "--title", "List")
	require.NoError(t, err)
	require.Contains(t, out, "# List")
	require.Contains(t, out, "## Groceries")
	require.Contains(t, out, "milk")
}

func TestExportJSON(t *testing.T) {
	out, err := run(t, "--format", "json")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var r export.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &r))
	require.Equal(t, "milk", r.Text)
	require.Equal(t, "p1", r.PageID)
}

func TestExportDocxNeedsOutput(t *testing.T) {
	_, err := run(t, "--format", "docx")
	require.ErrorContains(t, err, "--output")
}

func TestExportDocxToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.docx")
	_, err := run(t, "--format", "docx", "--output", path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := run(t, "--format", "pdf")
	require.ErrorContains(t, err, "unsupported format")
}

func TestExportReportsWriteFailures(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	_, err := run(t, "--format", "docx", "--output", "/dev/full")
	require.Error(t, err)

	_, err = run(t, "--output", filepath.Join(t.TempDir(), "missing", "out.md"))
	require.Error(t, err)
}

func TestExportMarkdownToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	out, err := run(t, "--output", path)
	require.NoError(t, err)
	require.Empty(t, out)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "milk")
}
