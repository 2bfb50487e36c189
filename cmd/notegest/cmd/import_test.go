package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/notegest/internal/notebook"
)

func TestImportThenExport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plan.md")
	require.NoError(t, os.WriteFile(src, []byte("# Monday\n\nwater the **beans**\n\n# Tuesday\n\nweed\n"), 0o644))

	fixturePath := filepath.Join(dir, "plan.yaml")
	root := newRootCmd()
	root.SetArgs([]string{"import", src, "-o", fixturePath})
	require.NoError(t, root.Execute())

	nb, err := notebook.Load(fixturePath)
	require.NoError(t, err)
	require.Equal(t, "plan", nb.Name)
	require.Len(t, nb.Sections[0].Pages, 2)

	t.Setenv("HOST_URL", "")
	var out bytes.Buffer
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"export", "--fixture", fixturePath})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "## Monday")
	require.Contains(t, out.String(), "water the **beans**")
	require.Contains(t, out.String(), "## Tuesday")
}

func TestImportJSON(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "list.txt")
	require.NoError(t, os.WriteFile(src, []byte("eggs\n\nmilk\n"), 0o644))

	out := filepath.Join(dir, "list.json")
	root := newRootCmd()
	root.SetArgs([]string{"import", src, "--output", out})
	require.NoError(t, root.Execute())

	nb, err := notebook.Load(out)
	require.NoError(t, err)
	require.Len(t, nb.Sections[0].Pages[0].Contents[0].Outline.Paragraphs, 2)
}

func TestImportRejectsUnsupportedFile(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"import", "deck.pptx"})
	require.ErrorContains(t, root.Execute(), "unsupported file type")
}
