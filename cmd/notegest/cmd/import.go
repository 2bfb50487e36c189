package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/notegest/internal/notebook"
	"github.com/dgallion1/notegest/internal/parser"
)

func newImportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Convert a document into a notebook fixture",
		Long: `import reads a markdown, HTML, docx, PDF, CSV or text document and writes a
notebook fixture with one page per top-level heading. The fixture is YAML
unless --output ends in .json.`,
		Example: `  notegest import notes.md -o fixtures/notes.yaml
  notegest export --fixture fixtures/notes.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !parser.IsSupportedExtension(path) {
				return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			nb, err := parser.Import(f, path)
			if err != nil {
				return err
			}
			pages := 0
			for _, s := range nb.Sections {
				pages += len(s.Pages)
			}
			newLogger().Info("imported document", "file", path, "pages", pages)

			out := cmd.OutOrStdout()
			if output != "-" {
				w, err := os.Create(output)
				if err != nil {
					return err
				}
				defer w.Close()
				out = w
			}
			return writeNotebook(out, nb, strings.EqualFold(filepath.Ext(output), ".json"))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "fixture file, - for stdout")
	return cmd
}

func writeNotebook(w io.Writer, nb *notebook.Notebook, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nb)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(nb); err != nil {
		return err
	}
	return enc.Close()
}
