package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/notegest/internal/export"
	"github.com/dgallion1/notegest/internal/pipeline"
	"github.com/dgallion1/notegest/internal/remote"
	"github.com/dgallion1/notegest/internal/sink"
	"github.com/dgallion1/notegest/internal/stats"
)

type exportOpts struct {
	format string
	output string
	title  string
	images bool
}

var supportedFormats = []string{"md", "html", "docx", "json"}

func newExportCmd() *cobra.Command {
	var opt exportOpts
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the active section",
		Example: `  notegest export --fixture fixtures/sample.yaml
  notegest export --host-url https://host.example --format docx -o notes.docx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opt)
		},
	}
	cmd.Flags().StringVarP(&opt.format, "format", "f", "md", fmt.Sprintf("output format, one of %v", supportedFormats))
	cmd.Flags().StringVarP(&opt.output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&opt.title, "title", "Notebook export", "document heading")
	cmd.Flags().BoolVar(&opt.images, "images", false, "embed base64 image bytes")
	return cmd
}

func runExport(cmd *cobra.Command, opt exportOpts) error {
	switch opt.format {
	case "md", "html", "docx", "json":
	default:
		return fmt.Errorf("unsupported format %q, want one of %v", opt.format, supportedFormats)
	}
	if opt.format == "docx" && opt.output == "-" {
		return fmt.Errorf("docx output needs --output")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	hosts, release, err := openHosts(cfg, log)
	if err != nil {
		return err
	}
	defer release()

	ctx := cmd.Context()
	host, session, err := hosts.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("open host session: %w", err)
	}
	defer pipeline.ReleaseSession(ctx, hosts, session, log)
	commits := stats.NewCommitStats(time.Hour)
	client := remote.NewClient(host, session, log)
	client.SetObserver(commits)
	defer client.Close()

	records := sink.NewMemorySink()
	md := sink.NewMarkdownSink(opt.title)
	doc := sink.NewDocxSink(opt.title)
	sinks := sink.Multi{records, md, doc}
	if rootOpt.debug {
		sinks = append(sinks, sink.NewLogSink(log))
	}

	sum, err := export.New(log, export.Options{IncludeImageBytes: opt.images || cfg.IncludeImageBytes}).Run(ctx, client, sinks)
	if err != nil {
		return err
	}
	snap := commits.Snapshot()
	log.Info("export complete",
		"pages", sum.Pages,
		"records", sum.Records,
		"skipped", sum.Skipped,
		"commits", sum.Commits,
		"commit_p95_ms", snap.P95Ms,
	)

	if opt.output == "-" {
		return write(cmd.OutOrStdout(), opt.format, records, md, doc)
	}
	return writeFile(opt.output, opt.format, records, md, doc)
}

// writeFile writes the export to path. A failed close is reported: it may be
// the only sign that buffered output never reached the disk.
func writeFile(path, format string, records *sink.MemorySink, md *sink.MarkdownSink, doc *sink.DocxSink) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, format, records, md, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func write(w io.Writer, format string, records *sink.MemorySink, md *sink.MarkdownSink, doc *sink.DocxSink) error {
	switch format {
	case "html":
		html, err := md.HTML()
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err
	case "docx":
		_, err := doc.WriteTo(w)
		return err
	case "json":
		enc := json.NewEncoder(w)
		for _, r := range records.Records() {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := io.WriteString(w, md.Markdown())
		return err
	}
}
