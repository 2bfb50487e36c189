package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/notegest/internal/export"
	"github.com/dgallion1/notegest/internal/remote"
	"github.com/dgallion1/notegest/internal/sink"
)

// HostFactory opens a fresh host session per job, so no two passes ever
// share an active-page cursor. Every opened session is closed once its pass
// ends.
type HostFactory interface {
	NewSession(ctx context.Context) (remote.Host, string, error)
	CloseSession(ctx context.Context, id string) error
}

// ReleaseSession closes id with a context that outlives ctx's cancellation.
func ReleaseSession(ctx context.Context, hosts HostFactory, id string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := hosts.CloseSession(ctx, id); err != nil {
		log.Warn("close host session", "error", err)
	}
}

// Worker runs export passes.
type Worker struct {
	hosts     HostFactory
	observer  remote.Observer
	log       *slog.Logger
	outputDir string
}

func NewWorker(hosts HostFactory, observer remote.Observer, log *slog.Logger, outputDir string) *Worker {
	return &Worker{
		hosts:     hosts,
		observer:  observer,
		log:       log,
		outputDir: outputDir,
	}
}

// Process runs one export pass for job and leaves it completed or failed.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)

	job.SetStatus(StatusConnecting, "opening host session")
	host, session, err := w.hosts.NewSession(ctx)
	if err != nil {
		log.Error("open host session failed", "error", err)
		job.AddError(fmt.Sprintf("session: %s", err))
		job.SetStatus(StatusFailed, "connecting")
		return
	}
	job.SetSession(session)
	log = log.With("session", session)
	defer ReleaseSession(ctx, w.hosts, session, log)

	client := remote.NewClient(host, session, log)
	defer client.Close()
	if w.observer != nil {
		client.SetObserver(w.observer)
	}

	sinks := sink.Multi{
		job.records,
		job.markdown,
		export.SinkFunc(func(context.Context, export.Record) error {
			job.IncrRecords()
			return nil
		}),
	}
	var doc *sink.DocxSink
	if w.outputDir != "" {
		doc = sink.NewDocxSink(job.Title)
		sinks = append(sinks, doc)
	}

	job.SetStatus(StatusExporting, "exporting")
	start := time.Now()
	sum, err := export.New(log, job.Options).Run(ctx, client, sinks)
	job.SetSummary(sum, time.Since(start))
	if err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "exporting")
		return
	}

	if w.outputDir != "" {
		job.SetStatus(StatusExporting, "writing output")
		if err := w.writeOutputs(job, doc); err != nil {
			log.Error("write outputs failed", "error", err)
			job.AddError(err.Error())
			job.SetStatus(StatusFailed, "writing output")
			return
		}
	}
	log.Info("export job complete", "pages", sum.Pages, "records", sum.Records, "commits", sum.Commits)
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) writeOutputs(job *Job, doc *sink.DocxSink) error {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	mdPath := filepath.Join(w.outputDir, job.ID+".md")
	if err := os.WriteFile(mdPath, []byte(job.Markdown()), 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	job.AddOutput(mdPath)

	docxPath := filepath.Join(w.outputDir, job.ID+".docx")
	f, err := os.Create(docxPath)
	if err != nil {
		return fmt.Errorf("create docx: %w", err)
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close docx: %w", err)
	}
	job.AddOutput(docxPath)
	return nil
}
