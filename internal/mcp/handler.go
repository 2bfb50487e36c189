// Package mcp exposes notebook exports as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dgallion1/notegest/internal/export"
	"github.com/dgallion1/notegest/internal/pipeline"
	"github.com/dgallion1/notegest/internal/remote"
)

const Version = "0.1.0"

type ExportRequest struct {
	Title             string `json:"title"`               // Heading for the rendered document
	IncludeImageBytes bool   `json:"include_image_bytes"` // Embed base64 image data
	Format            string `json:"format"`              // "markdown" (default) or "records"
}

type ExportResponse struct {
	Job      pipeline.JobSnapshot `json:"job"`
	Markdown string               `json:"markdown,omitempty"`
	Records  []export.Record      `json:"records,omitempty"`
}

type ListPagesRequest struct{}

type PageSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListPagesResponse struct {
	Section string        `json:"section"`
	Pages   []PageSummary `json:"pages"`
}

// NewServer creates an MCP server with the export_section and list_pages
// tools. Every call opens its own host session.
func NewServer(hosts pipeline.HostFactory, observer remote.Observer, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"Notebook Exporter MCP",
		Version,
		server.WithToolCapabilities(false),
	)

	exportTool := mcp.NewTool("export_section",
		mcp.WithDescription("Export every page of the active notebook section as markdown or structured records"),
		mcp.WithString("title",
			mcp.Description("Heading for the exported document"),
		),
		mcp.WithBoolean("include_image_bytes",
			mcp.Description("Embed base64 image data in image records"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: markdown or records"),
			mcp.Enum("markdown", "records"),
		),
	)
	s.AddTool(exportTool, mcp.NewTypedToolHandler(exportHandler(hosts, observer, log)))

	pagesTool := mcp.NewTool("list_pages",
		mcp.WithDescription("List the pages of the active notebook section"),
	)
	s.AddTool(pagesTool, mcp.NewTypedToolHandler(listPagesHandler(hosts, observer, log)))

	return s
}

func exportHandler(hosts pipeline.HostFactory, observer remote.Observer, log *slog.Logger) func(ctx context.Context, request mcp.CallToolRequest, args ExportRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ExportRequest) (*mcp.CallToolResult, error) {
		switch args.Format {
		case "":
			args.Format = "markdown"
		case "markdown", "records":
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unsupported format: %s", args.Format)), nil
		}
		if args.Title == "" {
			args.Title = "Notebook export"
		}

		job := pipeline.NewJob(args.Title, export.Options{IncludeImageBytes: args.IncludeImageBytes})
		pipeline.NewWorker(hosts, observer, log, "").Process(ctx, job)

		snap := job.Snapshot()
		if snap.Status == pipeline.StatusFailed {
			return mcp.NewToolResultError(fmt.Sprintf("export failed during %s: %v", snap.Phase, snap.Progress.Errors)), nil
		}

		response := ExportResponse{Job: snap}
		if args.Format == "records" {
			response.Records = job.Records()
		} else {
			response.Markdown = job.Markdown()
		}
		return jsonResult(response)
	}
}

func listPagesHandler(hosts pipeline.HostFactory, observer remote.Observer, log *slog.Logger) func(ctx context.Context, request mcp.CallToolRequest, args ListPagesRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ListPagesRequest) (*mcp.CallToolResult, error) {
		host, session, err := hosts.NewSession(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("open host session: %v", err)), nil
		}
		defer pipeline.ReleaseSession(ctx, hosts, session, log)
		c := remote.NewClient(host, session, log)
		defer c.Close()
		if observer != nil {
			c.SetObserver(observer)
		}

		section := c.ActiveSection()
		c.Load(section, "name,pages/id,pages/title")
		if err := c.Commit(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load section: %v", err)), nil
		}

		var response ListPagesResponse
		if response.Section, err = section.String("name"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		pages, err := section.Items("pages")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		response.Pages = make([]PageSummary, 0, len(pages))
		for _, p := range pages {
			title, err := p.String("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			response.Pages = append(response.Pages, PageSummary{ID: p.ID(), Title: title})
		}
		return jsonResult(response)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
