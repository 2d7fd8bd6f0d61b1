// Package mcpserver exposes the optimizer and the context monitor as MCP
// tools so an editor agent can inspect and prune its own context store.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/ctxopt/internal/monitor"
	"github.com/flemzord/ctxopt/internal/optimizer"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolAnalyze  = "analyze_context"
	ToolOptimize = "optimize_context"
	ToolBackup   = "backup_context"
	ToolClean    = "clean_temp_files"
	ToolMonitor  = "monitor_context"
)

const instructions = `ctxopt keeps the AI context store small. Call analyze_context first;
call optimize_context to back up, prune and compact the store in one pass.`

// Params wires the tools to an optimizer.
type Params struct {
	Optimizer *optimizer.Optimizer
	Logger    *slog.Logger
	Version   string
}

// tools holds the handlers. Each handler returns JSON text on success and
// an MCP error result, not a Go error, on domain failures.
type tools struct {
	opt    *optimizer.Optimizer
	logger *slog.Logger
}

// New creates the MCP server with every tool registered.
func New(p Params) *server.MCPServer {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &tools{opt: p.Optimizer, logger: logger}

	s := server.NewMCPServer(
		"ctxopt",
		p.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.AddTool(mcp.NewTool(ToolAnalyze,
		mcp.WithDescription("Report row counts, date range and on-disk size of the context store."),
	), t.analyze)

	s.AddTool(mcp.NewTool(ToolOptimize,
		mcp.WithDescription("Back up the store, prune old and excess conversations and code contexts, "+
			"truncate long summaries, delete temporary session files and compact the database."),
	), t.optimize)

	s.AddTool(mcp.NewTool(ToolBackup,
		mcp.WithDescription("Write a timestamped byte-for-byte copy of the context store."),
	), t.backup)

	s.AddTool(mcp.NewTool(ToolClean,
		mcp.WithDescription("Delete temporary AI session files from the project root."),
	), t.clean)

	s.AddTool(mcp.NewTool(ToolMonitor,
		mcp.WithDescription("Estimate token usage of editor rule and config files and check editor settings."),
		mcp.WithString("settings_path",
			mcp.Description("Editor settings.json to check. Defaults to the Cursor user settings."),
		),
	), t.monitor)

	return s
}

// Serve runs the server over stdio until the client disconnects.
func Serve(p Params) error {
	if err := server.ServeStdio(New(p)); err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

func (t *tools) analyze(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.opt.Analyze(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (t *tools) optimize(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := t.opt.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (t *tools) backup(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := t.opt.Backup(ctx)
	if errors.Is(err, optimizer.ErrStoreNotFound) {
		return mcp.NewToolResultError("no context store to back up"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"backup_path": path})
}

func (t *tools) clean(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.opt.CleanTempFiles(ctx))
}

// monitorResult is the payload of monitor_context.
type monitorResult struct {
	Usage           monitor.Usage           `json:"usage"`
	TotalTokens     int                     `json:"total_tokens"`
	Assessment      monitor.Level           `json:"assessment"`
	Recommendations []string                `json:"recommendations"`
	Settings        *monitor.SettingsReport `json:"settings,omitempty"`
	SettingsError   string                  `json:"settings_error,omitempty"`
}

func (t *tools) monitor(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	usage, err := monitor.AnalyzeConfig(t.opt.Config().ProjectRoot)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := monitorResult{
		Usage:           usage,
		TotalTokens:     usage.Total(),
		Assessment:      monitor.Assess(usage.Total()),
		Recommendations: monitor.Recommend(usage),
	}

	path := req.GetString("settings_path", "")
	if path == "" {
		path, err = monitor.DefaultSettingsPath()
	}
	if err == nil {
		var report monitor.SettingsReport
		report, err = monitor.CheckSettings(path)
		if err == nil {
			res.Settings = &report
		}
	}
	if err != nil {
		res.SettingsError = err.Error()
	}

	return jsonResult(res)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
