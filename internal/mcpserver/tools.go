package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tube-transcriber/internal/batch"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/models"
	"tube-transcriber/internal/report"
	"tube-transcriber/internal/service"
	"tube-transcriber/internal/urls"
)

// ExtractInput is the input of extract_urls.
type ExtractInput struct {
	Text string `json:"text" jsonschema:"Free-form text with one or more YouTube URLs"`
}

// TranscribeInput is the input of transcribe_batch.
type TranscribeInput struct {
	Text        string `json:"text,omitempty" jsonschema:"Free-form text with one or more YouTube URLs"`
	URL         string `json:"url,omitempty" jsonschema:"A single video URL; takes precedence over text"`
	Model       string `json:"model,omitempty" jsonschema:"Whisper model name, defaults to the configured model"`
	Language    string `json:"language,omitempty" jsonschema:"Language code or auto"`
	Timestamps  bool   `json:"timestamps,omitempty" jsonschema:"Prefix each segment with its timestamp"`
	Combine     bool   `json:"combine,omitempty" jsonschema:"Also write one combined transcript file"`
	StopOnError bool   `json:"stop_on_error,omitempty" jsonschema:"Stop at the first failed video"`
	OutputDir   string `json:"output_dir,omitempty" jsonschema:"Directory for transcript files"`
}

// ListModelsInput is the input of list_models.
type ListModelsInput struct{}

func (s *Server) handleExtract(ctx context.Context, req *mcp.CallToolRequest, input ExtractInput) (
	*mcp.CallToolResult, any, error,
) {
	sel, err := urls.Parse(input.Text)
	if errors.Is(err, domain.ErrNoValidReferences) {
		return errorResult("No valid YouTube URLs found", "Provide youtube.com/watch?v= or youtu.be/ links"), nil, nil
	}
	return jsonResult(sel)
}

func (s *Server) handleTranscribe(ctx context.Context, req *mcp.CallToolRequest, input TranscribeInput) (
	*mcp.CallToolResult, any, error,
) {
	if strings.TrimSpace(input.Text) == "" && strings.TrimSpace(input.URL) == "" {
		return errorResult("Input is required", "Pass text with URLs or a single url"), nil, nil
	}

	opts := s.svc.DefaultOptions()
	if m := strings.TrimSpace(input.Model); m != "" {
		opts.ModelName = m
	}
	if l := strings.TrimSpace(input.Language); l != "" {
		opts.Language = l
	}
	if d := strings.TrimSpace(input.OutputDir); d != "" {
		opts.OutputDir = d
	}
	opts.IncludeTimestamps = opts.IncludeTimestamps || input.Timestamps
	opts.CombineOutputs = opts.CombineOutputs || input.Combine
	if input.StopOnError {
		opts.ContinueOnError = false
	}

	progress := batch.SinkFunc(func(line string) {
		s.logger.Debug("batch progress", "line", line)
	})
	res, err := s.svc.RunBatch(ctx, service.Request{Text: input.Text, URL: input.URL, Options: opts}, progress)
	if err != nil {
		s.logger.Error("transcribe_batch failed", "error", err)
		if errors.Is(err, domain.ErrNoValidReferences) {
			return errorResult("No valid YouTube URLs found", "Provide youtube.com/watch?v= or youtu.be/ links"), nil, nil
		}
		return errorResult(err.Error(), "Run `tube-transcriber doctor` to check tools and models"), nil, nil
	}

	return textResult(renderRun(res.Report)), nil, nil
}

func (s *Server) handleListModels(ctx context.Context, req *mcp.CallToolRequest, input ListModelsInput) (
	*mcp.CallToolResult, any, error,
) {
	return jsonResult(models.List(s.svc.Settings().ModelDir))
}

// renderRun formats a report for tool output.
func renderRun(rep domain.RunReport) string {
	var b strings.Builder
	b.WriteString(report.Headline(rep))
	b.WriteString("\n")
	for _, path := range report.TranscriptPaths(rep) {
		fmt.Fprintf(&b, "saved: %s\n", path)
	}
	for _, o := range rep.Failed() {
		fmt.Fprintf(&b, "failed: %s (%s): %s\n", o.Reference, o.FailureKind, o.Error)
	}
	if rep.Cancelled {
		b.WriteString("run was cancelled\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// errorResult creates an error result with message and hint.
func errorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// textResult creates a success result with text content.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return textResult(string(data)), nil, nil
}
