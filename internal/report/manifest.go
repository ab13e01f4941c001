package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tube-transcriber/internal/domain"
)

// Format selects the manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a flag value to a Format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported manifest format %q (want json or yaml)", raw)
	}
}

// FormatForPath infers the manifest format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Marshal encodes rep in the requested format.
func Marshal(rep domain.RunReport, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(rep)
	case FormatJSON, "":
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
}

// WriteManifest encodes rep next to its transcripts, format chosen by extension.
func WriteManifest(rep domain.RunReport, path string) error {
	data, err := Marshal(rep, FormatForPath(path))
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// DefaultManifestPath names the manifest file for a run inside its output directory.
func DefaultManifestPath(rep domain.RunReport, format Format) string {
	ext := ".json"
	if format == FormatYAML {
		ext = ".yaml"
	}
	return filepath.Join(rep.Options.OutputDir, "run_"+rep.RunID+ext)
}
