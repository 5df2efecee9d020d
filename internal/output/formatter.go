package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported output formats
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ValidateFormat checks if the format is supported
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatHuman, FormatJSON, FormatYAML, "yml", "":
		return nil
	}
	return fmt.Errorf("unsupported format: %s (use human, json or yaml)", format)
}

// Formatter writes results either as a human report or as structured data
type Formatter struct {
	w      io.Writer
	format string
}

// NewFormatter creates a new formatter for the specified format
func NewFormatter(w io.Writer, format string) *Formatter {
	format = strings.ToLower(format)
	if format == "yml" {
		format = FormatYAML
	}
	if format == "" {
		format = FormatHuman
	}
	return &Formatter{w: w, format: format}
}

// Structured reports whether the formatter emits JSON or YAML
func (f *Formatter) Structured() bool {
	return f.format == FormatJSON || f.format == FormatYAML
}

// Writer returns the destination
func (f *Formatter) Writer() io.Writer {
	return f.w
}

// Print writes v as structured data, or calls human when the format is human
func (f *Formatter) Print(v interface{}, human func(p *Printer)) error {
	switch f.format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		_, err = fmt.Fprintln(f.w, string(data))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(f.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		return enc.Close()
	default:
		human(NewPrinter(f.w))
		return nil
	}
}
