package config

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Format identifies a descriptor source format.
type Format string

const (
	// FormatAuto detects the format from the file extension
	FormatAuto Format = ""
	// FormatJSON is the canonical JSON wire form
	FormatJSON Format = "json"
	// FormatYAML is YAML, converted to JSON before parsing
	FormatYAML Format = "yaml"
	// FormatCUE is CUE, evaluated to JSON before parsing
	FormatCUE Format = "cue"
)

// DetectFormat determines the descriptor format from a file path. Unknown
// extensions are treated as JSON, the daemon's native form.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cue":
		return FormatCUE
	default:
		return FormatJSON
	}
}

// ValidationError is one schema or evaluation error with source location.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the document path to the error (e.g., "margo.mercury.address").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(e.Line))
			if e.Column > 0 {
				sb.WriteString(":")
				sb.WriteString(strconv.Itoa(e.Column))
			}
		}
		sb.WriteString(": ")
	}
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// LoadError aggregates the validation errors of one load attempt.
type LoadError struct {
	Errors []ValidationError
}

// Error implements the error interface
func (e *LoadError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "invalid descriptor"
	case 1:
		return e.Errors[0].String()
	default:
		lines := make([]string, len(e.Errors))
		for i, ve := range e.Errors {
			lines[i] = ve.String()
		}
		return "invalid descriptor:\n  " + strings.Join(lines, "\n  ")
	}
}
