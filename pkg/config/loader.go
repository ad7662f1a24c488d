package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

// Loader reads deployment descriptors from JSON, YAML and CUE sources.
// Every source is brought to the canonical JSON form and then parsed
// through spec.ParseProcSpec, so all formats are validated identically.
type Loader struct {
	ctx     *cue.Context
	schemas *SchemaRegistry
	logger  zerolog.Logger
}

// NewLoader creates a new descriptor loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		ctx:     cuecontext.New(),
		schemas: NewSchemaRegistry(),
		logger:  logger.With().Str("component", "config-loader").Logger(),
	}
}

// Schemas returns the loader's schema registry.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.schemas
}

// Load reads a descriptor file, detecting the format from its extension.
func (l *Loader) Load(ctx context.Context, path string) (*spec.ProcSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}
	tree, err := l.LoadBytes(ctx, data, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	l.logger.Debug().Str("path", path).Msg("Descriptor loaded")
	return tree, nil
}

// LoadBytes parses descriptor content in the given format. FormatAuto is
// treated as JSON.
func (l *Loader) LoadBytes(ctx context.Context, data []byte, format Format) (*spec.ProcSpec, error) {
	doc, err := l.ToJSON(ctx, data, format)
	if err != nil {
		return nil, err
	}
	return spec.ParseProcSpec(doc)
}

// ToJSON converts descriptor content to its JSON document form without
// parsing it into a tree. Useful for schema checks and queries on raw
// documents.
func (l *Loader) ToJSON(ctx context.Context, data []byte, format Format) (json.RawMessage, error) {
	switch format {
	case FormatAuto, FormatJSON:
		return json.RawMessage(data), nil
	case FormatYAML:
		return yamlToJSON(data)
	case FormatCUE:
		return l.cueToJSON(data)
	default:
		return nil, fmt.Errorf("unknown descriptor format %q", format)
	}
}

// LoadDirectory evaluates a directory as a CUE package and parses the
// resulting descriptor. All files of the package are unified, so a
// descriptor can be split across files.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (*spec.ProcSpec, error) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return nil, &LoadError{Errors: []ValidationError{{
			File:    dir,
			Message: "no CUE files found",
		}}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return nil, &LoadError{Errors: convertCUEErrors(inst.Err)}
	}

	val := l.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return nil, &LoadError{Errors: convertCUEErrors(err)}
	}

	doc, err := l.exportJSON(val)
	if err != nil {
		return nil, err
	}
	tree, err := spec.ParseProcSpec(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", dir, err)
	}
	return tree, nil
}

// cueToJSON evaluates inline CUE content down to a JSON document.
func (l *Loader) cueToJSON(data []byte) (json.RawMessage, error) {
	val := l.ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return nil, &LoadError{Errors: convertCUEErrors(err)}
	}
	return l.exportJSON(val)
}

func (l *Loader) exportJSON(val cue.Value) (json.RawMessage, error) {
	if err := val.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return nil, &LoadError{Errors: convertCUEErrors(err)}
	}
	doc, err := val.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE value: %w", err)
	}
	return doc, nil
}

// yamlToJSON converts a YAML document to JSON. YAML mappings must have
// string keys; anything else cannot appear in a descriptor anyway.
func yamlToJSON(data []byte) (json.RawMessage, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML to JSON: %w", err)
	}
	return out, nil
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	errs := errors.Errors(err)
	for _, e := range errs {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:    file,
			Line:    line,
			Column:  column,
			Message: errors.Details(e, nil),
		})
	}

	return validationErrors
}
