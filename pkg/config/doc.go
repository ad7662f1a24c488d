// Package config loads deployment descriptors from multiple source
// formats and runs query scripts against them.
//
// # Overview
//
// The daemon's native descriptor form is canonical JSON (see the spec
// package). This package accepts richer authoring formats and brings
// them all to that form:
//
//   - JSON, parsed directly
//   - YAML, converted to JSON
//   - CUE, evaluated (single files or whole package directories) and
//     exported to JSON
//
// Every format ends in spec.ParseProcSpec, so a descriptor is validated
// identically no matter how it was written.
//
// # Components
//
// Loader: reads descriptor files and byte slices in any supported
// format. LoadDirectory evaluates a directory as one CUE package, which
// lets a descriptor be split across files.
//
// SchemaRegistry: CUE schemas for the descriptor's node types. The
// built-in #Proc schema mirrors the strict JSON parser (closed structs,
// enumerated kinds, dependency expression patterns) and produces
// position-carrying errors for authoring tools.
//
// QueryEvaluator: Starlark query execution against a descriptor
// document. The script sees the descriptor as a dict named "config" and
// reports through a "result" global.
//
// Watcher: fsnotify-based reloading of descriptor files with debounced
// change bursts.
//
// # Usage Example
//
//	loader := config.NewLoader(logger)
//	tree, err := loader.Load(ctx, "proc.cue")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	qe := config.NewQueryEvaluator(0)
//	result, err := qe.QueryTree(ctx, tree, `result = len(config["providers"])`)
//
// # Error Reporting
//
// CUE and schema failures are returned as *LoadError carrying one
// ValidationError per finding, each with file, line and column where the
// evaluator provides them. Semantic descriptor errors (unknown pool
// references, duplicate names) come from the spec package unchanged.
package config
