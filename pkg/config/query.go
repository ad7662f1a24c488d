package config

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

// queryFileOptions enables the imperative dialect for query scripts:
// top-level control flow, global reassignment, while loops and sets.
var queryFileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// QueryEvaluator runs Starlark query scripts against descriptor documents.
// The script sees the full descriptor as a dict named "config". If the
// script defines a global named "result", its value becomes the query
// result; otherwise all non-underscore globals are returned as an object.
type QueryEvaluator struct {
	timeout time.Duration
}

// NewQueryEvaluator creates a new query evaluator.
func NewQueryEvaluator(timeout time.Duration) *QueryEvaluator {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &QueryEvaluator{
		timeout: timeout,
	}
}

// QueryTree runs a query script against a descriptor tree.
func (qe *QueryEvaluator) QueryTree(ctx context.Context, tree *spec.ProcSpec, script string) (json.RawMessage, error) {
	doc, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize descriptor: %w", err)
	}
	return qe.Query(ctx, doc, script)
}

// Query runs a query script against a JSON descriptor document.
func (qe *QueryEvaluator) Query(ctx context.Context, doc json.RawMessage, script string) (json.RawMessage, error) {
	var input map[string]interface{}
	if err := json.Unmarshal(doc, &input); err != nil {
		return nil, fmt.Errorf("invalid descriptor document: %w", err)
	}

	evalCtx, cancel := context.WithTimeout(ctx, qe.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: "bedrock-query",
		Print: func(_ *starlark.Thread, msg string) {
			// Query scripts have no output channel besides the result
		},
	}

	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)

	go func() {
		result, err := qe.runScript(thread, script, input)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel("query timeout")
		return nil, fmt.Errorf("query timed out after %v", qe.timeout)
	case err := <-errCh:
		return nil, err
	case result := <-resultCh:
		return result, nil
	}
}

// runScript executes the script and extracts the result value.
func (qe *QueryEvaluator) runScript(thread *starlark.Thread, script string, input map[string]interface{}) (json.RawMessage, error) {
	configVal, err := toStarlarkValue(input)
	if err != nil {
		return nil, fmt.Errorf("failed to convert descriptor: %w", err)
	}

	predeclared := starlark.StringDict{
		"struct":    starlarkstruct.Default,
		"config":    configVal,
		"range":     starlark.NewBuiltin("range", builtinRange),
		"enumerate": starlark.NewBuiltin("enumerate", builtinEnumerate),
		"zip":       starlark.NewBuiltin("zip", builtinZip),
	}

	globals, err := starlark.ExecFileOptions(queryFileOptions, thread, "query.star", script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("query script failed: %w", err)
	}

	var out interface{}
	if resultVal, ok := globals["result"]; ok {
		out, err = fromStarlarkValue(resultVal)
		if err != nil {
			return nil, fmt.Errorf("failed to convert result: %w", err)
		}
	} else {
		collected := make(map[string]interface{})
		for name, val := range globals {
			if len(name) > 0 && name[0] == '_' {
				continue
			}
			goVal, err := fromStarlarkValue(val)
			if err != nil {
				return nil, fmt.Errorf("failed to convert global %s: %w", name, err)
			}
			collected[name] = goVal
		}
		out = collected
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query result: %w", err)
	}
	return encoded, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		// JSON numbers arrive as float64; keep integral values as ints
		// so scripts can index and compare naturally
		if val == float64(int64(val)) {
			return starlark.MakeInt64(int64(val)), nil
		}
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, item := range val {
			converted, err := fromStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

// Built-in Starlark functions

// builtinRange implements the range() built-in function.
func builtinRange(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var start, stop, step int64 = 0, 0, 1

	switch len(args) {
	case 1:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "stop", &stop); err != nil {
			return nil, err
		}
	case 2:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop); err != nil {
			return nil, err
		}
	case 3:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop, "step", &step); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("range takes 1 to 3 arguments, got %d", len(args))
	}

	if step == 0 {
		return nil, fmt.Errorf("range step cannot be zero")
	}

	var list []starlark.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			list = append(list, starlark.MakeInt64(i))
		}
	} else {
		for i := start; i > stop; i += step {
			list = append(list, starlark.MakeInt64(i))
		}
	}

	return starlark.NewList(list), nil
}

// builtinEnumerate implements the enumerate() built-in function.
func builtinEnumerate(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var start int64 = 0

	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}

	iter := iterable.Iterate()
	defer iter.Done()

	var list []starlark.Value
	var x starlark.Value
	i := start
	for iter.Next(&x) {
		tuple := starlark.Tuple{starlark.MakeInt64(i), x}
		list = append(list, tuple)
		i++
	}

	return starlark.NewList(list), nil
}

// builtinZip implements the zip() built-in function.
func builtinZip(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return starlark.NewList(nil), nil
	}

	iters := make([]starlark.Iterator, len(args))
	for i, arg := range args {
		iterable, ok := arg.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("zip argument %d is not iterable", i)
		}
		iters[i] = iterable.Iterate()
		defer iters[i].Done()
	}

	var list []starlark.Value
	for {
		tuple := make(starlark.Tuple, len(iters))
		for i, iter := range iters {
			if !iter.Next(&tuple[i]) {
				return starlark.NewList(list), nil
			}
		}
		list = append(list, tuple)
	}
}
