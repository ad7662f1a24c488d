package config

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for descriptor validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in
// descriptor schemas.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas compiles the descriptor schema and registers each
// node definition under its section name. The definitions live in one CUE
// source so they can reference each other.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	val := sr.ctx.CompileString(builtinDescriptorSchema)
	if err := val.Err(); err != nil {
		// The built-in schema is a compile-time constant; failing to
		// compile it is a programming error.
		panic(fmt.Sprintf("built-in descriptor schema does not compile: %v", err))
	}

	definitions := map[string]string{
		"proc":     "#Proc",
		"margo":    "#Margo",
		"mercury":  "#Mercury",
		"argobots": "#Argobots",
		"pool":     "#Pool",
		"xstream":  "#Xstream",
		"abt_io":   "#AbtIO",
		"ssg":      "#SSG",
		"provider": "#Provider",
		"client":   "#Client",
		"bedrock":  "#Bedrock",
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	for name, def := range definitions {
		sr.schemas[name] = val.LookupPath(cue.ParsePath(def))
	}
}

// RegisterSchema registers a CUE schema with the given name. The schema
// source must be self-contained.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &LoadError{Errors: convertCUEErrors(err)}
	}

	return nil
}

// ValidateDocument validates a JSON descriptor document against the
// top-level #Proc schema. This is a structural check; reference and
// semantic validation happens in spec.ParseProcSpec.
//
// The document is compiled as CUE rather than unmarshalled through Go
// values, which keeps integers integral for the int constraints.
func (sr *SchemaRegistry) ValidateDocument(ctx context.Context, doc []byte) error {
	if !json.Valid(doc) {
		return fmt.Errorf("invalid JSON document")
	}

	schema, ok := sr.GetSchema("proc")
	if !ok {
		return fmt.Errorf("schema proc not found")
	}

	dataVal := sr.ctx.CompileBytes(doc)
	if err := dataVal.Err(); err != nil {
		return &LoadError{Errors: convertCUEErrors(err)}
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &LoadError{Errors: convertCUEErrors(err)}
	}

	return nil
}

// builtinDescriptorSchema is the CUE schema for the deployment descriptor.
// Definitions are closed, so unknown keys are rejected just like the
// strict JSON parser does.
const builtinDescriptorSchema = `
// A pool reference is a pool name or a positional index.
#PoolRef: string | (int & >=0)

// A dependency expression: "type:id", "type:client" or
// "name@ssg://group/rank".
#DepExpr: string & (=~"^[a-zA-Z_][a-zA-Z0-9_]*:([0-9]+|client)$" | =~"^[^@:/]+@ssg://[^/]+/[0-9]+$")

#Pool: {
	name:    string & =~"^.+$"
	kind?:   "fifo" | "fifo_wait"
	access?: "private" | "spsc" | "mpsc" | "spmc" | "mpmc"
}

#Scheduler: {
	type?: "default" | "basic" | "prio" | "randws" | "basic_wait"
	// At least one pool
	pools: [#PoolRef, ...#PoolRef]
}

#Xstream: {
	name:       string & =~"^.+$"
	cpubind?:   int
	affinity?: [...int]
	scheduler: #Scheduler
}

#Argobots: {
	abt_mem_max_num_stacks?: int & >=0
	abt_thread_stacksize?:   int & >=1
	version?:                string
	pools: [...#Pool]
	xstreams: [...#Xstream]
}

#Mercury: {
	address:            string & =~"^.+$"
	listening?:         bool
	ip_subnet?:         string
	auth_key?:          string
	auto_sm?:           bool
	max_contexts?:      int & >=1
	na_no_block?:       bool
	na_no_retry?:       bool
	no_bulk_eager?:     bool
	no_loopback?:       bool
	request_post_incr?: int
	request_post_init?: int
	stats?:             bool
	version?:           string
}

#Margo: {
	progress_timeout_ub_msec?:         int & >=0
	enable_profiling?:                 bool
	enable_diagnostics?:               bool
	handle_cache_size?:                int & >=0
	profile_sparkline_timeslice_msec?: int & >=0
	argobots?:                         #Argobots
	mercury:                           #Mercury
	progress_pool?:                    #PoolRef
	rpc_pool?:                         #PoolRef
}

#AbtIO: {
	name:    string & =~"^.+$"
	pool:    #PoolRef
	config?: {...}
}

#Swim: {
	period_length_ms?:        int
	suspect_timeout_periods?: int
	subgroup_member_count?:   int
	disabled?:                bool
}

#SSG: {
	name:        string & =~"^.+$"
	credential?: int
	bootstrap?:  "init" | "join" | "mpi" | "pmix"
	group_file?: string
	swim?:       #Swim
	pool:        #PoolRef
}

#Provider: {
	name:         string & =~"^.+$"
	type:         string & =~"^.+$"
	pool?:        #PoolRef
	provider_id?: int & >=0 & <=65535
	config?: {...}
	dependencies?: {[string]: #DepExpr | [#DepExpr, ...#DepExpr]}
}

#Client: {
	name: string & =~"^.+$"
	type: string & =~"^.+$"
	config?: {...}
	dependencies?: {[string]: #DepExpr | [#DepExpr, ...#DepExpr]}
}

#Bedrock: {
	pool?:        #PoolRef
	provider_id?: int & >=0 & <=65535
}

#Proc: {
	margo: #Margo
	abt_io?: [...#AbtIO]
	ssg?: [...#SSG]
	libraries?: {[string]: string}
	providers?: [...#Provider]
	clients?: [...#Client]
	bedrock?: #Bedrock
}
`
