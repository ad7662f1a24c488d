package spec

import "encoding/json"

// AbtIOSpec describes one ABT-IO instance: a named I/O engine bound to
// an Argobots pool.
type AbtIOSpec struct {
	name string

	// Pool names the Argobots pool the instance issues I/O operations
	// from.
	Pool string

	// Config is the instance configuration, an opaque JSON object
	// interpreted by ABT-IO itself. Nil means an empty object.
	Config json.RawMessage
}

// NewAbtIOSpec returns an ABT-IO instance with the given name, bound
// to the named pool, with an empty configuration.
func NewAbtIOSpec(name, pool string) AbtIOSpec {
	return AbtIOSpec{name: name, Pool: pool}
}

// Name returns the instance name.
func (s *AbtIOSpec) Name() string {
	return s.name
}
