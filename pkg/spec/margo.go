package spec

// MargoSpec holds the Margo runtime settings of a process: scalar
// tuning knobs, the Mercury and Argobots layers, and the two pools
// Margo dedicates to network progress and RPC handling.
type MargoSpec struct {
	// ProgressTimeoutUbMsec is the upper bound, in milliseconds,
	// passed to the Mercury progress loop.
	ProgressTimeoutUbMsec int

	// EnableProfiling enables Margo RPC profiling.
	EnableProfiling bool

	// EnableDiagnostics enables Margo diagnostics collection.
	EnableDiagnostics bool

	// HandleCacheSize is the number of RPC handles kept preallocated.
	HandleCacheSize int

	// ProfileSparklineTimesliceMsec is the profiling sparkline
	// timeslice, in milliseconds.
	ProfileSparklineTimesliceMsec int

	// Mercury holds the Mercury layer settings.
	Mercury MercurySpec

	argobots     ArgobotsSpec
	progressPool string
	rpcPool      string
}

func newMargoSpec(address string) MargoSpec {
	return MargoSpec{
		ProgressTimeoutUbMsec:         100,
		HandleCacheSize:               32,
		ProfileSparklineTimesliceMsec: 1000,
		Mercury:                       NewMercurySpec(address),
		argobots:                      newArgobotsSpec(),
		progressPool:                  PrimaryName,
		rpcPool:                       PrimaryName,
	}
}

// Argobots returns the Argobots layer settings.
func (m *MargoSpec) Argobots() *ArgobotsSpec {
	return &m.argobots
}

// ProgressPool returns the name of the pool running the Mercury
// progress loop.
func (m *MargoSpec) ProgressPool() string {
	return m.progressPool
}

// RPCPool returns the name of the pool handling incoming RPCs.
func (m *MargoSpec) RPCPool() string {
	return m.rpcPool
}

// SetProgressPool points the progress loop at the named pool, which
// must already exist.
func (m *MargoSpec) SetProgressPool(name string) error {
	if !m.argobots.pools.Has(name) {
		return newError(KindUnknownPoolReference, "progress_pool", name, "no pool with this name")
	}
	m.progressPool = name
	return nil
}

// SetRPCPool points RPC handling at the named pool, which must
// already exist.
func (m *MargoSpec) SetRPCPool(name string) error {
	if !m.argobots.pools.Has(name) {
		return newError(KindUnknownPoolReference, "rpc_pool", name, "no pool with this name")
	}
	m.rpcPool = name
	return nil
}
