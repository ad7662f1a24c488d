package spec

// PrimaryName is the name of the pool and execution stream every new
// tree starts with.
const PrimaryName = "__primary__"

// Pool kinds understood by the Argobots runtime.
const (
	PoolKindFifo     = "fifo"
	PoolKindFifoWait = "fifo_wait"
)

// Pool access modes understood by the Argobots runtime.
const (
	PoolAccessPrivate = "private"
	PoolAccessSPSC    = "spsc"
	PoolAccessMPSC    = "mpsc"
	PoolAccessSPMC    = "spmc"
	PoolAccessMPMC    = "mpmc"
)

// Scheduler types understood by the Argobots runtime.
const (
	SchedulerDefault   = "default"
	SchedulerBasic     = "basic"
	SchedulerPrio      = "prio"
	SchedulerRandWS    = "randws"
	SchedulerBasicWait = "basic_wait"
)

// PoolSpec describes one Argobots pool.
type PoolSpec struct {
	name string

	// Kind is the pool implementation kind.
	Kind string `validate:"oneof=fifo fifo_wait"`

	// Access is the pool's producer/consumer access mode.
	Access string `validate:"oneof=private spsc mpsc spmc mpmc"`
}

// NewPoolSpec returns a pool with the given name, of kind fifo_wait
// with mpmc access.
func NewPoolSpec(name string) PoolSpec {
	return PoolSpec{name: name, Kind: PoolKindFifoWait, Access: PoolAccessMPMC}
}

// Name returns the pool name.
func (p *PoolSpec) Name() string {
	return p.name
}

// SchedulerSpec describes the scheduler of an execution stream and the
// pools, referenced by name, it pulls work from.
type SchedulerSpec struct {
	// Type is the scheduler implementation type.
	Type string `validate:"oneof=default basic prio randws basic_wait"`

	// Pools names the pools the scheduler draws from, in priority
	// order. At least one is required.
	Pools []string `validate:"min=1"`
}

// XstreamSpec describes one Argobots execution stream.
type XstreamSpec struct {
	name string

	// CPUBind is the CPU index the stream is bound to, or -1 for no
	// binding.
	CPUBind int

	// Affinity lists additional CPU indices the stream may run on.
	Affinity []int

	// Scheduler is the stream's scheduler.
	Scheduler SchedulerSpec
}

// NewXstreamSpec returns an execution stream with the given name,
// unbound, scheduling from the named pools with a basic_wait
// scheduler.
func NewXstreamSpec(name string, pools ...string) XstreamSpec {
	return XstreamSpec{
		name:    name,
		CPUBind: -1,
		Scheduler: SchedulerSpec{
			Type:  SchedulerBasicWait,
			Pools: pools,
		},
	}
}

// Name returns the execution stream name.
func (x *XstreamSpec) Name() string {
	return x.name
}

// ArgobotsSpec holds the Argobots runtime settings of a process along
// with its pools and execution streams.
type ArgobotsSpec struct {
	// AbtMemMaxNumStacks is the maximum number of stacks kept in the
	// Argobots memory pool.
	AbtMemMaxNumStacks int `validate:"min=0"`

	// AbtThreadStacksize is the default ULT stack size in bytes.
	AbtThreadStacksize int `validate:"min=1"`

	// Version is the Argobots library version the settings target.
	// It is informational and filled in by a running daemon.
	Version string

	pools    Collection[*PoolSpec]
	xstreams Collection[*XstreamSpec]
}

func newArgobotsSpec() ArgobotsSpec {
	return ArgobotsSpec{
		AbtMemMaxNumStacks: 8,
		AbtThreadStacksize: 2097152,
		Version:            "unknown",
	}
}

// Pools returns the pool collection.
func (a *ArgobotsSpec) Pools() *Collection[*PoolSpec] {
	return &a.pools
}

// Xstreams returns the execution stream collection.
func (a *ArgobotsSpec) Xstreams() *Collection[*XstreamSpec] {
	return &a.xstreams
}

// AddPool validates p and appends it to the pool collection. The
// returned pointer designates the stored entry; later lookups by name
// or position return the same pointer.
func (a *ArgobotsSpec) AddPool(p PoolSpec) (*PoolSpec, error) {
	if err := checkFields(&p); err != nil {
		return nil, err
	}
	stored := &p
	if err := a.pools.add(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// AddXstream validates x and appends it to the execution stream
// collection. Every pool named by the scheduler must already exist.
func (a *ArgobotsSpec) AddXstream(x XstreamSpec) (*XstreamSpec, error) {
	if err := checkFields(&x); err != nil {
		return nil, err
	}
	for _, pool := range x.Scheduler.Pools {
		if !a.pools.Has(pool) {
			return nil, newError(KindUnknownPoolReference, "scheduler.pools", pool,
				"scheduler references an unknown pool")
		}
	}
	x.Affinity = append([]int(nil), x.Affinity...)
	x.Scheduler.Pools = append([]string(nil), x.Scheduler.Pools...)
	stored := &x
	if err := a.xstreams.add(stored); err != nil {
		return nil, err
	}
	return stored, nil
}
