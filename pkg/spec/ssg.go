package spec

// SSG bootstrap methods.
const (
	BootstrapInit = "init"
	BootstrapJoin = "join"
	BootstrapMPI  = "mpi"
	BootstrapPMIx = "pmix"
)

// SwimSpec holds the SWIM failure detection settings of an SSG group.
// Negative values leave the corresponding knob at the SSG library
// default.
type SwimSpec struct {
	// PeriodLengthMs is the protocol period length in milliseconds.
	PeriodLengthMs int

	// SuspectTimeoutPeriods is the number of protocol periods before
	// a suspected member is declared dead.
	SuspectTimeoutPeriods int

	// SubgroupMemberCount is the number of subgroup members used for
	// indirect pings.
	SubgroupMemberCount int

	// Disabled turns the failure detector off entirely.
	Disabled bool
}

func defaultSwimSpec() SwimSpec {
	return SwimSpec{
		SuspectTimeoutPeriods: -1,
		SubgroupMemberCount:   -1,
	}
}

// SSGSpec describes one SSG group membership of a process.
type SSGSpec struct {
	name string

	// Credential is the credential passed to the SSG transport, or
	// -1 for none.
	Credential int64

	// Bootstrap selects how the process joins the group.
	Bootstrap string `validate:"oneof=init join mpi pmix"`

	// GroupFile is the path the group id is written to or read from.
	// Empty disables the file exchange.
	GroupFile string

	// Swim holds the group's failure detection settings.
	Swim SwimSpec

	// Pool names the Argobots pool running the group's protocol.
	Pool string
}

// NewSSGSpec returns a group with the given name, bound to the named
// pool, bootstrapping with the init method and default SWIM settings.
func NewSSGSpec(name, pool string) SSGSpec {
	return SSGSpec{
		name:       name,
		Credential: -1,
		Bootstrap:  BootstrapInit,
		Swim:       defaultSwimSpec(),
		Pool:       pool,
	}
}

// Name returns the group name.
func (g *SSGSpec) Name() string {
	return g.name
}
