package spec

import "strings"

// MercurySpec holds the Mercury (HG) layer settings of a process.
// All fields may be assigned freely; they are validated when the tree
// is serialized.
type MercurySpec struct {
	// Address is the Mercury address or protocol specifier the
	// process listens on, such as "na+sm" or "ofi+tcp://eth0:1234".
	Address string `validate:"required"`

	// Listening controls whether the process accepts incoming RPCs.
	Listening bool

	// IPSubnet restricts the interfaces Mercury may bind to.
	IPSubnet string

	// AuthKey is the shared authentication key, if any.
	AuthKey string

	// AutoSM enables automatic shared-memory shortcutting between
	// processes on the same node.
	AutoSM bool

	// MaxContexts is the number of Mercury contexts to create.
	MaxContexts int

	// NaNoBlock makes the network abstraction layer use busy polling.
	NaNoBlock bool

	// NaNoRetry disables retries in the network abstraction layer.
	NaNoRetry bool

	// NoBulkEager disables eager transfers of small bulk payloads.
	NoBulkEager bool

	// NoLoopback disables the loopback shortcut for self-addressed
	// RPCs.
	NoLoopback bool

	// RequestPostIncr is the number of requests posted at once when
	// the pre-posted request queue runs low.
	RequestPostIncr int

	// RequestPostInit is the number of requests pre-posted at
	// initialization.
	RequestPostInit int

	// Stats enables Mercury internal statistics collection.
	Stats bool

	// Version is the Mercury library version the settings target.
	// It is informational and filled in by a running daemon.
	Version string
}

// NewMercurySpec returns Mercury settings for the given address with
// every other field at its daemon default.
func NewMercurySpec(address string) MercurySpec {
	return MercurySpec{
		Address:         address,
		Listening:       true,
		MaxContexts:     1,
		RequestPostIncr: 256,
		RequestPostInit: 256,
		Version:         "unknown",
	}
}

// Protocol returns the protocol part of the address: the prefix before
// "://" when present, otherwise the whole address.
func (m *MercurySpec) Protocol() string {
	if i := strings.Index(m.Address, "://"); i >= 0 {
		return m.Address[:i]
	}
	return m.Address
}
