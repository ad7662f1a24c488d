package spec

import "encoding/json"

// ProviderSpec describes one provider: an instance of a loadable
// module's provider interface, identified by name and by its
// (module type, provider id) pair. Name, type and id are fixed at
// construction time.
type ProviderSpec struct {
	name       string
	moduleType string
	providerID uint16

	// Pool names the Argobots pool the provider's RPC handlers run
	// on. Empty selects the process RPC pool when the provider is
	// added.
	Pool string

	// Config is the provider configuration, an opaque JSON object
	// interpreted by the module. Nil means an empty object.
	Config json.RawMessage

	deps DependencyMap
}

// NewProviderSpec returns a provider with the given name, module type
// and provider id, with no pool, configuration or dependencies.
func NewProviderSpec(name, moduleType string, providerID uint16) ProviderSpec {
	return ProviderSpec{name: name, moduleType: moduleType, providerID: providerID}
}

// Name returns the provider name.
func (p *ProviderSpec) Name() string {
	return p.name
}

// Type returns the provider's module type.
func (p *ProviderSpec) Type() string {
	return p.moduleType
}

// ProviderID returns the provider id within the module type.
func (p *ProviderSpec) ProviderID() uint16 {
	return p.providerID
}

// Dependencies returns the provider's dependency map.
func (p *ProviderSpec) Dependencies() *DependencyMap {
	return &p.deps
}

// ClientSpec describes one named client: an instance of a loadable
// module's client interface. Name and type are fixed at construction
// time.
type ClientSpec struct {
	name       string
	moduleType string

	// Config is the client configuration, an opaque JSON object
	// interpreted by the module. Nil means an empty object.
	Config json.RawMessage

	deps DependencyMap
}

// NewClientSpec returns a client with the given name and module type,
// with no configuration or dependencies.
func NewClientSpec(name, moduleType string) ClientSpec {
	return ClientSpec{name: name, moduleType: moduleType}
}

// Name returns the client name.
func (c *ClientSpec) Name() string {
	return c.name
}

// Type returns the client's module type.
func (c *ClientSpec) Type() string {
	return c.moduleType
}

// Dependencies returns the client's dependency map.
func (c *ClientSpec) Dependencies() *DependencyMap {
	return &c.deps
}
