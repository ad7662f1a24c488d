package spec

import "fmt"

// BedrockSpec holds the settings of the daemon's own control
// interface, which every process exposes as a provider of module type
// "bedrock".
type BedrockSpec struct {
	pool string

	// ProviderID is the provider id the control interface is
	// registered under.
	ProviderID uint16
}

// Pool returns the name of the pool the control interface runs on.
func (b *BedrockSpec) Pool() string {
	return b.pool
}

// ProcSpec is the root of a process descriptor tree. Create one with
// NewProcSpec and mutate it through the Add/Set operations; every
// mutation validates its arguments against the current state of the
// tree before applying them.
type ProcSpec struct {
	margo     MargoSpec
	abtIO     Collection[*AbtIOSpec]
	ssg       Collection[*SSGSpec]
	libraries map[string]string
	providers Collection[*ProviderSpec]
	clients   Collection[*ClientSpec]
	bedrock   BedrockSpec
}

// NewProcSpec returns a descriptor for a process listening on the
// given Mercury address. The tree starts with one pool and one
// execution stream, both named "__primary__", and every pool
// reference pointing at that pool.
func NewProcSpec(address string) *ProcSpec {
	p := &ProcSpec{
		margo:     newMargoSpec(address),
		libraries: make(map[string]string),
		bedrock:   BedrockSpec{pool: PrimaryName},
	}
	_, _ = p.margo.argobots.AddPool(NewPoolSpec(PrimaryName))
	_, _ = p.margo.argobots.AddXstream(NewXstreamSpec(PrimaryName, PrimaryName))
	return p
}

// Margo returns the Margo runtime settings.
func (p *ProcSpec) Margo() *MargoSpec {
	return &p.margo
}

// Bedrock returns the daemon control interface settings.
func (p *ProcSpec) Bedrock() *BedrockSpec {
	return &p.bedrock
}

// AbtIO returns the ABT-IO instance collection.
func (p *ProcSpec) AbtIO() *Collection[*AbtIOSpec] {
	return &p.abtIO
}

// SSG returns the SSG group collection.
func (p *ProcSpec) SSG() *Collection[*SSGSpec] {
	return &p.ssg
}

// Providers returns the provider collection.
func (p *ProcSpec) Providers() *Collection[*ProviderSpec] {
	return &p.providers
}

// Clients returns the client collection.
func (p *ProcSpec) Clients() *Collection[*ClientSpec] {
	return &p.clients
}

// checkPool verifies that name designates an existing pool.
func (p *ProcSpec) checkPool(field, name string) error {
	if name == "" {
		return newError(KindInvalidValue, field, "", "a pool name is required")
	}
	if !p.margo.argobots.pools.Has(name) {
		return newError(KindUnknownPoolReference, field, name, "no pool with this name")
	}
	return nil
}

// AddAbtIO validates s and appends it to the ABT-IO collection. The
// pool it names must already exist.
func (p *ProcSpec) AddAbtIO(s AbtIOSpec) (*AbtIOSpec, error) {
	if err := p.checkPool("pool", s.Pool); err != nil {
		return nil, err
	}
	cfg, err := compactObject(s.Config, "config")
	if err != nil {
		return nil, err
	}
	s.Config = cfg
	stored := &s
	if err := p.abtIO.add(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// AddSSG validates g and appends it to the SSG group collection. The
// pool it names must already exist.
func (p *ProcSpec) AddSSG(g SSGSpec) (*SSGSpec, error) {
	if err := checkFields(&g); err != nil {
		return nil, err
	}
	if err := p.checkPool("pool", g.Pool); err != nil {
		return nil, err
	}
	stored := &g
	if err := p.ssg.add(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// AddProvider validates pr and appends it to the provider collection.
// An empty pool selects the process RPC pool. The (type, provider id)
// pair must not collide with an existing provider.
func (p *ProcSpec) AddProvider(pr ProviderSpec) (*ProviderSpec, error) {
	if pr.moduleType == "" {
		return nil, newError(KindInvalidValue, "type", "", "a module type is required")
	}
	if pr.Pool == "" {
		pr.Pool = p.margo.rpcPool
	}
	if err := p.checkPool("pool", pr.Pool); err != nil {
		return nil, err
	}
	cfg, err := compactObject(pr.Config, "config")
	if err != nil {
		return nil, err
	}
	pr.Config = cfg
	for _, other := range p.providers.items {
		if other.moduleType == pr.moduleType && other.providerID == pr.providerID {
			return nil, newError(KindDuplicateProviderID, "provider_id",
				fmt.Sprintf("%s:%d", pr.moduleType, pr.providerID),
				"provider id already in use for this module type")
		}
	}
	pr.deps = pr.deps.clone()
	stored := &pr
	if err := p.providers.add(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// AddClient validates c and appends it to the client collection.
func (p *ProcSpec) AddClient(c ClientSpec) (*ClientSpec, error) {
	if c.moduleType == "" {
		return nil, newError(KindInvalidValue, "type", "", "a module type is required")
	}
	cfg, err := compactObject(c.Config, "config")
	if err != nil {
		return nil, err
	}
	c.Config = cfg
	c.deps = c.deps.clone()
	stored := &c
	if err := p.clients.add(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// LookupProvider returns the provider with the given module type and
// provider id, if any.
func (p *ProcSpec) LookupProvider(moduleType string, providerID uint16) (*ProviderSpec, bool) {
	for _, pr := range p.providers.items {
		if pr.moduleType == moduleType && pr.providerID == providerID {
			return pr, true
		}
	}
	return nil, false
}

// SetLibrary records the path of the shared library providing the
// named module, replacing any previous path for the same module.
func (p *ProcSpec) SetLibrary(name, path string) error {
	if name == "" {
		return newError(KindInvalidValue, "libraries", "", "a module name is required")
	}
	if path == "" {
		return newError(KindInvalidValue, "libraries", name, "a library path is required")
	}
	if p.libraries == nil {
		p.libraries = make(map[string]string)
	}
	p.libraries[name] = path
	return nil
}

// LibraryPath returns the library path recorded for the named module.
func (p *ProcSpec) LibraryPath(name string) (string, bool) {
	path, ok := p.libraries[name]
	return path, ok
}

// Libraries returns a copy of the module name to library path map.
func (p *ProcSpec) Libraries() map[string]string {
	out := make(map[string]string, len(p.libraries))
	for name, path := range p.libraries {
		out[name] = path
	}
	return out
}

// SetBedrockPool points the daemon control interface at the named
// pool, which must already exist.
func (p *ProcSpec) SetBedrockPool(name string) error {
	if err := p.checkPool("pool", name); err != nil {
		return err
	}
	p.bedrock.pool = name
	return nil
}
