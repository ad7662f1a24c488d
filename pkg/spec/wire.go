package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire document types. Field declaration order fixes the canonical key
// order of the serialized form; pool references are emitted as names
// and accepted as names or positional indices when parsing.

type procDoc struct {
	Margo     json.RawMessage   `json:"margo"`
	AbtIO     []json.RawMessage `json:"abt_io"`
	SSG       []json.RawMessage `json:"ssg"`
	Libraries map[string]string `json:"libraries"`
	Providers []json.RawMessage `json:"providers"`
	Clients   []json.RawMessage `json:"clients"`
	Bedrock   json.RawMessage   `json:"bedrock"`
}

type margoDoc struct {
	ProgressTimeoutUbMsec         int             `json:"progress_timeout_ub_msec"`
	EnableProfiling               bool            `json:"enable_profiling"`
	EnableDiagnostics             bool            `json:"enable_diagnostics"`
	HandleCacheSize               int             `json:"handle_cache_size"`
	ProfileSparklineTimesliceMsec int             `json:"profile_sparkline_timeslice_msec"`
	Argobots                      json.RawMessage `json:"argobots"`
	Mercury                       json.RawMessage `json:"mercury"`
	ProgressPool                  json.RawMessage `json:"progress_pool"`
	RPCPool                       json.RawMessage `json:"rpc_pool"`
}

type mercuryDoc struct {
	Address         string `json:"address"`
	Listening       bool   `json:"listening"`
	IPSubnet        string `json:"ip_subnet"`
	AuthKey         string `json:"auth_key"`
	AutoSM          bool   `json:"auto_sm"`
	MaxContexts     int    `json:"max_contexts"`
	NaNoBlock       bool   `json:"na_no_block"`
	NaNoRetry       bool   `json:"na_no_retry"`
	NoBulkEager     bool   `json:"no_bulk_eager"`
	NoLoopback      bool   `json:"no_loopback"`
	RequestPostIncr int    `json:"request_post_incr"`
	RequestPostInit int    `json:"request_post_init"`
	Stats           bool   `json:"stats"`
	Version         string `json:"version"`
}

type argobotsDoc struct {
	AbtMemMaxNumStacks int               `json:"abt_mem_max_num_stacks"`
	AbtThreadStacksize int               `json:"abt_thread_stacksize"`
	Version            string            `json:"version"`
	Pools              []json.RawMessage `json:"pools"`
	Xstreams           []json.RawMessage `json:"xstreams"`
}

type poolDoc struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Access string `json:"access"`
}

type xstreamDoc struct {
	Name      string          `json:"name"`
	CPUBind   int             `json:"cpubind"`
	Affinity  []int           `json:"affinity"`
	Scheduler json.RawMessage `json:"scheduler"`
}

type schedulerDoc struct {
	Type  string            `json:"type"`
	Pools []json.RawMessage `json:"pools"`
}

type abtIODoc struct {
	Name   string          `json:"name"`
	Pool   json.RawMessage `json:"pool"`
	Config json.RawMessage `json:"config"`
}

type ssgDoc struct {
	Name       string          `json:"name"`
	Credential int64           `json:"credential"`
	Bootstrap  string          `json:"bootstrap"`
	GroupFile  string          `json:"group_file"`
	Swim       json.RawMessage `json:"swim"`
	Pool       json.RawMessage `json:"pool"`
}

type swimDoc struct {
	PeriodLengthMs        int  `json:"period_length_ms"`
	SuspectTimeoutPeriods int  `json:"suspect_timeout_periods"`
	SubgroupMemberCount   int  `json:"subgroup_member_count"`
	Disabled              bool `json:"disabled"`
}

type providerDoc struct {
	Name         string                     `json:"name"`
	Type         string                     `json:"type"`
	Pool         json.RawMessage            `json:"pool"`
	ProviderID   uint16                     `json:"provider_id"`
	Config       json.RawMessage            `json:"config"`
	Dependencies map[string]json.RawMessage `json:"dependencies"`
}

type clientDoc struct {
	Name         string                     `json:"name"`
	Type         string                     `json:"type"`
	Config       json.RawMessage            `json:"config"`
	Dependencies map[string]json.RawMessage `json:"dependencies"`
}

type bedrockDoc struct {
	Pool       json.RawMessage `json:"pool"`
	ProviderID uint16          `json:"provider_id"`
}

// marshalCanonical marshals v compactly without HTML escaping.
func marshalCanonical(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	b := buf.Bytes()
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return b, nil
}

func jsonString(s string) json.RawMessage {
	b, _ := marshalCanonical(s)
	return b
}

// compactObject validates raw as a JSON object and returns it in
// compact form. Nil or empty input yields an empty object.
func compactObject(raw json.RawMessage, field string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if trimmed[0] != '{' {
		return nil, newError(KindInvalidValue, field, string(trimmed), "a JSON object is required")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, &Error{Kind: KindInvalidValue, Field: field, Message: "invalid JSON", Err: err}
	}
	return buf.Bytes(), nil
}

// decodeStrict decodes data into v, rejecting unknown keys and
// trailing input.
func decodeStrict(data []byte, v any, path string) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return schemaError(path, "malformed section", err)
	}
	if dec.More() {
		return schemaError(path, "trailing data after document", nil)
	}
	return nil
}

// MarshalJSON emits the canonical wire form of the tree: compact JSON
// with keys in fixed order, pool references as pool names, dependency
// lists of length one as plain strings. The whole tree is re-validated
// before emission, so a tree whose nodes were modified into an
// inconsistent state is rejected rather than serialized.
func (p *ProcSpec) MarshalJSON() ([]byte, error) {
	margo, err := p.margo.wireDoc()
	if err != nil {
		return nil, err
	}

	abtIO := make([]json.RawMessage, 0, p.abtIO.Len())
	for _, s := range p.abtIO.items {
		if err := p.checkPool("pool", s.Pool); err != nil {
			return nil, err
		}
		cfg, err := compactObject(s.Config, "config")
		if err != nil {
			return nil, err
		}
		raw, err := marshalCanonical(abtIODoc{Name: s.name, Pool: jsonString(s.Pool), Config: cfg})
		if err != nil {
			return nil, err
		}
		abtIO = append(abtIO, raw)
	}

	ssgs := make([]json.RawMessage, 0, p.ssg.Len())
	for _, g := range p.ssg.items {
		if err := p.checkPool("pool", g.Pool); err != nil {
			return nil, err
		}
		raw, err := g.MarshalJSON()
		if err != nil {
			return nil, err
		}
		ssgs = append(ssgs, raw)
	}

	providers := make([]json.RawMessage, 0, p.providers.Len())
	for _, pr := range p.providers.items {
		if err := p.checkPool("pool", pr.Pool); err != nil {
			return nil, err
		}
		cfg, err := compactObject(pr.Config, "config")
		if err != nil {
			return nil, err
		}
		raw, err := marshalCanonical(providerDoc{
			Name:         pr.name,
			Type:         pr.moduleType,
			Pool:         jsonString(pr.Pool),
			ProviderID:   pr.providerID,
			Config:       cfg,
			Dependencies: dependenciesDoc(pr.deps),
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, raw)
	}

	clients := make([]json.RawMessage, 0, p.clients.Len())
	for _, c := range p.clients.items {
		cfg, err := compactObject(c.Config, "config")
		if err != nil {
			return nil, err
		}
		raw, err := marshalCanonical(clientDoc{
			Name:         c.name,
			Type:         c.moduleType,
			Config:       cfg,
			Dependencies: dependenciesDoc(c.deps),
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, raw)
	}

	if err := p.checkPool("pool", p.bedrock.pool); err != nil {
		return nil, err
	}
	bedrock, err := marshalCanonical(bedrockDoc{
		Pool:       jsonString(p.bedrock.pool),
		ProviderID: p.bedrock.ProviderID,
	})
	if err != nil {
		return nil, err
	}

	libs := p.libraries
	if libs == nil {
		libs = map[string]string{}
	}

	return marshalCanonical(&procDoc{
		Margo:     margo,
		AbtIO:     abtIO,
		SSG:       ssgs,
		Libraries: libs,
		Providers: providers,
		Clients:   clients,
		Bedrock:   bedrock,
	})
}

func (m *MargoSpec) wireDoc() (json.RawMessage, error) {
	argobots, err := m.argobots.wireDoc()
	if err != nil {
		return nil, err
	}
	if err := checkFields(&m.Mercury); err != nil {
		return nil, err
	}
	mercury, err := marshalCanonical(mercuryDoc{
		Address:         m.Mercury.Address,
		Listening:       m.Mercury.Listening,
		IPSubnet:        m.Mercury.IPSubnet,
		AuthKey:         m.Mercury.AuthKey,
		AutoSM:          m.Mercury.AutoSM,
		MaxContexts:     m.Mercury.MaxContexts,
		NaNoBlock:       m.Mercury.NaNoBlock,
		NaNoRetry:       m.Mercury.NaNoRetry,
		NoBulkEager:     m.Mercury.NoBulkEager,
		NoLoopback:      m.Mercury.NoLoopback,
		RequestPostIncr: m.Mercury.RequestPostIncr,
		RequestPostInit: m.Mercury.RequestPostInit,
		Stats:           m.Mercury.Stats,
		Version:         m.Mercury.Version,
	})
	if err != nil {
		return nil, err
	}
	if !m.argobots.pools.Has(m.progressPool) {
		return nil, newError(KindUnknownPoolReference, "progress_pool", m.progressPool, "no pool with this name")
	}
	if !m.argobots.pools.Has(m.rpcPool) {
		return nil, newError(KindUnknownPoolReference, "rpc_pool", m.rpcPool, "no pool with this name")
	}
	return marshalCanonical(margoDoc{
		ProgressTimeoutUbMsec:         m.ProgressTimeoutUbMsec,
		EnableProfiling:               m.EnableProfiling,
		EnableDiagnostics:             m.EnableDiagnostics,
		HandleCacheSize:               m.HandleCacheSize,
		ProfileSparklineTimesliceMsec: m.ProfileSparklineTimesliceMsec,
		Argobots:                      argobots,
		Mercury:                       mercury,
		ProgressPool:                  jsonString(m.progressPool),
		RPCPool:                       jsonString(m.rpcPool),
	})
}

func (a *ArgobotsSpec) wireDoc() (json.RawMessage, error) {
	if err := checkFields(a); err != nil {
		return nil, err
	}
	pools := make([]json.RawMessage, 0, a.pools.Len())
	for _, p := range a.pools.items {
		if err := checkFields(p); err != nil {
			return nil, err
		}
		raw, err := marshalCanonical(poolDoc{Name: p.name, Kind: p.Kind, Access: p.Access})
		if err != nil {
			return nil, err
		}
		pools = append(pools, raw)
	}
	xstreams := make([]json.RawMessage, 0, a.xstreams.Len())
	for _, x := range a.xstreams.items {
		if err := checkFields(x); err != nil {
			return nil, err
		}
		schedPools := make([]json.RawMessage, 0, len(x.Scheduler.Pools))
		for _, pool := range x.Scheduler.Pools {
			if !a.pools.Has(pool) {
				return nil, newError(KindUnknownPoolReference, "scheduler.pools", pool,
					"scheduler references an unknown pool")
			}
			schedPools = append(schedPools, jsonString(pool))
		}
		sched, err := marshalCanonical(schedulerDoc{Type: x.Scheduler.Type, Pools: schedPools})
		if err != nil {
			return nil, err
		}
		affinity := x.Affinity
		if affinity == nil {
			affinity = []int{}
		}
		raw, err := marshalCanonical(xstreamDoc{
			Name:      x.name,
			CPUBind:   x.CPUBind,
			Affinity:  affinity,
			Scheduler: sched,
		})
		if err != nil {
			return nil, err
		}
		xstreams = append(xstreams, raw)
	}
	return marshalCanonical(argobotsDoc{
		AbtMemMaxNumStacks: a.AbtMemMaxNumStacks,
		AbtThreadStacksize: a.AbtThreadStacksize,
		Version:            a.Version,
		Pools:              pools,
		Xstreams:           xstreams,
	})
}

// MarshalJSON emits the canonical wire form of a single SSG group.
// The pool reference is emitted as a name but not resolved; resolution
// happens when the group is part of a tree.
func (g *SSGSpec) MarshalJSON() ([]byte, error) {
	if err := checkFields(g); err != nil {
		return nil, err
	}
	swim, err := marshalCanonical(swimDoc{
		PeriodLengthMs:        g.Swim.PeriodLengthMs,
		SuspectTimeoutPeriods: g.Swim.SuspectTimeoutPeriods,
		SubgroupMemberCount:   g.Swim.SubgroupMemberCount,
		Disabled:              g.Swim.Disabled,
	})
	if err != nil {
		return nil, err
	}
	return marshalCanonical(ssgDoc{
		Name:       g.name,
		Credential: g.Credential,
		Bootstrap:  g.Bootstrap,
		GroupFile:  g.GroupFile,
		Swim:       swim,
		Pool:       jsonString(g.Pool),
	})
}

// MarshalJSON emits the canonical wire form of a dependency map: a
// single expression as a plain string, several as an array, preserving
// the original expression text.
func (m DependencyMap) MarshalJSON() ([]byte, error) {
	return marshalCanonical(dependenciesDoc(m))
}

// dependenciesDoc renders a dependency map: a single expression is
// emitted as a plain string, several as an array, preserving the
// original expression text.
func dependenciesDoc(m DependencyMap) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m.deps))
	for name, ds := range m.deps {
		if len(ds) == 1 {
			out[name] = jsonString(ds[0].expr)
			continue
		}
		exprs := make([]json.RawMessage, 0, len(ds))
		for _, d := range ds {
			exprs = append(exprs, jsonString(d.expr))
		}
		raw, _ := marshalCanonical(exprs)
		out[name] = raw
	}
	return out
}

// ParseProcSpec parses a wire document back into a tree. It is the
// exact inverse of MarshalJSON over documents this package produced,
// and additionally accepts pool references given as positional indices
// and omitted optional fields, normalizing both to canonical form.
func ParseProcSpec(data []byte) (*ProcSpec, error) {
	var top procDoc
	if err := decodeStrict(data, &top, "proc"); err != nil {
		return nil, err
	}
	if top.Margo == nil {
		return nil, schemaError("margo", "required section is missing", nil)
	}

	p := &ProcSpec{libraries: make(map[string]string)}
	if err := parseMargo(top.Margo, &p.margo); err != nil {
		return nil, err
	}
	pools := &p.margo.argobots.pools

	for i, raw := range top.AbtIO {
		path := fmt.Sprintf("abt_io[%d]", i)
		var d abtIODoc
		if err := decodeStrict(raw, &d, path); err != nil {
			return nil, err
		}
		if d.Pool == nil {
			return nil, schemaError(path+".pool", "required field is missing", nil)
		}
		poolName, err := resolvePoolRef(d.Pool, pools, path+".pool")
		if err != nil {
			return nil, err
		}
		s := NewAbtIOSpec(d.Name, poolName)
		s.Config = d.Config
		if _, err := p.AddAbtIO(s); err != nil {
			return nil, err
		}
	}

	for i, raw := range top.SSG {
		path := fmt.Sprintf("ssg[%d]", i)
		d := ssgDoc{Credential: -1, Bootstrap: BootstrapInit}
		if err := decodeStrict(raw, &d, path); err != nil {
			return nil, err
		}
		if d.Pool == nil {
			return nil, schemaError(path+".pool", "required field is missing", nil)
		}
		poolName, err := resolvePoolRef(d.Pool, pools, path+".pool")
		if err != nil {
			return nil, err
		}
		g := NewSSGSpec(d.Name, poolName)
		g.Credential = d.Credential
		g.Bootstrap = d.Bootstrap
		g.GroupFile = d.GroupFile
		if d.Swim != nil {
			sw := swimDoc{SuspectTimeoutPeriods: -1, SubgroupMemberCount: -1}
			if err := decodeStrict(d.Swim, &sw, path+".swim"); err != nil {
				return nil, err
			}
			g.Swim = SwimSpec{
				PeriodLengthMs:        sw.PeriodLengthMs,
				SuspectTimeoutPeriods: sw.SuspectTimeoutPeriods,
				SubgroupMemberCount:   sw.SubgroupMemberCount,
				Disabled:              sw.Disabled,
			}
		}
		if _, err := p.AddSSG(g); err != nil {
			return nil, err
		}
	}

	for name, path := range top.Libraries {
		if err := p.SetLibrary(name, path); err != nil {
			return nil, err
		}
	}

	for i, raw := range top.Providers {
		path := fmt.Sprintf("providers[%d]", i)
		var d providerDoc
		if err := decodeStrict(raw, &d, path); err != nil {
			return nil, err
		}
		pr := NewProviderSpec(d.Name, d.Type, d.ProviderID)
		if d.Pool != nil {
			poolName, err := resolvePoolRef(d.Pool, pools, path+".pool")
			if err != nil {
				return nil, err
			}
			pr.Pool = poolName
		}
		pr.Config = d.Config
		if err := parseDependencies(d.Dependencies, pr.Dependencies(), path); err != nil {
			return nil, err
		}
		if _, err := p.AddProvider(pr); err != nil {
			return nil, err
		}
	}

	for i, raw := range top.Clients {
		path := fmt.Sprintf("clients[%d]", i)
		var d clientDoc
		if err := decodeStrict(raw, &d, path); err != nil {
			return nil, err
		}
		c := NewClientSpec(d.Name, d.Type)
		c.Config = d.Config
		if err := parseDependencies(d.Dependencies, c.Dependencies(), path); err != nil {
			return nil, err
		}
		if _, err := p.AddClient(c); err != nil {
			return nil, err
		}
	}

	bedrockPool := ""
	if pools.Has(PrimaryName) {
		bedrockPool = PrimaryName
	} else if pools.Len() > 0 {
		first, _ := pools.At(0)
		bedrockPool = first.name
	}
	var bd bedrockDoc
	if top.Bedrock != nil {
		if err := decodeStrict(top.Bedrock, &bd, "bedrock"); err != nil {
			return nil, err
		}
		if bd.Pool != nil {
			poolName, err := resolvePoolRef(bd.Pool, pools, "bedrock.pool")
			if err != nil {
				return nil, err
			}
			bedrockPool = poolName
		}
	}
	p.bedrock = BedrockSpec{pool: bedrockPool, ProviderID: bd.ProviderID}

	return p, nil
}

// UnmarshalJSON replaces the tree with the parsed document.
func (p *ProcSpec) UnmarshalJSON(data []byte) error {
	parsed, err := ParseProcSpec(data)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

func parseMargo(raw json.RawMessage, m *MargoSpec) error {
	doc := margoDoc{
		ProgressTimeoutUbMsec:         100,
		HandleCacheSize:               32,
		ProfileSparklineTimesliceMsec: 1000,
	}
	if err := decodeStrict(raw, &doc, "margo"); err != nil {
		return err
	}
	if doc.Argobots == nil {
		return schemaError("margo.argobots", "required section is missing", nil)
	}
	if doc.Mercury == nil {
		return schemaError("margo.mercury", "required section is missing", nil)
	}
	if doc.ProgressPool == nil {
		return schemaError("margo.progress_pool", "required field is missing", nil)
	}
	if doc.RPCPool == nil {
		return schemaError("margo.rpc_pool", "required field is missing", nil)
	}

	m.ProgressTimeoutUbMsec = doc.ProgressTimeoutUbMsec
	m.EnableProfiling = doc.EnableProfiling
	m.EnableDiagnostics = doc.EnableDiagnostics
	m.HandleCacheSize = doc.HandleCacheSize
	m.ProfileSparklineTimesliceMsec = doc.ProfileSparklineTimesliceMsec

	m.argobots = newArgobotsSpec()
	if err := parseArgobots(doc.Argobots, &m.argobots); err != nil {
		return err
	}
	if err := parseMercury(doc.Mercury, &m.Mercury); err != nil {
		return err
	}

	progressPool, err := resolvePoolRef(doc.ProgressPool, &m.argobots.pools, "margo.progress_pool")
	if err != nil {
		return err
	}
	if err := m.SetProgressPool(progressPool); err != nil {
		return err
	}
	rpcPool, err := resolvePoolRef(doc.RPCPool, &m.argobots.pools, "margo.rpc_pool")
	if err != nil {
		return err
	}
	return m.SetRPCPool(rpcPool)
}

func parseArgobots(raw json.RawMessage, a *ArgobotsSpec) error {
	doc := argobotsDoc{
		AbtMemMaxNumStacks: 8,
		AbtThreadStacksize: 2097152,
		Version:            "unknown",
	}
	if err := decodeStrict(raw, &doc, "margo.argobots"); err != nil {
		return err
	}
	if doc.Pools == nil {
		return schemaError("margo.argobots.pools", "required field is missing", nil)
	}
	if doc.Xstreams == nil {
		return schemaError("margo.argobots.xstreams", "required field is missing", nil)
	}
	a.AbtMemMaxNumStacks = doc.AbtMemMaxNumStacks
	a.AbtThreadStacksize = doc.AbtThreadStacksize
	a.Version = doc.Version

	for i, rawPool := range doc.Pools {
		path := fmt.Sprintf("margo.argobots.pools[%d]", i)
		pd := poolDoc{Kind: PoolKindFifoWait, Access: PoolAccessMPMC}
		if err := decodeStrict(rawPool, &pd, path); err != nil {
			return err
		}
		pool := NewPoolSpec(pd.Name)
		pool.Kind = pd.Kind
		pool.Access = pd.Access
		if _, err := a.AddPool(pool); err != nil {
			return err
		}
	}

	for i, rawX := range doc.Xstreams {
		path := fmt.Sprintf("margo.argobots.xstreams[%d]", i)
		xd := xstreamDoc{CPUBind: -1}
		if err := decodeStrict(rawX, &xd, path); err != nil {
			return err
		}
		if xd.Scheduler == nil {
			return schemaError(path+".scheduler", "required section is missing", nil)
		}
		sd := schedulerDoc{Type: SchedulerBasicWait}
		if err := decodeStrict(xd.Scheduler, &sd, path+".scheduler"); err != nil {
			return err
		}
		if sd.Pools == nil {
			return schemaError(path+".scheduler.pools", "required field is missing", nil)
		}
		poolNames := make([]string, 0, len(sd.Pools))
		for _, ref := range sd.Pools {
			name, err := resolvePoolRef(ref, &a.pools, path+".scheduler.pools")
			if err != nil {
				return err
			}
			poolNames = append(poolNames, name)
		}
		x := NewXstreamSpec(xd.Name, poolNames...)
		x.CPUBind = xd.CPUBind
		x.Affinity = xd.Affinity
		x.Scheduler.Type = sd.Type
		if _, err := a.AddXstream(x); err != nil {
			return err
		}
	}
	return nil
}

func parseMercury(raw json.RawMessage, m *MercurySpec) error {
	doc := mercuryDoc{
		Listening:       true,
		MaxContexts:     1,
		RequestPostIncr: 256,
		RequestPostInit: 256,
		Version:         "unknown",
	}
	if err := decodeStrict(raw, &doc, "margo.mercury"); err != nil {
		return err
	}
	if doc.Address == "" {
		return schemaError("margo.mercury.address", "required field is missing", nil)
	}
	*m = MercurySpec{
		Address:         doc.Address,
		Listening:       doc.Listening,
		IPSubnet:        doc.IPSubnet,
		AuthKey:         doc.AuthKey,
		AutoSM:          doc.AutoSM,
		MaxContexts:     doc.MaxContexts,
		NaNoBlock:       doc.NaNoBlock,
		NaNoRetry:       doc.NaNoRetry,
		NoBulkEager:     doc.NoBulkEager,
		NoLoopback:      doc.NoLoopback,
		RequestPostIncr: doc.RequestPostIncr,
		RequestPostInit: doc.RequestPostInit,
		Stats:           doc.Stats,
		Version:         doc.Version,
	}
	return nil
}

// resolvePoolRef resolves a wire pool reference, a name or a
// positional index, to the name of an existing pool.
func resolvePoolRef(raw json.RawMessage, pools *Collection[*PoolSpec], field string) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if !pools.Has(name) {
			return "", newError(KindUnknownPoolReference, field, name, "no pool with this name")
		}
		return name, nil
	}
	var index int
	if err := json.Unmarshal(raw, &index); err == nil {
		pool, err := pools.At(index)
		if err != nil {
			return "", newError(KindUnknownPoolReference, field, fmt.Sprintf("%d", index), "no pool at this index")
		}
		return pool.name, nil
	}
	return "", schemaError(field, "expected a pool name or index", nil)
}

func parseDependencies(raw map[string]json.RawMessage, deps *DependencyMap, path string) error {
	for name, value := range raw {
		field := path + ".dependencies." + name
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			if err := deps.Add(name, single); err != nil {
				return err
			}
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err != nil {
			return schemaError(field, "expected an expression or a list of expressions", err)
		}
		if len(list) == 0 {
			return schemaError(field, "at least one expression is required", nil)
		}
		if err := deps.Add(name, list...); err != nil {
			return err
		}
	}
	return nil
}
