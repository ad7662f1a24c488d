// Package main implements a stand-in Bedrock daemon for integration
// work. It honors the real daemon's command line, parses the descriptor
// it is given, and serves the control protocol over stdin/stdout with an
// in-memory tree instead of a live Margo instance.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mochi-hpc/go-bedrock/pkg/config"
	"github.com/mochi-hpc/go-bedrock/pkg/service/protocol"
	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

const mockVersion = "0.1.0-mock"

// daemon holds the state shared by every control session: the tree and
// the evaluator. Mutations are serialized through mu so the stdio
// session and socket sessions see one consistent tree.
type daemon struct {
	evaluator *config.QueryEvaluator
	logger    zerolog.Logger
	address   string
	proto     string

	mu       sync.Mutex
	tree     *spec.ProcSpec
	requests int
}

// session is one control connection: the stdio pair or one accepted
// socket connection.
type session struct {
	d       *daemon
	encoder *protocol.Encoder
	decoder *protocol.Decoder
	name    string
}

func main() {
	// Argv contract of the real daemon: bedrock <protocol> -v <level> -c <file>
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		fmt.Fprintf(os.Stderr, "usage: %s <protocol> [-v <level>] [-c <config.json>] [-l <listen-addr>]\n", os.Args[0])
		os.Exit(2)
	}
	proto := os.Args[1]

	fs := flag.NewFlagSet("bedrock-mock", flag.ExitOnError)
	logLevel := fs.String("v", "info", "log level")
	configPath := fs.String("c", "", "descriptor file")
	listenAddr := fs.String("l", "", "also serve the control protocol on this tcp address or unix socket path")
	_ = fs.Parse(os.Args[2:])

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Str("component", "bedrock-mock").Logger()

	tree, err := loadTree(proto, *configPath)
	if err != nil {
		logger.Error().Err(err).Str("config", *configPath).Msg("Cannot start from descriptor")
		os.Exit(1)
	}

	// The runtime owns the version sentinels; resolve them the way the
	// real daemon does after initializing its libraries.
	tree.Margo().Mercury.Version = mockVersion
	tree.Margo().Argobots().Version = mockVersion

	address := tree.Margo().Mercury.Address
	if address == proto {
		// Self-assigned address form, as na+sm would produce.
		address = fmt.Sprintf("%s://%d-0", proto, os.Getpid())
	}

	d := &daemon{
		evaluator: config.NewQueryEvaluator(10 * time.Second),
		logger:    logger,
		address:   address,
		proto:     proto,
		tree:      tree,
	}

	if *listenAddr != "" {
		if err := d.listen(*listenAddr); err != nil {
			logger.Error().Err(err).Str("listen", *listenAddr).Msg("Cannot open control socket")
			os.Exit(1)
		}
	}
	os.Exit(d.run())
}

// loadTree parses the descriptor file, or starts from the minimal
// descriptor for the given protocol when no file is given.
func loadTree(proto, path string) (*spec.ProcSpec, error) {
	if path == "" {
		return spec.NewProcSpec(proto), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return spec.ParseProcSpec(data)
}

// run serves the stdio control session. Closed stdin is the shutdown
// signal, exactly as with the real daemon under a deployer.
func (d *daemon) run() int {
	s := &session{
		d:       d,
		encoder: protocol.NewEncoder(os.Stdout),
		decoder: protocol.NewDecoder(os.Stdin),
		name:    "stdio",
	}
	if err := s.announce(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to announce readiness")
		return 1
	}
	d.logger.Info().Str("address", d.address).Msg("Mock daemon ready")
	s.serve("stdin closed")
	return 0
}

// listen accepts control connections on a tcp address or unix socket
// path; every connection gets its own session over the shared tree.
func (d *daemon) listen(addr string) error {
	network := "tcp"
	if strings.HasPrefix(addr, "/") || strings.HasPrefix(addr, "@") {
		network = "unix"
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	d.logger.Info().Str("listen", ln.Addr().String()).Msg("Control socket open")
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				s := &session{
					d:       d,
					encoder: protocol.NewEncoder(conn),
					decoder: protocol.NewDecoder(conn),
					name:    conn.RemoteAddr().String(),
				}
				if err := s.announce(); err != nil {
					return
				}
				s.serve("connection closed")
			}(conn)
		}
	}()
	return nil
}

func (s *session) announce() error {
	return s.encoder.EncodeReady(&protocol.ReadyMessage{
		Version:  mockVersion,
		Address:  s.d.address,
		Protocol: s.d.proto,
		PID:      os.Getpid(),
		Metadata: map[string]string{"mock": "true"},
	})
}

func (s *session) serve(closeReason string) {
	for {
		req, err := s.decoder.DecodeRequest()
		if err != nil {
			s.d.mu.Lock()
			total := s.d.requests
			s.d.mu.Unlock()
			_ = s.encoder.EncodeExit(&protocol.ExitMessage{
				Reason:        closeReason,
				RequestsTotal: total,
			})
			s.d.logger.Info().Str("session", s.name).Int("requests", total).Msg("Session closed")
			return
		}
		s.handle(req)
	}
}

func (s *session) handle(req *protocol.RequestMessage) {
	started := time.Now()

	s.d.mu.Lock()
	s.d.requests++
	result, err := s.d.dispatch(req)
	s.d.mu.Unlock()

	if err != nil {
		s.d.logger.Warn().Err(err).Str("type", string(req.Type)).Msg("Request failed")
		_ = s.encoder.EncodeError(&protocol.ErrorMessage{
			RequestID: req.ID,
			Code:      errorCode(err),
			Message:   err.Error(),
		})
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		_ = s.encoder.EncodeError(&protocol.ErrorMessage{
			RequestID: req.ID,
			Code:      protocol.ErrCodeInternal,
			Message:   err.Error(),
		})
		return
	}
	s.d.logger.Debug().Str("type", string(req.Type)).Msg("Request served")
	_ = s.encoder.EncodeDone(&protocol.DoneMessage{
		RequestID: req.ID,
		Result:    data,
		Duration:  time.Since(started).Seconds(),
	})
}

func (d *daemon) dispatch(req *protocol.RequestMessage) (any, error) {
	switch req.Type {
	case protocol.RequestTypeConfigGet:
		doc, err := json.Marshal(d.tree)
		if err != nil {
			return nil, err
		}
		return protocol.ConfigGetResult{Config: doc}, nil

	case protocol.RequestTypeConfigQuery:
		var params protocol.ConfigQueryParams
		if err := protocol.ParseParams(req.Params, &params); err != nil {
			return nil, err
		}
		value, err := d.evaluator.QueryTree(context.Background(), d.tree, params.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errScript, err)
		}
		return protocol.ConfigQueryResult{Result: value}, nil

	case protocol.RequestTypeSSGAddGroup:
		var params protocol.SSGAddGroupParams
		if err := protocol.ParseParams(req.Params, &params); err != nil {
			return nil, err
		}
		group, err := decodeGroup(params.Group)
		if err != nil {
			return nil, err
		}
		added, err := d.tree.AddSSG(group)
		if err != nil {
			return nil, err
		}
		return protocol.SSGAddGroupResult{Name: added.Name()}, nil

	case protocol.RequestTypeAbtIOCreate:
		var params protocol.AbtIOCreateParams
		if err := protocol.ParseParams(req.Params, &params); err != nil {
			return nil, err
		}
		instance := spec.NewAbtIOSpec(params.Name, params.Pool)
		instance.Config = params.Config
		added, err := d.tree.AddAbtIO(instance)
		if err != nil {
			return nil, err
		}
		return protocol.AbtIOCreateResult{Name: added.Name()}, nil

	case protocol.RequestTypeModuleLoad:
		var params protocol.ModuleLoadParams
		if err := protocol.ParseParams(req.Params, &params); err != nil {
			return nil, err
		}
		if err := d.tree.SetLibrary(params.Name, params.Path); err != nil {
			return nil, err
		}
		return protocol.ModuleLoadResult{Name: params.Name, Path: params.Path}, nil

	case protocol.RequestTypeProviderStart:
		var params protocol.ProviderStartParams
		if err := protocol.ParseParams(req.Params, &params); err != nil {
			return nil, err
		}
		if _, ok := d.tree.LibraryPath(params.Type); !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownModule, params.Type)
		}
		pr := spec.NewProviderSpec(params.Name, params.Type, params.ProviderID)
		pr.Pool = params.Pool
		pr.Config = params.Config
		if err := decodeDependencies(params.Dependencies, pr.Dependencies()); err != nil {
			return nil, err
		}
		added, err := d.tree.AddProvider(pr)
		if err != nil {
			return nil, err
		}
		return protocol.ProviderStartResult{Name: added.Name(), ProviderID: added.ProviderID()}, nil

	case protocol.RequestTypeClientCreate:
		var params protocol.ClientCreateParams
		if err := protocol.ParseParams(req.Params, &params); err != nil {
			return nil, err
		}
		c := spec.NewClientSpec(params.Name, params.Type)
		c.Config = params.Config
		if err := decodeDependencies(params.Dependencies, c.Dependencies()); err != nil {
			return nil, err
		}
		added, err := d.tree.AddClient(c)
		if err != nil {
			return nil, err
		}
		return protocol.ClientCreateResult{Name: added.Name()}, nil

	default:
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}
}

// decodeGroup reads the wire form of one SSG group, the same shape the
// serializer emits inside the "ssg" collection.
func decodeGroup(doc json.RawMessage) (spec.SSGSpec, error) {
	var wire struct {
		Name       string          `json:"name"`
		Credential int64           `json:"credential"`
		Bootstrap  string          `json:"bootstrap"`
		GroupFile  string          `json:"group_file"`
		Pool       string          `json:"pool"`
		Swim       json.RawMessage `json:"swim"`
	}
	wire.Credential = -1
	wire.Bootstrap = spec.BootstrapInit
	if err := json.Unmarshal(doc, &wire); err != nil {
		return spec.SSGSpec{}, fmt.Errorf("malformed group document: %w", err)
	}
	g := spec.NewSSGSpec(wire.Name, wire.Pool)
	g.Credential = wire.Credential
	g.Bootstrap = wire.Bootstrap
	g.GroupFile = wire.GroupFile
	if wire.Swim != nil {
		sw := struct {
			PeriodLengthMs        int  `json:"period_length_ms"`
			SuspectTimeoutPeriods int  `json:"suspect_timeout_periods"`
			SubgroupMemberCount   int  `json:"subgroup_member_count"`
			Disabled              bool `json:"disabled"`
		}{SuspectTimeoutPeriods: -1, SubgroupMemberCount: -1}
		if err := json.Unmarshal(wire.Swim, &sw); err != nil {
			return spec.SSGSpec{}, fmt.Errorf("malformed swim document: %w", err)
		}
		g.Swim = spec.SwimSpec{
			PeriodLengthMs:        sw.PeriodLengthMs,
			SuspectTimeoutPeriods: sw.SuspectTimeoutPeriods,
			SubgroupMemberCount:   sw.SubgroupMemberCount,
			Disabled:              sw.Disabled,
		}
	}
	return g, nil
}

// decodeDependencies reads the wire dependency map: each value is one
// expression string or an ordered array of them.
func decodeDependencies(doc json.RawMessage, deps *spec.DependencyMap) error {
	if len(doc) == 0 {
		return nil
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(doc, &wire); err != nil {
		return fmt.Errorf("malformed dependency map: %w", err)
	}
	for name, raw := range wire {
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			if err := deps.Add(name, single); err != nil {
				return err
			}
			continue
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return fmt.Errorf("dependency %q is neither a string nor an array", name)
		}
		if err := deps.Add(name, many...); err != nil {
			return err
		}
	}
	return nil
}

var (
	errUnknownModule = errors.New("no module loaded for type")
	errScript        = errors.New("script failed")
)

// errorCode maps validation failures to protocol error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errUnknownModule):
		return protocol.ErrCodeUnknownModule
	case errors.Is(err, errScript):
		return protocol.ErrCodeScript
	case spec.IsDuplicateName(err) || spec.IsDuplicateProviderID(err):
		return protocol.ErrCodeDuplicate
	case spec.IsUnknownPoolReference(err), spec.IsSchemaError(err),
		spec.IsInvalidValue(err), spec.IsInvalidDependencyExpression(err):
		return protocol.ErrCodeInvalidConfig
	default:
		return protocol.ErrCodeInternal
	}
}
