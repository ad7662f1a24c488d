package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mochi-hpc/go-bedrock/pkg/service/protocol"
	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

// fakeDaemon speaks the daemon side of the control protocol over in-memory
// pipes. It answers every request in order and records what it received.
type fakeDaemon struct {
	enc  *protocol.Encoder
	dec  *protocol.Decoder
	tree *spec.ProcSpec

	// silent suppresses the initial ready message
	silent bool

	mu       sync.Mutex
	received []*protocol.RequestMessage
}

func (d *fakeDaemon) record(req *protocol.RequestMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, req)
}

// requestTypes returns the request types seen so far, in order.
func (d *fakeDaemon) requestTypes() []protocol.RequestType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]protocol.RequestType, len(d.received))
	for i, req := range d.received {
		types[i] = req.Type
	}
	return types
}

func (d *fakeDaemon) paramsOf(index int) json.RawMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received[index].Params
}

func (d *fakeDaemon) serve(out *io.PipeWriter) {
	defer out.Close()

	if !d.silent {
		d.announce()
	}
	d.loop()
}

func (d *fakeDaemon) announce() {
	_ = d.enc.EncodeReady(&protocol.ReadyMessage{
		Version:  "0.1.0",
		Address:  "na+sm://4242-0",
		Protocol: "na+sm",
		PID:      4242,
	})
}

func (d *fakeDaemon) loop() {
	for {
		req, err := d.dec.DecodeRequest()
		if err != nil {
			_ = d.enc.EncodeExit(&protocol.ExitMessage{Reason: "stdin closed"})
			return
		}
		d.record(req)

		switch req.Type {
		case protocol.RequestTypeConfigGet:
			doc, err := json.Marshal(d.tree)
			if err != nil {
				_ = d.enc.EncodeError(&protocol.ErrorMessage{
					RequestID: req.ID,
					Code:      protocol.ErrCodeInternal,
					Message:   err.Error(),
				})
				continue
			}
			d.done(req.ID, protocol.ConfigGetResult{Config: doc})

		case protocol.RequestTypeConfigQuery:
			d.done(req.ID, protocol.ConfigQueryResult{Result: json.RawMessage(`{"providers":1}`)})

		case protocol.RequestTypeModuleLoad:
			var params protocol.ModuleLoadParams
			_ = protocol.ParseParams(req.Params, &params)
			if params.Name == "broken" {
				_ = d.enc.EncodeError(&protocol.ErrorMessage{
					RequestID: req.ID,
					Code:      protocol.ErrCodeUnknownModule,
					Message:   "cannot open shared object file",
					Details:   map[string]string{"path": params.Path},
				})
				continue
			}
			d.done(req.ID, nil)

		default:
			d.done(req.ID, map[string]string{})
		}
	}
}

func (d *fakeDaemon) done(requestID string, result any) {
	var raw json.RawMessage
	if result != nil {
		raw, _ = json.Marshal(result)
	}
	_ = d.enc.EncodeDone(&protocol.DoneMessage{
		RequestID: requestID,
		Result:    raw,
		Duration:  0.001,
	})
}

// startFakeDaemon wires a handle and a fake daemon together over pipes.
func startFakeDaemon(t *testing.T, tree *spec.ProcSpec, silent bool) (*ServiceHandle, *fakeDaemon) {
	t.Helper()

	handleReads, daemonWrites := io.Pipe()
	daemonReads, handleWrites := io.Pipe()

	daemon := &fakeDaemon{
		enc:    protocol.NewEncoder(daemonWrites),
		dec:    protocol.NewDecoder(daemonReads),
		tree:   tree,
		silent: silent,
	}
	go daemon.serve(daemonWrites)

	handle, err := NewHandle(&HandleConfig{
		Writer:         handleWrites,
		Reader:         handleReads,
		StartupTimeout: 2 * time.Second,
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewHandle() error = %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })
	return handle, daemon
}

func readyHandle(t *testing.T, tree *spec.ProcSpec) (*ServiceHandle, *fakeDaemon) {
	t.Helper()
	handle, daemon := startFakeDaemon(t, tree, false)
	if err := handle.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	return handle, daemon
}

func TestServiceHandle_WaitReady(t *testing.T) {
	tree := spec.NewProcSpec("na+sm")
	handle, _ := readyHandle(t, tree)

	ready := handle.Ready()
	if ready == nil {
		t.Fatal("Ready() = nil after successful WaitReady")
	}
	if ready.Address != "na+sm://4242-0" {
		t.Errorf("Address = %s, want na+sm://4242-0", ready.Address)
	}
	if handle.Address() != "na+sm://4242-0" {
		t.Errorf("handle.Address() = %s", handle.Address())
	}
	if handle.PID() != 4242 {
		t.Errorf("PID() = %d, want 4242", handle.PID())
	}
}

func TestServiceHandle_WaitReady_Timeout(t *testing.T) {
	handleReads, daemonWrites := io.Pipe()
	_, handleWrites := io.Pipe()
	defer daemonWrites.Close()

	handle, err := NewHandle(&HandleConfig{
		Writer:         handleWrites,
		Reader:         handleReads,
		StartupTimeout: 50 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewHandle() error = %v", err)
	}
	defer handle.Close()

	err = handle.WaitReady(context.Background())
	if err == nil {
		t.Fatal("WaitReady() should time out when the daemon stays silent")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("Error = %v, want timeout", err)
	}

	// Requests must be rejected before ready
	if err := handle.LoadModule(context.Background(), "m", "/lib/m.so"); err == nil {
		t.Error("LoadModule() should fail before the daemon is ready")
	}
}

func TestServiceHandle_GetConfig(t *testing.T) {
	tree := spec.NewProcSpec("ofi+tcp://127.0.0.1:1234")
	if _, err := tree.Margo().Argobots().AddPool(spec.NewPoolSpec("my_pool")); err != nil {
		t.Fatalf("AddPool() error = %v", err)
	}
	handle, _ := readyHandle(t, tree)

	got, err := handle.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}

	wantDoc, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	gotDoc, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.Equal(gotDoc, wantDoc) {
		t.Errorf("GetConfig() round trip mismatch:\ngot  %s\nwant %s", gotDoc, wantDoc)
	}
}

func TestServiceHandle_QueryConfig(t *testing.T) {
	tree := spec.NewProcSpec("na+sm")
	handle, daemon := readyHandle(t, tree)

	value, err := handle.QueryConfig(context.Background(), "return len(config.providers)")
	if err != nil {
		t.Fatalf("QueryConfig() error = %v", err)
	}
	if string(value) != `{"providers":1}` {
		t.Errorf("QueryConfig() = %s", value)
	}

	var params protocol.ConfigQueryParams
	if err := protocol.ParseParams(daemon.paramsOf(0), &params); err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}
	if params.Script != "return len(config.providers)" {
		t.Errorf("Script = %q", params.Script)
	}
}

func TestServiceHandle_DaemonError(t *testing.T) {
	tree := spec.NewProcSpec("na+sm")
	handle, _ := readyHandle(t, tree)

	err := handle.LoadModule(context.Background(), "broken", "/lib/broken.so")
	if err == nil {
		t.Fatal("LoadModule() should surface the daemon error")
	}

	var de *DaemonError
	if !errors.As(err, &de) {
		t.Fatalf("Error = %T, want *DaemonError", err)
	}
	if de.Code != protocol.ErrCodeUnknownModule {
		t.Errorf("Code = %s, want %s", de.Code, protocol.ErrCodeUnknownModule)
	}
	if de.Details["path"] != "/lib/broken.so" {
		t.Errorf("Details = %v", de.Details)
	}
	if IsRetryable(err) {
		t.Error("IsRetryable() = true for a permanent daemon error")
	}
}

func TestServiceHandle_StartProvider(t *testing.T) {
	tree := spec.NewProcSpec("na+sm")
	if _, err := tree.Margo().Argobots().AddPool(spec.NewPoolSpec("my_pool")); err != nil {
		t.Fatalf("AddPool() error = %v", err)
	}
	pr := spec.NewProviderSpec("my_provider", "module_a", 42)
	pr.Pool = "my_pool"
	pr.Config = json.RawMessage(`{"path":"/tmp/db"}`)
	if err := pr.Dependencies().Add("storage", "module_b:1", "module_b:2"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	stored, err := tree.AddProvider(pr)
	if err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}

	handle, daemon := readyHandle(t, tree)
	if err := handle.StartProvider(context.Background(), stored); err != nil {
		t.Fatalf("StartProvider() error = %v", err)
	}

	var params protocol.ProviderStartParams
	if err := protocol.ParseParams(daemon.paramsOf(0), &params); err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}
	if params.Name != "my_provider" || params.Type != "module_a" || params.ProviderID != 42 {
		t.Errorf("Params = %+v", params)
	}
	if params.Pool != "my_pool" {
		t.Errorf("Pool = %s, want my_pool", params.Pool)
	}
	if string(params.Config) != `{"path":"/tmp/db"}` {
		t.Errorf("Config = %s", params.Config)
	}
	if string(params.Dependencies) != `{"storage":["module_b:1","module_b:2"]}` {
		t.Errorf("Dependencies = %s", params.Dependencies)
	}
}

func TestServiceHandle_Close(t *testing.T) {
	tree := spec.NewProcSpec("na+sm")
	handle, _ := readyHandle(t, tree)

	if err := handle.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Closing twice is fine
	if err := handle.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := handle.LoadModule(context.Background(), "m", "/lib/m.so"); err == nil {
		t.Error("LoadModule() should fail on a closed handle")
	}
}

func TestBootstrap_Order(t *testing.T) {
	tree := spec.NewProcSpec("na+sm")
	if _, err := tree.Margo().Argobots().AddPool(spec.NewPoolSpec("io_pool")); err != nil {
		t.Fatalf("AddPool() error = %v", err)
	}
	if err := tree.SetLibrary("module_a", "/usr/lib/libmodule_a.so"); err != nil {
		t.Fatalf("SetLibrary() error = %v", err)
	}
	if err := tree.SetLibrary("module_b", "/usr/lib/libmodule_b.so"); err != nil {
		t.Fatalf("SetLibrary() error = %v", err)
	}
	if _, err := tree.AddSSG(spec.NewSSGSpec("my_group", spec.PrimaryName)); err != nil {
		t.Fatalf("AddSSG() error = %v", err)
	}
	if _, err := tree.AddAbtIO(spec.NewAbtIOSpec("my_io", "io_pool")); err != nil {
		t.Fatalf("AddAbtIO() error = %v", err)
	}

	base := spec.NewProviderSpec("base", "module_a", 1)
	if _, err := tree.AddProvider(base); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}
	top := spec.NewProviderSpec("top", "module_b", 1)
	if err := top.Dependencies().Add("storage", "module_a:1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := tree.AddProvider(top); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}
	if _, err := tree.AddClient(spec.NewClientSpec("my_client", "module_b")); err != nil {
		t.Fatalf("AddClient() error = %v", err)
	}

	handle, daemon := readyHandle(t, tree)
	if err := Bootstrap(context.Background(), handle, tree); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	got := daemon.requestTypes()
	want := []protocol.RequestType{
		protocol.RequestTypeModuleLoad,
		protocol.RequestTypeModuleLoad,
		protocol.RequestTypeSSGAddGroup,
		protocol.RequestTypeAbtIOCreate,
		protocol.RequestTypeProviderStart,
		protocol.RequestTypeProviderStart,
		protocol.RequestTypeClientCreate,
	}
	if len(got) != len(want) {
		t.Fatalf("Requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Request %d = %s, want %s (full order: %v)", i, got[i], want[i], got)
		}
	}

	// The dependency target must start before its dependent
	var first, second protocol.ProviderStartParams
	if err := protocol.ParseParams(daemon.paramsOf(4), &first); err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}
	if err := protocol.ParseParams(daemon.paramsOf(5), &second); err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}
	if first.Name != "base" || second.Name != "top" {
		t.Errorf("Provider start order = [%s %s], want [base top]", first.Name, second.Name)
	}
}

func TestBootstrap_StopsOnFailure(t *testing.T) {
	tree := spec.NewProcSpec("na+sm")
	if err := tree.SetLibrary("broken", "/usr/lib/libbroken.so"); err != nil {
		t.Fatalf("SetLibrary() error = %v", err)
	}
	if _, err := tree.AddProvider(spec.NewProviderSpec("p", "broken", 0)); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}

	handle, daemon := readyHandle(t, tree)
	err := Bootstrap(context.Background(), handle, tree)
	if err == nil {
		t.Fatal("Bootstrap() should stop when a module fails to load")
	}
	var de *DaemonError
	if !errors.As(err, &de) {
		t.Fatalf("Error = %T, want *DaemonError in chain", err)
	}
	if got := daemon.requestTypes(); len(got) != 1 {
		t.Errorf("Requests after failure = %v, want only the failed module.load", got)
	}
}

func TestNewHandle_Validation(t *testing.T) {
	if _, err := NewHandle(nil); err == nil {
		t.Error("NewHandle(nil) should fail")
	}
	if _, err := NewHandle(&HandleConfig{}); err == nil {
		t.Error("NewHandle() without pipes should fail")
	}
}
