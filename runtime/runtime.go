package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/mesh-runtime/engine"
	"github.com/wippyai/mesh-runtime/frame"
	"github.com/wippyai/mesh-runtime/rpc"
	"github.com/wippyai/mesh-runtime/schema"
	"github.com/wippyai/mesh-runtime/transport"
	"github.com/wippyai/mesh-runtime/value"
)

// Component pairs a validated engine artifact with its extracted ledger.
// Immutable; shared by reference by every instance derived from it.
type Component struct {
	ID         ComponentID
	engineComp *engine.Component
	schema     *schema.Schema
}

// Schema returns the component's ledger.
func (c *Component) Schema() *schema.Schema { return c.schema }

// instanceEntry is one registry row for a live instance.
type instanceEntry struct {
	handle   InstanceHandle
	comp     *Component
	remoteID string
}

// Runtime is the registry: components, peers, live instances, remote-id
// routing, and ID allocation. The registry exclusively owns the map
// entries; removal is the sole destruction path.
type Runtime struct {
	engine *engine.Engine

	compMu     sync.RWMutex
	components map[ComponentID]*Component

	peerMu sync.RWMutex
	peers  map[PeerID]*rpc.Client

	instMu    sync.RWMutex
	instances map[InstanceID]*instanceEntry
	remoteIDs map[string]InstanceID

	nextComponent atomic.Uint64
	nextPeer      atomic.Uint64
	nextInstance  atomic.Uint64
}

// New creates an empty runtime.
func New() *Runtime {
	return &Runtime{
		engine:     engine.New(),
		components: make(map[ComponentID]*Component),
		peers:      make(map[PeerID]*rpc.Client),
		instances:  make(map[InstanceID]*instanceEntry),
		remoteIDs:  make(map[string]InstanceID),
	}
}

// Close removes every instance and closes every peer.
func (r *Runtime) Close(ctx context.Context) error {
	r.instMu.Lock()
	ids := make([]InstanceID, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.instMu.Unlock()
	for _, id := range ids {
		if err := r.RemoveInstance(ctx, id); err != nil {
			Logger().Warn("remove instance on close", zap.Stringer("id", id), zap.Error(err))
		}
	}

	r.peerMu.Lock()
	defer r.peerMu.Unlock()
	for id, client := range r.peers {
		if err := client.Close(); err != nil {
			Logger().Warn("close peer", zap.Stringer("id", id), zap.Error(err))
		}
		delete(r.peers, id)
	}
	return nil
}

// RegisterComponent compiles and registers component bytes with their WIT
// description. The extracted ledger is cross-checked against the binary's
// core signatures before the component becomes visible.
func (r *Runtime) RegisterComponent(ctx context.Context, wasmBytes []byte, witText string) (ComponentID, error) {
	s, err := schema.Parse(witText)
	if err != nil {
		return 0, err
	}
	ec, err := r.engine.Compile(ctx, wasmBytes)
	if err != nil {
		return 0, err
	}
	if err := ec.CheckSchema(s); err != nil {
		return 0, err
	}

	id := ComponentID(r.nextComponent.Add(1))
	comp := &Component{ID: id, engineComp: ec, schema: s}

	r.compMu.Lock()
	r.components[id] = comp
	r.compMu.Unlock()

	Logger().Debug("registered component", zap.Stringer("id", id))
	return id, nil
}

func (r *Runtime) component(id ComponentID) (*Component, error) {
	r.compMu.RLock()
	defer r.compMu.RUnlock()
	comp, ok := r.components[id]
	if !ok {
		return nil, ErrUnknownComponent
	}
	return comp, nil
}

// ComponentSchema returns the ledger of a registered component.
func (r *Runtime) ComponentSchema(id ComponentID) (*schema.Schema, error) {
	comp, err := r.component(id)
	if err != nil {
		return nil, err
	}
	return comp.schema, nil
}

// AddPeer wraps the transport in a client whose pump also dispatches this
// peer's inbound calls into the registry, and registers it.
func (r *Runtime) AddPeer(tr transport.Transport) PeerID {
	id := PeerID(r.nextPeer.Add(1))
	client := rpc.NewClientWithConfig(tr, &rpc.Config{
		Handler: func(ctx context.Context, call *frame.Call) []byte {
			return r.dispatch(ctx, call)
		},
	})

	r.peerMu.Lock()
	r.peers[id] = client
	r.peerMu.Unlock()

	Logger().Debug("added peer", zap.Stringer("id", id))
	return id
}

// Peer returns the client for a registered peer.
func (r *Runtime) Peer(id PeerID) (*rpc.Client, error) {
	r.peerMu.RLock()
	defer r.peerMu.RUnlock()
	client, ok := r.peers[id]
	if !ok {
		return nil, ErrUnknownPeer
	}
	return client, nil
}

func (r *Runtime) nextInstanceID() InstanceID {
	return InstanceID(r.nextInstance.Add(1))
}

func (r *Runtime) registerInstance(id InstanceID, handle InstanceHandle, comp *Component, remoteID string) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	r.instances[id] = &instanceEntry{handle: handle, comp: comp, remoteID: remoteID}
	if remoteID != "" {
		r.remoteIDs[remoteID] = id
	}
}

func (r *Runtime) instanceEntry(id InstanceID) (*instanceEntry, error) {
	r.instMu.RLock()
	defer r.instMu.RUnlock()
	entry, ok := r.instances[id]
	if !ok {
		return nil, ErrUnknownInstance
	}
	return entry, nil
}

// Handle returns the cloneable handle of a live instance.
func (r *Runtime) Handle(id InstanceID) (InstanceHandle, error) {
	entry, err := r.instanceEntry(id)
	if err != nil {
		return InstanceHandle{}, err
	}
	return entry.handle, nil
}

// RegisterInstance binds a remote identifier to a live instance, making it
// addressable by incoming calls.
func (r *Runtime) RegisterInstance(remoteID string, id InstanceID) error {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	entry, ok := r.instances[id]
	if !ok {
		return ErrUnknownInstance
	}
	entry.remoteID = remoteID
	r.remoteIDs[remoteID] = id
	return nil
}

// LookupInstanceByRemoteID resolves a remote identifier.
func (r *Runtime) LookupInstanceByRemoteID(remoteID string) (InstanceID, bool) {
	r.instMu.RLock()
	defer r.instMu.RUnlock()
	id, ok := r.remoteIDs[remoteID]
	return id, ok
}

// Exec invokes an exported function on a live instance. All invocations on
// one instance serialize through its handle.
func (r *Runtime) Exec(ctx context.Context, id InstanceID, iface, method string, args []value.Value) ([]value.Value, error) {
	entry, err := r.instanceEntry(id)
	if err != nil {
		return nil, err
	}
	fn, ok := entry.comp.schema.ExportFunc(iface, method)
	if !ok {
		return nil, ErrMethodNotFound
	}

	var out []value.Value
	err = entry.handle.Exec(ctx, func(ctx context.Context, inst *engine.Instance) error {
		res, err := inst.Call(ctx, iface, method, fn.Params, fn.Results, args)
		out = res
		return err
	})
	if err != nil {
		r.noteFailure(id, entry, err)
		return nil, err
	}
	return out, nil
}

// noteFailure applies the terminal-state policy: budget exhaustion kills
// the instance.
func (r *Runtime) noteFailure(id InstanceID, entry *instanceEntry, err error) {
	if errors.Is(err, engine.ErrExecBudget) || errors.Is(err, engine.ErrOutOfMemory) {
		Logger().Warn("instance exhausted its budget",
			zap.Stringer("id", id), zap.Error(err))
		entry.handle.terminate()
	}
}

// RemoveInstance terminates an instance: the entry leaves the registry, any
// in-flight execution is cancelled, and the store is destroyed once its
// critical section releases. Removal while the handle is in use does not
// deadlock.
func (r *Runtime) RemoveInstance(ctx context.Context, id InstanceID) error {
	r.instMu.Lock()
	entry, ok := r.instances[id]
	if ok {
		delete(r.instances, id)
		if entry.remoteID != "" {
			delete(r.remoteIDs, entry.remoteID)
		}
	}
	r.instMu.Unlock()
	if !ok {
		return ErrUnknownInstance
	}

	entry.handle.terminate()
	if err := entry.handle.shutdown(ctx); err != nil {
		return err
	}
	Logger().Debug("removed instance", zap.Stringer("id", id))
	return nil
}
