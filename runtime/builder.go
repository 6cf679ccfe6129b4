package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/wippyai/mesh-runtime/engine"
)

// linkKind selects the strategy satisfying one imported interface.
type linkKind uint8

const (
	linkSystem linkKind = iota
	linkLocal
	linkRemote
)

// link is the closed sum of strategies: exactly the fields for its kind
// are set.
type link struct {
	kind     linkKind
	iface    string
	provider SystemProvider // system
	instance InstanceID     // local
	peer     PeerID         // remote
	target   string         // remote
}

// InstanceBuilder accumulates links, context configuration, and a budget,
// then instantiates. Configuration errors are deferred and reported by
// Instantiate.
type InstanceBuilder struct {
	rt        *Runtime
	component ComponentID
	links     []link
	ctx       *ContextBuilder
	budget    Budget
	remoteID  string
}

// NewInstanceBuilder starts building an instance of a registered
// component.
func NewInstanceBuilder(rt *Runtime, component ComponentID) *InstanceBuilder {
	return &InstanceBuilder{
		rt:        rt,
		component: component,
		ctx:       NewContextBuilder(),
	}
}

// LinkSystem satisfies iface with a host-side provider.
func (b *InstanceBuilder) LinkSystem(iface string, provider SystemProvider) *InstanceBuilder {
	b.links = append(b.links, link{kind: linkSystem, iface: iface, provider: provider})
	return b
}

// LinkLocal satisfies iface with another live instance's exports.
func (b *InstanceBuilder) LinkLocal(iface string, target InstanceID) *InstanceBuilder {
	b.links = append(b.links, link{kind: linkLocal, iface: iface, instance: target})
	return b
}

// LinkRemote satisfies iface through a peer's client, naming a remote
// instance.
func (b *InstanceBuilder) LinkRemote(iface string, peer PeerID, target string) *InstanceBuilder {
	b.links = append(b.links, link{kind: linkRemote, iface: iface, peer: peer, target: target})
	return b
}

// Budget sets the instance's resource budget.
func (b *InstanceBuilder) Budget(budget Budget) *InstanceBuilder {
	b.budget = budget
	return b
}

// ConfigureContext exposes the context builder for capabilities,
// environment, and provider state.
func (b *InstanceBuilder) ConfigureContext(fn func(*ContextBuilder)) *InstanceBuilder {
	fn(b.ctx)
	return b
}

// RegisterAs binds the new instance to a remote identifier, making it a
// target for incoming RPC dispatch.
func (b *InstanceBuilder) RegisterAs(remoteID string) *InstanceBuilder {
	b.remoteID = remoteID
	return b
}

// Instantiate materializes the linker, finalizes the context, creates the
// store under the budget, and instantiates the component.
func (b *InstanceBuilder) Instantiate(ctx context.Context) (InstanceID, error) {
	comp, err := b.rt.component(b.component)
	if err != nil {
		return 0, err
	}

	limits, err := b.budget.limits()
	if err != nil {
		return 0, err
	}

	// The instance ID is allocated up front so self-links are rejectable
	// before any wiring happens.
	id := b.rt.nextInstanceID()

	linksByIface := make(map[string]link, len(b.links))
	for _, l := range b.links {
		if l.kind == linkLocal && l.instance == id {
			return 0, ErrSelfLink
		}
		linksByIface[l.iface] = l
	}

	hostModules := make(map[string]map[string]engine.HostFunc, len(comp.schema.ImportOrder))
	for _, ifaceName := range comp.schema.ImportOrder {
		iface := comp.schema.Imports[ifaceName]
		l, ok := linksByIface[ifaceName]
		if !ok {
			return 0, fmt.Errorf("%w: import %q has no link", ErrInterfaceNotFound, ifaceName)
		}
		delete(linksByIface, ifaceName)

		switch l.kind {
		case linkSystem:
			funcs, err := bindSystem(iface, l.provider)
			if err != nil {
				return 0, err
			}
			if err := l.provider.Configure(b.ctx); err != nil {
				return 0, err
			}
			hostModules[ifaceName] = funcs

		case linkLocal:
			entry, err := b.rt.instanceEntry(l.instance)
			if err != nil {
				return 0, err
			}
			targetIface, ok := entry.comp.schema.Export(ifaceName)
			if !ok {
				return 0, fmt.Errorf("%w: target %s does not export %q", ErrInterfaceNotFound, l.instance, ifaceName)
			}
			funcs, err := bindLocal(iface, entry.handle, targetIface)
			if err != nil {
				return 0, err
			}
			hostModules[ifaceName] = funcs

		case linkRemote:
			client, err := b.rt.Peer(l.peer)
			if err != nil {
				return 0, err
			}
			funcs, err := bindRemote(iface, client, l.target)
			if err != nil {
				return 0, err
			}
			hostModules[ifaceName] = funcs
		}
	}

	for ifaceName := range linksByIface {
		return 0, fmt.Errorf("%w: link names %q, which the component does not import", ErrInterfaceNotFound, ifaceName)
	}

	ictx := b.ctx.Build()

	inst, err := b.rt.engine.Instantiate(ctx, comp.engineComp, &engine.InstanceConfig{
		Name:        b.remoteID,
		Limits:      limits,
		HostModules: hostModules,
	})
	if err != nil {
		if errors.Is(err, engine.ErrOutOfMemory) {
			return 0, fmt.Errorf("%w: %v", ErrBudgetRejected, err)
		}
		return 0, &InstantiationError{Cause: err}
	}

	handle := newInstanceHandle(inst, ictx)
	b.rt.registerInstance(id, handle, comp, b.remoteID)
	return id, nil
}
