// Package runtime is the registry and wiring layer of the mesh: it tracks
// compiled components, peers, and live instances, and assembles instances
// whose imports are satisfied by system providers, sibling instances, or
// remote peers.
//
// # Quick start
//
//	rt := runtime.New()
//	defer rt.Close(ctx)
//
//	compID, err := rt.RegisterComponent(ctx, wasmBytes, witText)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	instID, err := runtime.NewInstanceBuilder(rt, compID).
//	    LinkSystem("my:mesh/logger", runtime.NewLogProvider("my:mesh/logger", nil)).
//	    Budget(runtime.Budget{MaxMemoryBytes: 1 << 20}).
//	    Instantiate(ctx)
//
//	results, err := rt.Exec(ctx, instID, "my:mesh/api", "echo",
//	    []value.Value{value.U32(42)})
//
// # Linking
//
// Every imported interface of a component must be satisfied by exactly one
// link when an instance is built:
//
//	LinkSystem(iface, provider)       // host-side implementation
//	LinkLocal(iface, instanceID)      // another live instance's exports
//	LinkRemote(iface, peerID, target) // a named instance on a peer
//
// The three strategies present one face to the guest. Local links validate
// structural schema equality at bind time; remote links trust the local
// ledger and surface mismatches at call time.
//
// # Peers and incoming dispatch
//
// AddPeer wraps a transport in an RPC client whose pump both correlates
// outbound replies and dispatches inbound calls against instances
// registered with RegisterAs / RegisterInstance:
//
//	peerID := rt.AddPeer(conn)
//	runtime.NewInstanceBuilder(rt, mathID).RegisterAs("math").Instantiate(ctx)
//
// # Lifecycle
//
// RemoveInstance is the sole destruction path: it unregisters the
// instance, cancels any in-flight execution, waits for the handle's
// critical section to release, and destroys the store. Budget exhaustion
// is terminal: the instance stops accepting calls and reports
// ErrUnknownInstance.
package runtime
