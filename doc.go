// Package meshruntime is the root of a distributed WebAssembly component
// runtime: sandboxed guest components whose declared imports are satisfied
// by pluggable providers, with interface calls routed transparently to
// providers in the same process, in a sibling instance, or on a remote
// peer reached over an opaque byte transport.
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	mesh-runtime/
//	├── runtime/    Registry, instance builder, binder, lifecycle
//	├── engine/     wazero integration: budgets, flat calling convention
//	├── schema/     Interface ledger: WIT extraction, structural equality
//	├── value/      Dynamic value representation for the type vocabulary
//	├── transcode/  Value <-> wire conversion under an expected type
//	├── codec/      Self-describing, length-prefixed wire format
//	├── frame/      Call/Reply RPC envelopes and failure reasons
//	├── rpc/        Client: sequence correlation, deadlines, demux pump
//	├── transport/  Byte-channel contract and in-process loopback
//	├── resource/   Per-instance handle tables
//	└── wasm/       Core module builder used by tests and adapters
//
// # Quick Start
//
// Register a component, link its imports, run it:
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
//	    Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := rt.Exec(ctx, instID, "my:mesh/api", "echo",
//	    []value.Value{value.U32(42)})
//
// # Distribution
//
// Two runtimes connected by any Transport form a mesh. Registering an
// instance under a remote identifier makes it callable from the other
// side; linking an import remotely routes the guest's calls over the
// wire:
//
//	peerID := rt.AddPeer(conn)
//	runtime.NewInstanceBuilder(rt, mathID).RegisterAs("math").Instantiate(ctx)
//
//	// on the other runtime
//	runtime.NewInstanceBuilder(rt2, clientID).
//	    LinkRemote("my:mesh/math", peerID, "math").
//	    Instantiate(ctx)
//
// The guest cannot tell the three link strategies apart.
package meshruntime
