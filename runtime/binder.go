package runtime

import (
	"context"
	"errors"
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mesh-runtime/engine"
	"github.com/wippyai/mesh-runtime/frame"
	"github.com/wippyai/mesh-runtime/rpc"
	"github.com/wippyai/mesh-runtime/schema"
	"github.com/wippyai/mesh-runtime/transcode"
	"github.com/wippyai/mesh-runtime/value"
)

// The binder turns each link into host functions satisfying one imported
// interface. Three strategies share one face toward the guest:
//
//   - system: the provider's own closures, forwarded.
//   - local: calls routed through the target handle onto the target's
//     store. No serialization; the handle mutex is the only contention.
//   - remote: arguments transcoded to wire bytes and carried by the
//     peer's client; replies transcoded back.

// bindSystem validates the provider against the declared import schema and
// forwards its closures.
func bindSystem(iface *schema.Interface, provider SystemProvider) (map[string]engine.HostFunc, error) {
	impl := provider.Functions(iface.Name)
	if impl == nil {
		return nil, fmt.Errorf("%w: provider does not serve %q", ErrInterfaceNotFound, iface.Name)
	}
	funcs := make(map[string]engine.HostFunc, len(iface.Order))
	for _, name := range iface.Order {
		hf, ok := impl[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s#%s has no system implementation", ErrMethodNotFound, iface.Name, name)
		}
		declared := iface.Funcs[name]
		// Providers may omit signature types; fill them from the ledger so
		// the engine wraps the closure correctly.
		if hf.Params == nil {
			hf.Params = declared.Params
		}
		if hf.Results == nil {
			hf.Results = declared.Results
		}
		if !schema.EqualFunc(declared, &schema.Func{Name: name, Params: hf.Params, Results: hf.Results}) {
			return nil, &SchemaMismatchError{
				Interface: iface.Name,
				Cause:     &schema.MismatchError{Interface: iface.Name, Func: name, Detail: "provider signature differs"},
			}
		}
		funcs[name] = hf
	}
	return funcs, nil
}

// bindLocal validates the target's exports against the import schema and
// produces closures that invoke the target's store through its handle.
func bindLocal(iface *schema.Interface, target InstanceHandle, targetSchema *schema.Interface) (map[string]engine.HostFunc, error) {
	if err := schema.ValidateCompatibility(iface, targetSchema); err != nil {
		return nil, &SchemaMismatchError{Interface: iface.Name, Cause: err}
	}

	funcs := make(map[string]engine.HostFunc, len(iface.Order))
	for _, name := range iface.Order {
		fn := iface.Funcs[name]
		methodName := name
		funcs[name] = engine.HostFunc{
			Params:  fn.Params,
			Results: fn.Results,
			Fn: func(ctx context.Context, args []value.Value) ([]value.Value, error) {
				var out []value.Value
				err := target.Exec(ctx, func(ctx context.Context, inst *engine.Instance) error {
					res, err := inst.Call(ctx, iface.Name, methodName, fn.Params, fn.Results, args)
					out = res
					return err
				})
				return out, err
			},
		}
	}
	return funcs, nil
}

// bindRemote produces closures that transcode through the peer's client.
// No live check against the remote side is possible; the local ledger is
// trusted and mismatches surface at call time.
func bindRemote(iface *schema.Interface, client *rpc.Client, target string) (map[string]engine.HostFunc, error) {
	for _, name := range iface.Order {
		if err := schema.WireSafeFunc(iface.Funcs[name]); err != nil {
			return nil, fmt.Errorf("runtime: %s#%s: %w", iface.Name, name, err)
		}
	}

	funcs := make(map[string]engine.HostFunc, len(iface.Order))
	for _, name := range iface.Order {
		fn := iface.Funcs[name]
		methodName := name
		funcs[name] = engine.HostFunc{
			Params:  fn.Params,
			Results: fn.Results,
			Fn: func(ctx context.Context, args []value.Value) ([]value.Value, error) {
				slab, err := transcode.EncodeSlab(args, fn.Params)
				if err != nil {
					return nil, err
				}
				results, err := client.Call(ctx, target, methodName, slab)
				if err != nil {
					return remoteFailure(fn, err)
				}
				return transcode.DecodeSlab(results, fn.Results)
			},
		}
	}
	return funcs, nil
}

// remoteFailure translates a client error for the guest: engine-fatal
// reasons trap; a domain-specific refusal returns in band when the
// function declares a result whose error arm can carry it.
func remoteFailure(fn *schema.Func, err error) ([]value.Value, error) {
	var remote *rpc.RemoteError
	if !errors.As(err, &remote) || remote.Reason.Fatal() {
		return nil, err
	}
	if v, ok := domainErrValue(fn, remote.Reason); ok {
		return []value.Value{v}, nil
	}
	return nil, err
}

// domainErrValue builds the in-band error value for a DomainSpecific
// refusal when the single result is a result<_, E> and E can carry the
// reason: a string takes the description, a record{code, description}
// takes both.
func domainErrValue(fn *schema.Func, reason frame.Reason) (value.Value, bool) {
	if len(fn.Results) != 1 {
		return nil, false
	}
	td, ok := fn.Results[0].(*wit.TypeDef)
	if !ok {
		return nil, false
	}
	res, ok := td.Kind.(*wit.Result)
	if !ok || res.Err == nil {
		return nil, false
	}
	switch errType := res.Err.(type) {
	case wit.String:
		return value.Result{OK: false, Payload: value.Str(reason.Message)}, true
	case *wit.TypeDef:
		rec, ok := errType.Kind.(*wit.Record)
		if !ok || len(rec.Fields) != 2 {
			return nil, false
		}
		if rec.Fields[0].Name != "code" || rec.Fields[1].Name != "description" {
			return nil, false
		}
		return value.Result{OK: false, Payload: value.Record{
			{Name: "code", Value: value.U32(reason.Code)},
			{Name: "description", Value: value.Str(reason.Message)},
		}}, true
	}
	return nil, false
}
