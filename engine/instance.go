package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/mesh-runtime/value"
)

// Limits is the engine-level slice of an instance budget: what wazero can
// enforce directly. Memory is capped in 64KiB pages; execution cost is
// metered in wall time through context cancellation, as wazero has no fuel
// meter.
type Limits struct {
	MemoryPages uint32
	ExecTimeout time.Duration
}

// HostFunc is a host implementation of one imported function, typed in the
// vocabulary. The engine wraps it in the flat calling convention.
type HostFunc struct {
	Params  []wit.Type
	Results []wit.Type
	Fn      func(ctx context.Context, args []value.Value) ([]value.Value, error)
}

// InstanceConfig assembles everything an instantiation needs: the host
// modules satisfying imports, the budget, and a diagnostic name.
type InstanceConfig struct {
	Name        string
	Limits      Limits
	HostModules map[string]map[string]HostFunc
}

// Instance is one live guest: a dedicated wazero runtime, the instantiated
// module, and its allocator. Access is not synchronized here; the runtime
// layer serializes through the instance handle.
type Instance struct {
	runtime wazero.Runtime
	mod     api.Module
	alloc   api.Function
	limits  Limits
}

// Instantiate creates a fresh runtime under the budget, installs the host
// modules, and instantiates the component against them.
func (e *Engine) Instantiate(ctx context.Context, c *Component, cfg *InstanceConfig) (*Instance, error) {
	rcfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.Limits.MemoryPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.Limits.MemoryPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)

	for modName, funcs := range cfg.HostModules {
		builder := r.NewHostModuleBuilder(modName)
		for name, hf := range funcs {
			sig, err := newSignature(hf.Params, hf.Results)
			if err != nil {
				r.Close(ctx)
				return nil, err
			}
			builder.NewFunctionBuilder().
				WithGoModuleFunction(hostHandler(sig, hf.Fn), sig.flatParams, sig.flatResults).
				Export(name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			r.Close(ctx)
			return nil, &TrapError{Cause: err}
		}
	}

	compiled, err := r.CompileModule(ctx, c.bytes)
	if err != nil {
		r.Close(ctx)
		return nil, &TrapError{Cause: err}
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName(cfg.Name).
		WithStartFunctions())
	if err != nil {
		r.Close(ctx)
		return nil, classify(err)
	}

	Logger().Debug("instantiated module", zap.String("name", cfg.Name))

	return &Instance{
		runtime: r,
		mod:     mod,
		alloc:   findAllocator(mod),
		limits:  cfg.Limits,
	}, nil
}

// findAllocator locates the guest's exported allocator under its canonical
// or legacy names.
func findAllocator(mod api.Module) api.Function {
	for _, name := range []string{"cabi_realloc", "canonical_abi_realloc", "realloc", "alloc"} {
		if fn := mod.ExportedFunction(name); fn != nil {
			return fn
		}
	}
	return nil
}

// Close tears down the instance's runtime, releasing its memory.
func (i *Instance) Close(ctx context.Context) error {
	return i.runtime.Close(ctx)
}

// HasExport reports whether the module exports a function serving the
// (interface, method) pair.
func (i *Instance) HasExport(iface, method string) bool {
	return i.exportedFunction(iface, method) != nil
}

func (i *Instance) exportedFunction(iface, method string) api.Function {
	if fn := i.mod.ExportedFunction(method); fn != nil {
		return fn
	}
	return i.mod.ExportedFunction(iface + "#" + method)
}

// Call invokes an exported function with vocabulary-typed values, handling
// the flat convention in both directions. The execution budget applies per
// call.
func (i *Instance) Call(ctx context.Context, iface, method string, params, results []wit.Type, args []value.Value) ([]value.Value, error) {
	fn := i.exportedFunction(iface, method)
	if fn == nil {
		return nil, ErrFunctionNotFound
	}
	sig, err := newSignature(params, results)
	if err != nil {
		return nil, err
	}
	m := newMemio(i.mod, i.alloc)

	if i.limits.ExecTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.limits.ExecTimeout)
		defer cancel()
	}

	stack, retptr, err := i.lowerCall(ctx, m, sig, args)
	if err != nil {
		return nil, err
	}

	raw, err := fn.Call(ctx, stack...)
	if err != nil {
		return nil, classify(err)
	}

	return i.liftReturn(ctx, m, sig, raw, retptr)
}

// lowerCall builds the flat argument stack, spilling through memory when
// the signature calls for it.
func (i *Instance) lowerCall(ctx context.Context, m *memio, sig *signature, args []value.Value) (stack []uint64, retptr uint32, err error) {
	if len(args) != len(sig.params) {
		return nil, 0, &UnsupportedError{What: "argument count mismatch"}
	}

	if sig.paramsSpilled {
		tupleType := &wit.TypeDef{Kind: &wit.Tuple{Types: sig.params}}
		tl, err := layoutOf(tupleType)
		if err != nil {
			return nil, 0, err
		}
		ptr, err := m.allocate(ctx, tl.size, tl.align)
		if err != nil {
			return nil, 0, err
		}
		if err := m.store(ctx, value.Tuple(args), tupleType, ptr); err != nil {
			return nil, 0, err
		}
		stack = append(stack, uint64(ptr))
	} else {
		for n, arg := range args {
			flat, err := m.lowerFlat(ctx, arg, sig.params[n])
			if err != nil {
				return nil, 0, err
			}
			stack = append(stack, flat...)
		}
	}

	if sig.resultsSpilled {
		tupleType := &wit.TypeDef{Kind: &wit.Tuple{Types: sig.results}}
		tl, err := layoutOf(tupleType)
		if err != nil {
			return nil, 0, err
		}
		retptr, err = m.allocate(ctx, tl.size, tl.align)
		if err != nil {
			return nil, 0, err
		}
		stack = append(stack, uint64(retptr))
	}

	return stack, retptr, nil
}

// liftReturn reads results off the flat stack or out of the return area.
func (i *Instance) liftReturn(ctx context.Context, m *memio, sig *signature, raw []uint64, retptr uint32) ([]value.Value, error) {
	if len(sig.results) == 0 {
		return nil, nil
	}
	if sig.resultsSpilled {
		tupleType := &wit.TypeDef{Kind: &wit.Tuple{Types: sig.results}}
		tup, err := m.load(ctx, tupleType, retptr)
		if err != nil {
			return nil, err
		}
		return []value.Value(tup.(value.Tuple)), nil
	}
	r := &flatReader{vals: raw}
	out := make([]value.Value, 0, len(sig.results))
	for _, rt := range sig.results {
		v, err := m.liftFlat(ctx, r, rt)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// hostHandler wraps a typed host function in the flat calling convention.
// Failures trap the guest by panicking; wazero converts host panics into
// module errors surfaced to the caller.
func hostHandler(sig *signature, fn func(context.Context, []value.Value) ([]value.Value, error)) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		m := newMemio(mod, findAllocator(mod))

		flatParamCount := len(sig.flatParams)
		if sig.resultsSpilled {
			flatParamCount--
		}

		var args []value.Value
		if sig.paramsSpilled {
			tupleType := &wit.TypeDef{Kind: &wit.Tuple{Types: sig.params}}
			tup, err := m.load(ctx, tupleType, uint32(stack[0]))
			if err != nil {
				panic(err)
			}
			args = []value.Value(tup.(value.Tuple))
		} else {
			r := &flatReader{vals: stack[:flatParamCount]}
			for _, pt := range sig.params {
				v, err := m.liftFlat(ctx, r, pt)
				if err != nil {
					panic(err)
				}
				args = append(args, v)
			}
		}

		results, err := fn(ctx, args)
		if err != nil {
			panic(err)
		}
		if len(results) != len(sig.results) {
			panic(&UnsupportedError{What: "host function result count mismatch"})
		}

		if sig.resultsSpilled {
			retptr := uint32(stack[flatParamCount])
			tupleType := &wit.TypeDef{Kind: &wit.Tuple{Types: sig.results}}
			if err := m.store(ctx, value.Tuple(results), tupleType, retptr); err != nil {
				panic(err)
			}
			return
		}

		pos := 0
		for n, res := range results {
			flat, err := m.lowerFlat(ctx, res, sig.results[n])
			if err != nil {
				panic(err)
			}
			for _, slot := range flat {
				stack[pos] = slot
				pos++
			}
		}
	}
}

// classify maps raw engine failures onto the budget and trap taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		switch exit.ExitCode() {
		case 0:
			return nil
		case sys.ExitCodeDeadlineExceeded:
			return ErrExecBudget
		case sys.ExitCodeContextCanceled:
			return &TrapError{Cause: context.Canceled}
		}
		return &TrapError{Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrExecBudget
	}
	if errors.Is(err, context.Canceled) {
		return &TrapError{Cause: err}
	}
	msg := err.Error()
	if strings.Contains(msg, "memory") && (strings.Contains(msg, "limit") || strings.Contains(msg, "max") || strings.Contains(msg, "grow")) {
		return ErrOutOfMemory
	}
	return &TrapError{Cause: err}
}
