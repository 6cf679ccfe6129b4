// Package engine adapts wazero to the runtime: compiling components,
// instantiating them against host modules, and moving values across the
// guest boundary in the flat calling convention.
//
// Each instance owns a dedicated wazero runtime so that memory budgets and
// cancellation apply per instance. Compiled component bytes are validated
// once at registration against a probe runtime; instantiation compiles
// into the instance's own runtime.
package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mesh-runtime/schema"
)

// Engine validates and describes compiled components.
type Engine struct{}

// New returns an engine.
func New() *Engine {
	return &Engine{}
}

// CoreFunc describes one core-level function: its import or export name
// and flat core signature.
type CoreFunc struct {
	Module  string // import namespace; empty for exports
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Component is a validated compiled artifact: the raw bytes plus the core
// function surface read from the binary. It is immutable and shared by
// every instance derived from it.
type Component struct {
	bytes   []byte
	imports []CoreFunc
	exports map[string]CoreFunc
}

// Compile validates the module bytes and extracts the core function
// surface.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (*Component, error) {
	probe := wazero.NewRuntime(ctx)
	defer probe.Close(ctx)

	compiled, err := probe.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("engine: compile: %w", err)
	}
	defer compiled.Close(ctx)

	c := &Component{
		bytes:   append([]byte(nil), wasmBytes...),
		exports: make(map[string]CoreFunc),
	}
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		c.imports = append(c.imports, CoreFunc{
			Module:  mod,
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		})
	}
	for name, def := range compiled.ExportedFunctions() {
		c.exports[name] = CoreFunc{
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		}
	}
	return c, nil
}

// Imports returns the component's imported core functions.
func (c *Component) Imports() []CoreFunc { return c.imports }

// ExportedFunc looks up an exported core function, trying the plain method
// name first and the interface-qualified form second.
func (c *Component) ExportedFunc(iface, method string) (CoreFunc, bool) {
	if f, ok := c.exports[method]; ok {
		return f, true
	}
	f, ok := c.exports[iface+"#"+method]
	return f, ok
}

// CheckSchema cross-checks an extracted ledger against the core type
// surface read from the binary: every declared function must resolve to a
// core function whose flat signature matches the declared types.
func (c *Component) CheckSchema(s *schema.Schema) error {
	coreImports := make(map[string]CoreFunc, len(c.imports))
	for _, f := range c.imports {
		coreImports[f.Module+"#"+f.Name] = f
	}

	for _, ifaceName := range s.ImportOrder {
		iface := s.Imports[ifaceName]
		for _, fnName := range iface.Order {
			core, ok := coreImports[ifaceName+"#"+fnName]
			if !ok {
				return fmt.Errorf("engine: declared import %s#%s not found in module", ifaceName, fnName)
			}
			if err := checkFlatSignature(iface.Funcs[fnName], core); err != nil {
				return fmt.Errorf("engine: import %s#%s: %w", ifaceName, fnName, err)
			}
		}
	}

	for _, ifaceName := range s.ExportOrder {
		iface := s.Exports[ifaceName]
		for _, fnName := range iface.Order {
			core, ok := c.ExportedFunc(ifaceName, fnName)
			if !ok {
				return fmt.Errorf("engine: declared export %s#%s not found in module", ifaceName, fnName)
			}
			if err := checkFlatSignature(iface.Funcs[fnName], core); err != nil {
				return fmt.Errorf("engine: export %s#%s: %w", ifaceName, fnName, err)
			}
		}
	}
	return nil
}

func checkFlatSignature(fn *schema.Func, core CoreFunc) error {
	sig, err := newSignature(fn.Params, fn.Results)
	if err != nil {
		return err
	}
	if len(sig.flatParams) != len(core.Params) || len(sig.flatResults) != len(core.Results) {
		return fmt.Errorf("flat signature mismatch: declared (%d -> %d), core (%d -> %d)",
			len(sig.flatParams), len(sig.flatResults), len(core.Params), len(core.Results))
	}
	for i := range sig.flatParams {
		if sig.flatParams[i] != core.Params[i] {
			return fmt.Errorf("flat param %d mismatch", i)
		}
	}
	for i := range sig.flatResults {
		if sig.flatResults[i] != core.Results[i] {
			return fmt.Errorf("flat result %d mismatch", i)
		}
	}
	return nil
}
