package runtime

import (
	"context"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/mesh-runtime/engine"
	"github.com/wippyai/mesh-runtime/value"
)

// SystemProvider satisfies one or more imported interfaces with host-side
// implementations. The binder forwards the provider's closures into the
// linker; Configure lets the provider contribute capabilities to the
// context under construction.
type SystemProvider interface {
	// Interfaces lists the import names this provider can satisfy.
	Interfaces() []string
	// Functions returns the implementations for one interface, keyed by
	// function name. Signatures must match the component's declared
	// imports.
	Functions(iface string) map[string]engine.HostFunc
	// Configure contributes capabilities and state to the context.
	Configure(cb *ContextBuilder) error
}

// LogProvider satisfies a logging interface with a zap-backed sink: the
// host-side reference provider, and the system-link exemplar in tests.
type LogProvider struct {
	iface string
	log   *zap.Logger
}

// NewLogProvider returns a provider serving iface with a single
// log(msg: string) function.
func NewLogProvider(iface string, log *zap.Logger) *LogProvider {
	if log == nil {
		log = Logger()
	}
	return &LogProvider{iface: iface, log: log}
}

// Interfaces implements SystemProvider.
func (p *LogProvider) Interfaces() []string { return []string{p.iface} }

// Functions implements SystemProvider.
func (p *LogProvider) Functions(iface string) map[string]engine.HostFunc {
	if iface != p.iface {
		return nil
	}
	return map[string]engine.HostFunc{
		"log": {
			Params: []wit.Type{wit.String{}},
			Fn: func(ctx context.Context, args []value.Value) ([]value.Value, error) {
				msg, _ := args[0].(value.Str)
				p.log.Info("guest log", zap.String("msg", string(msg)))
				return nil, nil
			},
		},
	}
}

// Configure implements SystemProvider.
func (p *LogProvider) Configure(cb *ContextBuilder) error {
	cb.Insert(p)
	return nil
}
