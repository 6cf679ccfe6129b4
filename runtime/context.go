package runtime

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/wippyai/mesh-runtime/resource"
)

// Context is the per-instance capability bag: host state installed by
// system providers, the guest's resource table, environment, and an atomic
// sequence counter providers may use for correlation.
type Context struct {
	resources *resource.Table

	stateMu sync.RWMutex
	state   map[reflect.Type]any

	env   map[string]string
	args  []string
	stdio bool

	seq atomic.Uint64
}

// Resources returns the instance's handle table.
func (c *Context) Resources() *resource.Table { return c.resources }

// NextSeq returns the next value of the instance-scoped counter.
func (c *Context) NextSeq() uint64 { return c.seq.Add(1) }

// Env returns the configured environment value for key.
func (c *Context) Env(key string) (string, bool) {
	v, ok := c.env[key]
	return v, ok
}

// Args returns the configured guest arguments.
func (c *Context) Args() []string { return c.args }

// InheritStdio reports whether the instance shares the host's stdio.
func (c *Context) InheritStdio() bool { return c.stdio }

// Put stashes provider state keyed by its dynamic type, replacing any
// previous value of that type.
func (c *Context) Put(v any) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state[reflect.TypeOf(v)] = v
}

// Load retrieves provider state into the pointed-to value, matching by
// type. It reports whether a value of that type was present.
func (c *Context) Load(ptr any) bool {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return false
	}
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	v, ok := c.state[rv.Elem().Type()]
	if !ok {
		return false
	}
	rv.Elem().Set(reflect.ValueOf(v))
	return true
}

// ContextBuilder accumulates context configuration before instantiation.
type ContextBuilder struct {
	env   map[string]string
	args  []string
	stdio bool
	state []any
}

// NewContextBuilder returns an empty builder.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{env: make(map[string]string)}
}

// Env sets one environment entry for the guest.
func (b *ContextBuilder) Env(key, value string) *ContextBuilder {
	b.env[key] = value
	return b
}

// Args sets the guest's argument vector.
func (b *ContextBuilder) Args(args ...string) *ContextBuilder {
	b.args = append([]string(nil), args...)
	return b
}

// InheritStdio shares the host's stdio with the guest.
func (b *ContextBuilder) InheritStdio() *ContextBuilder {
	b.stdio = true
	return b
}

// Insert stashes provider state to be available from the built context.
func (b *ContextBuilder) Insert(v any) *ContextBuilder {
	b.state = append(b.state, v)
	return b
}

// Build finalizes the context.
func (b *ContextBuilder) Build() *Context {
	c := &Context{
		resources: resource.NewTable(),
		state:     make(map[reflect.Type]any, len(b.state)),
		env:       b.env,
		args:      b.args,
		stdio:     b.stdio,
	}
	for _, v := range b.state {
		c.state[reflect.TypeOf(v)] = v
	}
	return c
}
