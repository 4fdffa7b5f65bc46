package expr

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
)

// Impl is one instance of a scalar function. Implementations may keep
// private scratch state between calls; each evaluator gets its own Impl.
// Returned datums must not alias that scratch state.
type Impl interface {
	Call(args []Datum) (Datum, error)
}

// ImplFunc adapts a stateless function to Impl.
type ImplFunc func(args []Datum) (Datum, error)

// Call implements Impl.
func (f ImplFunc) Call(args []Datum) (Datum, error) { return f(args) }

// Definition describes a scalar function. It is immutable once registered.
type Definition struct {
	Name string
	// MinArgs and MaxArgs bound the argument count; MaxArgs < 0 means
	// unbounded.
	MinArgs int
	MaxArgs int
	Doc     string
	// New returns a fresh implementation for one evaluator.
	New func() Impl
}

// CheckArity validates an argument count.
func (d *Definition) CheckArity(n int) error {
	if n < d.MinArgs || (d.MaxArgs >= 0 && n > d.MaxArgs) {
		return errors.Newf(errors.ErrorTypeCompile, "%s expects %s arguments, got %d",
			d.Name, arity(d.MinArgs, d.MaxArgs), n).
			WithDetail("function", d.Name)
	}
	return nil
}

func arity(min, max int) string {
	switch {
	case max < 0:
		return "at least " + strconv.Itoa(min)
	case min == max:
		return strconv.Itoa(min)
	default:
		return strconv.Itoa(min) + " to " + strconv.Itoa(max)
	}
}

// Registry maps lower-case function names to definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. Names are case-insensitive and must be unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || def.New == nil {
		return errors.New(errors.ErrorTypeConfig, "function definition needs a name and a constructor")
	}
	name := strings.ToLower(def.Name)
	def.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "function %s already registered", name)
	}
	r.defs[name] = &def
	return nil
}

// MustRegister is Register that panics on error, for package init.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Lookup finds a definition by case-insensitive name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.ToLower(name)]
	return def, ok
}

// Definitions returns all definitions sorted by name.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
