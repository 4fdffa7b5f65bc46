// Package plan compiles filter+projection expressions once, caches the
// compiled prototypes and builds isolated execution clones from them.
//
// A Prototype wraps an immutable Spec: a chain of operator descriptors
// scan -> [filter] -> project -> sink. Instantiate walks that chain and
// builds fresh operators with their own evaluator state and a private
// result latch, so clones of the same prototype never share mutable state.
package plan

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

// NodeKind identifies an operator in a plan.
type NodeKind uint8

const (
	ScanNode NodeKind = iota
	FilterNode
	ProjectNode
	SinkNode
)

func (k NodeKind) String() string {
	switch k {
	case ScanNode:
		return "scan"
	case FilterNode:
		return "filter"
	case ProjectNode:
		return "project"
	case SinkNode:
		return "sink"
	default:
		return "node(" + strconv.Itoa(int(k)) + ")"
	}
}

// MarshalText renders the kind by name in JSON plans.
func (k NodeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Node is one operator descriptor. Child is the downstream operator.
type Node struct {
	Kind NodeKind `json:"kind"`
	// Predicate is set on filter nodes.
	Predicate expr.Expr `json:"-"`
	// Outputs and Names are set on project nodes.
	Outputs []expr.Expr `json:"-"`
	Names   []string    `json:"names,omitempty"`
	Child   *Node       `json:"child,omitempty"`
}

// Schema names the positional input columns.
type Schema struct {
	Columns []string `json:"columns"`
}

// PositionalSchema returns the schema c1..cN.
func PositionalSchema(n int) Schema {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = "c" + strconv.Itoa(i+1)
	}
	return Schema{Columns: cols}
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.Columns) }

// Index returns the position of a column name, case-insensitively.
func (s Schema) Index(name string) (int, bool) {
	for i, c := range s.Columns {
		if strings.EqualFold(c, name) {
			return i, true
		}
	}
	return 0, false
}

// key identifies the schema inside the cache.
func (s Schema) key() string {
	return strings.Join(s.Columns, "\x1f")
}

// Spec is the immutable compiled form of one expression text.
type Spec struct {
	Text   string `json:"text"`
	Schema Schema `json:"schema"`
	Root   *Node  `json:"root"`
}

// NewSpec builds the canonical chain scan -> [filter] -> project -> sink.
// predicate may be nil when the expression has no filter.
func NewSpec(text string, schema Schema, predicate expr.Expr, outputs []expr.Expr, names []string) *Spec {
	sink := &Node{Kind: SinkNode}
	project := &Node{Kind: ProjectNode, Outputs: outputs, Names: names, Child: sink}
	next := project
	if predicate != nil {
		next = &Node{Kind: FilterNode, Predicate: predicate, Child: project}
	}
	return &Spec{
		Text:   text,
		Schema: schema,
		Root:   &Node{Kind: ScanNode, Child: next},
	}
}

// Topology lists the node kinds from the root down.
func (s *Spec) Topology() []NodeKind {
	var out []NodeKind
	for n := s.Root; n != nil; n = n.Child {
		out = append(out, n.Kind)
	}
	return out
}

// Validate checks the chain shape and the column references.
func (s *Spec) Validate() error {
	if s.Root == nil || s.Root.Kind != ScanNode {
		return errors.New(errors.ErrorTypeCompile, "plan must start with a scan")
	}

	seen := map[NodeKind]bool{}
	var last *Node
	for n := s.Root; n != nil; n = n.Child {
		if seen[n.Kind] {
			return errors.Newf(errors.ErrorTypeCompile, "plan has more than one %s node", n.Kind)
		}
		seen[n.Kind] = true
		last = n

		switch n.Kind {
		case ScanNode:
			if n != s.Root {
				return errors.New(errors.ErrorTypeCompile, "scan must be the root")
			}
		case FilterNode:
			if n.Predicate == nil {
				return errors.New(errors.ErrorTypeCompile, "filter without predicate")
			}
			if seen[ProjectNode] {
				return errors.New(errors.ErrorTypeCompile, "filter must precede project")
			}
			if err := s.checkColumns(n.Predicate); err != nil {
				return err
			}
		case ProjectNode:
			if len(n.Outputs) == 0 {
				return errors.New(errors.ErrorTypeCompile, "project without outputs")
			}
			if len(n.Names) != 0 && len(n.Names) != len(n.Outputs) {
				return errors.New(errors.ErrorTypeCompile, "project names do not match outputs")
			}
			for _, e := range n.Outputs {
				if err := s.checkColumns(e); err != nil {
					return err
				}
			}
		case SinkNode:
			if n.Child != nil {
				return errors.New(errors.ErrorTypeCompile, "sink must be the last node")
			}
		default:
			return errors.Newf(errors.ErrorTypeCompile, "unknown node kind %s", n.Kind)
		}
	}
	if !seen[ProjectNode] || last.Kind != SinkNode {
		return errors.New(errors.ErrorTypeCompile, "plan must end with project -> sink")
	}
	return nil
}

func (s *Spec) checkColumns(e expr.Expr) error {
	var err error
	expr.Walk(e, func(x expr.Expr) {
		if c, ok := x.(*expr.Column); ok && err == nil && (c.Index < 0 || c.Index >= s.Schema.Len()) {
			err = errors.Newf(errors.ErrorTypeCompile, "column %s outside schema of %d columns", c.Name, s.Schema.Len())
		}
	})
	return err
}

// Explain renders the chain one operator per line.
func (s *Spec) Explain() string {
	var b strings.Builder
	depth := 0
	for n := s.Root; n != nil; n = n.Child {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Kind.String())
		switch n.Kind {
		case FilterNode:
			b.WriteString(" ")
			b.WriteString(n.Predicate.String())
		case ProjectNode:
			parts := make([]string, len(n.Outputs))
			for i, e := range n.Outputs {
				parts[i] = e.String()
				if i < len(n.Names) && n.Names[i] != "" && n.Names[i] != parts[i] {
					parts[i] += " AS " + n.Names[i]
				}
			}
			b.WriteString(" [")
			b.WriteString(strings.Join(parts, ", "))
			b.WriteString("]")
		case ScanNode:
			b.WriteString(" ")
			b.WriteString(strconv.Itoa(s.Schema.Len()))
			b.WriteString(" columns")
		}
		b.WriteString("\n")
		depth++
	}
	return b.String()
}
