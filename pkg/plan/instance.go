package plan

import (
	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/metrics"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
	"github.com/ajitpratap0/xdrflow/pkg/pool"
)

// operator is one node of an execution clone.
type operator interface {
	push(row column.Row) error
	links() *opLinks
}

type opLinks struct {
	kind   NodeKind
	parent operator
	child  operator
}

func (l *opLinks) links() *opLinks { return l }

type scanOp struct {
	opLinks
	width int
}

func (s *scanOp) push(row column.Row) error {
	if len(row) < s.width {
		return errors.Newf(errors.ErrorTypeExecute, "row has %d columns, plan expects %d", len(row), s.width)
	}
	return s.child.push(row)
}

type filterOp struct {
	opLinks
	pred expr.Evaluator
}

func (f *filterOp) push(row column.Row) error {
	d, err := f.pred.Eval(row)
	if err != nil {
		return err
	}
	pass, err := expr.Truth(d)
	if err != nil || !pass {
		return err
	}
	return f.child.push(row)
}

type projectOp struct {
	opLinks
	outputs []expr.Evaluator
}

func (p *projectOp) push(row column.Row) error {
	out := make(column.Row, len(p.outputs))
	for i, ev := range p.outputs {
		d, err := ev.Eval(row)
		if err != nil {
			return err
		}
		out[i] = d.Value()
	}
	return p.child.push(out)
}

type sinkOp struct {
	opLinks
	latch *Latch
}

func (s *sinkOp) push(row column.Row) error {
	s.latch.put(row)
	return nil
}

// Instance is an execution clone: operators built from a prototype's spec
// with their own evaluator state and result latch. It is not safe for
// concurrent use.
type Instance struct {
	proto *Prototype
	root  operator
	ops   []operator
	latch *Latch
}

// Prototype returns the prototype the clone was built from.
func (in *Instance) Prototype() *Prototype { return in.proto }

// Topology lists the operator kinds from the root down.
func (in *Instance) Topology() []NodeKind {
	out := make([]NodeKind, len(in.ops))
	for i, op := range in.ops {
		out[i] = op.links().kind
	}
	return out
}

// Execute pushes row through the clone. It returns the projected row, or
// nil when the filter rejected the record. Errors are execute errors; the
// clone remains usable afterwards.
//
// The projected values may alias row.
func (in *Instance) Execute(row column.Row) (column.Row, error) {
	in.latch.prime()
	if err := in.run(row); err != nil {
		in.latch.abort()
		return nil, err
	}
	out, _ := in.latch.take()
	return out, nil
}

func (in *Instance) run(row column.Row) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if v, ok := r.(latchViolation); ok {
			panic(v)
		}
		err = errors.Newf(errors.ErrorTypeExecute, "expression panicked: %v", r)
	}()

	if err := in.root.push(row); err != nil {
		if !errors.IsExecute(err) {
			return errors.Wrap(err, errors.ErrorTypeExecute, "execute failed")
		}
		return err
	}
	return nil
}

// Prototype is a cached, compiled plan. It is immutable and safe for
// concurrent use; all mutable state lives in the instances it builds.
type Prototype struct {
	spec      *Spec
	instances *pool.Pool[*Instance]
}

// NewPrototype validates spec and checks that instances can be built from
// it.
func NewPrototype(spec *Spec) (*Prototype, error) {
	if spec == nil {
		return nil, errors.New(errors.ErrorTypeCompile, "compiler returned no plan")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	p := &Prototype{spec: spec}
	if _, err := p.build(); err != nil {
		return nil, err
	}
	p.instances = pool.New(
		func() *Instance {
			// build cannot fail after the trial build above
			inst, _ := p.build()
			return inst
		},
		func(inst *Instance) { inst.latch.abort() },
	)
	return p, nil
}

// Spec returns the immutable plan specification.
func (p *Prototype) Spec() *Spec { return p.spec }

// Instantiate builds a new execution clone.
func (p *Prototype) Instantiate() (*Instance, error) {
	inst, err := p.build()
	if err != nil {
		return nil, err
	}
	metrics.Instances.Inc()
	return inst, nil
}

// Execute runs row through a pooled clone. The returned row does not
// reference clone state and stays valid after the clone is recycled.
func (p *Prototype) Execute(row column.Row) (column.Row, error) {
	inst := p.instances.Get()
	defer p.instances.Put(inst)
	return inst.Execute(row)
}

func (p *Prototype) build() (*Instance, error) {
	inst := &Instance{proto: p, latch: &Latch{}}

	var prev operator
	for n := p.spec.Root; n != nil; n = n.Child {
		op, err := p.buildNode(n, inst.latch)
		if err != nil {
			return nil, err
		}
		l := op.links()
		l.kind = n.Kind
		l.parent = prev
		if prev != nil {
			prev.links().child = op
		} else {
			inst.root = op
		}
		inst.ops = append(inst.ops, op)
		prev = op
	}
	return inst, nil
}

func (p *Prototype) buildNode(n *Node, latch *Latch) (operator, error) {
	switch n.Kind {
	case ScanNode:
		return &scanOp{width: p.spec.Schema.Len()}, nil
	case FilterNode:
		ev, err := expr.Build(n.Predicate)
		if err != nil {
			return nil, err
		}
		return &filterOp{pred: ev}, nil
	case ProjectNode:
		outs := make([]expr.Evaluator, len(n.Outputs))
		for i, e := range n.Outputs {
			ev, err := expr.Build(e)
			if err != nil {
				return nil, err
			}
			outs[i] = ev
		}
		return &projectOp{outputs: outs}, nil
	case SinkNode:
		return &sinkOp{latch: latch}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeCompile, "cannot build %s node", n.Kind)
	}
}
