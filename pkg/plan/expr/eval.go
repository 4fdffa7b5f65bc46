package expr

import (
	"math"

	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
)

// Evaluator computes an expression against one input row. Evaluators are
// not safe for concurrent use.
type Evaluator interface {
	Eval(row column.Row) (Datum, error)
}

// Build creates a fresh evaluator tree for e.
func Build(e Expr) (Evaluator, error) {
	if e == nil {
		return nil, errors.New(errors.ErrorTypeCompile, "nil expression")
	}
	return e.build()
}

func buildAll(exprs []Expr) ([]Evaluator, error) {
	out := make([]Evaluator, len(exprs))
	for i, e := range exprs {
		ev, err := Build(e)
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

// tri is a SQL three-valued truth value.
type tri uint8

const (
	triFalse tri = iota
	triTrue
	triNull
)

func triOf(b bool) tri {
	if b {
		return triTrue
	}
	return triFalse
}

func (t tri) datum() Datum {
	switch t {
	case triTrue:
		return Bool(true)
	case triFalse:
		return Bool(false)
	default:
		return Null()
	}
}

func (t tri) not() tri {
	switch t {
	case triTrue:
		return triFalse
	case triFalse:
		return triTrue
	default:
		return triNull
	}
}

func and3(a, b tri) tri {
	if a == triFalse || b == triFalse {
		return triFalse
	}
	if a == triNull || b == triNull {
		return triNull
	}
	return triTrue
}

func truthOf(d Datum) (tri, error) {
	v, null, err := d.truth()
	if err != nil {
		return triNull, err
	}
	if null {
		return triNull, nil
	}
	return triOf(v), nil
}

// Truth evaluates d as a filter predicate: only a true value passes.
func Truth(d Datum) (bool, error) {
	t, err := truthOf(d)
	return t == triTrue, err
}

type columnEval struct {
	index int
	name  string
}

func (c *Column) build() (Evaluator, error) {
	if c.Index < 0 {
		return nil, errors.Newf(errors.ErrorTypeCompile, "column %s has negative index", c.Name)
	}
	return &columnEval{index: c.Index, name: c.Name}, nil
}

func (c *columnEval) Eval(row column.Row) (Datum, error) {
	if c.index >= len(row) {
		return Null(), errors.Newf(errors.ErrorTypeExecute,
			"column %s (index %d) missing from row of %d values", c.name, c.index, len(row))
	}
	return FromValue(row[c.index]), nil
}

type literalEval struct{ d Datum }

func (l *Literal) build() (Evaluator, error) { return &literalEval{d: l.Value}, nil }

func (l *literalEval) Eval(column.Row) (Datum, error) { return l.d, nil }

type binaryEval struct {
	op   Op
	l, r Evaluator
}

func (b *Binary) build() (Evaluator, error) {
	l, err := Build(b.L)
	if err != nil {
		return nil, err
	}
	r, err := Build(b.R)
	if err != nil {
		return nil, err
	}
	if b.Op == OpNot || b.Op == OpNeg {
		return nil, errors.Newf(errors.ErrorTypeCompile, "%s is not a binary operator", b.Op)
	}
	return &binaryEval{op: b.Op, l: l, r: r}, nil
}

func (b *binaryEval) Eval(row column.Row) (Datum, error) {
	switch b.op {
	case OpAnd, OpOr:
		return b.logic(row)
	}

	l, err := b.l.Eval(row)
	if err != nil {
		return Null(), err
	}
	r, err := b.r.Eval(row)
	if err != nil {
		return Null(), err
	}

	switch b.op {
	case OpXor:
		lt, err := truthOf(l)
		if err != nil {
			return Null(), err
		}
		rt, err := truthOf(r)
		if err != nil {
			return Null(), err
		}
		if lt == triNull || rt == triNull {
			return Null(), nil
		}
		return Bool(lt != rt), nil
	case OpNullEQ:
		if l.IsNull() || r.IsNull() {
			return Bool(l.IsNull() && r.IsNull()), nil
		}
		c, err := Compare(l, r)
		if err != nil {
			return Null(), err
		}
		return Bool(c == 0), nil
	case OpEQ, OpNE, OpLT, OpLE, OpGT, OpGE:
		t, err := compare3(b.op, l, r)
		if err != nil {
			return Null(), err
		}
		return t.datum(), nil
	default:
		return arith(b.op, l, r)
	}
}

// logic short-circuits AND and OR with SQL NULL semantics.
func (b *binaryEval) logic(row column.Row) (Datum, error) {
	l, err := b.l.Eval(row)
	if err != nil {
		return Null(), err
	}
	lt, err := truthOf(l)
	if err != nil {
		return Null(), err
	}
	if b.op == OpAnd && lt == triFalse {
		return Bool(false), nil
	}
	if b.op == OpOr && lt == triTrue {
		return Bool(true), nil
	}

	r, err := b.r.Eval(row)
	if err != nil {
		return Null(), err
	}
	rt, err := truthOf(r)
	if err != nil {
		return Null(), err
	}
	if b.op == OpAnd {
		return and3(lt, rt).datum(), nil
	}
	return and3(lt.not(), rt.not()).not().datum(), nil
}

func compare3(op Op, l, r Datum) (tri, error) {
	if l.IsNull() || r.IsNull() {
		return triNull, nil
	}
	c, err := Compare(l, r)
	if err != nil {
		return triNull, err
	}
	switch op {
	case OpEQ:
		return triOf(c == 0), nil
	case OpNE:
		return triOf(c != 0), nil
	case OpLT:
		return triOf(c < 0), nil
	case OpLE:
		return triOf(c <= 0), nil
	case OpGT:
		return triOf(c > 0), nil
	default:
		return triOf(c >= 0), nil
	}
}

func arith(op Op, l, r Datum) (Datum, error) {
	if l.IsNull() || r.IsNull() {
		return Null(), nil
	}
	a, err := l.number()
	if err != nil {
		return Null(), err
	}
	b, err := r.number()
	if err != nil {
		return Null(), err
	}

	if !a.float && !b.float {
		switch op {
		case OpPlus:
			return Int(a.i + b.i), nil
		case OpMinus:
			return Int(a.i - b.i), nil
		case OpMul:
			return Int(a.i * b.i), nil
		case OpIntDiv:
			if b.i == 0 {
				return Null(), nil
			}
			return Int(a.i / b.i), nil
		case OpMod:
			if b.i == 0 {
				return Null(), nil
			}
			return Int(a.i % b.i), nil
		}
	}

	x, y := a.asFloat(), b.asFloat()
	switch op {
	case OpPlus:
		return Float(x + y), nil
	case OpMinus:
		return Float(x - y), nil
	case OpMul:
		return Float(x * y), nil
	case OpDiv:
		if y == 0 {
			return Null(), nil
		}
		return Float(x / y), nil
	case OpIntDiv:
		if y == 0 {
			return Null(), nil
		}
		return Int(int64(x / y)), nil
	case OpMod:
		if y == 0 {
			return Null(), nil
		}
		return Float(math.Mod(x, y)), nil
	}
	return Null(), errors.Newf(errors.ErrorTypeExecute, "unsupported operator %s", op)
}

type unaryEval struct {
	op Op
	x  Evaluator
}

func (u *Unary) build() (Evaluator, error) {
	if u.Op != OpNot && u.Op != OpNeg {
		return nil, errors.Newf(errors.ErrorTypeCompile, "%s is not a unary operator", u.Op)
	}
	x, err := Build(u.X)
	if err != nil {
		return nil, err
	}
	return &unaryEval{op: u.Op, x: x}, nil
}

func (u *unaryEval) Eval(row column.Row) (Datum, error) {
	d, err := u.x.Eval(row)
	if err != nil || d.IsNull() {
		return Null(), err
	}
	if u.op == OpNot {
		t, err := truthOf(d)
		if err != nil {
			return Null(), err
		}
		return t.not().datum(), nil
	}
	n, err := d.number()
	if err != nil {
		return Null(), err
	}
	if n.float {
		return Float(-n.f), nil
	}
	return Int(-n.i), nil
}

type isNullEval struct {
	x   Evaluator
	not bool
}

func (n *IsNull) build() (Evaluator, error) {
	x, err := Build(n.X)
	if err != nil {
		return nil, err
	}
	return &isNullEval{x: x, not: n.Not}, nil
}

func (n *isNullEval) Eval(row column.Row) (Datum, error) {
	d, err := n.x.Eval(row)
	if err != nil {
		return Null(), err
	}
	return Bool(d.IsNull() != n.not), nil
}

type inEval struct {
	x    Evaluator
	list []Evaluator
	not  bool
}

func (in *In) build() (Evaluator, error) {
	x, err := Build(in.X)
	if err != nil {
		return nil, err
	}
	list, err := buildAll(in.List)
	if err != nil {
		return nil, err
	}
	return &inEval{x: x, list: list, not: in.Not}, nil
}

func (in *inEval) Eval(row column.Row) (Datum, error) {
	x, err := in.x.Eval(row)
	if err != nil || x.IsNull() {
		return Null(), err
	}
	result := triFalse
	for _, item := range in.list {
		d, err := item.Eval(row)
		if err != nil {
			return Null(), err
		}
		t, err := compare3(OpEQ, x, d)
		if err != nil {
			return Null(), err
		}
		if t == triTrue {
			result = triTrue
			break
		}
		if t == triNull {
			result = triNull
		}
	}
	if in.not {
		result = result.not()
	}
	return result.datum(), nil
}

type betweenEval struct {
	x, lo, hi Evaluator
	not       bool
}

func (b *Between) build() (Evaluator, error) {
	evs, err := buildAll([]Expr{b.X, b.Lo, b.Hi})
	if err != nil {
		return nil, err
	}
	return &betweenEval{x: evs[0], lo: evs[1], hi: evs[2], not: b.Not}, nil
}

func (b *betweenEval) Eval(row column.Row) (Datum, error) {
	x, err := b.x.Eval(row)
	if err != nil {
		return Null(), err
	}
	lo, err := b.lo.Eval(row)
	if err != nil {
		return Null(), err
	}
	hi, err := b.hi.Eval(row)
	if err != nil {
		return Null(), err
	}
	ge, err := compare3(OpGE, x, lo)
	if err != nil {
		return Null(), err
	}
	le, err := compare3(OpLE, x, hi)
	if err != nil {
		return Null(), err
	}
	result := and3(ge, le)
	if b.not {
		result = result.not()
	}
	return result.datum(), nil
}

type likeEval struct {
	x, pattern Evaluator
	escape     byte
	not        bool
}

func (l *Like) build() (Evaluator, error) {
	x, err := Build(l.X)
	if err != nil {
		return nil, err
	}
	p, err := Build(l.Pattern)
	if err != nil {
		return nil, err
	}
	esc := l.Escape
	if esc == 0 {
		esc = '\\'
	}
	return &likeEval{x: x, pattern: p, escape: esc, not: l.Not}, nil
}

func (l *likeEval) Eval(row column.Row) (Datum, error) {
	x, err := l.x.Eval(row)
	if err != nil {
		return Null(), err
	}
	p, err := l.pattern.Eval(row)
	if err != nil {
		return Null(), err
	}
	if x.IsNull() || p.IsNull() {
		return Null(), nil
	}
	matched := likeMatch(x.Value().Data(), p.Value().Data(), l.escape)
	return Bool(matched != l.not), nil
}

// likeMatch matches s against a LIKE pattern, backtracking to the most
// recent % on mismatch.
func likeMatch(s, p []byte, esc byte) bool {
	si, pi := 0, 0
	starP, starS := -1, 0
	for si < len(s) {
		if pi < len(p) {
			switch c := p[pi]; {
			case c == '%':
				starP, starS = pi, si
				pi++
				continue
			case c == '_':
				si++
				pi++
				continue
			case c == esc && pi+1 < len(p):
				if s[si] == p[pi+1] {
					si++
					pi += 2
					continue
				}
			default:
				if s[si] == c {
					si++
					pi++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		starS++
		si, pi = starS, starP+1
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

type callEval struct {
	name string
	args []Evaluator
	vals []Datum
	impl Impl
}

func (c *Call) build() (Evaluator, error) {
	if c.Func == nil || c.Func.New == nil {
		return nil, errors.New(errors.ErrorTypeCompile, "call without a function definition")
	}
	if err := c.Func.CheckArity(len(c.Args)); err != nil {
		return nil, err
	}
	args, err := buildAll(c.Args)
	if err != nil {
		return nil, err
	}
	return &callEval{
		name: c.Func.Name,
		args: args,
		vals: make([]Datum, len(args)),
		impl: c.Func.New(),
	}, nil
}

func (c *callEval) Eval(row column.Row) (Datum, error) {
	for i, a := range c.args {
		d, err := a.Eval(row)
		if err != nil {
			return Null(), err
		}
		c.vals[i] = d
	}
	d, err := c.impl.Call(c.vals)
	if err != nil {
		if !errors.IsExecute(err) {
			err = errors.Wrapf(err, errors.ErrorTypeExecute, "%s failed", c.name)
		}
		return Null(), err
	}
	return d, nil
}
