// Package expr holds the immutable expression descriptors of a compiled
// plan and builds per-instance evaluators from them.
//
// Descriptors never carry mutable state. Build walks a descriptor tree and
// returns an Evaluator that owns private scratch space and fresh function
// implementations, so evaluators built from the same tree never interfere.
package expr

import (
	"strconv"
	"strings"
)

// Expr is an immutable expression descriptor.
type Expr interface {
	String() string
	// Children returns the direct sub-expressions.
	Children() []Expr

	build() (Evaluator, error)
}

// Op is a binary or unary operator.
type Op uint8

const (
	OpAnd Op = iota
	OpOr
	OpXor
	OpNot
	OpEQ
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
	OpNullEQ
	OpPlus
	OpMinus
	OpMul
	OpDiv
	OpIntDiv
	OpMod
	OpNeg
)

var opNames = [...]string{
	OpAnd:    "AND",
	OpOr:     "OR",
	OpXor:    "XOR",
	OpNot:    "NOT",
	OpEQ:     "=",
	OpNE:     "!=",
	OpLT:     "<",
	OpLE:     "<=",
	OpGT:     ">",
	OpGE:     ">=",
	OpNullEQ: "<=>",
	OpPlus:   "+",
	OpMinus:  "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpIntDiv: "DIV",
	OpMod:    "%",
	OpNeg:    "-",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Column references the input column at Index.
type Column struct {
	Index int
	Name  string
}

func (c *Column) String() string  { return c.Name }
func (c *Column) Children() []Expr { return nil }

// Literal is a constant.
type Literal struct {
	Value Datum
}

func (l *Literal) String() string  { return l.Value.String() }
func (l *Literal) Children() []Expr { return nil }

// Binary applies Op to L and R.
type Binary struct {
	Op   Op
	L, R Expr
}

func (b *Binary) String() string {
	return "(" + b.L.String() + " " + b.Op.String() + " " + b.R.String() + ")"
}
func (b *Binary) Children() []Expr { return []Expr{b.L, b.R} }

// Unary applies OpNot or OpNeg to X.
type Unary struct {
	Op Op
	X  Expr
}

func (u *Unary) String() string {
	if u.Op == OpNot {
		return "(NOT " + u.X.String() + ")"
	}
	return "(-" + u.X.String() + ")"
}
func (u *Unary) Children() []Expr { return []Expr{u.X} }

// IsNull tests X for NULL.
type IsNull struct {
	X   Expr
	Not bool
}

func (n *IsNull) String() string {
	if n.Not {
		return "(" + n.X.String() + " IS NOT NULL)"
	}
	return "(" + n.X.String() + " IS NULL)"
}
func (n *IsNull) Children() []Expr { return []Expr{n.X} }

// In tests X for membership in List.
type In struct {
	X    Expr
	List []Expr
	Not  bool
}

func (in *In) String() string {
	parts := make([]string, len(in.List))
	for i, e := range in.List {
		parts[i] = e.String()
	}
	op := " IN ("
	if in.Not {
		op = " NOT IN ("
	}
	return "(" + in.X.String() + op + strings.Join(parts, ", ") + "))"
}
func (in *In) Children() []Expr { return append([]Expr{in.X}, in.List...) }

// Between tests Lo <= X <= Hi.
type Between struct {
	X, Lo, Hi Expr
	Not       bool
}

func (b *Between) String() string {
	op := " BETWEEN "
	if b.Not {
		op = " NOT BETWEEN "
	}
	return "(" + b.X.String() + op + b.Lo.String() + " AND " + b.Hi.String() + ")"
}
func (b *Between) Children() []Expr { return []Expr{b.X, b.Lo, b.Hi} }

// Like matches X against a SQL pattern with % and _ wildcards.
type Like struct {
	X, Pattern Expr
	Escape     byte
	Not        bool
}

func (l *Like) String() string {
	op := " LIKE "
	if l.Not {
		op = " NOT LIKE "
	}
	return "(" + l.X.String() + op + l.Pattern.String() + ")"
}
func (l *Like) Children() []Expr { return []Expr{l.X, l.Pattern} }

// Call invokes a registered scalar function.
type Call struct {
	Func *Definition
	Args []Expr
}

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.Func.Name + "(" + strings.Join(parts, ", ") + ")"
}
func (c *Call) Children() []Expr { return c.Args }

// Walk calls fn for e and every descendant in depth-first order.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	for _, c := range e.Children() {
		Walk(c, fn)
	}
}
