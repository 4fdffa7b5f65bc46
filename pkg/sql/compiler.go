// Package sql compiles SELECT statements over decoded XDR columns into plan
// specifications. Parsing is done by the TiDB SQL parser; only the
// single-table filter and projection subset is accepted:
//
//	SELECT <expr> [AS name], ... FROM event [WHERE <expr>]
//
// Columns are resolved against the plan schema by name, case-insensitively.
package sql

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/plan"
	"github.com/ajitpratap0/xdrflow/pkg/plan/expr"
)

// DefaultTable is the table name expressions select from.
const DefaultTable = "event"

// Option configures a Compiler.
type Option func(*Compiler)

// WithTable changes the accepted table name.
func WithTable(name string) Option {
	return func(c *Compiler) { c.table = strings.ToLower(name) }
}

// Compiler implements plan.Compiler for SQL text. It is safe for concurrent
// use; parses are serialized.
type Compiler struct {
	functions *expr.Registry
	table     string

	mu     sync.Mutex
	parser *parser.Parser
}

var _ plan.Compiler = (*Compiler)(nil)

// NewCompiler creates a compiler resolving function calls in functions.
func NewCompiler(functions *expr.Registry, opts ...Option) *Compiler {
	c := &Compiler{
		functions: functions,
		table:     DefaultTable,
		parser:    parser.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile parses text and builds the plan specification over schema.
func (c *Compiler) Compile(_ context.Context, text string, schema plan.Schema) (*plan.Spec, error) {
	sel, err := c.parse(text)
	if err != nil {
		return nil, err
	}
	if err := c.checkShape(sel); err != nil {
		return nil, err.WithDetail("expression", text)
	}

	b := &builder{schema: schema, functions: c.functions, table: c.table}

	var predicate expr.Expr
	if sel.Where != nil {
		if predicate, err = b.expr(sel.Where); err != nil {
			return nil, err
		}
	}

	var outputs []expr.Expr
	var names []string
	for _, f := range sel.Fields.Fields {
		if f.WildCard != nil {
			if t := f.WildCard.Table.L; t != "" && t != c.table {
				return nil, errors.Newf(errors.ErrorTypeCompile, "unknown table %q", f.WildCard.Table.O)
			}
			for i, name := range schema.Columns {
				outputs = append(outputs, &expr.Column{Index: i, Name: name})
				names = append(names, name)
			}
			continue
		}
		e, err := b.expr(f.Expr)
		if err != nil {
			return nil, err
		}
		name := f.AsName.O
		if name == "" {
			name = e.String()
		}
		outputs = append(outputs, e)
		names = append(names, name)
	}

	return plan.NewSpec(text, schema, predicate, outputs, names), nil
}

func (c *Compiler) parse(text string) (*ast.SelectStmt, error) {
	c.mu.Lock()
	stmt, err := c.parser.ParseOneStmt(text, "", "")
	c.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCompile, "parse failed").
			WithDetail("expression", text)
	}
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeCompile, "expected a SELECT statement, got %T", stmt).
			WithDetail("expression", text)
	}
	return sel, nil
}

// checkShape rejects every SELECT feature outside filter and projection.
func (c *Compiler) checkShape(sel *ast.SelectStmt) *errors.Error {
	unsupported := func(what string) *errors.Error {
		return errors.Newf(errors.ErrorTypeCompile, "%s is not supported", what)
	}
	switch {
	case sel.Distinct:
		return unsupported("DISTINCT")
	case sel.GroupBy != nil:
		return unsupported("GROUP BY")
	case sel.Having != nil:
		return unsupported("HAVING")
	case sel.OrderBy != nil:
		return unsupported("ORDER BY")
	case sel.Limit != nil:
		return unsupported("LIMIT")
	case sel.With != nil:
		return unsupported("WITH")
	case sel.Fields == nil || len(sel.Fields.Fields) == 0:
		return errors.New(errors.ErrorTypeCompile, "empty select list")
	case sel.From == nil || sel.From.TableRefs == nil:
		return errors.Newf(errors.ErrorTypeCompile, "missing FROM %s", c.table)
	}

	join := sel.From.TableRefs
	if join.Right != nil {
		return unsupported("JOIN")
	}
	src, ok := join.Left.(*ast.TableSource)
	if !ok {
		return unsupported("subquery in FROM")
	}
	tbl, ok := src.Source.(*ast.TableName)
	if !ok {
		return unsupported("subquery in FROM")
	}
	if tbl.Name.L != c.table || tbl.Schema.L != "" {
		return errors.Newf(errors.ErrorTypeCompile, "unknown table %q, expressions select from %s", tbl.Name.O, c.table)
	}
	return nil
}

// builder converts parser expressions into plan expressions.
type builder struct {
	schema    plan.Schema
	functions *expr.Registry
	table     string
}

var binaryOps = map[opcode.Op]expr.Op{
	opcode.LogicAnd: expr.OpAnd,
	opcode.LogicOr:  expr.OpOr,
	opcode.LogicXor: expr.OpXor,
	opcode.EQ:       expr.OpEQ,
	opcode.NE:       expr.OpNE,
	opcode.LT:       expr.OpLT,
	opcode.LE:       expr.OpLE,
	opcode.GT:       expr.OpGT,
	opcode.GE:       expr.OpGE,
	opcode.NullEQ:   expr.OpNullEQ,
	opcode.Plus:     expr.OpPlus,
	opcode.Minus:    expr.OpMinus,
	opcode.Mul:      expr.OpMul,
	opcode.Div:      expr.OpDiv,
	opcode.IntDiv:   expr.OpIntDiv,
	opcode.Mod:      expr.OpMod,
}

func (b *builder) expr(node ast.ExprNode) (expr.Expr, error) {
	switch n := node.(type) {
	case *ast.ParenthesesExpr:
		return b.expr(n.Expr)

	case *ast.ColumnNameExpr:
		return b.column(n.Name)

	case ast.ValueExpr:
		d, err := literal(n.GetValue())
		if err != nil {
			return nil, err
		}
		return &expr.Literal{Value: d}, nil

	case *ast.BinaryOperationExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeCompile, "operator %s is not supported", n.Op)
		}
		l, err := b.expr(n.L)
		if err != nil {
			return nil, err
		}
		r, err := b.expr(n.R)
		if err != nil {
			return nil, err
		}
		return &expr.Binary{Op: op, L: l, R: r}, nil

	case *ast.UnaryOperationExpr:
		x, err := b.expr(n.V)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case opcode.Not, opcode.Not2:
			return &expr.Unary{Op: expr.OpNot, X: x}, nil
		case opcode.Minus:
			return &expr.Unary{Op: expr.OpNeg, X: x}, nil
		case opcode.Plus:
			return x, nil
		}
		return nil, errors.Newf(errors.ErrorTypeCompile, "operator %s is not supported", n.Op)

	case *ast.IsNullExpr:
		x, err := b.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		return &expr.IsNull{X: x, Not: n.Not}, nil

	case *ast.PatternInExpr:
		if n.Sel != nil {
			return nil, errors.New(errors.ErrorTypeCompile, "IN subquery is not supported")
		}
		x, err := b.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		list, err := b.exprs(n.List)
		if err != nil {
			return nil, err
		}
		return &expr.In{X: x, List: list, Not: n.Not}, nil

	case *ast.BetweenExpr:
		x, err := b.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		lo, err := b.expr(n.Left)
		if err != nil {
			return nil, err
		}
		hi, err := b.expr(n.Right)
		if err != nil {
			return nil, err
		}
		return &expr.Between{X: x, Lo: lo, Hi: hi, Not: n.Not}, nil

	case *ast.PatternLikeOrIlikeExpr:
		if !n.IsLike {
			return nil, errors.New(errors.ErrorTypeCompile, "ILIKE is not supported")
		}
		x, err := b.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		p, err := b.expr(n.Pattern)
		if err != nil {
			return nil, err
		}
		return &expr.Like{X: x, Pattern: p, Escape: n.Escape, Not: n.Not}, nil

	case *ast.FuncCallExpr:
		return b.call(n)

	case *ast.AggregateFuncExpr:
		return nil, errors.Newf(errors.ErrorTypeCompile, "aggregate %s is not supported", n.F)
	}
	return nil, errors.Newf(errors.ErrorTypeCompile, "expression %T is not supported", node)
}

func (b *builder) exprs(nodes []ast.ExprNode) ([]expr.Expr, error) {
	out := make([]expr.Expr, len(nodes))
	for i, n := range nodes {
		e, err := b.expr(n)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (b *builder) column(name *ast.ColumnName) (expr.Expr, error) {
	if name.Schema.L != "" || (name.Table.L != "" && name.Table.L != b.table) {
		return nil, errors.Newf(errors.ErrorTypeCompile, "unknown table %q", name.Table.O)
	}
	i, ok := b.schema.Index(name.Name.L)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeCompile, "unknown column %q", name.Name.O).
			WithDetail("column", name.Name.O)
	}
	return &expr.Column{Index: i, Name: b.schema.Columns[i]}, nil
}

func (b *builder) call(n *ast.FuncCallExpr) (expr.Expr, error) {
	def, ok := b.functions.Lookup(n.FnName.L)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeCompile, "unknown function %s", n.FnName.O).
			WithDetail("function", n.FnName.O)
	}
	if err := def.CheckArity(len(n.Args)); err != nil {
		return nil, err
	}
	args, err := b.exprs(n.Args)
	if err != nil {
		return nil, err
	}
	return &expr.Call{Func: def, Args: args}, nil
}

// literal converts a parsed constant. Hex and bit literals become bytes;
// decimals are evaluated as floats.
func literal(v any) (expr.Datum, error) {
	switch x := v.(type) {
	case nil:
		return expr.Null(), nil
	case int64:
		return expr.Int(x), nil
	case uint64:
		if x > 1<<63-1 {
			return expr.Float(float64(x)), nil
		}
		return expr.Int(int64(x)), nil
	case float64:
		return expr.Float(x), nil
	case float32:
		return expr.Float(float64(x)), nil
	case string:
		return expr.TextString(x), nil
	case []byte:
		return expr.Bytes(x), nil
	case fmt.Stringer:
		if rv := reflect.ValueOf(x); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return expr.Bytes(rv.Bytes()), nil
		}
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return expr.Null(), errors.Wrapf(err, errors.ErrorTypeCompile, "unsupported literal %s", x)
		}
		return expr.Float(f), nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return expr.Bytes(rv.Bytes()), nil
	}
	return expr.Null(), errors.Newf(errors.ErrorTypeCompile, "unsupported literal of type %T", v)
}
