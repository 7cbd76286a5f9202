package orm

import "strings"

type op string

const (
	opEQ      op = "="
	opNE      op = "<>"
	opLT      op = "<"
	opLE      op = "<="
	opGT      op = ">"
	opGE      op = ">="
	opLike    op = "LIKE"
	opNotLike op = "NOT LIKE"
	opIn      op = "IN"
	opAND     op = "AND"
	opOR      op = "OR"
	opNOT     op = "NOT"
)

func (o op) String() string {
	return string(o)
}

// comparisons WhereOp 允许的操作符
var comparisons = map[string]op{
	"=":        opEQ,
	"<>":       opNE,
	"!=":       opNE,
	"<":        opLT,
	"<=":       opLE,
	">":        opGT,
	">=":       opGE,
	"LIKE":     opLike,
	"NOT LIKE": opNotLike,
}

// comparisonOf 大小写不敏感，多余的空白会被忽略
func comparisonOf(s string) (op, bool) {
	o, ok := comparisons[strings.ToUpper(strings.Join(strings.Fields(s), " "))]
	return o, ok
}

// Expression 代表语句，或者语句的部分
// 暂时没想好怎么设计方法，所以直接做成标记接口
type Expression interface {
	expr()
}

// exprOf returns an Expression based on the input parameter.
func exprOf(e any) Expression {
	switch expr := e.(type) {
	case Expression:
		return expr
	default:
		return valueOf(expr)
	}
}

// Predicate 代表一个查询条件
// Predicate 可以通过和 Predicate 组合构成复杂的查询条件
type Predicate struct {
	left  Expression
	op    op
	right Expression
}

func (Predicate) expr() {}

func Not(p Predicate) Predicate {
	return Predicate{
		op:    opNOT,
		right: p,
	}
}

func (p Predicate) And(r Predicate) Predicate {
	return Predicate{
		left:  p,
		op:    opAND,
		right: r,
	}
}

func (p Predicate) Or(r Predicate) Predicate {
	return Predicate{
		left:  p,
		op:    opOR,
		right: r,
	}
}
