package orm

import (
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/internal/valuer"
	"github.com/coderi421/ratorm/orm/model"
)

type builder struct {
	sb      strings.Builder // sb is used to build the SQL query string.
	args    []any           // args holds the arguments for the query.
	model   *model.Model
	dialect Dialect
	quoter  byte

	// bound 当前谓词左边的列，右边的参数按照它的类型转换
	bound *binding
}

type binding struct {
	field *model.Field
	join  *model.Relation
}

func newBuilder(c core, m *model.Model) builder {
	return builder{
		model:   m,
		dialect: c.dialect,
		quoter:  c.dialect.quoter(),
	}
}

// reset 同一个 builder 可能被 Build 多次
func (b *builder) reset() {
	b.sb.Reset()
	b.args = nil
	b.bound = nil
}

func (b *builder) quote(name string) {
	b.sb.WriteByte(b.quoter)
	b.sb.WriteString(name)
	b.sb.WriteByte(b.quoter)
}

func (b *builder) addArgs(args ...any) {
	if b.args == nil {
		b.args = make([]any, 0, 8)
	}
	b.args = append(b.args, args...)
}

// writeArg 追加参数并写入对应的占位符
func (b *builder) writeArg(val any) {
	b.addArgs(val)
	b.sb.WriteString(b.dialect.placeholder(len(b.args)))
}

// buildColumn 列名、字段名或者外键列都可以
func (b *builder) buildColumn(name string) error {
	col, ok := b.model.ColumnOf(name)
	if !ok {
		return errs.NewErrUnknownQueryColumn(b.model.Name(), name)
	}
	b.quote(col)
	return nil
}

// buildPredicates builds the predicates for the given list of predicates.
func (b *builder) buildPredicates(ps []Predicate) error {
	p := ps[0]
	for i := 1; i < len(ps); i++ {
		// Merge multiple predicates using the `And` method.
		p = p.And(ps[i])
	}
	return b.buildExpression(p)
}

// buildExpression 递归构造表达式
// Column 代表是列名，直接拼接列名
// value 代表参数，加入参数列表
// Predicate 代表一个查询条件，左右两边是 Predicate 的时候加上括号
func (b *builder) buildExpression(e Expression) error {
	if e == nil {
		return nil
	}

	switch expr := e.(type) {
	case Column:
		return b.buildColumn(expr.name)
	case value:
		val, err := b.storage(expr.val)
		if err != nil {
			return err
		}
		b.writeArg(val)
	case values:
		b.sb.WriteByte('(')
		if len(expr.vals) == 0 {
			b.sb.WriteString("NULL")
		}
		for i, v := range expr.vals {
			if i > 0 {
				b.sb.WriteByte(',')
			}
			val, err := b.storage(v)
			if err != nil {
				return err
			}
			b.writeArg(val)
		}
		b.sb.WriteByte(')')
	case caseExpr:
		return b.buildCase(expr)
	case RawExpr:
		// 原生表达式不做任何处理
		b.sb.WriteString(expr.raw)
		if len(expr.args) != 0 {
			b.addArgs(expr.args...)
		}
	case Aggregate:
		b.sb.WriteString(expr.fn)
		b.sb.WriteByte('(')
		if expr.arg == "*" {
			b.sb.WriteByte('*')
		} else if err := b.buildColumn(expr.arg); err != nil {
			return err
		}
		b.sb.WriteByte(')')
	case Predicate:
		return b.buildPredicate(expr)
	default:
		return errs.NewErrUnsupportedExpressionType(expr)
	}
	return nil
}

func (b *builder) buildPredicate(p Predicate) error {
	_, lp := p.left.(Predicate)
	if lp {
		b.sb.WriteByte('(')
	}
	if err := b.buildExpression(p.left); err != nil {
		return err
	}
	if lp {
		b.sb.WriteByte(')')
	}

	// 只有左边，例如原生表达式
	if p.op == "" {
		return nil
	}

	if p.left != nil {
		b.sb.WriteByte(' ')
	}
	b.sb.WriteString(p.op.String())
	b.sb.WriteByte(' ')

	if c, ok := p.left.(Column); ok {
		b.bound = b.bind(c.name)
		defer func() {
			b.bound = nil
		}()
	}

	_, rp := p.right.(Predicate)
	if rp {
		b.sb.WriteByte('(')
	}
	if err := b.buildExpression(p.right); err != nil {
		return err
	}
	if rp {
		b.sb.WriteByte(')')
	}
	return nil
}

func (b *builder) buildCase(c caseExpr) error {
	if c.cast != "" {
		b.sb.WriteString("CAST(")
	}
	b.sb.WriteString("CASE ")
	if err := b.buildColumn(c.column); err != nil {
		return err
	}
	for i := range c.when {
		b.sb.WriteString(" WHEN ")
		b.writeArg(c.when[i])
		b.sb.WriteString(" THEN ")
		b.writeArg(c.then[i])
	}
	b.sb.WriteString(" END")
	if c.cast != "" {
		b.sb.WriteString(" AS ")
		b.sb.WriteString(c.cast)
		b.sb.WriteByte(')')
	}
	return nil
}

func (b *builder) buildAssignment(a Assignment) error {
	if err := b.buildColumn(a.column); err != nil {
		return err
	}
	b.sb.WriteByte('=')
	return b.buildExpression(a.val)
}

func (b *builder) bind(name string) *binding {
	if fd, ok := b.model.LookupField(name); ok {
		return &binding{field: fd}
	}
	if rel, ok := b.model.JoinMap[name]; ok {
		return &binding{join: rel}
	}
	if rel, ok := b.model.RelationMap[name]; ok && rel.Owning {
		return &binding{join: rel}
	}
	return nil
}

// storage 按照写入时一样的规则转换参数
// 只有参数的类型和字段的类型一致时才转换，其余的原样传给驱动
func (b *builder) storage(val any) (any, error) {
	if b.bound == nil || val == nil {
		return val, nil
	}
	if b.bound.join != nil {
		if id, ok := val.(uuid.UUID); ok {
			return id.String(), nil
		}
		return val, nil
	}
	fd := b.bound.field
	typ := reflect.TypeOf(val)
	if typ == fd.Type || (fd.Type.Kind() == reflect.Ptr && typ == fd.Type.Elem()) {
		return valuer.Storage(fd, val)
	}
	return val, nil
}
