package orm

// Column 列名、字段名或者外键列名都可以
type Column struct {
	name string
}

func (c Column) expr() {}

type value struct {
	val any
}

func (v value) expr() {}

// valueOf creates a new value object with the given value.
func valueOf(val any) value {
	return value{val: val}
}

// values IN 后面的参数列表
type values struct {
	vals []any
}

func (values) expr() {}

func C(name string) Column {
	return Column{name: name}
}

func (c Column) compare(o op, arg any) Predicate {
	return Predicate{
		left:  c,
		op:    o,
		right: exprOf(arg), // 如果 arg 不是 Expression 类型 就让他变成这个类型
	}
}

// EQ 例如 C("id").EQ(12)
func (c Column) EQ(arg any) Predicate {
	return c.compare(opEQ, arg)
}

func (c Column) NE(arg any) Predicate {
	return c.compare(opNE, arg)
}

// LT 例如 C("id").LT(12)
func (c Column) LT(arg any) Predicate {
	return c.compare(opLT, arg)
}

func (c Column) LE(arg any) Predicate {
	return c.compare(opLE, arg)
}

func (c Column) GT(arg any) Predicate {
	return c.compare(opGT, arg)
}

func (c Column) GE(arg any) Predicate {
	return c.compare(opGE, arg)
}

func (c Column) Like(pattern string) Predicate {
	return c.compare(opLike, pattern)
}

func (c Column) NotLike(pattern string) Predicate {
	return c.compare(opNotLike, pattern)
}

// In 空列表会生成 IN (NULL)，不会匹配任何一行
func (c Column) In(args ...any) Predicate {
	return Predicate{
		left:  c,
		op:    opIn,
		right: values{vals: args},
	}
}
