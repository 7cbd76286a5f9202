package orm

// RawExpr 代表一个原生表达式
// 意味着 ORM 不会对它进行任何处理
type RawExpr struct {
	raw  string
	args []any
}

func (r RawExpr) expr() {}

func (r RawExpr) AsPredicate() Predicate {
	return Predicate{
		left: r,
	}
}

// Raw 创建一个 RawExpr
// 占位符需要和方言一致
func Raw(expr string, args ...any) RawExpr {
	return RawExpr{
		raw:  expr,
		args: args,
	}
}

// caseExpr 批量更新用的 CASE pk WHEN ? THEN ? END
// when 和 then 一一对应，已经是写入数据库的形式
type caseExpr struct {
	column string
	when   []any
	then   []any
	// cast 不为空的时候结果会被 CAST 成这个类型
	cast string
}

func (caseExpr) expr() {}
