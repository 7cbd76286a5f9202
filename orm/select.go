package orm

import (
	"context"
	"database/sql"
	"strings"

	"github.com/coderi421/ratorm/orm/internal/errs"
)

var (
	_ EntityQuerier[any] = &Selector[any]{}
	_ QueryBuilder       = &Selector[any]{}
)

// Selector 针对一个实体类型的查询，绑定在一个 Session 上
// 构造过程中出现的第一个错误会被记录下来，
// 所有的终结方法都会在执行任何语句之前返回它
type Selector[T any] struct {
	builder
	core
	sess Session

	where   []Predicate
	orderBy []orderBy
	// limit 小于 0 代表没有设置
	limit  int
	offset int

	err error
}

type orderBy struct {
	col   string
	order string
}

// CreateQuery 创建一个查询
func CreateQuery[T any](sess Session) *Selector[T] {
	c := sess.getCore()
	s := &Selector[T]{
		core:  c,
		sess:  sess,
		limit: -1,
	}
	m, err := c.r.Get(new(T))
	if err != nil {
		s.err = err
		return s
	}
	s.builder = newBuilder(c, m)
	return s
}

func (s *Selector[T]) fail(err error) *Selector[T] {
	if s.err == nil {
		s.err = err
	}
	return s
}

func (s *Selector[T]) checkColumn(col string) bool {
	if s.model == nil {
		return false
	}
	if _, ok := s.model.ColumnOf(col); !ok {
		s.fail(errs.NewErrUnknownQueryColumn(s.model.Name(), col))
		return false
	}
	return true
}

// Where 等值条件，多个条件之间是 AND
func (s *Selector[T]) Where(col string, val any) *Selector[T] {
	return s.WhereOp(col, "=", val)
}

// WhereOp 支持 =, <>, !=, <, <=, >, >=, LIKE, NOT LIKE
func (s *Selector[T]) WhereOp(col string, operator string, val any) *Selector[T] {
	if !s.checkColumn(col) {
		return s
	}
	o, ok := comparisonOf(operator)
	if !ok {
		return s.fail(errs.NewErrQuery(s.model.Name(), "不支持的操作符 %s", operator))
	}
	s.where = append(s.where, C(col).compare(o, val))
	return s
}

// WhereIn vals 为空的时候不会添加任何条件
func (s *Selector[T]) WhereIn(col string, vals ...any) *Selector[T] {
	if !s.checkColumn(col) || len(vals) == 0 {
		return s
	}
	s.where = append(s.where, C(col).In(vals...))
	return s
}

// Predicates 用于构造复杂的查询条件，例如 C("Age").GT(18).Or(C("Name").EQ("Tom"))
func (s *Selector[T]) Predicates(ps ...Predicate) *Selector[T] {
	s.where = append(s.where, ps...)
	return s
}

func (s *Selector[T]) OrderBy(col string) *Selector[T] {
	return s.OrderByDir(col, "ASC")
}

// OrderByDir dir 只能是 ASC 或者 DESC，大小写不敏感
func (s *Selector[T]) OrderByDir(col string, dir string) *Selector[T] {
	if !s.checkColumn(col) {
		return s
	}
	d := strings.ToUpper(strings.TrimSpace(dir))
	if d != "ASC" && d != "DESC" {
		return s.fail(errs.NewErrQuery(s.model.Name(), "不支持的排序方向 %s", dir))
	}
	s.orderBy = append(s.orderBy, orderBy{col: col, order: d})
	return s
}

func (s *Selector[T]) Limit(limit int) *Selector[T] {
	if limit < 0 {
		return s.fail(errs.NewErrQuery(s.entity(), "limit 不能为负数: %d", limit))
	}
	s.limit = limit
	return s
}

func (s *Selector[T]) Offset(offset int) *Selector[T] {
	if offset < 0 {
		return s.fail(errs.NewErrQuery(s.entity(), "offset 不能为负数: %d", offset))
	}
	s.offset = offset
	return s
}

func (s *Selector[T]) entity() string {
	if s.model == nil {
		return ""
	}
	return s.model.Name()
}

// Build generates a SQL query for selecting all columns from a table.
func (s *Selector[T]) Build() (*Query, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.reset()

	s.sb.WriteString("SELECT * FROM ")
	s.quote(s.model.TableName)
	if err := s.buildWhere(); err != nil {
		return nil, err
	}

	if len(s.orderBy) > 0 {
		s.sb.WriteString(" ORDER BY ")
		for i, ob := range s.orderBy {
			if i > 0 {
				s.sb.WriteByte(',')
			}
			if err := s.buildColumn(ob.col); err != nil {
				return nil, err
			}
			s.sb.WriteByte(' ')
			s.sb.WriteString(ob.order)
		}
	}

	if s.limit >= 0 {
		s.sb.WriteString(" LIMIT ")
		s.writeArg(s.limit)
	} else if s.offset > 0 {
		// 有的数据库不允许只有 OFFSET
		s.sb.WriteString(s.builder.dialect.noLimit())
	}
	if s.offset > 0 {
		s.sb.WriteString(" OFFSET ")
		s.writeArg(s.offset)
	}

	s.sb.WriteByte(';')
	return &Query{
		SQL:  s.sb.String(),
		Args: s.args,
	}, nil
}

// buildCount 统计的时候忽略排序和分页
func (s *Selector[T]) buildCount() (*Query, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.reset()

	s.sb.WriteString("SELECT ")
	if err := s.buildExpression(Count("*")); err != nil {
		return nil, err
	}
	s.sb.WriteString(" FROM ")
	s.quote(s.model.TableName)
	if err := s.buildWhere(); err != nil {
		return nil, err
	}
	s.sb.WriteByte(';')
	return &Query{
		SQL:  s.sb.String(),
		Args: s.args,
	}, nil
}

func (s *Selector[T]) buildWhere() error {
	if len(s.where) == 0 {
		return nil
	}
	s.sb.WriteString(" WHERE ")
	return s.buildPredicates(s.where)
}

// GetResultList 返回全部满足条件的实体，关联会被一并加载
func (s *Selector[T]) GetResultList(ctx context.Context) ([]*T, error) {
	if s.err != nil {
		return nil, s.err
	}
	m := newMaterializer(s.core, s.sess)
	ents, err := m.load(ctx, &QueryContext{
		Type:    TypeSelect,
		Builder: s,
		Model:   s.model,
	}, s.model, 0)
	if err != nil {
		return nil, err
	}
	res := make([]*T, 0, len(ents))
	for _, ent := range ents {
		res = append(res, ent.(*T))
	}
	return res, nil
}

// GetSingleResult 强制 LIMIT 1，没有数据的时候返回 nil, nil
func (s *Selector[T]) GetSingleResult(ctx context.Context) (*T, error) {
	limit := s.limit
	s.limit = 1
	defer func() {
		s.limit = limit
	}()
	res, err := s.GetResultList(ctx)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return res[0], nil
}

// Count 满足条件的行数
func (s *Selector[T]) Count(ctx context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	var cnt int64
	err := query(ctx, s.sess, s.core, &QueryContext{
		Type:    TypeCount,
		Builder: builderFunc(s.buildCount),
		Model:   s.model,
	}, func(rows *sql.Rows) error {
		return rows.Scan(&cnt)
	})
	return cnt, err
}

// builderFunc 让函数也能作为 QueryBuilder
type builderFunc func() (*Query, error)

func (f builderFunc) Build() (*Query, error) {
	return f()
}
