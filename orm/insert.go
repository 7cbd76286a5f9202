package orm

import (
	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/model"
)

// inserter 构造 INSERT 语句，values 已经是写入数据库的形式
type inserter struct {
	builder
	columns []string
	rows    [][]any
	// returning 不为空的时候追加 RETURNING 子句，用于回填自增主键
	returning string
}

func newInserter(c core, m *model.Model) *inserter {
	return &inserter{builder: newBuilder(c, m)}
}

func (i *inserter) Build() (*Query, error) {
	if len(i.rows) == 0 {
		return nil, errs.ErrInsertZeroRow
	}
	i.reset()

	i.sb.WriteString("INSERT INTO ")
	i.quote(i.model.TableName)
	i.sb.WriteString(" (")
	for idx, col := range i.columns {
		if idx > 0 {
			i.sb.WriteByte(',')
		}
		i.quote(col)
	}
	i.sb.WriteString(") VALUES ")

	i.args = make([]any, 0, len(i.columns)*len(i.rows))
	for rIdx, row := range i.rows {
		// 构建 VALUES (?,?,?),(?,?,?)
		if rIdx > 0 {
			i.sb.WriteByte(',')
		}
		i.sb.WriteByte('(')
		for cIdx, val := range row {
			if cIdx > 0 {
				i.sb.WriteByte(',')
			}
			i.writeArg(val)
		}
		i.sb.WriteByte(')')
	}

	if i.returning != "" {
		i.sb.WriteString(" RETURNING ")
		i.quote(i.returning)
	}
	i.sb.WriteByte(';')
	return &Query{
		SQL:  i.sb.String(),
		Args: i.args,
	}, nil
}
