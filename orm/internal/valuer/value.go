package valuer

import (
	"database/sql"
	"reflect"

	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/model"
)

// Value 是对结构体实例的内部抽象
type Value interface {
	// Field 返回字段写入数据库时使用的值，name 是字段名
	Field(name string) (any, error)
	// SetField 把数据库中读出来的值写回字段
	SetField(name string, val any) error
	// SetColumns 设置新值，外键列的值会被暂存起来，通过 ForeignKeys 获取
	SetColumns(rows *sql.Rows) error
	// ForeignKeys 上一次 SetColumns 读到的外键，key 是外键列名
	ForeignKeys() map[string]any
	// Relation 返回关联字段当前指向的实例，没有设置的时候返回 nil
	Relation(name string) any
	SetRelation(name string, target any) error
}

type Creator func(val any, meta *model.Model) Value

// common 两种实现共享的逻辑，差别只在于如何拿到字段的 reflect.Value
type common struct {
	meta    *model.Model
	fieldAt func(index []int, offset uintptr, typ reflect.Type) reflect.Value
	fks     map[string]any
}

func (c *common) Field(name string) (any, error) {
	fd, ok := c.meta.FieldMap[name]
	if !ok {
		return nil, errs.NewErrUnknownField(name)
	}
	return ToStorage(fd, c.fieldAt(fd.Index, fd.Offset, fd.Type))
}

func (c *common) SetField(name string, val any) error {
	fd, ok := c.meta.FieldMap[name]
	if !ok {
		return errs.NewErrUnknownField(name)
	}
	return FromStorage(fd, c.fieldAt(fd.Index, fd.Offset, fd.Type), val)
}

// SetColumns 将数据库中的数据设置到对应的 struct 上
func (c *common) SetColumns(rows *sql.Rows) error {
	columnNames, err := rows.Columns()
	if err != nil {
		return err
	}
	if len(columnNames) > c.meta.ColumnCount() {
		return errs.ErrTooManyReturnedColumns
	}

	c.fks = make(map[string]any, len(c.meta.JoinMap))
	colValues := make([]any, len(columnNames))
	for i, name := range columnNames {
		if fd, ok := c.meta.ColumnMap[name]; ok {
			colValues[i] = fieldScanner{fd: fd, dst: c.fieldAt(fd.Index, fd.Offset, fd.Type)}
			continue
		}
		if _, ok := c.meta.JoinMap[name]; ok {
			colValues[i] = fkScanner{col: name, fks: c.fks}
			continue
		}
		return errs.NewErrUnknownColumn(name)
	}
	return rows.Scan(colValues...)
}

func (c *common) ForeignKeys() map[string]any {
	return c.fks
}

func (c *common) Relation(name string) any {
	rel, ok := c.meta.RelationMap[name]
	if !ok {
		return nil
	}
	rv := c.fieldAt(rel.Index, rel.Offset, rel.Target)
	if rv.IsNil() {
		return nil
	}
	return rv.Interface()
}

func (c *common) SetRelation(name string, target any) error {
	rel, ok := c.meta.RelationMap[name]
	if !ok {
		return errs.NewErrUnknownField(name)
	}
	rv := c.fieldAt(rel.Index, rel.Offset, rel.Target)
	if target == nil {
		rv.Set(reflect.Zero(rel.Target))
		return nil
	}
	rv.Set(reflect.ValueOf(target))
	return nil
}

// fieldScanner 让 rows.Scan 直接把值转换之后写到字段上
type fieldScanner struct {
	fd  *model.Field
	dst reflect.Value
}

func (s fieldScanner) Scan(src any) error {
	return FromStorage(s.fd, s.dst, src)
}

type fkScanner struct {
	col string
	fks map[string]any
}

func (s fkScanner) Scan(src any) error {
	// 驱动会复用 []byte 的底层数组
	if b, ok := src.([]byte); ok {
		src = string(b)
	}
	s.fks[s.col] = src
	return nil
}
