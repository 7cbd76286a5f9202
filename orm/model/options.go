package model

import "github.com/coderi421/ratorm/orm/internal/errs"

// WithTableName is a Option function that sets the table name for a Model.
func WithTableName(tableName string) Option {
	return func(model *Model) error {
		model.TableName = tableName
		return nil
	}
}

// WithColumnName 修改某个字段的列名
func WithColumnName(field, columnName string) Option {
	return func(model *Model) error {
		fd, ok := model.FieldMap[field]
		if !ok {
			return errs.NewErrUnknownField(field)
		}
		delete(model.ColumnMap, fd.ColName)
		fd.ColName = columnName
		model.ColumnMap[columnName] = fd
		return nil
	}
}

// WithColumnDefinition 覆盖某个字段的列定义，例如 DECIMAL(10,2)
func WithColumnDefinition(field, sqlType string) Option {
	return func(model *Model) error {
		fd, ok := model.FieldMap[field]
		if !ok {
			return errs.NewErrUnknownField(field)
		}
		fd.SQLType = sqlType
		return nil
	}
}

// WithIndex 声明一个普通索引，name 为空的时候自动生成
func WithIndex(name string, cols ...string) Option {
	return func(model *Model) error {
		model.Indexes = append(model.Indexes, Index{Name: name, Columns: cols})
		return nil
	}
}

// WithUniqueConstraint 声明一个唯一约束
func WithUniqueConstraint(name string, cols ...string) Option {
	return func(model *Model) error {
		model.Indexes = append(model.Indexes, Index{Name: name, Columns: cols, Unique: true})
		return nil
	}
}

// WithHook 追加一个生命周期回调
func WithHook(p Phase, fn HookFunc) Option {
	return func(model *Model) error {
		switch p {
		case PhasePrePersist:
			model.PrePersist = append(model.PrePersist, fn)
		case PhasePostPersist:
			model.PostPersist = append(model.PostPersist, fn)
		case PhasePreUpdate:
			model.PreUpdate = append(model.PreUpdate, fn)
		case PhasePostUpdate:
			model.PostUpdate = append(model.PostUpdate, fn)
		}
		return nil
	}
}

// Keyless 允许模型没有主键，这样的模型不能 Update 和 Delete
func Keyless() Option {
	return func(model *Model) error {
		model.keyless = true
		return nil
	}
}
