package orm

import (
	"strconv"

	"github.com/coderi421/ratorm/orm/model"
)

// ColumnType 返回字段在某个方言下的列类型
// 优先级：显式声明的类型 > 主键 > 枚举 > 时间 > 普通类型映射 > VARCHAR
func ColumnType(d Dialect, fd *model.Field) string {
	return columnType(d, fd, false)
}

// columnType 外键列引用主键的时候不需要自增
func columnType(d Dialect, fd *model.Field, reference bool) string {
	if fd.SQLType != "" {
		return fd.SQLType
	}
	if fd.IsPK && !reference && fd.Generation == model.GenerationIncrement {
		return d.autoIncrementType(intWidth(fd.Kind))
	}
	switch fd.Kind {
	case model.KindEnum:
		if fd.Enum.Encoding == model.EnumName {
			return varchar(fd.Size)
		}
		return "INT"
	case model.KindTime:
		if fd.Date {
			return "DATE"
		}
		return d.timeType()
	case model.KindString:
		return varchar(fd.Size)
	case model.KindUUID:
		return d.uuidType()
	case model.KindSmallInt:
		return "SMALLINT"
	case model.KindInt:
		return "INT"
	case model.KindInt64:
		return "BIGINT"
	case model.KindFloat32:
		return "REAL"
	case model.KindFloat64:
		return "DOUBLE PRECISION"
	case model.KindBool:
		return d.boolType()
	case model.KindBytes:
		return d.bytesType()
	}
	return varchar(fd.Size)
}

func intWidth(k model.Kind) int {
	switch k {
	case model.KindSmallInt:
		return intSmall
	case model.KindInt:
		return intRegular
	}
	return intBig
}

func varchar(size int) string {
	return "VARCHAR(" + strconv.Itoa(size) + ")"
}
