package model

import (
	"database/sql"
	"database/sql/driver"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Kind 字段的语义类型，决定了列类型和读写时的转换
type Kind uint8

const (
	KindOther Kind = iota
	KindString
	KindBool
	KindSmallInt
	KindInt
	KindInt64
	KindFloat32
	KindFloat64
	KindBytes
	KindTime
	KindUUID
	KindEnum
)

// IsInteger 是否是整数类型
func (k Kind) IsInteger() bool {
	return k == KindSmallInt || k == KindInt || k == KindInt64
}

// Enum 枚举类型需要实现这个接口，按声明顺序返回全部常量的名字
// 底层类型可以是 string，也可以是整数（从 0 开始的 iota）
type Enum interface {
	Values() []string
}

type EnumEncoding uint8

const (
	EnumOrdinal EnumEncoding = iota
	EnumName
)

type EnumInfo struct {
	Encoding EnumEncoding
	Values   []string
	// StringBased 底层类型是 string
	StringBased bool
}

// Ordinal 返回名字对应的下标，找不到返回 -1
func (e *EnumInfo) Ordinal(name string) int {
	for i, v := range e.Values {
		if v == name {
			return i
		}
	}
	return -1
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	uuidType      = reflect.TypeOf(uuid.UUID{})
	bytesType     = reflect.TypeOf([]byte(nil))
	enumType      = reflect.TypeOf((*Enum)(nil)).Elem()
	scannerType   = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType    = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	nullKindTypes = map[reflect.Type]Kind{
		reflect.TypeOf(sql.NullString{}):  KindString,
		reflect.TypeOf(sql.NullBool{}):    KindBool,
		reflect.TypeOf(sql.NullByte{}):    KindSmallInt,
		reflect.TypeOf(sql.NullInt16{}):   KindSmallInt,
		reflect.TypeOf(sql.NullInt32{}):   KindInt,
		reflect.TypeOf(sql.NullInt64{}):   KindInt64,
		reflect.TypeOf(sql.NullFloat64{}): KindFloat64,
		reflect.TypeOf(sql.NullTime{}):    KindTime,
	}
)

// IsValueType 结构体类型里面，这些会被当成普通的列而不是字段组或者关联
func IsValueType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType || t == uuidType {
		return true
	}
	if _, ok := nullKindTypes[t]; ok {
		return true
	}
	return t.Implements(valuerType) || reflect.PtrTo(t).Implements(scannerType)
}

// kindOf 推断字段的语义类型，指针会被解开一层
func kindOf(t reflect.Type) Kind {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if enumTypeOf(t) {
		return KindEnum
	}
	switch t {
	case timeType:
		return KindTime
	case uuidType:
		return KindUUID
	case bytesType:
		return KindBytes
	}
	if k, ok := nullKindTypes[t]; ok {
		return k
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int8, reflect.Int16, reflect.Uint8, reflect.Uint16:
		return KindSmallInt
	case reflect.Int32, reflect.Uint32:
		return KindInt
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return KindInt64
	case reflect.Float32:
		return KindFloat32
	case reflect.Float64:
		return KindFloat64
	default:
		return KindOther
	}
}

func enumTypeOf(t reflect.Type) bool {
	if !t.Implements(enumType) {
		return false
	}
	switch t.Kind() {
	case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func newEnumInfo(t reflect.Type, enc EnumEncoding) *EnumInfo {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	vals := reflect.Zero(t).Interface().(Enum).Values()
	return &EnumInfo{
		Encoding:    enc,
		Values:      vals,
		StringBased: t.Kind() == reflect.String,
	}
}
