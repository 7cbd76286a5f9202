package valuer

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/model"
	"github.com/google/uuid"
)

// ToStorage 把字段的值转换成写入数据库的形式
// 枚举转成名字或者下标，UUID 转成字符串，nil 指针转成 NULL
func ToStorage(fd *model.Field, v reflect.Value) (any, error) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	switch fd.Kind {
	case model.KindEnum:
		return enumToStorage(fd, v)
	case model.KindUUID:
		return v.Interface().(uuid.UUID).String(), nil
	}
	return v.Interface(), nil
}

// Storage 和 ToStorage 一样，只是输入是字段的值本身
func Storage(fd *model.Field, val any) (any, error) {
	if val == nil {
		return nil, nil
	}
	return ToStorage(fd, reflect.ValueOf(val))
}

func enumToStorage(fd *model.Field, v reflect.Value) (any, error) {
	e := fd.Enum
	if e.StringBased {
		name := v.String()
		// 零值没有对应的常量，按 NULL 写入
		if name == "" {
			return nil, nil
		}
		idx := e.Ordinal(name)
		if idx < 0 {
			return nil, errs.NewErrInvalidEnumValue(fd.GoName, name)
		}
		if e.Encoding == model.EnumName {
			return name, nil
		}
		return int64(idx), nil
	}

	var n int64
	if v.CanInt() {
		n = v.Int()
	} else {
		n = int64(v.Uint())
	}
	if e.Encoding == model.EnumOrdinal {
		return n, nil
	}
	if n < 0 || n >= int64(len(e.Values)) {
		return nil, errs.NewErrInvalidEnumValue(fd.GoName, n)
	}
	return e.Values[n], nil
}

// FromStorage 把数据库中读出来的值写到 dst 上，dst 必须是可以设置的
func FromStorage(fd *model.Field, dst reflect.Value, src any) error {
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := FromStorage(fd, elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	switch fd.Kind {
	case model.KindEnum:
		return enumFromStorage(fd, dst, src)
	case model.KindTime:
		if dst.Type() == timeType {
			return timeFromStorage(dst, src)
		}
	}
	// uuid.UUID 和 sql.NullXXX 都实现了 Scanner
	if sc, ok := dst.Addr().Interface().(sql.Scanner); ok {
		return sc.Scan(src)
	}
	return assign(dst, src)
}

// NormalizeKey 把外键的原始值转换成主键字段的存储形式
// 例如 MySQL 返回的 []byte("12") 会变成 int64(12)
func NormalizeKey(pk *model.Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	v := reflect.New(pk.Type).Elem()
	if err := FromStorage(pk, v, raw); err != nil {
		return nil, err
	}
	return ToStorage(pk, v)
}

func enumFromStorage(fd *model.Field, dst reflect.Value, src any) error {
	e := fd.Enum
	var idx int64
	if e.Encoding == model.EnumName {
		var ns sql.NullString
		if err := ns.Scan(src); err != nil {
			return err
		}
		if e.StringBased {
			dst.SetString(ns.String)
			return nil
		}
		idx = int64(e.Ordinal(ns.String))
	} else {
		var ni sql.NullInt64
		if err := ni.Scan(src); err != nil {
			return err
		}
		idx = ni.Int64
	}
	if idx < 0 || idx >= int64(len(e.Values)) {
		return errs.NewErrInvalidEnumValue(fd.GoName, src)
	}
	switch {
	case e.StringBased:
		dst.SetString(e.Values[idx])
	case dst.CanInt():
		dst.SetInt(idx)
	default:
		dst.SetUint(uint64(idx))
	}
	return nil
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	timeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02",
	}
)

func timeFromStorage(dst reflect.Value, src any) error {
	var s string
	switch v := src.(type) {
	case time.Time:
		dst.Set(reflect.ValueOf(v))
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		dst.Set(reflect.ValueOf(time.Unix(v, 0)))
		return nil
	default:
		return fmt.Errorf("orm: 无法将 %T 转换为 time.Time", src)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			dst.Set(reflect.ValueOf(t))
			return nil
		}
	}
	return fmt.Errorf("orm: 无法解析时间 %q", s)
}

// assign 借用 sql.NullXXX 的 Scan 完成驱动类型到基础类型的转换
func assign(dst reflect.Value, src any) error {
	switch dst.Kind() {
	case reflect.String:
		var ns sql.NullString
		if err := ns.Scan(src); err != nil {
			return err
		}
		dst.SetString(ns.String)
	case reflect.Bool:
		var nb sql.NullBool
		if err := nb.Scan(src); err != nil {
			return err
		}
		dst.SetBool(nb.Bool)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var ni sql.NullInt64
		if err := ni.Scan(src); err != nil {
			return err
		}
		if dst.OverflowInt(ni.Int64) {
			return fmt.Errorf("orm: %d 超出了 %s 的范围", ni.Int64, dst.Type())
		}
		dst.SetInt(ni.Int64)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var ni sql.NullInt64
		if err := ni.Scan(src); err != nil {
			return err
		}
		if ni.Int64 < 0 || dst.OverflowUint(uint64(ni.Int64)) {
			return fmt.Errorf("orm: %d 超出了 %s 的范围", ni.Int64, dst.Type())
		}
		dst.SetUint(uint64(ni.Int64))
	case reflect.Float32, reflect.Float64:
		var nf sql.NullFloat64
		if err := nf.Scan(src); err != nil {
			return err
		}
		dst.SetFloat(nf.Float64)
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.Uint8 {
			return convert(dst, src)
		}
		switch v := src.(type) {
		case []byte:
			dst.SetBytes(append([]byte(nil), v...))
		case string:
			dst.SetBytes([]byte(v))
		default:
			return convert(dst, src)
		}
	default:
		return convert(dst, src)
	}
	return nil
}

func convert(dst reflect.Value, src any) error {
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(dst.Type()):
		dst.Set(sv)
	case sv.Type().ConvertibleTo(dst.Type()):
		dst.Set(sv.Convert(dst.Type()))
	default:
		return fmt.Errorf("orm: 无法将 %T 转换为 %s", src, dst.Type())
	}
	return nil
}
