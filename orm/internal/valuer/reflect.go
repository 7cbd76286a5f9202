package valuer

import (
	"reflect"

	"github.com/coderi421/ratorm/orm/model"
)

// reflectValue 基于反射的 Value
type reflectValue struct {
	common
	val reflect.Value
}

var _ Creator = NewReflectValue

// NewReflectValue 返回一个封装好的，基于反射实现的 Value
// 输入 val 必须是一个指向结构体实例的指针，而不能是任何其它类型
func NewReflectValue(val any, meta *model.Model) Value {
	r := &reflectValue{val: reflect.ValueOf(val).Elem()}
	r.common = common{
		meta: meta,
		// 字段组里的字段需要按照下标路径一层一层找下去
		fieldAt: func(index []int, _ uintptr, _ reflect.Type) reflect.Value {
			return r.val.FieldByIndex(index)
		},
	}
	return r
}
