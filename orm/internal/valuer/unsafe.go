package valuer

import (
	"reflect"
	"unsafe"

	"github.com/coderi421/ratorm/orm/model"
)

type unsafeValue struct {
	common
	addr unsafe.Pointer // 使用 unsafe Pointer 而不是 uintptr 是因为 gc 后 uintptr 会发生变化
}

var _ Creator = NewUnsafeValue

// NewUnsafeValue 直接通过偏移量读写字段，Offset 是相对于最外层结构体的
func NewUnsafeValue(val any, meta *model.Model) Value {
	u := &unsafeValue{addr: unsafe.Pointer(reflect.ValueOf(val).Pointer())}
	u.common = common{
		meta: meta,
		fieldAt: func(_ []int, offset uintptr, typ reflect.Type) reflect.Value {
			return reflect.NewAt(typ, unsafe.Add(u.addr, offset)).Elem()
		},
	}
	return u
}
