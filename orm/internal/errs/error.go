package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPointerOnly 只支持一级指针作为输入
	// 看到这个 error 说明你输入了其它的东西
	// 我们并不希望用户能够直接使用 err == ErrPointerOnly
	// 所以放在我们的 internal 包里
	ErrPointerOnly            = errors.New("orm: 只支持一级指针作为输入，例如 *User")
	ErrNoRows                 = errors.New("orm: 未找到数据")
	ErrTooManyReturnedColumns = errors.New("orm: 过多列")
	ErrUnknownColumn          = errors.New("orm: 未知列")
	ErrInsertZeroRow          = errors.New("orm: 插入 0 行")
	ErrNoUpdatedColumns       = errors.New("orm: 未指定更新的列")
	ErrTxStarted              = errors.New("orm: 事务已经开启")
	ErrNoTx                   = errors.New("orm: 没有进行中的事务")
	ErrCacheMiss              = errors.New("orm: cache miss")
	ErrInvalidEnumValue       = errors.New("orm: 枚举值不合法")

	// 四类错误的哨兵，配合 errors.Is 使用
	ErrMapping    = errors.New("orm: mapping error")
	ErrValidation = errors.New("orm: validation error")
	ErrQuery      = errors.New("orm: query error")
	ErrStorage    = errors.New("orm: storage error")
)

// MappingError 实体的元数据不合法，例如 tag 写错了，主键数量不对
type MappingError struct {
	Entity string
	Msg    string
	Err    error
}

func (e *MappingError) Error() string {
	var sb strings.Builder
	sb.WriteString("orm: mapping error")
	if e.Entity != "" {
		sb.WriteString(" on ")
		sb.WriteString(e.Entity)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	return sb.String()
}

func (e *MappingError) Unwrap() error { return e.Err }

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// FieldError 单个字段的校验失败信息
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// ValidationError 聚合了一个实体上全部的校验失败
type ValidationError struct {
	Entity string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.String())
	}
	return "orm: validation failed: " + strings.Join(msgs, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// QueryError 查询构造阶段发现的错误，此时还没有执行任何语句
type QueryError struct {
	Entity string
	Msg    string
}

func (e *QueryError) Error() string {
	if e.Entity == "" {
		return "orm: query error: " + e.Msg
	}
	return fmt.Sprintf("orm: query error on %s: %s", e.Entity, e.Msg)
}

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// StorageError 包装了驱动返回的错误
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("orm: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewErrPointerOnly 输入不是指向结构体的一级指针
func NewErrPointerOnly(typ any) error {
	return &MappingError{Msg: fmt.Sprintf("不支持的类型 %v", typ), Err: ErrPointerOnly}
}

func NewErrInvalidTagContent(pair string) error {
	return &MappingError{Msg: fmt.Sprintf("错误的标签设置: %s", pair)}
}

// NewErrUnknownField 返回代表未知字段的错误
// 一般意味着你可能输入的是列名，或者输入了错误的字段名
func NewErrUnknownField(fd string) error {
	return &MappingError{Msg: fmt.Sprintf("未知字段 %s", fd)}
}

func NewErrMapping(entity string, format string, args ...any) error {
	return &MappingError{Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

// NewErrUnknownColumn 结果集里出现了模型没有的列
func NewErrUnknownColumn(col string) error {
	return fmt.Errorf("%w %s", ErrUnknownColumn, col)
}

func NewErrInvalidEnumValue(field string, val any) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalidEnumValue, field, val)
}

func NewErrQuery(entity string, format string, args ...any) error {
	return &QueryError{Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

func NewErrUnknownQueryColumn(entity, col string) error {
	return &QueryError{Entity: entity, Msg: fmt.Sprintf("未知列 %s", col)}
}

func NewErrUnsupportedExpressionType(exp any) error {
	return &QueryError{Msg: fmt.Sprintf("不支持的表达式 %v", exp)}
}

func NewErrValidation(entity string, fields []FieldError) error {
	return &ValidationError{Entity: entity, Fields: fields}
}

func NewErrStorage(op, table string, err error) error {
	return &StorageError{Op: op, Table: table, Err: err}
}
