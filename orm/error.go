package orm

import "github.com/coderi421/ratorm/orm/internal/errs"

// 将内部的 sentinel error 暴露出去
var (
	// ErrNoRows 代表没有找到数据
	ErrNoRows = errs.ErrNoRows
	// ErrTxStarted 已经有进行中的事务了
	ErrTxStarted = errs.ErrTxStarted
	ErrNoTx      = errs.ErrNoTx
	// ErrCacheMiss Cache 的实现在找不到 key 的时候需要返回它
	ErrCacheMiss = errs.ErrCacheMiss

	ErrTooManyReturnedColumns = errs.ErrTooManyReturnedColumns
	ErrUnknownColumn          = errs.ErrUnknownColumn
	ErrInsertZeroRow          = errs.ErrInsertZeroRow
	ErrNoUpdatedColumns       = errs.ErrNoUpdatedColumns

	// 用 errors.Is(err, orm.ErrMapping) 判断错误的种类
	ErrMapping    = errs.ErrMapping
	ErrValidation = errs.ErrValidation
	ErrQuery      = errs.ErrQuery
	ErrStorage    = errs.ErrStorage
)

// 用 errors.As 拿到具体的错误
type (
	MappingError    = errs.MappingError
	ValidationError = errs.ValidationError
	FieldError      = errs.FieldError
	QueryError      = errs.QueryError
	StorageError    = errs.StorageError
)
