package orm

import (
	"context"

	"github.com/coderi421/ratorm/orm/internal/errs"
)

// Validator 在写入之前校验实体，返回全部失败的字段
// 返回空表示校验通过
type Validator interface {
	Validate(ctx context.Context, entity any) []FieldError
}

func (c core) validate(ctx context.Context, name string, entity any) error {
	if c.validator == nil {
		return nil
	}
	if fes := c.validator.Validate(ctx, entity); len(fes) > 0 {
		return errs.NewErrValidation(name, fes)
	}
	return nil
}
