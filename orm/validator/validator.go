// Package validator 基于 go-playground/validator 的实体校验
//
// 在字段上使用 validate 标签声明规则，例如
//
//	Username string `validate:"required,min=3,max=50,pattern=^[a-z0-9_]+$"`
//
// 关联字段（结构体指针）不会被递归校验
package validator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/coderi421/ratorm/orm/internal/errs"
)

type Validator struct {
	v *validator.Validate
	// relations 类型 -> 需要跳过的关联字段名
	relations sync.Map
}

func New() *Validator {
	v := validator.New()
	// 注册失败只可能是标签名不合法
	_ = v.RegisterValidation("pattern", matchPattern)
	return &Validator{v: v}
}

// Engine 暴露底层的校验器，用于注册自定义规则
func (v *Validator) Engine() *validator.Validate {
	return v.v
}

// Validate 返回全部失败的字段，校验通过的时候返回 nil
func (v *Validator) Validate(ctx context.Context, entity any) []errs.FieldError {
	typ := reflect.TypeOf(entity)
	if typ == nil {
		return nil
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}
	skip := v.relationsOf(typ)
	err := v.v.StructFilteredCtx(ctx, entity, func(ns []byte) bool {
		name := string(ns)
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		_, ok := skip[name]
		return ok
	})

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	res := make([]errs.FieldError, 0, len(ves))
	for _, fe := range ves {
		res = append(res, errs.FieldError{
			Field:   fe.StructField(),
			Message: message(fe),
		})
	}
	return res
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be null"
	case "min":
		return "size must be at least " + fe.Param()
	case "max":
		return "size must be at most " + fe.Param()
	case "len":
		return "size must be " + fe.Param()
	case "pattern":
		return fmt.Sprintf("must match %q", fe.Param())
	}
	return fmt.Sprintf("failed on the %s rule", fe.Tag())
}

var (
	patterns sync.Map
	timeType = reflect.TypeOf(time.Time{})
)

// matchPattern 空字符串视为没有值，交给 required 处理
func matchPattern(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	s := field.String()
	if s == "" {
		return true
	}
	expr := fl.Param()
	re, ok := patterns.Load(expr)
	if !ok {
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return false
		}
		re, _ = patterns.LoadOrStore(expr, compiled)
	}
	return re.(*regexp.Regexp).MatchString(s)
}

func (v *Validator) relationsOf(typ reflect.Type) map[string]struct{} {
	if val, ok := v.relations.Load(typ); ok {
		return val.(map[string]struct{})
	}
	res := make(map[string]struct{}, 2)
	collectRelations(typ, res)
	val, _ := v.relations.LoadOrStore(typ, res)
	return val.(map[string]struct{})
}

func collectRelations(typ reflect.Type, res map[string]struct{}) {
	for i := 0; i < typ.NumField(); i++ {
		fd := typ.Field(i)
		ft := fd.Type
		if fd.Anonymous && ft.Kind() == reflect.Struct {
			collectRelations(ft, res)
			continue
		}
		if ft.Kind() == reflect.Ptr && ft.Elem().Kind() == reflect.Struct && ft.Elem() != timeType {
			res[fd.Name] = struct{}{}
		}
	}
}
