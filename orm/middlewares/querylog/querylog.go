package querylog

import (
	"context"
	"log/slog"

	"github.com/coderi421/ratorm/orm"
)

// MiddlewareBuilder 在执行之前记录语句和参数
type MiddlewareBuilder struct {
	logFunc func(query string, args []any)
}

func NewBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{}
}

// LogFunc 默认使用 slog
func (m *MiddlewareBuilder) LogFunc(fn func(query string, args []any)) *MiddlewareBuilder {
	m.logFunc = fn
	return m
}

func (m *MiddlewareBuilder) Build() orm.Middleware {
	logFunc := m.logFunc
	if logFunc == nil {
		logFunc = func(query string, args []any) {
			slog.Default().Info("orm: sql", "query", query, "args", args)
		}
	}
	return func(next orm.Handler) orm.Handler {
		return func(ctx context.Context, qc *orm.QueryContext) *orm.QueryResult {
			if qc.Query != nil {
				logFunc(qc.Query.SQL, qc.Query.Args)
			}
			return next(ctx, qc)
		}
	}
}
