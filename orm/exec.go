package orm

import (
	"context"
	"database/sql"
	"strings"

	"github.com/coderi421/ratorm/orm/internal/errs"
)

// chain 把中间件套在 root 外面，第一个中间件在最外层
func chain(mdls []Middleware, root Handler) Handler {
	for i := len(mdls) - 1; i >= 0; i-- {
		root = mdls[i](root)
	}
	return root
}

// exec 构造语句之后执行，不会返回行
func exec(ctx context.Context, sess Session, c core, qc *QueryContext) Result {
	q, err := qc.Builder.Build()
	if err != nil {
		return Result{err: err}
	}
	qc.Query = q

	root := func(ctx context.Context, qc *QueryContext) *QueryResult {
		res, err := sess.execContext(ctx, qc.Query.SQL, qc.Query.Args...)
		if err != nil {
			return &QueryResult{Err: storageError(qc, err)}
		}
		return &QueryResult{Result: res}
	}
	res := chain(c.mdls, root)(ctx, qc)

	var sqlRes sql.Result
	if res.Result != nil {
		sqlRes, _ = res.Result.(sql.Result)
	}
	return Result{err: res.Err, res: sqlRes}
}

// query 执行查询，并且在游标关闭之前用 scan 处理每一行
// 返回的时候 rows 已经关闭，调用者可以继续发起别的查询
func query(ctx context.Context, sess Session, c core, qc *QueryContext,
	scan func(rows *sql.Rows) error) error {
	q, err := qc.Builder.Build()
	if err != nil {
		return err
	}
	qc.Query = q

	root := func(ctx context.Context, qc *QueryContext) *QueryResult {
		rows, err := sess.queryContext(ctx, qc.Query.SQL, qc.Query.Args...)
		if err != nil {
			return &QueryResult{Err: storageError(qc, err)}
		}
		defer func() {
			_ = rows.Close()
		}()

		cnt := 0
		for rows.Next() {
			if err = scan(rows); err != nil {
				return &QueryResult{Err: err}
			}
			cnt++
		}
		if err = rows.Err(); err != nil {
			return &QueryResult{Err: storageError(qc, err)}
		}
		return &QueryResult{Result: cnt}
	}
	return chain(c.mdls, root)(ctx, qc).Err
}

func storageError(qc *QueryContext, err error) error {
	return errs.NewErrStorage(strings.ToLower(qc.Type), qc.Table(), err)
}

// staticQuery 已经拼好的语句，例如从语句缓存里拿出来的
type staticQuery Query

func (s *staticQuery) Build() (*Query, error) {
	return &Query{SQL: s.SQL, Args: s.Args}, nil
}
