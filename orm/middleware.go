package orm

import (
	"context"

	"github.com/coderi421/ratorm/orm/model"
)

// 语句的类型，中间件可以按照类型区分
const (
	TypeSelect = "SELECT"
	TypeInsert = "INSERT"
	TypeUpdate = "UPDATE"
	TypeDelete = "DELETE"
	TypeCount  = "COUNT"
	TypeDDL    = "DDL"
	TypeRaw    = "RAW"
)

// QueryContext 中间件的上下文
// 进入中间件之前语句已经构造好了，放在 Query 里面
type QueryContext struct {
	// Type 声明查询类型。即 SELECT, UPDATE, DELETE 和 INSERT
	Type string

	// builder 使用的时候，大多数情况下你需要转换到具体的类型
	// 才能篡改查询
	Builder QueryBuilder
	// Model DDL 和原生查询之外总是有值
	Model *model.Model
	// Query 构造好的语句，中间件可以直接读，也可以替换
	Query *Query
}

// Table 方便中间件打标签
func (qc *QueryContext) Table() string {
	if qc.Model == nil {
		return ""
	}
	return qc.Model.TableName
}

type QueryResult struct {
	// Result 查询的时候是读到的行数，其它情况下是 sql.Result
	Result any
	Err    error
}

type Middleware func(next Handler) Handler

type Handler func(ctx context.Context, qc *QueryContext) *QueryResult
