package orm

import (
	"context"
)

// Querier 原生查询的结果，RawQuerier 实现了它
// 没有数据的时候 Get 返回 ErrNoRows
type Querier[T any] interface {
	Get(ctx context.Context) (*T, error)
	GetMulti(ctx context.Context) ([]*T, error)
}

// EntityQuerier 按照实体的元数据构造的查询，Selector 实现了它
// 没有数据的时候 GetSingleResult 返回 nil, nil
type EntityQuerier[T any] interface {
	GetResultList(ctx context.Context) ([]*T, error)
	GetSingleResult(ctx context.Context) (*T, error)
	Count(ctx context.Context) (int64, error)
	GetPage(ctx context.Context, req PageRequest) (*Page[T], error)
}

type Executor interface {
	Exec(ctx context.Context) Result
}

// Query 构造好的语句，占位符已经按照方言生成
type Query struct {
	SQL  string
	Args []any
}

type QueryBuilder interface {
	Build() (*Query, error)
}
