package orm

import (
	"context"
)

var (
	_ Querier[any] = &RawQuerier[any]{}
	_ Executor     = &RawQuerier[any]{}
)

// RawQuerier 原生查询，结果按照 T 的元数据映射
// 占位符需要和方言一致
type RawQuerier[T any] struct {
	core
	sess Session
	sql  string
	args []any
}

// RawQuery 创建一个 RawQuerier 实例
// 泛型参数 T 是目标类型。
// 例如，如果查询 User 的数据，那么 T 就是 User
func RawQuery[T any](sess Session, query string, args ...any) *RawQuerier[T] {
	return &RawQuerier[T]{
		core: sess.getCore(),
		sess: sess,
		sql:  query,
		args: args,
	}
}

func (r *RawQuerier[T]) Build() (*Query, error) {
	return &Query{
		SQL:  r.sql,
		Args: r.args,
	}, nil
}

// Exec 执行不返回行的语句
func (r *RawQuerier[T]) Exec(ctx context.Context) Result {
	meta, err := r.r.Get(new(T))
	if err != nil {
		return Result{err: err}
	}
	return exec(ctx, r.sess, r.core, &QueryContext{
		Type:    TypeRaw,
		Builder: r,
		Model:   meta,
	})
}

// Get 没有数据的时候返回 ErrNoRows，多于一行的时候只返回第一行
func (r *RawQuerier[T]) Get(ctx context.Context) (*T, error) {
	res, err := r.GetMulti(ctx)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNoRows
	}
	return res[0], nil
}

func (r *RawQuerier[T]) GetMulti(ctx context.Context) ([]*T, error) {
	meta, err := r.r.Get(new(T))
	if err != nil {
		return nil, err
	}
	ents, err := newMaterializer(r.core, r.sess).load(ctx, &QueryContext{
		Type:    TypeRaw,
		Builder: r,
		Model:   meta,
	}, meta, 0)
	if err != nil {
		return nil, err
	}
	res := make([]*T, 0, len(ents))
	for _, ent := range ents {
		res = append(res, ent.(*T))
	}
	return res, nil
}
