package orm

import (
	"context"

	"github.com/coderi421/ratorm/orm/model"
)

// FindByID 按照主键查找，没有数据的时候返回 nil, nil
// id 可以是字段本身的类型，也可以是能转换过去的值，例如 uuid 的字符串形式
func FindByID[T any](ctx context.Context, sess Session, id any) (*T, error) {
	c := sess.getCore()
	meta, err := c.r.Get(new(T))
	if err != nil {
		return nil, err
	}
	key, err := keyOf(meta, id)
	if err != nil {
		return nil, err
	}
	ent, err := newMaterializer(c, sess).find(ctx, meta, key, 0)
	if err != nil || ent == nil {
		return nil, err
	}
	return ent.(*T), nil
}

// FindAll 返回全部的实体
func FindAll[T any](ctx context.Context, sess Session) ([]*T, error) {
	return CreateQuery[T](sess).GetResultList(ctx)
}

// FindPage 分页查询，按照主键排序
func FindPage[T any](ctx context.Context, sess Session, req PageRequest) (*Page[T], error) {
	s := CreateQuery[T](sess)
	if s.model != nil && s.model.PK != nil {
		s.OrderBy(s.model.PK.ColName)
	}
	return s.GetPage(ctx, req)
}

// DeleteByID 按照主键删除
func DeleteByID[T any](ctx context.Context, sess Session, id any) error {
	c := sess.getCore()
	meta, err := c.r.Get(new(T))
	if err != nil {
		return err
	}
	key, err := keyOf(meta, id)
	if err != nil {
		return err
	}
	q, err := deleteByIDQuery(c, meta, key)
	if err != nil {
		return err
	}
	if err = exec(ctx, sess, c, &QueryContext{Type: TypeDelete, Builder: q, Model: meta}).Err(); err != nil {
		return err
	}
	evictIn(ctx, sess, c, meta, key)
	return nil
}

func deleteByIDQuery(c core, meta *model.Model, id any) (QueryBuilder, error) {
	stmt, err := c.statement("delete:"+meta.TableName, func() (string, error) {
		q, err := newDeleter(c, meta).Where(C(meta.PK.ColName).EQ(id)).Build()
		if err != nil {
			return "", err
		}
		return q.SQL, nil
	})
	if err != nil {
		return nil, err
	}
	return &staticQuery{SQL: stmt, Args: []any{id}}, nil
}
