package orm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/internal/valuer"
	"github.com/coderi421/ratorm/orm/model"
)

// materializer 把结果集转换成实体，并且加载关联
// 一次查询使用一个 materializer，seen 是这次查询的 identity map，
// 同一个 (表, 主键) 只会有一个实例，数据上的环会变成对象图上的环
type materializer struct {
	c    core
	sess Session
	seen map[string]any
}

func newMaterializer(c core, sess Session) *materializer {
	return &materializer{
		c:    c,
		sess: sess,
		seen: make(map[string]any, 8),
	}
}

type scanned struct {
	entity any
	val    valuer.Value
	fks    map[string]any
}

func identity(m *model.Model, id any) string {
	return m.TableName + ":" + fmt.Sprint(id)
}

// load 执行查询，depth 是这些实体在对象图中的深度
// 所有的行读完，游标关闭之后才会去加载关联
func (m *materializer) load(ctx context.Context, qc *QueryContext, meta *model.Model, depth int) ([]any, error) {
	var rows []scanned
	err := query(ctx, m.sess, m.c, qc, func(rs *sql.Rows) error {
		ent := reflect.New(meta.Type).Interface()
		val := m.c.valCreator(ent, meta)
		if err := val.SetColumns(rs); err != nil {
			return err
		}
		rows = append(rows, scanned{entity: ent, val: val, fks: val.ForeignKeys()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := make([]any, 0, len(rows))
	for _, row := range rows {
		if meta.PK != nil {
			id, err := row.val.Field(meta.PK.GoName)
			if err != nil {
				return nil, err
			}
			key := identity(meta, id)
			if ent, ok := m.seen[key]; ok {
				res = append(res, ent)
				continue
			}
			m.seen[key] = row.entity
		}
		if err = m.resolve(ctx, meta, row.val, row.fks, depth); err != nil {
			return nil, err
		}
		res = append(res, row.entity)
	}
	return res, nil
}

// find 按照主键加载一个实体，找不到的时候返回 nil, nil
// id 必须是写入数据库的形式
func (m *materializer) find(ctx context.Context, meta *model.Model, id any, depth int) (any, error) {
	key := identity(meta, id)
	if ent, ok := m.seen[key]; ok {
		return ent, nil
	}

	if row, ok := m.cached(ctx, meta, id); ok {
		ent := reflect.New(meta.Type).Interface()
		val := m.c.valCreator(ent, meta)
		fks, err := applyRow(val, meta, row)
		if err != nil {
			return nil, err
		}
		m.seen[key] = ent
		if err = m.resolve(ctx, meta, val, fks, depth); err != nil {
			return nil, err
		}
		return ent, nil
	}

	q, err := findByIDQuery(m.c, meta, id)
	if err != nil {
		return nil, err
	}
	ents, err := m.load(ctx, &QueryContext{
		Type:    TypeSelect,
		Builder: q,
		Model:   meta,
	}, meta, depth)
	if err != nil || len(ents) == 0 {
		return nil, err
	}
	m.store(ctx, meta, id, ents[0])
	return ents[0], nil
}

// resolve 加载 owning side 的关联
// fetch=lazy 或者超过了最大深度的关联只填充主键
func (m *materializer) resolve(ctx context.Context, meta *model.Model, val valuer.Value,
	fks map[string]any, depth int) error {
	for _, rel := range meta.OwningRelations() {
		raw := fks[rel.JoinColumn]
		if raw == nil {
			continue
		}
		tmeta, err := m.c.r.Get(rel.NewTarget())
		if err != nil {
			return err
		}
		if tmeta.PK == nil {
			return errs.NewErrMapping(meta.Name(), "关联 %s 指向的 %s 没有主键", rel.GoName, tmeta.Name())
		}
		id, err := valuer.NormalizeKey(tmeta.PK, raw)
		if err != nil {
			return err
		}

		var target any
		if rel.Fetch == model.FetchLazy || depth >= m.c.maxDepth {
			target, err = m.reference(tmeta, id)
		} else {
			target, err = m.find(ctx, tmeta, id, depth+1)
		}
		if err != nil {
			return err
		}
		// 外键指向的行不存在
		if target == nil {
			continue
		}
		if err = val.SetRelation(rel.GoName, target); err != nil {
			return err
		}
	}
	return nil
}

// reference 只有主键的实例，已经加载过的直接复用
func (m *materializer) reference(meta *model.Model, id any) (any, error) {
	if ent, ok := m.seen[identity(meta, id)]; ok {
		return ent, nil
	}
	ent := reflect.New(meta.Type).Interface()
	if err := m.c.valCreator(ent, meta).SetField(meta.PK.GoName, id); err != nil {
		return nil, err
	}
	return ent, nil
}

// applyRow 把缓存里的一行写到实体上，返回外键
func applyRow(val valuer.Value, meta *model.Model, row map[string]any) (map[string]any, error) {
	fks := make(map[string]any, len(meta.JoinMap))
	for col, v := range row {
		if fd, ok := meta.ColumnMap[col]; ok {
			if err := val.SetField(fd.GoName, v); err != nil {
				return nil, err
			}
			continue
		}
		if _, ok := meta.JoinMap[col]; ok {
			fks[col] = v
			continue
		}
		return nil, errs.NewErrUnknownColumn(col)
	}
	return fks, nil
}

// keyOf 把用户传入的主键转换成写入数据库的形式
func keyOf(meta *model.Model, id any) (any, error) {
	if meta.PK == nil {
		return nil, errs.NewErrMapping(meta.Name(), "没有主键")
	}
	if id == nil {
		return nil, errs.NewErrQuery(meta.Name(), "主键不能为 nil")
	}
	if reflect.TypeOf(id) == meta.PK.Type {
		return valuer.Storage(meta.PK, id)
	}
	key, err := valuer.NormalizeKey(meta.PK, id)
	if err != nil {
		return nil, errs.NewErrQuery(meta.Name(), "主键 %v 不合法: %v", id, err)
	}
	return key, nil
}

// isZeroKey 字段还没有赋值，key 是写入数据库的形式
func isZeroKey(fd *model.Field, key any) bool {
	if key == nil {
		return true
	}
	if fd.Kind == model.KindUUID {
		return key == uuid.Nil.String()
	}
	return reflect.ValueOf(key).IsZero()
}

func findByIDQuery(c core, meta *model.Model, id any) (QueryBuilder, error) {
	stmt, err := c.statement("find:"+meta.TableName, func() (string, error) {
		b := newBuilder(c, meta)
		b.sb.WriteString("SELECT * FROM ")
		b.quote(meta.TableName)
		b.sb.WriteString(" WHERE ")
		b.quote(meta.PK.ColName)
		b.sb.WriteString(" = ")
		b.sb.WriteString(b.dialect.placeholder(1))
		b.sb.WriteByte(';')
		return b.sb.String(), nil
	})
	if err != nil {
		return nil, err
	}
	return &staticQuery{SQL: stmt, Args: []any{id}}, nil
}
