package orm

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/model"
)

// Cache 按照主键缓存实体对应的行
// 找不到 key 的时候必须返回 ErrCacheMiss
// 实现见 cache/memory 和 cache/redis
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

func cacheKey(meta *model.Model, id any) string {
	return "ratorm:" + meta.TableName + ":" + fmt.Sprint(id)
}

// cached 缓存出错的时候当成没有命中，回退到数据库
// 事务里面总是读数据库
func (m *materializer) cached(ctx context.Context, meta *model.Model, id any) (map[string]any, bool) {
	if m.c.cache == nil || m.sess.activeTx() != nil {
		return nil, false
	}
	data, err := m.c.cache.Get(ctx, cacheKey(meta, id))
	if err != nil {
		if !errors.Is(err, errs.ErrCacheMiss) {
			m.c.logger.WarnContext(ctx, "orm: 读取缓存失败", "table", meta.TableName, "err", err)
		}
		return nil, false
	}
	row, err := decodeRow(data)
	if err != nil {
		m.c.logger.WarnContext(ctx, "orm: 缓存数据无法解析", "table", meta.TableName, "err", err)
		return nil, false
	}
	return row, true
}

// store 事务里面读到的行可能没有提交，不放进缓存
func (m *materializer) store(ctx context.Context, meta *model.Model, id any, ent any) {
	if m.c.cache == nil || m.sess.activeTx() != nil {
		return
	}
	row, err := snapshot(m.c, meta, ent)
	if err == nil {
		var data []byte
		data, err = msgpack.Marshal(row)
		if err == nil {
			err = m.c.cache.Set(ctx, cacheKey(meta, id), data, m.c.cacheTTL)
		}
	}
	if err != nil {
		m.c.logger.WarnContext(ctx, "orm: 写入缓存失败", "table", meta.TableName, "err", err)
	}
}

// evict 写操作之后让缓存失效
func (c core) evict(ctx context.Context, meta *model.Model, ids ...any) {
	if c.cache == nil {
		return
	}
	for _, id := range ids {
		if err := c.cache.Delete(ctx, cacheKey(meta, id)); err != nil && !errors.Is(err, errs.ErrCacheMiss) {
			c.logger.WarnContext(ctx, "orm: 删除缓存失败", "table", meta.TableName, "id", id, "err", err)
		}
	}
}

type eviction struct {
	meta *model.Model
	ids  []any
}

// evictIn 让缓存失效，在事务里面的时候记下来，提交或者回滚之后再删除一次
func evictIn(ctx context.Context, sess Session, c core, meta *model.Model, ids ...any) {
	c.evict(ctx, meta, ids...)
	if tx := sess.activeTx(); tx != nil && c.cache != nil {
		tx.evicted = append(tx.evicted, eviction{meta: meta, ids: ids})
	}
}

// snapshot 实体对应的一行，key 是列名，value 是写入数据库的形式
func snapshot(c core, meta *model.Model, ent any) (map[string]any, error) {
	val := c.valCreator(ent, meta)
	row := make(map[string]any, meta.ColumnCount())
	for _, fd := range meta.Fields {
		v, err := val.Field(fd.GoName)
		if err != nil {
			return nil, err
		}
		// sql.NullString 这种类型编码之前先拿到底层的值
		if dv, ok := v.(driver.Valuer); ok {
			if v, err = dv.Value(); err != nil {
				return nil, err
			}
		}
		row[fd.ColName] = v
	}
	for _, rel := range meta.OwningRelations() {
		fk, err := foreignKey(c, val.Relation(rel.GoName))
		if err != nil {
			return nil, err
		}
		row[rel.JoinColumn] = fk
	}
	return row, nil
}

func decodeRow(data []byte) (map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	// 整数统一解码成 int64
	dec.UseLooseInterfaceDecoding(true)
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}
