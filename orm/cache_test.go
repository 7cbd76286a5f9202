package orm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache 测试用的 Cache，记录读写次数
type mapCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	gets   int
	hits   int
	failed bool
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte, 8)}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failed {
		return nil, errors.New("cache is down")
	}
	val, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	m.hits++
	return val, nil
}

func (m *mapCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// selectCounter 统计真正发到数据库的查询
func selectCounter(cnt *int) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, qc *QueryContext) *QueryResult {
			if qc.Type == TypeSelect {
				*cnt++
			}
			return next(ctx, qc)
		}
	}
}

func TestEntityCache(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	var selects int
	db := memoryDB(t, DBWithCache(c, time.Minute), DBWithMiddlewares(selectCounter(&selects)), DBWithClock(fixedClock))
	createTables(t, db, &Author{}, &Book{})
	em := NewEntityManager(db)

	book := &Book{Title: "Go", Status: StatusActive, Priority: PriorityHigh, Author: &Author{Name: "Rob"}}
	require.NoError(t, em.Persist(ctx, book))

	first, err := FindByID[Book](ctx, db, book.ID)
	require.NoError(t, err)
	// book 和 author 各一次
	assert.Equal(t, 2, selects)
	assert.Len(t, c.data, 2)

	second, err := FindByID[Book](ctx, db, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, selects)
	assert.Equal(t, 2, c.hits)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Priority, second.Priority)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.Equal(t, "Rob", second.Author.Name)

	// 写操作之后缓存失效
	second.Title = "Go 2"
	require.NoError(t, em.Update(ctx, second))
	third, err := FindByID[Book](ctx, db, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go 2", third.Title)
	assert.Equal(t, 3, selects)

	require.NoError(t, DeleteByID[Book](ctx, db, book.ID))
	gone, err := FindByID[Book](ctx, db, book.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestEntityCache_failure(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	c.failed = true
	db := memoryDB(t, DBWithCache(c, time.Minute))
	createTables(t, db, &Author{})

	a := &Author{Name: "Rob"}
	require.NoError(t, NewEntityManager(db).Persist(ctx, a))
	// 缓存不可用的时候回退到数据库
	got, err := FindByID[Author](ctx, db, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rob", got.Name)
	assert.Equal(t, 1, c.gets)
}

func TestEntityCache_transaction(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	db := memoryDB(t, DBWithCache(c, time.Minute))
	createTables(t, db, &Author{})
	meta, err := db.Registry().Get(&Author{})
	require.NoError(t, err)

	a := &Author{Name: "committed"}
	require.NoError(t, NewEntityManager(db).Persist(ctx, a))
	_, err = FindByID[Author](ctx, db, a.ID)
	require.NoError(t, err)
	require.Len(t, c.data, 1)
	key := cacheKey(meta, a.ID)

	em := NewEntityManager(db)
	require.NoError(t, em.Begin(ctx, nil))
	a.Name = "rolled-back"
	require.NoError(t, em.Update(ctx, a))
	inTx, err := FindByID[Author](ctx, em, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "rolled-back", inTx.Name)
	// 没有提交的行不会进入缓存
	assert.Empty(t, c.data)

	// 事务进行中别的会话放回了旧的行
	c.data[key] = []byte("stale")
	require.NoError(t, em.Rollback())
	assert.NotContains(t, c.data, key)

	got, err := FindByID[Author](ctx, db, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "committed", got.Name)

	require.NoError(t, em.Begin(ctx, nil))
	got.Name = "renamed"
	require.NoError(t, em.Update(ctx, got))
	c.data[key] = []byte("stale")
	require.NoError(t, em.Commit())
	assert.NotContains(t, c.data, key)

	got, err = FindByID[Author](ctx, db, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
}
