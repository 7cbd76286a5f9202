package orm

import (
	"context"
	"database/sql"
	"errors"
)

var (
	_ Session = &Tx{}
	_ Session = &DB{}
	_ Session = &connSession{}
	_ Session = &EntityManager{}
)

// Session 代表一个抽象的概念，即会话
// DB、Tx 和 EntityManager 都是 Session，所有的语句都通过它执行
type Session interface {
	getCore() core
	queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	execContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	// pin 返回一个固定在同一个连接上的 Session
	// 例如 SET FOREIGN_KEY_CHECKS 这种只对当前连接生效的语句
	pin(ctx context.Context) (Session, func() error, error)
	// activeTx 语句所在的事务，不在事务里的时候返回 nil
	activeTx() *Tx
}

type Tx struct {
	tx *sql.Tx
	db *DB
	// evicted 事务里面失效的缓存，事务结束之后要再删除一次
	evicted []eviction
}

func (t *Tx) getCore() core {
	return t.db.core
}

func (t *Tx) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// pin 事务本身就是固定在一个连接上的
func (t *Tx) pin(context.Context) (Session, func() error, error) {
	return t, noRelease, nil
}

func (t *Tx) activeTx() *Tx {
	return t
}

func (t *Tx) Commit() error {
	defer t.flushEvicted()
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	defer t.flushEvicted()
	return t.tx.Rollback()
}

func (t *Tx) RollbackIfNotCommit() error {
	defer t.flushEvicted()
	err := t.tx.Rollback()
	if !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// flushEvicted 事务进行中别的会话可能把旧的行又放回了缓存
func (t *Tx) flushEvicted() {
	c := t.db.core
	for _, e := range t.evicted {
		c.evict(context.Background(), e.meta, e.ids...)
	}
	t.evicted = nil
}

// connSession 独占一个连接的会话
type connSession struct {
	core
	conn *sql.Conn
}

func (c *connSession) getCore() core {
	return c.core
}

func (c *connSession) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *connSession) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *connSession) pin(context.Context) (Session, func() error, error) {
	return c, noRelease, nil
}

func (c *connSession) activeTx() *Tx {
	return nil
}

func noRelease() error {
	return nil
}
