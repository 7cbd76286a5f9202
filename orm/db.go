package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/coderi421/ratorm/orm/config"
	"github.com/coderi421/ratorm/orm/internal/valuer"
	"github.com/coderi421/ratorm/orm/model"
	"github.com/coderi421/ratorm/orm/validator"
)

const (
	defaultMaxFetchDepth      = 8
	defaultStatementCacheSize = 256
)

type DBOption func(*DB)

// DB 是 sql.DB 的装饰器
type DB struct {
	core
	db *sql.DB

	stmtCacheSize int
}

// Open 打开一个数据库连接，方言根据驱动名推断
func Open(driver string, dsn string, opts ...DBOption) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	opts = append([]DBOption{DBWithDialect(dialectOf(driver))}, opts...)
	return OpenDB(db, opts...)
}

// OpenDB 可以利用 OpenDB 来传入一个 mock 的 DB，默认是 MySQL 方言
func OpenDB(db *sql.DB, opts ...DBOption) (*DB, error) {
	res := &DB{
		core: core{
			dialect:    MySQL,
			r:          model.NewRegistry(),
			valCreator: valuer.NewReflectValue,
			validator:  validator.New(),
			logger:     slog.Default(),
			clock:      time.Now,
			maxDepth:   defaultMaxFetchDepth,
		},
		db:            db,
		stmtCacheSize: defaultStatementCacheSize,
	}
	for _, opt := range opts {
		opt(res)
	}
	if res.stmtCacheSize > 0 {
		stmts, err := lru.New(res.stmtCacheSize)
		if err != nil {
			return nil, err
		}
		res.stmts = stmts
	}
	return res, nil
}

// OpenConfig 按照配置打开数据库，opts 会覆盖配置里的设置
// 配置里的 CacheTTL 只在 DBWithCache 没有指定过期时间的时候生效
func OpenConfig(cfg config.Config, opts ...DBOption) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []DBOption{
		DBWithMaxFetchDepth(cfg.MaxFetchDepth),
		DBWithStatementCacheSize(cfg.StatementCacheSize),
	}
	if cfg.Dialect != "" {
		base = append(base, DBWithDialect(dialectOf(cfg.Dialect)))
	}
	if cfg.UseUnsafe {
		base = append(base, DBUseUnsafe())
	}
	db, err := Open(cfg.Driver, cfg.DSN, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if db.cache != nil && db.cacheTTL == 0 {
		db.cacheTTL = cfg.CacheTTL
	}
	return db, nil
}

func MustOpen(driver string, dsn string, opts ...DBOption) *DB {
	res, err := Open(driver, dsn, opts...)
	if err != nil {
		panic(err)
	}
	return res
}

func DBWithDialect(d Dialect) DBOption {
	return func(db *DB) {
		db.dialect = d
	}
}

func DBWithRegistry(r model.Registry) DBOption {
	return func(db *DB) {
		db.r = r
	}
}

// DBUseUnsafe 使用 unsafe 读写字段
func DBUseUnsafe() DBOption {
	return func(db *DB) {
		db.valCreator = valuer.NewUnsafeValue
	}
}

func DBWithMiddlewares(mdls ...Middleware) DBOption {
	return func(db *DB) {
		db.mdls = mdls
	}
}

// DBWithValidator 传入 nil 关闭校验
func DBWithValidator(v Validator) DBOption {
	return func(db *DB) {
		db.validator = v
	}
}

// DBWithCache 按照主键缓存查询到的行，写操作会让缓存失效
func DBWithCache(c Cache, ttl time.Duration) DBOption {
	return func(db *DB) {
		db.cache = c
		db.cacheTTL = ttl
	}
}

// DBWithStatementCacheSize 小于等于 0 的时候不缓存语句
func DBWithStatementCacheSize(size int) DBOption {
	return func(db *DB) {
		db.stmtCacheSize = size
	}
}

// DBWithMaxFetchDepth 关联加载的最大深度，超过之后只填充主键
func DBWithMaxFetchDepth(depth int) DBOption {
	return func(db *DB) {
		db.maxDepth = depth
	}
}

func DBWithLogger(l *slog.Logger) DBOption {
	return func(db *DB) {
		db.logger = l
	}
}

func DBWithClock(clock func() time.Time) DBOption {
	return func(db *DB) {
		db.clock = clock
	}
}

// Dialect 当前使用的方言
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Registry 元数据注册中心
func (db *DB) Registry() model.Registry {
	return db.r
}

func (db *DB) getCore() core {
	return db.core
}

func (db *DB) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

func (db *DB) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// pin 拿到一个独占的连接，用完之后必须调用 release
func (db *DB) pin(ctx context.Context) (Session, func() error, error) {
	conn, err := db.db.Conn(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &connSession{core: db.core, conn: conn}, conn.Close, nil
}

func (db *DB) activeTx() *Tx {
	return nil
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, db: db}, nil
}

// DoTx 将会开启事务执行 fn。如果 fn 返回错误或者发生 panic，事务将会回滚，
// 否则提交事务
func (db *DB) DoTx(ctx context.Context,
	fn func(ctx context.Context, tx *Tx) error,
	opts *sql.TxOptions) (err error) {
	var tx *Tx
	tx, err = db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	panicked := true
	defer func() {
		if panicked || err != nil {
			if e := tx.Rollback(); e != nil {
				err = errors.Join(err, fmt.Errorf("orm: 回滚事务失败: %w", e))
			}
			if panicked && err == nil {
				err = errors.New("orm: 事务执行过程中发生 panic")
			}
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(ctx, tx)
	panicked = false
	return err
}

func (db *DB) Close() error {
	return db.db.Close()
}
