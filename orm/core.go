package orm

import (
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/coderi421/ratorm/orm/internal/valuer"
	"github.com/coderi421/ratorm/orm/model"
)

type core struct {
	dialect    Dialect
	r          model.Registry // 存储数据库表和 struct 映射关系的实例
	valCreator valuer.Creator // 与DB交互映射的实现
	mdls       []Middleware

	validator Validator
	cache     Cache
	cacheTTL  time.Duration
	// stmts 只和模型有关的语句文本，例如按照主键查询
	stmts    *lru.Cache
	logger   *slog.Logger
	clock    func() time.Time
	maxDepth int
}

// now 数据库普遍只保存到微秒
func (c core) now() time.Time {
	return c.clock().UTC().Truncate(time.Microsecond)
}

// statement 从缓存里面拿语句，没有就构造一个
func (c core) statement(key string, build func() (string, error)) (string, error) {
	key = c.dialect.Name() + ":" + key
	if c.stmts != nil {
		if val, ok := c.stmts.Get(key); ok {
			return val.(string), nil
		}
	}
	stmt, err := build()
	if err != nil {
		return "", err
	}
	if c.stmts != nil {
		c.stmts.Add(key, stmt)
	}
	return stmt, nil
}
