package orm

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/gotomicro/ekit/slice"
	"github.com/lib/pq"
)

var (
	MySQL    Dialect = &mysqlDialect{}
	Postgres Dialect = &postgresDialect{}
	SQLite3  Dialect = &sqlite3Dialect{}
)

// Dialect 方言，只有我们内部能实现
type Dialect interface {
	Name() string

	quoter() byte
	// placeholder 第 n 个参数的占位符，n 从 1 开始
	placeholder(n int) string

	// 列类型相关
	boolType() string
	timeType() string
	uuidType() string
	bytesType() string
	autoIncrementType(k int) string
	createdClause() string
	updatedClause() string

	// DDL 上的差异
	indexIfNotExists() bool
	uniqueViaIndex() bool
	inlineForeignKeys() bool
	dropCascade() bool
	// foreignKeyChecks 返回关闭和打开外键检查的语句，不需要的方言返回空字符串
	foreignKeyChecks() (disable string, enable string)
	isAlreadyExists(err error) bool

	// 主键回填
	supportsReturning() bool
	// batchFirstID 多行插入的时候 LastInsertId 返回的是第一行的 id
	batchFirstID() bool
	// noLimit 只有 OFFSET 没有 LIMIT 的时候需要补上的子句
	noLimit() string
	// typedCase 批量更新的 CASE 需要 CAST 成列的类型
	typedCase() bool
}

// 整数类型的宽度，给 autoIncrementType 使用
const (
	intSmall = iota
	intRegular
	intBig
)

type standardSQL struct {
}

func (s standardSQL) placeholder(int) string { return "?" }

func (s standardSQL) boolType() string { return "BOOLEAN" }

func (s standardSQL) timeType() string { return "TIMESTAMP" }

func (s standardSQL) uuidType() string { return "CHAR(36)" }

func (s standardSQL) bytesType() string { return "BLOB" }

func (s standardSQL) createdClause() string { return "DEFAULT CURRENT_TIMESTAMP" }

func (s standardSQL) updatedClause() string { return "DEFAULT CURRENT_TIMESTAMP" }

func (s standardSQL) indexIfNotExists() bool { return true }

func (s standardSQL) uniqueViaIndex() bool { return false }

func (s standardSQL) inlineForeignKeys() bool { return false }

func (s standardSQL) dropCascade() bool { return false }

func (s standardSQL) foreignKeyChecks() (string, string) { return "", "" }

func (s standardSQL) supportsReturning() bool { return false }

func (s standardSQL) batchFirstID() bool { return true }

func (s standardSQL) noLimit() string { return "" }

func (s standardSQL) typedCase() bool { return false }

func (s standardSQL) isAlreadyExists(err error) bool {
	return messageAlreadyExists(err)
}

// messageAlreadyExists 兜底，拿不到错误码的时候看错误信息
func messageAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}

type mysqlDialect struct {
	standardSQL
}

func (m *mysqlDialect) Name() string { return "mysql" }

func (m *mysqlDialect) quoter() byte {
	return '`'
}

func (m *mysqlDialect) boolType() string { return "TINYINT(1)" }

func (m *mysqlDialect) timeType() string { return "DATETIME(6)" }

func (m *mysqlDialect) autoIncrementType(k int) string {
	switch k {
	case intSmall:
		return "SMALLINT AUTO_INCREMENT"
	case intRegular:
		return "INT AUTO_INCREMENT"
	}
	return "BIGINT AUTO_INCREMENT"
}

func (m *mysqlDialect) createdClause() string { return "DEFAULT CURRENT_TIMESTAMP(6)" }

func (m *mysqlDialect) updatedClause() string {
	return "DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)"
}

// MySQL 不支持 CREATE INDEX IF NOT EXISTS
func (m *mysqlDialect) indexIfNotExists() bool { return false }

func (m *mysqlDialect) foreignKeyChecks() (string, string) {
	return "SET FOREIGN_KEY_CHECKS = 0;", "SET FOREIGN_KEY_CHECKS = 1;"
}

func (m *mysqlDialect) noLimit() string { return " LIMIT 18446744073709551615" }

// 1022 重复的 key，1050 表已存在，1061 重复的索引名，1826 重复的外键名
var mysqlDuplicateCodes = []uint16{1022, 1050, 1061, 1826}

func (m *mysqlDialect) isAlreadyExists(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return slice.Contains[uint16](mysqlDuplicateCodes, me.Number)
	}
	return messageAlreadyExists(err)
}

type postgresDialect struct {
	standardSQL
}

func (p *postgresDialect) Name() string { return "postgres" }

func (p *postgresDialect) quoter() byte {
	return '"'
}

func (p *postgresDialect) placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (p *postgresDialect) uuidType() string { return "UUID" }

func (p *postgresDialect) bytesType() string { return "BYTEA" }

func (p *postgresDialect) autoIncrementType(k int) string {
	switch k {
	case intSmall:
		return "SMALLSERIAL"
	case intRegular:
		return "SERIAL"
	}
	return "BIGSERIAL"
}

func (p *postgresDialect) dropCascade() bool { return true }

func (p *postgresDialect) supportsReturning() bool { return true }

// 参数没有类型，CASE 的结果会被推断成 text
func (p *postgresDialect) typedCase() bool { return true }

// 42710 duplicate_object，42P07 duplicate_table
var pgDuplicateCodes = []pq.ErrorCode{"42710", "42P07"}

func (p *postgresDialect) isAlreadyExists(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return slice.Contains[pq.ErrorCode](pgDuplicateCodes, pe.Code)
	}
	return messageAlreadyExists(err)
}

type sqlite3Dialect struct {
	standardSQL
}

func (s *sqlite3Dialect) Name() string { return "sqlite3" }

func (s *sqlite3Dialect) quoter() byte {
	return '`'
}

// SQLite 里面只有 INTEGER PRIMARY KEY 才是 rowid 的别名
func (s *sqlite3Dialect) autoIncrementType(int) string { return "INTEGER" }

// SQLite 不支持 ALTER TABLE ADD CONSTRAINT
func (s *sqlite3Dialect) uniqueViaIndex() bool { return true }

func (s *sqlite3Dialect) inlineForeignKeys() bool { return true }

func (s *sqlite3Dialect) foreignKeyChecks() (string, string) {
	return "PRAGMA foreign_keys = OFF;", "PRAGMA foreign_keys = ON;"
}

// 多行插入的时候 last_insert_rowid 是最后一行
func (s *sqlite3Dialect) batchFirstID() bool { return false }

func (s *sqlite3Dialect) noLimit() string { return " LIMIT -1" }

// dialectOf 根据驱动名推断方言
func dialectOf(driver string) Dialect {
	switch driver {
	case "postgres", "pgx", "pq":
		return Postgres
	case "sqlite3", "sqlite":
		return SQLite3
	}
	return MySQL
}
