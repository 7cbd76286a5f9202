package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderi421/ratorm/orm/model"
)

type Member struct {
	ID    int64
	Email string  `orm:"unique"`
	Team  string
	Org   string
	Score float64 `orm:"type=DECIMAL(10,2),default=0,notnull"`
}

func (Member) Indexes() []model.Index {
	return []model.Index{
		{Columns: []string{"Team"}},
		{Name: "uk_member_org_team", Columns: []string{"org", "team"}, Unique: true},
	}
}

func TestSchemaGenerator_CreateTableSQL(t *testing.T) {
	testCases := []struct {
		name    string
		dialect Dialect
		entity  any
		want    []string
		wantErr error
	}{
		{
			name:    "mysql",
			dialect: MySQL,
			entity:  &Book{},
			want: []string{
				"CREATE TABLE IF NOT EXISTS `book` (" +
					"`id` BIGINT AUTO_INCREMENT NOT NULL, " +
					"`title` VARCHAR(128) NOT NULL, " +
					"`status` VARCHAR(16), " +
					"`priority` INT, " +
					"`created_at` DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6), " +
					"`updated_at` DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6), " +
					"`author_id` BIGINT, " +
					"PRIMARY KEY (`id`));",
				"ALTER TABLE `book` ADD CONSTRAINT `fk_book_author_id` FOREIGN KEY (`author_id`) " +
					"REFERENCES `author` (`id`) ON DELETE CASCADE ON UPDATE NO ACTION;",
			},
		},
		{
			name:    "postgres",
			dialect: Postgres,
			entity:  &Book{},
			want: []string{
				`CREATE TABLE IF NOT EXISTS "book" (` +
					`"id" BIGSERIAL NOT NULL, ` +
					`"title" VARCHAR(128) NOT NULL, ` +
					`"status" VARCHAR(16), ` +
					`"priority" INT, ` +
					`"created_at" TIMESTAMP DEFAULT CURRENT_TIMESTAMP, ` +
					`"updated_at" TIMESTAMP DEFAULT CURRENT_TIMESTAMP, ` +
					`"author_id" BIGINT, ` +
					`PRIMARY KEY ("id"));`,
				`ALTER TABLE "book" ADD CONSTRAINT "fk_book_author_id" FOREIGN KEY ("author_id") ` +
					`REFERENCES "author" ("id") ON DELETE CASCADE ON UPDATE NO ACTION;`,
			},
		},
		{
			name:    "sqlite",
			dialect: SQLite3,
			entity:  &Book{},
			want: []string{
				"CREATE TABLE IF NOT EXISTS `book` (" +
					"`id` INTEGER NOT NULL, " +
					"`title` VARCHAR(128) NOT NULL, " +
					"`status` VARCHAR(16), " +
					"`priority` INT, " +
					"`created_at` TIMESTAMP DEFAULT CURRENT_TIMESTAMP, " +
					"`updated_at` TIMESTAMP DEFAULT CURRENT_TIMESTAMP, " +
					"`author_id` BIGINT, " +
					"PRIMARY KEY (`id`), " +
					"FOREIGN KEY (`author_id`) REFERENCES `author` (`id`) ON DELETE CASCADE ON UPDATE NO ACTION);",
			},
		},
		{
			name:    "uuid key",
			dialect: Postgres,
			entity:  &Document{},
			want: []string{
				`CREATE TABLE IF NOT EXISTS "document" ("id" UUID NOT NULL, "name" VARCHAR(255), PRIMARY KEY ("id"));`,
			},
		},
		{
			name:    "mysql indexes",
			dialect: MySQL,
			entity:  &Member{},
			want: []string{
				"CREATE TABLE IF NOT EXISTS `member` (" +
					"`id` BIGINT AUTO_INCREMENT NOT NULL, " +
					"`email` VARCHAR(255) UNIQUE, " +
					"`team` VARCHAR(255), " +
					"`org` VARCHAR(255), " +
					"`score` DECIMAL(10,2) DEFAULT 0 NOT NULL, " +
					"PRIMARY KEY (`id`));",
				"CREATE INDEX `idx_member_team` ON `member` (`team`);",
				"ALTER TABLE `member` ADD CONSTRAINT `uk_member_org_team` UNIQUE (`org`, `team`);",
			},
		},
		{
			name:    "sqlite indexes",
			dialect: SQLite3,
			entity:  &Member{},
			want: []string{
				"CREATE TABLE IF NOT EXISTS `member` (" +
					"`id` INTEGER NOT NULL, " +
					"`email` VARCHAR(255) UNIQUE, " +
					"`team` VARCHAR(255), " +
					"`org` VARCHAR(255), " +
					"`score` DECIMAL(10,2) DEFAULT 0 NOT NULL, " +
					"PRIMARY KEY (`id`));",
				"CREATE INDEX IF NOT EXISTS `idx_member_team` ON `member` (`team`);",
				"CREATE UNIQUE INDEX IF NOT EXISTS `uk_member_org_team` ON `member` (`org`, `team`);",
			},
		},
		{
			name:    "not a pointer",
			dialect: MySQL,
			entity:  Member{},
			wantErr: ErrMapping,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := mockDB(t, DBWithDialect(tc.dialect))
			res, err := NewSchemaGenerator(db).CreateTableSQL(tc.entity)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, res)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSchemaGenerator_CreateTable(t *testing.T) {
	ctx := context.Background()
	table := "CREATE TABLE IF NOT EXISTS `node` (" +
		"`id` BIGINT AUTO_INCREMENT NOT NULL, `name` VARCHAR(255), `next_id` BIGINT, PRIMARY KEY (`id`));"
	fk := "ALTER TABLE `node` ADD CONSTRAINT `fk_node_next_id` FOREIGN KEY (`next_id`) " +
		"REFERENCES `node` (`id`) ON DELETE NO ACTION ON UPDATE NO ACTION;"

	t.Run("already exists", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec(table).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(fk).WillReturnError(&mysql.MySQLError{Number: 1826, Message: "Duplicate foreign key constraint name"})

		require.NoError(t, NewSchemaGenerator(db).CreateTable(ctx, &Node{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other failure", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec(table).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(fk).WillReturnError(&mysql.MySQLError{Number: 1215, Message: "Cannot add foreign key constraint"})

		err := NewSchemaGenerator(db).CreateTable(ctx, &Node{})
		var se *StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "ddl", se.Op)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("table failure", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec(table).WillReturnError(&mysql.MySQLError{Number: 1050, Message: "Table 'node' already exists"})

		// 建表语句本身不允许失败
		err := NewSchemaGenerator(db).CreateTable(ctx, &Node{})
		assert.ErrorIs(t, err, ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSchemaGenerator_DropTable(t *testing.T) {
	ctx := context.Background()

	t.Run("mysql", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0;").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DROP TABLE IF EXISTS `book`;").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1;").WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, NewSchemaGenerator(db).DropTable(ctx, &Book{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("checks are restored on failure", func(t *testing.T) {
		db, mock := mockDB(t, DBWithDialect(SQLite3))
		mock.ExpectExec("PRAGMA foreign_keys = OFF;").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DROP TABLE IF EXISTS `book`;").WillReturnError(errors.New("database is locked"))
		mock.ExpectExec("PRAGMA foreign_keys = ON;").WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewSchemaGenerator(db).DropTable(ctx, &Book{})
		assert.ErrorIs(t, err, ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres", func(t *testing.T) {
		db, mock := mockDB(t, DBWithDialect(Postgres))
		mock.ExpectExec(`DROP TABLE IF EXISTS "book" CASCADE;`).WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, NewSchemaGenerator(db).DropTable(ctx, &Book{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDialect_isAlreadyExists(t *testing.T) {
	testCases := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{name: "mysql duplicate key name", dialect: MySQL, err: &mysql.MySQLError{Number: 1061}, want: true},
		{name: "mysql other", dialect: MySQL, err: &mysql.MySQLError{Number: 1215}},
		{name: "postgres duplicate object", dialect: Postgres, err: &pq.Error{Code: "42710"}, want: true},
		{name: "postgres other", dialect: Postgres, err: &pq.Error{Code: "23505"}},
		{name: "sqlite message", dialect: SQLite3, err: errors.New("index idx_a already exists"), want: true},
		{name: "nil", dialect: SQLite3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.dialect.isAlreadyExists(tc.err))
		})
	}
}
