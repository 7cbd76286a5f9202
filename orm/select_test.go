package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_Build(t *testing.T) {
	db, _ := mockDB(t)
	pg, _ := mockDB(t, DBWithDialect(Postgres))
	lite, _ := mockDB(t, DBWithDialect(SQLite3))

	type testCase struct {
		name    string
		q       QueryBuilder
		want    *Query
		wantErr error
	}
	tests := []testCase{
		{
			name: "no where",
			q:    CreateQuery[TestModel](db),
			want: &Query{
				SQL: "SELECT * FROM `testmodel`;",
			},
		},
		{
			name: "field name",
			q:    CreateQuery[TestModel](db).Where("FirstName", "Tom"),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` WHERE `first_name` = ?;",
				Args: []any{"Tom"},
			},
		},
		{
			name: "multiple predicates",
			q:    CreateQuery[TestModel](db).WhereOp("age", ">", 11).WhereOp("Age", "<", 13),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` WHERE (`age` > ?) AND (`age` < ?);",
				Args: []any{11, 13},
			},
		},
		{
			name: "operator aliases",
			q:    CreateQuery[TestModel](db).WhereOp("Age", "!=", 1).WhereOp("FirstName", " not   like ", "T%"),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` WHERE (`age` <> ?) AND (`first_name` NOT LIKE ?);",
				Args: []any{1, "T%"},
			},
		},
		{
			name: "in",
			q:    CreateQuery[TestModel](db).WhereIn("Id", 1, 2, 3),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` WHERE `id` IN (?,?,?);",
				Args: []any{1, 2, 3},
			},
		},
		{
			// 没有值的时候不会添加任何条件
			name: "empty in",
			q:    CreateQuery[TestModel](db).WhereIn("Id"),
			want: &Query{
				SQL: "SELECT * FROM `testmodel`;",
			},
		},
		{
			name: "or",
			q:    CreateQuery[TestModel](db).Predicates(C("Age").GT(18).Or(C("Age").LT(35))),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` WHERE (`age` > ?) OR (`age` < ?);",
				Args: []any{18, 35},
			},
		},
		{
			name: "not",
			q:    CreateQuery[TestModel](db).Predicates(Not(C("Age").GT(18))),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` WHERE NOT (`age` > ?);",
				Args: []any{18},
			},
		},
		{
			name: "raw",
			q:    CreateQuery[TestModel](db).Predicates(Raw("`age` < ?", 18).AsPredicate()),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` WHERE `age` < ?;",
				Args: []any{18},
			},
		},
		{
			name: "order limit offset",
			q: CreateQuery[TestModel](db).OrderBy("Age").OrderByDir("id", "desc").
				Limit(10).Offset(20),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` ORDER BY `age` ASC,`id` DESC LIMIT ? OFFSET ?;",
				Args: []any{10, 20},
			},
		},
		{
			name: "offset without limit",
			q:    CreateQuery[TestModel](lite).Offset(5),
			want: &Query{
				SQL:  "SELECT * FROM `testmodel` LIMIT -1 OFFSET ?;",
				Args: []any{5},
			},
		},
		{
			name: "postgres",
			q:    CreateQuery[TestModel](pg).Where("Age", 18).Where("FirstName", "Tom").Limit(1),
			want: &Query{
				SQL:  `SELECT * FROM "testmodel" WHERE ("age" = $1) AND ("first_name" = $2) LIMIT $3;`,
				Args: []any{18, "Tom", 1},
			},
		},
		{
			name: "enum and join column",
			q:    CreateQuery[Book](db).Where("Status", StatusActive).Where("author_id", int64(3)),
			want: &Query{
				SQL:  "SELECT * FROM `book` WHERE (`status` = ?) AND (`author_id` = ?);",
				Args: []any{"ACTIVE", int64(3)},
			},
		},
		{
			name: "ordinal enum",
			q:    CreateQuery[Book](db).Where("Priority", PriorityHigh),
			want: &Query{
				SQL:  "SELECT * FROM `book` WHERE `priority` = ?;",
				Args: []any{int64(2)},
			},
		},
		{
			name:    "unknown column",
			q:       CreateQuery[TestModel](db).Where("Invalid", 1),
			wantErr: ErrQuery,
		},
		{
			name:    "unknown operator",
			q:       CreateQuery[TestModel](db).WhereOp("Age", "~", 1),
			wantErr: ErrQuery,
		},
		{
			name:    "unknown direction",
			q:       CreateQuery[TestModel](db).OrderByDir("Age", "UP"),
			wantErr: ErrQuery,
		},
		{
			name:    "negative limit",
			q:       CreateQuery[TestModel](db).Limit(-1),
			wantErr: ErrQuery,
		},
		{
			name:    "not a struct",
			q:       CreateQuery[int](db),
			wantErr: ErrMapping,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := tt.q.Build()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
		})
	}
}

// 构造阶段的错误不会执行任何语句
func TestSelector_invalidQueryNotExecuted(t *testing.T) {
	db, mock := mockDB(t)
	ctx := context.Background()

	s := CreateQuery[TestModel](db).Where("nickname", "Tom")
	_, err := s.GetResultList(ctx)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "TestModel", qe.Entity)
	assert.Contains(t, qe.Msg, "nickname")

	_, err = s.GetSingleResult(ctx)
	assert.ErrorIs(t, err, ErrQuery)
	_, err = s.Count(ctx)
	assert.ErrorIs(t, err, ErrQuery)
	_, err = s.GetPage(ctx, PageRequest{Page: 0, Size: 10})
	assert.ErrorIs(t, err, ErrQuery)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelector_GetResultList(t *testing.T) {
	db, mock := mockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT * FROM `testmodel` WHERE `age` > ?;").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "age", "last_name"}).
			AddRow(1, "Tom", 20, "Jerry").
			AddRow(2, "Ann", 30, nil))
	mock.ExpectQuery("SELECT * FROM `testmodel` WHERE `id` = ? LIMIT ?;").
		WithArgs(int64(3), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT * FROM `testmodel`;").
		WillReturnRows(sqlmock.NewRows([]string{"id", "nickname"}).AddRow(1, "x"))
	mock.ExpectQuery("SELECT * FROM `testmodel`;").
		WillReturnError(errors.New("connection refused"))

	res, err := CreateQuery[TestModel](db).WhereOp("Age", ">", 18).GetResultList(ctx)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Tom", res[0].FirstName)
	assert.Equal(t, int8(20), res[0].Age)
	assert.Equal(t, "Jerry", res[0].LastName.String)
	assert.Nil(t, res[1].LastName)

	single, err := CreateQuery[TestModel](db).Where("Id", int64(3)).GetSingleResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, single)

	_, err = FindAll[TestModel](ctx, db)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = FindAll[TestModel](ctx, db)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "select", se.Op)
	assert.Equal(t, "testmodel", se.Table)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelector_Count(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT COUNT(*) FROM `testmodel` WHERE `age` >= ?;").
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(42))

	cnt, err := CreateQuery[TestModel](db).WhereOp("Age", ">=", 18).
		OrderBy("Age").Limit(3).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), cnt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
