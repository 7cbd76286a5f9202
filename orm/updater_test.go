package orm

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/model"
)

func TestUpdater_Build(t *testing.T) {
	db, _ := mockDB(t)
	meta, err := db.r.Get(&TestModel{})
	require.NoError(t, err)

	testCases := []struct {
		name      string
		u         *updater
		wantQuery *Query
		wantErr   error
	}{
		{
			name:    "no columns",
			u:       newUpdater(db.core, meta),
			wantErr: errs.ErrNoUpdatedColumns,
		},
		{
			name: "single",
			u: newUpdater(db.core, meta).
				Set(Assign("FirstName", "Tom"), Assign("age", int8(18))).
				Where(C("Id").EQ(int64(1))),
			wantQuery: &Query{
				SQL:  "UPDATE `testmodel` SET `first_name`=?,`age`=? WHERE `id` = ?;",
				Args: []any{"Tom", int8(18), int64(1)},
			},
		},
		{
			name: "case",
			u: newUpdater(db.core, meta).
				Set(assignColumn("first_name", "id", []any{int64(1), int64(2)}, []any{"A", "B"}, "")).
				Where(keyPredicate("id", []any{int64(1), int64(2)})),
			wantQuery: &Query{
				SQL:  "UPDATE `testmodel` SET `first_name`=CASE `id` WHEN ? THEN ? WHEN ? THEN ? END WHERE `id` IN (?,?);",
				Args: []any{int64(1), "A", int64(2), "B", int64(1), int64(2)},
			},
		},
		{
			name:    "unknown column",
			u:       newUpdater(db.core, meta).Set(Assign("nickname", "x")),
			wantErr: ErrQuery,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := tc.u.Build()
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantQuery, q)
		})
	}
}

func TestEntityManager_Update(t *testing.T) {
	ctx := context.Background()
	now := fixedClock()

	t.Run("single", func(t *testing.T) {
		db, mock := mockDB(t, DBWithClock(fixedClock))
		// created 的列不会被更新
		mock.ExpectExec("UPDATE `book` SET `title`=?,`status`=?,`priority`=?,`updated_at`=?,`author_id`=? WHERE `id` = ?;").
			WithArgs("Go 2", "ARCHIVED", int64(1), now, int64(7), int64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		book := &Book{
			ID:        11,
			Title:     "Go 2",
			Status:    StatusArchived,
			Priority:  PriorityMedium,
			Author:    &Author{ID: 7},
			CreatedAt: now.Add(-time.Hour),
		}
		require.NoError(t, NewEntityManager(db).Update(ctx, book))
		assert.Equal(t, now, book.UpdatedAt)
		assert.Equal(t, now.Add(-time.Hour), book.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("batch", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec("UPDATE `testmodel` SET " +
			"`first_name`=CASE `id` WHEN ? THEN ? WHEN ? THEN ? END," +
			"`age`=CASE `id` WHEN ? THEN ? WHEN ? THEN ? END," +
			"`last_name`=CASE `id` WHEN ? THEN ? WHEN ? THEN ? END " +
			"WHERE `id` IN (?,?);").
			WithArgs(int64(1), "A", int64(2), "B",
				int64(1), int8(10), int64(2), int8(20),
				int64(1), "X", int64(2), nil,
				int64(1), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := NewEntityManager(db).UpdateBatch(ctx, []*TestModel{
			{Id: 1, FirstName: "A", Age: 10, LastName: &sql.NullString{String: "X", Valid: true}},
			{Id: 2, FirstName: "B", Age: 20},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres batch", func(t *testing.T) {
		type Player struct {
			ID    int64
			Name  string `orm:"size=32"`
			Score int64
		}
		db, mock := mockDB(t, DBWithDialect(Postgres))
		mock.ExpectExec(`UPDATE "player" SET ` +
			`"name"=CAST(CASE "id" WHEN $1 THEN $2 WHEN $3 THEN $4 END AS VARCHAR(32)),` +
			`"score"=CAST(CASE "id" WHEN $5 THEN $6 WHEN $7 THEN $8 END AS BIGINT) ` +
			`WHERE "id" IN ($9,$10);`).
			WithArgs(int64(1), "A", int64(2), "B",
				int64(1), int64(10), int64(2), int64(20),
				int64(1), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := NewEntityManager(db).UpdateBatch(ctx, []*Player{
			{ID: 1, Name: "A", Score: 10},
			{ID: 2, Name: "B", Score: 20},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("immutable", func(t *testing.T) {
		type Profile struct {
			ID       int64
			Username string `orm:"immutable"`
			Bio      string
			Owner    *Author `orm:"join=owner_id,immutable"`
		}
		db, mock := mockDB(t)
		mock.ExpectExec("UPDATE `profile` SET `bio`=? WHERE `id` = ?;").
			WithArgs("hi", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewEntityManager(db).Update(ctx, &Profile{ID: 3, Username: "tom", Bio: "hi"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keyless", func(t *testing.T) {
		type AuditLog struct {
			Message string
		}
		db, mock := mockDB(t)
		_, err := db.Registry().Register(&AuditLog{}, model.Keyless())
		require.NoError(t, err)

		em := NewEntityManager(db)
		assert.ErrorIs(t, em.Update(ctx, &AuditLog{Message: "x"}), ErrMapping)
		assert.ErrorIs(t, em.Delete(ctx, &AuditLog{Message: "x"}), ErrMapping)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

type hookedAccount struct {
	ID     int64
	Email  string
	events []string
}

func (a *hookedAccount) PrePersist(context.Context) error {
	a.events = append(a.events, "pre-persist")
	return nil
}

func (a *hookedAccount) PostPersist(context.Context) error {
	a.events = append(a.events, "post-persist")
	return nil
}

func (a *hookedAccount) PreUpdate(context.Context) error {
	a.events = append(a.events, "pre-update")
	return nil
}

func (a *hookedAccount) PostUpdate(context.Context) error {
	a.events = append(a.events, "post-update")
	return nil
}

func TestEntityManager_hooks(t *testing.T) {
	ctx := context.Background()
	db, mock := mockDB(t)
	_, err := db.Registry().Register(&hookedAccount{}, model.WithHook(model.PhasePrePersist,
		func(ctx context.Context, entity any) error {
			a := entity.(*hookedAccount)
			a.events = append(a.events, "option")
			return nil
		}))
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `hookedaccount` (`email`) VALUES (?);").
		WithArgs("a@b.c").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `hookedaccount` SET `email`=? WHERE `id` = ?;").
		WithArgs("c@d.e", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	acc := &hookedAccount{Email: "a@b.c"}
	em := NewEntityManager(db)
	require.NoError(t, em.Persist(ctx, acc))
	acc.Email = "c@d.e"
	require.NoError(t, em.Update(ctx, acc))

	assert.Equal(t, []string{"pre-persist", "option", "post-persist", "pre-update", "post-update"}, acc.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
