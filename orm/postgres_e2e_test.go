//go:build e2e

package orm

import (
	"context"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func postgresDB(t *testing.T) *DB {
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ratorm"),
		postgres.WithUsername("ratorm"),
		postgres.WithPassword("ratorm"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ctr.Terminate(context.Background())
	})
	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestPostgres_e2e(t *testing.T) {
	ctx := context.Background()
	db := postgresDB(t)
	g := NewSchemaGenerator(db)
	for _, e := range []any{&Author{}, &Book{}, &Document{}} {
		require.NoError(t, g.CreateTable(ctx, e))
	}
	// 外键约束已经存在
	require.NoError(t, g.CreateTable(ctx, &Book{}))

	em := NewEntityManager(db)
	books := []*Book{
		{Title: "Unix", Status: StatusDraft, Priority: PriorityLow, Author: &Author{Name: "Ken"}},
		{Title: "Go", Status: StatusArchived, Priority: PriorityHigh},
	}
	require.NoError(t, em.PersistBatch(ctx, books))
	assert.NotZero(t, books[0].ID)
	assert.Equal(t, books[0].ID+1, books[1].ID)

	got, err := FindByID[Book](ctx, db, books[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)
	assert.Equal(t, "Ken", got.Author.Name)

	doc := &Document{Name: "readme"}
	require.NoError(t, em.Persist(ctx, doc))
	gotDoc, err := FindByID[Document](ctx, db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, gotDoc.ID)
	assert.NotEqual(t, uuid.Nil, gotDoc.ID)

	page, err := FindPage[Book](ctx, db, PageRequest{Page: 0, Size: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)

	books[1].Title = "Go 2"
	require.NoError(t, em.UpdateBatch(ctx, books))
	require.NoError(t, em.DeleteBatch(ctx, books))
	cnt, err := CreateQuery[Book](db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, cnt)

	require.NoError(t, g.DropTable(ctx, &Author{}))
	require.NoError(t, g.DropTable(ctx, &Book{}))
	require.NoError(t, g.DropTable(ctx, &Document{}))
}
