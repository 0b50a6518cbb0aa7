package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/interne/internal/database"
	"github.com/hitoshi/interne/internal/model"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// newTestDB はマイグレーション済みの一時SQLiteデータベースを返す。
func newTestDB(t *testing.T) (*sql.DB, database.Dialect) {
	t.Helper()

	dbURL := "sqlite:" + filepath.Join(t.TempDir(), "repo.db")
	require.NoError(t, database.RunMigrations(dbURL))

	db, dialect, err := database.Open(dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, dialect
}

type fixture struct {
	db          *sql.DB
	users       *SQLUserRepo
	sessions    *SQLSessionRepo
	entries     *SQLEntryRepo
	collections *SQLCollectionRepo
	tags        *SQLTagRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, dialect := newTestDB(t)
	f := &fixture{
		db:          db,
		users:       NewSQLUserRepo(db, dialect),
		sessions:    NewSQLSessionRepo(db, dialect),
		entries:     NewSQLEntryRepo(db, dialect),
		collections: NewSQLCollectionRepo(db, dialect),
		tags:        NewSQLTagRepo(db, dialect),
	}
	f.entries.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) createUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{ID: uuid.NewString(), Name: name, InviteCode: "code-" + uuid.NewString(), CreatedAt: testNow}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) createCollection(t *testing.T, owner *model.User, name string) *model.Collection {
	t.Helper()
	c := &model.Collection{
		ID: uuid.NewString(), OwnerID: owner.ID, Name: name,
		InviteCode: "inv-" + uuid.NewString(), CreatedAt: testNow, UpdatedAt: testNow,
	}
	require.NoError(t, f.collections.Create(context.Background(), c))
	return c
}

func (f *fixture) createEntry(t *testing.T, owner *model.User, collectionID *string, tags ...string) *model.Entry {
	t.Helper()
	e := &model.Entry{
		ID: uuid.NewString(), OwnerID: owner.ID, CollectionID: collectionID,
		URL: "https://example.com/" + uuid.NewString(), Title: "title", Duration: 3, Interval: model.IntervalDays,
		Tags: tags, CreatedAt: testNow, UpdatedAt: testNow,
	}
	require.NoError(t, f.entries.Create(context.Background(), e))
	return e
}
