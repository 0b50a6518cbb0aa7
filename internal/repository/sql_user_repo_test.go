package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/interne/internal/model"
)

func TestSQLUserRepo_FindByInviteCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "alice")

	got, err := f.users.FindByInviteCode(ctx, u.InviteCode)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	none, err := f.users.FindByInviteCode(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLUserRepo_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "alice")
	c := f.createCollection(t, u, "mine")
	f.createEntry(t, u, &c.ID)
	require.NoError(t, f.sessions.Create(ctx, &model.Session{
		ID: "s1", UserID: u.ID, ExpiresAt: testNow.Add(time.Hour), CreatedAt: testNow,
	}))

	require.NoError(t, f.users.DeleteByID(ctx, u.ID))

	for _, table := range []string{"entries", "collections", "sessions"} {
		var n int
		require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Equal(t, 0, n, table)
	}

	assert.Error(t, f.users.DeleteByID(ctx, uuid.NewString()))
}

func TestSQLSessionRepo_FindValidAndExtend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "alice")

	s := &model.Session{ID: "sess", UserID: u.ID, ExpiresAt: testNow.Add(time.Hour), CreatedAt: testNow}
	require.NoError(t, f.sessions.Create(ctx, s))

	got, err := f.sessions.FindValid(ctx, "sess", testNow)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.UserID)

	expired, err := f.sessions.FindValid(ctx, "sess", testNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, expired)

	require.NoError(t, f.sessions.Extend(ctx, "sess", testNow.Add(3*time.Hour)))
	extended, err := f.sessions.FindValid(ctx, "sess", testNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.NotNil(t, extended)

	require.NoError(t, f.sessions.DeleteByUserID(ctx, u.ID))
	gone, err := f.sessions.FindValid(ctx, "sess", testNow)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
