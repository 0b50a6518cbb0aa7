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

func TestSQLEntryRepo_CreateAndFind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "alice")

	e := f.createEntry(t, owner, nil, "go", "reading")

	got, err := f.entries.FindByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.URL, got.URL)
	assert.Equal(t, model.IntervalDays, got.Interval)
	assert.Nil(t, got.DismissedAt)
	assert.Nil(t, got.CollectionID)
	assert.Equal(t, 0, got.VisitCount)
	assert.Equal(t, []string{"go", "reading"}, got.Tags)
	assert.True(t, got.CreatedAt.Equal(testNow))
}

func TestSQLEntryRepo_FindByID_NotFound(t *testing.T) {
	f := newFixture(t)

	got, err := f.entries.FindByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.entries.FindByID(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLEntryRepo_RecordVisit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "alice")
	e := f.createEntry(t, owner, nil)

	visitedAt := testNow.Add(-time.Hour)
	require.NoError(t, f.entries.RecordVisit(ctx, &model.Visit{
		ID: uuid.NewString(), EntryID: e.ID, UserID: owner.ID, VisitedAt: visitedAt,
	}))

	got, err := f.entries.FindByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DismissedAt)
	assert.True(t, got.DismissedAt.Equal(visitedAt), "dismissed_at = %v", got.DismissedAt)
	assert.Equal(t, 1, got.VisitCount)

	visits, err := f.entries.ListVisits(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, owner.ID, visits[0].UserID)
}

func TestSQLEntryRepo_RecordVisit_MissingEntryLeavesNoVisit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "alice")

	err := f.entries.RecordVisit(ctx, &model.Visit{
		ID: uuid.NewString(), EntryID: uuid.NewString(), UserID: owner.ID, VisitedAt: testNow,
	})
	require.Error(t, err)

	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM visits`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestSQLEntryRepo_UnparseableDismissedAtIsNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "alice")
	e := f.createEntry(t, owner, nil)

	_, err := f.db.Exec(`UPDATE entries SET dismissed_at = 'garbage' WHERE id = ?`, e.ID)
	require.NoError(t, err)

	got, err := f.entries.FindByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DismissedAt)
	assert.True(t, got.DismissedAt.Equal(testNow))
}

func TestSQLEntryRepo_UpdateKeepsDismissedAtAndReplacesTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "alice")
	e := f.createEntry(t, owner, nil, "old")

	require.NoError(t, f.entries.RecordVisit(ctx, &model.Visit{
		ID: uuid.NewString(), EntryID: e.ID, UserID: owner.ID, VisitedAt: testNow,
	}))

	e.Title = "renamed"
	e.Duration = 7
	e.Interval = model.IntervalWeeks
	e.Tags = []string{"new"}
	e.UpdatedAt = testNow.Add(time.Minute)
	require.NoError(t, f.entries.Update(ctx, e))

	got, err := f.entries.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, 7, got.Duration)
	assert.Equal(t, model.IntervalWeeks, got.Interval)
	assert.Equal(t, []string{"new"}, got.Tags)
	require.NotNil(t, got.DismissedAt)
	assert.True(t, got.DismissedAt.Equal(testNow))
}

func TestSQLEntryRepo_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "alice")
	e := f.createEntry(t, owner, nil, "tagged")
	require.NoError(t, f.entries.RecordVisit(ctx, &model.Visit{
		ID: uuid.NewString(), EntryID: e.ID, UserID: owner.ID, VisitedAt: testNow,
	}))

	require.NoError(t, f.entries.Delete(ctx, e.ID))

	var visits, links int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM visits`).Scan(&visits))
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM entry_tags`).Scan(&links))
	assert.Equal(t, 0, visits)
	assert.Equal(t, 0, links)

	assert.Error(t, f.entries.Delete(ctx, e.ID))
}

func TestSQLEntryRepo_ListVisibleTo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	carol := f.createUser(t, "carol")

	shared := f.createCollection(t, alice, "shared")
	private := f.createEntry(t, alice, nil)
	inShared := f.createEntry(t, alice, &shared.ID)
	bobsOwn := f.createEntry(t, bob, nil)

	require.NoError(t, f.collections.AddMember(ctx, &model.Membership{
		CollectionID: shared.ID, UserID: bob.ID, JoinedAt: testNow,
	}))

	ids := func(entries []*model.Entry) []string {
		out := []string{}
		for _, e := range entries {
			out = append(out, e.ID)
		}
		return out
	}

	aliceSees, err := f.entries.ListVisibleTo(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{private.ID, inShared.ID}, ids(aliceSees))

	bobSees, err := f.entries.ListVisibleTo(ctx, bob.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{inShared.ID, bobsOwn.ID}, ids(bobSees))

	carolSees, err := f.entries.ListVisibleTo(ctx, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, carolSees)
}

func TestSQLEntryRepo_CreateWithVisits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "alice")

	dismissed := testNow.Add(-48 * time.Hour)
	e := &model.Entry{
		ID: uuid.NewString(), OwnerID: owner.ID, URL: "https://example.com/imported", Title: "imported",
		Duration: 2, Interval: model.IntervalHours, DismissedAt: &dismissed, CreatedAt: testNow, UpdatedAt: testNow,
	}
	visits := []*model.Visit{
		{ID: uuid.NewString(), EntryID: e.ID, UserID: owner.ID, VisitedAt: dismissed},
		{ID: uuid.NewString(), EntryID: e.ID, UserID: owner.ID, VisitedAt: dismissed},
	}
	require.NoError(t, f.entries.CreateWithVisits(ctx, e, visits))

	got, err := f.entries.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.VisitCount)

	exists, err := f.entries.ExistsByOwnerAndURL(ctx, owner.ID, "https://example.com/imported")
	require.NoError(t, err)
	assert.True(t, exists)

	listed, err := f.entries.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}
