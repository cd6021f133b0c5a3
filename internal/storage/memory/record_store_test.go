package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

func strPtr(s string) *string { return &s }

func TestParliamentIsInsertOrIgnore(t *testing.T) {
	t.Parallel()
	store := NewRecordStore()
	ctx := context.Background()

	first, err := store.UpsertParliament(ctx, crawler.Parliament{ID: 9, Name: strPtr("first")})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := store.UpsertParliament(ctx, crawler.Parliament{ID: 9, Name: strPtr("second")})
	require.NoError(t, err)
	require.Nil(t, second)

	snap := store.Snapshot()
	require.Len(t, snap.Parliaments, 1)
	require.Equal(t, "first", *snap.Parliaments[9].Name)
}

func TestOfficeNaturalKeyReusesID(t *testing.T) {
	t.Parallel()
	store := NewRecordStore()
	ctx := context.Background()

	kind := crawler.DepartmentOffice
	from := time.Date(2020, 11, 13, 0, 0, 0, 0, time.UTC)
	office := crawler.Office{DepartmentType: &kind, Duties: strPtr("narys"), From: &from}

	a, err := store.UpsertOffice(ctx, office)
	require.NoError(t, err)
	office.DepartmentName = strPtr("Renamed")
	b, err := store.UpsertOffice(ctx, office)
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)

	other := office
	other.Duties = strPtr("pirmininkas")
	c, err := store.UpsertOffice(ctx, other)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, c.ID)

	snap := store.Snapshot()
	require.Len(t, snap.Offices, 2)
	require.Equal(t, "Renamed", *snap.Offices[0].DepartmentName)
}

func TestMissingIDsAndCounts(t *testing.T) {
	t.Parallel()
	store := NewRecordStore()
	ctx := context.Background()

	for _, m := range []crawler.Meeting{
		{ID: 3, Num: 2, Type: "Rytinis", Session: 5},
		{ID: 1, Num: 1, Type: "Rytinis", Session: 5},
		{ID: 8, Num: 1, Type: "Vakarinis", Session: 6},
	} {
		_, err := store.UpsertMeeting(ctx, m)
		require.NoError(t, err)
	}
	_, err := store.UpsertMeetingData(ctx, crawler.MeetingData{ID: 3})
	require.NoError(t, err)
	_, err = store.UpsertVote(ctx, crawler.Vote{ID: 40})
	require.NoError(t, err)
	_, err = store.UpsertVote(ctx, crawler.Vote{ID: 41})
	require.NoError(t, err)
	_, err = store.UpsertVoteData(ctx, crawler.VoteData{ID: 41, PersonID: 7})
	require.NoError(t, err)

	ids, err := store.MeetingIDs(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 3}, ids)

	n, err := store.CountMeetings(ctx, 6)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	missing, err := store.MissingMeetingIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 8}, missing)

	missingVotes, err := store.MissingVoteIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{40}, missingVotes)

	links, err := store.DocumentLinks(ctx, 5)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, int32(1), links[0].MeetingNum)
}

func TestArraysAreNeverNil(t *testing.T) {
	t.Parallel()
	store := NewRecordStore()

	got, err := store.UpsertAgendaItem(context.Background(), crawler.AgendaItem{ID: 1})
	require.NoError(t, err)
	require.NotNil(t, got.Speeches)
	require.NotNil(t, got.Voting)
}

func TestSnapshotOrdersIDsOfOppositeSign(t *testing.T) {
	t.Parallel()
	store := NewRecordStore()
	ctx := context.Background()

	for _, id := range []int32{2147483000, -2147483000, 0} {
		_, err := store.UpsertVoteData(ctx, crawler.VoteData{ID: id, PersonID: 7})
		require.NoError(t, err)
	}
	for _, person := range []int32{math.MaxInt32, math.MinInt32} {
		_, err := store.UpsertVoteData(ctx, crawler.VoteData{ID: 0, PersonID: person})
		require.NoError(t, err)
	}

	var got [][2]int32
	for _, v := range store.Snapshot().VoteData {
		got = append(got, [2]int32{v.ID, v.PersonID})
	}
	require.Equal(t, [][2]int32{
		{-2147483000, 7},
		{0, math.MinInt32},
		{0, 7},
		{0, math.MaxInt32},
		{2147483000, 7},
	}, got)
}
