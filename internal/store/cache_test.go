package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/types"
)

func sampleRecords() []types.Record {
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return []types.Record{
		{State: "NY", Date: day, Cases: 10, Deaths: 1},
		{State: "NY", Date: day.AddDate(0, 0, 1), Cases: 5},
		{State: "CA", Date: day, Cases: 3},
	}
}

func entry(source, hash string, recs []types.Record) Entry {
	return Entry{
		Source:   source,
		Hash:     hash,
		Settings: "zero-fill",
		Records:  recs,
		Report:   records.Report{Rows: len(recs), Accepted: len(recs)},
	}
}

func TestCache_SaveLookup(t *testing.T) {
	ctx := context.Background()
	c, err := Open(filepath.Join(t.TempDir(), "cache", "scenes.db"))
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Lookup(ctx, "a.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Save(ctx, entry("a.csv", "h1", sampleRecords())))

	got, ok, err := c.Lookup(ctx, "a.csv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "h1", got.Hash)
	assert.Equal(t, "zero-fill", got.Settings)
	assert.Equal(t, sampleRecords(), got.Records)
	assert.Equal(t, 3, got.Report.Rows)
	assert.Empty(t, got.Report.Issues)
	assert.WithinDuration(t, time.Now(), got.FetchedAt, time.Minute)
}

func TestCache_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Save(ctx, entry("a.csv", "h1", sampleRecords())))
	require.NoError(t, c.Save(ctx, entry("a.csv", "h2", sampleRecords()[:1])))
	require.NoError(t, c.Save(ctx, entry("b.csv", "h3", sampleRecords())))

	got, ok, err := c.Lookup(ctx, "a.csv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "h2", got.Hash)
	assert.Len(t, got.Records, 1)

	got, ok, err = c.Lookup(ctx, "b.csv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Records, 3)
}

func TestCache_KeepsReport(t *testing.T) {
	ctx := context.Background()
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	e := entry("a.csv", "h1", sampleRecords()[:2])
	e.Report = records.Report{
		Rows:     3,
		Accepted: 2,
		Issues: []records.Issue{
			{Err: &records.MalformedRecordError{Row: 3, Field: "cases", Value: "abc", Reason: "not a number"}, Action: records.ActionSkipped},
		},
	}
	require.NoError(t, c.Save(ctx, e))

	got, ok, err := c.Lookup(ctx, "a.csv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e.Report, got.Report)
	assert.Equal(t, 1, got.Report.Skipped())

	// A clean save clears the old issues.
	require.NoError(t, c.Save(ctx, entry("a.csv", "h2", sampleRecords())))
	got, _, err = c.Lookup(ctx, "a.csv")
	require.NoError(t, err)
	assert.Empty(t, got.Report.Issues)
}

func TestCache_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scenes.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Save(ctx, entry("a.csv", "h1", sampleRecords())))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Lookup(ctx, "a.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}
