package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/store"
	"github.com/ginjaninja78/covid-scenes/internal/transform"
	"github.com/ginjaninja78/covid-scenes/internal/types"
	"github.com/ginjaninja78/covid-scenes/internal/xlsxio"
)

const sample = "date,state,fips,cases,deaths\n" +
	"2020-01-01,NY,36,10,1\n" +
	"2020-01-02,NY,36,5,0\n" +
	"2020-01-01,CA,06,3,0\n"

func TestLoad_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "us-states.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	ds, err := New(Options{}, nil, zap.NewNop()).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)
	assert.False(t, ds.FromCache)
	assert.Len(t, ds.Hash, 64)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := New(Options{}, nil, nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/us-states.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	l := New(Options{Timeout: 5 * time.Second}, nil, nil)

	ds, err := l.Load(context.Background(), srv.URL+"/us-states.csv")
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)

	_, err = l.Load(context.Background(), srv.URL+"/missing.csv")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "404")
}

func TestLoad_CacheFallbackAndReuse(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	cache, err := store.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	l := New(Options{}, cache, zap.NewNop())
	ctx := context.Background()
	source := srv.URL + "/us-states.csv"

	first, err := l.Load(ctx, source)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	again, err := l.Load(ctx, source)
	require.NoError(t, err)
	assert.True(t, again.FromCache, "unchanged content is served from cache")
	assert.False(t, again.Stale)
	assert.Equal(t, first.Records, again.Records)

	healthy.Store(false)
	stale, err := l.Load(ctx, source)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	require.NotNil(t, stale.FetchErr)
	assert.Equal(t, first.Records, stale.Records)
}

func TestLoad_Workbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, xlsxio.WriteAggregates(f, xlsxio.Export{
		Records: []types.Record{
			{State: "NY", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Cases: 10, Deaths: 1},
		},
	}))
	require.NoError(t, f.Close())

	ds, err := New(Options{}, nil, nil).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "NY", ds.Records[0].State)
}

func TestLoad_EmptyDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("state,date,cases,deaths\n"), 0644))

	ds, err := New(Options{}, nil, nil).Load(context.Background(), path)
	assert.ErrorIs(t, err, records.ErrEmptyDataset)
	require.NotNil(t, ds)
	assert.True(t, ds.Empty())
}

func TestLoad_Reject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("state,date,cases,deaths\nNY,2020-01-01,x,0\n"), 0644))

	l := New(Options{Parse: records.Options{Policy: records.PolicyReject}}, nil, nil)
	_, err := l.Load(context.Background(), path)
	var mre *records.MalformedRecordError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, 2, mre.Row)
}

func TestIsWorkbook(t *testing.T) {
	assert.True(t, isWorkbook("data/US.XLSX"))
	assert.True(t, isWorkbook("https://example.com/a/b.xlsx?raw=1"))
	assert.False(t, isWorkbook("https://example.com/us-states.csv"))
}

func TestLoad_Transform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jhu.csv")
	content := "Province_State,Last_Update,Confirmed,Deaths\n" +
		"New York,2020-04-12,\"188,694\",9385\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tr, err := transform.New(transform.Rules{
		ColumnAliases: map[string]string{"province_state": "state", "last_update": "date", "confirmed": "cases"},
		Fields: []transform.FieldRule{
			{Field: "state", Actions: []transform.Action{{Type: transform.ActionLookup, LookupTable: map[string]string{"New York": "NY"}}}},
			{Field: "cases", Actions: []transform.Action{{Type: transform.ActionReplace, Find: ","}}},
		},
	})
	require.NoError(t, err)

	ds, err := New(Options{Transform: tr}, nil, nil).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "NY", ds.Records[0].State)
	assert.Equal(t, int64(188694), ds.Records[0].Cases)
	assert.Empty(t, ds.Report.Issues)
}

const malformed = "date,state,cases,deaths\n" +
	"2020-01-01,NY,abc,1\n" +
	"2020-01-02,NY,5,0\n"

func TestLoad_CacheHitKeepsReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte(malformed), 0644))

	cache, err := store.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	l := New(Options{}, cache, nil)
	ctx := context.Background()

	first, err := l.Load(ctx, path)
	require.NoError(t, err)
	require.False(t, first.FromCache)
	require.Equal(t, 1, first.Report.ZeroFilled())

	again, err := l.Load(ctx, path)
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, first.Report, again.Report)
	assert.Equal(t, 1, again.Report.ZeroFilled())
	assert.Equal(t, "cases", again.Report.Issues[0].Err.Field)
}

func TestLoad_CacheIgnoresOtherSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte(malformed), 0644))

	cache, err := store.Open(":memory:")
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	_, err = New(Options{}, cache, nil).Load(ctx, path)
	require.NoError(t, err)

	_, err = New(Options{Parse: records.Options{Policy: records.PolicyReject}}, cache, nil).Load(ctx, path)
	var mre *records.MalformedRecordError
	require.ErrorAs(t, err, &mre, "reject applies even though the content is cached")
	assert.Equal(t, 2, mre.Row)

	skipped, err := New(Options{Parse: records.Options{Policy: records.PolicySkip}}, cache, nil).Load(ctx, path)
	require.NoError(t, err)
	assert.False(t, skipped.FromCache)
	assert.Len(t, skipped.Records, 1)
	assert.Equal(t, 1, skipped.Report.Skipped())

	// A cached copy typed under other settings is no fallback either.
	require.NoError(t, os.Remove(path))
	_, err = New(Options{}, cache, nil).Load(ctx, path)
	var fe *FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestSettingsKey(t *testing.T) {
	base := settingsKey(Options{})
	assert.Equal(t, base, settingsKey(Options{Parse: records.Options{Policy: records.PolicyZeroFill}}))
	assert.NotEqual(t, base, settingsKey(Options{Parse: records.Options{Policy: records.PolicyReject}}))
	assert.NotEqual(t, base, settingsKey(Options{Parse: records.Options{DateFormats: []string{"01/02/2006"}}}))
	assert.NotEqual(t, base, settingsKey(Options{Sheet: "Data"}))

	tr, err := transform.New(transform.Rules{ColumnAliases: map[string]string{"confirmed": "cases"}})
	require.NoError(t, err)
	assert.NotEqual(t, base, settingsKey(Options{Transform: tr}))
}
