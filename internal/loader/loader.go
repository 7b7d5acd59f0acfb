// =============================================================================
// COVID Scenes - Dataset Loader
// =============================================================================
//
// This module is the one suspension point of a session: it fetches the input
// table, types it and hands back a Dataset.
//
// LOADING PROCESS:
//   1. Open the source: http(s) URLs through net/http, anything else as a
//      local file
//   2. Hash the content; an unchanged source parsed with the same settings
//      is served from the cache, malformed-row report included
//   3. Split the content: .xlsx through xlsxio, everything else as
//      delimited text
//   4. Apply column aliases and value rules, if configured
//   5. Type the rows with the record parser
//   6. Save the result to the cache
//
// FAILURES:
//   A source that cannot be read yields a *FetchError. When a cache is
//   configured and holds an earlier copy of the source, that copy is
//   returned instead, marked Stale, with the FetchError attached. Copies
//   parsed under other settings (policy, date formats, delimiter, sheet,
//   transform rules) are never used.
//
// =============================================================================

package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/csvparser"
	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/store"
	"github.com/ginjaninja78/covid-scenes/internal/transform"
	"github.com/ginjaninja78/covid-scenes/internal/types"
	"github.com/ginjaninja78/covid-scenes/internal/xlsxio"
)

// =============================================================================
// ERRORS
// =============================================================================

// FetchError reports a source that could not be read.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// =============================================================================
// DATASET
// =============================================================================

// Dataset is a loaded, typed input table.
type Dataset struct {
	Source  string
	Hash    string
	Records []types.Record
	Report  records.Report

	// LoadedAt is when the content was fetched.
	LoadedAt time.Time

	// FromCache is set when the records came from the cache.
	FromCache bool

	// Stale is set when the source failed and a cached copy was used.
	// FetchErr then holds the failure.
	Stale    bool
	FetchErr *FetchError
}

// Empty reports whether the dataset holds no records.
func (d *Dataset) Empty() bool {
	return len(d.Records) == 0
}

// Cache stores parsed datasets by source.
type Cache interface {
	Lookup(ctx context.Context, source string) (store.Entry, bool, error)
	Save(ctx context.Context, entry store.Entry) error
}

// =============================================================================
// LOADER
// =============================================================================

// Options configures a Loader.
type Options struct {
	CSV     csvparser.Settings
	Parse   records.Options
	Timeout time.Duration

	// Sheet selects the workbook sheet for .xlsx sources; empty is the first.
	Sheet string

	// Transform, when set, renames columns and rewrites values before the
	// rows are typed.
	Transform *transform.Transformer
}

// Loader loads datasets.
type Loader struct {
	opts     Options
	settings string
	client   *http.Client
	cache    Cache
	logger   *zap.Logger
}

// New creates a Loader. cache may be nil.
func New(opts Options, cache Cache, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		opts:     opts,
		settings: settingsKey(opts),
		client:   &http.Client{Timeout: opts.Timeout},
		cache:    cache,
		logger:   logger.With(zap.String("component", "loader")),
	}
}

// WithHTTPClient replaces the HTTP client.
func (l *Loader) WithHTTPClient(c *http.Client) *Loader {
	l.client = c
	return l
}

// Open opens source for reading.
//
// PARAMETERS:
//   - ctx: Cancels a remote fetch.
//   - source: An http(s) URL or a local path.
//
// RETURNS:
//   - The content stream; the caller closes it.
//   - A *FetchError if the source cannot be opened.
func (l *Loader) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	if isRemote(source) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, &FetchError{Source: source, Err: err}
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, &FetchError{Source: source, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &FetchError{Source: source, Err: fmt.Errorf("unexpected status %s", resp.Status)}
		}
		return resp.Body, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	return f, nil
}

// Load fetches and parses source.
//
// RETURNS:
//   - The dataset. On records.ErrEmptyDataset the dataset is still returned.
//   - A *FetchError when the source failed and no cached copy exists, a
//     parse error, or records.ErrEmptyDataset.
func (l *Loader) Load(ctx context.Context, source string) (*Dataset, error) {
	start := time.Now()

	content, err := l.fetch(ctx, source)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			if ds, ok := l.fromCache(ctx, source, ""); ok {
				l.logger.Warn("source unavailable, using cached copy",
					zap.String("source", source), zap.Error(err))
				ds.Stale = true
				ds.FetchErr = fe
				return ds, nil
			}
		}
		return nil, err
	}

	hash := contentHash(content)
	if ds, ok := l.fromCache(ctx, source, hash); ok {
		l.logger.Debug("source unchanged, using cached records", zap.String("source", source))
		return ds, nil
	}

	table, err := l.split(source, content)
	if err != nil {
		return nil, err
	}
	if l.opts.Transform != nil {
		l.opts.Transform.Apply(table)
	}

	recs, report, err := records.Parse(table, l.opts.Parse)
	if err != nil && !errors.Is(err, records.ErrEmptyDataset) {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	ds := &Dataset{
		Source:   source,
		Hash:     hash,
		Records:  recs,
		Report:   report,
		LoadedAt: time.Now(),
	}

	l.logger.Info("dataset loaded",
		zap.String("source", source),
		zap.Int("rows", report.Rows),
		zap.Int("records", report.Accepted),
		zap.Int("skipped", report.Skipped()),
		zap.Int("zero_filled", report.ZeroFilled()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err != nil {
		return ds, err
	}

	if l.cache != nil {
		entry := store.Entry{
			Source:   source,
			Hash:     hash,
			Settings: l.settings,
			Records:  recs,
			Report:   report,
		}
		if cerr := l.cache.Save(ctx, entry); cerr != nil {
			l.logger.Warn("failed to cache dataset", zap.String("source", source), zap.Error(cerr))
		}
	}

	return ds, nil
}

// fetch reads the whole source.
func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	rc, err := l.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	return content, nil
}

// split turns raw content into a table by source type.
func (l *Loader) split(source string, content []byte) (*csvparser.Table, error) {
	if isWorkbook(source) {
		rows, err := xlsxio.ReadRows(bytes.NewReader(content), l.opts.Sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		table, err := csvparser.FromRows(rows, source)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		return table, nil
	}

	table, err := csvparser.Parse(bytes.NewReader(content), source, l.opts.CSV)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return table, nil
}

// fromCache returns the cached dataset for source. The copy must have been
// parsed with the loader's settings, and a non-empty hash must match it.
func (l *Loader) fromCache(ctx context.Context, source, hash string) (*Dataset, bool) {
	if l.cache == nil {
		return nil, false
	}
	entry, ok, err := l.cache.Lookup(ctx, source)
	if err != nil {
		l.logger.Warn("cache lookup failed", zap.String("source", source), zap.Error(err))
		return nil, false
	}
	if !ok || entry.Settings != l.settings || (hash != "" && entry.Hash != hash) {
		return nil, false
	}
	return &Dataset{
		Source:    source,
		Hash:      entry.Hash,
		Records:   entry.Records,
		Report:    entry.Report,
		LoadedAt:  entry.FetchedAt,
		FromCache: true,
	}, true
}

// settingsKey fingerprints every option that changes the records or the
// report produced from the same content.
func settingsKey(opts Options) string {
	policy := opts.Parse.Policy
	if policy == "" {
		policy = records.PolicyZeroFill
	}

	h := sha256.New()
	fmt.Fprintf(h, "policy=%s\nformats=%q\ndelimiter=%q\ncomment=%q\nsheet=%q\n",
		policy, opts.Parse.DateFormats, opts.CSV.Delimiter, opts.CSV.Comment, opts.Sheet)
	if opts.Transform != nil {
		fmt.Fprintf(h, "transform=%s", opts.Transform.Fingerprint())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func isWorkbook(source string) bool {
	p := source
	if u, err := url.Parse(source); err == nil && isRemote(source) {
		p = u.Path
	}
	return strings.EqualFold(path.Ext(p), ".xlsx")
}
