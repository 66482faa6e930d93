// Package store locates on-disk candle archives, validates contiguous
// 1-minute coverage for the window a backtest needs, and reports gaps.
// Binance-klines monthly archive replay is modeled behind an injectable
// Fetcher so the HTTP/ZIP/CSV machinery stays test-doubleable.
package store

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fuxihub/fuxiquant-go/internal/candles/table"
)

// ErrMissingBars is returned when the requested window has gaps; Missing
// lists every absent minute timestamp (ms since epoch), per §6's "fatal
// with the list of missing timestamps."
type ErrMissingBars struct {
	Code    string
	Missing []int64
}

func (e *ErrMissingBars) Error() string {
	return fmt.Sprintf("store: %s missing %d bars in requested window", e.Code, len(e.Missing))
}

// Store locates and validates {data_dir}/bars/{CODE}.data archives.
type Store struct {
	DataDir string
}

// New returns a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{DataDir: dataDir}
}

func (s *Store) archivePath(code string) string {
	return filepath.Join(s.DataDir, "bars", code+".data")
}

// Load reads one contract's archive and validates it covers
// [start-H*minute, end) contiguously at 1-minute resolution, returning
// *ErrMissingBars (with the exact gap list) if it does not.
func (s *Store) Load(code string, startMs, endMs int64, historyMinutes int) (*table.Table, error) {
	path := s.archivePath(code)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	defer f.Close()

	tbl, err := decodeArchive(f)
	if err != nil {
		return nil, fmt.Errorf("store: decoding %s: %w", path, err)
	}

	windowStart := startMs - int64(historyMinutes)*60_000
	if err := validateContiguous(tbl, windowStart, endMs); err != nil {
		var missingErr *ErrMissingBars
		if ok := asErrMissingBars(err, &missingErr); ok {
			missingErr.Code = code
		}
		return nil, err
	}
	return tbl, nil
}

func asErrMissingBars(err error, target **ErrMissingBars) bool {
	if e, ok := err.(*ErrMissingBars); ok {
		*target = e
		return true
	}
	return false
}

// validateContiguous reports the exact list of missing minute timestamps
// in [from, to) that are not present in tbl.
func validateContiguous(tbl *table.Table, from, to int64) error {
	present := make(map[int64]bool, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		present[tbl.TimeAt(i)] = true
	}
	var missing []int64
	for ts := from; ts < to; ts += 60_000 {
		if !present[ts] {
			missing = append(missing, ts)
		}
	}
	if len(missing) > 0 {
		return &ErrMissingBars{Missing: missing}
	}
	return nil
}

// decodeArchive reads the columnar {CODE}.data file. The on-disk format is
// itself out of scope (the spec names only the schema, not the byte
// layout); this reads a simple fixed-schema CSV-flavored encoding as a
// concrete stand-in so the rest of the engine has a real file to load.
func decodeArchive(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 10
	tbl := table.New()
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, err
		}
		tbl.AppendRow(row.t, row.open, row.high, row.low, row.close, row.size, row.cash, row.trades, row.takerSize, row.takerCash)
	}
	return tbl, nil
}

type parsedRow struct {
	t                              int64
	open, high, low, close         decimal.Decimal
	size, cash                     decimal.Decimal
	trades                         int64
	takerSize, takerCash           decimal.Decimal
}

func parseRow(rec []string) (parsedRow, error) {
	var row parsedRow
	var err error
	if row.t, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return row, fmt.Errorf("time field: %w", err)
	}
	fields := []*decimal.Decimal{&row.open, &row.high, &row.low, &row.close, &row.size, &row.cash}
	for i, field := range fields {
		v, err := decimal.NewFromString(rec[i+1])
		if err != nil {
			return row, fmt.Errorf("field %d: %w", i+1, err)
		}
		*field = v
	}
	if row.trades, err = strconv.ParseInt(rec[7], 10, 64); err != nil {
		return row, fmt.Errorf("trades field: %w", err)
	}
	if row.takerSize, err = decimal.NewFromString(rec[8]); err != nil {
		return row, fmt.Errorf("taker_size field: %w", err)
	}
	if row.takerCash, err = decimal.NewFromString(rec[9]); err != nil {
		return row, fmt.Errorf("taker_cash field: %w", err)
	}
	return row, nil
}

// Fetcher downloads one monthly archive
// ({CODE}USDT-1m-YYYY-MM.zip, headerless Binance futures klines CSV) and
// returns its raw zip body; unpacking is ReplayZip's job. The default
// implementation, HTTPFetcher, is the concrete, in-scope half of ingestion (§1 explicitly scopes candle
// download/ingestion out, but the retrying HTTP client producing these
// archives is a wireable component — see internal/candles/store.HTTPFetcher
// in fetch.go).
type Fetcher interface {
	Fetch(code string, year int, month int) (io.ReadCloser, error)
}

// ReplayZip extracts the first CSV member of a monthly Binance klines
// archive into a Table, matching the headerless schema
// (open_time, open, high, low, close, volume, close_time, quote_volume,
// trades, taker_buy_base, taker_buy_quote, ignore).
func ReplayZip(r *zip.Reader) (*table.Table, error) {
	var csvFile *zip.File
	for _, f := range r.File {
		if filepath.Ext(f.Name) == ".csv" {
			csvFile = f
			break
		}
	}
	if csvFile == nil {
		return nil, fmt.Errorf("store: no CSV member found in archive")
	}
	rc, err := csvFile.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	tbl := table.New()
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 11 {
			return nil, fmt.Errorf("store: klines row has %d fields, want >= 11", len(rec))
		}
		openTime, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("open_time: %w", err)
		}
		open, _ := decimal.NewFromString(rec[1])
		high, _ := decimal.NewFromString(rec[2])
		low, _ := decimal.NewFromString(rec[3])
		close, _ := decimal.NewFromString(rec[4])
		size, _ := decimal.NewFromString(rec[5])
		cash, _ := decimal.NewFromString(rec[7])
		trades, _ := strconv.ParseInt(rec[8], 10, 64)
		takerSize, _ := decimal.NewFromString(rec[9])
		takerCash, _ := decimal.NewFromString(rec[10])
		tbl.AppendRow(openTime, open, high, low, close, size, cash, trades, takerSize, takerCash)
	}
	return tbl, nil
}
