// Package csvimport parses the CSV bar format of spec §6:
// `time,open,high,low,close,Volume` (header required, "Volume" capitalized
// by contract, additional columns ignored). Uses encoding/csv with an
// explicit result union per row rather than panicking on a bad row.
package csvimport

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sawpanic/sentinel/internal/model"
	"github.com/sawpanic/sentinel/internal/sentinelerr"
)

// Result is one parsed row's outcome: either a valid Bar or a parse error
// with the 1-indexed source row number (header excluded).
type Result struct {
	Row int
	Bar model.Bar
	Err error
}

// Import reads CSV from r and returns one Result per data row, in file
// order. Rows beyond maxRows trigger a single trailing E_Oversize Result
// and stop further reading.
func Import(r io.Reader, maxRows int) ([]Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // additional columns are ignored, not rejected

	header, err := cr.Read()
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.KindBadInput, err, "reading CSV header")
	}
	col, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var out []Result
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, sentinelerr.Wrap(sentinelerr.KindBadInput, err, "reading CSV row")
		}
		row++
		if maxRows > 0 && row > maxRows {
			out = append(out, Result{Row: row, Err: sentinelerr.Oversize(maxRows, row)})
			break
		}
		out = append(out, parseRow(row, rec, col))
	}
	return out, nil
}

type columns struct {
	time, open, high, low, close, volume int
}

func indexColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	required := map[string]*int{
		"time": nil, "open": nil, "high": nil, "low": nil, "close": nil, "Volume": nil,
	}
	var col columns
	for name := range required {
		i, ok := idx[name]
		if !ok {
			return columns{}, sentinelerr.BadInput("missing required CSV column: " + name)
		}
		switch name {
		case "time":
			col.time = i
		case "open":
			col.open = i
		case "high":
			col.high = i
		case "low":
			col.low = i
		case "close":
			col.close = i
		case "Volume":
			col.volume = i
		}
	}
	return col, nil
}

func parseRow(row int, rec []string, col columns) Result {
	epochSec, err := strconv.ParseInt(rec[col.time], 10, 64)
	if err != nil {
		return Result{Row: row, Err: sentinelerr.BadInput("invalid time column: " + rec[col.time])}
	}
	open, err1 := strconv.ParseFloat(rec[col.open], 64)
	high, err2 := strconv.ParseFloat(rec[col.high], 64)
	low, err3 := strconv.ParseFloat(rec[col.low], 64)
	close, err4 := strconv.ParseFloat(rec[col.close], 64)
	volume, err5 := strconv.ParseFloat(rec[col.volume], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return Result{Row: row, Err: sentinelerr.BadInput("non-numeric OHLCV field")}
	}

	bar := model.Bar{EpochStart: epochSec, Open: open, High: high, Low: low, Close: close, Volume: volume}
	if err := bar.Validate(); err != nil {
		return Result{Row: row, Err: sentinelerr.Wrap(sentinelerr.KindBadInput, err, "OHLCV invariant")}
	}
	return Result{Row: row, Bar: bar}
}
