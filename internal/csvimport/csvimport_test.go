package csvimport

import (
	"strings"
	"testing"

	"github.com/sawpanic/sentinel/internal/sentinelerr"
)

const header = "time,open,high,low,close,Volume\n"

func TestImportParsesValidRows(t *testing.T) {
	csv := header +
		"1700000000,100,101,99,100.5,10\n" +
		"1700000300,100.5,102,100,101.5,12\n"

	results, err := Import(strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("row %d: unexpected error %v", i, r.Err)
		}
	}
	if results[0].Bar.EpochStart != 1700000000 || results[0].Bar.Close != 100.5 {
		t.Fatalf("unexpected bar: %+v", results[0].Bar)
	}
}

func TestImportIgnoresExtraColumns(t *testing.T) {
	csv := "time,open,high,low,close,Volume,extra\n" +
		"1700000000,100,101,99,100.5,10,ignored\n"
	results, err := Import(strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestImportMissingColumnHeaderError(t *testing.T) {
	csv := "time,open,high,low,close\n1700000000,100,101,99,100.5\n"
	_, err := Import(strings.NewReader(csv), 0)
	if err == nil {
		t.Fatalf("expected error for missing Volume column")
	}
	se, ok := err.(*sentinelerr.Error)
	if !ok || se.Kind != sentinelerr.KindBadInput {
		t.Fatalf("expected KindBadInput, got %v", err)
	}
}

func TestImportInvalidOHLCVRowReportsRowError(t *testing.T) {
	csv := header +
		"1700000000,100,101,99,100.5,10\n" +
		"1700000300,100.5,90,100,101.5,12\n" // high < low violates invariant

	results, err := Import(strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("row 1 should be valid, got %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Fatalf("row 2 should fail the OHLCV invariant")
	}
	if results[1].Row != 2 {
		t.Fatalf("expected row number 2, got %d", results[1].Row)
	}
}

func TestImportNonNumericFieldReportsRowError(t *testing.T) {
	csv := header + "1700000000,abc,101,99,100.5,10\n"
	results, err := Import(strings.NewReader(csv), 0)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("expected a row-level parse error, got %+v", results)
	}
}

func TestImportEnforcesRowCap(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < 5; i++ {
		b.WriteString("1700000000,100,101,99,100.5,10\n")
	}
	results, err := Import(strings.NewReader(b.String()), 3)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected import to stop at cap+1 with a trailing oversize result, got %d rows", len(results))
	}
	last := results[len(results)-1]
	se, ok := last.Err.(*sentinelerr.Error)
	if !ok || se.Kind != sentinelerr.KindOversize {
		t.Fatalf("expected trailing KindOversize result, got %+v", last)
	}
}
