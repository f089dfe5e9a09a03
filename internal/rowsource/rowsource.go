// Package rowsource turns uploaded spreadsheets into header-keyed rows.
package rowsource

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row maps a column header to the raw cell text.
type Row map[string]string

// Get returns the first non-empty value among the given column names.
func (r Row) Get(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r[n]); v != "" {
			return v
		}
	}
	return ""
}

// Record is a row together with the 1-based line (or sheet row) it came from.
type Record struct {
	Line int
	Row  Row
}

// ErrUnsupported is returned for file types other than CSV and XLSX.
var ErrUnsupported = errors.New("unsupported file type")

// Read picks a reader from the file extension of name.
func Read(name string, data []byte) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(bytes.NewReader(data))
	case ".xlsx", ".xlsm":
		return ReadXLSX(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
}

// ReadCSV reads a CSV whose first record is the header. Line numbers are
// where each record starts, so empty lines and quoted newlines are accounted for.
func ReadCSV(r io.Reader) ([]Record, error) {
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	var records [][]string
	var lines []int
	for {
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := csvr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return toRecords(records, lines), nil
}

// ReadXLSX reads the first worksheet of a workbook. Its first row is the header.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	// GetRows keeps empty rows in place, so the index is the sheet row
	lines := make([]int, len(records))
	for i := range lines {
		lines[i] = i + 1
	}
	return toRecords(records, lines), nil
}

func toRecords(records [][]string, lines []int) []Record {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	out := make([]Record, 0, len(records)-1)
	for n, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(Row, len(header))
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			row[h] = rec[i]
		}
		out = append(out, Record{Line: lines[n+1], Row: row})
	}
	return out
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
