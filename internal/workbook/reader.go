package workbook

import (
	"bytes"
	"fmt"
	"strings"

	"garage-layout/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Hard import caps. Limits may lower them, never raise them.
const (
	MaxSheetRows = 10000
	MaxDevices   = 50000
)

// Limits resource caps for one import.
type Limits struct {
	MaxSheetRows int
	MaxDevices   int
}

// DefaultLimits returns the hard caps.
func DefaultLimits() Limits {
	return Limits{MaxSheetRows: MaxSheetRows, MaxDevices: MaxDevices}
}

func (l Limits) normalized() Limits {
	if l.MaxSheetRows <= 0 || l.MaxSheetRows > MaxSheetRows {
		l.MaxSheetRows = MaxSheetRows
	}
	if l.MaxDevices <= 0 || l.MaxDevices > MaxDevices {
		l.MaxDevices = MaxDevices
	}
	return l
}

// RawData echoes every sheet for diagnostic display. Recognized sheets are
// always present in Sheets (empty when missing from the workbook).
type RawData struct {
	Sheets map[string][]Row `json:"sheets"`
	Others map[string][]Row `json:"others"`
}

// rows returns the rows of a recognized sheet.
func (r *RawData) rows(sheet string) []Row {
	return r.Sheets[sheet]
}

// readWorkbook parses the buffer and collects every sheet as header-keyed
// rows, enforcing the per-sheet row cap while streaming.
func readWorkbook(data []byte, limits Limits) (*RawData, []string, error) {
	if len(data) == 0 {
		return nil, nil, domain.BadInputf("empty workbook buffer")
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, domain.BadInputf("failed to parse workbook: %v", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	raw := &RawData{
		Sheets: make(map[string][]Row, len(RecognizedSheets)),
		Others: make(map[string][]Row),
	}
	for _, s := range RecognizedSheets {
		raw.Sheets[s] = []Row{}
	}

	for _, name := range names {
		rows, err := readSheet(f, name, limits.MaxSheetRows)
		if err != nil {
			return nil, nil, err
		}
		if isRecognized(name) {
			raw.Sheets[name] = rows
		} else {
			raw.Others[name] = rows
		}
	}
	return raw, names, nil
}

func readSheet(f *excelize.File, sheet string, maxRows int) ([]Row, error) {
	it, err := f.Rows(sheet)
	if err != nil {
		return nil, domain.BadInputf("failed to read sheet %s: %v", sheet, err)
	}
	defer it.Close()

	var header []string
	out := []Row{}
	for it.Next() {
		cols, err := it.Columns()
		if err != nil {
			return nil, domain.BadInputf("failed to read row in sheet %s: %v", sheet, err)
		}
		if header == nil {
			header = make([]string, len(cols))
			for i, c := range cols {
				header[i] = strings.TrimSpace(c)
			}
			continue
		}
		if blank(cols) {
			continue
		}
		if len(out) == maxRows {
			return nil, &domain.LimitError{Scope: fmt.Sprintf("sheet %s", sheet), Cap: maxRows, Observed: maxRows + 1}
		}
		row := make(Row, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if _, dup := row[h]; dup {
				continue
			}
			if i < len(cols) {
				row[h] = cols[i]
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)
	}
	if err := it.Error(); err != nil {
		return nil, domain.BadInputf("failed to iterate sheet %s: %v", sheet, err)
	}
	return out, nil
}

func blank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
