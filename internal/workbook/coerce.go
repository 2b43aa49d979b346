package workbook

import (
	"html"
	"strconv"
	"strings"
)

// Row one data row keyed by header name. Blank cells read as "".
type Row map[string]string

// Str returns the trimmed raw cell value. Use it for values that address
// devices or name files; they are never escaped.
func (r Row) Str(col string) string {
	return strings.TrimSpace(r[col])
}

// StrOr returns Str(col), or def when the cell is blank.
func (r Row) StrOr(col, def string) string {
	if v := r.Str(col); v != "" {
		return v
	}
	return def
}

// Text returns the cell HTML-escaped for display (& < > " ').
func (r Row) Text(col string) string {
	return html.EscapeString(r.Str(col))
}

// TextOr returns Text(col), or the escaped def when the cell is blank.
func (r Row) TextOr(col, def string) string {
	return html.EscapeString(r.StrOr(col, def))
}

// Num parses the cell as a number, falling back to def.
func (r Row) Num(col string, def float64) float64 {
	v := r.Str(col)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Int parses the cell as a number and truncates it, falling back to def.
func (r Row) Int(col string, def int) int {
	v := r.Str(col)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return int(f)
}

// Bool treats true, 1 and yes (any case) as true; anything else is false.
func (r Row) Bool(col string) bool {
	switch strings.ToLower(r.Str(col)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// clone copies the row for the raw echo.
func (r Row) clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
