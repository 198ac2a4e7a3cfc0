// Package table turns a path engine's column lists into header and data
// rows per a compiled output template (spec.md 4.7).
package table

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/pymala/internal/pathcompiler"
	"github.com/standardbeagle/pymala/internal/pathengine"
)

// Row is one emitted data row, in template field order.
type Row []string

// Header returns the output header, one name per field. Conflicting
// explicit names are disambiguated by suffixing "_N" (spec.md 4.7).
func Header(tmpl *pathcompiler.Template) []string {
	reserved := make(map[string]bool, len(tmpl.Fields))
	out := make([]string, len(tmpl.Fields))
	counter := 1
	for i, f := range tmpl.Fields {
		name := f.Name
		for reserved[name] {
			name = fmt.Sprintf("%s_%d", f.Name, counter)
			counter++
		}
		reserved[name] = true
		out[i] = name
	}
	return out
}

// Rows enumerates and emits every surviving row for one entity's column
// map under tmpl: one row per index in plain mode, or one row per key
// group when tmpl.SingleRow (spec.md 4.7 row enumeration).
func Rows(tmpl *pathcompiler.Template, cols map[string]*pathengine.Column) []Row {
	length := columnLength(cols)
	groups := rowGroups(tmpl, cols, length)

	totalKeys := countKeyFields(tmpl)
	anyNonKey := hasNonKeyColumnItem(tmpl)

	var rows []Row
	for _, g := range groups {
		row, keycnt, datacnt := emitRow(tmpl, cols, g.start, g.end)
		if keycnt != totalKeys {
			continue
		}
		if anyNonKey && datacnt < 1 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func columnLength(cols map[string]*pathengine.Column) int {
	for _, c := range cols {
		return len(c.Values)
	}
	return 1
}

type rowGroup struct{ start, end int }

// rowGroups splits [0,length) into single-index rows, or (in single-row
// mode) into key-group rows that start at 0 and at every index where any
// key column's raw value differs from the prior index.
func rowGroups(tmpl *pathcompiler.Template, cols map[string]*pathengine.Column, length int) []rowGroup {
	if !tmpl.SingleRow {
		groups := make([]rowGroup, length)
		for i := 0; i < length; i++ {
			groups[i] = rowGroup{i, i + 1}
		}
		return groups
	}

	keyCols := keyColumnNames(tmpl)
	starts := []int{0}
	for i := 1; i < length; i++ {
		diff := false
		for _, name := range keyCols {
			col := cols[name]
			if col == nil || i >= len(col.Values) {
				continue
			}
			if col.Values[i] != col.Values[i-1] {
				diff = true
				break
			}
		}
		if diff {
			starts = append(starts, i)
		}
	}

	groups := make([]rowGroup, len(starts))
	for idx, s := range starts {
		end := length
		if idx+1 < len(starts) {
			end = starts[idx+1]
		}
		groups[idx] = rowGroup{s, end}
	}
	return groups
}

func keyColumnNames(tmpl *pathcompiler.Template) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range tmpl.Fields {
		for _, it := range f.Items {
			if it.IsKey && !it.Literal && !seen[it.Column] {
				seen[it.Column] = true
				out = append(out, it.Column)
			}
		}
	}
	return out
}

func countKeyFields(tmpl *pathcompiler.Template) int {
	n := 0
	for _, f := range tmpl.Fields {
		for _, it := range f.Items {
			if it.IsKey {
				n++
				break
			}
		}
	}
	return n
}

func hasNonKeyColumnItem(tmpl *pathcompiler.Template) bool {
	for _, f := range tmpl.Fields {
		for _, it := range f.Items {
			if !it.Literal && !it.IsKey {
				return true
			}
		}
	}
	return false
}

// emitRow renders one row over [start,end), also returning the count of
// non-empty key fields and non-empty non-key fields for the suppression
// rules in Rows.
func emitRow(tmpl *pathcompiler.Template, cols map[string]*pathengine.Column, start, end int) (Row, int, int) {
	row := make(Row, len(tmpl.Fields))
	keycnt, datacnt := 0, 0

	for fi, f := range tmpl.Fields {
		var b strings.Builder
		hasColumnItem := false
		allColumnItemsEmpty := true
		fieldIsKey := false

		for _, it := range f.Items {
			if it.Literal {
				b.WriteString(it.Text)
				continue
			}
			hasColumnItem = true
			if it.IsKey {
				fieldIsKey = true
			}
			val := columnItemValue(cols, it, start, end)
			if val != "" {
				allColumnItemsEmpty = false
			}
			b.WriteString(val)
		}

		value := b.String()
		if hasColumnItem && allColumnItemsEmpty {
			value = ""
		}
		row[fi] = value

		if fieldIsKey {
			if value != "" {
				keycnt++
			}
		} else if hasColumnItem && value != "" {
			datacnt++
		}
	}
	return row, keycnt, datacnt
}

// columnItemValue resolves one column reference to its escaped text, or
// "" when out of range or (for a positional pin) a padded duplicate of
// the prior index (spec.md 4.7's dedup rule).
func columnItemValue(cols map[string]*pathengine.Column, it pathcompiler.FieldItem, start, end int) string {
	col := cols[it.Column]
	if col == nil {
		return ""
	}
	k := start
	if it.HasOffset {
		k = start + it.RowOffset
	}
	if k < 0 || k >= end || k >= len(col.Values) {
		return ""
	}
	if it.HasOffset && k > 0 && col.Padded[k] {
		return ""
	}
	return escape(col.Values[k])
}

// escape strips boundary whitespace first, then applies the fixed
// tab/newline escaping and entity decoding rule (spec.md 4.7), idempotent
// on already-escaped input (spec.md 8). Stripping before escaping matters:
// pretty-printed markup like "<age>\n  30\n</age>" must collapse to "30",
// not "\n  30\n" with its boundary newlines turned into literal "\n" text
// (pymala.py's strip() runs before its replace chain).
func escape(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\t", "\\t")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&lt;", "<")
	return s
}
