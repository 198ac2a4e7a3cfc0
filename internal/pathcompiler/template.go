package pathcompiler

import (
	"strconv"
	"strings"

	pymalaerrors "github.com/standardbeagle/pymala/internal/errors"
)

// Template is the compiled output row shape: an ordered list of fields,
// each assembled from literal text and/or column references (spec.md 4.5
// template grammar: `field := ([name '='] item(item)*)(',' field)*`).
type Template struct {
	Fields    []Field
	SingleRow bool // set when any item carries a '.N' positional pin
}

// Field is one output column: a name plus the literal/column items that
// are concatenated to produce its value for a given row.
type Field struct {
	Name  string
	Items []FieldItem
}

// FieldItem is either a quoted literal or a `['!']name['.'N]` reference
// into the path tree's column values. A `.N` pin is stored 0-based
// (RowOffset = N-1) so the emitter can add it directly to a group's
// start index; HasOffset distinguishes a pin on row 1 (RowOffset 0)
// from no pin at all.
type FieldItem struct {
	Literal    bool
	Text       string // when Literal
	Column     string // when !Literal
	HasOffset  bool
	RowOffset  int
	IsKey      bool
}

// compileTemplate parses a "header:" line into a Template. An empty
// headerLine (no header: line in the script) yields one field per path
// definition, in declaration order, each a single column item — the
// fallback pymala uses when a script only lists paths (spec.md 4.5).
func compileTemplate(headerLine string, lineNo int, defs []pathDef) (*Template, error) {
	names := map[string]bool{}
	for _, d := range defs {
		names[d.name] = true
	}

	if headerLine == "" {
		fields := make([]Field, 0, len(defs))
		for _, d := range defs {
			fields = append(fields, Field{
				Name:  d.name,
				Items: []FieldItem{{Literal: false, Column: d.name}},
			})
		}
		return &Template{Fields: fields}, nil
	}

	var fields []Field
	single := false
	for _, rawField := range strings.Split(headerLine, ",") {
		rawField = strings.TrimSpace(rawField)
		if rawField == "" {
			return nil, pymalaerrors.NewPathError(pymalaerrors.KindInvalidTemplateSyntax, headerLine, lineNo)
		}

		fieldName := ""
		body := rawField
		if eq := strings.Index(rawField, "="); eq != -1 {
			fieldName = strings.TrimSpace(rawField[:eq])
			body = strings.TrimSpace(rawField[eq+1:])
		}

		items, err := parseFieldItems(body, headerLine, lineNo, names)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.HasOffset {
				single = true
			}
		}

		if fieldName == "" {
			for _, it := range items {
				if !it.Literal {
					fieldName = it.Column
					break
				}
			}
		}
		if fieldName == "" {
			return nil, pymalaerrors.NewPathError(pymalaerrors.KindInvalidTemplateSyntax, headerLine, lineNo)
		}

		fields = append(fields, Field{Name: fieldName, Items: items})
	}

	if len(fields) == 0 {
		return nil, pymalaerrors.NewPathError(pymalaerrors.KindInvalidTemplateSyntax, headerLine, lineNo)
	}

	return &Template{Fields: fields, SingleRow: single}, nil
}

// parseFieldItems tokenizes `item(item)*` where item is a quoted literal
// or a possibly '!'-prefixed, possibly '.'N'-suffixed column reference.
func parseFieldItems(body, headerLine string, lineNo int, knownNames map[string]bool) ([]FieldItem, error) {
	var items []FieldItem
	i := 0
	for i < len(body) {
		if body[i] == ' ' || body[i] == '\t' {
			i++
			continue
		}
		if body[i] == '\'' || body[i] == '"' {
			quote := body[i]
			j := i + 1
			for j < len(body) && body[j] != quote {
				j++
			}
			if j >= len(body) {
				return nil, pymalaerrors.NewPathError(pymalaerrors.KindInvalidTemplateSyntax, headerLine, lineNo)
			}
			items = append(items, FieldItem{Literal: true, Text: body[i+1 : j]})
			i = j + 1
			continue
		}

		isKey := false
		if body[i] == '!' {
			isKey = true
			i++
		}
		j := i
		for j < len(body) && body[j] != ' ' && body[j] != '\t' && body[j] != '\'' && body[j] != '"' && body[j] != '!' {
			j++
		}
		token := body[i:j]
		if token == "" {
			return nil, pymalaerrors.NewPathError(pymalaerrors.KindInvalidTemplateSyntax, headerLine, lineNo)
		}
		i = j

		column := token
		hasOffset := false
		offset := 0
		if dot := strings.LastIndex(token, "."); dot != -1 {
			if n, err := strconv.Atoi(token[dot+1:]); err == nil && n >= 1 {
				column = token[:dot]
				hasOffset = true
				offset = n - 1 // ".N" is 1-based; store 0-based
			}
		}
		if !knownNames[column] {
			return nil, pymalaerrors.NewPathError(pymalaerrors.KindMissingHeaderField, headerLine, lineNo)
		}
		items = append(items, FieldItem{Column: column, HasOffset: hasOffset, RowOffset: offset, IsKey: isKey})
	}
	if len(items) == 0 {
		return nil, pymalaerrors.NewPathError(pymalaerrors.KindInvalidTemplateSyntax, headerLine, lineNo)
	}
	return items, nil
}
