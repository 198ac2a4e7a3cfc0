// Package pathengine implements the "expand" + "rectangulify" tree walk
// that evaluates a compiled pathcompiler.Schema against one entity
// Scanner, producing one Column per path name (spec.md 4.6).
package pathengine

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/pymala/internal/pathcompiler"
	"github.com/standardbeagle/pymala/internal/scanner"
)

// Column is one path's ordered value list for a single entity. Padded[i]
// marks a value produced by rectangulify's right-padding rather than a
// real match, so the table emitter can dedup it the same way the source
// relies on object identity for (spec.md 8, "Rectangulify identity").
type Column struct {
	Values []string
	Padded []bool
}

func newColumn(value string) *Column {
	return &Column{Values: []string{value}, Padded: []bool{false}}
}

// occurrence is one live match of a tag pattern: the raw tag text (for
// property lookups) and the extracted content Scanner (for further
// descent and collect()).
type occurrence struct {
	tagText string
	content *scanner.Scanner
}

// propsEntry caches one occurrence's parsed attributes together with
// their tag-declaration order, so a repeated property() lookup under the
// same tag neither re-parses nor loses ordering.
type propsEntry struct {
	order  []string
	values map[string]string
}

type propsCache map[uint64]propsEntry

// Evaluate walks schema.Root's children against entity, returning the
// final column map for every path name in the schema.
func Evaluate(schema *pathcompiler.Schema, entity *scanner.Scanner) (map[string]*Column, error) {
	cache := propsCache{}
	root := &occurrence{content: entity}
	return evalChildren(schema.Root.Children, root, cache)
}

// evalChildren evaluates every sibling PathNode under one live occurrence,
// rectangulifying the union of their resulting columns to a common length
// (spec.md 4.6 step 2).
func evalChildren(children []*pathcompiler.PathNode, parent *occurrence, cache propsCache) (map[string]*Column, error) {
	merged := map[string]*Column{}
	if len(children) == 0 {
		return merged, nil
	}

	type kv struct {
		name string
		col  *Column
	}
	var all []kv
	maxLen := 0
	for _, child := range children {
		childMap, err := evalNode(child, parent, cache)
		if err != nil {
			return nil, err
		}
		for name, col := range childMap {
			all = append(all, kv{name, col})
			if len(col.Values) > maxLen {
				maxLen = len(col.Values)
			}
		}
	}
	if maxLen == 0 {
		maxLen = 1
	}
	for _, e := range all {
		padColumn(e.col, maxLen)
		merged[e.name] = e.col
	}
	return merged, nil
}

// evalNode evaluates a single PathNode against one live parent occurrence
// (nil meaning a placeholder: no match was found upstream). For a branch
// node it repeatedly finds/browses every matching sub-extraction, then
// concatenates each occurrence's resulting columns.
func evalNode(node *pathcompiler.PathNode, parent *occurrence, cache propsCache) (map[string]*Column, error) {
	if node.Kind == pathcompiler.KindProperty {
		val := ""
		if parent != nil {
			v, err := propertyValue(parent, node.Property, cache)
			if err != nil {
				return nil, err
			}
			val = v
		}
		out := make(map[string]*Column, len(node.ColumnNames))
		for _, name := range node.ColumnNames {
			out[name] = newColumn(val)
		}
		return out, nil
	}

	var occs []*occurrence
	if parent == nil {
		occs = []*occurrence{nil}
	} else {
		clone := scanner.NewWindow(parent.content.Document(), parent.content.Begin(), parent.content.End())
		if err := clone.Tags(node.Tag); err != nil {
			return nil, err
		}
		for {
			var tagText string
			var ok bool
			if node.FindMode {
				tagText, ok = clone.Find()
			} else {
				tagText, ok = clone.Browse()
			}
			if !ok {
				break
			}
			child := clone.Extract(true)
			occs = append(occs, &occurrence{tagText: tagText, content: child})
		}
		if len(occs) == 0 {
			occs = []*occurrence{nil}
		}
	}

	var result map[string]*Column
	for i, occ := range occs {
		one, err := evalOccurrence(node, occ, cache)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = one
			continue
		}
		for name, col := range one {
			dst, ok := result[name]
			if !ok {
				dst = &Column{}
				result[name] = dst
			}
			dst.Values = append(dst.Values, col.Values...)
			dst.Padded = append(dst.Padded, col.Padded...)
		}
	}
	return result, nil
}

// evalOccurrence computes the rectangulified column map for a single
// occurrence of node: its own attached columns (the collect-joined text)
// merged with the recursively-evaluated columns of its children.
func evalOccurrence(node *pathcompiler.PathNode, occ *occurrence, cache propsCache) (map[string]*Column, error) {
	text := ""
	if occ != nil {
		parts, err := occ.content.Collect("")
		if err != nil {
			return nil, err
		}
		text = strings.Join(parts, ",")
	}

	own := make(map[string]*Column, len(node.ColumnNames))
	for _, name := range node.ColumnNames {
		own[name] = newColumn(text)
	}

	childMap, err := evalChildren(node.Children, occ, cache)
	if err != nil {
		return nil, err
	}

	maxLen := 1
	for _, c := range childMap {
		if len(c.Values) > maxLen {
			maxLen = len(c.Values)
		}
	}
	merged := make(map[string]*Column, len(own)+len(childMap))
	for name, c := range own {
		padColumn(c, maxLen)
		merged[name] = c
	}
	for name, c := range childMap {
		padColumn(c, maxLen)
		merged[name] = c
	}
	return merged, nil
}

// padColumn right-pads c to length, repeating its last value (or "" if
// empty) and marking the new entries Padded so the emitter can dedup them
// the way the source relies on value identity for.
func padColumn(c *Column, length int) {
	if len(c.Values) == 0 {
		c.Values = []string{""}
		c.Padded = []bool{false}
	}
	for len(c.Values) < length {
		c.Values = append(c.Values, c.Values[len(c.Values)-1])
		c.Padded = append(c.Padded, true)
	}
}

// propertyValue computes (and caches, keyed by the occurrence's tag
// identity) occ's attribute map, then joins the value of every attribute
// matching pattern with '|', visiting names in the tag's own declaration
// order and, for each name, taking the first alternative that matches it
// (spec.md 4.6 step 3; pymala.py's __properties walks properties.items()
// in that same declaration order, one break per matching name).
func propertyValue(occ *occurrence, pattern string, cache propsCache) (string, error) {
	key := cacheKey(occ)
	entry, ok := cache[key]
	if !ok {
		order, values := occ.content.PropertiesOrdered(occ.tagText)
		entry = propsEntry{order: order, values: values}
		cache[key] = entry
	}

	alts, err := scanner.CompilePropertyPattern(pattern)
	if err != nil {
		return "", err
	}

	var matched []string
	for _, name := range entry.order {
		for _, re := range alts {
			if re.MatchString(name) {
				matched = append(matched, entry.values[name])
				break
			}
		}
	}
	return strings.Join(matched, "|"), nil
}

// cacheKey hashes an occurrence's tag identity (document address + window)
// so repeated property leaves under the same tag share one parsed map.
func cacheKey(occ *occurrence) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%p:%d:%d", occ.content.Document(), occ.content.Begin(), occ.content.End()))
}
