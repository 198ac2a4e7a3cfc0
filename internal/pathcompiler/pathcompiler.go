// Package pathcompiler parses a pymala schema script into an immutable
// PathNode tree plus an output Template (spec.md 4.5).
package pathcompiler

import (
	"strings"
	"unicode"

	pymalaerrors "github.com/standardbeagle/pymala/internal/errors"
)

// NodeKind distinguishes a tag branch from a property leaf.
type NodeKind int

const (
	KindBranch NodeKind = iota
	KindProperty
)

// PathNode is either a branch (tag like-pattern, children, terminating
// column names) or a property leaf (attribute like-pattern, terminating
// column names). Property leaves never have children. Built once by
// Compile and shared read-only across worker goroutines.
type PathNode struct {
	Kind        NodeKind
	Tag         string // branch
	Property    string // property leaf
	Children    []*PathNode
	ColumnNames []string

	// FindMode is true when this branch node must be located with find
	// (search at any depth) rather than browse (direct siblings only).
	// A "*" path element never becomes a node of its own; it sets
	// FindMode on the concrete tag immediately following it (spec.md
	// 4.5's "skip zero or more levels" rule).
	FindMode bool
}

// Schema is the immutable result of compiling a script: the merged path
// tree plus the output template.
type Schema struct {
	Root     *PathNode
	Template *Template
}

type pathDef struct {
	name     string
	tags     []string
	property string
	lineNo   int
}

// Compile parses schema script lines (as produced by splitting a script
// file on '\n') into a Schema. Lines are processed in order: "header:"
// sets the output template, blank lines and '#'-prefixed lines are
// ignored, lines containing '=' are path definitions (spec.md 4.5), and
// anything else (a CLI flag-override line) is left for the caller.
func Compile(lines []string) (*Schema, error) {
	var rootTags []string
	var defs []pathDef
	var headerLine string
	var headerLineNo int
	seen := map[string]bool{}

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rest, ok := cutPrefixFold(line, "header:"); ok {
			headerLine = strings.TrimSpace(rest)
			headerLineNo = lineNo
			continue
		}
		if !strings.Contains(line, "=") {
			continue // CLI flag-override line; not this package's concern
		}

		def, newRoot, isRoot, err := parsePathLine(line, lineNo, rootTags)
		if err != nil {
			return nil, err
		}
		if isRoot {
			rootTags = newRoot
			continue
		}
		if def.name == "" || !isIdentifier(def.name) {
			return nil, pymalaerrors.NewPathError(pymalaerrors.KindInvalidPathSyntax, line, lineNo)
		}
		if seen[def.name] {
			return nil, pymalaerrors.NewPathError(pymalaerrors.KindInvalidPathSyntax, line, lineNo)
		}
		seen[def.name] = true

		full := make([]string, 0, len(rootTags)+len(def.tags))
		full = append(full, rootTags...)
		full = append(full, def.tags...)
		def.tags = elideStarRuns(full)
		defs = append(defs, def)
	}

	root := buildTree(defs)

	tmpl, err := compileTemplate(headerLine, headerLineNo, defs)
	if err != nil {
		return nil, err
	}

	return &Schema{Root: root, Template: tmpl}, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// parsePathLine parses one path-definition line (spec.md 4.5 grammar).
func parsePathLine(line string, lineNo int, currentRoot []string) (def pathDef, newRoot []string, isRoot bool, err error) {
	eqIdx := strings.Index(line, "=")
	name := strings.TrimSpace(line[:eqIdx])
	rhs := strings.TrimSpace(line[eqIdx+1:])

	sep, propSep := ".", ":"
	if strings.ContainsAny(rhs, "<>") {
		sep, propSep = ">", "<"
	}

	if name == "" || rhs == "" || rhs == sep || rhs == propSep {
		if strings.Contains(rhs, propSep) && rhs != propSep {
			return pathDef{}, nil, false, pymalaerrors.NewPathError(pymalaerrors.KindInvalidPathSyntax, line, lineNo)
		}
		extends := strings.HasPrefix(rhs, sep)
		tags := splitTags(strings.TrimPrefix(rhs, sep), sep)
		if extends {
			merged := append(append([]string{}, currentRoot...), tags...)
			return pathDef{}, merged, true, nil
		}
		return pathDef{}, tags, true, nil
	}

	var tagsPart, property string
	if propIdx := strings.Index(rhs, propSep); propIdx != -1 {
		tagsPart = rhs[:propIdx]
		property = rhs[propIdx+len(propSep):]
	} else {
		tagsPart = rhs
	}

	tags := splitTags(tagsPart, sep)
	if len(tags) == 0 {
		return pathDef{}, nil, false, pymalaerrors.NewPathError(pymalaerrors.KindInvalidPathSyntax, line, lineNo)
	}

	return pathDef{name: name, tags: tags, property: property, lineNo: lineNo}, nil, false, nil
}

func splitTags(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// elideStarRuns collapses consecutive "*" tag patterns into a single "*".
func elideStarRuns(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "*" && len(out) > 0 && out[len(out)-1] == "*" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			return false
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}

// buildTree merges every path's tag sequence into a shared trie keyed by
// tag pattern text, attaching property leaves and column names at their
// terminating node (spec.md 4.6 step 1's "insert or reuse a child keyed
// by tag pattern"). A "*" element never becomes a node of its own: it
// marks the next concrete tag as find-mode ("skip zero or more levels",
// spec.md 4.5) rather than browse-mode.
func buildTree(defs []pathDef) *PathNode {
	root := &PathNode{Kind: KindBranch, Tag: ""}
	for _, def := range defs {
		node := root
		findPending := false
		for _, tag := range def.tags {
			if tag == "*" {
				findPending = true
				continue
			}
			node = insertChild(node, tag, findPending)
			findPending = false
		}
		if def.property != "" {
			node = insertPropertyChild(node, def.property)
		}
		node.ColumnNames = append(node.ColumnNames, def.name)
	}
	return root
}

func insertChild(parent *PathNode, tag string, findMode bool) *PathNode {
	for _, c := range parent.Children {
		if c.Kind == KindBranch && c.Tag == tag {
			if findMode {
				c.FindMode = true
			}
			return c
		}
	}
	child := &PathNode{Kind: KindBranch, Tag: tag, FindMode: findMode}
	parent.Children = append(parent.Children, child)
	return child
}

func insertPropertyChild(parent *PathNode, property string) *PathNode {
	for _, c := range parent.Children {
		if c.Kind == KindProperty && c.Property == property {
			return c
		}
	}
	child := &PathNode{Kind: KindProperty, Property: property}
	parent.Children = append(parent.Children, child)
	return child
}
