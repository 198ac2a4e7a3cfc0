// Package scanner implements the tolerant, non-validating tag-level walk
// over a single in-memory byte window (spec 4.1/4.2): find, browse, next,
// extract, content, collect, properties and search, plus the like-pattern
// compiler that backs tags()/find()/browse().
package scanner

import (
	"strings"

	"github.com/standardbeagle/pymala/internal/debug"
)

// Document is the immutable byte buffer a Scanner and its children borrow
// from. Exactly one Document exists per entity; it is never mutated after
// construction.
type Document struct {
	bytes []byte
}

// NewDocument wraps raw bytes (already decoded to the configured encoding)
// as a Document.
func NewDocument(b []byte) *Document {
	return &Document{bytes: b}
}

// Scanner is a cursor (begin, pos, end) over a Document, plus the last
// matched tag and its compiled like-pattern. Child scanners produced by
// Extract share the parent's Document and never copy its bytes.
type Scanner struct {
	doc   *Document
	begin int
	pos   int
	end   int
	tag   string
	like  *LikeSet
}

// New creates a root Scanner over the whole Document.
func New(doc *Document) *Scanner {
	return &Scanner{doc: doc, begin: 0, pos: 0, end: len(doc.bytes)}
}

// NewWindow creates a Scanner over doc[begin:end].
func NewWindow(doc *Document, begin, end int) *Scanner {
	return &Scanner{doc: doc, begin: begin, pos: begin, end: end}
}

// Pos returns the current cursor position, one past the '>' of the last
// successful match.
func (s *Scanner) Pos() int { return s.pos }

// Begin returns the window's start offset.
func (s *Scanner) Begin() int { return s.begin }

// End returns the window's end offset.
func (s *Scanner) End() int { return s.end }

// Tag returns the last matched tag text, or "" if none matched yet.
func (s *Scanner) Tag() string { return s.tag }

// Document returns the underlying Document, shared with any parent/child.
func (s *Scanner) Document() *Document { return s.doc }

// Clean returns a new Scanner over a whitespace-normalized copy of the
// current window: tabs collapse to single spaces and whitespace around
// every '<'/'>' is trimmed. Grounded on Pymala.clean in the original
// source; used optionally by Reader when ReaderConfig.CleanWhitespace is
// set.
func (s *Scanner) Clean() *Scanner {
	raw := string(s.doc.bytes[s.begin:s.end])
	raw = strings.ReplaceAll(raw, "\t", " ")
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '<':
			for b.Len() > 0 && b.String()[b.Len()-1] == ' ' {
				trimTrailingSpace(&b)
			}
			b.WriteByte('<')
			for i+1 < len(raw) && raw[i+1] == ' ' {
				i++
			}
		case '>':
			for b.Len() > 0 && b.String()[b.Len()-1] == ' ' {
				trimTrailingSpace(&b)
			}
			b.WriteByte('>')
			for i+1 < len(raw) && raw[i+1] == ' ' {
				i++
			}
		default:
			b.WriteByte(raw[i])
		}
	}
	doc := NewDocument([]byte(b.String()))
	return New(doc)
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	b.Reset()
	b.WriteString(s[:len(s)-1])
}

// Tags compiles like and caches it on the Scanner. Idempotent when like
// equals the already-cached pattern.
func (s *Scanner) Tags(like string) error {
	if s.like != nil && s.like.raw == like {
		return nil
	}
	set, err := CompileLike(like)
	if err != nil {
		return err
	}
	s.like = set
	return nil
}

// Find advances pos to the next tag (anywhere, any depth) matching any
// compiled alternative. On success it sets tag and returns it; on failure
// pos and tag are left unchanged and it returns ("", false).
func (s *Scanner) Find() (string, bool) {
	if s.like == nil {
		return "", false
	}
	bestStart, bestEnd := -1, -1
	var bestTag string
	for _, alt := range s.like.alts {
		start, end, tag, ok := s.searchAlt(alt, s.pos)
		if ok && (bestStart == -1 || start < bestStart) {
			bestStart, bestEnd, bestTag = start, end, tag
		}
	}
	if bestStart == -1 {
		return "", false
	}
	s.pos = bestEnd
	s.tag = bestTag
	return bestTag, true
}

// searchAlt finds the earliest occurrence at or after from of a tag
// matching alt, skipping candidates that fail the anchored regex.
func (s *Scanner) searchAlt(alt tagAlt, from int) (start, end int, tag string, ok bool) {
	needle := "<" + alt.prefix
	cursor := from
	for cursor < s.end {
		rel := strings.Index(string(s.doc.bytes[cursor:s.end]), needle)
		if rel == -1 {
			return 0, 0, "", false
		}
		openIdx := cursor + rel
		closeIdx := indexByte(s.doc.bytes, '>', openIdx, s.end)
		if closeIdx == -1 {
			return 0, 0, "", false
		}
		candidate := string(s.doc.bytes[openIdx : closeIdx+1])
		if alt.re.MatchString(candidate) {
			return openIdx, closeIdx + 1, candidate, true
		}
		cursor = openIdx + 1
	}
	return 0, 0, "", false
}

// Browse is like Find but walks tag-by-tag, skipping past the closing
// partner of any non-matching tag (skipSubtree) so the scan stays at the
// current structural level.
func (s *Scanner) Browse() (string, bool) {
	if s.like == nil {
		return "", false
	}
	origPos, origTag := s.pos, s.tag
	for {
		tagText, ok := s.rawNext()
		if !ok {
			s.pos, s.tag = origPos, origTag
			return "", false
		}
		if s.matches(tagText) {
			s.tag = tagText
			return tagText, true
		}
		s.tag = tagText
		s.skipSubtree(tagText)
	}
}

func (s *Scanner) matches(tagText string) bool {
	for _, alt := range s.like.alts {
		if alt.re.MatchString(tagText) {
			return true
		}
	}
	return false
}

// Next returns the very next tag regardless of pattern, advancing pos
// past it. Empty if none remains.
func (s *Scanner) Next() (string, bool) {
	tag, ok := s.rawNext()
	if !ok {
		return "", false
	}
	s.tag = tag
	return tag, true
}

// rawNext scans the next "<...>" span without checking it against any
// pattern.
func (s *Scanner) rawNext() (string, bool) {
	ltIdx := indexByte(s.doc.bytes, '<', s.pos, s.end)
	if ltIdx == -1 {
		return "", false
	}
	gtIdx := indexByte(s.doc.bytes, '>', ltIdx, s.end)
	if gtIdx == -1 {
		return "", false
	}
	tag := string(s.doc.bytes[ltIdx : gtIdx+1])
	s.pos = gtIdx + 1
	return tag, true
}

func indexByte(b []byte, c byte, from, to int) int {
	for i := from; i < to && i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// isSelfClosing reports whether tagText needs no matching close: "/>",
// "?>", or a leading "<?" (spec 4.2; per spec 9 open question ii, any
// tag starting with "<?" is treated as self-closing).
func isSelfClosing(tagText string) bool {
	if strings.HasPrefix(tagText, "<?") {
		return true
	}
	if strings.HasSuffix(tagText, "/>") || strings.HasSuffix(tagText, "?>") {
		return true
	}
	return false
}

// TagName extracts the first word of a tag, stripping the leading '<' and
// keeping a leading '/' ("</foo>" -> "/foo"). Exported so Reader's balanced-extraction walk
// over a raw growing buffer can reuse the exact same naming rule Scanner
// uses internally.
func TagName(tagText string) string { return tagName(tagText) }

// IsSelfClosing reports whether tagText needs no matching close tag.
// Exported for the same reason as TagName.
func IsSelfClosing(tagText string) bool { return isSelfClosing(tagText) }

// tagName extracts the first word of a tag, stripping the leading '<'. A
// leading '/' is kept, so a close tag's name is its open tag's name with
// '/' prefixed, as closingPartner produces.
func tagName(tagText string) string {
	body := strings.TrimPrefix(tagText, "<")
	start := 0
	if strings.HasPrefix(body, "/") {
		start = 1
	}
	for i := start; i < len(body); i++ {
		c := body[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '>' || c == '/' {
			return body[:i]
		}
	}
	return body
}

// closingPartner toggles the leading '/' of a tag's name: "foo" <-> "/foo".
func closingPartner(name string) string {
	if strings.HasPrefix(name, "/") {
		return strings.TrimPrefix(name, "/")
	}
	return "/" + name
}

// Extract returns a child Scanner whose window spans from the current pos
// to the start of the matching close tag. Self-closing tags yield an
// empty child window. If progress, the parent pos advances past the
// matching close tag's '>' so a subsequent find/browse on the parent sees
// the next sibling, not the close tag just consumed (spec 4.2, 8:
// extraction closure).
func (s *Scanner) Extract(progress bool) *Scanner {
	if s.tag == "" {
		return NewWindow(s.doc, s.pos, s.pos)
	}
	if isSelfClosing(s.tag) {
		return NewWindow(s.doc, s.pos, s.pos)
	}

	name := tagName(s.tag)
	closeStart := s.balancedClose(name, s.pos)
	child := NewWindow(s.doc, s.pos, closeStart)
	if progress {
		if gtIdx := indexByte(s.doc.bytes, '>', closeStart, s.end); gtIdx != -1 {
			s.pos = gtIdx + 1
		} else {
			s.pos = s.end
		}
	}
	return child
}

// balancedClose walks forward from from counting opens/closes of name
// until balance returns to zero, returning the start offset ('<') of the
// matching close tag. If the close is never found, it returns s.end and
// logs a non-fatal UnbalancedExtract warning (spec 7).
func (s *Scanner) balancedClose(name string, from int) int {
	open := name
	close := closingPartner(name)
	balance := 1
	p := from
	for p < s.end {
		ltIdx := indexByte(s.doc.bytes, '<', p, s.end)
		if ltIdx == -1 {
			break
		}
		gtIdx := indexByte(s.doc.bytes, '>', ltIdx, s.end)
		if gtIdx == -1 {
			break
		}
		candidate := string(s.doc.bytes[ltIdx : gtIdx+1])
		candidateName := tagName(candidate)
		switch {
		case candidateName == close:
			balance--
			if balance == 0 {
				return ltIdx
			}
		case candidateName == open && !isSelfClosing(candidate):
			balance++
		}
		p = gtIdx + 1
	}
	debug.Warn("SCAN", "", int64(from), "unbalanced extract for tag %q", open)
	return s.end
}

// skipSubtree moves pos past tagText's closing partner without exposing a
// child Scanner, used by Browse to jump over non-matching siblings.
func (s *Scanner) skipSubtree(tagText string) {
	if isSelfClosing(tagText) {
		return
	}
	name := tagName(tagText)
	s.pos = s.balancedClose(name, s.pos)
	// move past the close tag itself so Browse's next rawNext doesn't
	// immediately re-see it.
	if gtIdx := indexByte(s.doc.bytes, '>', s.pos, s.end); gtIdx != -1 {
		s.pos = gtIdx + 1
	}
}

// Content returns the substring from pos up to the next '<' (or window
// end); it does not advance pos.
func (s *Scanner) Content() string {
	ltIdx := indexByte(s.doc.bytes, '<', s.pos, s.end)
	if ltIdx == -1 {
		return string(s.doc.bytes[s.pos:s.end])
	}
	return string(s.doc.bytes[s.pos:ltIdx])
}

// Collect concatenates contents between tags until the window ends or (if
// until is non-empty) a tag matching until is seen. When until is empty
// and tag is set and pos > begin, it delegates to Extract(true).Collect()
// (spec 4.2, spec 9 open question iii).
func (s *Scanner) Collect(until string) ([]string, error) {
	if until == "" && s.tag != "" && s.pos > s.begin {
		child := s.Extract(true)
		return child.Collect("")
	}

	var untilSet *LikeSet
	if until != "" {
		set, err := CompileLike(until)
		if err != nil {
			return nil, err
		}
		untilSet = set
	}

	var out []string
	p := s.pos
	for p < s.end {
		ltIdx := indexByte(s.doc.bytes, '<', p, s.end)
		var text string
		if ltIdx == -1 {
			text = string(s.doc.bytes[p:s.end])
			p = s.end
		} else {
			text = string(s.doc.bytes[p:ltIdx])
			p = ltIdx
		}
		if text != "" {
			out = append(out, text)
		}
		if p >= s.end {
			break
		}
		gtIdx := indexByte(s.doc.bytes, '>', p, s.end)
		if gtIdx == -1 {
			break
		}
		candidate := string(s.doc.bytes[p : gtIdx+1])
		if untilSet != nil && matchesSet(untilSet, candidate) {
			break
		}
		p = gtIdx + 1
	}
	return out, nil
}

func matchesSet(set *LikeSet, candidate string) bool {
	for _, alt := range set.alts {
		if alt.re.MatchString(candidate) {
			return true
		}
	}
	return false
}

// Search advances through contents (not tags) seeking one whose text
// matches any alternative of like; on success pos advances past the
// matched content.
func (s *Scanner) Search(like string) (string, bool) {
	alts, err := compileContentGlob(like)
	if err != nil {
		return "", false
	}
	p := s.pos
	for p < s.end {
		ltIdx := indexByte(s.doc.bytes, '<', p, s.end)
		end := ltIdx
		if end == -1 {
			end = s.end
		}
		text := string(s.doc.bytes[p:end])
		for _, re := range alts {
			if re.MatchString(text) {
				s.pos = end
				return text, true
			}
		}
		if ltIdx == -1 {
			break
		}
		gtIdx := indexByte(s.doc.bytes, '>', ltIdx, s.end)
		if gtIdx == -1 {
			break
		}
		p = gtIdx + 1
	}
	return "", false
}
