package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanner(t *testing.T, src string) *Scanner {
	t.Helper()
	return New(NewDocument([]byte(src)))
}

func TestFind_Basic(t *testing.T) {
	s := newScanner(t, "<doc><name>Ada</name><age>30</age></doc>")
	require.NoError(t, s.Tags("name"))

	tag, ok := s.Find()
	require.True(t, ok)
	assert.Equal(t, "<name>", tag)
	assert.Equal(t, "<name>", s.Tag())

	_, ok = s.Find()
	assert.False(t, ok, "a second name tag does not exist")
}

func TestFind_FailureLeavesCursorUnchanged(t *testing.T) {
	s := newScanner(t, "<doc><age>30</age></doc>")
	require.NoError(t, s.Tags("name"))
	pos := s.Pos()

	_, ok := s.Find()
	assert.False(t, ok)
	assert.Equal(t, pos, s.Pos())
	assert.Equal(t, "", s.Tag())
}

func TestFind_Wildcard(t *testing.T) {
	s := newScanner(t, "<r><a>1</a><b>2</b></r>")
	require.NoError(t, s.Tags("*"))

	tag, ok := s.Find()
	require.True(t, ok)
	assert.Equal(t, "<r>", tag)
}

func TestFind_EarliestAcrossPrefixes(t *testing.T) {
	s := newScanner(t, "<r><b>2</b><a>1</a></r>")
	require.NoError(t, s.Tags("a|b"))

	tag, ok := s.Find()
	require.True(t, ok)
	assert.Equal(t, "<b>", tag)
}

func TestExtract_Closure(t *testing.T) {
	s := newScanner(t, "<doc><name>Ada</name></doc>")
	require.NoError(t, s.Tags("name"))
	_, ok := s.Find()
	require.True(t, ok)

	child := s.Extract(true)
	assert.Equal(t, "Ada", string(child.doc.bytes[child.begin:child.end]))
}

func TestExtract_SelfClosing(t *testing.T) {
	s := newScanner(t, `<x a="1" b="two"/>`)
	require.NoError(t, s.Tags("x"))
	_, ok := s.Find()
	require.True(t, ok)

	child := s.Extract(true)
	assert.Equal(t, 0, child.end-child.begin)
}

func TestExtract_NestedSameName(t *testing.T) {
	s := newScanner(t, "<item><item>inner</item>outer-tail</item>")
	require.NoError(t, s.Tags("item"))
	_, ok := s.Find()
	require.True(t, ok)

	child := s.Extract(true)
	want := "<item>inner</item>outer-tail"
	assert.Equal(t, want, string(child.doc.bytes[child.begin:child.end]))
}

func TestBrowse_SkipsNonMatchingSiblings(t *testing.T) {
	s := newScanner(t, "<r><skip><deep>x</deep></skip><keep>y</keep></r>")
	require.NoError(t, s.Tags("r"))
	_, ok := s.Find()
	require.True(t, ok)
	root := s.Extract(true)

	require.NoError(t, root.Tags("keep"))
	tag, ok := root.Browse()
	require.True(t, ok)
	assert.Equal(t, "<keep>", tag)
}

func TestNext_ReturnsAnyTag(t *testing.T) {
	s := newScanner(t, "<a/><b/>")
	tag, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, "<a/>", tag)

	tag, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, "<b/>", tag)

	_, ok = s.Next()
	assert.False(t, ok)
}

func TestContent(t *testing.T) {
	s := newScanner(t, "hello<tag>")
	assert.Equal(t, "hello", s.Content())
	assert.Equal(t, 0, s.Pos(), "Content must not advance pos")
}

func TestProperties(t *testing.T) {
	s := newScanner(t, `<x a="1" b="two" c='three'/>`)
	require.NoError(t, s.Tags("x"))
	_, ok := s.Find()
	require.True(t, ok)

	props := s.Properties("")
	assert.Equal(t, "1", props["a"])
	assert.Equal(t, "two", props["b"])
	assert.Equal(t, "three", props["c"])
}

func TestProperties_DuplicateNamesJoined(t *testing.T) {
	s := newScanner(t, `<x a="1" a="2"/>`)
	require.NoError(t, s.Tags("x"))
	_, ok := s.Find()
	require.True(t, ok)

	props := s.Properties("")
	assert.Equal(t, "1|2", props["a"])
}

func TestCollect_FlatContents(t *testing.T) {
	s := newScanner(t, "<p>one<br/>two<br/>three</p>")
	require.NoError(t, s.Tags("p"))
	_, ok := s.Find()
	require.True(t, ok)
	child := s.Extract(true)

	parts, err := child.Collect("")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, parts)
}

func TestCollect_Until(t *testing.T) {
	s := newScanner(t, "<p>one<stop />two</p>")
	require.NoError(t, s.Tags("p"))
	_, ok := s.Find()
	require.True(t, ok)
	child := s.Extract(true)

	parts, err := child.Collect("stop")
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, parts)
}

func TestSearch(t *testing.T) {
	s := newScanner(t, "<a>foo</a><b>bar-baz</b>")
	text, ok := s.Search("bar*")
	require.True(t, ok)
	assert.Equal(t, "bar-baz", text)
}

func TestTags_InvalidPattern(t *testing.T) {
	s := newScanner(t, "<a/>")
	err := s.Tags("foo<bar")
	assert.Error(t, err)
}

func TestClean_NormalizesWhitespace(t *testing.T) {
	s := newScanner(t, "<  a  >x<  /a  >")
	cleaned := s.Clean()
	assert.Equal(t, "<a>x</a>", string(cleaned.doc.bytes))
}
