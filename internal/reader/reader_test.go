package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pymala/internal/workqueue"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReader_WholeFileNoRoot(t *testing.T) {
	path := writeTempFile(t, "<doc><name>Ada</name></doc>")
	q := workqueue.New(1)
	q.Push(workqueue.Job{Path: path, Start: 0, End: -1})
	q.PushSentinel()

	r := New(q, Config{})

	sc, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, sc.Tags("name"))
	tag, found := sc.Find()
	assert.True(t, found)
	assert.Equal(t, "<name>", tag)

	_, ok, err = r.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReader_MultiEntityWithRoot(t *testing.T) {
	path := writeTempFile(t, "<r><c><n>A</n></c><c><n>B</n></c></r>")
	q := workqueue.New(1)
	q.Push(workqueue.Job{Path: path, Start: 0, End: -1})
	q.PushSentinel()

	r := New(q, Config{Root: "c"})

	var entities []string
	for {
		sc, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		require.NoError(t, sc.Tags("n"))
		_, found := sc.Find()
		require.True(t, found)
		child := sc.Extract(true)
		content := child.Content()
		entities = append(entities, content)
	}
	assert.Equal(t, []string{"A", "B"}, entities)
}

func TestReader_RootNotClosed(t *testing.T) {
	path := writeTempFile(t, "<r><c><n>A</n>")
	q := workqueue.New(1)
	q.Push(workqueue.Job{Path: path, Start: 0, End: -1})
	q.PushSentinel()

	r := New(q, Config{Root: "c"})

	sc, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, sc)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0].Error(), "root_not_closed")
}

func TestDecode_UTF8Passthrough(t *testing.T) {
	out, err := Decode([]byte("hello"), "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestDecode_Latin1Widening(t *testing.T) {
	out, err := Decode([]byte{0xE9}, "latin-1") // 'é'
	require.NoError(t, err)
	assert.Equal(t, "é", string(out))
}

func TestDecode_UnsupportedEncoding(t *testing.T) {
	_, err := Decode([]byte("x"), "shift-jis")
	assert.Error(t, err)
}
