package orchestrator

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/pymala/internal/pathcompiler"
	"github.com/standardbeagle/pymala/internal/reader"
	"github.com/standardbeagle/pymala/internal/workqueue"
)

// TestMain checks that Run leaves no worker or writer goroutine running
// past its own return, across every test in this package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestResolveWorkers(t *testing.T) {
	assert.Equal(t, 3, ResolveWorkers(3))

	cpu := ResolveWorkers(0)
	assert.GreaterOrEqual(t, cpu, 1)

	floored := ResolveWorkers(-1000000)
	assert.Equal(t, 1, floored)
}

func TestStats_StringFormat(t *testing.T) {
	s := Stats{Docs: 2, Pyml: 5, Rows: 9, Proc: 4, Clog: 37.5}
	s.Time = 0

	lines := strings.Split(s.String(), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "docs 2", lines[0])
	assert.Equal(t, "pyml 5", lines[1])
	assert.Equal(t, "rows 9", lines[2])
	assert.Equal(t, "proc 4", lines[3])
	assert.Equal(t, "clog 38%", lines[4])
	assert.Equal(t, "time 0.000s", lines[5])
}

func TestRun_SingleFileWholeEntity(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/doc.xml"
	content := "<p><n>A</n><v>1</v><v>2</v></p><p><n>B</n></p>"
	writeFile(t, path, content)

	schema, err := pathcompiler.Compile([]string{
		"header: !n, v",
		"n=*.p.n",
		"v=*.p.v",
	})
	require.NoError(t, err)

	jobs := []workqueue.Job{{Path: path, Start: 0, End: -1}}

	var buf bytes.Buffer
	stats, err := Run(jobs, schema, reader.Config{}, 2, &buf)
	require.NoError(t, err)

	assert.EqualValues(t, 1, stats.Docs)
	assert.EqualValues(t, 2, stats.Proc)
	assert.EqualValues(t, 1, stats.Pyml)
	assert.EqualValues(t, 2, stats.Rows)

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "n\tv", lines[0])
	assert.ElementsMatch(t, []string{"A\t1", "A\t2"}, lines[1:])
}

func TestRun_NoJobsStillWritesHeader(t *testing.T) {
	schema, err := pathcompiler.Compile([]string{
		"header: n",
		"n=*.name",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := Run(nil, schema, reader.Config{}, 1, &buf)
	require.NoError(t, err)

	assert.EqualValues(t, 0, stats.Docs)
	assert.Equal(t, "n\n", buf.String())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
