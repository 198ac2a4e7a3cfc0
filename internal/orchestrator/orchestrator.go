// Package orchestrator fans a compiled Schema out across N worker
// goroutines pulling from a shared workqueue.Queue, collects their rows
// through a bounded output queue, and drives the single writer that
// serializes them to the sink (spec.md 5).
package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/pymala/internal/debug"
	"github.com/standardbeagle/pymala/internal/pathcompiler"
	"github.com/standardbeagle/pymala/internal/pathengine"
	"github.com/standardbeagle/pymala/internal/reader"
	"github.com/standardbeagle/pymala/internal/table"
	"github.com/standardbeagle/pymala/internal/workqueue"
)

// Stats mirrors the -info statistics line (spec.md 6): docs is the number
// of chunk jobs processed, pyml the number of entities evaluated, rows the
// number of emitted data rows, proc the worker count, clog the average
// output-queue occupancy percentage, and time the wall-clock run time.
type Stats struct {
	Docs int64
	Pyml int64
	Rows int64
	Proc int
	Clog float64
	Time time.Duration
}

// String renders Stats in the fixed "-info" line format (spec.md 6).
func (s Stats) String() string {
	return fmt.Sprintf("docs %d\npyml %d\nrows %d\nproc %d\nclog %.0f%%\ntime %.3fs",
		s.Docs, s.Pyml, s.Rows, s.Proc, s.Clog, s.Time.Seconds())
}

// ResolveWorkers turns the -mp flag's value into an actual worker count:
// positive is used as-is, non-positive means cpu_count + n, floored at 1
// (spec.md 5).
func ResolveWorkers(n int) int {
	if n > 0 {
		return n
	}
	total := runtime.NumCPU() + n
	if total < 1 {
		total = 1
	}
	return total
}

type rowBatch struct {
	rows []table.Row
}

type accumulator struct {
	pyml      int64
	rows      int64
	mu        sync.Mutex
	clogSum   float64
	clogCount int64
}

func (a *accumulator) recordClog(qlen, capacity int) {
	if capacity == 0 {
		return
	}
	a.mu.Lock()
	a.clogSum += float64(qlen) / float64(capacity)
	a.clogCount++
	a.mu.Unlock()
}

func (a *accumulator) clogPercent() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.clogCount == 0 {
		return 0
	}
	return a.clogSum / float64(a.clogCount) * 100
}

// Run seeds jobs onto a fresh WorkQueue, fans workers worth of Readers
// across it, and streams every row through a single writer to w. The
// returned error is the first fatal worker error, if any; partial output
// already flushed to w is retained (spec.md 5's cancellation policy).
func Run(jobs []workqueue.Job, schema *pathcompiler.Schema, cfg reader.Config, workers int, w io.Writer) (Stats, error) {
	start := time.Now()
	workers = ResolveWorkers(workers)

	queue := workqueue.New(len(jobs))
	for _, j := range jobs {
		queue.Push(j)
	}
	queue.PushSentinel()

	outCap := 4 * workers
	out := make(chan *rowBatch, outCap)
	acc := &accumulator{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return runWorker(gctx, queue, schema, cfg, out, outCap, acc)
		})
	}

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- runWriter(out, w, workers, table.Header(schema.Template))
	}()

	workErr := g.Wait()
	writeErr := <-writerDone

	stats := Stats{
		Docs: int64(len(jobs)),
		Pyml: atomic.LoadInt64(&acc.pyml),
		Rows: atomic.LoadInt64(&acc.rows),
		Proc: workers,
		Clog: acc.clogPercent(),
		Time: time.Since(start),
	}

	if workErr != nil {
		return stats, workErr
	}
	return stats, writeErr
}

// runWorker is one worker's loop: pull job -> stream entities -> evaluate
// -> emit rows -> push a row batch, exiting (and pushing its sentinel nil
// batch) once the Reader reports the queue drained or ctx is cancelled by
// a sibling's fatal error.
func runWorker(ctx context.Context, queue *workqueue.Queue, schema *pathcompiler.Schema, cfg reader.Config, out chan *rowBatch, outCap int, acc *accumulator) (err error) {
	rdr := reader.New(queue, cfg)
	defer func() { out <- nil }()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		entity, ok, rerr := rdr.Next()
		if rerr != nil {
			return rerr
		}
		if !ok {
			return nil
		}

		cols, everr := pathengine.Evaluate(schema, entity)
		if everr != nil {
			debug.LogOrchestrator("entity evaluation failed, row suppressed: %v", everr)
			continue
		}

		rows := table.Rows(schema.Template, cols)
		acc.recordClog(len(out), outCap)
		atomic.AddInt64(&acc.pyml, 1)
		atomic.AddInt64(&acc.rows, int64(len(rows)))
		out <- &rowBatch{rows: rows}
	}
}

// runWriter is the single consumer: it writes the header once, then every
// row from every worker, until it has observed one nil (per-worker
// sentinel) batch from each of n workers.
func runWriter(out chan *rowBatch, w io.Writer, n int, header []string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(header, "\t")); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	done := 0
	for done < n {
		batch := <-out
		if batch == nil {
			done++
			continue
		}
		for _, row := range batch.rows {
			if _, err := bw.WriteString(strings.Join(row, "\t")); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
