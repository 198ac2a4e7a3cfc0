// Package reader drives read jobs from a workqueue.Queue: it opens
// files, buffers bytes without splitting tags, and yields one complete
// entity per Next call as a new scanner.Scanner over that entity's
// substring (spec.md 4.3, 4.4).
package reader

import (
	"io"
	"os"

	"github.com/standardbeagle/pymala/internal/debug"
	pymalaerrors "github.com/standardbeagle/pymala/internal/errors"
	"github.com/standardbeagle/pymala/internal/scanner"
	"github.com/standardbeagle/pymala/internal/workqueue"
)

// Config configures a Reader's job seeding and per-file decoding.
type Config struct {
	Root            string // root tag like-pattern; "" means whole-file entities
	Encoding        string // passed through to Decode; default utf-8
	BufferSize      int    // tag-aware read slice size; default 131072
	CleanWhitespace bool   // run Scanner.Clean before handing back each entity
}

// DefaultBufferSize matches spec.md 4.4's default slice size.
const DefaultBufferSize = 131072

func (c Config) bufferSize() int {
	if c.BufferSize > 0 {
		return c.BufferSize
	}
	return DefaultBufferSize
}

// Reader pulls jobs from a shared workqueue.Queue and streams entities.
// Multiple Readers (one per worker) may share the same Queue; each owns
// its own file handle, buffer, and cursor.
type Reader struct {
	queue *workqueue.Queue
	cfg   Config

	file     *os.File
	path     string
	chunkEnd int64 // -1 = read to EOF
	absPos   int64 // absolute file offset of buf's logical end
	buf      []byte

	// Warnings accumulates non-fatal RootNotClosed markers for the caller
	// to inspect after a run (spec.md 7). UnbalancedExtract inside an
	// entity is only logged by the scanner, not recorded here.
	Warnings []*pymalaerrors.Warning
}

// New creates a Reader draining jobs from q.
func New(q *workqueue.Queue, cfg Config) *Reader {
	return &Reader{queue: q, cfg: cfg}
}

// Next returns the next whole entity as a Scanner. ok is false when the
// queue sentinel was observed (re-enqueued for peers) and no more
// entities remain for this Reader.
func (r *Reader) Next() (*scanner.Scanner, bool, error) {
	for {
		if r.file == nil {
			job, ok := r.queue.Pop()
			if !ok {
				return nil, false, nil
			}
			if workqueue.IsSentinel(job) {
				r.queue.PushSentinel()
				return nil, false, nil
			}
			if err := r.openJob(job); err != nil {
				return nil, false, err
			}
		}

		var (
			sc  *scanner.Scanner
			ok  bool
			err error
		)
		if r.cfg.Root == "" {
			sc, ok, err = r.wholeFileEntity()
		} else {
			sc, ok, err = r.rootedEntity()
		}
		if err != nil {
			r.closeFile()
			return nil, false, err
		}
		if !ok {
			r.closeFile()
			continue
		}
		if r.cfg.CleanWhitespace {
			sc = sc.Clean()
		}
		return sc, true, nil
	}
}

func (r *Reader) openJob(job workqueue.Job) error {
	f, err := os.Open(job.Path)
	if err != nil {
		return pymalaerrors.NewIOError(pymalaerrors.KindIOOpen, job.Path, job.Start, err)
	}
	if job.Start > 0 {
		if _, err := f.Seek(job.Start, io.SeekStart); err != nil {
			f.Close()
			return pymalaerrors.NewIOError(pymalaerrors.KindIOOpen, job.Path, job.Start, err)
		}
	}
	r.file = f
	r.path = job.Path
	r.chunkEnd = job.End
	r.absPos = job.Start
	r.buf = nil
	return nil
}

func (r *Reader) closeFile() {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	r.buf = nil
}

// wholeFileEntity reads the entire remaining window as a single entity
// (spec.md 4.3 step 2, no root configured).
func (r *Reader) wholeFileEntity() (*scanner.Scanner, bool, error) {
	var remaining int64 = -1
	if r.chunkEnd != -1 {
		remaining = r.chunkEnd - r.absPos
		if remaining <= 0 {
			return nil, false, nil
		}
	}

	var data []byte
	var err error
	if remaining == -1 {
		data, err = io.ReadAll(r.file)
	} else {
		data = make([]byte, remaining)
		_, err = io.ReadFull(r.file, data)
	}
	if err != nil && err != io.EOF {
		return nil, false, pymalaerrors.NewIOError(pymalaerrors.KindIORead, r.path, r.absPos, err)
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	decoded, err := Decode(data, r.cfg.Encoding)
	if err != nil {
		return nil, false, pymalaerrors.NewIOError(pymalaerrors.KindIOEncoding, r.path, r.absPos, err)
	}
	r.absPos += int64(len(data))
	return scanner.New(scanner.NewDocument(decoded)), true, nil
}

// rootedEntity implements spec.md 4.3 step 3: refill the working buffer
// via tag-aware reads, find the next root open tag, then balanced-extract
// its matching close, reading further buffers as needed.
func (r *Reader) rootedEntity() (*scanner.Scanner, bool, error) {
	openEnd, tagText, found, err := r.findRootTag()
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	name := scanner.TagName(tagText)
	if scanner.IsSelfClosing(tagText) {
		entity := r.consumeBuf(openEnd, openEnd)
		decoded, derr := Decode(entity, r.cfg.Encoding)
		if derr != nil {
			return nil, false, pymalaerrors.NewIOError(pymalaerrors.KindIOEncoding, r.path, r.absPos, derr)
		}
		return scanner.New(scanner.NewDocument(decoded)), true, nil
	}

	closeStart, closeEnd, closed, err := r.balancedWalk(name, openEnd)
	if err != nil {
		return nil, false, err
	}
	if !closed {
		r.Warnings = append(r.Warnings, pymalaerrors.NewWarning(
			pymalaerrors.KindRootNotClosed, r.path, r.absPos, "root tag never matched a closing tag before EOF"))
		debug.Warn("READER", r.path, r.absPos, "root tag %q never closed", name)
		entity := r.consumeBuf(openEnd, len(r.buf))
		decoded, derr := Decode(entity, r.cfg.Encoding)
		if derr != nil {
			return nil, false, pymalaerrors.NewIOError(pymalaerrors.KindIOEncoding, r.path, r.absPos, derr)
		}
		return scanner.New(scanner.NewDocument(decoded)), true, nil
	}

	entity := append([]byte(nil), r.buf[openEnd:closeStart]...)
	r.buf = append([]byte(nil), r.buf[closeEnd:]...)
	decoded, derr := Decode(entity, r.cfg.Encoding)
	if derr != nil {
		return nil, false, pymalaerrors.NewIOError(pymalaerrors.KindIOEncoding, r.path, r.absPos, derr)
	}
	return scanner.New(scanner.NewDocument(decoded)), true, nil
}

// consumeBuf extracts buf[start:end] and drops buf[:end], keeping any
// leftover bytes past end for the next call. Used by the self-closing and
// unclosed-root paths of rootedEntity.
func (r *Reader) consumeBuf(start, end int) []byte {
	entity := append([]byte(nil), r.buf[start:end]...)
	r.buf = append([]byte(nil), r.buf[end:]...)
	return entity
}

// findRootTag extends the buffer with tag-aware reads until the root
// pattern matches or the current chunk/file is exhausted.
func (r *Reader) findRootTag() (openEnd int, tagText string, found bool, err error) {
	for {
		sc := scanner.New(scanner.NewDocument(r.buf))
		if terr := sc.Tags(r.cfg.Root); terr != nil {
			return 0, "", false, terr
		}
		if tag, ok := sc.Find(); ok {
			return sc.Pos(), tag, true, nil
		}

		chunk, endOfChunk, rerr := r.tagAwareRead(true)
		if rerr != nil {
			return 0, "", false, rerr
		}
		if len(chunk) == 0 {
			if endOfChunk {
				return 0, "", false, nil
			}
			continue
		}
		r.buf = append(r.buf, chunk...)
	}
}

// balancedWalk scans forward from openEnd counting opens/closes of name
// until balance returns to zero, reading more of the file as needed and
// ignoring the job's nominal chunk end (an entity belongs to the chunk
// containing its opening tag, so closing it may cross that boundary).
func (r *Reader) balancedWalk(name string, from int) (closeStart, closeEnd int, found bool, err error) {
	openPat := name
	closePat := "/" + name
	balance := 1
	p := from

	for {
		for p < len(r.buf) {
			ltIdx := indexByte(r.buf, '<', p)
			if ltIdx == -1 {
				break
			}
			gtIdx := indexByte(r.buf, '>', ltIdx)
			if gtIdx == -1 {
				break
			}
			candidate := string(r.buf[ltIdx : gtIdx+1])
			cName := scanner.TagName(candidate)
			switch {
			case cName == closePat:
				balance--
				if balance == 0 {
					return ltIdx, gtIdx + 1, true, nil
				}
			case cName == openPat && !scanner.IsSelfClosing(candidate):
				balance++
			}
			p = gtIdx + 1
		}

		chunk, endOfChunk, rerr := r.tagAwareRead(false)
		if rerr != nil {
			return 0, 0, false, rerr
		}
		if len(chunk) == 0 && endOfChunk {
			return 0, len(r.buf), false, nil
		}
		r.buf = append(r.buf, chunk...)
	}
}

func indexByte(b []byte, c byte, from int) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// tagAwareRead implements spec.md 4.4: read up to bufferSize bytes, then
// extend one byte at a time until EOF, '<' (pushed back), '>' (included),
// or '\n' (included). When honorChunkEnd, the initial read is clamped to
// the job's chunk boundary and endOfChunk=true is returned once it is
// reached; the one-byte extension may still cross the boundary, but only
// up to the end of the tag or line already in progress. balancedWalk
// passes honorChunkEnd=false since closing an already-open entity may
// read past the nominal chunk end.
func (r *Reader) tagAwareRead(honorChunkEnd bool) (slice []byte, endOfChunk bool, err error) {
	size := r.cfg.bufferSize()
	if honorChunkEnd && r.chunkEnd != -1 {
		remaining := r.chunkEnd - r.absPos
		if remaining <= 0 {
			return nil, true, nil
		}
		if int64(size) > remaining {
			size = int(remaining)
		}
	}

	chunk := make([]byte, size)
	n, rerr := r.file.Read(chunk)
	if rerr != nil && rerr != io.EOF {
		return nil, false, pymalaerrors.NewIOError(pymalaerrors.KindIORead, r.path, r.absPos, rerr)
	}
	chunk = chunk[:n]
	r.absPos += int64(n)
	if n == 0 {
		return nil, true, nil
	}

	for {
		one := make([]byte, 1)
		nn, oerr := r.file.Read(one)
		if nn == 0 || oerr != nil {
			break
		}
		c := one[0]
		if c == '<' {
			r.file.Seek(-1, io.SeekCurrent)
			break
		}
		chunk = append(chunk, c)
		r.absPos++
		if c == '>' || c == '\n' {
			break
		}
	}
	return chunk, false, nil
}
