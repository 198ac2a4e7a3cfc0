package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/pymala/internal/config"
	"github.com/standardbeagle/pymala/internal/orchestrator"
	"github.com/standardbeagle/pymala/internal/pathcompiler"
	"github.com/standardbeagle/pymala/internal/reader"
	"github.com/standardbeagle/pymala/internal/version"
	"github.com/standardbeagle/pymala/internal/workqueue"
	"github.com/standardbeagle/pymala/pkg/globutil"
	"github.com/standardbeagle/pymala/pkg/pathutil"
)

func main() {
	app := &cli.App{
		Name:                   "pymala",
		Usage:                  "stream tag-scanning, path-compiling, table-emitting transform",
		Version:                version.Version,
		UseShortOptionHandling: true,
		ArgsUsage:              "<script-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"inp"},
				Usage:   "source file template (supports '*' and '?' in path)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"out"},
				Usage:   "destination file, or 'stdout'",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "root tag pattern for multi-entity files",
			},
			&cli.IntFlag{
				Name:  "chunk",
				Usage: "chunk size in MiB (0 disables chunking)",
			},
			&cli.IntFlag{
				Name:  "mp",
				Usage: "worker count (negative means cpu_count + value)",
			},
			&cli.StringFlag{
				Name:  "encoding",
				Usage: "source encoding passed to the decoder",
			},
			&cli.BoolFlag{
				Name:  "info",
				Usage: "emit statistics on completion",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pymala: %v\n", err)
		os.Exit(1)
	}
}

// scriptFlags is the flag set resolved from CLI args layered over
// script-file `<flag>: <value>` override lines (spec.md 6): a CLI flag
// the user actually set always wins.
type scriptFlags struct {
	input, output, root, encoding string
	chunk, mp                     int
	info                          bool
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: pymala <script-file> [options]", 1)
	}
	scriptPath := c.Args().First()
	scriptDir := filepath.Dir(scriptPath)

	raw, err := os.ReadFile(scriptPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading script: %v", err), 1)
	}
	lines := strings.Split(string(raw), "\n")

	flags := resolveScriptFlags(c, lines)

	schema, err := pathcompiler.Compile(lines)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	toolCfg, err := config.LoadKDL(scriptDir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if flags.input == "" {
		return cli.Exit("missing -input (no value on the CLI or in the script)", 1)
	}
	inputTemplate := pathutil.ToAbsolute(flags.input, scriptDir)
	files, err := globutil.Expand(inputTemplate)
	if err != nil {
		return cli.Exit(fmt.Sprintf("expanding -input: %v", err), 1)
	}
	if len(files) == 0 {
		return cli.Exit(fmt.Sprintf("no files matched -input %q", flags.input), 1)
	}

	chunkBytes := toolCfg.ChunkSize
	if flags.chunk > 0 {
		chunkBytes = int64(flags.chunk) * 1024 * 1024
	} else if c.IsSet("chunk") || hasScriptFlag(lines, "chunk") {
		chunkBytes = 0 // explicit chunk:0 disables chunking
	}
	if flags.root == "" {
		chunkBytes = 0 // without a root each file is one whole-file entity
	}

	var jobs []workqueue.Job
	for _, f := range files {
		size, serr := globutil.FileSize(f)
		if serr != nil {
			return cli.Exit(fmt.Sprintf("stat %s: %v", f, serr), 1)
		}
		for _, ch := range globutil.PlanChunks(size, chunkBytes) {
			jobs = append(jobs, workqueue.Job{Path: f, Start: ch.Start, End: ch.End})
		}
	}

	encoding := flags.encoding
	if encoding == "" {
		encoding = toolCfg.Encoding
	}
	readerCfg := reader.Config{
		Root:       flags.root,
		Encoding:   encoding,
		BufferSize: toolCfg.BufferSize,
	}

	workers := flags.mp
	if workers == 0 {
		workers = toolCfg.Workers
	}

	out, closeOut, err := openOutput(flags.output, scriptDir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeOut()

	stats, runErr := orchestrator.Run(jobs, schema, readerCfg, workers, out)
	if flags.info {
		fmt.Fprintln(os.Stderr, stats.String())
	}
	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}
	return nil
}

// resolveScriptFlags applies script-file flag-override lines on top of
// CLI-supplied values, skipping any flag the CLI already set.
func resolveScriptFlags(c *cli.Context, lines []string) scriptFlags {
	f := scriptFlags{
		input:    c.String("input"),
		output:   c.String("output"),
		root:     c.String("root"),
		encoding: c.String("encoding"),
		chunk:    c.Int("chunk"),
		mp:       c.Int("mp"),
		info:     c.Bool("info"),
	}

	for _, raw := range lines {
		name, value, ok := flagLine(raw)
		if !ok {
			continue
		}
		switch name {
		case "input", "inp":
			if !c.IsSet("input") {
				f.input = value
			}
		case "output", "out":
			if !c.IsSet("output") {
				f.output = value
			}
		case "root":
			if !c.IsSet("root") {
				f.root = value
			}
		case "encoding":
			if !c.IsSet("encoding") {
				f.encoding = value
			}
		case "chunk":
			if !c.IsSet("chunk") {
				if n, perr := strconv.Atoi(value); perr == nil {
					f.chunk = n
				}
			}
		case "mp":
			if !c.IsSet("mp") {
				if n, perr := strconv.Atoi(value); perr == nil {
					f.mp = n
				}
			}
		case "info":
			if !c.IsSet("info") {
				f.info = value == "" || value == "true" || value == "1"
			}
		}
	}
	return f
}

// flagLine recognizes one "<flag>: <value>" script line (spec.md 6),
// rejecting path-definition lines (which always contain '=' before any
// ':') and "header:" (handled by pathcompiler, not a runtime flag).
func flagLine(raw string) (name, value string, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	colon := strings.Index(line, ":")
	if colon == -1 {
		return "", "", false
	}
	head := line[:colon]
	if strings.Contains(head, "=") {
		return "", "", false
	}
	name = strings.ToLower(strings.TrimSpace(head))
	if name == "header" {
		return "", "", false
	}
	return name, strings.TrimSpace(line[colon+1:]), true
}

func hasScriptFlag(lines []string, flag string) bool {
	for _, raw := range lines {
		if name, _, ok := flagLine(raw); ok && name == flag {
			return true
		}
	}
	return false
}

func openOutput(output, scriptDir string) (io.Writer, func() error, error) {
	if output == "" || output == "stdout" {
		return os.Stdout, func() error { return nil }, nil
	}
	path := pathutil.ToAbsolute(output, scriptDir)
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating -output %s: %w", path, err)
	}
	return f, f.Close, nil
}
