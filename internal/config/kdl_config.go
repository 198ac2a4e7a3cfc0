// Package config loads the optional .pymala.kdl sidecar that tunes runtime
// defaults (chunk size, buffer size, worker count, encoding) without
// touching the schema script itself. The schema script stays the single
// source of truth for tag/path/template definitions; this file only
// covers ambient tool behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// ToolConfig holds runtime defaults that a .pymala.kdl file may override.
type ToolConfig struct {
	ChunkSize   int64  // bytes per Reader chunk
	BufferSize  int    // read buffer size in bytes
	Workers     int    // default worker count for -mp when unspecified
	Encoding    string // default source encoding
	OutputQueue int    // parsed from output_queue; not read by the orchestrator, whose queue holds 4*workers batches
}

func defaultToolConfig() *ToolConfig {
	return &ToolConfig{
		ChunkSize:   10 * 1024 * 1024,
		BufferSize:  64 * 1024,
		Workers:     4,
		Encoding:    "utf-8",
		OutputQueue: 256,
	}
}

// LoadKDL looks for .pymala.kdl next to the schema script in scriptDir and
// parses it. It returns defaultToolConfig with no error when the file does
// not exist.
func LoadKDL(scriptDir string) (*ToolConfig, error) {
	kdlPath := filepath.Join(scriptDir, ".pymala.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return defaultToolConfig(), nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .pymala.kdl: %w", err)
	}

	return parseKDL(string(content))
}

func parseKDL(content string) (*ToolConfig, error) {
	cfg := defaultToolConfig()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse .pymala.kdl: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "chunk_size":
			if s, ok := firstStringArg(n); ok {
				if sz, err := parseSize(s); err == nil {
					cfg.ChunkSize = sz
				}
			} else if v, ok := firstIntArg(n); ok {
				cfg.ChunkSize = int64(v)
			}
		case "buffer_size":
			if s, ok := firstStringArg(n); ok {
				if sz, err := parseSize(s); err == nil {
					cfg.BufferSize = int(sz)
				}
			} else if v, ok := firstIntArg(n); ok {
				cfg.BufferSize = v
			}
		case "workers":
			if v, ok := firstIntArg(n); ok {
				cfg.Workers = v
			}
		case "encoding":
			if s, ok := firstStringArg(n); ok {
				cfg.Encoding = s
			}
		case "output_queue":
			if v, ok := firstIntArg(n); ok {
				cfg.OutputQueue = v
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

// parseSize handles size strings like "10MB", "500KB", "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
