package taskparser

import (
	"bytes"
	"fmt"

	"github.com/conductor-core/conductor-core/internal/models"
)

// SetMarker flips the status-bracket byte on src's 1-based sourceLine to
// marker, leaving every other byte untouched. This is the "bit-exact
// rewriter" SourceLine exists for: the Wave Executor must flip
// PENDING->CONSUMED->COMPLETE without reflowing the rest of tasks.md.
func SetMarker(src []byte, sourceLine int, marker byte) ([]byte, error) {
	lines := bytes.Split(src, []byte("\n"))
	idx := sourceLine - 1
	if idx < 0 || idx >= len(lines) {
		return nil, fmt.Errorf("source line %d out of range (file has %d lines)", sourceLine, len(lines))
	}

	line := lines[idx]
	bracketIdx := bytes.IndexByte(line, '[')
	if bracketIdx < 0 {
		return nil, fmt.Errorf("source line %d does not contain a status bracket: %q", sourceLine, line)
	}
	closeIdx := bytes.IndexByte(line[bracketIdx:], ']')
	if closeIdx != 2 {
		return nil, fmt.Errorf("source line %d status bracket is not a single character: %q", sourceLine, line)
	}

	rewritten := make([]byte, len(line))
	copy(rewritten, line)
	rewritten[bracketIdx+1] = marker
	lines[idx] = rewritten

	return bytes.Join(lines, []byte("\n")), nil
}

// ApplyStatus is SetMarker keyed by models.Status rather than a raw byte.
func ApplyStatus(src []byte, sourceLine int, status models.Status) ([]byte, error) {
	return SetMarker(src, sourceLine, status.Marker())
}
