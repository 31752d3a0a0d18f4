// Package taskparser extracts Task records from tasks.md's line-oriented
// grammar (spec §4.2). Grounded on the teacher's
// internal/parser/markdown.go extractTasksLineByLine: that function also
// walks a goldmark AST first, then falls back to (and actually returns)
// a plain line-by-line regex scan because it is "more reliable for our
// use case" — this package follows that same real idiom, scanning lines
// with plain string operations and using goldmark only for the inline extraction of
// backticked file paths within a line, via its Segment.Value(source)
// pattern.
package taskparser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/conductor-core/conductor-core/internal/execerrors"
	"github.com/conductor-core/conductor-core/internal/models"
)

var inlineParser = goldmark.New()

// taskLinePrefix is the regular-expression form of the leading
// "- [ ] " / "- [~] " / "- [x] " of a task line. It is not compiled or
// used: parseTaskLine matches the prefix with string operations and
// passes the bracket content to ParseStatus, so malformed markers
// (anything but space/~/x) are rejected rather than silently matched.
const taskLinePrefix = `^-\s*\[(.)\]\s*`

var (
	constitutionPrefix = "**constitution**:"
)

// Parse extracts the ordered sequence of Task records from raw tasks.md
// content. Malformed or non-task lines are skipped silently (spec §4.2).
// Duplicate IDs are reported as execerrors.DuplicateTaskID; unresolved
// "after TASK-X"/"depends on TASK-X" references are NOT validated here —
// that is the Dependency Analyzer's job, which has the full task set.
func Parse(src []byte) ([]*models.Task, error) {
	lines := strings.Split(string(src), "\n")

	var tasks []*models.Task
	seen := make(map[string]int) // id -> source line, for duplicate reporting

	var current *models.Task

	for i, rawLine := range lines {
		lineNo := i + 1
		line := strings.TrimRight(rawLine, "\r")

		if task, ok := parseTaskLine(line, lineNo); ok {
			if prevLine, dup := seen[task.ID]; dup {
				return nil, execerrors.DuplicateTaskID(fmt.Sprintf("%s (first seen line %d, duplicated line %d)", task.ID, prevLine, lineNo))
			}
			seen[task.ID] = lineNo
			tasks = append(tasks, task)
			current = task
			continue
		}

		if current == nil {
			continue
		}
		if !isIndentedSubLine(line) {
			current = nil
			continue
		}
		applySubLine(current, strings.TrimSpace(line))
	}

	return tasks, nil
}

func parseTaskLine(line string, lineNo int) (*models.Task, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "-") {
		return nil, false
	}
	rest := strings.TrimSpace(trimmed[1:])
	if !strings.HasPrefix(rest, "[") {
		return nil, false
	}
	closeIdx := strings.Index(rest, "]")
	if closeIdx < 1 {
		return nil, false
	}
	markerStr := rest[1:closeIdx]
	if len(markerStr) != 1 {
		return nil, false
	}
	status, err := models.ParseStatus(markerStr[0])
	if err != nil {
		return nil, false
	}

	rest = strings.TrimSpace(rest[closeIdx+1:])
	colonIdx := strings.Index(rest, ":")
	if colonIdx < 0 {
		return nil, false
	}
	id := strings.TrimSpace(rest[:colonIdx])
	description := strings.TrimSpace(rest[colonIdx+1:])
	if id == "" || description == "" {
		return nil, false
	}

	task := &models.Task{
		ID:          id,
		Description: description,
		Status:      status,
		SourceLine:  lineNo,
	}
	task.FileLocks = extractFileLocks(description)
	task.Dependencies = extractDependencies(description)
	return task, true
}

// isIndentedSubLine reports whether line is a recognized continuation
// line for the task being accumulated: indented with at least one space
// or tab.
func isIndentedSubLine(line string) bool {
	if line == "" {
		return false
	}
	return line[0] == ' ' || line[0] == '\t'
}

func applySubLine(task *models.Task, trimmed string) {
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, constitutionPrefix) {
		rulesPart := strings.TrimSpace(trimmed[len(constitutionPrefix):])
		for _, rule := range strings.Split(rulesPart, ",") {
			rule = strings.TrimSpace(rule)
			if rule != "" {
				task.ConstitutionRules = append(task.ConstitutionRules, rule)
			}
		}
		return
	}

	for _, path := range extractFileLocks(trimmed) {
		if !task.HasFileLock(path) {
			task.FileLocks = append(task.FileLocks, path)
		}
	}
	for _, dep := range extractDependencies(trimmed) {
		if !task.DependsOnTask(dep) {
			task.Dependencies = append(task.Dependencies, dep)
		}
	}
}

// extractFileLocks walks a goldmark-parsed inline AST of line and
// collects every code span's literal text as a candidate file lock,
// mirroring the teacher's extractText Segment.Value(source) pattern.
func extractFileLocks(line string) []string {
	source := []byte(line)
	reader := text.NewReader(source)
	doc := inlineParser.Parser().Parse(reader)

	var paths []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if span, ok := n.(*ast.CodeSpan); ok {
			var buf bytes.Buffer
			for c := span.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					buf.Write(t.Segment.Value(source))
				}
			}
			if buf.Len() > 0 {
				paths = append(paths, buf.String())
			}
		}
		return ast.WalkContinue, nil
	})
	return paths
}

// extractDependencies finds "after TASK-X" / "depends on TASK-X"
// (case-insensitive) references in line.
func extractDependencies(line string) []string {
	lower := strings.ToLower(line)
	var deps []string
	for _, marker := range []string{"after ", "depends on "} {
		idx := 0
		for {
			pos := strings.Index(lower[idx:], marker)
			if pos < 0 {
				break
			}
			start := idx + pos + len(marker)
			idx = start
			id := scanIdentifier(line, start)
			if id != "" {
				deps = append(deps, id)
			}
		}
	}
	return deps
}

// scanIdentifier reads a task-ID-shaped token (letters, digits,
// underscore, hyphen) starting at byte offset start in line.
func scanIdentifier(line string, start int) string {
	if start >= len(line) {
		return ""
	}
	end := start
	for end < len(line) {
		c := line[end]
		isIDChar := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_'
		if !isIDChar {
			break
		}
		end++
	}
	id := line[start:end]
	if id == "" {
		return ""
	}
	// Trim leading/trailing hyphens and underscores, which the char class
	// accepts, so "TASK-001-" resolves to TASK-001.
	return strings.Trim(id, "-_")
}
