package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// colorScheme defines consistent colors for summary metrics.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	return fmt.Sprintf("%s: %s", scheme.label.Sprint(label), scheme.value.Sprintf("%v", value))
}

// formatWaveSummary renders a wave's outcome as a colorized one-liner:
// "wave 2: tasks: 3, completed: 2, failed: 1, duration: 1m12s"; the
// failed count is omitted when it is zero.
func formatWaveSummary(waveID, taskCount, completed, failed int, duration string) string {
	scheme := newColorScheme()
	parts := []string{
		formatColorizedMetric("tasks", taskCount, scheme),
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.label.Sprint("completed"), scheme.success.Sprintf("%d", completed)))
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.label.Sprint("failed"), scheme.fail.Sprintf("%d", failed)))
	} else {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.label.Sprint("completed"), scheme.success.Sprintf("%d", completed)))
	}
	parts = append(parts, formatColorizedMetric("duration", duration, scheme))
	return fmt.Sprintf("wave %d: %s", waveID, strings.Join(parts, ", "))
}
