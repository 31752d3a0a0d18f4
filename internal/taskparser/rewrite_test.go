package taskparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-core/conductor-core/internal/models"
)

func TestSetMarkerFlipsOnlyTargetLine(t *testing.T) {
	src := []byte(
		"- [ ] TASK-001: first\n" +
			"- [ ] TASK-002: second\n",
	)
	out, err := SetMarker(src, 1, '~')
	require.NoError(t, err)
	assert.Equal(t, "- [~] TASK-001: first\n- [ ] TASK-002: second\n", string(out))
}

func TestApplyStatusRoundTripsThroughParse(t *testing.T) {
	src := []byte("- [ ] TASK-001: a task\n")
	out, err := ApplyStatus(src, 1, models.StatusComplete)
	require.NoError(t, err)

	tasks, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.StatusComplete, tasks[0].Status)
}

func TestSetMarkerOutOfRangeLineErrors(t *testing.T) {
	src := []byte("- [ ] TASK-001: only line\n")
	_, err := SetMarker(src, 5, 'x')
	require.Error(t, err)
}

func TestSetMarkerRejectsLineWithoutBracket(t *testing.T) {
	src := []byte("free-form text with no task marker\n")
	_, err := SetMarker(src, 1, 'x')
	require.Error(t, err)
}
