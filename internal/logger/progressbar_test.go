package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBarPercentage(t *testing.T) {
	pb := NewProgressBar(4, 10, false)
	pb.Update(1)
	assert.Equal(t, 25, pb.Percentage())
}

func TestProgressBarRenderShowsCounts(t *testing.T) {
	pb := NewProgressBar(4, 10, false)
	pb.Update(2)
	out := pb.Render()
	assert.True(t, strings.Contains(out, "2/4"))
	assert.True(t, strings.Contains(out, "50%"))
}

func TestProgressBarZeroTotalDoesNotDivideByZero(t *testing.T) {
	pb := NewProgressBar(0, 10, false)
	assert.Equal(t, 0, pb.Percentage())
	assert.NotPanics(t, func() { pb.Render() })
}
