package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedIdentical(t *testing.T) {
	content := []byte("COMM test\nNCY 20\n")
	assert.Empty(t, Unified(content, content, "a", "b"))
	assert.False(t, Count(content, content).Changed())
}

func TestUnifiedReplacedLine(t *testing.T) {
	before := []byte("COMM test\n  1.0000  0.00\nEND\n")
	after := []byte("COMM test\n  1.0000  11.00\nEND\n")

	out := Unified(before, after, "template.pcr", "step_001_scale.pcr")
	require.NotEmpty(t, out)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Equal(t, "--- template.pcr", lines[0])
	assert.Equal(t, "+++ step_001_scale.pcr", lines[1])
	assert.Equal(t, "@@ -1,3 +1,3 @@", lines[2])
	assert.Contains(t, lines, " COMM test")
	assert.Contains(t, lines, "-  1.0000  0.00")
	assert.Contains(t, lines, "+  1.0000  11.00")
	assert.Contains(t, lines, " END")

	assert.Equal(t, Stats{Added: 1, Removed: 1}, Count(before, after))
}

func TestUnifiedAddedAndRemovedLines(t *testing.T) {
	before := []byte("a\nb\nc\n")
	after := []byte("a\nc\nd\ne\n")

	out := Unified(before, after, "x", "y")
	assert.Contains(t, out, "-b\n")
	assert.Contains(t, out, "+d\n")
	assert.Contains(t, out, "+e\n")
	assert.Equal(t, Stats{Added: 2, Removed: 1}, Count(before, after))
}

func TestUnifiedNoTrailingNewline(t *testing.T) {
	out := Unified([]byte("a\nb"), []byte("a\nc"), "x", "y")
	assert.Contains(t, out, "-b\n")
	assert.Contains(t, out, "+c\n")
}

func TestUnifiedTruncates(t *testing.T) {
	var before, after strings.Builder
	for i := 0; i < maxDiffLines; i++ {
		fmt.Fprintf(&before, "old %d\n", i)
		fmt.Fprintf(&after, "new %d\n", i)
	}

	out := Unified([]byte(before.String()), []byte(after.String()), "x", "y")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, maxDiffLines+1)
	assert.Equal(t, truncateMessage, lines[len(lines)-1])
}
