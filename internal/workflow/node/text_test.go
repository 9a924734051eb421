package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "", TruncateByRunes("abc", 0))
	assert.Equal(t, "abc", TruncateByRunes("abc", 3))
	assert.Equal(t, "ab", TruncateByRunes("abc", 2))
	assert.Equal(t, "数学", TruncateByRunes("数学动画", 2))
}

func TestTailLines(t *testing.T) {
	text := "line1\nline2\nline3\n"
	assert.Equal(t, "line2\nline3", TailLines(text, 2))
	assert.Equal(t, "line1\nline2\nline3", TailLines(text, 10))
	assert.Equal(t, "", TailLines(text, 0))
}

func TestIsProviderError(t *testing.T) {
	assert.False(t, IsProviderError(nil))
	assert.True(t, IsProviderError(errString("request failed: 429 rate limit exceeded")))
	assert.True(t, IsProviderError(errString("dial tcp: connection refused")))
	assert.False(t, IsProviderError(errString("scene class not found")))
}

type errString string

func (e errString) Error() string { return string(e) }
