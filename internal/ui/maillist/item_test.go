package maillist

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateSender(t *testing.T) {
	assert.Equal(t, "Alice", truncateSender("Alice", 24))

	long := strings.Repeat("a", 30)
	got := truncateSender(long, 24)
	assert.Equal(t, 24, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestTruncateSenderMultibyte(t *testing.T) {
	// Cutting on bytes would split a rune here; the result must stay
	// valid UTF-8.
	name := "Ólafur Ragnar Grímsson ÞÓ"
	got := truncateSender(name, 24)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 24, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "just now", relativeTime(now))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute)))
	assert.Equal(t, "1h ago", relativeTime(now.Add(-90*time.Minute)))
	assert.Equal(t, "2d ago", relativeTime(now.Add(-48*time.Hour)))
	assert.Equal(t, "1w ago", relativeTime(now.Add(-8*24*time.Hour)))
	assert.Equal(t, "", relativeTime(time.Time{}))
}
