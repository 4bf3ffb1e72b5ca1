package formatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "1,000", FormatNumber(1000))
	assert.Equal(t, "1,234,567", FormatNumber(1234567))
	assert.Equal(t, "-12,345", FormatNumber(-12345))
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "expired", FormatRemaining(0))
	assert.Equal(t, "expired", FormatRemaining(-time.Second))
	assert.Equal(t, "<1m left", FormatRemaining(30*time.Second))
	assert.Equal(t, "42m left", FormatRemaining(42*time.Minute+10*time.Second))
	assert.Equal(t, "1h left", FormatRemaining(time.Hour))
	assert.Equal(t, "1h5m left", FormatRemaining(65*time.Minute))
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", FormatAgo(now.Add(-10*time.Second), now))
	assert.Equal(t, "1m ago", FormatAgo(now.Add(-90*time.Second), now))
	assert.Equal(t, "2h ago", FormatAgo(now.Add(-2*time.Hour), now))
}
