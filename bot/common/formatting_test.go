package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{"zero", 0, "0 B"},
		{"below a KiB", 1023, "1023 B"},
		{"exactly a KiB", 1024, "1 KiB"},
		{"one and a half KiB", 1536, "1.5 KiB"},
		{"one MiB", 1 << 20, "1 MiB"},
		{"2.3 MiB", 2411725, "2.3 MiB"},
		{"one GiB", 1 << 30, "1 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 5))
	assert.Equal(t, "hell…", Truncate("hello world", 5))
	assert.Equal(t, "héll…", Truncate("héllo wörld", 5))
	assert.Equal(t, "h", Truncate("hello", 1))
}

func TestFormatDiscordTimestamp(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	assert.Equal(t, "<t:1700000000:R>", FormatDiscordTimestamp(ts, "R"))
}
