package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, words []string, mode Mode) *Filter {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	f, err := NewFilter(words, mode, log)
	require.NoError(t, err)
	return f
}

func TestFilter_ReplaceMode(t *testing.T) {
	f := newTestFilter(t, []string{"foo", "badger", "x"}, ModeReplace)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Single match masked first+stars+last",
			input:    "this is foo",
			expected: "this is f*o",
			words:    []string{"foo"},
		},
		{
			name:     "Every occurrence masked, not just the first",
			input:    "foo foo foo",
			expected: "f*o f*o f*o",
			words:    []string{"foo"},
		},
		{
			name:     "Case-insensitive match keeps original casing at the edges",
			input:    "FOO and Badger",
			expected: "F*O and B****r",
			words:    []string{"foo", "badger"},
		},
		{
			name:     "Whole word only, substrings survive",
			input:    "food is not foo",
			expected: "food is not f*o",
			words:    []string{"foo"},
		},
		{
			name:     "Single-character word becomes a single star",
			input:    "x marks the spot",
			expected: "* marks the spot",
			words:    []string{"x"},
		},
		{
			name:     "Word adjacent to punctuation still matches",
			input:    "well, foo!",
			expected: "well, f*o!",
			words:    []string{"foo"},
		},
		{
			name:     "Nothing to censor",
			input:    "perfectly clean",
			expected: "perfectly clean",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			verdict := f.Apply(tt.input)
			req.False(verdict.Blocked)
			req.Empty(verdict.Warning)
			req.Equal(tt.expected, verdict.Filtered)
			req.Equal(tt.words, verdict.Words)
		})
	}
}

func TestFilter_BlockMode(t *testing.T) {
	req := require.New(t)
	f := newTestFilter(t, []string{"foo"}, ModeBlock)

	verdict := f.Apply("this is foo")
	req.True(verdict.Blocked)
	req.Equal("this is foo", verdict.Filtered, "blocked text is returned unmodified")
	req.Equal([]string{"foo"}, verdict.Words)
	req.NotEmpty(verdict.Reason)

	clean := f.Apply("nothing wrong here")
	req.False(clean.Blocked)
	req.Empty(clean.Reason)
}

func TestFilter_WarnMode(t *testing.T) {
	req := require.New(t)
	f := newTestFilter(t, []string{"foo"}, ModeWarn)

	verdict := f.Apply("this is foo")
	req.False(verdict.Blocked, "warn mode never blocks")
	req.Equal("this is foo", verdict.Filtered, "warn mode never rewrites")
	req.NotEmpty(verdict.Warning)
	req.Equal([]string{"foo"}, verdict.Words)

	clean := f.Apply("all good")
	req.Empty(clean.Warning)
}

func TestFilter_EmptyBlocklistPassesThrough(t *testing.T) {
	req := require.New(t)
	f := newTestFilter(t, nil, ModeBlock)

	verdict := f.Apply("anything at all, even foo")
	req.False(verdict.Blocked)
	req.Equal("anything at all, even foo", verdict.Filtered)
	req.Empty(verdict.Words)
}

func TestFilter_BlocklistNormalization(t *testing.T) {
	req := require.New(t)
	f := newTestFilter(t, []string{"  FOO ", "", "bar"}, ModeReplace)
	req.Equal([]string{"foo", "bar"}, f.Words())

	verdict := f.Apply("foo bar")
	req.Equal("f*o b*r", verdict.Filtered)
	req.Equal([]string{"foo", "bar"}, verdict.Words)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Mode
	}{
		{name: "Block", input: "block", expected: ModeBlock},
		{name: "Warn with spaces", input: " warn ", expected: ModeWarn},
		{name: "Replace", input: "replace", expected: ModeReplace},
		{name: "Unknown falls back to replace", input: "nuke", expected: ModeReplace},
		{name: "Empty falls back to replace", input: "", expected: ModeReplace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ParseMode(tt.input))
		})
	}
}
