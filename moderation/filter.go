// Package moderation applies the room's content policy to outgoing
// text. The filter is a pure function of the input and a configuration
// loaded once at startup; it performs no I/O and keeps no state
// between calls.
package moderation

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Mode string

const (
	ModeReplace Mode = "replace"
	ModeBlock   Mode = "block"
	ModeWarn    Mode = "warn"
)

const (
	blockReason = "Message contains inappropriate language and cannot be sent."
	warnMessage = "Your message contains words that might be considered inappropriate."
	maskRune    = '*'
)

// ParseMode maps a configuration string to a Mode, defaulting to
// replace for anything unrecognized.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBlock:
		return ModeBlock
	case ModeWarn:
		return ModeWarn
	default:
		return ModeReplace
	}
}

// Verdict is the outcome of applying the filter to one message.
type Verdict struct {
	// Filtered is the text to transmit. Identical to the input unless
	// the mode is replace and at least one word matched.
	Filtered string
	// Blocked means the message must not be sent (block mode only).
	Blocked bool
	// Words lists the configured words that matched, for UI feedback.
	Words []string
	// Warning is populated in warn mode; sending still proceeds.
	Warning string
	// Reason is the user-facing explanation when Blocked is true.
	Reason string
}

// Filter matches a configured blocklist against outgoing messages.
// Matching is whole-word and case-insensitive, and finds every
// occurrence. Safe for concurrent use: the automaton is read-only
// after construction.
type Filter struct {
	matcher *goahocorasick.Machine
	words   []string
	mode    Mode
	log     *slog.Logger
}

// NewFilter builds the Aho-Corasick automaton over the lowercased
// blocklist. Empty entries are dropped; an empty list yields a
// passthrough filter.
func NewFilter(blockedWords []string, mode Mode, log *slog.Logger) (*Filter, error) {
	words := make([]string, 0, len(blockedWords))
	for _, w := range blockedWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words = append(words, w)
		}
	}

	f := &Filter{words: words, mode: mode, log: log}
	if len(words) == 0 {
		return f, nil
	}

	patterns := make([][]rune, len(words))
	for i, w := range words {
		patterns[i] = []rune(w)
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	f.matcher = m
	return f, nil
}

type span struct {
	start, end int // rune offsets, half-open
	word       string
}

// Apply classifies the text against the blocklist and the configured
// mode. It never errors: an unmatchable input simply passes through.
func (f *Filter) Apply(text string) Verdict {
	if f.matcher == nil || text == "" {
		return Verdict{Filtered: text}
	}

	runes := []rune(text)
	spans := f.wholeWordSpans(runes)
	if len(spans) == 0 {
		return Verdict{Filtered: text}
	}

	words := uniqueWords(spans)

	switch f.mode {
	case ModeBlock:
		return Verdict{Filtered: text, Blocked: true, Words: words, Reason: blockReason}
	case ModeWarn:
		return Verdict{Filtered: text, Words: words, Warning: warnMessage}
	default:
		return Verdict{Filtered: mask(runes, spans), Words: words}
	}
}

// Mode reports the configured filter mode.
func (f *Filter) Mode() Mode {
	return f.mode
}

// Words reports the normalized blocklist, for configuration display.
func (f *Filter) Words() []string {
	out := make([]string, len(f.words))
	copy(out, f.words)
	return out
}

// wholeWordSpans runs the automaton over the lowercased text and keeps
// only matches bounded by word boundaries on both sides. Lowercasing
// rune by rune keeps offsets aligned with the original text.
func (f *Filter) wholeWordSpans(runes []rune) []span {
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}

	terms := f.matcher.MultiPatternSearch(lowered, false)
	spans := make([]span, 0, len(terms))
	for _, term := range terms {
		start := term.Pos
		end := start + len(term.Word)
		if start < 0 || end > len(runes) {
			continue
		}
		if start > 0 && isWordRune(runes[start-1]) {
			continue
		}
		if end < len(runes) && isWordRune(runes[end]) {
			continue
		}
		spans = append(spans, span{start: start, end: end, word: string(term.Word)})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

// mask rewrites every matched span as firstChar + stars + lastChar;
// single-rune matches become a single star. Overlapping spans are
// masked once, longest-first wins by arrival order.
func mask(runes []rune, spans []span) string {
	out := make([]rune, len(runes))
	copy(out, runes)

	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		lastEnd = s.end

		if s.end-s.start == 1 {
			out[s.start] = maskRune
			continue
		}
		for i := s.start + 1; i < s.end-1; i++ {
			out[i] = maskRune
		}
	}
	return string(out)
}

func uniqueWords(spans []span) []string {
	seen := make(map[string]struct{}, len(spans))
	words := make([]string, 0, len(spans))
	for _, s := range spans {
		if _, ok := seen[s.word]; ok {
			continue
		}
		seen[s.word] = struct{}{}
		words = append(words, s.word)
	}
	return words
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
