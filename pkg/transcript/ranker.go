package transcript

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	DefaultWindowSeconds = 120.0
	punctuation          = `.,!?;:'"()[]{}`
	minKeywordRunes      = 3
)

// Entry is one timed caption line.
type Entry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Window keeps entries whose start lies within windowSeconds centred on
// timestamp. The lower bound is clamped at zero. Input order is preserved.
func Window(entries []Entry, timestamp, windowSeconds float64) []Entry {
	half := windowSeconds / 2
	lo := timestamp - half
	if lo < 0 {
		lo = 0
	}
	hi := timestamp + half

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Start >= lo && e.Start <= hi {
			out = append(out, e)
		}
	}
	return out
}

// Keywords lower-cases and splits each input on whitespace, strips
// surrounding punctuation and keeps tokens of three or more characters.
func Keywords(texts ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range texts {
		for _, tok := range strings.Fields(strings.ToLower(t)) {
			tok = strings.Trim(tok, punctuation)
			if utf8.RuneCountInString(tok) >= minKeywordRunes {
				set[tok] = struct{}{}
			}
		}
	}
	return set
}

// Score counts the keywords that occur in text, case-insensitively.
func Score(text string, keywords map[string]struct{}) int {
	lower := strings.ToLower(text)
	n := 0
	for kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// Rank windows the transcript and orders the survivors by keyword overlap
// with the visual label and query. Ties go to earlier speech. No windowed
// entry is ever dropped.
func Rank(entries []Entry, visualLabel, query string, timestamp, windowSeconds float64) []Entry {
	windowed := Window(entries, timestamp, windowSeconds)
	if len(windowed) == 0 {
		return windowed
	}

	keywords := Keywords(visualLabel, query)
	scores := make([]int, len(windowed))
	idx := make([]int, len(windowed))
	for i, e := range windowed {
		scores[i] = Score(e.Text, keywords)
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return windowed[ia].Start < windowed[ib].Start
	})

	ranked := make([]Entry, len(windowed))
	for i, j := range idx {
		ranked[i] = windowed[j]
	}
	return ranked
}

// RankText is Rank joined with single spaces. Empty when the window is empty.
func RankText(entries []Entry, visualLabel, query string, timestamp, windowSeconds float64) string {
	ranked := Rank(entries, visualLabel, query, timestamp, windowSeconds)
	parts := make([]string, len(ranked))
	for i, e := range ranked {
		parts[i] = e.Text
	}
	return strings.Join(parts, " ")
}
