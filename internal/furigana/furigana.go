// Package furigana parses ruby-text annotations of the form {base|reading}
// into renderable segments. The format is the one used throughout exam
// content: "{漢字|かんじ}を読む" renders 漢字 with かんじ above it.
package furigana

import (
	"iter"
	"strings"
)

// Segment is a run of text. A Segment with an empty Reading is plain text;
// otherwise Base carries the annotated text and Reading its phonetic reading.
type Segment struct {
	Base    string
	Reading string
}

// IsRuby reports whether the segment carries a reading annotation.
func (s Segment) IsRuby() bool {
	return s.Reading != ""
}

// Segments scans s left to right and yields plain-text and ruby segments in
// order. The scan is non-overlapping: the first '|' after an opening brace
// separates base from reading and the next '}' terminates the token. Base and
// reading must both be non-empty and must not contain '{', '|' or '}'.
// Anything that does not match the exact two-part pattern, including
// unbalanced or nested braces, is yielded verbatim as plain text; parsing
// never fails. An empty input yields no segments.
//
// The returned sequence is restartable: ranging over it twice yields the
// same segments both times.
func Segments(s string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		plainStart := 0
		i := 0
		for i < len(s) {
			open := strings.IndexByte(s[i:], '{')
			if open < 0 {
				break
			}
			open += i
			base, reading, end, ok := matchToken(s, open)
			if !ok {
				// Not a well-formed token; leave the brace as literal
				// text and keep scanning after it.
				i = open + 1
				continue
			}
			if open > plainStart {
				if !yield(Segment{Base: s[plainStart:open]}) {
					return
				}
			}
			if !yield(Segment{Base: base, Reading: reading}) {
				return
			}
			plainStart = end
			i = end
		}
		if plainStart < len(s) {
			yield(Segment{Base: s[plainStart:]})
		}
	}
}

// matchToken attempts to match a {base|reading} token starting at the opening
// brace at s[open]. It returns the token parts and the index just past the
// closing brace.
func matchToken(s string, open int) (base, reading string, end int, ok bool) {
	i := open + 1
	pipe := -1
	for ; i < len(s); i++ {
		switch s[i] {
		case '|':
			if pipe >= 0 {
				return "", "", 0, false
			}
			pipe = i
		case '{':
			return "", "", 0, false
		case '}':
			if pipe < 0 {
				return "", "", 0, false
			}
			base = s[open+1 : pipe]
			reading = s[pipe+1 : i]
			if base == "" || reading == "" {
				return "", "", 0, false
			}
			return base, reading, i + 1, true
		}
	}
	return "", "", 0, false
}

// Parse returns the segments of s as a slice.
func Parse(s string) []Segment {
	var segs []Segment
	for seg := range Segments(s) {
		segs = append(segs, seg)
	}
	return segs
}

// Strip removes reading annotations from s, keeping only base text. Plain
// text passes through unchanged.
func Strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for seg := range Segments(s) {
		b.WriteString(seg.Base)
	}
	return b.String()
}
