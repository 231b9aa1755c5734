package orchestrator

import "strings"

// sentenceBoundaryRunes are the punctuation marks (CJK and ASCII) that
// end a TTS-worthy segment (spec §4.5 step 4, grounded on
// `connection.py`'s punctuation set).
var sentenceBoundaryRunes = map[rune]bool{
	'。': true, '！': true, '？': true, '；': true, '：': true, '…': true,
	'.': true, '!': true, '?': true, ';': true,
}

// firstSegmentPivotWords are scanned for in the very first dispatched
// segment of a turn to find a natural early cut point, shortening
// time-to-first-audio (spec §4.5 "first-segment fast path").
var firstSegmentPivotWords = []rune{'我', '你', '他', '的', '是', '她', '它', '有'}

const (
	firstSegmentMinCut = 6
	firstSegmentMaxCut = 10
)

// findRightmostBoundary returns the index (in runes) of the last
// sentence-boundary rune in text, if any.
func findRightmostBoundary(text []rune) (int, bool) {
	for i := len(text) - 1; i >= 0; i-- {
		if sentenceBoundaryRunes[text[i]] {
			return i, true
		}
	}
	return 0, false
}

// stripPunctuationAndEmoji drops sentence punctuation, quote marks and
// emoji from text before it goes to TTS, mirroring the original's
// `remove_punctuation_and_length`/emoji filter used ahead of synthesis.
func stripPunctuationAndEmoji(text string) string {
	var b strings.Builder
	for _, r := range text {
		if sentenceBoundaryRunes[r] || isQuoteOrComma(r) || isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func isQuoteOrComma(r rune) bool {
	switch r {
	case ',', '，', '"', '\'', '“', '”', '‘', '’', '、':
		return true
	}
	return false
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	}
	return false
}

// firstSegmentCut finds the pivot-word-aware early cut position within
// segment (a stripped, already-bounded segment), clamped to
// [firstSegmentMinCut, firstSegmentMaxCut] and never past lastPunctPos
// (the boundary's position in the unprocessed text the segment was cut
// from) or the segment's own length (spec §4.5 "first-segment fast
// path").
func firstSegmentCut(segment []rune, lastPunctPos int) int {
	cut := firstSegmentMaxCut
	maxPivotPos := -1
	for _, w := range firstSegmentPivotWords {
		for i, r := range segment {
			if r == w {
				if i > maxPivotPos {
					maxPivotPos = i
				}
				break
			}
		}
	}
	if maxPivotPos >= 0 {
		cut = maxPivotPos
		if cut < firstSegmentMinCut {
			cut = firstSegmentMinCut
		}
		if cut > firstSegmentMaxCut {
			cut = firstSegmentMaxCut
		}
	}
	if lastPunctPos < cut {
		cut = lastPunctPos
	}
	if cut > len(segment) {
		cut = len(segment)
	}
	if cut < 0 {
		cut = 0
	}
	return cut
}
