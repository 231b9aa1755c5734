package orchestrator

import "testing"

func TestFindRightmostBoundary(t *testing.T) {
	idx, ok := findRightmostBoundary([]rune("hello world. how are you?"))
	if !ok {
		t.Fatal("expected a boundary")
	}
	if []rune("hello world. how are you?")[idx] != '?' {
		t.Errorf("expected rightmost boundary to be '?', got %q", []rune("hello world. how are you?")[idx])
	}
}

func TestFindRightmostBoundaryNone(t *testing.T) {
	_, ok := findRightmostBoundary([]rune("no punctuation here"))
	if ok {
		t.Error("expected no boundary found")
	}
}

func TestStripPunctuationAndEmoji(t *testing.T) {
	got := stripPunctuationAndEmoji("Hi, there! 😀 \"quoted\" text。")
	// Only the marks and the emoji are removed; the spaces on either side
	// of the emoji both remain.
	want := "Hi there  quoted text"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFirstSegmentCutWithPivot(t *testing.T) {
	segment := []rune("我今天很高兴见到你朋友们")
	cut := firstSegmentCut(segment, len(segment))
	if cut < firstSegmentMinCut || cut > firstSegmentMaxCut {
		t.Errorf("cut = %d, want within [%d,%d]", cut, firstSegmentMinCut, firstSegmentMaxCut)
	}
}

func TestFirstSegmentCutNoPivotFallsBackToMax(t *testing.T) {
	segment := []rune("abcdefghijklmnopqrstuvwxyz")
	cut := firstSegmentCut(segment, len(segment))
	if cut != firstSegmentMaxCut {
		t.Errorf("cut = %d, want %d", cut, firstSegmentMaxCut)
	}
}

func TestFirstSegmentCutClampedByPunctPosition(t *testing.T) {
	segment := []rune("abcdefghijklmnop")
	cut := firstSegmentCut(segment, 3)
	if cut != 3 {
		t.Errorf("cut = %d, want 3 (clamped by lastPunctPos)", cut)
	}
}

func TestFirstSegmentCutClampedBySegmentLength(t *testing.T) {
	segment := []rune("ab")
	cut := firstSegmentCut(segment, 100)
	if cut != len(segment) {
		t.Errorf("cut = %d, want %d (clamped by segment length)", cut, len(segment))
	}
}

func TestFirstSegmentCutUsesFirstOccurrenceNotLast(t *testing.T) {
	// "的" recurs at index 1 and index 12; the cut must track the pivot
	// word's first occurrence, not its rightmost one, so a repeat late
	// in the segment doesn't push the cut past firstSegmentMaxCut.
	segment := []rune("a的bcdefghijk的lmnop")
	cut := firstSegmentCut(segment, len(segment))
	if cut != firstSegmentMinCut {
		t.Errorf("cut = %d, want %d (first occurrence of 的, clamped to min)", cut, firstSegmentMinCut)
	}
}
