package core

import "testing"

func TestViewportScrollAnchorsOnAppend(t *testing.T) {
	v := NewViewport(100)
	v.Append("one", "two", "three", "four", "five")
	v.Scroll(2, 3)
	if v.scrollOffset != 2 {
		t.Fatalf("expected scroll offset 2, got %d", v.scrollOffset)
	}
	v.Append("six", "seven")
	if v.scrollOffset != 4 {
		t.Fatalf("expected scroll offset 4 after append, got %d", v.scrollOffset)
	}
	view := v.Snapshot(3)
	if view.AtBottom {
		t.Fatalf("expected not at bottom after scroll")
	}
	if len(view.Rows) != 3 || view.Rows[0] != "one" {
		t.Fatalf("expected anchored rows, got %+v", view.Rows)
	}
}

func TestViewportFollowsTailAtBottom(t *testing.T) {
	v := NewViewport(0)
	v.Replace([]string{"a", "b", "c"})
	v.Replace([]string{"a", "b", "c", "d", "e"})
	view := v.Snapshot(2)
	if !view.AtBottom || view.Rows[0] != "d" || view.Rows[1] != "e" {
		t.Fatalf("expected tail rows, got %+v", view)
	}
}

func TestViewportReplaceKeepsAnchor(t *testing.T) {
	v := NewViewport(0)
	v.Replace([]string{"a", "b", "c", "d"})
	v.Scroll(1, 2)
	v.Replace([]string{"a", "b", "c", "d", "e", "f"})
	view := v.Snapshot(2)
	if view.Rows[0] != "b" || view.Rows[1] != "c" {
		t.Fatalf("expected anchored rows b,c got %+v", view.Rows)
	}
}

func TestViewportRespectsMaxRows(t *testing.T) {
	v := NewViewport(3)
	v.Append("one", "two", "three", "four", "five")
	view := v.Snapshot(10)
	if view.TotalRows != 3 || view.Rows[0] != "three" || view.Rows[2] != "five" {
		t.Fatalf("unexpected rows: %+v", view)
	}
}

func TestViewportResetScroll(t *testing.T) {
	v := NewViewport(10)
	v.Append("one", "two", "three")
	v.Scroll(1, 2)
	if v.AtBottom() {
		t.Fatalf("expected scroll offset > 0")
	}
	v.ResetScroll()
	if !v.AtBottom() {
		t.Fatalf("expected bottom after reset")
	}
}

func TestViewportScrollClampsToBounds(t *testing.T) {
	v := NewViewport(10)
	v.Append("one", "two", "three", "four", "five")

	v.Scroll(10, 3)
	if v.scrollOffset != 2 {
		t.Fatalf("expected scroll offset 2, got %d", v.scrollOffset)
	}
	v.Scroll(-10, 3)
	if v.scrollOffset != 0 {
		t.Fatalf("expected scroll offset 0, got %d", v.scrollOffset)
	}
}

func TestViewportJumpTo(t *testing.T) {
	v := NewViewport(0)
	v.Append("r0", "r1", "r2", "r3", "r4", "r5")
	v.JumpTo(1, 2)
	view := v.Snapshot(2)
	if view.Start != 1 || view.Rows[0] != "r1" {
		t.Fatalf("expected window to start at r1, got %+v", view)
	}
	v.JumpTo(5, 2)
	view = v.Snapshot(2)
	if !view.AtBottom || view.Rows[1] != "r5" {
		t.Fatalf("expected jump past end to clamp at bottom, got %+v", view)
	}
}
