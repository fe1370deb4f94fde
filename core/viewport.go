package core

// ViewportView is a snapshot of the visible window.
type ViewportView struct {
	Rows         []string
	Start        int
	TotalRows    int
	ScrollOffset int
	AtBottom     bool
}

// Viewport keeps a window over rendered rows. ScrollOffset counts rows from
// the bottom; 0 means the view follows the tail.
type Viewport struct {
	rows         []string
	scrollOffset int
	maxRows      int
}

// NewViewport returns a viewport that keeps at most maxRows rows. Zero keeps all.
func NewViewport(maxRows int) *Viewport {
	if maxRows < 0 {
		maxRows = 0
	}
	return &Viewport{maxRows: maxRows}
}

// Append adds rows. A scrolled-up view stays anchored on the rows it shows.
func (v *Viewport) Append(rows ...string) {
	if len(rows) == 0 {
		return
	}
	v.rows = append(v.rows, rows...)
	if v.scrollOffset > 0 {
		v.scrollOffset += len(rows)
	}
	v.trim()
}

// Replace swaps the rows for a fresh rendering. Growth keeps a scrolled-up
// view anchored the same way Append does.
func (v *Viewport) Replace(rows []string) {
	grown := len(rows) - len(v.rows)
	v.rows = append(v.rows[:0], rows...)
	if v.scrollOffset > 0 && grown > 0 {
		v.scrollOffset += grown
	}
	if v.scrollOffset > len(v.rows) {
		v.scrollOffset = len(v.rows)
	}
	v.trim()
}

func (v *Viewport) trim() {
	if v.maxRows <= 0 || len(v.rows) <= v.maxRows {
		return
	}
	drop := len(v.rows) - v.maxRows
	v.rows = v.rows[drop:]
	if v.scrollOffset > len(v.rows) {
		v.scrollOffset = len(v.rows)
	}
}

// ResetScroll returns the view to the bottom.
func (v *Viewport) ResetScroll() {
	v.scrollOffset = 0
}

// AtBottom reports whether the view follows the tail.
func (v *Viewport) AtBottom() bool {
	return v.scrollOffset == 0
}

// Scroll moves the view by delta rows. Positive delta scrolls up toward
// older rows. Limit is the window height.
func (v *Viewport) Scroll(delta, limit int) {
	v.scrollOffset = clampScroll(v.scrollOffset+delta, len(v.rows), limit)
}

// JumpTo scrolls so row (0-based) is the first visible row, as far as the
// bounds allow.
func (v *Viewport) JumpTo(row, limit int) {
	total := len(v.rows)
	if limit <= 0 || limit > total {
		limit = total
	}
	v.scrollOffset = clampScroll(total-row-limit, total, limit)
}

// Snapshot returns the window for the given height.
func (v *Viewport) Snapshot(limit int) ViewportView {
	total := len(v.rows)
	if limit <= 0 || limit > total {
		limit = total
	}
	if max := maxScroll(total, limit); v.scrollOffset > max {
		v.scrollOffset = max
	}
	end := total - v.scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	rows := make([]string, end-start)
	copy(rows, v.rows[start:end])
	return ViewportView{
		Rows:         rows,
		Start:        start,
		TotalRows:    total,
		ScrollOffset: v.scrollOffset,
		AtBottom:     v.scrollOffset == 0,
	}
}

func maxScroll(total, limit int) int {
	if total <= 0 || limit <= 0 || total <= limit {
		return 0
	}
	return total - limit
}

func clampScroll(offset, total, limit int) int {
	max := maxScroll(total, limit)
	if offset < 0 {
		return 0
	}
	if offset > max {
		return max
	}
	return offset
}
