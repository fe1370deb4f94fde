package render

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"
	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/schema"
)

func terminalDoc() Document {
	return buildDoc(
		schema.CommandStarted{Timestamp: 1, Directive: "checkout"},
		schema.CommandOutput{Timestamp: 1, Output: "cloned\n"},
		schema.CommandFinished{Timestamp: 2, Directive: "checkout", StartedAt: 1, FinishedAt: 2},
		schema.CommandStarted{Timestamp: 2, Directive: "make test"},
		schema.CommandOutput{Timestamp: 3, Output: "\x1b[31mFAIL\x1b[0m pkg/a with a rather long trailing message\n"},
		schema.CommandFinished{Timestamp: 4, Directive: "make test", ExitCode: 1, StartedAt: 2, FinishedAt: 4},
		schema.JobFinished{Timestamp: 5, Result: schema.JobFailed},
	)
}

func TestTerminalFoldsClosedBlocks(t *testing.T) {
	doc := terminalDoc()
	frame := Terminal(doc, DefaultStyle(), TerminalOptions{})
	if len(frame.Rows) != 3 {
		t.Fatalf("expected 2 headers and 1 line, got %q", frame.Rows)
	}
	if frame.BlockRows[0] != 0 || frame.BlockRows[1] != 1 {
		t.Fatalf("unexpected block rows %v", frame.BlockRows)
	}
	if !strings.HasPrefix(frame.Rows[0], "▸ ") || !strings.Contains(frame.Rows[0], "Passed in 00:01") {
		t.Fatalf("unexpected folded header %q", frame.Rows[0])
	}
	if !strings.HasPrefix(frame.Rows[1], "▾ ") || !strings.Contains(frame.Rows[1], "make test") {
		t.Fatalf("unexpected open header %q", frame.Rows[1])
	}
	if !strings.Contains(frame.Rows[2], "2  FAIL pkg/a") {
		t.Fatalf("expected uncoloured line with number, got %q", frame.Rows[2])
	}
	if row, ok := frame.FirstFailureRow(doc); !ok || row != 1 {
		t.Fatalf("expected first failure at row 1, got %d %v", row, ok)
	}
}

func TestTerminalColour(t *testing.T) {
	frame := Terminal(terminalDoc(), DefaultStyle(), TerminalOptions{Color: true})
	line := frame.Rows[2]
	red := ansiFgRGB(terminalThemes[schema.LightTheme].Palette[1])
	if !strings.Contains(line, red+"FAIL"+ansiReset) {
		t.Fatalf("expected themed red span in %q", line)
	}
	if xansi.Strip(line) != Terminal(terminalDoc(), DefaultStyle(), TerminalOptions{}).Rows[2] {
		t.Fatalf("colour must not change visible text")
	}
}

func TestTerminalTruncatesWhenNotWrapping(t *testing.T) {
	store := displaystate.New(nil, nil)
	_ = store.SetBool(schema.DisplayWrap, false)
	frame := Terminal(terminalDoc(), Present(store.Snapshot()), TerminalOptions{Width: 20})
	for _, row := range frame.Rows {
		if w := xansi.StringWidth(row); w > 20 {
			t.Fatalf("row wider than 20 (%d): %q", w, row)
		}
	}
	if !strings.HasSuffix(frame.Rows[2], "…") {
		t.Fatalf("expected truncation marker, got %q", frame.Rows[2])
	}
}

func TestTerminalWrapsLongRows(t *testing.T) {
	frame := Terminal(terminalDoc(), DefaultStyle(), TerminalOptions{Width: 20})
	if len(frame.Rows) <= 3 {
		t.Fatalf("expected wrapped rows, got %q", frame.Rows)
	}
	for _, row := range frame.Rows {
		if w := xansi.StringWidth(row); w > 20 {
			t.Fatalf("row wider than 20 (%d): %q", w, row)
		}
	}
}

func TestTerminalMessage(t *testing.T) {
	style := Present(displaystate.Snapshot{Fetching: schema.FetchDontStart})
	frame := Terminal(terminalDoc(), style, TerminalOptions{})
	if len(frame.Rows) != 1 || frame.Rows[0] != MessageDontStart {
		t.Fatalf("unexpected rows %q", frame.Rows)
	}
}

func TestThemeForStyle(t *testing.T) {
	if got := ThemeForStyle(StyleDecision{Dark: true}, ""); got != schema.DefaultTheme {
		t.Fatalf("expected dark theme, got %s", got)
	}
	if got := ThemeForStyle(StyleDecision{}, ""); got != schema.LightTheme {
		t.Fatalf("expected light theme, got %s", got)
	}
	if got := ThemeForStyle(StyleDecision{}, "Tokyo"); got != "tokyo-midnight" {
		t.Fatalf("expected explicit theme, got %s", got)
	}
}
