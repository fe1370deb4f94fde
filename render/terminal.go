package render

import (
	"strconv"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
	"pkt.systems/joblog/internal/ansi"
	"pkt.systems/joblog/schema"
)

// TerminalOptions configures console output.
type TerminalOptions struct {
	// Width is the column count; zero leaves rows unwrapped and untruncated.
	Width int
	Theme schema.ThemeName
	// Color enables 24-bit colour escapes.
	Color bool
}

// Frame is a rendered terminal view. BlockRows holds the row of each block
// header so callers can jump to a command.
type Frame struct {
	Rows      []string
	BlockRows []int
}

// FirstFailureRow returns the header row of the first failed block.
func (f Frame) FirstFailureRow(doc Document) (int, bool) {
	if doc.FirstFailure < 0 || doc.FirstFailure >= len(f.BlockRows) {
		return 0, false
	}
	return f.BlockRows[doc.FirstFailure], true
}

// Terminal renders doc for a console. Closed blocks fold to their header.
// With wrap off, rows are truncated to the width.
func Terminal(doc Document, style StyleDecision, opts TerminalOptions) Frame {
	t := terminalRenderer{
		theme:       themeForName(ThemeForStyle(style, opts.Theme)),
		style:       style,
		opts:        opts,
		numberWidth: len(strconv.Itoa(max(doc.NumberOfLines, 1))),
	}
	var frame Frame
	if !style.ShowLog {
		frame.Rows = t.fit(t.paint(ansiBold+ansiFgRGB(t.theme.MessageFG), style.Message))
		return frame
	}
	frame.BlockRows = make([]int, 0, len(doc.Blocks))
	for i := range doc.Blocks {
		block := &doc.Blocks[i]
		frame.BlockRows = append(frame.BlockRows, len(frame.Rows))
		frame.Rows = append(frame.Rows, t.fit(t.header(block))...)
		if !block.Open {
			continue
		}
		for j := range block.Lines {
			frame.Rows = append(frame.Rows, t.fit(t.line(&block.Lines[j]))...)
		}
	}
	return frame
}

type terminalRenderer struct {
	theme       terminalTheme
	style       StyleDecision
	opts        TerminalOptions
	numberWidth int
}

func (t terminalRenderer) paint(sgr, text string) string {
	if !t.opts.Color || text == "" {
		return text
	}
	return sgr + text + ansiReset
}

func (t terminalRenderer) header(block *Block) string {
	var b strings.Builder
	marker := "▸ "
	if block.Open {
		marker = "▾ "
	}
	b.WriteString(marker)
	badge := " " + block.StatusLabel + " " + block.Duration + " "
	b.WriteString(t.paint(ansiBold+ansiBgRGB(t.statusBG(block.Status))+ansiFgRGB(t.theme.BadgeFG), badge))
	if block.Spinner {
		b.WriteString(" ")
		b.WriteString(t.paint(ansiFgRGB(t.theme.SpinnerFG), "●"))
	}
	b.WriteString(" ")
	b.WriteString(t.paint(ansiBold+ansiFgRGB(t.theme.DirectiveFG), ansi.Sanitize(block.Directive)))
	return b.String()
}

func (t terminalRenderer) statusBG(status BlockStatus) rgb {
	switch status {
	case BlockPassed:
		return t.theme.PassedBG
	case BlockFailed:
		return t.theme.FailedBG
	case BlockRunning:
		return t.theme.RunningBG
	default:
		return t.theme.FetchingBG
	}
}

func (t terminalRenderer) line(line *Line) string {
	var b strings.Builder
	number := strconv.Itoa(line.Number)
	b.WriteString(strings.Repeat(" ", 2+t.numberWidth-len(number)))
	b.WriteString(t.paint(ansiDim+ansiFgRGB(t.theme.LineNumberFG), number))
	b.WriteString("  ")
	if t.style.Timestamps {
		b.WriteString(t.paint(ansiFgRGB(t.theme.TimestampFG), line.Timestamp))
		b.WriteString("  ")
	}
	for _, span := range ansi.Parse(line.Output) {
		if span.Plain() || !t.opts.Color {
			b.WriteString(span.Text)
			continue
		}
		b.WriteString(t.paint(t.spanSGR(span.Style), span.Text))
	}
	return b.String()
}

func (t terminalRenderer) spanSGR(style ansi.Style) string {
	var sgr strings.Builder
	if style.Bold {
		sgr.WriteString(ansiBold)
	}
	if style.Italic {
		sgr.WriteString(ansiItalic)
	}
	if style.Underline {
		sgr.WriteString(ansiUnderline)
	}
	if c, ok := t.theme.fg(style.FG); ok {
		sgr.WriteString(ansiFgRGB(c))
	}
	return sgr.String()
}

func (t terminalRenderer) fit(row string) []string {
	row = strings.ReplaceAll(row, "\t", "    ")
	width := t.opts.Width
	if width <= 0 {
		return []string{row}
	}
	if !t.style.Wrap {
		return []string{xansi.Truncate(row, width, "…")}
	}
	if xansi.StringWidth(row) <= width {
		return []string{row}
	}
	return strings.Split(xansi.Hardwrap(row, width, true), "\n")
}
