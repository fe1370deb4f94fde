package render

import (
	"strconv"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// Plain renders doc as text without escapes. Every block is expanded.
func Plain(doc Document, style StyleDecision) string {
	if !style.ShowLog {
		return style.Message + "\n"
	}
	var b strings.Builder
	size := 0
	for _, block := range doc.Blocks {
		size += 64 + len(block.Directive)
		for _, line := range block.Lines {
			size += 16 + len(line.Output)
		}
	}
	b.Grow(size)
	for i := range doc.Blocks {
		block := &doc.Blocks[i]
		b.WriteString("[")
		b.WriteString(block.StatusLabel)
		b.WriteString(" ")
		b.WriteString(block.Duration)
		b.WriteString("] ")
		b.WriteString(block.Directive)
		b.WriteString("\n")
		for j := range block.Lines {
			line := &block.Lines[j]
			b.WriteString(padLeft(line.Number, 6))
			b.WriteString("  ")
			if style.Timestamps {
				b.WriteString(line.Timestamp)
				b.WriteString("  ")
			}
			b.WriteString(PlainText(line.Output))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// PlainText strips escapes from one output line and applies carriage-return
// overwrite.
func PlainText(output string) string {
	text := strings.TrimRight(output, "\r")
	if idx := strings.LastIndexByte(text, '\r'); idx >= 0 {
		text = text[idx+1:]
	}
	return xansi.Strip(text)
}

func padLeft(n int, width int) string {
	s := strconv.Itoa(n)
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
