// Package ansi turns raw terminal output into styled spans.
package ansi

import (
	"strconv"
	"strings"
)

// Style is the SGR state in effect for a span. FG holds the SGR code of the
// foreground colour (30-37, 90-97), 0 for the default.
type Style struct {
	FG        int
	Bold      bool
	Italic    bool
	Underline bool
}

// Plain reports whether the style carries no attribute.
func (s Style) Plain() bool {
	return s == Style{}
}

// AppendClasses appends the CSS classes for the style to dst.
func (s Style) AppendClasses(dst []string) []string {
	if s.FG != 0 {
		dst = append(dst, "term-fg"+strconv.Itoa(s.FG))
	}
	if s.Bold {
		dst = append(dst, "term-bold")
	}
	if s.Italic {
		dst = append(dst, "term-italic")
	}
	if s.Underline {
		dst = append(dst, "term-underline")
	}
	return dst
}

// Span is a run of text sharing one style.
type Span struct {
	Text string
	Style
}

// Parse splits a single output line into styled spans. SGR sequences update
// the style; other CSI and OSC sequences are dropped. A carriage return in the
// middle of the line discards what came before it, the way a terminal
// overwrites the row; the style carries over. Control bytes other than tab are
// dropped.
func Parse(line string) []Span {
	if line == "" {
		return nil
	}
	var spans []Span
	var buf strings.Builder
	style := Style{}

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		spans = append(spans, Span{Text: buf.String(), Style: style})
		buf.Reset()
	}

	for i := 0; i < len(line); {
		ch := line[i]
		switch {
		case ch == 0x1b:
			if i+1 < len(line) && line[i+1] == '[' {
				end := skipCSI(line, i+2)
				if end > i+2 && line[end-1] == 'm' {
					next := style.apply(line[i+2 : end-1])
					if next != style {
						flush()
						style = next
					}
				}
				i = end
				continue
			}
			i = skipEscape(line, i+1)
		case ch == '\r':
			if i == len(line)-1 {
				i++
				continue
			}
			buf.Reset()
			spans = spans[:0]
			i++
		case ch == '\t':
			buf.WriteByte(ch)
			i++
		case ch < 0x20 || ch == 0x7f:
			i++
		default:
			buf.WriteByte(ch)
			i++
		}
	}
	flush()
	return spans
}

// Sanitize returns the visible text of a line: escapes and control bytes
// removed, carriage-return overwrite applied, tabs kept.
func Sanitize(line string) string {
	spans := Parse(line)
	switch len(spans) {
	case 0:
		return ""
	case 1:
		return spans[0].Text
	}
	var b strings.Builder
	for _, span := range spans {
		b.WriteString(span.Text)
	}
	return b.String()
}

func (s Style) apply(params string) Style {
	if params == "" {
		return Style{}
	}
	codes := strings.Split(params, ";")
	for i := 0; i < len(codes); i++ {
		code, err := strconv.Atoi(codes[i])
		if err != nil {
			if codes[i] == "" {
				s = Style{}
			}
			continue
		}
		switch {
		case code == 0:
			s = Style{}
		case code == 1:
			s.Bold = true
		case code == 3:
			s.Italic = true
		case code == 4:
			s.Underline = true
		case code == 22:
			s.Bold = false
		case code == 23:
			s.Italic = false
		case code == 24:
			s.Underline = false
		case code >= 30 && code <= 37, code >= 90 && code <= 97:
			s.FG = code
		case code == 39:
			s.FG = 0
		case code == 38 || code == 48:
			i += extendedColorArgs(codes, i)
			if code == 38 {
				s.FG = 0
			}
		}
	}
	return s
}

// extendedColorArgs reports how many parameters follow a 38/48 introducer.
func extendedColorArgs(codes []string, i int) int {
	if i+1 >= len(codes) {
		return 0
	}
	switch codes[i+1] {
	case "5":
		return min(2, len(codes)-1-i)
	case "2":
		return min(4, len(codes)-1-i)
	}
	return 0
}

func skipEscape(text string, i int) int {
	if i >= len(text) {
		return i
	}
	switch text[i] {
	case '[':
		return skipCSI(text, i+1)
	case ']':
		return skipOSC(text, i+1)
	default:
		return i + 1
	}
}

func skipCSI(text string, i int) int {
	for i < len(text) {
		b := text[i]
		if b >= 0x40 && b <= 0x7e {
			return i + 1
		}
		i++
	}
	return i
}

func skipOSC(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case 0x07:
			return i + 1
		case 0x1b:
			if i+1 < len(text) && text[i+1] == '\\' {
				return i + 2
			}
		}
		i++
	}
	return i
}
