package render

import (
	"fmt"
	"io"
	"strings"
)

// Renderer writes a document in one output format.
type Renderer interface {
	Render(w io.Writer, doc Document, style StyleDecision) error
}

// Format names an output format.
type Format string

const (
	FormatHTML  Format = "html"
	FormatANSI  Format = "ansi"
	FormatPlain Format = "plain"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatHTML, "":
		return FormatHTML, nil
	case FormatANSI, "terminal":
		return FormatANSI, nil
	case FormatPlain, "text":
		return FormatPlain, nil
	}
	return "", fmt.Errorf("unknown format %q (want html, ansi or plain)", name)
}

// HTMLRenderer writes a standalone page, or the fragment when Fragment is set.
type HTMLRenderer struct {
	Fragment bool
	Page     PageOptions
}

// Render implements Renderer.
func (r HTMLRenderer) Render(w io.Writer, doc Document, style StyleDecision) error {
	if r.Fragment {
		return WriteHTML(w, doc, style)
	}
	return WritePage(w, doc, style, r.Page)
}

// TerminalRenderer writes console rows.
type TerminalRenderer struct {
	Options TerminalOptions
}

// Render implements Renderer.
func (r TerminalRenderer) Render(w io.Writer, doc Document, style StyleDecision) error {
	frame := Terminal(doc, style, r.Options)
	var b strings.Builder
	for _, row := range frame.Rows {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// PlainRenderer writes escape-free text.
type PlainRenderer struct{}

// Render implements Renderer.
func (PlainRenderer) Render(w io.Writer, doc Document, style StyleDecision) error {
	_, err := io.WriteString(w, Plain(doc, style))
	return err
}

// ForFormat returns the renderer for format.
func ForFormat(format Format, terminal TerminalOptions) (Renderer, error) {
	switch format {
	case FormatHTML:
		return HTMLRenderer{}, nil
	case FormatANSI:
		return TerminalRenderer{Options: terminal}, nil
	case FormatPlain:
		return PlainRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}
