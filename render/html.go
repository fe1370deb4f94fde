package render

import (
	"io"
	"strconv"
	"strings"

	"pkt.systems/joblog/internal/ansi"
)

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`'`, "&#39;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&#34;",
)

// HTML returns the markup for doc.
func HTML(doc Document, style StyleDecision) string {
	var b strings.Builder
	b.Grow(estimateHTMLSize(doc, style))
	appendDocument(&b, doc, style)
	return b.String()
}

// WriteHTML renders doc into one pre-grown buffer and writes it to w once.
func WriteHTML(w io.Writer, doc Document, style StyleDecision) error {
	_, err := io.WriteString(w, HTML(doc, style))
	return err
}

// LineHTML returns the coloured, escaped markup of one raw output line.
func LineHTML(output string) string {
	var b strings.Builder
	appendLineOutput(&b, output)
	return b.String()
}

func estimateHTMLSize(doc Document, style StyleDecision) int {
	size := 256
	perLine := 96
	if style.Timestamps {
		perLine += 48
	}
	for _, block := range doc.Blocks {
		size += 384 + len(block.Directive)
		for _, line := range block.Lines {
			size += perLine + len(line.Output)
		}
	}
	return size
}

func appendDocument(b *strings.Builder, doc Document, style StyleDecision) {
	b.WriteString(`<div class="`)
	appendClasses(b, style.Classes)
	b.WriteString(`" data-job="`)
	htmlEscaper.WriteString(b, string(doc.JobID))
	b.WriteString(`" data-state="`)
	htmlEscaper.WriteString(b, string(doc.State))
	b.WriteString("\">\n")
	if !style.ShowLog {
		b.WriteString(`<div class="job-log-message">`)
		htmlEscaper.WriteString(b, style.Message)
		b.WriteString("</div>\n</div>\n")
		return
	}
	for i := range doc.Blocks {
		appendBlock(b, &doc.Blocks[i], style)
	}
	b.WriteString("</div>\n")
}

func appendBlock(b *strings.Builder, block *Block, style StyleDecision) {
	b.WriteString(`<div class="command command--`)
	b.WriteString(string(block.Status))
	if block.Open {
		b.WriteString(" open")
	} else {
		b.WriteString(" closed")
	}
	if block.Empty {
		b.WriteString(" command--empty")
	}
	if block.Trimmed {
		b.WriteString(" command--trimmed")
	}
	b.WriteString(`" id="command-`)
	b.WriteString(strconv.Itoa(block.Index))
	b.WriteString(`" data-start-line="`)
	b.WriteString(strconv.Itoa(block.StartingLineNumber))
	b.WriteString("\">\n")

	b.WriteString(`<div class="command-header"><span class="command-status `)
	b.WriteString(block.StatusClass)
	b.WriteString(`">`)
	b.WriteString(block.StatusLabel)
	b.WriteString(`</span> <span class="command-duration">`)
	b.WriteString(block.Duration)
	b.WriteString(`</span>`)
	if block.Spinner {
		b.WriteString(`<span class="command-spinner" aria-hidden="true"></span>`)
	}
	b.WriteString(` <span class="command-directive">`)
	htmlEscaper.WriteString(b, block.Directive)
	b.WriteString("</span></div>\n")

	if !block.Empty {
		b.WriteString("<div class=\"command-body\">\n")
		for i := range block.Lines {
			appendLine(b, &block.Lines[i], style.Timestamps)
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</div>\n")
}

func appendLine(b *strings.Builder, line *Line, timestamps bool) {
	number := strconv.Itoa(line.Number)
	b.WriteString(`<div class="log-line" id="L`)
	b.WriteString(number)
	b.WriteString(`"><span class="log-line-number" aria-hidden="true">`)
	b.WriteString(number)
	b.WriteString(`</span>`)
	if timestamps {
		b.WriteString(`<span class="log-line-timestamp">`)
		b.WriteString(line.Timestamp)
		b.WriteString(`</span>`)
	}
	b.WriteString(`<span class="log-line-output">`)
	appendLineOutput(b, line.Output)
	b.WriteString("</span></div>\n")
}

func appendLineOutput(b *strings.Builder, output string) {
	spans := ansi.Parse(output)
	if len(spans) == 0 {
		b.WriteString("&nbsp;")
		return
	}
	var scratch [4]string
	for _, span := range spans {
		if span.Plain() {
			htmlEscaper.WriteString(b, span.Text)
			continue
		}
		b.WriteString(`<span class="`)
		appendClasses(b, span.AppendClasses(scratch[:0]))
		b.WriteString(`">`)
		htmlEscaper.WriteString(b, span.Text)
		b.WriteString(`</span>`)
	}
}

func appendClasses(b *strings.Builder, classes []string) {
	for i, class := range classes {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(class)
	}
}
