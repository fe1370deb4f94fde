package render

import (
	_ "embed"
	"io"
	"strconv"
	"strings"
)

//go:embed assets/joblog.css
var pageCSS string

// PageOptions configures a standalone HTML page.
type PageOptions struct {
	Title string
	// RefreshSeconds adds a meta refresh while the job is live. Zero disables it.
	RefreshSeconds int
	// Scripts are script URLs appended to the body.
	Scripts []string
}

// WritePage writes a complete HTML document around the job markup.
func WritePage(w io.Writer, doc Document, style StyleDecision, opts PageOptions) error {
	title := opts.Title
	if title == "" {
		title = "Job " + string(doc.JobID)
	}
	var b strings.Builder
	b.Grow(estimateHTMLSize(doc, style) + len(pageCSS) + 512)
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>")
	htmlEscaper.WriteString(&b, title)
	b.WriteString("</title>\n")
	if opts.RefreshSeconds > 0 && style.Live && !doc.JobFinished && style.ShowLog {
		b.WriteString(`<meta http-equiv="refresh" content="`)
		b.WriteString(strconv.Itoa(opts.RefreshSeconds))
		b.WriteString("\">\n")
	}
	b.WriteString("<style>\n")
	b.WriteString(pageCSS)
	b.WriteString("</style>\n</head>\n<body>\n")
	appendDocument(&b, doc, style)
	for _, src := range opts.Scripts {
		b.WriteString(`<script src="`)
		htmlEscaper.WriteString(&b, src)
		b.WriteString("\" defer></script>\n")
	}
	b.WriteString("</body>\n</html>\n")
	_, err := io.WriteString(w, b.String())
	return err
}
