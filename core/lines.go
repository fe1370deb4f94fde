package core

import "strings"

// Fragment is one physical line cut out of a chunk of command output.
// Complete is false for a trailing piece that has not seen its newline yet.
type Fragment struct {
	Text     string
	Complete bool
}

// NormalizeOutput converts CRLF to LF and collapses the "\r\r\n\n" pairs that
// PTY-backed runners emit for a single line break.
func NormalizeOutput(output string) string {
	if !strings.Contains(output, "\r") {
		return output
	}
	output = strings.ReplaceAll(output, "\r\r\n\n", "\n")
	return strings.ReplaceAll(output, "\r\n", "\n")
}

// SplitOutput normalizes output and splits it into physical lines. Every piece
// followed by a newline is complete; a non-empty remainder is returned as an
// incomplete fragment.
func SplitOutput(output string) []Fragment {
	output = NormalizeOutput(output)
	if output == "" {
		return nil
	}
	fragments := make([]Fragment, 0, strings.Count(output, "\n")+1)
	for {
		idx := strings.IndexByte(output, '\n')
		if idx < 0 {
			break
		}
		fragments = append(fragments, Fragment{Text: output[:idx], Complete: true})
		output = output[idx+1:]
	}
	if output != "" {
		fragments = append(fragments, Fragment{Text: output})
	}
	return fragments
}
