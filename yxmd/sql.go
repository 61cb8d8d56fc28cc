package yxmd

import "strings"

const sqlCommentMarker = "--"

// StripSQLComments removes "--" line comments from query. Each line is cut
// at the first marker outside a single- or double-quoted literal and the
// whitespace left before the cut is trimmed. Quote state carries across
// lines, so a marker inside a multi-line literal is kept. Line breaks,
// including CRLF endings, are preserved. Stripping is idempotent.
func StripSQLComments(query string) string {
	lines := strings.Split(query, "\n")
	var quote byte
	for i, line := range lines {
		body, cr := line, ""
		if strings.HasSuffix(body, "\r") {
			body, cr = body[:len(body)-1], "\r"
		}
		cut := -1
		for j := 0; j < len(body); j++ {
			c := body[j]
			if quote != 0 {
				if c == quote {
					quote = 0
				}
				continue
			}
			if c == '\'' || c == '"' {
				quote = c
				continue
			}
			if strings.HasPrefix(body[j:], sqlCommentMarker) {
				cut = j
				break
			}
		}
		if cut >= 0 {
			lines[i] = strings.TrimRight(body[:cut], " \t") + cr
		}
	}
	return strings.Join(lines, "\n")
}
