package proxy

import (
	"regexp"
	"strings"
)

var (
	headClose = regexp.MustCompile(`(?i)</head\s*>`)
	bodyOpen  = regexp.MustCompile(`(?i)<body[\s>]`)
)

// injectBlock places the bootstrap markup at the least disruptive point:
// immediately before </head> when present, else immediately before the
// opening <body>, else prepended to the document.
func injectBlock(html, block string) string {
	if block == "" {
		return html
	}
	if loc := headClose.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + block + "\n" + html[loc[0]:]
	}
	if loc := bodyOpen.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + block + "\n" + html[loc[0]:]
	}
	var b strings.Builder
	b.Grow(len(block) + 1 + len(html))
	b.WriteString(block)
	b.WriteByte('\n')
	b.WriteString(html)
	return b.String()
}
