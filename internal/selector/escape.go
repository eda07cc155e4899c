package selector

import (
	"fmt"
	"strings"
)

// escapeIdent escapes a string for use as a CSS identifier (id or class
// position), per the CSS.escape algorithm's identifier rules.
func escapeIdent(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune('�')
		case r >= '0' && r <= '9' && i == 0:
			fmt.Fprintf(&b, `\%x `, r)
		case r == '-' && i == 0 && len(s) == 1:
			b.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeAttrValue escapes a string for a double-quoted attribute
// selector value.
func escapeAttrValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
