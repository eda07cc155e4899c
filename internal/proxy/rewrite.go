package proxy

import (
	"net/url"
	"regexp"
	"strings"
)

// Context carries the per-response rewrite parameters. Every absolute,
// protocol-relative, or root-relative URL written into the document must
// resolve, when later requested, back through Prefix so link-following
// and asset loading stay inside the proxy.
type Context struct {
	SessionID string
	Target    *url.URL // the page being proxied; base for resolution
	Prefix    string   // e.g. "/record/s1"; proxied URL = Prefix + "/" + absolute
}

// ProxyURL converts an absolute target URL into its proxied form.
func (c Context) ProxyURL(abs string) string {
	return strings.TrimSuffix(c.Prefix, "/") + "/" + abs
}

// Rewriter rewrites resource and navigation references in HTML and CSS
// text. The regex approach is pragmatic, not parsing-correct: URLs
// assembled at runtime by page scripts are not caught. Known and
// accepted limitation.
type Rewriter interface {
	Rewrite(html string, ctx Context) string
	RewriteCSS(css string, ctx Context) string
	RewriteLocation(location string, ctx Context) string
}

var (
	// src= / href= / action= with either quote style. Unquoted attribute
	// values are left alone; sites that lean on them predate anything
	// worth recording.
	attrPattern = regexp.MustCompile(`(?i)\b(src|href|action)(\s*=\s*)(["'])([^"']*)(["'])`)

	// srcset holds a comma-separated list of "url descriptor" pairs.
	srcsetPattern = regexp.MustCompile(`(?i)\b(srcset)(\s*=\s*)(["'])([^"']*)(["'])`)

	// CSS url(...) with optional quoting, in <style> blocks, style
	// attributes, and standalone stylesheets alike.
	cssURLPattern = regexp.MustCompile(`(?i)\burl\(\s*(['"]?)([^'")]+)(['"]?)\s*\)`)
)

// textRewriter is the canonical Rewriter. Both proxy entry shapes and
// the passthrough CSS branch route through this one implementation.
type textRewriter struct{}

// NewRewriter returns the canonical text-substitution rewriter.
func NewRewriter() Rewriter {
	return textRewriter{}
}

func (textRewriter) Rewrite(html string, ctx Context) string {
	html = attrPattern.ReplaceAllStringFunc(html, func(m string) string {
		g := attrPattern.FindStringSubmatch(m)
		rewritten, ok := rewriteValue(g[4], ctx)
		if !ok {
			return m
		}
		return g[1] + g[2] + g[3] + rewritten + g[5]
	})

	html = srcsetPattern.ReplaceAllStringFunc(html, func(m string) string {
		g := srcsetPattern.FindStringSubmatch(m)
		return g[1] + g[2] + g[3] + rewriteSrcset(g[4], ctx) + g[5]
	})

	return rewriteCSSText(html, ctx)
}

func (textRewriter) RewriteCSS(css string, ctx Context) string {
	return rewriteCSSText(css, ctx)
}

// RewriteLocation translates an upstream redirect Location into the
// proxy shape so the browser's address bar stays inside the proxy.
func (textRewriter) RewriteLocation(location string, ctx Context) string {
	rewritten, ok := rewriteValue(location, ctx)
	if !ok {
		return location
	}
	return rewritten
}

func rewriteCSSText(s string, ctx Context) string {
	return cssURLPattern.ReplaceAllStringFunc(s, func(m string) string {
		g := cssURLPattern.FindStringSubmatch(m)
		rewritten, ok := rewriteValue(strings.TrimSpace(g[2]), ctx)
		if !ok {
			return m
		}
		return "url(" + g[1] + rewritten + g[3] + ")"
	})
}

func rewriteSrcset(val string, ctx Context) string {
	entries := strings.Split(val, ",")
	for i, entry := range entries {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		if rewritten, ok := rewriteValue(fields[0], ctx); ok {
			fields[0] = rewritten
		}
		entries[i] = strings.Join(fields, " ")
	}
	return strings.Join(entries, ", ")
}

// rewriteValue maps one URL value to its proxied form. Returns ok=false
// when the value must pass through byte-identical: data, javascript,
// mailto, fragment-only, already-proxied, and plain-relative values
// (the latter resolve against the proxied document URL and come back to
// the proxy on their own).
func rewriteValue(val string, ctx Context) (string, bool) {
	if val == "" || ctx.Target == nil {
		return "", false
	}

	switch {
	case strings.HasPrefix(val, "#"):
		return "", false
	case hasSkippedScheme(val):
		return "", false
	case strings.HasPrefix(val, ctx.Prefix+"/"):
		// Idempotence: never double-wrap.
		return "", false
	}

	var abs string
	switch {
	case strings.HasPrefix(val, "//"):
		abs = ctx.Target.Scheme + ":" + val
	case strings.HasPrefix(val, "/"):
		abs = ctx.Target.Scheme + "://" + ctx.Target.Host + val
	case strings.HasPrefix(val, "http://"), strings.HasPrefix(val, "https://"):
		abs = val
	default:
		// Relative path: resolves under the proxied document URL.
		return "", false
	}

	return ctx.ProxyURL(abs), true
}

var skippedSchemes = []string{
	"data:", "javascript:", "mailto:", "tel:", "blob:", "about:", "ws:", "wss:",
}

func hasSkippedScheme(val string) bool {
	lower := strings.ToLower(val)
	for _, s := range skippedSchemes {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}
	return false
}
