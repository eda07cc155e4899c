package selector

import "strings"

// utilityPrefixes matches atomic/utility CSS class vocabularies
// (tailwind and friends). These churn across redesigns and carry no
// semantic identity, so they never appear in generated selectors.
var utilityPrefixes = []string{
	"p-", "px-", "py-", "pt-", "pb-", "pl-", "pr-",
	"m-", "mx-", "my-", "mt-", "mb-", "ml-", "mr-",
	"w-", "h-", "min-w-", "min-h-", "max-w-", "max-h-",
	"text-", "font-", "leading-", "tracking-", "whitespace-",
	"bg-", "border-", "ring-", "rounded", "shadow", "opacity-",
	"flex", "grid", "gap-", "items-", "justify-", "content-", "self-",
	"space-", "col-", "row-", "order-",
	"top-", "bottom-", "left-", "right-", "inset-", "z-",
	"overflow-", "object-", "align-", "float-",
	"transition", "duration-", "delay-", "ease-", "animate-",
	"cursor-", "select-", "pointer-events-", "outline-",
	"divide-", "place-", "basis-", "grow", "shrink",
	"sr-only", "not-sr-only", "is-", "has-",
}

// utilityExact are standalone utility class names.
var utilityExact = map[string]bool{
	"flex": true, "grid": true, "block": true, "inline": true,
	"inline-block": true, "inline-flex": true, "hidden": true,
	"absolute": true, "relative": true, "fixed": true, "sticky": true,
	"static": true, "truncate": true, "underline": true, "italic": true,
	"uppercase": true, "lowercase": true, "capitalize": true,
	"antialiased": true, "container": true, "visible": true,
	"invisible": true, "active": true, "open": true, "selected": true,
	"hover": true, "focus": true, "disabled": true, "clearfix": true,
}

// meaningfulClasses filters a class list down to names worth keying a
// selector on, preserving order.
func meaningfulClasses(classes []string) []string {
	var out []string
	for _, c := range classes {
		if isMeaningfulClass(c) {
			out = append(out, c)
		}
	}
	return out
}

func isMeaningfulClass(c string) bool {
	if len(c) < 3 {
		return false
	}
	// Variant prefixes (hover:, md:) and arbitrary values (w-[42px])
	// are framework noise.
	if strings.ContainsAny(c, ":[]/") {
		return false
	}
	lower := strings.ToLower(c)
	if utilityExact[lower] {
		return false
	}
	for _, p := range utilityPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	// Hash-suffixed classes from CSS modules and styled-components
	// (e.g. button_x1f9qz) churn on every build.
	if looksGenerated(lower) {
		return false
	}
	return true
}

// looksGenerated flags classes ending in a compiler hash: a 5+ char
// trailing run mixing letters and digits after a separator.
func looksGenerated(c string) bool {
	i := strings.LastIndexAny(c, "_-")
	if i < 0 || len(c)-i-1 < 5 {
		return false
	}
	tail := c[i+1:]
	var letters, digits int
	for _, r := range tail {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z':
			letters++
		default:
			return false
		}
	}
	return digits >= 2 && letters >= 1
}
