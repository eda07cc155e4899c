package selector

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/otwlabs/otw/internal/domain/tour"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body>
	<header id="site-header" class="flex items-center px-4">
		<nav class="main-nav">
			<a href="/home" class="nav-link">Home</a>
			<a href="/pricing" class="nav-link">Pricing</a>
		</nav>
	</header>
	<main>
		<button id="submit-btn" class="btn btn-primary">Submit</button>
		<button id="12345" class="mt-4">Numeric id</button>
		<button id=":r1:" class="mt-4">React id</button>
		<div class="card" data-otw-id="checkout-card">
			<span class="price">$9</span>
		</div>
		<ul class="menu">
			<li class="mt-2 px-4">One</li>
			<li class="mt-2 px-4">Two</li>
			<li class="mt-2 px-4">Three</li>
			<li class="mt-2 px-4">Four</li>
			<li class="mt-2 px-4">Five</li>
		</ul>
		<section>
			<div><div><div><div><div><div class="deep-leaf">Deep</div></div></div></div></div></div>
		</section>
		<p class="note">First note</p>
		<p class="note">Second note</p>
	</main>
	<footer>
		<span id="dup">a</span>
		<span id="dup">b</span>
	</footer>
</body>
</html>`

func parsePage(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func nodeFor(t *testing.T, doc *goquery.Document, sel string) *html.Node {
	t.Helper()
	s := doc.Find(sel)
	require.Equal(t, 1, s.Length(), "test fixture lookup %q", sel)
	return s.Nodes[0]
}

func TestMarkerAttributeWins(t *testing.T) {
	doc := parsePage(t, testPage)
	el := nodeFor(t, doc, "div.card")

	sel := Generate(doc, el)
	assert.Equal(t, `[data-otw-id="checkout-card"]`, sel)
}

func TestUniqueID(t *testing.T) {
	doc := parsePage(t, testPage)
	el := nodeFor(t, doc, "#submit-btn")

	assert.Equal(t, "#submit-btn", Generate(doc, el))
}

func TestNumericIDSkipped(t *testing.T) {
	doc := parsePage(t, testPage)
	el := nodeFor(t, doc, `button[id="12345"]`)

	sel := Generate(doc, el)
	assert.NotEqual(t, "#12345", sel)
	got, ok := Resolve(doc, sel)
	require.True(t, ok)
	assert.Same(t, el, got)
}

func TestColonIDSkipped(t *testing.T) {
	doc := parsePage(t, testPage)
	el := nodeFor(t, doc, `button[id=":r1:"]`)

	sel := Generate(doc, el)
	assert.False(t, strings.HasPrefix(sel, "#"), "got %q", sel)
	got, ok := Resolve(doc, sel)
	require.True(t, ok)
	assert.Same(t, el, got)
}

func TestDuplicateIDFallsThrough(t *testing.T) {
	doc := parsePage(t, testPage)
	el := doc.Find(`span[id="dup"]`).Nodes[1]

	sel := Generate(doc, el)
	got, ok := Resolve(doc, sel)
	require.True(t, ok, "selector %q must resolve", sel)
	assert.Same(t, el, got)
}

func TestUtilityOnlyListItemUsesNthChild(t *testing.T) {
	doc := parsePage(t, testPage)
	el := doc.Find("ul.menu li").Nodes[2]

	sel := Generate(doc, el)
	assert.True(t, strings.HasSuffix(sel, "li:nth-child(3)"), "got %q", sel)
	assert.NotContains(t, sel, "mt-2", "utility classes filtered")
	assert.NotContains(t, sel, "px-4")

	got, ok := Resolve(doc, sel)
	require.True(t, ok)
	assert.Same(t, el, got)
}

func TestMeaningfulClassKept(t *testing.T) {
	doc := parsePage(t, testPage)
	el := nodeFor(t, doc, "span.price")

	sel := Generate(doc, el)
	assert.Contains(t, sel, ".price")
}

func TestAnchorsAtUniqueIDAncestor(t *testing.T) {
	doc := parsePage(t, testPage)
	el := doc.Find("nav.main-nav a").Nodes[1]

	sel := Generate(doc, el)
	assert.True(t, strings.HasPrefix(sel, "#site-header"), "got %q", sel)

	got, ok := Resolve(doc, sel)
	require.True(t, ok)
	assert.Same(t, el, got)
}

func TestDeepNestingFallsBackToPositional(t *testing.T) {
	doc := parsePage(t, testPage)
	el := nodeFor(t, doc, "div.deep-leaf")

	sel := Generate(doc, el)
	got, ok := Resolve(doc, sel)
	require.True(t, ok, "selector %q must resolve", sel)
	assert.Same(t, el, got)
}

// Round-trip property: for every element in the document, the generated
// selector resolves back to exactly that element.
func TestRoundTripAllElements(t *testing.T) {
	doc := parsePage(t, testPage)

	doc.Find("body, body *").Each(func(_ int, s *goquery.Selection) {
		el := s.Nodes[0]
		sel := Generate(doc, el)
		require.NotEmpty(t, sel)

		got, ok := Resolve(doc, sel)
		if assert.True(t, ok, "selector %q resolves uniquely", sel) {
			assert.Same(t, el, got, "selector %q round-trips", sel)
		}
	})
}

func TestGenerateNeverPanics(t *testing.T) {
	doc := parsePage(t, `<html><body><div id="a b c" class="x">odd</div></body></html>`)
	el := nodeFor(t, doc, "div.x")

	assert.NotPanics(t, func() {
		sel := Generate(doc, el)
		got, ok := Resolve(doc, sel)
		require.True(t, ok)
		assert.Same(t, el, got)
	})
}

func TestGenerateNilInputs(t *testing.T) {
	doc := parsePage(t, testPage)
	assert.Empty(t, Generate(doc, nil))

	// Without a document, id uniqueness cannot be confirmed, so the
	// positional path is the only safe output.
	el := nodeFor(t, doc, "#submit-btn")
	sel := Generate(nil, el)
	assert.True(t, strings.HasPrefix(sel, "body > "), "got %q", sel)

	got, ok := Resolve(doc, sel)
	require.True(t, ok)
	assert.Same(t, el, got)
}

func TestDeriveFromRefMarker(t *testing.T) {
	sel := DeriveFromRef(nil, tour.ElementRef{Marker: "hero"})
	assert.Equal(t, `[data-otw-id="hero"]`, sel)
}

func TestDeriveFromRefID(t *testing.T) {
	doc := parsePage(t, testPage)
	sel := DeriveFromRef(doc, tour.ElementRef{TagName: "button", ID: "submit-btn"})
	assert.Equal(t, "#submit-btn", sel)
}

func TestDeriveFromRefChain(t *testing.T) {
	doc := parsePage(t, testPage)

	ref := tour.ElementRef{
		TagName: "li",
		Classes: []string{"mt-2", "px-4"},
		Ancestors: []tour.AncestorRef{
			{TagName: "ul", Classes: []string{"menu"}},
			{TagName: "main"},
		},
	}
	// Without a position hint the chain is ambiguous against the doc.
	assert.Empty(t, DeriveFromRef(doc, ref))

	// With the recorder's nth-child hint it resolves to the third item.
	ref.Position = 3
	sel := DeriveFromRef(doc, ref)
	require.NotEmpty(t, sel)
	got, ok := Resolve(doc, sel)
	require.True(t, ok)
	assert.Same(t, doc.Find("ul.menu li").Nodes[2], got)
}

func TestDeriveFromRefPositional(t *testing.T) {
	doc := parsePage(t, testPage)

	ref := tour.ElementRef{
		TagName: "li",
		Ancestors: []tour.AncestorRef{
			{TagName: "ul", Classes: []string{"menu"}},
		},
	}
	// Ambiguous: five list items.
	assert.Empty(t, DeriveFromRef(doc, ref))
}

func TestDescribeCapturesAttributes(t *testing.T) {
	doc := parsePage(t, testPage)
	el := nodeFor(t, doc, "div.card")

	ref := Describe(el)
	assert.Equal(t, "div", ref.TagName)
	assert.Equal(t, "checkout-card", ref.Marker)
	assert.Equal(t, []string{"card"}, ref.Classes)
	assert.Zero(t, ref.Position, "single div.card among siblings")
}

func TestDescribeRecordsPositionAmongSiblings(t *testing.T) {
	doc := parsePage(t, testPage)
	el := doc.Find("ul.menu li").Nodes[2]

	ref := Describe(el)
	assert.Equal(t, "li", ref.TagName)
	assert.Equal(t, 3, ref.Position)
	require.NotEmpty(t, ref.Ancestors)
	assert.Equal(t, "ul", ref.Ancestors[0].TagName)
	assert.Contains(t, ref.Ancestors[0].Classes, "menu")
}

func TestDescribeStopsAtBody(t *testing.T) {
	doc := parsePage(t, testPage)
	el := nodeFor(t, doc, "#submit-btn")

	ref := Describe(el)
	for _, anc := range ref.Ancestors {
		assert.NotEqual(t, "body", anc.TagName)
		assert.NotEqual(t, "html", anc.TagName)
	}
}

func TestDescribeNil(t *testing.T) {
	assert.Equal(t, tour.ElementRef{}, Describe(nil))
}

// Describe feeds DeriveFromRef on the next page load. The pair must agree
// on enough structure that a described element resolves back to itself.
func TestDescribeDeriveRoundTrip(t *testing.T) {
	doc := parsePage(t, testPage)

	for _, q := range []string{"div.card", "#submit-btn", "span.price"} {
		el := nodeFor(t, doc, q)
		ref := Describe(el)

		sel := DeriveFromRef(doc, ref)
		require.NotEmpty(t, sel, "ref for %q must derive", q)
		got, ok := Resolve(doc, sel)
		require.True(t, ok, "derived selector %q resolves", sel)
		assert.Same(t, el, got)
	}
}

func TestEscapeIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"simple", "simple"},
		{"with space", `with\ space`},
		{"1starts-digit", `\31 starts-digit`},
		{"a:b", `a\:b`},
		{"emoji😀", "emoji😀"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeIdent(tt.in), "input %q", tt.in)
	}
}

func TestUtilityClassFilter(t *testing.T) {
	kept := meaningfulClasses([]string{
		"mt-4", "px-2", "btn-primary", "flex", "hover:underline",
		"card", "w-[42px]", "text-sm", "pricing-table", "button_x1f9qz",
	})
	assert.Equal(t, []string{"btn-primary", "card", "pricing-table"}, kept)
}
