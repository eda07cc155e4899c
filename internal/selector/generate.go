package selector

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/otwlabs/otw/internal/domain/tour"
)

// MarkerAttr is the explicit opt-in hook authors can add to markup to
// pin an element's identity. It always wins when present.
const MarkerAttr = "data-otw-id"

const (
	maxAncestorDepth   = 4
	maxClassesPerLevel = 2
)

// Generate derives a CSS selector for el such that querying the same
// document returns exactly el. It never fails: every strategy error
// degrades to the next, ending at a positional path that is constructed
// to always resolve.
func Generate(doc *goquery.Document, el *html.Node) string {
	if el == nil || el.Type != html.ElementNode {
		return ""
	}

	if v := attr(el, MarkerAttr); v != "" {
		return markerSelector(v)
	}

	if elID := attr(el, "id"); usableID(elID) {
		sel := "#" + escapeIdent(elID)
		if nodes := query(doc, sel); len(nodes) == 1 && nodes[0] == el {
			return sel
		}
	}

	if sel := ancestorPath(doc, el); sel != "" {
		return sel
	}

	return positionalPath(el)
}

// Resolve returns the single node a selector matches, or false when the
// selector is invalid, missing, or ambiguous.
func Resolve(doc *goquery.Document, sel string) (*html.Node, bool) {
	nodes := query(doc, sel)
	if len(nodes) != 1 {
		return nil, false
	}
	return nodes[0], true
}

// DeriveFromRef rebuilds a selector from the recorder's raw element
// description, validating against doc when one is available. Returns ""
// when nothing derivable resolves.
func DeriveFromRef(doc *goquery.Document, ref tour.ElementRef) string {
	if ref.Marker != "" {
		return markerSelector(ref.Marker)
	}

	if usableID(ref.ID) {
		sel := "#" + escapeIdent(ref.ID)
		if doc == nil || len(query(doc, sel)) == 1 {
			return sel
		}
	}

	parts := []string{refSegment(ref.TagName, ref.Classes, ref.Position)}
	anchor := ""
	for i, anc := range ref.Ancestors {
		if i >= maxAncestorDepth {
			break
		}
		tag := strings.ToLower(anc.TagName)
		if tag == "body" || tag == "html" {
			break
		}
		if usableID(anc.ID) && (doc == nil || len(query(doc, "#"+escapeIdent(anc.ID))) == 1) {
			anchor = "#" + escapeIdent(anc.ID)
			break
		}
		parts = append(parts, refSegment(anc.TagName, anc.Classes, anc.Position))
	}
	sel := joinReversed(parts)
	if anchor != "" {
		sel = anchor + " > " + sel
	}
	if doc == nil {
		return sel
	}
	if _, ok := Resolve(doc, sel); ok {
		return sel
	}
	return ""
}

// Describe reduces an element to the raw descriptor the recorder ships
// in step payloads: tag, id, classes, marker, position, and the
// ancestor chain up to the generation depth cap. DeriveFromRef is its
// inverse.
func Describe(el *html.Node) tour.ElementRef {
	if el == nil || el.Type != html.ElementNode {
		return tour.ElementRef{}
	}
	ref := tour.ElementRef{
		TagName: strings.ToLower(el.Data),
		ID:      attr(el, "id"),
		Classes: classAttr(el),
		Marker:  attr(el, MarkerAttr),
	}
	if sameTagSiblings(el) > 1 {
		ref.Position = nthChildIndex(el)
	}
	cur := el.Parent
	for depth := 0; depth < maxAncestorDepth && cur != nil && cur.Type == html.ElementNode; depth++ {
		tag := strings.ToLower(cur.Data)
		if tag == "body" || tag == "html" {
			break
		}
		anc := tour.AncestorRef{
			TagName: tag,
			ID:      attr(cur, "id"),
			Classes: classAttr(cur),
		}
		if sameTagSiblings(cur) > 1 {
			anc.Position = nthChildIndex(cur)
		}
		ref.Ancestors = append(ref.Ancestors, anc)
		cur = cur.Parent
	}
	return ref
}

func markerSelector(v string) string {
	return fmt.Sprintf(`[%s="%s"]`, MarkerAttr, escapeAttrValue(v))
}

// usableID rejects ids that churn or cannot anchor a selector: empty,
// purely numeric (list indices), or framework-generated colon ids
// (React's legacy ":r1:" style).
func usableID(elID string) bool {
	if elID == "" || strings.HasPrefix(elID, ":") || strings.ContainsAny(elID, " \t\n") {
		return false
	}
	for _, r := range elID {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}

// ancestorPath builds the tag+class chain capped at maxAncestorDepth,
// anchored early at a unique-id ancestor, and accepts it only when it
// resolves back to el.
func ancestorPath(doc *goquery.Document, el *html.Node) string {
	if doc == nil {
		return ""
	}

	parts := []string{segment(el)}
	anchor := ""
	cur := el.Parent
	for depth := 0; depth < maxAncestorDepth && cur != nil && cur.Type == html.ElementNode; depth++ {
		tag := strings.ToLower(cur.Data)
		if tag == "body" || tag == "html" {
			break
		}
		if aid := attr(cur, "id"); usableID(aid) {
			if nodes := query(doc, "#"+escapeIdent(aid)); len(nodes) == 1 && nodes[0] == cur {
				anchor = "#" + escapeIdent(aid)
				break
			}
		}
		parts = append(parts, segment(cur))
		cur = cur.Parent
	}

	sel := joinReversed(parts)
	if anchor != "" {
		sel = anchor + " > " + sel
	}

	if nodes := query(doc, sel); len(nodes) == 1 && nodes[0] == el {
		return sel
	}
	return ""
}

// positionalPath emits an exact :nth-child chain from <body>. Brittle to
// DOM reordering, but guaranteed to resolve. Accepted trade-off for the
// last resort.
func positionalPath(el *html.Node) string {
	var parts []string
	cur := el
	for cur != nil && cur.Type == html.ElementNode {
		tag := strings.ToLower(cur.Data)
		if tag == "body" || tag == "html" {
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", tag, nthChildIndex(cur)))
		cur = cur.Parent
	}
	if len(parts) == 0 {
		return strings.ToLower(el.Data)
	}
	path := joinReversed(parts)
	if cur != nil && strings.ToLower(cur.Data) == "body" {
		return "body > " + path
	}
	return path
}

// segment renders one level of the ancestor chain.
func segment(el *html.Node) string {
	s := strings.ToLower(el.Data)
	classes := meaningfulClasses(classAttr(el))
	if len(classes) > maxClassesPerLevel {
		classes = classes[:maxClassesPerLevel]
	}
	for _, c := range classes {
		s += "." + escapeIdent(c)
	}
	if sameTagSiblings(el) > 1 {
		s += fmt.Sprintf(":nth-child(%d)", nthChildIndex(el))
	}
	return s
}

// refSegment renders one level from a recorder-supplied descriptor.
// position 0 means "unknown"; the recorder reports it only when the
// level had same-tag siblings.
func refSegment(tagName string, classes []string, position int) string {
	s := strings.ToLower(tagName)
	if s == "" {
		s = "*"
	}
	kept := meaningfulClasses(classes)
	if len(kept) > maxClassesPerLevel {
		kept = kept[:maxClassesPerLevel]
	}
	for _, c := range kept {
		s += "." + escapeIdent(c)
	}
	if position > 0 {
		s += fmt.Sprintf(":nth-child(%d)", position)
	}
	return s
}

// query runs a selector, swallowing invalid-selector panics from the
// underlying matcher; a bad selector is just a miss.
func query(doc *goquery.Document, sel string) (nodes []*html.Node) {
	defer func() {
		if r := recover(); r != nil {
			nodes = nil
		}
	}()
	if doc == nil {
		return nil
	}
	return doc.Find(sel).Nodes
}

func attr(el *html.Node, name string) string {
	for _, a := range el.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func classAttr(el *html.Node) []string {
	return strings.Fields(attr(el, "class"))
}

// nthChildIndex is the element's 1-based position among element
// siblings, matching CSS :nth-child counting.
func nthChildIndex(el *html.Node) int {
	i := 1
	for sib := el.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode {
			i++
		}
	}
	return i
}

func sameTagSiblings(el *html.Node) int {
	if el.Parent == nil {
		return 1
	}
	n := 0
	for sib := el.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode && sib.Data == el.Data {
			n++
		}
	}
	return n
}

func joinReversed(parts []string) string {
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
