package resume

import (
	"github.com/PuerkitoBio/goquery"
)

// GoqueryDocument adapts a parsed document to the Document interface,
// for server-side replay previews and tests.
type GoqueryDocument struct {
	doc *goquery.Document
}

func NewGoqueryDocument(doc *goquery.Document) *GoqueryDocument {
	return &GoqueryDocument{doc: doc}
}

// Has reports whether the selector resolves to at least one element.
// Invalid selectors report false rather than panicking.
func (g *GoqueryDocument) Has(selector string) (ok bool) {
	if g.doc == nil || selector == "" {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return g.doc.Find(selector).Length() > 0
}
