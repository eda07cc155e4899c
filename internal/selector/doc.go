// Package selector derives CSS selectors for DOM elements that are
// likely to survive page redesigns.
//
// Strategy cascade, first match wins:
//  1. The data-otw-id marker attribute, the author-controlled opt-in.
//  2. A unique, non-numeric, non-colon-prefixed element id.
//  3. An ancestor-chain path (tag + up to two meaningful classes per
//     level, positional qualifier only where siblings collide), anchored
//     early at any ancestor with a unique id and validated by re-query.
//  4. An exact positional path from <body>, which always resolves but is
//     brittle to DOM reordering. Last resort only.
//
// Generation never fails: any malformed input degrades to the next
// strategy. The same cascade ships inside the in-page recorder script;
// this package is the server-side implementation used to re-derive and
// validate selectors against the session's cached document.
package selector
