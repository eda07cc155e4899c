// Package proxy implements the recording proxy: it fetches a target
// page server-side, rewrites every resource and navigation URL so
// subsequent requests flow back through the proxy, and injects the
// recorder bootstrap before returning the document.
//
// Two entry shapes feed the same engine: a path-segment route
// (/record/{session}/{scheme}/{host...}) and a header/query-driven
// route (x-otw-session / x-otw-url). An edge rewrite rule can be
// swapped in without touching the rewrite algorithm.
//
// Rewriting is regex-based text substitution, not HTML parsing. That is
// deliberate: it is tolerant of broken markup and fast, at the cost of
// missing URLs constructed at runtime by page scripts. The Rewriter
// interface isolates the approach so a tokenizer could replace it
// without touching callers.
package proxy
