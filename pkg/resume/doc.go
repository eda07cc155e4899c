// Package resume carries a running tour across a full page navigation.
//
// A tour step may point at a different page than the one currently
// shown. The engine persists "which task, which step" to a single
// storage slot before navigating, and on the next page load consumes
// that slot exactly once to re-enter the tour at the saved step. A
// crash between navigation and resume loses the resume point rather
// than replaying it, which is the safer failure.
//
// At most one resume state exists per browser context; starting a
// second tour while one is in flight overwrites the first.
package resume
