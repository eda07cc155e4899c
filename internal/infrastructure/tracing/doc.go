/*
Package tracing provides lightweight request tracing for the recording
service.

Every inbound request gets a span named after its route pattern; the span
is emitted as a structured log line when the request finishes. Callers
that send X-Trace-ID and X-Span-ID headers have their ids honored, so a
dashboard request, the proxy fetch it triggered, and the resulting
upstream call can be correlated from logs alone.

	tracer := tracing.New("otw", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

Spans are buffered and processed asynchronously; overload drops spans
instead of slowing requests.
*/
package tracing
