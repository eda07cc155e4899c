/*
Package resilience provides the circuit breaker guarding upstream
fetches.

Every proxied page load fans out to a third-party site the operator
does not control. When a target goes hard-down, the breaker fails those
fetches fast instead of letting each one burn a full timeout while
browser tabs pile up behind the proxy.

Closed passes requests through and counts failures; ReadyToTrip opens
the circuit, which rejects with ErrCircuitOpen until Timeout elapses;
half-open admits up to MaxRequests probes and closes again after that
many consecutive successes. UpstreamSettings holds the defaults used by
the proxy client.

	breaker := resilience.New("proxy-upstream", resilience.UpstreamSettings())
	result, err := breaker.Execute(func() (interface{}, error) {
		return client.Fetch(ctx, target)
	})
*/
package resilience
