// Package event defines the wire protocol spoken between the in-page
// recorder, the session store, and dashboard listeners.
//
// Every message is a JSON object with a "type" discriminator over a
// closed set (init, connected, step, stop, sync, ping, pong). Decoding
// dispatches on the tag into a concrete Go type so new message kinds are
// a compile-time-checked addition rather than a stringly-typed branch.
package event
