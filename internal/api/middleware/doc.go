// Package middleware provides HTTP middleware for the recording service.
//
// Middleware stack includes:
//   - CORS: open cross-origin policy, since the in-page recorder runs on
//     arbitrary third-party origins
//   - RateLimit: per-IP token bucket rate limiting with stale-entry sweep
//   - GlobalRateLimit: single shared token bucket
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
