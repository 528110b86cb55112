// Package backoff runs unreliable operations under an exponential-backoff
// retry policy driven by error normalization.
//
// The executor invokes an operation up to a bounded number of times, sleeping
// 2^(n-1) seconds plus up to one second of jitter between attempts. Failures
// are classified through the error catalog: identifiers in the no-retry index
// terminate immediately, rate-limit errors carrying an explicit resume time
// are honored up to a ceiling (without consuming an attempt), and everything
// else retries until the attempts are exhausted. Every terminal failure is
// passed through the reporter exactly once, at the point of termination.
//
// Operations return an explicit Outcome instead of being introspected: a
// success value, an HTTP-shaped result, or an error. An HTTP result with a
// retryable status is treated as a failed attempt; on exhaustion the raw
// response is returned to the caller rather than an error, so fetch-shaped
// callers always receive a response-like value on that path.
package backoff
