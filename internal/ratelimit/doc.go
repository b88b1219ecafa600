// Package ratelimit implements the per-key throttling actor: one durable
// last-accepted timestamp per subject, checked and set under the subject's
// single-flight dispatch.
package ratelimit
