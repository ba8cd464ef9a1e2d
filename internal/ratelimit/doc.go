// Package ratelimit provides fixed-window rate limiting for token
// issuance, backed by Redis for multi-instance deployments or an
// in-process map for single-instance runs.
package ratelimit
