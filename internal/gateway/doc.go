// Package gateway serves the Direct-Line style polling transport.
//
// # Overview
//
// The Gateway struct coordinates the HTTP surface with the token service,
// conversation store, rate limiter, and event publisher:
//
//	gw := gateway.New(store, tokens, limiter, publisher, logger)
//	err := gw.Serve(ctx, ":8980")
//
// # Routes
//
//   - POST /tokens/generate: mint a user token (rate-limited per scope)
//   - POST /conversations: create a conversation (user token)
//   - POST /conversations/{id}/activities: append an activity
//     (conversation token bound to {id})
//   - GET /conversations/{id}/activities?watermark=w: poll for new
//     activities (same token)
//
// # Errors
//
// Every non-2xx response carries {"error": kind, "message": text} where
// kind is one of auth_error, validation_error, rate_limit_error,
// not_found, config_error, internal. The watermark in responses is an
// opaque string cursor; clients echo it back without parsing it.
package gateway
