// Package envelope defines the channel-agnostic activity envelope, the
// tenant scope triple, and attachment validation rules shared by the
// store and the HTTP surface.
package envelope
