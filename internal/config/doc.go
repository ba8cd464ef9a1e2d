// Package config handles configuration loading for greentic-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  default_key: "${GATEWAY_SIGNING_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "30m"
//	ratelimit:
//	  window: "1m"
//	webhook:
//	  timeout: "10s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8980"
//
// Database (empty path selects the in-memory store):
//
//	database:
//	  path: "/var/lib/greentic/gateway.db"
//
// Token signing:
//
//	auth:
//	  default_key: "${GATEWAY_SIGNING_KEY}"
//	  tenant_keys:
//	    "prod:acme": "${ACME_SIGNING_KEY}"
//	  token_ttl: "30m"
//
// Rate limiting (empty redis_url selects the in-process limiter):
//
//	ratelimit:
//	  redis_url: "${REDIS_URL}"
//	  per_scope: 30
//	  window: "1m"
//
// Activity events (empty amqp_url disables publishing):
//
//	events:
//	  amqp_url: "${AMQP_URL}"
//	  exchange: "greentic.messaging"
//
// Platform credentials:
//
//	providers:
//	  webex:
//	    api_base: "https://webexapis.com/v1"
//	    token: "${WEBEX_BOT_TOKEN}"
//	  telegram:
//	    api_base: "https://api.telegram.org"
//	    token: "${TELEGRAM_BOT_TOKEN}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/greentic/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
