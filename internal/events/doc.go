// Package events publishes activity lifecycle events to a RabbitMQ topic
// exchange so downstream consumers can observe conversation traffic
// without polling the gateway. Publishing is best-effort.
package events
