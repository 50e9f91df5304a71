package config

import (
	"os"
	"strings"
)

// OutboxDispatcherDisabled turns off the background lifecycle-event
// dispatcher. Events still accumulate in the outbox table and can be
// drained once the dispatcher is re-enabled.
//
// Set via env:
// - OUTBOX_DISPATCHER_DISABLED=true
func OutboxDispatcherDisabled() bool {
	return boolFromEnv("OUTBOX_DISPATCHER_DISABLED")
}

// QueueCacheDisabled bypasses the Redis queue-state cache so every
// queue-destination read hits MySQL. Useful when Redis is unavailable
// in a dev environment.
//
// Set via env:
// - QUEUE_CACHE_DISABLED=true
func QueueCacheDisabled() bool {
	return boolFromEnv("QUEUE_CACHE_DISABLED")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
