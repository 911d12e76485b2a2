// Package network publishes structured events for connection-level
// occurrences: handshakes, rate limiting, and malformed traffic.
package network

import (
	"context"

	"realms/server/logging"
)

const (
	// EventAuthFailed is emitted when a handshake fails token verification.
	EventAuthFailed logging.EventType = "network.auth_failed"
	// EventRateLimited is emitted when an inbound event is dropped by the token bucket.
	EventRateLimited logging.EventType = "network.rate_limited"
	// EventValidationFailed is emitted when an inbound payload fails schema validation.
	EventValidationFailed logging.EventType = "network.validation_failed"
	// EventIdleTimeout is emitted when a connection is closed for inactivity.
	EventIdleTimeout logging.EventType = "network.idle_timeout"
)

// RateLimitedPayload captures which event tripped the bucket.
type RateLimitedPayload struct {
	Event string `json:"event"`
}

// ValidationFailedPayload captures why a payload was rejected.
type ValidationFailedPayload struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

func AuthFailed(ctx context.Context, pub logging.Publisher, socketID string, reason string) {
	publish(ctx, pub, EventAuthFailed, logging.SeverityWarn, socketID, reason)
}

func RateLimited(ctx context.Context, pub logging.Publisher, userID string, payload RateLimitedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRateLimited,
		Actor:    logging.EntityRef{ID: userID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

func ValidationFailed(ctx context.Context, pub logging.Publisher, userID string, payload ValidationFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventValidationFailed,
		Actor:    logging.EntityRef{ID: userID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

func IdleTimeout(ctx context.Context, pub logging.Publisher, userID string, socketID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventIdleTimeout,
		Actor:    logging.EntityRef{ID: userID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Extra:    map[string]any{"socketId": socketID},
	})
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, socketID string, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    logging.EntityRef{ID: socketID, Kind: logging.EntityKindSocket},
		Severity: severity,
		Category: logging.CategoryNetwork,
		Extra:    map[string]any{"reason": reason},
	})
}
