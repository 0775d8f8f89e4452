package domain

import "time"

// NotificationRequestedEvent carries a fan-out request over the message bus.
type NotificationRequestedEvent struct {
	Request   NotificationRequest `json:"request"`
	Timestamp time.Time           `json:"timestamp"`
}
