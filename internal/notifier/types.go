package notifier

import "time"

// Config controls the async delivery pipeline.
type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

type HistoryItem struct {
	At   time.Time
	Text string
}

// Stats is a point-in-time view for /status.
type Stats struct {
	Armed     int
	Queued    int
	Delivered int
}

// DeliveryEvent is emitted on the event bus for delivery lifecycle events.
type DeliveryEvent struct {
	Key     string    `json:"key"`
	Lead    string    `json:"lead"`
	ChatID  int64     `json:"chat_id"`
	FireAt  time.Time `json:"fire_at"`
	At      time.Time `json:"at"`
	Attempt int       `json:"attempt,omitempty"`
	Error   string    `json:"error,omitempty"`
}
