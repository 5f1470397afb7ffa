package rpcclient

import "context"

// WSClient defines the node log subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to transaction logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter selects which transactions are delivered.
type LogsFilter struct {
	// Mentions keeps transactions that mention any of these keys.
	// Empty means all transactions.
	Mentions []string
}

// LogNotification is one executed transaction delivered to a subscriber.
type LogNotification struct {
	Signature string
	Slot      uint64
	Logs      []string
	Err       interface{}
}
