package operations

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// broadcasterAware is implemented by steps that report intermediate progress
type broadcasterAware interface {
	SetBroadcaster(b *StatusBroadcaster)
}
