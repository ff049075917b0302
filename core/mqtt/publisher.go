package mqtt

// Publisher sends board updates to a message broker.
type Publisher interface {
	// Publish delivers payload on topic. Retained messages are kept by the
	// broker for late subscribers.
	Publish(topic string, payload []byte, retained bool) error
	Disconnect()
}
