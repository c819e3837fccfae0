package dispatch

// SendResult carries delivery metadata reported by the message service.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageId string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sender dispatches a templated message to a phone number. Configured
// reports whether credentials are present; the validator uses it to warn
// on journeys that send messages without a usable channel.
type Sender interface {
	SendTemplatedMessage(to string, template string, language string, components map[string]string) (*SendResult, error)
	Configured() bool
}
