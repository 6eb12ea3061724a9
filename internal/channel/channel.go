// internal/channel/channel.go
package channel

import "context"

// Payload is the channel-specific message shape built by the sender.
// Exactly one of Text / MediaURL drives the send depending on Type.
type Payload struct {
	Type     string `json:"type"` // text, image, document
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Channel is the external chat-messaging abstraction. This engine never
// manages handshakes or reconnection; it only observes connectivity and
// invokes Send.
type Channel interface {
	IsConnected(sessionID string) bool
	Send(ctx context.Context, sessionID, destination string, p Payload) (messageID string, err error)
}
