package types

import "time"

// Channel frame vocabulary. One websocket endpoint carries every session's
// traffic; frames are routed by topic ("chat/{gameId}" inbound,
// "chat-send/{gameId}" outbound).
const (
	FrameSubscribe = "subscribe"
	FramePublish   = "publish"
	FrameMessage   = "message"
)

// Frame is the JSON envelope exchanged on the channel websocket.
//
// Client -> Server
//
//	subscribe: topic
//	publish:   topic, body
//
// Server -> Client
//
//	message:   topic, body
type Frame struct {
	Type  string    `json:"type"`
	Topic string    `json:"topic,omitempty"`
	Body  *ChatBody `json:"body,omitempty"`
}

// ChatBody is the transport shape of one chat message.
type ChatBody struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// ChatMessage is a chat entry as the client keeps it: the wire body plus the
// local receipt time. The log is append-only and ordered by arrival, not by
// any global sequence.
type ChatMessage struct {
	Sender    string
	Content   string
	Timestamp time.Time
}

// ChatTopic is the subscription topic for a session's inbound chat.
func ChatTopic(gameID string) string { return "chat/" + gameID }

// ChatSendTopic is the publish destination for a session's outbound chat.
func ChatSendTopic(gameID string) string { return "chat-send/" + gameID }
