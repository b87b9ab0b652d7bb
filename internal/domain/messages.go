package domain

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventStreamJoin     = "stream:join"
	EventStreamLeave    = "stream:leave"
	EventChatMessage    = "chat:message"
	EventCodeJoin       = "code:join"
	EventCodeLeave      = "code:leave"
	EventCodeChange     = "code:change"
	EventCodeSuggestion = "code:suggestion"
	EventCodeVote       = "code:vote"
	EventPollCreate     = "stream:poll_create"
	EventPollVote       = "stream:poll_vote"
	EventStartBroadcast = "webrtc:start_broadcast"
	EventJoinStream     = "webrtc:join_stream"
	EventSignal         = "webrtc:signal"
	EventEndBroadcast   = "webrtc:end_broadcast"
	EventPing           = "ping"
)

// Outbound event names. Events relayed unchanged reuse the inbound name.
const (
	EventViewerJoin       = "stream:viewer_join"
	EventViewerLeave      = "stream:viewer_leave"
	EventViewerCount      = "stream:viewer_count"
	EventPollCreated      = "stream:poll_created"
	EventPollEnded        = "stream:poll_ended"
	EventBroadcastStarted = "webrtc:broadcast_started"
	EventViewerJoined     = "webrtc:viewer_joined"
	EventBroadcastEnded   = "webrtc:broadcast_ended"
	EventCodeSessionState = "code:session_state"
	EventPong             = "pong"
	EventError            = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage is a frame about to be encoded for delivery.
type OutboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Encode renders a server frame.
func Encode(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(OutboundMessage{Type: eventType, Data: data})
}

// Server -> Client payloads

// ViewerPresenceMessage announces a viewer entering or leaving a stream room.
type ViewerPresenceMessage struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ViewerCountMessage carries the persisted viewer count of a stream.
type ViewerCountMessage struct {
	Count int `json:"count"`
}

// ChatMessage is a chat line relayed to a stream room.
type ChatMessage struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CodeChangeMessage relays an editor change to the other session members.
type CodeChangeMessage struct {
	UserID   string          `json:"userId"`
	Username string          `json:"username"`
	Code     string          `json:"code"`
	Position json.RawMessage `json:"position"`
}

// CodeSuggestionMessage relays a suggestion to the whole code room.
type CodeSuggestionMessage struct {
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Suggestion string    `json:"suggestion"`
	LineStart  int       `json:"lineStart"`
	LineEnd    int       `json:"lineEnd"`
	Timestamp  time.Time `json:"timestamp"`
}

// CodeVoteMessage relays a vote on a suggestion.
type CodeVoteMessage struct {
	SuggestionID string    `json:"suggestionId"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	VoteType     string    `json:"voteType"`
	Timestamp    time.Time `json:"timestamp"`
}

// CodeSessionStateMessage is the snapshot sent to a connection joining a code room.
type CodeSessionStateMessage struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
	Language  string `json:"language"`
	Version   string `json:"version"`
}

// PollEndedMessage tells a stream room that a poll closed.
type PollEndedMessage struct {
	PollID string `json:"pollId"`
}

// PollVoteMessage relays a poll vote.
type PollVoteMessage struct {
	PollID    string    `json:"pollId"`
	OptionID  string    `json:"optionId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// BroadcastStartedMessage tells a stream room that its broadcaster is live.
type BroadcastStartedMessage struct {
	StreamID      string `json:"streamId"`
	BroadcasterID string `json:"broadcasterId"`
}

// ViewerJoinedMessage tells the broadcaster which connection to negotiate with.
type ViewerJoinedMessage struct {
	StreamID       string `json:"streamId"`
	ViewerID       string `json:"viewerId"`
	ViewerSocketID string `json:"viewerSocketId"`
}

// SignalMessage is a forwarded signaling payload.
type SignalMessage struct {
	StreamID   string          `json:"streamId"`
	Signal     json.RawMessage `json:"signal"`
	FromID     string          `json:"fromId"`
	FromUserID string          `json:"fromUserId"`
}

// BroadcastEndedMessage tells a stream room that the broadcast is over.
type BroadcastEndedMessage struct {
	StreamID string `json:"streamId"`
}

// PongMessage answers a ping.
type PongMessage struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMessage is sent to the originating connection only.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
