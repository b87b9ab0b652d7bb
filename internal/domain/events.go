package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Event is a decoded inbound frame. The set of implementations is closed:
// only this package can add one, and every implementation is dispatched
// through EventVisitor, so a new event without a handler fails to compile.
type Event interface {
	Name() string
	Accept(ctx context.Context, v EventVisitor) error
	validate() error
}

// EventVisitor handles every inbound event type.
type EventVisitor interface {
	VisitStreamJoin(ctx context.Context, e *StreamJoinRequest) error
	VisitStreamLeave(ctx context.Context, e *StreamLeaveRequest) error
	VisitChatMessage(ctx context.Context, e *ChatMessageRequest) error
	VisitCodeJoin(ctx context.Context, e *CodeJoinRequest) error
	VisitCodeLeave(ctx context.Context, e *CodeLeaveRequest) error
	VisitCodeChange(ctx context.Context, e *CodeChangeRequest) error
	VisitCodeSuggestion(ctx context.Context, e *CodeSuggestionRequest) error
	VisitCodeVote(ctx context.Context, e *CodeVoteRequest) error
	VisitPollCreate(ctx context.Context, e *PollCreateRequest) error
	VisitPollVote(ctx context.Context, e *PollVoteRequest) error
	VisitStartBroadcast(ctx context.Context, e *StartBroadcastRequest) error
	VisitJoinStream(ctx context.Context, e *JoinStreamRequest) error
	VisitSignal(ctx context.Context, e *SignalRequest) error
	VisitEndBroadcast(ctx context.Context, e *EndBroadcastRequest) error
	VisitPing(ctx context.Context, e *PingRequest) error
}

// StreamRef accepts either a bare stream id string or {"streamId": "..."}.
type StreamRef struct {
	StreamID string `json:"streamId"`
}

func (r *StreamRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.StreamID)
	}
	type plain StreamRef
	return json.Unmarshal(data, (*plain)(r))
}

// Client -> Server events

// StreamJoinRequest enters a stream room as a viewer.
type StreamJoinRequest struct{ StreamRef }

// StreamLeaveRequest leaves a stream room.
type StreamLeaveRequest struct{ StreamRef }

// ChatMessageRequest posts a chat line to a stream room.
type ChatMessageRequest struct {
	StreamID string `json:"streamId"`
	Message  string `json:"message"`
}

// CodeJoinRequest subscribes to a code session room.
type CodeJoinRequest struct {
	SessionID string `json:"sessionId"`
}

// CodeLeaveRequest unsubscribes from a code session room.
type CodeLeaveRequest struct {
	SessionID string `json:"sessionId"`
}

// CodeChangeRequest carries an editor change. Save persists Code as a new version.
type CodeChangeRequest struct {
	SessionID string          `json:"sessionId"`
	Code      string          `json:"code"`
	Position  json.RawMessage `json:"position"`
	Save      bool            `json:"save"`
}

// CodeSuggestionRequest proposes a change to a line range.
type CodeSuggestionRequest struct {
	SessionID  string `json:"sessionId"`
	Suggestion string `json:"suggestion"`
	LineStart  int    `json:"lineStart"`
	LineEnd    int    `json:"lineEnd"`
}

// Vote directions.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// CodeVoteRequest votes on a suggestion.
type CodeVoteRequest struct {
	SessionID    string `json:"sessionId"`
	SuggestionID string `json:"suggestionId"`
	VoteType     string `json:"voteType"`
}

// PollCreateRequest opens a poll. Duration is in seconds; zero means no end timer.
type PollCreateRequest struct {
	StreamID string   `json:"streamId"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration float64  `json:"duration"`
}

// PollVoteRequest votes on a poll option.
type PollVoteRequest struct {
	StreamID string `json:"streamId"`
	PollID   string `json:"pollId"`
	OptionID string `json:"optionId"`
}

// StartBroadcastRequest registers the sender as a stream's broadcaster.
type StartBroadcastRequest struct {
	StreamID string `json:"streamId"`
}

// JoinStreamRequest asks the broadcaster for a media connection.
type JoinStreamRequest struct {
	StreamID string `json:"streamId"`
}

// SignalRequest forwards an opaque signaling payload to TargetID.
type SignalRequest struct {
	StreamID string          `json:"streamId"`
	Signal   json.RawMessage `json:"signal"`
	TargetID string          `json:"targetId"`
}

// EndBroadcastRequest ends a broadcast.
type EndBroadcastRequest struct {
	StreamID string `json:"streamId"`
}

// PingRequest is an application level keepalive.
type PingRequest struct{}

func (e *StreamJoinRequest) Name() string     { return EventStreamJoin }
func (e *StreamLeaveRequest) Name() string    { return EventStreamLeave }
func (e *ChatMessageRequest) Name() string    { return EventChatMessage }
func (e *CodeJoinRequest) Name() string       { return EventCodeJoin }
func (e *CodeLeaveRequest) Name() string      { return EventCodeLeave }
func (e *CodeChangeRequest) Name() string     { return EventCodeChange }
func (e *CodeSuggestionRequest) Name() string { return EventCodeSuggestion }
func (e *CodeVoteRequest) Name() string       { return EventCodeVote }
func (e *PollCreateRequest) Name() string     { return EventPollCreate }
func (e *PollVoteRequest) Name() string       { return EventPollVote }
func (e *StartBroadcastRequest) Name() string { return EventStartBroadcast }
func (e *JoinStreamRequest) Name() string     { return EventJoinStream }
func (e *SignalRequest) Name() string         { return EventSignal }
func (e *EndBroadcastRequest) Name() string   { return EventEndBroadcast }
func (e *PingRequest) Name() string           { return EventPing }

func (e *StreamJoinRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitStreamJoin(ctx, e)
}

func (e *StreamLeaveRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitStreamLeave(ctx, e)
}

func (e *ChatMessageRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitChatMessage(ctx, e)
}

func (e *CodeJoinRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitCodeJoin(ctx, e)
}

func (e *CodeLeaveRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitCodeLeave(ctx, e)
}

func (e *CodeChangeRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitCodeChange(ctx, e)
}

func (e *CodeSuggestionRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitCodeSuggestion(ctx, e)
}

func (e *CodeVoteRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitCodeVote(ctx, e)
}

func (e *PollCreateRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitPollCreate(ctx, e)
}

func (e *PollVoteRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitPollVote(ctx, e)
}

func (e *StartBroadcastRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitStartBroadcast(ctx, e)
}

func (e *JoinStreamRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitJoinStream(ctx, e)
}

func (e *SignalRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitSignal(ctx, e)
}

func (e *EndBroadcastRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitEndBroadcast(ctx, e)
}

func (e *PingRequest) Accept(ctx context.Context, v EventVisitor) error {
	return v.VisitPing(ctx, e)
}

func requireField(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return BadRequest(name + " is required")
	}
	return nil
}

func (e *StreamJoinRequest) validate() error     { return requireField(e.StreamID, "streamId") }
func (e *StreamLeaveRequest) validate() error    { return requireField(e.StreamID, "streamId") }
func (e *CodeJoinRequest) validate() error       { return requireField(e.SessionID, "sessionId") }
func (e *CodeLeaveRequest) validate() error      { return requireField(e.SessionID, "sessionId") }
func (e *CodeChangeRequest) validate() error     { return requireField(e.SessionID, "sessionId") }
func (e *StartBroadcastRequest) validate() error { return requireField(e.StreamID, "streamId") }
func (e *JoinStreamRequest) validate() error     { return requireField(e.StreamID, "streamId") }
func (e *EndBroadcastRequest) validate() error   { return requireField(e.StreamID, "streamId") }
func (e *PingRequest) validate() error           { return nil }

func (e *ChatMessageRequest) validate() error {
	if err := requireField(e.StreamID, "streamId"); err != nil {
		return err
	}
	if strings.TrimSpace(e.Message) == "" {
		return BadRequest("Message cannot be empty")
	}
	return nil
}

func (e *CodeSuggestionRequest) validate() error {
	if err := requireField(e.SessionID, "sessionId"); err != nil {
		return err
	}
	if strings.TrimSpace(e.Suggestion) == "" {
		return BadRequest("Suggestion cannot be empty")
	}
	return nil
}

func (e *CodeVoteRequest) validate() error {
	if err := requireField(e.SessionID, "sessionId"); err != nil {
		return err
	}
	if e.VoteType != VoteUp && e.VoteType != VoteDown {
		return BadRequest("Invalid vote type")
	}
	return nil
}

func (e *PollCreateRequest) validate() error {
	if err := requireField(e.StreamID, "streamId"); err != nil {
		return err
	}
	if strings.TrimSpace(e.Question) == "" || len(e.Options) == 0 {
		return BadRequest("Invalid poll data")
	}
	if e.Duration < 0 || e.Duration > MaxPollDuration.Seconds() {
		return BadRequest("Invalid poll data")
	}
	for _, opt := range e.Options {
		if strings.TrimSpace(opt) == "" {
			return BadRequest("Invalid poll data")
		}
	}
	return nil
}

// EndAfter returns the poll's duration. Validated requests never overflow.
func (e *PollCreateRequest) EndAfter() time.Duration {
	return time.Duration(e.Duration * float64(time.Second))
}

func (e *PollVoteRequest) validate() error {
	if err := requireField(e.StreamID, "streamId"); err != nil {
		return err
	}
	return requireField(e.PollID, "pollId")
}

func (e *SignalRequest) validate() error {
	if err := requireField(e.TargetID, "targetId"); err != nil {
		return err
	}
	if len(bytes.TrimSpace(e.Signal)) == 0 || string(bytes.TrimSpace(e.Signal)) == "null" {
		return BadRequest("signal is required")
	}
	return nil
}

var eventFactories = map[string]func() Event{
	EventStreamJoin:     func() Event { return &StreamJoinRequest{} },
	EventStreamLeave:    func() Event { return &StreamLeaveRequest{} },
	EventChatMessage:    func() Event { return &ChatMessageRequest{} },
	EventCodeJoin:       func() Event { return &CodeJoinRequest{} },
	EventCodeLeave:      func() Event { return &CodeLeaveRequest{} },
	EventCodeChange:     func() Event { return &CodeChangeRequest{} },
	EventCodeSuggestion: func() Event { return &CodeSuggestionRequest{} },
	EventCodeVote:       func() Event { return &CodeVoteRequest{} },
	EventPollCreate:     func() Event { return &PollCreateRequest{} },
	EventPollVote:       func() Event { return &PollVoteRequest{} },
	EventStartBroadcast: func() Event { return &StartBroadcastRequest{} },
	EventJoinStream:     func() Event { return &JoinStreamRequest{} },
	EventSignal:         func() Event { return &SignalRequest{} },
	EventEndBroadcast:   func() Event { return &EndBroadcastRequest{} },
	EventPing:           func() Event { return &PingRequest{} },
}

// DecodeEvent parses and validates an inbound frame. Every failure is a
// BAD_REQUEST *Error.
func DecodeEvent(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, BadRequest("invalid message format")
	}

	factory, ok := eventFactories[env.Type]
	if !ok {
		return nil, BadRequest("unknown event type: " + env.Type)
	}

	event := factory()
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, event); err != nil {
			return nil, BadRequest("invalid payload for " + env.Type)
		}
	}

	if err := event.validate(); err != nil {
		return nil, err
	}
	return event, nil
}
