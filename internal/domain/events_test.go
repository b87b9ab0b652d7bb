package domain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_StreamJoinAcceptsBothShapes(t *testing.T) {
	for _, raw := range []string{
		`{"type":"stream:join","data":"s1"}`,
		`{"type":"stream:join","data":{"streamId":"s1"}}`,
	} {
		event, err := DecodeEvent([]byte(raw))
		require.NoError(t, err, raw)
		join, ok := event.(*StreamJoinRequest)
		require.True(t, ok)
		assert.Equal(t, "s1", join.StreamID)
		assert.Equal(t, EventStreamJoin, event.Name())
	}
}

func TestDecodeEvent_Signal(t *testing.T) {
	raw := `{"type":"webrtc:signal","data":{"streamId":"s1","targetId":"c2","signal":{"sdp":"v=0","type":"offer"}}}`
	event, err := DecodeEvent([]byte(raw))
	require.NoError(t, err)

	sig := event.(*SignalRequest)
	assert.Equal(t, "c2", sig.TargetID)
	assert.JSONEq(t, `{"sdp":"v=0","type":"offer"}`, string(sig.Signal))
}

func TestDecodeEvent_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{"not json", `{`, "invalid message format"},
		{"unknown type", `{"type":"stream:explode","data":{}}`, "unknown event type: stream:explode"},
		{"wrong payload type", `{"type":"chat:message","data":[1,2]}`, "invalid payload for chat:message"},
		{"empty chat", `{"type":"chat:message","data":{"streamId":"s1","message":"   "}}`, "Message cannot be empty"},
		{"missing stream", `{"type":"stream:join","data":""}`, "streamId is required"},
		{"empty suggestion", `{"type":"code:suggestion","data":{"sessionId":"c1","suggestion":""}}`, "Suggestion cannot be empty"},
		{"bad vote", `{"type":"code:vote","data":{"sessionId":"c1","voteType":"sideways"}}`, "Invalid vote type"},
		{"poll without options", `{"type":"stream:poll_create","data":{"streamId":"s1","question":"q","options":[]}}`, "Invalid poll data"},
		{"poll duration too long", `{"type":"stream:poll_create","data":{"streamId":"s1","question":"q","options":["a"],"duration":1e11}}`, "Invalid poll data"},
		{"poll negative duration", `{"type":"stream:poll_create","data":{"streamId":"s1","question":"q","options":["a"],"duration":-1}}`, "Invalid poll data"},
		{"poll vote without poll", `{"type":"stream:poll_vote","data":{"streamId":"s1"}}`, "pollId is required"},
		{"signal without target", `{"type":"webrtc:signal","data":{"streamId":"s1","signal":{}}}`, "targetId is required"},
		{"signal without payload", `{"type":"webrtc:signal","data":{"streamId":"s1","targetId":"c2"}}`, "signal is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tt.raw))
			require.Error(t, err)

			var derr *Error
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, ErrCodeBadRequest, derr.Code)
			assert.Equal(t, tt.message, derr.Message)
		})
	}
}

func TestDecodeEvent_PingWithoutData(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.IsType(t, &PingRequest{}, event)
}

type recordingVisitor struct {
	EventVisitor
	seen string
}

func (r *recordingVisitor) VisitCodeVote(ctx context.Context, e *CodeVoteRequest) error {
	r.seen = e.SuggestionID
	return nil
}

func TestEvent_AcceptDispatchesToVisitor(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"code:vote","data":{"sessionId":"c1","suggestionId":"sg","voteType":"up"}}`))
	require.NoError(t, err)

	v := &recordingVisitor{}
	require.NoError(t, event.Accept(context.Background(), v))
	assert.Equal(t, "sg", v.seen)
}

func TestEncode(t *testing.T) {
	raw, err := Encode(EventViewerCount, ViewerCountMessage{Count: 3})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, EventViewerCount, env.Type)
	assert.JSONEq(t, `{"count":3}`, string(env.Data))
}

func TestAsError(t *testing.T) {
	assert.Equal(t, ErrCodeForbidden, AsError(Forbidden("no"), "x").Code)

	wrapped := AsError(errors.New("db down"), "Error joining stream")
	assert.Equal(t, ErrCodeInternalError, wrapped.Code)
	assert.Equal(t, "Error joining stream", wrapped.Message)
	assert.EqualError(t, errors.Unwrap(wrapped), "db down")
}
