package service

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/hybrid-relay/internal/audit"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/hub"
	"github.com/weiawesome/hybrid-relay/internal/kafka"
	"github.com/weiawesome/hybrid-relay/internal/registry"
	"github.com/weiawesome/hybrid-relay/internal/relay"
	"github.com/weiawesome/hybrid-relay/internal/repository"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

// Client-facing messages for failures that carry no detail of their own.
var failureMessages = map[string]string{
	domain.EventStreamJoin:     "Error joining stream",
	domain.EventStreamLeave:    "Error leaving stream",
	domain.EventChatMessage:    "Error sending message",
	domain.EventCodeJoin:       "Error joining code session",
	domain.EventCodeLeave:      "Error leaving code session",
	domain.EventCodeChange:     "Error updating code",
	domain.EventCodeSuggestion: "Error sending suggestion",
	domain.EventCodeVote:       "Error processing vote",
	domain.EventPollCreate:     "Error creating poll",
	domain.EventPollVote:       "Error processing poll vote",
	domain.EventStartBroadcast: "Error starting broadcast",
	domain.EventJoinStream:     "Error joining stream",
	domain.EventSignal:         "Error handling WebRTC signal",
	domain.EventEndBroadcast:   "Error ending broadcast",
	domain.EventPing:           "Error handling ping",
}

const defaultFailureMessage = "Error processing message"

type realtimeService struct {
	hub          *hub.Hub
	relay        relay.Relay
	registry     registry.Registry
	streams      repository.StreamRepository
	codeSessions repository.CodeSessionRepository
	producer     kafka.BroadcastEventProducer
	polls        *PollScheduler
	instanceID   string
	now          func() time.Time
}

// NewRealtimeService creates a RealtimeService. polls is owned by the caller
// and stopped through Stop.
func NewRealtimeService(
	h *hub.Hub,
	r relay.Relay,
	reg registry.Registry,
	streams repository.StreamRepository,
	codeSessions repository.CodeSessionRepository,
	producer kafka.BroadcastEventProducer,
	polls *PollScheduler,
	instanceID string,
) RealtimeService {
	if producer == nil {
		producer = kafka.NoopProducer{}
	}
	if polls == nil {
		polls = NewPollScheduler()
	}
	return &realtimeService{
		hub:          h,
		relay:        r,
		registry:     reg,
		streams:      streams,
		codeSessions: codeSessions,
		producer:     producer,
		polls:        polls,
		instanceID:   instanceID,
		now:          time.Now,
	}
}

func (s *realtimeService) HandleMessage(ctx context.Context, c *hub.Client, raw []byte) {
	event, err := domain.DecodeEvent(raw)
	if err != nil {
		s.sendError(ctx, c, err, defaultFailureMessage)
		return
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldEvent, event.Name()).Msg("event received")

	if err := event.Accept(ctx, &eventHandler{svc: s, client: c}); err != nil {
		fallback, ok := failureMessages[event.Name()]
		if !ok {
			fallback = defaultFailureMessage
		}
		s.sendError(ctx, c, err, fallback)
	}
}

func (s *realtimeService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	l := log.Ctx(ctx)

	entries, err := s.registry.ListByConnection(ctx, c.ID)
	if err != nil {
		l.Error().Err(err).Msg("failed to list broadcasts of disconnected client")
		return
	}

	for _, entry := range entries {
		removed, err := s.registry.RemoveIfOwned(ctx, entry.StreamID, c.ID)
		if err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, entry.StreamID).Msg("failed to remove broadcaster entry")
			continue
		}
		if !removed {
			// Another connection took the stream over.
			continue
		}
		s.finishBroadcast(ctx, entry.StreamID, c.Session.UserID(), kafka.ReasonDisconnect)
		l.Info().Str(log.FieldStreamID, entry.StreamID).Msg("broadcaster disconnected, stream ended")
	}
}

func (s *realtimeService) Stop() {
	s.polls.Stop()
}

// finishBroadcast runs the shared tail of end_broadcast and broadcaster
// disconnect once the registry entry is gone.
func (s *realtimeService) finishBroadcast(ctx context.Context, streamID, userID, reason string) {
	l := log.Ctx(ctx)

	if err := s.streams.End(ctx, streamID); err != nil && !errors.Is(err, domain.ErrStreamNotFound) {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to mark stream ended")
	}

	// Running polls close with the stream instead of waiting for timers.
	for _, poll := range s.polls.CancelStream(streamID) {
		s.toRoom(ctx, domain.StreamRoom(streamID), domain.EventPollEnded,
			domain.PollEndedMessage{PollID: poll.ID}, "")
		l.Debug().Str(log.FieldStreamID, streamID).Str("poll_id", poll.ID).Msg("poll ended with stream")
	}

	s.toRoom(ctx, domain.StreamRoom(streamID), domain.EventBroadcastEnded,
		domain.BroadcastEndedMessage{StreamID: streamID}, "")

	if err := s.producer.ProduceBroadcastStopped(ctx, streamID, userID, reason); err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to publish broadcast_stopped")
	}

	audit.LogWithDetail(ctx, audit.ActionBroadcastEnd, userID, streamID, reason, "broadcast ended")
}

func (s *realtimeService) endPoll(poll *domain.Poll) {
	ctx := context.Background()
	s.toRoom(ctx, domain.StreamRoom(poll.StreamID), domain.EventPollEnded,
		domain.PollEndedMessage{PollID: poll.ID}, "")

	l := log.L()
	l.Info().Str(log.FieldStreamID, poll.StreamID).Str("poll_id", poll.ID).Msg("poll ended")
}

// toRoom encodes and relays a frame. Delivery failures are logged only.
func (s *realtimeService) toRoom(ctx context.Context, room, eventType string, data interface{}, exclude string) {
	l := log.Ctx(ctx)

	payload, err := domain.Encode(eventType, data)
	if err != nil {
		l.Error().Err(err).Str(log.FieldEvent, eventType).Msg("failed to encode message")
		return
	}
	if err := s.relay.ToRoom(ctx, room, payload, exclude); err != nil {
		l.Warn().Err(err).Str(log.FieldRoom, room).Str(log.FieldEvent, eventType).Msg("failed to relay message")
	}
}

// reply sends a frame to the client only.
func (s *realtimeService) reply(ctx context.Context, c *hub.Client, eventType string, data interface{}) {
	payload, err := domain.Encode(eventType, data)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldEvent, eventType).Msg("failed to encode message")
		return
	}
	s.hub.SendToClient(c.ID, payload)
}

func (s *realtimeService) sendError(ctx context.Context, c *hub.Client, err error, fallback string) {
	derr := domain.AsError(err, fallback)

	l := log.Ctx(ctx)
	if derr.Code == domain.ErrCodeInternalError {
		l.Error().Err(err).Msg("event handling failed")
	} else {
		l.Debug().Str("code", derr.Code).Str("reason", derr.Message).Msg("event rejected")
	}

	s.reply(ctx, c, domain.EventError, derr.ToMessage())
}

func (s *realtimeService) loadStream(ctx context.Context, streamID string) (*domain.Stream, error) {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			return nil, domain.NotFound("Stream not found")
		}
		return nil, err
	}
	return stream, nil
}

func (s *realtimeService) loadCodeSession(ctx context.Context, sessionID string) (*domain.CodeSession, error) {
	session, err := s.codeSessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrCodeSessionNotFound) {
			return nil, domain.NotFound("Code session not found")
		}
		return nil, err
	}
	return session, nil
}
