package service

import (
	"context"
	"errors"
	"strings"

	"github.com/weiawesome/hybrid-relay/internal/audit"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/hub"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

// eventHandler dispatches the events of one client.
type eventHandler struct {
	svc    *realtimeService
	client *hub.Client
}

var _ domain.EventVisitor = (*eventHandler)(nil)

func (h *eventHandler) userID() string   { return h.client.Session.UserID() }
func (h *eventHandler) username() string { return h.client.Session.Username() }

func (h *eventHandler) VisitStreamJoin(ctx context.Context, e *domain.StreamJoinRequest) error {
	s := h.svc
	if _, err := s.loadStream(ctx, e.StreamID); err != nil {
		return err
	}

	count, err := s.streams.AddViewer(ctx, e.StreamID, h.userID())
	if err != nil {
		return err
	}

	room := domain.StreamRoom(e.StreamID)
	s.hub.JoinRoom(h.client, room)

	s.toRoom(ctx, room, domain.EventViewerJoin, domain.ViewerPresenceMessage{
		UserID:   h.userID(),
		Username: h.username(),
	}, h.client.ID)
	s.toRoom(ctx, room, domain.EventViewerCount, domain.ViewerCountMessage{Count: count}, "")

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldStreamID, e.StreamID).Msg("joined stream")
	return nil
}

func (h *eventHandler) VisitStreamLeave(ctx context.Context, e *domain.StreamLeaveRequest) error {
	s := h.svc
	room := domain.StreamRoom(e.StreamID)
	defer s.hub.LeaveRoom(h.client, room)

	count, err := s.streams.RemoveViewer(ctx, e.StreamID, h.userID())
	if err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			return nil
		}
		return err
	}

	s.toRoom(ctx, room, domain.EventViewerLeave, domain.ViewerPresenceMessage{
		UserID:   h.userID(),
		Username: h.username(),
	}, h.client.ID)
	s.toRoom(ctx, room, domain.EventViewerCount, domain.ViewerCountMessage{Count: count}, "")

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldStreamID, e.StreamID).Msg("left stream")
	return nil
}

func (h *eventHandler) VisitChatMessage(ctx context.Context, e *domain.ChatMessageRequest) error {
	h.svc.toRoom(ctx, domain.StreamRoom(e.StreamID), domain.EventChatMessage, domain.ChatMessage{
		UserID:    h.userID(),
		Username:  h.username(),
		Message:   strings.TrimSpace(e.Message),
		Timestamp: h.svc.now(),
	}, "")
	return nil
}

func (h *eventHandler) VisitPollCreate(ctx context.Context, e *domain.PollCreateRequest) error {
	s := h.svc
	stream, err := s.loadStream(ctx, e.StreamID)
	if err != nil {
		return err
	}
	if !stream.IsOwnedBy(h.userID()) {
		return domain.Forbidden("Only stream owner can create polls")
	}

	duration := e.EndAfter()
	poll, err := NewPoll(e.StreamID, e.Question, e.Options, h.userID(), duration, s.now())
	if err != nil {
		return err
	}

	s.toRoom(ctx, domain.StreamRoom(e.StreamID), domain.EventPollCreated, poll, "")

	if duration > 0 {
		s.polls.Schedule(poll, duration, s.endPoll)
	}

	audit.LogWithDetail(ctx, audit.ActionPollCreate, h.userID(), e.StreamID, poll.ID, "poll created")
	return nil
}

func (h *eventHandler) VisitPollVote(ctx context.Context, e *domain.PollVoteRequest) error {
	h.svc.toRoom(ctx, domain.StreamRoom(e.StreamID), domain.EventPollVote, domain.PollVoteMessage{
		PollID:    e.PollID,
		OptionID:  e.OptionID,
		UserID:    h.userID(),
		Username:  h.username(),
		Timestamp: h.svc.now(),
	}, "")
	return nil
}

func (h *eventHandler) VisitPing(ctx context.Context, e *domain.PingRequest) error {
	h.svc.reply(ctx, h.client, domain.EventPong, domain.PongMessage{Timestamp: h.svc.now()})
	return nil
}
