package service

import (
	"context"
	"errors"

	"github.com/weiawesome/hybrid-relay/internal/audit"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/kafka"
	"github.com/weiawesome/hybrid-relay/internal/registry"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

func (h *eventHandler) VisitStartBroadcast(ctx context.Context, e *domain.StartBroadcastRequest) error {
	s := h.svc
	stream, err := s.loadStream(ctx, e.StreamID)
	if err != nil {
		return err
	}
	if !stream.IsOwnedBy(h.userID()) {
		return domain.Forbidden("Only stream owner can broadcast")
	}

	if !stream.IsLive() {
		if err := s.streams.Start(ctx, e.StreamID); err != nil {
			return err
		}
	}

	// Joined before registering, so viewers that find the entry reach us.
	broadcastRoom := domain.BroadcastRoom(e.StreamID)
	s.hub.JoinRoom(h.client, broadcastRoom)

	prev, err := s.registry.Register(ctx, registry.Entry{
		StreamID:                e.StreamID,
		BroadcasterUserID:       h.userID(),
		BroadcasterConnectionID: h.client.ID,
		InstanceID:              s.instanceID,
		StartedAt:               s.now(),
	})
	if err != nil {
		s.hub.LeaveRoom(h.client, broadcastRoom)
		if errors.Is(err, registry.ErrAlreadyRegistered) {
			return domain.AlreadyStreaming("Stream already has an active broadcaster")
		}
		return err
	}

	l := log.Ctx(ctx)
	if prev != nil && prev.BroadcasterConnectionID != h.client.ID {
		// Only local orphans can be dropped; remote ones leave on disconnect.
		local := s.hub.InRoom(prev.BroadcasterConnectionID, broadcastRoom)
		s.hub.LeaveRoomByID(prev.BroadcasterConnectionID, broadcastRoom)
		l.Warn().
			Str(log.FieldStreamID, e.StreamID).
			Str("previous_conn_id", prev.BroadcasterConnectionID).
			Bool("previous_local", local).
			Msg("broadcaster replaced")
	}

	s.toRoom(ctx, domain.StreamRoom(e.StreamID), domain.EventBroadcastStarted, domain.BroadcastStartedMessage{
		StreamID:      e.StreamID,
		BroadcasterID: h.userID(),
	}, "")

	if err := s.producer.ProduceBroadcastStarted(ctx, e.StreamID, h.userID()); err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, e.StreamID).Msg("failed to publish broadcast_started")
	}

	audit.Log(ctx, audit.ActionBroadcastStart, h.userID(), e.StreamID, "broadcast started")
	return nil
}

func (h *eventHandler) VisitJoinStream(ctx context.Context, e *domain.JoinStreamRequest) error {
	s := h.svc
	stream, err := s.loadStream(ctx, e.StreamID)
	if err != nil {
		return err
	}
	if !stream.IsLive() {
		return domain.BadRequest("Stream is not live")
	}

	entry, err := s.registry.Lookup(ctx, e.StreamID)
	if err != nil {
		return err
	}
	if entry == nil {
		return domain.NotFound("No active broadcaster for this stream")
	}

	if _, err := s.streams.AddViewer(ctx, e.StreamID, h.userID()); err != nil {
		return err
	}
	s.hub.JoinRoom(h.client, domain.StreamRoom(e.StreamID))

	s.toRoom(ctx, domain.BroadcastRoom(e.StreamID), domain.EventViewerJoined, domain.ViewerJoinedMessage{
		StreamID:       e.StreamID,
		ViewerID:       h.userID(),
		ViewerSocketID: h.client.ID,
	}, "")

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldStreamID, e.StreamID).Msg("joined stream as viewer")
	return nil
}

// VisitSignal forwards the payload verbatim. An absent target is not reported.
func (h *eventHandler) VisitSignal(ctx context.Context, e *domain.SignalRequest) error {
	s := h.svc
	payload, err := domain.Encode(domain.EventSignal, domain.SignalMessage{
		StreamID:   e.StreamID,
		Signal:     e.Signal,
		FromID:     h.client.ID,
		FromUserID: h.userID(),
	})
	if err != nil {
		return err
	}
	if err := s.relay.ToConnection(ctx, e.TargetID, payload); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("target_id", e.TargetID).Msg("failed to relay signal")
	}
	return nil
}

func (h *eventHandler) VisitEndBroadcast(ctx context.Context, e *domain.EndBroadcastRequest) error {
	s := h.svc
	stream, err := s.loadStream(ctx, e.StreamID)
	if err != nil {
		return err
	}
	if !stream.IsOwnedBy(h.userID()) {
		return domain.Forbidden("Only stream owner can end broadcast")
	}

	if err := s.registry.Remove(ctx, e.StreamID); err != nil {
		return err
	}
	s.hub.LeaveRoom(h.client, domain.BroadcastRoom(e.StreamID))

	s.finishBroadcast(ctx, e.StreamID, h.userID(), kafka.ReasonExplicit)
	return nil
}
