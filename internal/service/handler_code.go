package service

import (
	"context"
	"strings"

	"github.com/weiawesome/hybrid-relay/internal/audit"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

func (h *eventHandler) VisitCodeJoin(ctx context.Context, e *domain.CodeJoinRequest) error {
	s := h.svc
	session, err := s.loadCodeSession(ctx, e.SessionID)
	if err != nil {
		return err
	}
	if !session.CanView(h.userID()) {
		return domain.Forbidden("Not authorized to view this code session")
	}

	s.hub.JoinRoom(h.client, domain.CodeRoom(e.SessionID))
	s.reply(ctx, h.client, domain.EventCodeSessionState, domain.CodeSessionStateMessage{
		SessionID: session.ID,
		Code:      session.Code,
		Language:  session.Language,
		Version:   session.Version,
	})
	return nil
}

func (h *eventHandler) VisitCodeLeave(ctx context.Context, e *domain.CodeLeaveRequest) error {
	h.svc.hub.LeaveRoom(h.client, domain.CodeRoom(e.SessionID))
	return nil
}

// VisitCodeChange relays the change before saving, so collaborators see it
// even when persistence fails.
func (h *eventHandler) VisitCodeChange(ctx context.Context, e *domain.CodeChangeRequest) error {
	s := h.svc
	session, err := s.loadCodeSession(ctx, e.SessionID)
	if err != nil {
		return err
	}
	if !session.CanEdit(h.userID()) {
		return domain.Forbidden("Not authorized to edit this code session")
	}

	s.toRoom(ctx, domain.CodeRoom(e.SessionID), domain.EventCodeChange, domain.CodeChangeMessage{
		UserID:   h.userID(),
		Username: h.username(),
		Code:     e.Code,
		Position: e.Position,
	}, h.client.ID)

	if !e.Save {
		return nil
	}

	updated, err := s.codeSessions.UpdateCode(ctx, e.SessionID, e.Code, h.userID())
	if err != nil {
		return err
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldSessionID, e.SessionID).Str("version", updated.Version).Msg("code saved")
	audit.LogWithDetail(ctx, audit.ActionCodeSave, h.userID(), e.SessionID, updated.Version, "code session saved")
	return nil
}

func (h *eventHandler) VisitCodeSuggestion(ctx context.Context, e *domain.CodeSuggestionRequest) error {
	h.svc.toRoom(ctx, domain.CodeRoom(e.SessionID), domain.EventCodeSuggestion, domain.CodeSuggestionMessage{
		UserID:     h.userID(),
		Username:   h.username(),
		Suggestion: strings.TrimSpace(e.Suggestion),
		LineStart:  e.LineStart,
		LineEnd:    e.LineEnd,
		Timestamp:  h.svc.now(),
	}, "")
	return nil
}

func (h *eventHandler) VisitCodeVote(ctx context.Context, e *domain.CodeVoteRequest) error {
	h.svc.toRoom(ctx, domain.CodeRoom(e.SessionID), domain.EventCodeVote, domain.CodeVoteMessage{
		SuggestionID: e.SuggestionID,
		UserID:       h.userID(),
		Username:     h.username(),
		VoteType:     e.VoteType,
		Timestamp:    h.svc.now(),
	}, "")
	return nil
}
