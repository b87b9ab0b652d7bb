package audit

import (
	"context"

	"github.com/weiawesome/hybrid-relay/pkg/log"
)

// Audit actions emitted by the realtime relay.
const (
	ActionBroadcastStart = "broadcast.start"
	ActionBroadcastEnd   = "broadcast.end"
	ActionCodeSave       = "code.save"
	ActionPollCreate     = "poll.create"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldTarget = "target"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, target, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTarget, target).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail field.
func LogWithDetail(ctx context.Context, action, userID, target, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTarget, target).
		Str(FieldDetail, detail).
		Msg(msg)
}
