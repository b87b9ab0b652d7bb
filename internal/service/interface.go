package service

import (
	"context"

	"github.com/weiawesome/hybrid-relay/internal/hub"
)

// RealtimeService handles the events of authenticated connections.
type RealtimeService interface {
	// HandleMessage decodes one inbound frame and runs its handler. Any
	// failure is reported to the client as a single error event.
	HandleMessage(ctx context.Context, client *hub.Client, raw []byte)

	// HandleDisconnect ends every broadcast the client still owns.
	HandleDisconnect(ctx context.Context, client *hub.Client)

	// Stop cancels pending poll timers.
	Stop()
}
