package service

import (
	"context"
	"errors"
	"sync"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/kafka"
	"github.com/weiawesome/hybrid-relay/internal/repository"
)

type fakeStreams struct {
	mu      sync.Mutex
	streams map[string]*domain.Stream
	viewers map[string]map[string]struct{}
	ended   []string

	// viewerErr, when set, fails AddViewer.
	viewerErr error
}

func newFakeStreams(streams ...*domain.Stream) *fakeStreams {
	f := &fakeStreams{
		streams: make(map[string]*domain.Stream),
		viewers: make(map[string]map[string]struct{}),
	}
	for _, s := range streams {
		f.streams[s.ID] = s
		f.viewers[s.ID] = make(map[string]struct{})
	}
	return f
}

func (f *fakeStreams) Create(ctx context.Context, stream *domain.Stream) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[stream.ID] = stream
	f.viewers[stream.ID] = make(map[string]struct{})
	return nil
}

func (f *fakeStreams) GetByID(ctx context.Context, id string) (*domain.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[id]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	cp := *s
	cp.ViewerCount = len(f.viewers[id])
	return &cp, nil
}

func (f *fakeStreams) Start(ctx context.Context, id string) error {
	return f.setStatus(id, domain.StreamStatusLive)
}

func (f *fakeStreams) End(ctx context.Context, id string) error {
	if err := f.setStatus(id, domain.StreamStatusEnded); err != nil {
		return err
	}
	f.mu.Lock()
	f.ended = append(f.ended, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeStreams) setStatus(id string, status domain.StreamStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[id]
	if !ok {
		return domain.ErrStreamNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeStreams) AddViewer(ctx context.Context, streamID, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.viewerErr != nil {
		return 0, f.viewerErr
	}
	viewers, ok := f.viewers[streamID]
	if !ok {
		return 0, domain.ErrStreamNotFound
	}
	viewers[userID] = struct{}{}
	return len(viewers), nil
}

func (f *fakeStreams) RemoveViewer(ctx context.Context, streamID, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	viewers, ok := f.viewers[streamID]
	if !ok {
		return 0, domain.ErrStreamNotFound
	}
	delete(viewers, userID)
	return len(viewers), nil
}

func (f *fakeStreams) failViewers(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewerErr = err
}

func (f *fakeStreams) status(id string) domain.StreamStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[id].Status
}

func (f *fakeStreams) endedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ended)
}

type fakeCodeSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.CodeSession
	versions []domain.CodeVersion
}

func newFakeCodeSessions(sessions ...*domain.CodeSession) *fakeCodeSessions {
	f := &fakeCodeSessions{sessions: make(map[string]*domain.CodeSession)}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeCodeSessions) Create(ctx context.Context, session *domain.CodeSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeCodeSessions) GetByID(ctx context.Context, id string) (*domain.CodeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrCodeSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeCodeSessions) UpdateCode(ctx context.Context, id, code, userID string) (*domain.CodeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrCodeSessionNotFound
	}
	next, err := domain.NextMinorVersion(s.Version)
	if err != nil {
		return nil, err
	}
	f.versions = append(f.versions, domain.CodeVersion{SessionID: id, Version: s.Version, Code: s.Code, UserID: userID})
	s.Code = code
	s.Version = next
	cp := *s
	return &cp, nil
}

func (f *fakeCodeSessions) ListVersions(ctx context.Context, id string) ([]domain.CodeVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CodeVersion
	for _, v := range f.versions {
		if v.SessionID == id {
			out = append(out, v)
		}
	}
	return out, nil
}

type producedEvent struct {
	Type     string
	StreamID string
	UserID   string
	Reason   string
}

type recordingProducer struct {
	mu     sync.Mutex
	events []producedEvent
}

func (p *recordingProducer) ProduceBroadcastStarted(ctx context.Context, streamID, broadcasterID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, producedEvent{Type: kafka.EventBroadcastStarted, StreamID: streamID, UserID: broadcasterID})
	return nil
}

func (p *recordingProducer) ProduceBroadcastStopped(ctx context.Context, streamID, broadcasterID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, producedEvent{Type: kafka.EventBroadcastStopped, StreamID: streamID, UserID: broadcasterID, Reason: reason})
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) recorded() []producedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]producedEvent(nil), p.events...)
}

var (
	_ repository.StreamRepository      = (*fakeStreams)(nil)
	_ repository.CodeSessionRepository = (*fakeCodeSessions)(nil)
	_ kafka.BroadcastEventProducer     = (*recordingProducer)(nil)
)

// failingRelay drops every frame with an error, like a cluster bus that is down.
type failingRelay struct{}

func (failingRelay) ToRoom(ctx context.Context, room string, data []byte, exclude string) error {
	return errors.New("bus unavailable")
}

func (failingRelay) ToConnection(ctx context.Context, connID string, data []byte) error {
	return errors.New("bus unavailable")
}

func (failingRelay) Start(ctx context.Context) error { return nil }

func (failingRelay) Close() error { return nil }
