package service

import (
	"sort"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/hybrid-relay/internal/domain"
)

const pollOptionIDSize = 10

// NewPoll builds a poll with fresh ids. A zero duration means the poll never
// ends on its own.
func NewPoll(streamID, question string, options []string, createdBy string, duration time.Duration, now time.Time) (*domain.Poll, error) {
	poll := &domain.Poll{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		StreamID:  streamID,
		Question:  strings.TrimSpace(question),
		Options:   make([]domain.PollOption, 0, len(options)),
		CreatedBy: createdBy,
		CreatedAt: now,
	}
	for _, text := range options {
		id, err := gonanoid.New(pollOptionIDSize)
		if err != nil {
			return nil, err
		}
		poll.Options = append(poll.Options, domain.PollOption{ID: id, Text: strings.TrimSpace(text)})
	}
	if duration > 0 {
		endsAt := now.Add(duration)
		poll.EndsAt = &endsAt
	}
	return poll, nil
}

type pendingPoll struct {
	poll  *domain.Poll
	timer *time.Timer
}

// PollScheduler owns the end timers of running polls, grouped by stream so a
// stream that ends takes its timers with it.
type PollScheduler struct {
	mu      sync.Mutex
	timers  map[string]map[string]pendingPoll // streamID -> pollID
	stopped bool
}

// NewPollScheduler creates an empty scheduler.
func NewPollScheduler() *PollScheduler {
	return &PollScheduler{timers: make(map[string]map[string]pendingPoll)}
}

// Schedule runs onEnd after the given delay unless the poll's stream is
// cancelled first. It returns false once the scheduler is stopped.
func (p *PollScheduler) Schedule(poll *domain.Poll, after time.Duration, onEnd func(*domain.Poll)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}

	polls, ok := p.timers[poll.StreamID]
	if !ok {
		polls = make(map[string]pendingPoll)
		p.timers[poll.StreamID] = polls
	}
	timer := time.AfterFunc(after, func() {
		if p.release(poll.StreamID, poll.ID) {
			onEnd(poll)
		}
	})
	polls[poll.ID] = pendingPoll{poll: poll, timer: timer}
	return true
}

// release forgets a fired timer. It reports false when the timer was
// cancelled between firing and acquiring the lock.
func (p *PollScheduler) release(streamID, pollID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	polls, ok := p.timers[streamID]
	if !ok {
		return false
	}
	if _, ok := polls[pollID]; !ok {
		return false
	}
	delete(polls, pollID)
	if len(polls) == 0 {
		delete(p.timers, streamID)
	}
	return true
}

// CancelStream stops every pending timer of a stream and returns the polls
// whose timers were stopped, oldest first. Their onEnd never runs.
func (p *PollScheduler) CancelStream(streamID string) []*domain.Poll {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.timers[streamID]
	delete(p.timers, streamID)

	cancelled := make([]*domain.Poll, 0, len(pending))
	for _, pp := range pending {
		pp.timer.Stop()
		cancelled = append(cancelled, pp.poll)
	}
	sort.Slice(cancelled, func(i, j int) bool { return cancelled[i].ID < cancelled[j].ID })
	return cancelled
}

// Pending returns the number of timers still scheduled for a stream.
func (p *PollScheduler) Pending(streamID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers[streamID])
}

// Stop cancels all timers. Later calls to Schedule are refused.
func (p *PollScheduler) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, polls := range p.timers {
		for _, pp := range polls {
			pp.timer.Stop()
		}
	}
	p.timers = make(map[string]map[string]pendingPoll)
	p.stopped = true
}
