package domain

import "time"

// MaxPollDuration bounds a poll's end timer.
const MaxPollDuration = 7 * 24 * time.Hour

// PollOption is one answer of a poll.
type PollOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Poll is broadcast as stream:poll_created. EndsAt is nil for open-ended polls.
type Poll struct {
	ID        string       `json:"id"`
	StreamID  string       `json:"-"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	CreatedBy string       `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
	EndsAt    *time.Time   `json:"endsAt"`
}
