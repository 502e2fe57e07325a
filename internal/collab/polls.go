package collab

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edulive/collab/internal/metrics"
	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/ws"
)

const defaultPollDuration = 60 * time.Second

// CreatePoll opens a poll that expires after its duration and broadcasts
// the initial (empty) tally.
func (e *Engine) CreatePoll(roomID, creatorID, question string, options []string, kind room.PollKind, duration time.Duration) (string, error) {
	if question == "" {
		return "", fmt.Errorf("poll question required")
	}
	if kind != room.PollOpen && len(options) < 2 {
		return "", fmt.Errorf("poll needs at least two options")
	}
	if duration <= 0 {
		duration = defaultPollDuration
	}

	poll := &room.Poll{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Question:  question,
		Options:   options,
		Kind:      kind,
		CreatorID: creatorID,
		CreatedAt: time.Now(),
		Duration:  duration,
		Votes:     make(map[string]*room.Vote),
		Active:    true,
	}

	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		if _, ok := r.Participant(creatorID); !ok {
			return room.ErrNotAParticipant
		}
		r.AddPoll(poll)
		e.fanout(r, "", event(ws.TypePollState, r.ID, pollState(poll)))
		return nil
	})
	if err != nil {
		return "", err
	}

	e.pollMu.Lock()
	e.pollIndex[poll.ID] = roomID
	e.pollMu.Unlock()

	e.presence.Touch(creatorID, "poll")
	metrics.PollsCreated.Inc()
	return poll.ID, nil
}

// Vote records the user's choice, overwriting any prior vote by the same
// user, and broadcasts the updated tally. Votes after the poll's
// duration fail with ErrPollClosed.
func (e *Engine) Vote(pollID, userID string, choices []string) error {
	e.pollMu.RLock()
	roomID, ok := e.pollIndex[pollID]
	e.pollMu.RUnlock()
	if !ok {
		return room.ErrPollNotFound
	}

	err := e.rooms.WithRoom(roomID, func(r *room.Room) error {
		if _, ok := r.Participant(userID); !ok {
			return room.ErrNotAParticipant
		}
		poll, ok := r.Poll(pollID)
		if !ok {
			return room.ErrPollNotFound
		}
		if !poll.Active || poll.Expired(time.Now()) {
			// Lazy close: announce the final tally now rather than on
			// the next sweep tick.
			if poll.Active {
				poll.Active = false
				e.fanout(r, "", event(ws.TypePollState, r.ID, pollState(poll)))
			}
			return room.ErrPollClosed
		}
		if err := validateChoices(poll, choices); err != nil {
			return err
		}
		poll.Votes[userID] = &room.Vote{Choices: choices, CastAt: time.Now()}
		e.fanout(r, "", event(ws.TypePollState, r.ID, pollState(poll)))
		return nil
	})
	if err != nil {
		return err
	}

	e.presence.Touch(userID, "voting")
	metrics.VotesCast.Inc()
	return nil
}

func validateChoices(poll *room.Poll, choices []string) error {
	switch poll.Kind {
	case room.PollSingle:
		if len(choices) != 1 {
			return fmt.Errorf("single-choice poll takes exactly one choice")
		}
	case room.PollMultiple:
		if len(choices) == 0 {
			return fmt.Errorf("at least one choice required")
		}
	case room.PollOpen:
		if len(choices) != 1 || choices[0] == "" {
			return fmt.Errorf("open poll takes one free-text answer")
		}
		return nil
	}
	for _, c := range choices {
		valid := false
		for _, opt := range poll.Options {
			if c == opt {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("unknown option %q", c)
		}
	}
	return nil
}

func pollState(p *room.Poll) ws.PollStatePayload {
	return ws.PollStatePayload{
		PollID:   p.ID,
		Question: p.Question,
		Options:  p.Options,
		Kind:     p.Kind,
		Tally:    p.Tally(),
		Voters:   len(p.Votes),
		Active:   p.Active,
		EndsAt:   p.ExpiresAt(),
	}
}
