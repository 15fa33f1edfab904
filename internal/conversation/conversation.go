// Package conversation models the per-user slot memory that lets a follow-up
// message fill the gaps of the previous one.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aoba-lab/daiko/internal/shift"
)

// Window is how long a turn stays eligible as the continuation target of the
// next message from the same user.
const Window = 10 * time.Minute

// State is the last turn's partially or fully resolved slots for one user.
// The zero value means "no prior turn".
type State struct {
	LastTurnAt time.Time
	Action     shift.Action
	Dates      []time.Time
	Range      *shift.TimeRange
	ShiftIDs   []uuid.UUID
	RawText    string
}

// InSequence reports whether this state may fill slot gaps of a turn
// happening at now. A zero LastTurnAt is never in sequence.
func (s State) InSequence(now time.Time) bool {
	if s.LastTurnAt.IsZero() {
		return false
	}
	return now.Sub(s.LastTurnAt) < Window
}

// Store is the durable per-user record. Get returns the zero State for a
// user with no history. Writes are last-write-wins; two overlapping turns
// from one human inside the window do not happen in practice.
type Store interface {
	GetConversation(ctx context.Context, slackID string) (State, error)
	PutConversation(ctx context.Context, slackID string, st State) error
}
