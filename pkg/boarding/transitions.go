package boarding

import (
	"errors"
	"fmt"

	"github.com/go2school/go2school/pkg/fleet"
)

var ErrInvalidTransition = errors.New("invalid boarding transition")

type Action string

const (
	ActionBoard   Action = "board"
	ActionDeboard Action = "deboard"
	ActionReset   Action = "reset"
	ActionCorrect Action = "correct"
)

// Transition returns the status an occupant moves to when the action is applied.
//
// Within a trip an occupant only moves forward, not-boarded to boarded to de-boarded.
// Reset starts the next trip from any status. Correct flips between boarded and
// not-boarded for a manual attendance fix and is the only way to move backwards
// within a trip.
func Transition(status fleet.BoardingStatus, action Action) (fleet.BoardingStatus, error) {
	switch {
	case action == ActionBoard && status == fleet.BoardingStatusNotBoarded:
		return fleet.BoardingStatusBoarded, nil
	case action == ActionDeboard && status == fleet.BoardingStatusBoarded:
		return fleet.BoardingStatusDeboarded, nil
	case action == ActionReset:
		return fleet.BoardingStatusNotBoarded, nil
	case action == ActionCorrect && status == fleet.BoardingStatusBoarded:
		return fleet.BoardingStatusNotBoarded, nil
	case action == ActionCorrect && status == fleet.BoardingStatusNotBoarded:
		return fleet.BoardingStatusBoarded, nil
	}

	return status, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, status)
}
