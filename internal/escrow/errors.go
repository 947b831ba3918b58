package escrow

import "errors"

// Failure taxonomy. Every failed call leaves state unchanged and
// surfaces exactly one of these, matchable with errors.Is.
var (
	// ErrUnauthorized: caller lacks the required role for the current phase.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidStatus: transition illegal from the deadline-adjusted status.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInsufficientFunds: balance below the required hold.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRewardOutOfRange: reward outside (0, MaxReward].
	ErrRewardOutOfRange = errors.New("reward out of range")
	// ErrNotRegistered: party fails the registration oracle check.
	ErrNotRegistered = errors.New("party not registered")
	// ErrTimeout: action attempted after its own deadline elapsed.
	ErrTimeout = errors.New("deadline elapsed")
	// ErrAlreadyRequested: duplicate fix or termination request.
	ErrAlreadyRequested = errors.New("already requested")
	// ErrTaskNotFound: no task record for the given id.
	ErrTaskNotFound = errors.New("task not found")
)
