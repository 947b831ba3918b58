// Package escrow implements the settlement state machine mediating
// value transfer between a task creator and a task helper. Funds are
// held against individual task records, deadlines are evaluated lazily
// from recorded timestamps, and every transition performs at most one
// atomic set of balance mutations.
package escrow

import "time"

// Status is the lifecycle phase of a task. Transitions form a
// forward-only DAG with Completed and Terminated as sinks; the status
// field doubles as the optimistic-concurrency token for conflicting
// calls on the same task.
type Status uint8

const (
	// StatusOpen: posted, reward escrowed, no helper yet.
	StatusOpen Status = iota + 1
	// StatusInProgress: accepted, helper collateral escrowed.
	StatusInProgress
	// StatusSubmitted: work delivered, awaiting creator review.
	StatusSubmitted
	// StatusCompleted: settled, helper paid, burn fee destroyed. Terminal.
	StatusCompleted
	// StatusTerminated: cancelled, mutually dissolved, or resolved by a
	// timeout forfeiture. Terminal.
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusInProgress:
		return "in_progress"
	case StatusSubmitted:
		return "submitted"
	case StatusCompleted:
		return "completed"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusTerminated
}

// Task is the sole entity of the escrow engine. Records are append-only:
// once a task reaches a terminal status it is never mutated again, and
// never deleted.
type Task struct {
	ID      uint64 `json:"id"`
	Creator string `json:"creator"`
	Helper  string `json:"helper,omitempty"`

	// Reward is fixed at creation; PostFee is the flat creation fee
	// frozen against later fee-schedule changes.
	Reward  uint64 `json:"reward"`
	PostFee uint64 `json:"post_fee"`

	// TaskURI is an opaque reference to off-chain metadata. The engine
	// stores and compares it, never parses it.
	TaskURI string `json:"task_uri"`

	Status Status `json:"status"`

	CreatedAt   time.Time `json:"created_at"`
	AcceptedAt  time.Time `json:"accepted_at,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`

	TerminateRequestedBy string    `json:"terminate_requested_by,omitempty"`
	TerminateRequestedAt time.Time `json:"terminate_requested_at,omitempty"`

	FixRequested   bool      `json:"fix_requested,omitempty"`
	FixRequestedAt time.Time `json:"fix_requested_at,omitempty"`

	// Carried through uninterpreted for the cross-chain reward
	// collaborator; no funds for that path pass through this engine.
	RewardAsset  string `json:"reward_asset,omitempty"`
	RewardAmount uint64 `json:"reward_amount,omitempty"`

	// Escrow holds owned exclusively by this record. CreatorHold is
	// reward+postFee from creation; HelperHold is the collateral staked
	// at acceptance, always equal to the reward. Both are zeroed before
	// any settlement transfer is issued.
	CreatorHold uint64 `json:"creator_hold"`
	HelperHold  uint64 `json:"helper_hold"`
}
