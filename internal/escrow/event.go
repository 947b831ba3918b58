package escrow

import "time"

// EventType discriminates transition events.
type EventType string

const (
	EventTaskCreated          EventType = "task_created"
	EventTaskAccepted         EventType = "task_accepted"
	EventWorkSubmitted        EventType = "work_submitted"
	EventTaskCompleted        EventType = "task_completed"
	EventTaskTerminated       EventType = "task_terminated"
	EventFixRequested         EventType = "fix_requested"
	EventTerminationRequested EventType = "termination_requested"
)

// Termination and completion reasons carried on terminal events.
const (
	ReasonConfirmed          = "confirmed"
	ReasonReviewTimeout      = "review_timeout"
	ReasonCancelled          = "cancelled"
	ReasonMutual             = "mutual"
	ReasonProgressTimeout    = "progress_timeout"
	ReasonTerminationTimeout = "termination_timeout"
)

// Event is a transition notification for external observers: the
// journal, the metrics collector, and the off-chain collaborators
// (contact disclosure, cross-chain rewards) listening on the stream.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TaskID    uint64    `json:"task_id"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Reward  uint64 `json:"reward,omitempty"`
	PostFee uint64 `json:"post_fee,omitempty"`
	TaskURI string `json:"task_uri,omitempty"`
	Helper  string `json:"helper,omitempty"`

	HelperPayout uint64 `json:"helper_payout,omitempty"`
	BurnFee      uint64 `json:"burn_fee,omitempty"`
	Beneficiary  string `json:"beneficiary,omitempty"`
	Reason       string `json:"reason,omitempty"`

	RewardAsset  string `json:"reward_asset,omitempty"`
	RewardAmount uint64 `json:"reward_amount,omitempty"`
}

// Recorder observes committed transitions. Recorder failures are logged
// and never revert a transition; the task record and ledger are the
// source of truth, events are derived.
type Recorder interface {
	Record(ev Event) error
}
