package escrow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slyt3/Covenant/internal/assert"
	"github.com/slyt3/Covenant/internal/logging"
)

// DefaultVaultAccount holds all escrowed funds. Holds are tracked
// per-task on the record; the vault is the ledger-side aggregate.
const DefaultVaultAccount = "covenant:vault"

// Ledger is the balance primitive the engine settles against. Each call
// is atomic. The wire format and persistence of the ledger are external
// concerns.
type Ledger interface {
	Transfer(from, to string, amount uint64) error
	Burn(from string, amount uint64) error
	BalanceOf(addr string) uint64
}

// Oracle answers party eligibility checks.
type Oracle interface {
	IsRegistered(addr string) bool
}

// Params are the engine's frozen fee schedule and deadline windows.
// PostFee changes only affect tasks created afterwards; each record
// carries the fee it was posted under.
type Params struct {
	MaxReward uint64
	PostFee   uint64
	FeeBps    uint64
	Windows   Windows
}

// CreateRequest carries the inputs of task creation. RewardAsset and
// RewardAmount are stored uninterpreted for the cross-chain reward
// collaborator.
type CreateRequest struct {
	Creator      string
	Reward       uint64
	TaskURI      string
	RewardAsset  string
	RewardAmount uint64
}

// Engine validates callers and deadline-adjusted statuses against
// requested transitions, and performs the corresponding ledger
// mutations. Mutations are serialized by the store's write lock; a
// failed call leaves both the task record and the ledger unchanged.
type Engine struct {
	store     *Store
	ledger    Ledger
	oracle    Oracle
	vault     string
	params    Params
	recorders []Recorder
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source. Production uses time.Now; tests
// drive deadlines with a fake clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder attaches a transition observer. Recorders fire in
// registration order after the transition commits.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorders = append(e.recorders, r) }
}

// WithVaultAccount overrides the escrow vault account name.
func WithVaultAccount(addr string) Option {
	return func(e *Engine) { e.vault = addr }
}

// NewEngine creates an escrow engine over the given ledger and oracle.
func NewEngine(ledger Ledger, oracle Oracle, params Params, opts ...Option) (*Engine, error) {
	if err := assert.NotNil(ledger, "ledger"); err != nil {
		return nil, err
	}
	if err := assert.NotNil(oracle, "oracle"); err != nil {
		return nil, err
	}
	if err := assert.Check(params.MaxReward > 0, "max reward must be positive"); err != nil {
		return nil, err
	}
	if err := assert.Check(params.FeeBps <= feeDenominator, "fee bps must not exceed %d", feeDenominator); err != nil {
		return nil, err
	}

	e := &Engine{
		store:  NewStore(),
		ledger: ledger,
		oracle: oracle,
		vault:  DefaultVaultAccount,
		params: params,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// TaskCount returns the last assigned task id.
func (e *Engine) TaskCount() uint64 {
	return e.store.Count()
}

// GetTask returns a copy of the task record.
func (e *Engine) GetTask(id uint64) (Task, error) {
	return e.store.Get(id)
}

// CreateTask escrows reward+postFee from the creator and appends a new
// Open task. Fails with ErrNotRegistered, ErrRewardOutOfRange, or
// ErrInsufficientFunds.
func (e *Engine) CreateTask(req CreateRequest) (uint64, error) {
	if !e.oracle.IsRegistered(req.Creator) {
		return 0, fmt.Errorf("creator %s: %w", req.Creator, ErrNotRegistered)
	}
	if req.Reward == 0 || req.Reward > e.params.MaxReward {
		return 0, fmt.Errorf("reward %d not in (0, %d]: %w", req.Reward, e.params.MaxReward, ErrRewardOutOfRange)
	}

	hold := req.Reward + e.params.PostFee
	if e.ledger.BalanceOf(req.Creator) < hold {
		return 0, fmt.Errorf("creator needs %d: %w", hold, ErrInsufficientFunds)
	}
	if err := e.ledger.Transfer(req.Creator, e.vault, hold); err != nil {
		return 0, fmt.Errorf("escrowing %d: %w", hold, ErrInsufficientFunds)
	}

	now := e.now()
	t := &Task{
		Creator:      req.Creator,
		Reward:       req.Reward,
		PostFee:      e.params.PostFee,
		TaskURI:      req.TaskURI,
		RewardAsset:  req.RewardAsset,
		RewardAmount: req.RewardAmount,
		Status:       StatusOpen,
		CreatedAt:    now,
		CreatorHold:  hold,
	}
	id := e.store.Create(t)

	e.record(Event{
		Type:         EventTaskCreated,
		TaskID:       id,
		Actor:        req.Creator,
		Timestamp:    now,
		Reward:       req.Reward,
		PostFee:      e.params.PostFee,
		TaskURI:      req.TaskURI,
		RewardAsset:  req.RewardAsset,
		RewardAmount: req.RewardAmount,
	})
	return id, nil
}

// CancelTask refunds the creator's full hold on an unaccepted task.
// No fee is charged on an unaccepted cancellation. Valid both before
// and after the open window elapses; a task in Open has no helper by
// construction.
func (e *Engine) CancelTask(id uint64, caller string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if caller != t.Creator {
			return fmt.Errorf("only the creator may cancel: %w", ErrUnauthorized)
		}
		if t.Status != StatusOpen {
			return fmt.Errorf("cancel from %s: %w", t.Status, ErrInvalidStatus)
		}

		saved := *t
		refund := t.CreatorHold
		t.CreatorHold = 0
		t.Status = StatusTerminated

		if err := e.ledger.Transfer(e.vault, t.Creator, refund); err != nil {
			*t = saved
			return fmt.Errorf("refunding creator: %w", err)
		}

		e.record(Event{
			Type:        EventTaskTerminated,
			TaskID:      t.ID,
			Actor:       caller,
			Timestamp:   now,
			Beneficiary: t.Creator,
			Reason:      ReasonCancelled,
		})
		return nil
	})
}

// AcceptTask stakes the helper's collateral (equal to the reward) and
// moves the task to InProgress. The second of two concurrent accepts
// observes a non-Open status and fails with ErrInvalidStatus.
func (e *Engine) AcceptTask(id uint64, helper string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if EffectiveStatus(t, e.params.Windows, now) != StatusOpen {
			return fmt.Errorf("accept from %s: %w", t.Status, ErrInvalidStatus)
		}
		if helper == t.Creator {
			return fmt.Errorf("creator cannot accept own task: %w", ErrUnauthorized)
		}
		if !e.oracle.IsRegistered(helper) {
			return fmt.Errorf("helper %s: %w", helper, ErrNotRegistered)
		}
		if e.ledger.BalanceOf(helper) < t.Reward {
			return fmt.Errorf("helper needs %d collateral: %w", t.Reward, ErrInsufficientFunds)
		}
		if err := e.ledger.Transfer(helper, e.vault, t.Reward); err != nil {
			return fmt.Errorf("staking collateral: %w", ErrInsufficientFunds)
		}

		t.Helper = helper
		t.HelperHold = t.Reward
		t.Status = StatusInProgress
		t.AcceptedAt = now

		e.record(Event{
			Type:      EventTaskAccepted,
			TaskID:    t.ID,
			Actor:     helper,
			Timestamp: now,
			Helper:    helper,
		})
		return nil
	})
}

// SubmitWork delivers the helper's work for review. From InProgress it
// must land within the progress window or fails with ErrTimeout. From
// Submitted it is the resubmission answering a pending fix request:
// the request is cleared and the review clock restarts.
func (e *Engine) SubmitWork(id uint64, caller string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if t.Helper == "" || caller != t.Helper {
			return fmt.Errorf("only the helper may submit: %w", ErrUnauthorized)
		}
		eff := EffectiveStatus(t, e.params.Windows, now)

		switch {
		case t.Status == StatusInProgress && eff == StatusInProgress:
			t.Status = StatusSubmitted
			t.SubmittedAt = now
			// A submission answers any termination request made during
			// progress; the creator may re-request during review.
			t.TerminateRequestedBy = ""
			t.TerminateRequestedAt = time.Time{}
		case t.Status == StatusInProgress && expired(t.AcceptedAt, e.params.Windows.Progress, now):
			return fmt.Errorf("progress window elapsed: %w", ErrTimeout)
		case t.Status == StatusSubmitted && t.FixRequested && eff == StatusSubmitted:
			t.FixRequested = false
			t.FixRequestedAt = time.Time{}
			t.SubmittedAt = now
		default:
			return fmt.Errorf("submit from %s: %w", t.Status, ErrInvalidStatus)
		}

		e.record(Event{
			Type:      EventWorkSubmitted,
			TaskID:    t.ID,
			Actor:     caller,
			Timestamp: now,
		})
		return nil
	})
}

// ConfirmComplete settles a submitted task in the helper's favour:
// the helper receives reward minus burn fee plus the returned
// collateral in a single transfer, the burn fee is destroyed, and the
// postFee is retained in the vault. Creator only, within the review
// window.
func (e *Engine) ConfirmComplete(id uint64, caller string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if caller != t.Creator {
			return fmt.Errorf("only the creator may confirm: %w", ErrUnauthorized)
		}
		if EffectiveStatus(t, e.params.Windows, now) != StatusSubmitted {
			return fmt.Errorf("confirm from %s: %w", t.Status, ErrInvalidStatus)
		}
		return e.settle(t, now, caller, ReasonConfirmed)
	})
}

// ForceSettle is the review-timeout resolution: once the review window
// elapses on an unreviewed submission, any caller may trigger the
// identical settlement math. This protects a helper from an
// unresponsive creator and is the only operation open to parties other
// than the two principals.
func (e *Engine) ForceSettle(id uint64, caller string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if t.Status != StatusSubmitted ||
			EffectiveStatus(t, e.params.Windows, now) != StatusCompleted {
			return fmt.Errorf("force settle from %s: %w", t.Status, ErrInvalidStatus)
		}
		return e.settle(t, now, caller, ReasonReviewTimeout)
	})
}

// settle finalizes the task record to its terminal state before any
// balance mutation is issued, so a reentrant observer sees an
// already-completed task and cannot re-trigger the payout.
func (e *Engine) settle(t *Task, now time.Time, actor, reason string) error {
	s := ComputeSettlement(t.Reward, t.HelperHold, e.params.FeeBps)
	outflow := s.HelperPayout + s.BurnFee
	if err := assert.Check(e.ledger.BalanceOf(e.vault) >= outflow, "vault underfunded: task %d needs %d", t.ID, outflow); err != nil {
		return err
	}

	saved := *t
	helper := t.Helper
	t.Status = StatusCompleted
	t.CreatorHold = 0
	t.HelperHold = 0

	if err := e.ledger.Transfer(e.vault, helper, s.HelperPayout); err != nil {
		*t = saved
		return fmt.Errorf("paying helper: %w", err)
	}
	if err := e.ledger.Burn(e.vault, s.BurnFee); err != nil {
		*t = saved
		return fmt.Errorf("burning fee: %w", err)
	}

	e.record(Event{
		Type:         EventTaskCompleted,
		TaskID:       t.ID,
		Actor:        actor,
		Timestamp:    now,
		Helper:       helper,
		HelperPayout: s.HelperPayout,
		BurnFee:      s.BurnFee,
		Reason:       reason,
	})
	return nil
}

// RequestFix asks the helper to rework a submission. The status stays
// Submitted, the review clock is suspended until resubmission, and only
// one fix request may be outstanding at a time.
func (e *Engine) RequestFix(id uint64, caller string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if caller != t.Creator {
			return fmt.Errorf("only the creator may request a fix: %w", ErrUnauthorized)
		}
		if t.FixRequested {
			return fmt.Errorf("fix request outstanding: %w", ErrAlreadyRequested)
		}
		if EffectiveStatus(t, e.params.Windows, now) != StatusSubmitted {
			return fmt.Errorf("fix request from %s: %w", t.Status, ErrInvalidStatus)
		}

		t.FixRequested = true
		t.FixRequestedAt = now

		e.record(Event{
			Type:      EventFixRequested,
			TaskID:    t.ID,
			Actor:     caller,
			Timestamp: now,
		})
		return nil
	})
}

// RequestTermination records a principal's wish to dissolve an active
// task. A matching request from the counterparty enacts the symmetric
// split immediately: each party's hold is returned in full, nothing is
// burned. Otherwise the request waits for either a counter-action or
// the termination window (see ResolveTermination).
func (e *Engine) RequestTermination(id uint64, caller string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if caller != t.Creator && caller != t.Helper {
			return fmt.Errorf("only a principal may request termination: %w", ErrUnauthorized)
		}
		eff := EffectiveStatus(t, e.params.Windows, now)
		if eff != StatusInProgress && eff != StatusSubmitted {
			return fmt.Errorf("termination request from %s: %w", t.Status, ErrInvalidStatus)
		}
		if t.TerminateRequestedBy == caller {
			return fmt.Errorf("termination request outstanding: %w", ErrAlreadyRequested)
		}

		if t.TerminateRequestedBy != "" {
			// Counterparty agreement: symmetric split.
			saved := *t
			creatorRefund := t.CreatorHold
			helperRefund := t.HelperHold
			t.CreatorHold = 0
			t.HelperHold = 0
			t.Status = StatusTerminated

			if err := e.ledger.Transfer(e.vault, t.Creator, creatorRefund); err != nil {
				*t = saved
				return fmt.Errorf("refunding creator: %w", err)
			}
			if err := e.ledger.Transfer(e.vault, t.Helper, helperRefund); err != nil {
				*t = saved
				return fmt.Errorf("refunding helper: %w", err)
			}

			e.record(Event{
				Type:      EventTaskTerminated,
				TaskID:    t.ID,
				Actor:     caller,
				Timestamp: now,
				Reason:    ReasonMutual,
			})
			return nil
		}

		t.TerminateRequestedBy = caller
		t.TerminateRequestedAt = now

		e.record(Event{
			Type:      EventTerminationRequested,
			TaskID:    t.ID,
			Actor:     caller,
			Timestamp: now,
		})
		return nil
	})
}

// ResolveTermination enacts a termination request whose waiting period
// elapsed with no counter-action. The split is asymmetric: the
// requester recovers their own hold in full and receives the inactive
// counterparty's forfeited hold net of the burn fee. Requester only.
// An elapsed review window on a submission outranks the request (the
// helper gets paid instead; see EffectiveStatus).
func (e *Engine) ResolveTermination(id uint64, caller string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if t.TerminateRequestedBy == "" {
			return fmt.Errorf("no termination request: %w", ErrInvalidStatus)
		}
		if caller != t.TerminateRequestedBy {
			return fmt.Errorf("only the requester may resolve: %w", ErrUnauthorized)
		}
		if t.Status != StatusInProgress && t.Status != StatusSubmitted {
			return fmt.Errorf("resolve from %s: %w", t.Status, ErrInvalidStatus)
		}
		if !terminationExpired(t, e.params.Windows, now) ||
			EffectiveStatus(t, e.params.Windows, now) != StatusTerminated {
			return fmt.Errorf("termination window still running: %w", ErrInvalidStatus)
		}

		var ownHold, forfeited uint64
		if caller == t.Creator {
			ownHold, forfeited = t.CreatorHold, t.HelperHold
		} else {
			ownHold, forfeited = t.HelperHold, t.CreatorHold
		}
		net, burnFee := ComputeForfeiture(forfeited, e.params.FeeBps)

		saved := *t
		t.CreatorHold = 0
		t.HelperHold = 0
		t.Status = StatusTerminated

		if err := e.ledger.Transfer(e.vault, caller, ownHold+net); err != nil {
			*t = saved
			return fmt.Errorf("paying requester: %w", err)
		}
		if err := e.ledger.Burn(e.vault, burnFee); err != nil {
			*t = saved
			return fmt.Errorf("burning forfeiture fee: %w", err)
		}

		e.record(Event{
			Type:        EventTaskTerminated,
			TaskID:      t.ID,
			Actor:       caller,
			Timestamp:   now,
			Beneficiary: caller,
			BurnFee:     burnFee,
			Reason:      ReasonTerminationTimeout,
		})
		return nil
	})
}

// ClaimProgressTimeout resolves a task whose helper never submitted
// within the progress window: the creator recovers reward+postFee and
// receives the forfeited collateral net of the burn fee. Creator only.
func (e *Engine) ClaimProgressTimeout(id uint64, caller string) error {
	now := e.now()
	return e.store.Mutate(id, func(t *Task) error {
		if caller != t.Creator {
			return fmt.Errorf("only the creator may claim: %w", ErrUnauthorized)
		}
		if t.Status != StatusInProgress {
			return fmt.Errorf("claim from %s: %w", t.Status, ErrInvalidStatus)
		}
		if !expired(t.AcceptedAt, e.params.Windows.Progress, now) {
			return fmt.Errorf("progress window still running: %w", ErrInvalidStatus)
		}

		net, burnFee := ComputeForfeiture(t.HelperHold, e.params.FeeBps)

		saved := *t
		refund := t.CreatorHold
		t.CreatorHold = 0
		t.HelperHold = 0
		t.Status = StatusTerminated

		if err := e.ledger.Transfer(e.vault, t.Creator, refund+net); err != nil {
			*t = saved
			return fmt.Errorf("paying creator: %w", err)
		}
		if err := e.ledger.Burn(e.vault, burnFee); err != nil {
			*t = saved
			return fmt.Errorf("burning forfeiture fee: %w", err)
		}

		e.record(Event{
			Type:        EventTaskTerminated,
			TaskID:      t.ID,
			Actor:       caller,
			Timestamp:   now,
			Beneficiary: t.Creator,
			BurnFee:     burnFee,
			Reason:      ReasonProgressTimeout,
		})
		return nil
	})
}

// record fans a committed transition out to all recorders. Failures are
// logged, never propagated: the task record and ledger already hold the
// truth.
func (e *Engine) record(ev Event) {
	ev.ID = uuid.New().String()
	for _, r := range e.recorders {
		if err := r.Record(ev); err != nil {
			logging.Log.Error().
				Err(err).
				Str("event_id", ev.ID).
				Str("type", string(ev.Type)).
				Uint64("task_id", ev.TaskID).
				Msg("recorder failed")
		}
	}
}
