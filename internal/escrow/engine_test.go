package escrow

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slyt3/Covenant/internal/bank"
	"github.com/slyt3/Covenant/internal/registry"
)

const (
	creator = "alice"
	helper  = "bob"
	keeper  = "carol"

	startBalance = uint64(10_000)
	totalSupply  = 2 * startBalance
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time              { return c.now }
func (c *clock) advance(d time.Duration)     { c.now = c.now.Add(d) }
func (c *clock) pastProgress()               { c.advance(testWindows.Progress + time.Second) }
func (c *clock) pastReview()                 { c.advance(testWindows.Review + time.Second) }
func (c *clock) pastTerminate()              { c.advance(testWindows.Terminate + time.Second) }

type captureRecorder struct{ events []Event }

func (r *captureRecorder) Record(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *captureRecorder) last(t *testing.T) Event {
	t.Helper()
	if len(r.events) == 0 {
		t.Fatal("no events recorded")
	}
	return r.events[len(r.events)-1]
}

func newTestEngine(t *testing.T) (*Engine, *bank.Ledger, *clock, *captureRecorder) {
	t.Helper()

	ledger := bank.New()
	ledger.Mint(creator, startBalance)
	ledger.Mint(helper, startBalance)

	reg := registry.New()
	reg.Register(creator)
	reg.Register(helper)

	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rec := &captureRecorder{}

	e, err := NewEngine(ledger, reg, Params{
		MaxReward: 1_000_000,
		PostFee:   100,
		FeeBps:    200,
		Windows:   testWindows,
	}, WithClock(c.Now), WithRecorder(rec))
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	return e, ledger, c, rec
}

// checkConservation verifies that no funds appear or vanish: party
// balances plus the vault plus the cumulative burn always sum to the
// minted supply.
func checkConservation(t *testing.T, ledger *bank.Ledger) {
	t.Helper()
	sum := ledger.BalanceOf(creator) + ledger.BalanceOf(helper) +
		ledger.BalanceOf(keeper) + ledger.BalanceOf(DefaultVaultAccount) +
		ledger.TotalBurned()
	if sum != totalSupply {
		t.Fatalf("conservation violated: sum=%d supply=%d", sum, totalSupply)
	}
}

func mustCreate(t *testing.T, e *Engine, reward uint64) uint64 {
	t.Helper()
	id, err := e.CreateTask(CreateRequest{Creator: creator, Reward: reward, TaskURI: "ipfs://task"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return id
}

func mustAccept(t *testing.T, e *Engine, id uint64) {
	t.Helper()
	if err := e.AcceptTask(id, helper); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
}

func mustSubmit(t *testing.T, e *Engine, id uint64) {
	t.Helper()
	if err := e.SubmitWork(id, helper); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
}

func TestCreateTask(t *testing.T) {
	e, ledger, c, rec := newTestEngine(t)

	id := mustCreate(t, e, 100)
	if id != 1 {
		t.Errorf("expected first id 1, got %d", id)
	}

	task, err := e.GetTask(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if task.Status != StatusOpen {
		t.Errorf("expected open, got %s", task.Status)
	}
	if task.CreatorHold != 200 {
		t.Errorf("expected creator hold 200, got %d", task.CreatorHold)
	}
	if !task.CreatedAt.Equal(c.now) {
		t.Errorf("createdAt not set from clock")
	}
	if got := ledger.BalanceOf(creator); got != startBalance-200 {
		t.Errorf("creator balance: expected %d, got %d", startBalance-200, got)
	}
	if got := ledger.BalanceOf(DefaultVaultAccount); got != 200 {
		t.Errorf("vault balance: expected 200, got %d", got)
	}
	if ev := rec.last(t); ev.Type != EventTaskCreated || ev.Reward != 100 || ev.PostFee != 100 {
		t.Errorf("unexpected created event: %+v", ev)
	}
	checkConservation(t, ledger)
}

func TestCreateTaskFailures(t *testing.T) {
	e, ledger, _, _ := newTestEngine(t)

	if _, err := e.CreateTask(CreateRequest{Creator: keeper, Reward: 100}); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
	if _, err := e.CreateTask(CreateRequest{Creator: creator, Reward: 0}); !errors.Is(err, ErrRewardOutOfRange) {
		t.Errorf("expected ErrRewardOutOfRange for zero reward, got %v", err)
	}
	if _, err := e.CreateTask(CreateRequest{Creator: creator, Reward: 2_000_000}); !errors.Is(err, ErrRewardOutOfRange) {
		t.Errorf("expected ErrRewardOutOfRange above max, got %v", err)
	}
	if _, err := e.CreateTask(CreateRequest{Creator: creator, Reward: startBalance}); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	if e.TaskCount() != 0 {
		t.Errorf("failed creations must not assign ids, count=%d", e.TaskCount())
	}
	if got := ledger.BalanceOf(creator); got != startBalance {
		t.Errorf("failed creations must not move funds, balance=%d", got)
	}
}

func TestMonotonicIDs(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	for want := uint64(1); want <= 3; want++ {
		if id := mustCreate(t, e, 100); id != want {
			t.Errorf("expected id %d, got %d", want, id)
		}
	}
	if e.TaskCount() != 3 {
		t.Errorf("expected task count 3, got %d", e.TaskCount())
	}
}

func TestAcceptTask(t *testing.T) {
	e, ledger, c, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)

	task, _ := e.GetTask(id)
	if task.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", task.Status)
	}
	if task.Helper != helper || task.HelperHold != 100 {
		t.Errorf("helper collateral not staked: %+v", task)
	}
	if !task.AcceptedAt.Equal(c.now) {
		t.Errorf("acceptedAt not set")
	}
	if got := ledger.BalanceOf(helper); got != startBalance-100 {
		t.Errorf("helper balance: expected %d, got %d", startBalance-100, got)
	}
	if got := ledger.BalanceOf(DefaultVaultAccount); got != 300 {
		t.Errorf("vault: expected 300, got %d", got)
	}
	if ev := rec.last(t); ev.Type != EventTaskAccepted || ev.Helper != helper {
		t.Errorf("unexpected accepted event: %+v", ev)
	}
	checkConservation(t, ledger)
}

func TestAcceptTaskFailures(t *testing.T) {
	e, _, c, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)

	if err := e.AcceptTask(id, creator); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("self-accept: expected ErrUnauthorized, got %v", err)
	}
	if err := e.AcceptTask(id, keeper); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}

	mustAccept(t, e, id)
	// Second accept observes a non-Open status.
	if err := e.AcceptTask(id, helper); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("double accept: expected ErrInvalidStatus, got %v", err)
	}

	// An expired open window terminates the task lazily.
	stale := mustCreate(t, e, 100)
	c.advance(testWindows.Open + time.Second)
	if err := e.AcceptTask(stale, helper); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expired open: expected ErrInvalidStatus, got %v", err)
	}
}

func TestSubmitWork(t *testing.T) {
	e, _, c, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)

	if err := e.SubmitWork(id, creator); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("creator submit: expected ErrUnauthorized, got %v", err)
	}

	mustSubmit(t, e, id)
	task, _ := e.GetTask(id)
	if task.Status != StatusSubmitted {
		t.Errorf("expected submitted, got %s", task.Status)
	}
	if !task.SubmittedAt.Equal(c.now) {
		t.Errorf("submittedAt not set")
	}
	if ev := rec.last(t); ev.Type != EventWorkSubmitted {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestSubmitWorkDeadline(t *testing.T) {
	e, _, c, _ := newTestEngine(t)

	// At the boundary exactly, submission is still allowed.
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	c.advance(testWindows.Progress)
	if err := e.SubmitWork(id, helper); err != nil {
		t.Errorf("submit at exact deadline must succeed, got %v", err)
	}

	// One step past, the helper forfeits progress.
	late := mustCreate(t, e, 100)
	mustAccept(t, e, late)
	c.pastProgress()
	if err := e.SubmitWork(late, helper); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestConfirmComplete(t *testing.T) {
	e, ledger, _, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	mustSubmit(t, e, id)

	if err := e.ConfirmComplete(id, helper); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("helper confirm: expected ErrUnauthorized, got %v", err)
	}
	if err := e.ConfirmComplete(id, creator); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// reward 100 at 200 bps: burn 2, net 98, payout 98+100 collateral.
	if got := ledger.BalanceOf(helper); got != startBalance-100+198 {
		t.Errorf("helper balance: expected %d, got %d", startBalance+98, got)
	}
	if got := ledger.TotalBurned(); got != 2 {
		t.Errorf("expected 2 burned, got %d", got)
	}
	// postFee is retained in the vault, never part of the payout.
	if got := ledger.BalanceOf(DefaultVaultAccount); got != 100 {
		t.Errorf("vault should retain the postFee, got %d", got)
	}
	if got := ledger.BalanceOf(creator); got != startBalance-200 {
		t.Errorf("creator gets no refund on completion, got %d", got)
	}

	task, _ := e.GetTask(id)
	if task.Status != StatusCompleted || task.CreatorHold != 0 || task.HelperHold != 0 {
		t.Errorf("task not finalized: %+v", task)
	}
	ev := rec.last(t)
	if ev.Type != EventTaskCompleted || ev.HelperPayout != 198 || ev.BurnFee != 2 {
		t.Errorf("unexpected completed event: %+v", ev)
	}
	checkConservation(t, ledger)
}

func TestNoDoubleSettlement(t *testing.T) {
	e, _, c, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	mustSubmit(t, e, id)

	if err := e.ConfirmComplete(id, creator); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if err := e.ConfirmComplete(id, creator); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("second confirm: expected ErrInvalidStatus, got %v", err)
	}
	c.pastReview()
	if err := e.ForceSettle(id, keeper); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("force settle after completion: expected ErrInvalidStatus, got %v", err)
	}
}

func TestForceSettle(t *testing.T) {
	e, ledger, c, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	mustSubmit(t, e, id)

	if err := e.ForceSettle(id, keeper); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("force settle inside review window: expected ErrInvalidStatus, got %v", err)
	}

	c.pastReview()
	// Callable by any party, not just the principals.
	if err := e.ForceSettle(id, keeper); err != nil {
		t.Fatalf("force settle failed: %v", err)
	}
	if got := ledger.BalanceOf(helper); got != startBalance+98 {
		t.Errorf("helper balance: expected %d, got %d", startBalance+98, got)
	}
	if got := ledger.TotalBurned(); got != 2 {
		t.Errorf("expected 2 burned, got %d", got)
	}

	// The creator's confirmation window is over.
	task, _ := e.GetTask(id)
	if task.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}
	checkConservation(t, ledger)
}

func TestConfirmAfterReviewWindow(t *testing.T) {
	e, _, c, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	mustSubmit(t, e, id)
	c.pastReview()

	if err := e.ConfirmComplete(id, creator); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("confirm past review window: expected ErrInvalidStatus, got %v", err)
	}
}

func TestCancelTask(t *testing.T) {
	e, ledger, _, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)

	if err := e.CancelTask(id, helper); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-creator cancel: expected ErrUnauthorized, got %v", err)
	}
	if err := e.CancelTask(id, creator); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Full refund, no fee on an unaccepted cancellation.
	if got := ledger.BalanceOf(creator); got != startBalance {
		t.Errorf("expected full refund, balance=%d", got)
	}
	task, _ := e.GetTask(id)
	if task.Status != StatusTerminated {
		t.Errorf("expected terminated, got %s", task.Status)
	}
	ev := rec.last(t)
	if ev.Type != EventTaskTerminated || ev.Reason != ReasonCancelled || ev.Beneficiary != creator {
		t.Errorf("unexpected terminated event: %+v", ev)
	}

	// Accepted tasks cannot be cancelled.
	id2 := mustCreate(t, e, 100)
	mustAccept(t, e, id2)
	if err := e.CancelTask(id2, creator); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("cancel accepted task: expected ErrInvalidStatus, got %v", err)
	}
	checkConservation(t, ledger)
}

func TestCancelAfterOpenWindow(t *testing.T) {
	e, ledger, c, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)
	c.advance(testWindows.Open + time.Hour)

	if err := e.CancelTask(id, creator); err != nil {
		t.Fatalf("cancel after open window failed: %v", err)
	}
	if got := ledger.BalanceOf(creator); got != startBalance {
		t.Errorf("expected full refund, balance=%d", got)
	}
}

func TestRequestFixAndResubmit(t *testing.T) {
	e, _, c, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	mustSubmit(t, e, id)
	firstSubmit := c.now

	if err := e.RequestFix(id, helper); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("helper fix request: expected ErrUnauthorized, got %v", err)
	}
	if err := e.RequestFix(id, creator); err != nil {
		t.Fatalf("fix request failed: %v", err)
	}
	if err := e.RequestFix(id, creator); !errors.Is(err, ErrAlreadyRequested) {
		t.Errorf("duplicate fix request: expected ErrAlreadyRequested, got %v", err)
	}

	// With a fix pending, the review clock is suspended.
	c.pastReview()
	if err := e.ForceSettle(id, keeper); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("force settle with pending fix: expected ErrInvalidStatus, got %v", err)
	}

	// Resubmission clears the request and refreshes the review clock.
	c.advance(time.Hour)
	if err := e.SubmitWork(id, helper); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	task, _ := e.GetTask(id)
	if task.FixRequested {
		t.Errorf("fix request not cleared")
	}
	if !task.SubmittedAt.After(firstSubmit) {
		t.Errorf("submittedAt not refreshed")
	}
	if task.Status != StatusSubmitted {
		t.Errorf("expected submitted, got %s", task.Status)
	}

	// And the creator may request another fix for the new submission.
	if err := e.RequestFix(id, creator); err != nil {
		t.Errorf("second round fix request failed: %v", err)
	}
}

func TestMutualTermination(t *testing.T) {
	e, ledger, _, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)

	if err := e.RequestTermination(id, keeper); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("outsider request: expected ErrUnauthorized, got %v", err)
	}
	if err := e.RequestTermination(id, creator); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if err := e.RequestTermination(id, creator); !errors.Is(err, ErrAlreadyRequested) {
		t.Errorf("duplicate request: expected ErrAlreadyRequested, got %v", err)
	}

	// Counterparty agreement: symmetric split, nothing burned.
	if err := e.RequestTermination(id, helper); err != nil {
		t.Fatalf("agreement failed: %v", err)
	}
	if got := ledger.BalanceOf(creator); got != startBalance {
		t.Errorf("creator not made whole: %d", got)
	}
	if got := ledger.BalanceOf(helper); got != startBalance {
		t.Errorf("helper not made whole: %d", got)
	}
	if ledger.TotalBurned() != 0 {
		t.Errorf("mutual termination must not burn, burned=%d", ledger.TotalBurned())
	}
	task, _ := e.GetTask(id)
	if task.Status != StatusTerminated {
		t.Errorf("expected terminated, got %s", task.Status)
	}
	if ev := rec.last(t); ev.Reason != ReasonMutual {
		t.Errorf("unexpected event: %+v", ev)
	}
	checkConservation(t, ledger)
}

func TestTerminationTimeout(t *testing.T) {
	e, ledger, c, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)

	if err := e.RequestTermination(id, creator); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if err := e.ResolveTermination(id, creator); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("early resolve: expected ErrInvalidStatus, got %v", err)
	}

	c.pastTerminate()
	if err := e.ResolveTermination(id, helper); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-requester resolve: expected ErrUnauthorized, got %v", err)
	}

	// The inactive helper cannot submit once the window has elapsed.
	if err := e.SubmitWork(id, helper); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("submit after termination expiry: expected ErrInvalidStatus, got %v", err)
	}

	if err := e.ResolveTermination(id, creator); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// Creator recovers the 200 hold plus the forfeited collateral net
	// of the 2 burn fee.
	if got := ledger.BalanceOf(creator); got != startBalance+98 {
		t.Errorf("creator balance: expected %d, got %d", startBalance+98, got)
	}
	if got := ledger.BalanceOf(helper); got != startBalance-100 {
		t.Errorf("helper keeps the loss: expected %d, got %d", startBalance-100, got)
	}
	if got := ledger.TotalBurned(); got != 2 {
		t.Errorf("expected 2 burned, got %d", got)
	}
	ev := rec.last(t)
	if ev.Type != EventTaskTerminated || ev.Reason != ReasonTerminationTimeout || ev.Beneficiary != creator {
		t.Errorf("unexpected event: %+v", ev)
	}
	checkConservation(t, ledger)
}

func TestFixRequestThenTerminationTimeout(t *testing.T) {
	e, ledger, c, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	mustSubmit(t, e, id)

	if err := e.RequestFix(id, creator); err != nil {
		t.Fatalf("fix request failed: %v", err)
	}
	if err := e.RequestTermination(id, creator); err != nil {
		t.Fatalf("termination request failed: %v", err)
	}

	// The helper never resubmits. The fix request suspends the review
	// clock but not the termination waiting period.
	c.pastTerminate()
	if err := e.SubmitWork(id, helper); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("resubmit after termination expiry: expected ErrInvalidStatus, got %v", err)
	}
	if err := e.ResolveTermination(id, creator); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// Creator recovers the 200 hold plus the forfeited collateral net
	// of the 2 burn fee.
	if got := ledger.BalanceOf(creator); got != startBalance+98 {
		t.Errorf("creator balance: expected %d, got %d", startBalance+98, got)
	}
	if got := ledger.BalanceOf(helper); got != startBalance-100 {
		t.Errorf("helper balance: expected %d, got %d", startBalance-100, got)
	}
	if got := ledger.TotalBurned(); got != 2 {
		t.Errorf("expected 2 burned, got %d", got)
	}
	ev := rec.last(t)
	if ev.Type != EventTaskTerminated || ev.Reason != ReasonTerminationTimeout || ev.Beneficiary != creator {
		t.Errorf("unexpected event: %+v", ev)
	}
	checkConservation(t, ledger)
}

func TestSubmissionAnswersTerminationRequest(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)

	if err := e.RequestTermination(id, creator); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	// A timely submission is a counter-action: the request is dropped.
	mustSubmit(t, e, id)
	task, _ := e.GetTask(id)
	if task.TerminateRequestedBy != "" {
		t.Errorf("termination request not cleared by submission")
	}
	if err := e.ResolveTermination(id, creator); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("resolve after counter-action: expected ErrInvalidStatus, got %v", err)
	}
}

func TestReviewTimeoutOutranksTermination(t *testing.T) {
	e, ledger, c, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	mustSubmit(t, e, id)

	if err := e.RequestTermination(id, creator); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	c.advance(testWindows.Review + testWindows.Terminate + time.Hour)

	// The creator cannot starve out a delivered submission.
	if err := e.ResolveTermination(id, creator); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("resolve on settleable submission: expected ErrInvalidStatus, got %v", err)
	}
	if err := e.ForceSettle(id, helper); err != nil {
		t.Fatalf("force settle failed: %v", err)
	}
	if got := ledger.BalanceOf(helper); got != startBalance+98 {
		t.Errorf("helper balance: expected %d, got %d", startBalance+98, got)
	}
	checkConservation(t, ledger)
}

func TestHelperTerminationTimeout(t *testing.T) {
	e, ledger, c, _ := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)

	if err := e.RequestTermination(id, helper); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	c.pastTerminate()
	if err := e.ResolveTermination(id, helper); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// Helper recovers collateral plus the creator's forfeited 200 hold
	// net of the 4 burn fee.
	if got := ledger.BalanceOf(helper); got != startBalance+196 {
		t.Errorf("helper balance: expected %d, got %d", startBalance+196, got)
	}
	if got := ledger.BalanceOf(creator); got != startBalance-200 {
		t.Errorf("creator balance: expected %d, got %d", startBalance-200, got)
	}
	if got := ledger.TotalBurned(); got != 4 {
		t.Errorf("expected 4 burned, got %d", got)
	}
	checkConservation(t, ledger)
}

func TestClaimProgressTimeout(t *testing.T) {
	e, ledger, c, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)

	if err := e.ClaimProgressTimeout(id, creator); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("early claim: expected ErrInvalidStatus, got %v", err)
	}

	c.pastProgress()
	if err := e.ClaimProgressTimeout(id, helper); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("helper claim: expected ErrUnauthorized, got %v", err)
	}
	if err := e.ClaimProgressTimeout(id, creator); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	if got := ledger.BalanceOf(creator); got != startBalance+98 {
		t.Errorf("creator balance: expected %d, got %d", startBalance+98, got)
	}
	if got := ledger.BalanceOf(helper); got != startBalance-100 {
		t.Errorf("helper balance: expected %d, got %d", startBalance-100, got)
	}
	if got := ledger.TotalBurned(); got != 2 {
		t.Errorf("expected 2 burned, got %d", got)
	}
	if ev := rec.last(t); ev.Reason != ReasonProgressTimeout {
		t.Errorf("unexpected event: %+v", ev)
	}
	checkConservation(t, ledger)
}

func TestLifecycleEventSequence(t *testing.T) {
	e, _, _, rec := newTestEngine(t)
	id := mustCreate(t, e, 100)
	mustAccept(t, e, id)
	mustSubmit(t, e, id)
	if err := e.ConfirmComplete(id, creator); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	want := []EventType{EventTaskCreated, EventTaskAccepted, EventWorkSubmitted, EventTaskCompleted}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(rec.events))
	}
	for i, ev := range rec.events {
		if ev.Type != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], ev.Type)
		}
		if ev.TaskID != id {
			t.Errorf("event %d: wrong task id %d", i, ev.TaskID)
		}
		// Full UUIDs: the journal keys entries by event id.
		if _, err := uuid.Parse(ev.ID); err != nil {
			t.Errorf("event %d: id %q is not a uuid", i, ev.ID)
		}
	}
}

func TestGetTaskNotFound(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	if _, err := e.GetTask(7); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestRewardAttachmentCarriedOpaque(t *testing.T) {
	e, _, _, rec := newTestEngine(t)
	id, err := e.CreateTask(CreateRequest{
		Creator:      creator,
		Reward:       100,
		TaskURI:      "ipfs://task",
		RewardAsset:  "chain-x:token-y",
		RewardAmount: 555,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	task, _ := e.GetTask(id)
	if task.RewardAsset != "chain-x:token-y" || task.RewardAmount != 555 {
		t.Errorf("reward attachment not carried: %+v", task)
	}
	if ev := rec.last(t); ev.RewardAsset != "chain-x:token-y" || ev.RewardAmount != 555 {
		t.Errorf("reward attachment missing from event: %+v", ev)
	}
}
