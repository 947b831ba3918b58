package escrow

import "time"

// Windows holds the deadline durations applied by the evaluator. There
// is no background scheduler: elapsed windows take effect at the start
// of the next call that touches the task.
type Windows struct {
	// Open: an unaccepted task past CreatedAt+Open is terminated.
	Open time.Duration
	// Progress: work not submitted by AcceptedAt+Progress forfeits the
	// helper's collateral.
	Progress time.Duration
	// Review: a submission unreviewed past SubmittedAt+Review becomes
	// force-settleable in the helper's favour.
	Review time.Duration
	// Terminate: a termination request unanswered past
	// TerminateRequestedAt+Terminate forfeits the inactive party's hold.
	Terminate time.Duration
}

// expired reports whether deadline at+window has passed. At the exact
// boundary the deadline has NOT yet elapsed.
func expired(at time.Time, window time.Duration, now time.Time) bool {
	return now.After(at.Add(window))
}

// EffectiveStatus returns the status the task would hold if every
// elapsed deadline were applied, without mutating the record. It is
// consulted before every transition decision.
//
// Precedence for Submitted tasks: a pending fix request suspends the
// review clock, but never a termination request's waiting period — a
// helper who goes silent on a fix request still forfeits once the
// request expires, otherwise both holds would be locked forever. With
// no fix pending, an elapsed review window outranks an elapsed
// termination request, so a creator cannot dodge payment for delivered
// work by filing a termination request and going silent.
func EffectiveStatus(t *Task, w Windows, now time.Time) Status {
	switch t.Status {
	case StatusOpen:
		if expired(t.CreatedAt, w.Open, now) {
			return StatusTerminated
		}
	case StatusInProgress:
		if expired(t.AcceptedAt, w.Progress, now) {
			return StatusTerminated
		}
		if terminationExpired(t, w, now) {
			return StatusTerminated
		}
	case StatusSubmitted:
		if t.FixRequested {
			if terminationExpired(t, w, now) {
				return StatusTerminated
			}
			return StatusSubmitted
		}
		if expired(t.SubmittedAt, w.Review, now) {
			return StatusCompleted
		}
		if terminationExpired(t, w, now) {
			return StatusTerminated
		}
	}
	return t.Status
}

// terminationExpired reports whether a pending termination request has
// outlived its waiting period without counter-action.
func terminationExpired(t *Task, w Windows, now time.Time) bool {
	if t.TerminateRequestedBy == "" {
		return false
	}
	return expired(t.TerminateRequestedAt, w.Terminate, now)
}
