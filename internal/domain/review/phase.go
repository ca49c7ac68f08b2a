package review

import "time"

// NextDatePhase returns the single forward transition a cycle is due for at
// the given time, based purely on its phase windows. It returns false when no
// date-driven transition applies: DRAFT cycles wait for an administrative
// activate, CALIBRATION and later phases advance through the orchestrator or
// administrative actions, never through the clock.
func NextDatePhase(cycle ReviewCycle, now time.Time) (string, bool) {
	switch cycle.Phase {
	case PhaseActive:
		if !now.Before(cycle.SelfReviewStart) {
			return PhaseSelfReviewOpen, true
		}
	case PhaseSelfReviewOpen:
		if !now.Before(cycle.ManagerReviewStart) {
			return PhaseManagerReviewOpen, true
		}
	case PhaseManagerReviewOpen:
		if cycle.PeerEnabled && cycle.PeerReviewStart != nil && !now.Before(*cycle.PeerReviewStart) {
			return PhasePeerReviewOpen, true
		}
	}
	return "", false
}

// KindOpen reports whether a form kind may be worked on and submitted in the
// given cycle phase. A kind stays open in every later phase before PUBLISHED
// so late submissions remain possible while reminders chase them.
func KindOpen(kind, phase string) bool {
	rank := PhaseRank(phase)
	if rank < 0 || rank >= PhaseRank(PhasePublished) {
		return false
	}
	switch kind {
	case FormSelf, FormUpward:
		return rank >= PhaseRank(PhaseSelfReviewOpen)
	case FormManager:
		return rank >= PhaseRank(PhaseManagerReviewOpen)
	case FormPeer:
		return rank >= PhaseRank(PhasePeerReviewOpen)
	}
	return false
}

// Deadline returns the governing deadline for a form kind within a cycle.
// The second return is false when the cycle has no window for that kind.
func Deadline(cycle ReviewCycle, kind string) (time.Time, bool) {
	switch kind {
	case FormSelf, FormUpward:
		return cycle.SelfReviewEnd, true
	case FormManager:
		return cycle.ManagerReviewEnd, true
	case FormPeer:
		if cycle.PeerReviewEnd != nil {
			return *cycle.PeerReviewEnd, true
		}
	}
	return time.Time{}, false
}

// DaysOverdue returns whole days elapsed since the deadline, never negative.
func DaysOverdue(deadline, now time.Time) int {
	if !now.After(deadline) {
		return 0
	}
	return int(now.Sub(deadline).Hours() / 24)
}

func terminalPhase(phase string) bool {
	return phase == PhaseClosed
}
