package review

import (
	"testing"
	"time"
)

func TestPhaseOrder(t *testing.T) {
	ordered := []string{
		PhaseDraft, PhaseActive, PhaseSelfReviewOpen, PhaseManagerReviewOpen,
		PhasePeerReviewOpen, PhaseCalibration, PhasePublished, PhaseClosed,
	}
	for i := 1; i < len(ordered); i++ {
		if !PhaseBefore(ordered[i-1], ordered[i]) {
			t.Fatalf("expected %s before %s", ordered[i-1], ordered[i])
		}
		if PhaseBefore(ordered[i], ordered[i-1]) {
			t.Fatalf("unexpected %s before %s", ordered[i], ordered[i-1])
		}
	}
	if PhaseRank("bogus") != -1 {
		t.Fatal("unknown phase should rank -1")
	}
	if PhaseBefore("bogus", PhaseClosed) {
		t.Fatal("unknown phase never orders")
	}
}

func TestNextDatePhase(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	peerStart := base.AddDate(0, 0, 20)
	cycle := ReviewCycle{
		Phase:              PhaseActive,
		SelfReviewStart:    base.AddDate(0, 0, 5),
		ManagerReviewStart: base.AddDate(0, 0, 12),
		PeerEnabled:        true,
		PeerReviewStart:    &peerStart,
	}

	if _, ok := NextDatePhase(cycle, base); ok {
		t.Fatal("no transition before the self window opens")
	}
	next, ok := NextDatePhase(cycle, cycle.SelfReviewStart)
	if !ok || next != PhaseSelfReviewOpen {
		t.Fatalf("expected SELF_REVIEW_OPEN at window start, got %q %v", next, ok)
	}

	cycle.Phase = PhaseSelfReviewOpen
	next, ok = NextDatePhase(cycle, base.AddDate(0, 0, 14))
	if !ok || next != PhaseManagerReviewOpen {
		t.Fatalf("expected MANAGER_REVIEW_OPEN, got %q %v", next, ok)
	}

	cycle.Phase = PhaseManagerReviewOpen
	next, ok = NextDatePhase(cycle, peerStart)
	if !ok || next != PhasePeerReviewOpen {
		t.Fatalf("expected PEER_REVIEW_OPEN, got %q %v", next, ok)
	}

	// Peer window never opens by clock when peer reviews are disabled.
	cycle.PeerEnabled = false
	if _, ok := NextDatePhase(cycle, peerStart.AddDate(0, 1, 0)); ok {
		t.Fatal("peer transition with peer reviews disabled")
	}

	// Calibration and later phases never advance on dates.
	cycle.Phase = PhaseCalibration
	if _, ok := NextDatePhase(cycle, peerStart.AddDate(1, 0, 0)); ok {
		t.Fatal("calibration must not advance by clock")
	}
}

func TestKindOpen(t *testing.T) {
	cases := []struct {
		kind, phase string
		open        bool
	}{
		{FormSelf, PhaseActive, false},
		{FormSelf, PhaseSelfReviewOpen, true},
		{FormSelf, PhaseCalibration, true},
		{FormSelf, PhasePublished, false},
		{FormUpward, PhaseSelfReviewOpen, true},
		{FormManager, PhaseSelfReviewOpen, false},
		{FormManager, PhaseManagerReviewOpen, true},
		{FormManager, PhaseCalibration, true},
		{FormPeer, PhaseManagerReviewOpen, false},
		{FormPeer, PhasePeerReviewOpen, true},
		{FormSelf, PhaseClosed, false},
		{FormSelf, "bogus", false},
		{"bogus", PhaseCalibration, false},
	}

	for _, tc := range cases {
		if got := KindOpen(tc.kind, tc.phase); got != tc.open {
			t.Fatalf("KindOpen(%s, %s) = %v, want %v", tc.kind, tc.phase, got, tc.open)
		}
	}
}

func TestDaysOverdue(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := DaysOverdue(deadline, deadline.Add(-time.Hour)); got != 0 {
		t.Fatalf("before deadline = %d, want 0", got)
	}
	if got := DaysOverdue(deadline, deadline.Add(12*time.Hour)); got != 0 {
		t.Fatalf("half a day = %d, want 0", got)
	}
	if got := DaysOverdue(deadline, deadline.AddDate(0, 0, 3)); got != 3 {
		t.Fatalf("three days = %d, want 3", got)
	}
}

func TestDeadline(t *testing.T) {
	peerEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cycle := ReviewCycle{
		SelfReviewEnd:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		ManagerReviewEnd: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	if deadline, ok := Deadline(cycle, FormSelf); !ok || !deadline.Equal(cycle.SelfReviewEnd) {
		t.Fatalf("self deadline = %v %v", deadline, ok)
	}
	if deadline, ok := Deadline(cycle, FormUpward); !ok || !deadline.Equal(cycle.SelfReviewEnd) {
		t.Fatalf("upward deadline = %v %v", deadline, ok)
	}
	if deadline, ok := Deadline(cycle, FormManager); !ok || !deadline.Equal(cycle.ManagerReviewEnd) {
		t.Fatalf("manager deadline = %v %v", deadline, ok)
	}
	if _, ok := Deadline(cycle, FormPeer); ok {
		t.Fatal("peer deadline without a peer window")
	}
	cycle.PeerReviewEnd = &peerEnd
	if deadline, ok := Deadline(cycle, FormPeer); !ok || !deadline.Equal(peerEnd) {
		t.Fatalf("peer deadline = %v %v", deadline, ok)
	}
}
