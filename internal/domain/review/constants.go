package review

// Cycle phases, in lifecycle order. Transitions only ever move forward.
const (
	PhaseDraft             = "DRAFT"
	PhaseActive            = "ACTIVE"
	PhaseSelfReviewOpen    = "SELF_REVIEW_OPEN"
	PhaseManagerReviewOpen = "MANAGER_REVIEW_OPEN"
	PhasePeerReviewOpen    = "PEER_REVIEW_OPEN"
	PhaseCalibration       = "CALIBRATION"
	PhasePublished         = "PUBLISHED"
	PhaseClosed            = "CLOSED"
)

var phaseRank = map[string]int{
	PhaseDraft:             0,
	PhaseActive:            1,
	PhaseSelfReviewOpen:    2,
	PhaseManagerReviewOpen: 3,
	PhasePeerReviewOpen:    4,
	PhaseCalibration:       5,
	PhasePublished:         6,
	PhaseClosed:            7,
}

// PhaseRank returns the position of a phase in the lifecycle order, or -1 for
// an unknown phase.
func PhaseRank(phase string) int {
	rank, ok := phaseRank[phase]
	if !ok {
		return -1
	}
	return rank
}

// PhaseBefore reports whether a precedes b in the lifecycle order.
func PhaseBefore(a, b string) bool {
	ra, rb := PhaseRank(a), PhaseRank(b)
	return ra >= 0 && rb >= 0 && ra < rb
}

// Form statuses, in lifecycle order.
const (
	StatusNotStarted = "NOT_STARTED"
	StatusDraft      = "DRAFT"
	StatusSubmitted  = "SUBMITTED"
	StatusCalibrated = "CALIBRATED"
	StatusPublished  = "PUBLISHED"
)

var statusRank = map[string]int{
	StatusNotStarted: 0,
	StatusDraft:      1,
	StatusSubmitted:  2,
	StatusCalibrated: 3,
	StatusPublished:  4,
}

func StatusRank(status string) int {
	rank, ok := statusRank[status]
	if !ok {
		return -1
	}
	return rank
}

func StatusBefore(a, b string) bool {
	ra, rb := StatusRank(a), StatusRank(b)
	return ra >= 0 && rb >= 0 && ra < rb
}

// Form kinds.
const (
	FormSelf    = "SELF"
	FormManager = "MANAGER"
	FormPeer    = "PEER"
	FormUpward  = "UPWARD"
)

// Cycle kinds.
const (
	CycleQuarterly = "quarterly"
	CycleMidYear   = "mid_year"
	CycleAnnual    = "annual"
	CycleProbation = "probation"
	CycleCustom    = "custom"
)

// Rating scale kinds.
const (
	ScaleFivePoint  = "five_point"
	ScaleFourPoint  = "four_point"
	ScaleTenPoint   = "ten_point"
	ScaleDescriptor = "descriptor"
)

// Calibration record states.
const (
	CalibrationOpen      = "open"
	CalibrationDisputed  = "disputed"
	CalibrationFinalized = "finalized"
)
