package review

import (
	"encoding/json"
	"time"
)

type ReviewCycle struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Kind                string          `json:"kind"`
	Phase               string          `json:"phase"`
	PeriodStart         time.Time       `json:"periodStart"`
	PeriodEnd           time.Time       `json:"periodEnd"`
	SelfReviewStart     time.Time       `json:"selfReviewStart"`
	SelfReviewEnd       time.Time       `json:"selfReviewEnd"`
	ManagerReviewStart  time.Time       `json:"managerReviewStart"`
	ManagerReviewEnd    time.Time       `json:"managerReviewEnd"`
	PeerReviewStart     *time.Time      `json:"peerReviewStart,omitempty"`
	PeerReviewEnd       *time.Time      `json:"peerReviewEnd,omitempty"`
	CalibrationDate     *time.Time      `json:"calibrationDate,omitempty"`
	PublishDate         *time.Time      `json:"publishDate,omitempty"`
	RatingScale         string          `json:"ratingScale"`
	PeerEnabled         bool            `json:"peerEnabled"`
	UpwardEnabled       bool            `json:"upwardEnabled"`
	AnonymousPeer       bool            `json:"anonymousPeer"`
	CalibrationRequired bool            `json:"calibrationRequired"`
	CompensationLinked  bool            `json:"compensationLinked"`
	Sections            json.RawMessage `json:"sections,omitempty"`
	ExcludedDepartments []string        `json:"excludedDepartments,omitempty"`
	ExcludedEmployees   []string        `json:"excludedEmployees,omitempty"`
	SelfOpenNotified    bool            `json:"-"`
	ManagerOpenNotified bool            `json:"-"`
	PeerOpenNotified    bool            `json:"-"`
}

type ReviewForm struct {
	ID              string          `json:"id"`
	CycleID         string          `json:"cycleId"`
	SubjectID       string          `json:"subjectId"`
	AuthorID        string          `json:"authorId"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	Answers         json.RawMessage `json:"answers,omitempty"`
	OverallRating   *float64        `json:"overallRating,omitempty"`
	Strengths       string          `json:"strengths,omitempty"`
	Improvements    string          `json:"improvements,omitempty"`
	Development     string          `json:"development,omitempty"`
	SubmittedAt     *time.Time      `json:"submittedAt,omitempty"`
	ReminderCount   int             `json:"reminderCount"`
	ManagerNotified bool            `json:"-"`
	HRNotified      bool            `json:"-"`
}

type CalibrationRecord struct {
	ID             string     `json:"id"`
	CycleID        string     `json:"cycleId"`
	SubjectID      string     `json:"subjectId"`
	State          string     `json:"state"`
	PreRating      *float64   `json:"preRating,omitempty"`
	FinalRating    *float64   `json:"finalRating,omitempty"`
	PotentialTier  string     `json:"potentialTier,omitempty"`
	Justification  string     `json:"justification,omitempty"`
	ApproverID     string     `json:"approverId,omitempty"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	Disputed       bool       `json:"disputed"`
	DisputeReason  string     `json:"disputeReason,omitempty"`
	DisputeOutcome string     `json:"disputeOutcome,omitempty"`
}

// CalibrationChange is one entry in the append-only audit trail for a
// calibration record. Entries are never updated or deleted.
type CalibrationChange struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	ActorID   string    `json:"actorId"`
	Field     string    `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmployeeRef is the slice of the employee record the review workflows need.
type EmployeeRef struct {
	EmployeeID   string
	UserID       string
	ManagerID    string
	DepartmentID string
}

// FormDraft carries the editable fields of a form save.
type FormDraft struct {
	Answers       json.RawMessage
	OverallRating *float64
	Strengths     string
	Improvements  string
	Development   string
}

// Checkin is a scheduled 1:1 conversation between a subject and their manager
// during a review window.
type Checkin struct {
	ID           string    `json:"id"`
	CycleID      string    `json:"cycleId"`
	EmployeeID   string    `json:"employeeId"`
	ManagerID    string    `json:"managerId"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	ReminderSent bool      `json:"reminderSent"`
}

// FinalRating resolves a subject's rating for a cycle: the calibrated rating
// when a record exists, otherwise the manager form's overall rating.
func FinalRating(record *CalibrationRecord, managerForm *ReviewForm) *float64 {
	if record != nil && record.FinalRating != nil {
		return record.FinalRating
	}
	if managerForm != nil {
		return managerForm.OverallRating
	}
	return nil
}
