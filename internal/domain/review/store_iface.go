package review

import (
	"context"
	"time"
)

type StoreAPI interface {
	// Cycles.
	CreateCycle(ctx context.Context, tenantID string, cycle ReviewCycle) (string, error)
	GetCycle(ctx context.Context, tenantID, cycleID string) (ReviewCycle, error)
	ListCycles(ctx context.Context, tenantID string, limit, offset int) ([]ReviewCycle, error)
	ListOpenCycles(ctx context.Context, tenantID string) ([]ReviewCycle, error)
	AdvanceCyclePhase(ctx context.Context, tenantID, cycleID, from, to string) (bool, error)
	MarkPhaseNotified(ctx context.Context, tenantID, cycleID, phase string) (bool, error)

	// Forms.
	CreateForm(ctx context.Context, tenantID string, form ReviewForm) (string, error)
	GetForm(ctx context.Context, tenantID, formID string) (ReviewForm, error)
	ListFormsByCycle(ctx context.Context, tenantID, cycleID, kind string) ([]ReviewForm, error)
	ListFormsByAuthor(ctx context.Context, tenantID, authorID string) ([]ReviewForm, error)
	ListUnsubmittedForms(ctx context.Context, tenantID, cycleID string) ([]ReviewForm, error)
	ListFormsSubmittedSince(ctx context.Context, tenantID string, since time.Time) ([]ReviewForm, error)
	SaveFormDraft(ctx context.Context, tenantID, formID string, draft FormDraft) error
	MarkFormSubmitted(ctx context.Context, tenantID, formID string, now time.Time) (bool, error)
	UpdateFormStatus(ctx context.Context, tenantID, formID, from, to string) (bool, error)
	CountForms(ctx context.Context, tenantID, cycleID, kind string) (int, error)
	CountFormsByStatus(ctx context.Context, tenantID, cycleID, kind, status string) (int, error)
	IncrementReminder(ctx context.Context, tenantID, formID string, managerNotified, hrNotified bool) error

	// Calibration.
	CreateCalibrationRecord(ctx context.Context, tenantID string, record CalibrationRecord) (string, error)
	GetCalibrationRecord(ctx context.Context, tenantID, recordID string) (CalibrationRecord, error)
	GetCalibrationBySubject(ctx context.Context, tenantID, cycleID, subjectID string) (CalibrationRecord, error)
	ListCalibrationRecords(ctx context.Context, tenantID, cycleID string) ([]CalibrationRecord, error)
	UpdateCalibrationRating(ctx context.Context, tenantID, recordID string, rating float64, tier, justification string) (bool, error)
	SetCalibrationDispute(ctx context.Context, tenantID, recordID, reason string) error
	ResolveCalibrationDispute(ctx context.Context, tenantID, recordID, outcome string) error
	FinalizeCalibration(ctx context.Context, tenantID, recordID, approverID string, now time.Time) (bool, error)
	CountCalibrationRecords(ctx context.Context, tenantID, cycleID string) (int, error)
	CountFinalizedCalibrations(ctx context.Context, tenantID, cycleID string) (int, error)
	AppendCalibrationChange(ctx context.Context, tenantID string, change CalibrationChange) error
	ListCalibrationChanges(ctx context.Context, tenantID, recordID string) ([]CalibrationChange, error)

	// Organization lookups.
	ListInScopeEmployees(ctx context.Context, tenantID string, excludedDepartments, excludedEmployees []string) ([]EmployeeRef, error)
	DirectReports(ctx context.Context, tenantID, managerEmployeeID string) ([]EmployeeRef, error)
	EmployeeUserID(ctx context.Context, tenantID, employeeID string) (string, error)
	EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error)
	ManagerIDByEmployeeID(ctx context.Context, tenantID, employeeID string) (string, error)
	UserIDsByRole(ctx context.Context, tenantID, roleName string) ([]string, error)

	// Review check-ins.
	ListCheckinsDueBetween(ctx context.Context, tenantID string, from, to time.Time) ([]Checkin, error)
	MarkCheckinReminded(ctx context.Context, tenantID, checkinID string) (bool, error)
}
