package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reviewhub/internal/domain/notify"
)

// fakeStore is an in-memory StoreAPI with the same guard semantics as the
// SQL store: guarded updates report whether they matched, and inserts with
// a uniqueness key are idempotent.
type fakeStore struct {
	cycles    map[string]*ReviewCycle
	forms     map[string]*ReviewForm
	records   map[string]*CalibrationRecord
	changes   []CalibrationChange
	employees []EmployeeRef
	userByEmp map[string]string
	byRole    map[string][]string
	checkins  map[string]*Checkin
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cycles:    map[string]*ReviewCycle{},
		forms:     map[string]*ReviewForm{},
		records:   map[string]*CalibrationRecord{},
		userByEmp: map[string]string{},
		byRole:    map[string][]string{},
		checkins:  map[string]*Checkin{},
	}
}

func (f *fakeStore) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) addEmployee(employeeID, userID, managerID string) {
	f.employees = append(f.employees, EmployeeRef{EmployeeID: employeeID, UserID: userID, ManagerID: managerID})
	f.userByEmp[employeeID] = userID
}

func (f *fakeStore) CreateCycle(_ context.Context, _ string, cycle ReviewCycle) (string, error) {
	cycle.ID = f.id()
	cycle.Phase = PhaseDraft
	f.cycles[cycle.ID] = &cycle
	return cycle.ID, nil
}

func (f *fakeStore) GetCycle(_ context.Context, _ string, cycleID string) (ReviewCycle, error) {
	cycle, ok := f.cycles[cycleID]
	if !ok {
		return ReviewCycle{}, ErrCycleNotFound
	}
	return *cycle, nil
}

func (f *fakeStore) ListCycles(_ context.Context, _ string, _, _ int) ([]ReviewCycle, error) {
	var out []ReviewCycle
	for _, cycle := range f.cycles {
		out = append(out, *cycle)
	}
	return out, nil
}

func (f *fakeStore) ListOpenCycles(_ context.Context, _ string) ([]ReviewCycle, error) {
	var out []ReviewCycle
	for _, cycle := range f.cycles {
		if cycle.Phase != PhaseDraft && cycle.Phase != PhaseClosed {
			out = append(out, *cycle)
		}
	}
	return out, nil
}

func (f *fakeStore) AdvanceCyclePhase(_ context.Context, _ string, cycleID, from, to string) (bool, error) {
	cycle, ok := f.cycles[cycleID]
	if !ok || cycle.Phase != from {
		return false, nil
	}
	cycle.Phase = to
	return true, nil
}

func (f *fakeStore) MarkPhaseNotified(_ context.Context, _ string, cycleID, phase string) (bool, error) {
	cycle, ok := f.cycles[cycleID]
	if !ok {
		return false, ErrCycleNotFound
	}
	var flag *bool
	switch phase {
	case PhaseSelfReviewOpen:
		flag = &cycle.SelfOpenNotified
	case PhaseManagerReviewOpen:
		flag = &cycle.ManagerOpenNotified
	case PhasePeerReviewOpen:
		flag = &cycle.PeerOpenNotified
	default:
		return false, errors.New("unknown phase flag")
	}
	if *flag {
		return false, nil
	}
	*flag = true
	return true, nil
}

func (f *fakeStore) CreateForm(_ context.Context, _ string, form ReviewForm) (string, error) {
	for _, existing := range f.forms {
		if existing.CycleID == form.CycleID && existing.SubjectID == form.SubjectID &&
			existing.AuthorID == form.AuthorID && existing.Kind == form.Kind {
			return "", nil
		}
	}
	form.ID = f.id()
	if form.Status == "" {
		form.Status = StatusNotStarted
	}
	f.forms[form.ID] = &form
	return form.ID, nil
}

func (f *fakeStore) GetForm(_ context.Context, _ string, formID string) (ReviewForm, error) {
	form, ok := f.forms[formID]
	if !ok {
		return ReviewForm{}, ErrFormNotFound
	}
	return *form, nil
}

func (f *fakeStore) ListFormsByCycle(_ context.Context, _ string, cycleID, kind string) ([]ReviewForm, error) {
	var out []ReviewForm
	for _, form := range f.forms {
		if form.CycleID == cycleID && (kind == "" || form.Kind == kind) {
			out = append(out, *form)
		}
	}
	return out, nil
}

func (f *fakeStore) ListFormsByAuthor(_ context.Context, _ string, authorID string) ([]ReviewForm, error) {
	var out []ReviewForm
	for _, form := range f.forms {
		if form.AuthorID == authorID {
			out = append(out, *form)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUnsubmittedForms(_ context.Context, _ string, cycleID string) ([]ReviewForm, error) {
	var out []ReviewForm
	for _, form := range f.forms {
		if form.CycleID == cycleID && (form.Status == StatusNotStarted || form.Status == StatusDraft) {
			out = append(out, *form)
		}
	}
	return out, nil
}

func (f *fakeStore) ListFormsSubmittedSince(_ context.Context, _ string, since time.Time) ([]ReviewForm, error) {
	var out []ReviewForm
	for _, form := range f.forms {
		if form.SubmittedAt != nil && form.SubmittedAt.After(since) {
			out = append(out, *form)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveFormDraft(_ context.Context, _ string, formID string, draft FormDraft) error {
	form, ok := f.forms[formID]
	if !ok {
		return ErrFormNotFound
	}
	if form.Status != StatusNotStarted && form.Status != StatusDraft {
		return ErrFormLocked
	}
	form.Status = StatusDraft
	form.Answers = draft.Answers
	form.OverallRating = draft.OverallRating
	form.Strengths = draft.Strengths
	form.Improvements = draft.Improvements
	form.Development = draft.Development
	return nil
}

func (f *fakeStore) MarkFormSubmitted(_ context.Context, _ string, formID string, now time.Time) (bool, error) {
	form, ok := f.forms[formID]
	if !ok {
		return false, nil
	}
	if form.Status != StatusNotStarted && form.Status != StatusDraft {
		return false, nil
	}
	form.Status = StatusSubmitted
	submitted := now
	form.SubmittedAt = &submitted
	return true, nil
}

func (f *fakeStore) UpdateFormStatus(_ context.Context, _ string, formID, from, to string) (bool, error) {
	if !StatusBefore(from, to) {
		return false, ErrInvalidStatus
	}
	form, ok := f.forms[formID]
	if !ok || form.Status != from {
		return false, nil
	}
	form.Status = to
	return true, nil
}

func (f *fakeStore) CountForms(_ context.Context, _ string, cycleID, kind string) (int, error) {
	total := 0
	for _, form := range f.forms {
		if form.CycleID == cycleID && form.Kind == kind {
			total++
		}
	}
	return total, nil
}

func (f *fakeStore) CountFormsByStatus(_ context.Context, _ string, cycleID, kind, status string) (int, error) {
	total := 0
	for _, form := range f.forms {
		if form.CycleID == cycleID && form.Kind == kind && form.Status == status {
			total++
		}
	}
	return total, nil
}

func (f *fakeStore) IncrementReminder(_ context.Context, _ string, formID string, managerNotified, hrNotified bool) error {
	form, ok := f.forms[formID]
	if !ok {
		return ErrFormNotFound
	}
	form.ReminderCount++
	form.ManagerNotified = form.ManagerNotified || managerNotified
	form.HRNotified = form.HRNotified || hrNotified
	return nil
}

func (f *fakeStore) CreateCalibrationRecord(_ context.Context, _ string, record CalibrationRecord) (string, error) {
	for _, existing := range f.records {
		if existing.CycleID == record.CycleID && existing.SubjectID == record.SubjectID {
			return "", nil
		}
	}
	record.ID = f.id()
	record.State = CalibrationOpen
	record.FinalRating = record.PreRating
	f.records[record.ID] = &record
	return record.ID, nil
}

func (f *fakeStore) GetCalibrationRecord(_ context.Context, _ string, recordID string) (CalibrationRecord, error) {
	record, ok := f.records[recordID]
	if !ok {
		return CalibrationRecord{}, ErrRecordNotFound
	}
	return *record, nil
}

func (f *fakeStore) GetCalibrationBySubject(_ context.Context, _ string, cycleID, subjectID string) (CalibrationRecord, error) {
	for _, record := range f.records {
		if record.CycleID == cycleID && record.SubjectID == subjectID {
			return *record, nil
		}
	}
	return CalibrationRecord{}, ErrRecordNotFound
}

func (f *fakeStore) ListCalibrationRecords(_ context.Context, _ string, cycleID string) ([]CalibrationRecord, error) {
	var out []CalibrationRecord
	for _, record := range f.records {
		if record.CycleID == cycleID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateCalibrationRating(_ context.Context, _ string, recordID string, rating float64, tier, justification string) (bool, error) {
	record, ok := f.records[recordID]
	if !ok || record.State == CalibrationFinalized {
		return false, nil
	}
	record.FinalRating = &rating
	record.PotentialTier = tier
	record.Justification = justification
	return true, nil
}

func (f *fakeStore) SetCalibrationDispute(_ context.Context, _ string, recordID, reason string) error {
	record, ok := f.records[recordID]
	if !ok {
		return ErrRecordNotFound
	}
	record.Disputed = true
	record.DisputeReason = reason
	record.State = CalibrationDisputed
	return nil
}

func (f *fakeStore) ResolveCalibrationDispute(_ context.Context, _ string, recordID, outcome string) error {
	record, ok := f.records[recordID]
	if !ok {
		return ErrRecordNotFound
	}
	record.DisputeOutcome = outcome
	record.State = CalibrationOpen
	return nil
}

func (f *fakeStore) FinalizeCalibration(_ context.Context, _ string, recordID, approverID string, now time.Time) (bool, error) {
	record, ok := f.records[recordID]
	if !ok || record.State != CalibrationOpen {
		return false, nil
	}
	record.State = CalibrationFinalized
	record.ApproverID = approverID
	approved := now
	record.ApprovedAt = &approved
	return true, nil
}

func (f *fakeStore) CountCalibrationRecords(_ context.Context, _ string, cycleID string) (int, error) {
	total := 0
	for _, record := range f.records {
		if record.CycleID == cycleID {
			total++
		}
	}
	return total, nil
}

func (f *fakeStore) CountFinalizedCalibrations(_ context.Context, _ string, cycleID string) (int, error) {
	total := 0
	for _, record := range f.records {
		if record.CycleID == cycleID && record.State == CalibrationFinalized {
			total++
		}
	}
	return total, nil
}

func (f *fakeStore) AppendCalibrationChange(_ context.Context, _ string, change CalibrationChange) error {
	change.ID = f.id()
	f.changes = append(f.changes, change)
	return nil
}

func (f *fakeStore) ListCalibrationChanges(_ context.Context, _ string, recordID string) ([]CalibrationChange, error) {
	var out []CalibrationChange
	for _, change := range f.changes {
		if change.RecordID == recordID {
			out = append(out, change)
		}
	}
	return out, nil
}

func (f *fakeStore) ListInScopeEmployees(_ context.Context, _ string, excludedDepartments, excludedEmployees []string) ([]EmployeeRef, error) {
	excluded := map[string]bool{}
	for _, id := range excludedEmployees {
		excluded[id] = true
	}
	departments := map[string]bool{}
	for _, id := range excludedDepartments {
		departments[id] = true
	}
	var out []EmployeeRef
	for _, ref := range f.employees {
		if excluded[ref.EmployeeID] || (ref.DepartmentID != "" && departments[ref.DepartmentID]) {
			continue
		}
		out = append(out, ref)
	}
	return out, nil
}

func (f *fakeStore) DirectReports(_ context.Context, _ string, managerEmployeeID string) ([]EmployeeRef, error) {
	var out []EmployeeRef
	for _, ref := range f.employees {
		if ref.ManagerID == managerEmployeeID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (f *fakeStore) EmployeeUserID(_ context.Context, _ string, employeeID string) (string, error) {
	userID, ok := f.userByEmp[employeeID]
	if !ok {
		return "", errors.New("no such employee")
	}
	return userID, nil
}

func (f *fakeStore) EmployeeIDByUserID(_ context.Context, _ string, userID string) (string, error) {
	for employeeID, uid := range f.userByEmp {
		if uid == userID {
			return employeeID, nil
		}
	}
	return "", errors.New("no such user")
}

func (f *fakeStore) ManagerIDByEmployeeID(_ context.Context, _ string, employeeID string) (string, error) {
	for _, ref := range f.employees {
		if ref.EmployeeID == employeeID {
			return ref.ManagerID, nil
		}
	}
	return "", errors.New("no such employee")
}

func (f *fakeStore) UserIDsByRole(_ context.Context, _ string, roleName string) ([]string, error) {
	return f.byRole[roleName], nil
}

func (f *fakeStore) ListCheckinsDueBetween(_ context.Context, _ string, from, to time.Time) ([]Checkin, error) {
	var out []Checkin
	for _, checkin := range f.checkins {
		if !checkin.ReminderSent && !checkin.ScheduledAt.Before(from) && checkin.ScheduledAt.Before(to) {
			out = append(out, *checkin)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkCheckinReminded(_ context.Context, _ string, checkinID string) (bool, error) {
	checkin, ok := f.checkins[checkinID]
	if !ok || checkin.ReminderSent {
		return false, nil
	}
	checkin.ReminderSent = true
	return true, nil
}

// fakeNotifier records every dispatched request.
type fakeNotifier struct {
	sent []notify.Request
}

func (f *fakeNotifier) Notify(_ context.Context, _ string, req notify.Request) error {
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeNotifier) countCategory(category string) int {
	total := 0
	for _, req := range f.sent {
		if req.Category == category {
			total++
		}
	}
	return total
}

// fakeArchiver fails for the subjects listed in fail.
type fakeArchiver struct {
	fail     map[string]bool
	archived []string
}

func (f *fakeArchiver) Archive(_ context.Context, _ string, _ string, subjectID string) error {
	if f.fail[subjectID] {
		return errors.New("archive store unavailable")
	}
	f.archived = append(f.archived, subjectID)
	return nil
}
