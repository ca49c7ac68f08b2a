package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewhub/internal/domain/auth"
	"reviewhub/internal/domain/notify"
)

// SubmitResult reports what a submission set in motion.
type SubmitResult struct {
	Status           string `json:"status"`
	TeamReady        bool   `json:"teamReady"`
	CalibrationReady bool   `json:"calibrationReady"`
	CyclePublished   bool   `json:"cyclePublished"`
}

// PublishSummary reports the outcome of a cycle publication.
type PublishSummary struct {
	CycleID          string `json:"cycleId"`
	FormsPublished   int    `json:"formsPublished"`
	SubjectsArchived int    `json:"subjectsArchived"`
	ArchiveFailures  int    `json:"archiveFailures"`
}

// SubmitForm marks a form SUBMITTED and runs the workflow that follows from
// its kind. The submission itself is guarded by the form's current status, so
// a duplicate call returns ErrInvalidStatus without re-running side effects.
func (s *Service) SubmitForm(ctx context.Context, tenantID, formID, authorEmployeeID string, now time.Time) (SubmitResult, error) {
	result := SubmitResult{Status: StatusSubmitted}

	form, err := s.store.GetForm(ctx, tenantID, formID)
	if err != nil {
		return result, err
	}
	if form.AuthorID != authorEmployeeID {
		return result, ErrNotFormAuthor
	}
	cycle, err := s.store.GetCycle(ctx, tenantID, form.CycleID)
	if err != nil {
		return result, err
	}
	if !KindOpen(form.Kind, cycle.Phase) {
		return result, fmt.Errorf("%w: %s form in phase %s", ErrKindNotOpen, form.Kind, cycle.Phase)
	}

	submitted, err := s.store.MarkFormSubmitted(ctx, tenantID, formID, now)
	if err != nil {
		return result, err
	}
	if !submitted {
		return result, fmt.Errorf("%w: form is %s", ErrInvalidStatus, form.Status)
	}

	switch form.Kind {
	case FormSelf:
		return s.onSelfSubmitted(ctx, tenantID, cycle, form, result)
	case FormManager:
		return s.onManagerSubmitted(ctx, tenantID, cycle, form, now, result)
	default:
		return result, nil
	}
}

// onSelfSubmitted notifies the subject's manager and, when the whole team has
// turned in self-reviews, sends the manager a single team-ready notice.
func (s *Service) onSelfSubmitted(ctx context.Context, tenantID string, cycle ReviewCycle, form ReviewForm, result SubmitResult) (SubmitResult, error) {
	managerID, err := s.store.ManagerIDByEmployeeID(ctx, tenantID, form.SubjectID)
	if err != nil || managerID == "" {
		if err != nil {
			slog.Warn("self-review manager lookup failed", "subjectId", form.SubjectID, "err", err)
		}
		return result, nil
	}
	managerUser, err := s.store.EmployeeUserID(ctx, tenantID, managerID)
	if err != nil {
		slog.Warn("self-review manager user lookup failed", "managerId", managerID, "err", err)
		return result, nil
	}

	s.send(ctx, tenantID, notify.Request{
		RecipientID: managerUser,
		Title:       "Self-review submitted",
		Message:     fmt.Sprintf("A direct report submitted their self-review for %s.", cycle.Name),
		Priority:    notify.PriorityMedium,
		Category:    notify.CategoryReviewReceived,
		Channels:    []string{notify.ChannelInApp},
	})

	ready, err := s.teamSelfReviewsComplete(ctx, tenantID, cycle.ID, managerID)
	if err != nil {
		slog.Warn("team completion check failed", "managerId", managerID, "err", err)
		return result, nil
	}
	if ready {
		result.TeamReady = true
		s.send(ctx, tenantID, notify.Request{
			RecipientID: managerUser,
			Title:       "Team self-reviews complete",
			Message:     fmt.Sprintf("All of your direct reports have submitted self-reviews for %s. You can begin manager reviews.", cycle.Name),
			Priority:    notify.PriorityHigh,
			Category:    notify.CategoryTeamReady,
			Channels:    []string{notify.ChannelInApp, notify.ChannelEmail},
		})
	}
	return result, nil
}

// teamSelfReviewsComplete is a read-only aggregate check over the manager's
// direct reports; racing submissions each re-evaluate it with fresh counts.
func (s *Service) teamSelfReviewsComplete(ctx context.Context, tenantID, cycleID, managerID string) (bool, error) {
	reports, err := s.store.DirectReports(ctx, tenantID, managerID)
	if err != nil {
		return false, err
	}
	if len(reports) == 0 {
		return false, nil
	}
	forms, err := s.store.ListFormsByCycle(ctx, tenantID, cycleID, FormSelf)
	if err != nil {
		return false, err
	}
	submitted := make(map[string]bool, len(forms))
	for _, form := range forms {
		if StatusRank(form.Status) >= StatusRank(StatusSubmitted) {
			submitted[form.SubjectID] = true
		}
	}
	for _, report := range reports {
		if !submitted[report.EmployeeID] {
			return false, nil
		}
	}
	return true, nil
}

// onManagerSubmitted notifies the subject, opens the subject's calibration
// record, tells HR a review is available, and re-evaluates calibration
// readiness for the cycle.
func (s *Service) onManagerSubmitted(ctx context.Context, tenantID string, cycle ReviewCycle, form ReviewForm, now time.Time, result SubmitResult) (SubmitResult, error) {
	if subjectUser, err := s.store.EmployeeUserID(ctx, tenantID, form.SubjectID); err == nil && subjectUser != "" {
		s.send(ctx, tenantID, notify.Request{
			RecipientID: subjectUser,
			Title:       "Manager review submitted",
			Message:     fmt.Sprintf("Your manager has completed your review for %s.", cycle.Name),
			Priority:    notify.PriorityMedium,
			Category:    notify.CategoryReviewReceived,
			Channels:    []string{notify.ChannelInApp},
		})
	}

	if _, err := s.store.CreateCalibrationRecord(ctx, tenantID, CalibrationRecord{
		CycleID:   cycle.ID,
		SubjectID: form.SubjectID,
		PreRating: form.OverallRating,
	}); err != nil {
		slog.Warn("calibration record create failed", "cycleId", cycle.ID, "subjectId", form.SubjectID, "err", err)
	}

	s.notifyRole(ctx, tenantID, auth.RoleHR, notify.Request{
		Title:    "Manager review available",
		Message:  fmt.Sprintf("A manager review for %s is available for record-keeping.", cycle.Name),
		Priority: notify.PriorityLow,
		Category: notify.CategoryReviewReceived,
		Channels: []string{notify.ChannelInApp},
	})

	ready, err := s.calibrationReady(ctx, tenantID, cycle.ID)
	if err != nil {
		return result, err
	}
	if !ready {
		return result, nil
	}
	result.CalibrationReady = true

	// The phase guard makes the duplicate attempt from a racing submission a
	// no-op; only the winner sends the calibration-ready notice.
	advanced, err := s.store.AdvanceCyclePhase(ctx, tenantID, cycle.ID, cycle.Phase, PhaseCalibration)
	if err != nil {
		return result, err
	}
	if advanced {
		s.notifyRole(ctx, tenantID, auth.RoleHR, notify.Request{
			Title:    "Calibration ready",
			Message:  fmt.Sprintf("All manager reviews for %s are submitted. Calibration can begin.", cycle.Name),
			Priority: notify.PriorityHigh,
			Category: notify.CategoryCalibrationReady,
			Channels: []string{notify.ChannelInApp, notify.ChannelEmail},
		})
		if !cycle.CalibrationRequired {
			if _, err := s.CompleteCalibration(ctx, tenantID, cycle.ID, now); err != nil {
				return result, err
			}
			result.CyclePublished = true
		}
	}
	return result, nil
}

// calibrationReady: every MANAGER form created for the cycle has reached at
// least SUBMITTED and there is at least one. Self and peer completion never
// gate calibration. Rank-based like teamSelfReviewsComplete, so a form that
// already moved past SUBMITTED still counts as done.
func (s *Service) calibrationReady(ctx context.Context, tenantID, cycleID string) (bool, error) {
	forms, err := s.store.ListFormsByCycle(ctx, tenantID, cycleID, FormManager)
	if err != nil {
		return false, err
	}
	if len(forms) == 0 {
		return false, nil
	}
	for _, form := range forms {
		if StatusRank(form.Status) < StatusRank(StatusSubmitted) {
			return false, nil
		}
	}
	return true, nil
}

// FinalizeCalibration signs off one subject's record, marks the manager form
// CALIBRATED, and fires the cycle-level calibration-complete event once every
// record is finalized.
func (s *Service) FinalizeCalibration(ctx context.Context, tenantID, recordID, approverID string, now time.Time) (SubmitResult, error) {
	var result SubmitResult

	record, err := s.store.GetCalibrationRecord(ctx, tenantID, recordID)
	if err != nil {
		return result, err
	}
	cycle, err := s.store.GetCycle(ctx, tenantID, record.CycleID)
	if err != nil {
		return result, err
	}
	// Sign-off is only valid once the cycle has actually entered calibration;
	// rejecting earlier keeps an eager approver from marking forms CALIBRATED
	// while manager reviews are still outstanding.
	if PhaseRank(cycle.Phase) < PhaseRank(PhaseCalibration) {
		return result, fmt.Errorf("%w: cycle is %s", ErrInvalidPhase, cycle.Phase)
	}
	finalized, err := s.store.FinalizeCalibration(ctx, tenantID, recordID, approverID, now)
	if err != nil {
		return result, err
	}
	if !finalized {
		return result, fmt.Errorf("%w: record is %s", ErrCalibrationFinalized, record.State)
	}
	if err := s.store.AppendCalibrationChange(ctx, tenantID, CalibrationChange{
		RecordID: recordID,
		ActorID:  approverID,
		Field:    "state",
		OldValue: record.State,
		NewValue: CalibrationFinalized,
		Reason:   "sign-off",
	}); err != nil {
		slog.Warn("calibration change append failed", "recordId", recordID, "err", err)
	}

	s.calibrateManagerForm(ctx, tenantID, record)

	total, err := s.store.CountCalibrationRecords(ctx, tenantID, record.CycleID)
	if err != nil {
		return result, err
	}
	done, err := s.store.CountFinalizedCalibrations(ctx, tenantID, record.CycleID)
	if err != nil {
		return result, err
	}
	if total > 0 && done == total && cycle.CalibrationRequired {
		if _, err := s.CompleteCalibration(ctx, tenantID, record.CycleID, now); err != nil {
			return result, err
		}
		result.CyclePublished = true
	}
	return result, nil
}

func (s *Service) calibrateManagerForm(ctx context.Context, tenantID string, record CalibrationRecord) {
	forms, err := s.store.ListFormsByCycle(ctx, tenantID, record.CycleID, FormManager)
	if err != nil {
		slog.Warn("manager form lookup failed", "cycleId", record.CycleID, "err", err)
		return
	}
	for _, form := range forms {
		if form.SubjectID != record.SubjectID {
			continue
		}
		if _, err := s.store.UpdateFormStatus(ctx, tenantID, form.ID, StatusSubmitted, StatusCalibrated); err != nil {
			slog.Warn("manager form calibrate failed", "formId", form.ID, "err", err)
		}
	}
}

// CompleteCalibration is the cycle-level calibration-complete event: the
// cycle moves to PUBLISHED and every submitted form is published, archived to
// the HR-records store, and announced to its subject. Failures are per
// subject; one bad archive call never blocks the rest of the cycle.
func (s *Service) CompleteCalibration(ctx context.Context, tenantID, cycleID string, now time.Time) (PublishSummary, error) {
	summary := PublishSummary{CycleID: cycleID}

	cycle, err := s.store.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return summary, err
	}
	if PhaseBefore(cycle.Phase, PhaseCalibration) {
		return summary, fmt.Errorf("%w: cycle is %s", ErrInvalidPhase, cycle.Phase)
	}
	if PhaseBefore(cycle.Phase, PhasePublished) {
		if _, err := s.store.AdvanceCyclePhase(ctx, tenantID, cycleID, cycle.Phase, PhasePublished); err != nil {
			return summary, err
		}
	}

	forms, err := s.store.ListFormsByCycle(ctx, tenantID, cycleID, "")
	if err != nil {
		return summary, err
	}
	bySubject := make(map[string][]ReviewForm)
	for _, form := range forms {
		if form.Status == StatusSubmitted || form.Status == StatusCalibrated {
			bySubject[form.SubjectID] = append(bySubject[form.SubjectID], form)
		}
	}

	for subjectID, subjectForms := range bySubject {
		if s.archiver != nil {
			if err := s.archiver.Archive(ctx, tenantID, cycleID, subjectID); err != nil {
				// Self-heals: the phase sweep re-runs publication for cycles
				// with unpublished forms left behind.
				slog.Warn("hr archive failed", "cycleId", cycleID, "subjectId", subjectID, "err", err)
				summary.ArchiveFailures++
				continue
			}
		}
		summary.SubjectsArchived++
		for _, form := range subjectForms {
			published, err := s.store.UpdateFormStatus(ctx, tenantID, form.ID, form.Status, StatusPublished)
			if err != nil {
				slog.Warn("form publish failed", "formId", form.ID, "err", err)
				continue
			}
			if published {
				summary.FormsPublished++
			}
		}
		if subjectUser, err := s.store.EmployeeUserID(ctx, tenantID, subjectID); err == nil && subjectUser != "" {
			s.send(ctx, tenantID, notify.Request{
				RecipientID: subjectUser,
				Title:       "Review results available",
				Message:     fmt.Sprintf("Your results for %s have been published.", cycle.Name),
				Priority:    notify.PriorityHigh,
				Category:    notify.CategoryResultsAvailable,
				LinkURL:     "/reviews/cycles/" + cycleID,
				Channels:    []string{notify.ChannelInApp, notify.ChannelEmail},
			})
		}
	}
	return summary, nil
}

// notifyRole fans one notice out to every user holding a role.
func (s *Service) notifyRole(ctx context.Context, tenantID, roleName string, req notify.Request) {
	users, err := s.store.UserIDsByRole(ctx, tenantID, roleName)
	if err != nil {
		slog.Warn("role lookup failed", "role", roleName, "err", err)
		return
	}
	for _, userID := range users {
		req.RecipientID = userID
		s.send(ctx, tenantID, req)
	}
}
