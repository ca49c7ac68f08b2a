package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewhub/internal/domain/auth"
	"reviewhub/internal/domain/notify"
)

// PhaseSweepSummary reports one run of the phase-check sweep.
type PhaseSweepSummary struct {
	CyclesChecked int `json:"cyclesChecked"`
	Transitions   int `json:"transitions"`
	FormsCreated  int `json:"formsCreated"`
	Reconciled    int `json:"reconciled"`
}

// ReminderSweepSummary reports one run of the reminder-check sweep.
type ReminderSweepSummary struct {
	FormsChecked  int `json:"formsChecked"`
	RemindersSent int `json:"remindersSent"`
	Escalations   int `json:"escalations"`
}

// DigestSummary reports a digest or completion-notifier run.
type DigestSummary struct {
	Recipients int `json:"recipients"`
	Items      int `json:"items"`
}

// RunPhaseSweep evaluates every open cycle against its phase windows and
// performs at most one forward transition per cycle per run. Entity failures
// are logged and skipped; the sweep never aborts as a whole.
func (s *Service) RunPhaseSweep(ctx context.Context, tenantID string, now time.Time) (PhaseSweepSummary, error) {
	var summary PhaseSweepSummary

	cycles, err := s.store.ListOpenCycles(ctx, tenantID)
	if err != nil {
		return summary, err
	}
	for _, cycle := range cycles {
		summary.CyclesChecked++
		if next, due := NextDatePhase(cycle, now); due {
			advanced, err := s.store.AdvanceCyclePhase(ctx, tenantID, cycle.ID, cycle.Phase, next)
			if err != nil {
				slog.Warn("phase transition failed", "cycleId", cycle.ID, "to", next, "err", err)
				continue
			}
			if advanced {
				summary.Transitions++
				cycle.Phase = next
			}
		}
		created, err := s.ensurePhaseSideEffects(ctx, tenantID, cycle)
		if err != nil {
			slog.Warn("phase side effects failed", "cycleId", cycle.ID, "err", err)
			continue
		}
		summary.FormsCreated += created

		// A publication interrupted by an archive or process failure leaves
		// submitted forms behind in a PUBLISHED cycle; re-running the
		// publication is idempotent and picks them up.
		if cycle.Phase == PhasePublished {
			if reconciled, err := s.reconcilePublished(ctx, tenantID, cycle, now); err == nil {
				summary.Reconciled += reconciled
			}
		}
	}
	return summary, nil
}

// ensurePhaseSideEffects creates the forms and sends the phase-opened
// notifications for every phase the cycle has reached, gated by the per-phase
// notified flag so each fires at most once per cycle.
func (s *Service) ensurePhaseSideEffects(ctx context.Context, tenantID string, cycle ReviewCycle) (int, error) {
	created := 0
	rank := PhaseRank(cycle.Phase)

	if rank >= PhaseRank(PhaseSelfReviewOpen) && !cycle.SelfOpenNotified {
		claimed, err := s.store.MarkPhaseNotified(ctx, tenantID, cycle.ID, PhaseSelfReviewOpen)
		if err != nil {
			return created, err
		}
		if claimed {
			n, err := s.openSelfReviews(ctx, tenantID, cycle)
			if err != nil {
				return created, err
			}
			created += n
		}
	}
	if rank >= PhaseRank(PhaseManagerReviewOpen) && !cycle.ManagerOpenNotified {
		claimed, err := s.store.MarkPhaseNotified(ctx, tenantID, cycle.ID, PhaseManagerReviewOpen)
		if err != nil {
			return created, err
		}
		if claimed {
			n, err := s.openManagerReviews(ctx, tenantID, cycle)
			if err != nil {
				return created, err
			}
			created += n
		}
	}
	if rank >= PhaseRank(PhasePeerReviewOpen) && cycle.PeerEnabled && !cycle.PeerOpenNotified {
		claimed, err := s.store.MarkPhaseNotified(ctx, tenantID, cycle.ID, PhasePeerReviewOpen)
		if err != nil {
			return created, err
		}
		if claimed {
			if err := s.openPeerReviews(ctx, tenantID, cycle); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}

func (s *Service) openSelfReviews(ctx context.Context, tenantID string, cycle ReviewCycle) (int, error) {
	people, err := s.store.ListInScopeEmployees(ctx, tenantID, cycle.ExcludedDepartments, cycle.ExcludedEmployees)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, person := range people {
		id, err := s.store.CreateForm(ctx, tenantID, ReviewForm{
			CycleID:   cycle.ID,
			SubjectID: person.EmployeeID,
			AuthorID:  person.EmployeeID,
			Kind:      FormSelf,
		})
		if err != nil {
			slog.Warn("self form create failed", "employeeId", person.EmployeeID, "err", err)
			continue
		}
		if id != "" {
			created++
		}
		s.send(ctx, tenantID, notify.Request{
			RecipientID: person.UserID,
			Title:       "Self-review open",
			Message:     fmt.Sprintf("The self-review window for %s is open until %s.", cycle.Name, cycle.SelfReviewEnd.Format("2006-01-02")),
			Priority:    notify.PriorityMedium,
			Category:    notify.CategoryPhaseOpened,
			Channels:    []string{notify.ChannelInApp, notify.ChannelEmail},
		})
	}
	return created, nil
}

func (s *Service) openManagerReviews(ctx context.Context, tenantID string, cycle ReviewCycle) (int, error) {
	people, err := s.store.ListInScopeEmployees(ctx, tenantID, cycle.ExcludedDepartments, cycle.ExcludedEmployees)
	if err != nil {
		return 0, err
	}
	created := 0
	managers := map[string]bool{}
	for _, person := range people {
		if person.ManagerID == "" {
			continue
		}
		id, err := s.store.CreateForm(ctx, tenantID, ReviewForm{
			CycleID:   cycle.ID,
			SubjectID: person.EmployeeID,
			AuthorID:  person.ManagerID,
			Kind:      FormManager,
		})
		if err != nil {
			slog.Warn("manager form create failed", "subjectId", person.EmployeeID, "err", err)
			continue
		}
		if id != "" {
			created++
		}
		if cycle.UpwardEnabled {
			if id, err := s.store.CreateForm(ctx, tenantID, ReviewForm{
				CycleID:   cycle.ID,
				SubjectID: person.ManagerID,
				AuthorID:  person.EmployeeID,
				Kind:      FormUpward,
			}); err == nil && id != "" {
				created++
			}
		}
		managers[person.ManagerID] = true
	}
	for managerID := range managers {
		managerUser, err := s.store.EmployeeUserID(ctx, tenantID, managerID)
		if err != nil || managerUser == "" {
			continue
		}
		s.send(ctx, tenantID, notify.Request{
			RecipientID: managerUser,
			Title:       "Manager reviews open",
			Message:     fmt.Sprintf("The manager-review window for %s is open until %s.", cycle.Name, cycle.ManagerReviewEnd.Format("2006-01-02")),
			Priority:    notify.PriorityMedium,
			Category:    notify.CategoryPhaseOpened,
			Channels:    []string{notify.ChannelInApp, notify.ChannelEmail},
		})
	}
	return created, nil
}

// openPeerReviews only announces the window; peer forms are created through
// reviewer assignment.
func (s *Service) openPeerReviews(ctx context.Context, tenantID string, cycle ReviewCycle) error {
	people, err := s.store.ListInScopeEmployees(ctx, tenantID, cycle.ExcludedDepartments, cycle.ExcludedEmployees)
	if err != nil {
		return err
	}
	for _, person := range people {
		s.send(ctx, tenantID, notify.Request{
			RecipientID: person.UserID,
			Title:       "Peer reviews open",
			Message:     fmt.Sprintf("The peer-review window for %s is open.", cycle.Name),
			Priority:    notify.PriorityLow,
			Category:    notify.CategoryPhaseOpened,
			Channels:    []string{notify.ChannelInApp},
		})
	}
	return nil
}

func (s *Service) reconcilePublished(ctx context.Context, tenantID string, cycle ReviewCycle, now time.Time) (int, error) {
	forms, err := s.store.ListFormsByCycle(ctx, tenantID, cycle.ID, "")
	if err != nil {
		return 0, err
	}
	pending := 0
	for _, form := range forms {
		if form.Status == StatusSubmitted || form.Status == StatusCalibrated {
			pending++
		}
	}
	if pending == 0 {
		return 0, nil
	}
	summary, err := s.CompleteCalibration(ctx, tenantID, cycle.ID, now)
	if err != nil {
		return 0, err
	}
	return summary.FormsPublished, nil
}

// RunReminderSweep finds overdue unsubmitted forms and applies the reminder
// cadence and escalation policy to each. State between runs lives entirely on
// the forms (reminder counters, notified-party flags), so duplicate or
// out-of-order runs are safe.
func (s *Service) RunReminderSweep(ctx context.Context, tenantID string, now time.Time) (ReminderSweepSummary, error) {
	var summary ReminderSweepSummary

	cycles, err := s.store.ListOpenCycles(ctx, tenantID)
	if err != nil {
		return summary, err
	}
	for _, cycle := range cycles {
		if PhaseRank(cycle.Phase) < PhaseRank(PhaseSelfReviewOpen) {
			continue
		}
		forms, err := s.store.ListUnsubmittedForms(ctx, tenantID, cycle.ID)
		if err != nil {
			slog.Warn("unsubmitted form lookup failed", "cycleId", cycle.ID, "err", err)
			continue
		}
		for _, form := range forms {
			if !KindOpen(form.Kind, cycle.Phase) {
				continue
			}
			summary.FormsChecked++
			deadline, ok := Deadline(cycle, form.Kind)
			if !ok {
				continue
			}
			decision := EvaluateReminder(form.Kind, form.ReminderCount, DaysOverdue(deadline, now))
			if !decision.SendNow {
				continue
			}
			if err := s.sendReminder(ctx, tenantID, cycle, form, decision); err != nil {
				slog.Warn("reminder send failed", "formId", form.ID, "err", err)
				continue
			}
			summary.RemindersSent++
			if decision.NotifyManager || decision.NotifyLeadership || decision.NotifyHR {
				summary.Escalations++
			}
		}
	}
	return summary, nil
}

func (s *Service) sendReminder(ctx context.Context, tenantID string, cycle ReviewCycle, form ReviewForm, decision EscalationDecision) error {
	authorUser, err := s.store.EmployeeUserID(ctx, tenantID, form.AuthorID)
	if err != nil {
		return err
	}

	priority := notify.PriorityMedium
	if form.ReminderCount >= 2 {
		priority = notify.PriorityHigh
	}
	if form.ReminderCount >= 4 {
		priority = notify.PriorityUrgent
	}
	s.send(ctx, tenantID, notify.Request{
		RecipientID: authorUser,
		Title:       "Review overdue",
		Message:     fmt.Sprintf("Your %s review for %s is past its deadline. Please complete it.", formKindLabel(form.Kind), cycle.Name),
		Priority:    priority,
		Category:    notify.CategoryReminder,
		Channels:    []string{notify.ChannelInApp, notify.ChannelEmail},
	})

	// Escalation notices accompany the reminder; the notified-party flags
	// keep each tier to a single notice per form.
	escalatedManager := false
	if decision.NotifyManager && !form.ManagerNotified {
		if managerID, err := s.store.ManagerIDByEmployeeID(ctx, tenantID, form.SubjectID); err == nil && managerID != "" {
			if managerUser, err := s.store.EmployeeUserID(ctx, tenantID, managerID); err == nil && managerUser != "" {
				s.send(ctx, tenantID, notify.Request{
					RecipientID: managerUser,
					Title:       "Overdue review on your team",
					Message:     fmt.Sprintf("A self-review for %s on your team remains unsubmitted after repeated reminders.", cycle.Name),
					Priority:    notify.PriorityHigh,
					Category:    notify.CategoryEscalation,
					Channels:    []string{notify.ChannelInApp, notify.ChannelEmail},
				})
				escalatedManager = true
			}
		}
	}
	if decision.NotifyLeadership && !form.ManagerNotified {
		s.notifyRole(ctx, tenantID, auth.RoleLeadership, notify.Request{
			Title:    "Overdue manager review",
			Message:  fmt.Sprintf("A manager review for %s remains unsubmitted after repeated reminders.", cycle.Name),
			Priority: notify.PriorityHigh,
			Category: notify.CategoryEscalation,
			Channels: []string{notify.ChannelInApp, notify.ChannelEmail},
		})
		escalatedManager = true
	}
	escalatedHR := false
	if decision.NotifyHR && !form.HRNotified {
		s.notifyRole(ctx, tenantID, auth.RoleHR, notify.Request{
			Title:    "Review escalation",
			Message:  fmt.Sprintf("A %s review for %s is severely overdue.", formKindLabel(form.Kind), cycle.Name),
			Priority: notify.PriorityUrgent,
			Category: notify.CategoryEscalation,
			Channels: []string{notify.ChannelInApp, notify.ChannelEmail},
		})
		escalatedHR = true
	}

	// Exactly one increment per send, however many escalation notices went
	// with it; the tier is always derived from the counter.
	return s.store.IncrementReminder(ctx, tenantID, form.ID, escalatedManager, escalatedHR)
}

// RunCheckinReminderSweep notifies both sides of 1:1 review check-ins
// happening in the next day.
func (s *Service) RunCheckinReminderSweep(ctx context.Context, tenantID string, now time.Time) (DigestSummary, error) {
	var summary DigestSummary

	checkins, err := s.store.ListCheckinsDueBetween(ctx, tenantID, now, now.Add(24*time.Hour))
	if err != nil {
		return summary, err
	}
	for _, checkin := range checkins {
		claimed, err := s.store.MarkCheckinReminded(ctx, tenantID, checkin.ID)
		if err != nil || !claimed {
			continue
		}
		summary.Items++
		when := checkin.ScheduledAt
		for _, employeeID := range []string{checkin.EmployeeID, checkin.ManagerID} {
			userID, err := s.store.EmployeeUserID(ctx, tenantID, employeeID)
			if err != nil || userID == "" {
				continue
			}
			summary.Recipients++
			s.send(ctx, tenantID, notify.Request{
				RecipientID: userID,
				Title:       "Review check-in tomorrow",
				Message:     fmt.Sprintf("You have a review check-in scheduled for %s.", when.Format("Mon Jan 2 15:04")),
				Priority:    notify.PriorityMedium,
				Category:    notify.CategoryCheckinReminder,
				Channels:    []string{notify.ChannelInApp, notify.ChannelCalendar},
				EventAt:     &when,
			})
		}
	}
	return summary, nil
}

// RunCompletedSweep tells HR how many reviews were submitted in the last day.
func (s *Service) RunCompletedSweep(ctx context.Context, tenantID string, now time.Time) (DigestSummary, error) {
	var summary DigestSummary

	forms, err := s.store.ListFormsSubmittedSince(ctx, tenantID, now.Add(-24*time.Hour))
	if err != nil {
		return summary, err
	}
	if len(forms) == 0 {
		return summary, nil
	}
	summary.Items = len(forms)
	users, err := s.store.UserIDsByRole(ctx, tenantID, auth.RoleHR)
	if err != nil {
		return summary, err
	}
	for _, userID := range users {
		summary.Recipients++
		s.send(ctx, tenantID, notify.Request{
			RecipientID: userID,
			Title:       "Reviews completed",
			Message:     fmt.Sprintf("%d review forms were submitted in the last day.", len(forms)),
			Priority:    notify.PriorityLow,
			Category:    notify.CategoryRecentlyCompleted,
			Channels:    []string{notify.ChannelInApp},
		})
	}
	return summary, nil
}

// RunDigestSweep sends each reviewer with open forms a weekly summary.
func (s *Service) RunDigestSweep(ctx context.Context, tenantID string, now time.Time) (DigestSummary, error) {
	var summary DigestSummary

	cycles, err := s.store.ListOpenCycles(ctx, tenantID)
	if err != nil {
		return summary, err
	}
	openByAuthor := map[string]int{}
	for _, cycle := range cycles {
		forms, err := s.store.ListUnsubmittedForms(ctx, tenantID, cycle.ID)
		if err != nil {
			slog.Warn("digest form lookup failed", "cycleId", cycle.ID, "err", err)
			continue
		}
		for _, form := range forms {
			if KindOpen(form.Kind, cycle.Phase) {
				openByAuthor[form.AuthorID]++
			}
		}
	}
	for authorID, count := range openByAuthor {
		userID, err := s.store.EmployeeUserID(ctx, tenantID, authorID)
		if err != nil || userID == "" {
			continue
		}
		summary.Recipients++
		summary.Items += count
		s.send(ctx, tenantID, notify.Request{
			RecipientID: userID,
			Title:       "Open review forms",
			Message:     fmt.Sprintf("You have %d review forms awaiting completion.", count),
			Priority:    notify.PriorityLow,
			Category:    notify.CategoryWeeklyDigest,
			Channels:    []string{notify.ChannelInApp, notify.ChannelEmail},
		})
	}
	return summary, nil
}

func formKindLabel(kind string) string {
	switch kind {
	case FormSelf:
		return "self"
	case FormManager:
		return "manager"
	case FormPeer:
		return "peer"
	case FormUpward:
		return "upward"
	}
	return "review"
}
