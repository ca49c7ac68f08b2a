package review

import (
	"context"
	"testing"
	"time"

	"reviewhub/internal/domain/notify"
)

func TestPhaseSweepOpensSelfReviews(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseActive)
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, nil)

	// Past the self window start but before the manager window.
	now := store.cycles[cycleID].SelfReviewStart.Add(time.Hour)
	summary, err := svc.RunPhaseSweep(ctx, testTenant, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Transitions != 1 {
		t.Fatalf("transitions = %d, want 1", summary.Transitions)
	}
	if store.cycles[cycleID].Phase != PhaseSelfReviewOpen {
		t.Fatalf("cycle phase = %s, want SELF_REVIEW_OPEN", store.cycles[cycleID].Phase)
	}
	if summary.FormsCreated != 3 {
		t.Fatalf("forms created = %d, want 3 self forms", summary.FormsCreated)
	}
	if notifier.countCategory(notify.CategoryPhaseOpened) != 3 {
		t.Fatalf("phase-opened notices = %d, want 3", notifier.countCategory(notify.CategoryPhaseOpened))
	}

	// A second run at the same instant is a no-op: the notified flag was
	// claimed and the forms already exist.
	summary, err = svc.RunPhaseSweep(ctx, testTenant, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Transitions != 0 || summary.FormsCreated != 0 {
		t.Fatalf("second run = %+v, want no transitions or forms", summary)
	}
	if notifier.countCategory(notify.CategoryPhaseOpened) != 3 {
		t.Fatalf("phase-opened notices after rerun = %d, want 3", notifier.countCategory(notify.CategoryPhaseOpened))
	}
}

func TestPhaseSweepSingleStepPerRun(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseActive)
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, nil)

	// Way past the manager window start: each run still advances one phase.
	now := store.cycles[cycleID].ManagerReviewStart.AddDate(0, 0, 2)
	if _, err := svc.RunPhaseSweep(ctx, testTenant, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if store.cycles[cycleID].Phase != PhaseSelfReviewOpen {
		t.Fatalf("cycle phase = %s, want SELF_REVIEW_OPEN after one run", store.cycles[cycleID].Phase)
	}

	summary, err := svc.RunPhaseSweep(ctx, testTenant, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if store.cycles[cycleID].Phase != PhaseManagerReviewOpen {
		t.Fatalf("cycle phase = %s, want MANAGER_REVIEW_OPEN after two runs", store.cycles[cycleID].Phase)
	}
	// Manager forms for the two employees who have a manager.
	if summary.FormsCreated != 2 {
		t.Fatalf("forms created = %d, want 2 manager forms", summary.FormsCreated)
	}
	if total, _ := store.CountForms(ctx, testTenant, cycleID, FormManager); total != 2 {
		t.Fatalf("manager forms = %d, want 2", total)
	}
}

func TestPhaseSweepCreatesUpwardForms(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseSelfReviewOpen)
	store.cycles[cycleID].SelfOpenNotified = true
	store.cycles[cycleID].UpwardEnabled = true
	svc := NewService(store, &fakeNotifier{}, nil)

	now := store.cycles[cycleID].ManagerReviewStart.Add(time.Hour)
	summary, err := svc.RunPhaseSweep(ctx, testTenant, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.FormsCreated != 4 {
		t.Fatalf("forms created = %d, want 2 manager + 2 upward", summary.FormsCreated)
	}
	if total, _ := store.CountForms(ctx, testTenant, cycleID, FormUpward); total != 2 {
		t.Fatalf("upward forms = %d, want 2", total)
	}
}

func TestReminderSweepCadence(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseSelfReviewOpen)
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, nil)

	formID := mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e1", AuthorID: "e1", Kind: FormSelf})
	deadline := store.cycles[cycleID].SelfReviewEnd

	// One day overdue: first reminder goes out and the counter moves.
	summary, err := svc.RunReminderSweep(ctx, testTenant, deadline.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.RemindersSent != 1 {
		t.Fatalf("reminders = %d, want 1", summary.RemindersSent)
	}
	if store.forms[formID].ReminderCount != 1 {
		t.Fatalf("reminder count = %d, want 1", store.forms[formID].ReminderCount)
	}

	// Same day again: the next threshold is three days, nothing fires.
	summary, err = svc.RunReminderSweep(ctx, testTenant, deadline.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.RemindersSent != 0 {
		t.Fatalf("reminders on rerun = %d, want 0", summary.RemindersSent)
	}
	if store.forms[formID].ReminderCount != 1 {
		t.Fatalf("reminder count after rerun = %d, want 1", store.forms[formID].ReminderCount)
	}
}

func TestReminderSweepEscalatesOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseSelfReviewOpen)
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, nil)

	formID := mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e1", AuthorID: "e1", Kind: FormSelf})
	store.forms[formID].ReminderCount = 2
	deadline := store.cycles[cycleID].SelfReviewEnd

	// Third reminder copies the manager and latches the flag.
	summary, err := svc.RunReminderSweep(ctx, testTenant, deadline.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.RemindersSent != 1 || summary.Escalations != 1 {
		t.Fatalf("summary = %+v, want one reminder with escalation", summary)
	}
	if notifier.countCategory(notify.CategoryEscalation) != 1 {
		t.Fatalf("escalation notices = %d, want 1", notifier.countCategory(notify.CategoryEscalation))
	}
	if !store.forms[formID].ManagerNotified {
		t.Fatal("manager-notified flag not latched")
	}

	// The fourth reminder still goes to the author but the manager is not
	// notified a second time.
	summary, err = svc.RunReminderSweep(ctx, testTenant, deadline.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.RemindersSent != 1 {
		t.Fatalf("reminders = %d, want 1", summary.RemindersSent)
	}
	if notifier.countCategory(notify.CategoryEscalation) != 1 {
		t.Fatalf("escalation notices after rerun = %d, want 1", notifier.countCategory(notify.CategoryEscalation))
	}
	if store.forms[formID].ReminderCount != 4 {
		t.Fatalf("reminder count = %d, want 4", store.forms[formID].ReminderCount)
	}
}

func TestReminderSweepSkipsClosedKinds(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseSelfReviewOpen)
	svc := NewService(store, &fakeNotifier{}, nil)

	// A manager form before the manager window never collects reminders.
	mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e1", AuthorID: "m1", Kind: FormManager})

	summary, err := svc.RunReminderSweep(ctx, testTenant, store.cycles[cycleID].ManagerReviewEnd.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.FormsChecked != 0 || summary.RemindersSent != 0 {
		t.Fatalf("summary = %+v, want nothing checked", summary)
	}
}

func TestCheckinReminderSweepClaimsOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseSelfReviewOpen)
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, nil)

	now := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	store.checkins["c1"] = &Checkin{ID: "c1", CycleID: cycleID, EmployeeID: "e1", ManagerID: "m1", ScheduledAt: now.Add(12 * time.Hour)}

	summary, err := svc.RunCheckinReminderSweep(ctx, testTenant, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Items != 1 || summary.Recipients != 2 {
		t.Fatalf("summary = %+v, want one check-in and both sides notified", summary)
	}
	if notifier.countCategory(notify.CategoryCheckinReminder) != 2 {
		t.Fatalf("check-in notices = %d, want 2", notifier.countCategory(notify.CategoryCheckinReminder))
	}

	summary, err = svc.RunCheckinReminderSweep(ctx, testTenant, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Items != 0 {
		t.Fatalf("rerun items = %d, want 0", summary.Items)
	}
}

func TestCompletedSweep(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseSelfReviewOpen)
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, nil)

	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	formID := mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e1", AuthorID: "e1", Kind: FormSelf})
	submitted := now.Add(-2 * time.Hour)
	store.forms[formID].Status = StatusSubmitted
	store.forms[formID].SubmittedAt = &submitted

	summary, err := svc.RunCompletedSweep(ctx, testTenant, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Items != 1 || summary.Recipients != 1 {
		t.Fatalf("summary = %+v, want one item to one HR user", summary)
	}
	if notifier.countCategory(notify.CategoryRecentlyCompleted) != 1 {
		t.Fatalf("completed notices = %d, want 1", notifier.countCategory(notify.CategoryRecentlyCompleted))
	}
}

func TestDigestSweepGroupsByAuthor(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseManagerReviewOpen)
	store.cycles[cycleID].SelfOpenNotified = true
	store.cycles[cycleID].ManagerOpenNotified = true
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, nil)

	mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e1", AuthorID: "m1", Kind: FormManager})
	mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e2", AuthorID: "m1", Kind: FormManager})
	mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e1", AuthorID: "e1", Kind: FormSelf})

	summary, err := svc.RunDigestSweep(ctx, testTenant, time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Recipients != 2 {
		t.Fatalf("recipients = %d, want manager and employee", summary.Recipients)
	}
	if summary.Items != 3 {
		t.Fatalf("items = %d, want 3 open forms", summary.Items)
	}
	if notifier.countCategory(notify.CategoryWeeklyDigest) != 2 {
		t.Fatalf("digest notices = %d, want 2", notifier.countCategory(notify.CategoryWeeklyDigest))
	}
}
