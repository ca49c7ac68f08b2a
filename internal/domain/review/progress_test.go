package review

import (
	"context"
	"testing"
)

func TestProgress(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	seedTeam(store)
	cycleID := seedCycle(store, PhaseManagerReviewOpen)
	svc := NewService(store, &fakeNotifier{}, nil)

	self1 := mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e1", AuthorID: "e1", Kind: FormSelf})
	mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e2", AuthorID: "e2", Kind: FormSelf})
	mgr1 := mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e1", AuthorID: "m1", Kind: FormManager})
	mgr2 := mustCreateForm(t, store, ReviewForm{CycleID: cycleID, SubjectID: "e2", AuthorID: "m1", Kind: FormManager})
	store.forms[self1].Status = StatusSubmitted
	store.forms[mgr1].Status = StatusSubmitted
	store.forms[mgr2].Status = StatusCalibrated

	progress, err := svc.Progress(ctx, testTenant, cycleID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if got := progress.Kinds[FormSelf]; got.Total != 2 || got.Completed != 1 || got.Percentage != 50 {
		t.Fatalf("self progress = %+v", got)
	}
	if got := progress.Kinds[FormManager]; got.Total != 2 || got.Completed != 2 || got.Percentage != 100 {
		t.Fatalf("manager progress = %+v", got)
	}
	if progress.Overall.Total != 4 || progress.Overall.Completed != 3 || progress.Overall.Percentage != 75 {
		t.Fatalf("overall progress = %+v", progress.Overall)
	}
	if !progress.CalibrationReady {
		t.Fatal("expected calibration ready with all manager forms in")
	}
	if _, ok := progress.Kinds[FormPeer]; ok {
		t.Fatal("peer progress reported with peer reviews disabled")
	}
}

func TestProgressEmptyCycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cycleID := seedCycle(store, PhaseActive)
	svc := NewService(store, &fakeNotifier{}, nil)

	progress, err := svc.Progress(ctx, testTenant, cycleID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Overall.Percentage != 0 {
		t.Fatalf("empty cycle percentage = %d, want 0", progress.Overall.Percentage)
	}
	if progress.CalibrationReady {
		t.Fatal("calibration ready with no manager forms")
	}
}
