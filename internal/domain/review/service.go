package review

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"reviewhub/internal/domain/notify"
)

// Archiver is the long-term HR-records capability. Archiving the same
// (cycle, subject) pair twice produces the same logical record.
type Archiver interface {
	Archive(ctx context.Context, tenantID, cycleID, subjectID string) error
}

type Service struct {
	store    StoreAPI
	notifier notify.Dispatcher
	archiver Archiver
}

func NewService(store StoreAPI, notifier notify.Dispatcher, archiver Archiver) *Service {
	return &Service{store: store, notifier: notifier, archiver: archiver}
}

func (s *Service) CreateCycle(ctx context.Context, tenantID string, cycle ReviewCycle) (string, error) {
	if cycle.Name == "" {
		return "", fmt.Errorf("cycle name required")
	}
	if cycle.PeriodEnd.Before(cycle.PeriodStart) {
		return "", fmt.Errorf("cycle period end precedes start")
	}
	if cycle.SelfReviewEnd.Before(cycle.SelfReviewStart) || cycle.ManagerReviewEnd.Before(cycle.ManagerReviewStart) {
		return "", fmt.Errorf("review window end precedes start")
	}
	if cycle.PeerEnabled && (cycle.PeerReviewStart == nil || cycle.PeerReviewEnd == nil) {
		return "", fmt.Errorf("peer reviews enabled without a peer-review window")
	}
	if cycle.Kind == "" {
		cycle.Kind = CycleCustom
	}
	if cycle.RatingScale == "" {
		cycle.RatingScale = ScaleFivePoint
	}
	return s.store.CreateCycle(ctx, tenantID, cycle)
}

func (s *Service) GetCycle(ctx context.Context, tenantID, cycleID string) (ReviewCycle, error) {
	return s.store.GetCycle(ctx, tenantID, cycleID)
}

func (s *Service) ListCycles(ctx context.Context, tenantID string, limit, offset int) ([]ReviewCycle, error) {
	return s.store.ListCycles(ctx, tenantID, limit, offset)
}

// ActivateCycle is the administrative DRAFT -> ACTIVE transition.
func (s *Service) ActivateCycle(ctx context.Context, tenantID, cycleID string) error {
	cycle, err := s.store.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return err
	}
	advanced, err := s.store.AdvanceCyclePhase(ctx, tenantID, cycleID, PhaseDraft, PhaseActive)
	if err != nil {
		return err
	}
	if !advanced {
		return fmt.Errorf("%w: cycle is %s, not %s", ErrInvalidPhase, cycle.Phase, PhaseDraft)
	}
	return nil
}

// PublishCycle is the administrative CALIBRATION -> PUBLISHED action. It is
// rejected while any calibration record is still open.
func (s *Service) PublishCycle(ctx context.Context, tenantID, cycleID string, now time.Time) (PublishSummary, error) {
	cycle, err := s.store.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return PublishSummary{}, err
	}
	if cycle.Phase != PhaseCalibration {
		return PublishSummary{}, fmt.Errorf("%w: cycle is %s, not %s", ErrInvalidPhase, cycle.Phase, PhaseCalibration)
	}
	if cycle.CalibrationRequired {
		total, err := s.store.CountCalibrationRecords(ctx, tenantID, cycleID)
		if err != nil {
			return PublishSummary{}, err
		}
		finalized, err := s.store.CountFinalizedCalibrations(ctx, tenantID, cycleID)
		if err != nil {
			return PublishSummary{}, err
		}
		if total == 0 || finalized < total {
			return PublishSummary{}, fmt.Errorf("%w: %d of %d finalized", ErrCalibrationOpen, finalized, total)
		}
	}
	return s.CompleteCalibration(ctx, tenantID, cycleID, now)
}

// CloseCycle retires a published cycle. Closed cycles are never deleted, only
// superseded by the next one.
func (s *Service) CloseCycle(ctx context.Context, tenantID, cycleID string) error {
	advanced, err := s.store.AdvanceCyclePhase(ctx, tenantID, cycleID, PhasePublished, PhaseClosed)
	if err != nil {
		return err
	}
	if !advanced {
		cycle, getErr := s.store.GetCycle(ctx, tenantID, cycleID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: cycle is %s, not %s", ErrInvalidPhase, cycle.Phase, PhasePublished)
	}
	return nil
}

func (s *Service) GetForm(ctx context.Context, tenantID, formID string) (ReviewForm, error) {
	return s.store.GetForm(ctx, tenantID, formID)
}

func (s *Service) ListFormsByCycle(ctx context.Context, tenantID, cycleID, kind string) ([]ReviewForm, error) {
	forms, err := s.store.ListFormsByCycle(ctx, tenantID, cycleID, kind)
	if err != nil {
		return nil, err
	}
	cycle, err := s.store.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.AnonymousPeer {
		for i := range forms {
			if forms[i].Kind == FormPeer {
				forms[i].AuthorID = ""
			}
		}
	}
	return forms, nil
}

func (s *Service) ListFormsByAuthor(ctx context.Context, tenantID, authorID string) ([]ReviewForm, error) {
	return s.store.ListFormsByAuthor(ctx, tenantID, authorID)
}

// SaveFormDraft stores the author's work in progress. The first save moves
// the form from NOT_STARTED to DRAFT.
func (s *Service) SaveFormDraft(ctx context.Context, tenantID, formID, authorEmployeeID string, draft FormDraft) error {
	form, err := s.store.GetForm(ctx, tenantID, formID)
	if err != nil {
		return err
	}
	if form.AuthorID != authorEmployeeID {
		return ErrNotFormAuthor
	}
	cycle, err := s.store.GetCycle(ctx, tenantID, form.CycleID)
	if err != nil {
		return err
	}
	if !KindOpen(form.Kind, cycle.Phase) {
		return ErrKindNotOpen
	}
	return s.store.SaveFormDraft(ctx, tenantID, formID, draft)
}

// AssignPeerReviewer creates a peer form for a subject once the peer window
// is open.
func (s *Service) AssignPeerReviewer(ctx context.Context, tenantID, cycleID, subjectID, reviewerID string) (string, error) {
	cycle, err := s.store.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return "", err
	}
	if !cycle.PeerEnabled {
		return "", fmt.Errorf("%w: peer reviews are disabled for this cycle", ErrInvalidPhase)
	}
	if !KindOpen(FormPeer, cycle.Phase) {
		return "", ErrKindNotOpen
	}
	id, err := s.store.CreateForm(ctx, tenantID, ReviewForm{
		CycleID:   cycleID,
		SubjectID: subjectID,
		AuthorID:  reviewerID,
		Kind:      FormPeer,
	})
	if err != nil {
		return "", err
	}
	reviewerUser, err := s.store.EmployeeUserID(ctx, tenantID, reviewerID)
	if err == nil && reviewerUser != "" {
		s.send(ctx, tenantID, notify.Request{
			RecipientID: reviewerUser,
			Title:       "Peer review assigned",
			Message:     fmt.Sprintf("You have been asked to provide a peer review for cycle %s.", cycle.Name),
			Priority:    notify.PriorityMedium,
			Category:    notify.CategoryPhaseOpened,
			Channels:    []string{notify.ChannelInApp, notify.ChannelEmail},
		})
	}
	return id, nil
}

func (s *Service) EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error) {
	return s.store.EmployeeIDByUserID(ctx, tenantID, userID)
}

func (s *Service) ManagerIDByEmployeeID(ctx context.Context, tenantID, employeeID string) (string, error) {
	return s.store.ManagerIDByEmployeeID(ctx, tenantID, employeeID)
}

func (s *Service) GetCalibrationRecord(ctx context.Context, tenantID, recordID string) (CalibrationRecord, error) {
	return s.store.GetCalibrationRecord(ctx, tenantID, recordID)
}

func (s *Service) ListCalibrationRecords(ctx context.Context, tenantID, cycleID string) ([]CalibrationRecord, error) {
	return s.store.ListCalibrationRecords(ctx, tenantID, cycleID)
}

func (s *Service) ListCalibrationChanges(ctx context.Context, tenantID, recordID string) ([]CalibrationChange, error) {
	return s.store.ListCalibrationChanges(ctx, tenantID, recordID)
}

// AdjustCalibration changes a record's final rating with a mandatory reason.
// Every change appends to the audit trail before anything else about the
// record moves.
func (s *Service) AdjustCalibration(ctx context.Context, tenantID, recordID, actorID string, rating float64, tier, justification, reason string) error {
	if reason == "" {
		return fmt.Errorf("a reason is required for calibration changes")
	}
	record, err := s.store.GetCalibrationRecord(ctx, tenantID, recordID)
	if err != nil {
		return err
	}
	if record.State == CalibrationFinalized {
		return ErrCalibrationFinalized
	}
	updated, err := s.store.UpdateCalibrationRating(ctx, tenantID, recordID, rating, tier, justification)
	if err != nil {
		return err
	}
	if !updated {
		return ErrCalibrationFinalized
	}
	oldValue := ""
	if record.FinalRating != nil {
		oldValue = strconv.FormatFloat(*record.FinalRating, 'f', -1, 64)
	}
	return s.store.AppendCalibrationChange(ctx, tenantID, CalibrationChange{
		RecordID: recordID,
		ActorID:  actorID,
		Field:    "final_rating",
		OldValue: oldValue,
		NewValue: strconv.FormatFloat(rating, 'f', -1, 64),
		Reason:   reason,
	})
}

func (s *Service) DisputeCalibration(ctx context.Context, tenantID, recordID, actorID, reason string) error {
	if reason == "" {
		return fmt.Errorf("a dispute reason is required")
	}
	if err := s.store.SetCalibrationDispute(ctx, tenantID, recordID, reason); err != nil {
		return err
	}
	return s.store.AppendCalibrationChange(ctx, tenantID, CalibrationChange{
		RecordID: recordID,
		ActorID:  actorID,
		Field:    "disputed",
		OldValue: "false",
		NewValue: "true",
		Reason:   reason,
	})
}

func (s *Service) ResolveCalibrationDispute(ctx context.Context, tenantID, recordID, actorID, outcome string) error {
	if outcome == "" {
		return fmt.Errorf("a dispute outcome is required")
	}
	if err := s.store.ResolveCalibrationDispute(ctx, tenantID, recordID, outcome); err != nil {
		return err
	}
	return s.store.AppendCalibrationChange(ctx, tenantID, CalibrationChange{
		RecordID: recordID,
		ActorID:  actorID,
		Field:    "dispute_outcome",
		OldValue: "",
		NewValue: outcome,
		Reason:   outcome,
	})
}

func (s *Service) send(ctx context.Context, tenantID string, req notify.Request) {
	if s.notifier == nil {
		return
	}
	// Notification failures never fail the operation that produced them.
	if err := s.notifier.Notify(ctx, tenantID, req); err != nil {
		slog.Warn("notification dispatch failed", "category", req.Category, "recipientId", req.RecipientID, "err", err)
	}
}
