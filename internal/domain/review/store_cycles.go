package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const cycleColumns = `
  id, name, kind, phase, period_start, period_end,
  self_review_start, self_review_end, manager_review_start, manager_review_end,
  peer_review_start, peer_review_end, calibration_date, publish_date,
  rating_scale, peer_enabled, upward_enabled, anonymous_peer,
  calibration_required, compensation_linked, sections_json,
  excluded_departments, excluded_employees,
  self_open_notified, manager_open_notified, peer_open_notified`

func (s *Store) CreateCycle(ctx context.Context, tenantID string, cycle ReviewCycle) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO review_cycles (
      tenant_id, name, kind, phase, period_start, period_end,
      self_review_start, self_review_end, manager_review_start, manager_review_end,
      peer_review_start, peer_review_end, calibration_date, publish_date,
      rating_scale, peer_enabled, upward_enabled, anonymous_peer,
      calibration_required, compensation_linked, sections_json,
      excluded_departments, excluded_employees
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
    RETURNING id
  `, tenantID, cycle.Name, cycle.Kind, PhaseDraft, cycle.PeriodStart, cycle.PeriodEnd,
		cycle.SelfReviewStart, cycle.SelfReviewEnd, cycle.ManagerReviewStart, cycle.ManagerReviewEnd,
		cycle.PeerReviewStart, cycle.PeerReviewEnd, cycle.CalibrationDate, cycle.PublishDate,
		cycle.RatingScale, cycle.PeerEnabled, cycle.UpwardEnabled, cycle.AnonymousPeer,
		cycle.CalibrationRequired, cycle.CompensationLinked, cycle.Sections,
		cycle.ExcludedDepartments, cycle.ExcludedEmployees).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func scanCycle(row pgx.Row) (ReviewCycle, error) {
	var cycle ReviewCycle
	err := row.Scan(
		&cycle.ID, &cycle.Name, &cycle.Kind, &cycle.Phase, &cycle.PeriodStart, &cycle.PeriodEnd,
		&cycle.SelfReviewStart, &cycle.SelfReviewEnd, &cycle.ManagerReviewStart, &cycle.ManagerReviewEnd,
		&cycle.PeerReviewStart, &cycle.PeerReviewEnd, &cycle.CalibrationDate, &cycle.PublishDate,
		&cycle.RatingScale, &cycle.PeerEnabled, &cycle.UpwardEnabled, &cycle.AnonymousPeer,
		&cycle.CalibrationRequired, &cycle.CompensationLinked, &cycle.Sections,
		&cycle.ExcludedDepartments, &cycle.ExcludedEmployees,
		&cycle.SelfOpenNotified, &cycle.ManagerOpenNotified, &cycle.PeerOpenNotified,
	)
	return cycle, err
}

func (s *Store) GetCycle(ctx context.Context, tenantID, cycleID string) (ReviewCycle, error) {
	cycle, err := scanCycle(s.DB.QueryRow(ctx,
		"SELECT "+cycleColumns+" FROM review_cycles WHERE tenant_id = $1 AND id = $2",
		tenantID, cycleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ReviewCycle{}, ErrCycleNotFound
	}
	if err != nil {
		return ReviewCycle{}, err
	}
	return cycle, nil
}

func (s *Store) ListCycles(ctx context.Context, tenantID string, limit, offset int) ([]ReviewCycle, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+cycleColumns+`
    FROM review_cycles
    WHERE tenant_id = $1
    ORDER BY period_start DESC
    LIMIT $2 OFFSET $3
  `, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCycles(rows)
}

// ListOpenCycles returns every cycle that is neither DRAFT nor CLOSED, the
// population the scheduled sweeps evaluate.
func (s *Store) ListOpenCycles(ctx context.Context, tenantID string) ([]ReviewCycle, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+cycleColumns+`
    FROM review_cycles
    WHERE tenant_id = $1 AND phase NOT IN ($2, $3)
    ORDER BY period_start
  `, tenantID, PhaseDraft, PhaseClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCycles(rows)
}

func collectCycles(rows pgx.Rows) ([]ReviewCycle, error) {
	var cycles []ReviewCycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cycle)
	}
	return cycles, rows.Err()
}

// AdvanceCyclePhase moves a cycle from one phase to the next. The guard on the
// current phase makes the transition monotonic and a duplicate attempt a
// no-op; callers treat the false return as "someone else already did it".
func (s *Store) AdvanceCyclePhase(ctx context.Context, tenantID, cycleID, from, to string) (bool, error) {
	if !PhaseBefore(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidPhase, from, to)
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE review_cycles SET phase = $1, updated_at = now()
    WHERE tenant_id = $2 AND id = $3 AND phase = $4
  `, to, tenantID, cycleID, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPhaseNotified flips the phase-opened notified flag for the given phase.
// The false return means another run already claimed the notification.
func (s *Store) MarkPhaseNotified(ctx context.Context, tenantID, cycleID, phase string) (bool, error) {
	var column string
	switch phase {
	case PhaseSelfReviewOpen:
		column = "self_open_notified"
	case PhaseManagerReviewOpen:
		column = "manager_open_notified"
	case PhasePeerReviewOpen:
		column = "peer_open_notified"
	default:
		return false, fmt.Errorf("phase %s has no notified flag", phase)
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE review_cycles SET `+column+` = TRUE, updated_at = now()
    WHERE tenant_id = $1 AND id = $2 AND `+column+` = FALSE
  `, tenantID, cycleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
