package review

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const calibrationColumns = `
  id, cycle_id, subject_id, state, pre_rating, final_rating,
  COALESCE(potential_tier, ''), COALESCE(justification, ''),
  COALESCE(approver_id::text, ''), approved_at,
  disputed, COALESCE(dispute_reason, ''), COALESCE(dispute_outcome, '')`

// CreateCalibrationRecord opens calibration for a subject. Insertion is
// idempotent per (cycle, subject); the manager-submit handler may race the
// sweep and both are allowed to try.
func (s *Store) CreateCalibrationRecord(ctx context.Context, tenantID string, record CalibrationRecord) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO calibration_records (tenant_id, cycle_id, subject_id, state, pre_rating, final_rating)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (tenant_id, cycle_id, subject_id) DO NOTHING
    RETURNING id
  `, tenantID, record.CycleID, record.SubjectID, CalibrationOpen, record.PreRating, record.PreRating).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func scanCalibration(row pgx.Row) (CalibrationRecord, error) {
	var record CalibrationRecord
	err := row.Scan(
		&record.ID, &record.CycleID, &record.SubjectID, &record.State,
		&record.PreRating, &record.FinalRating,
		&record.PotentialTier, &record.Justification,
		&record.ApproverID, &record.ApprovedAt,
		&record.Disputed, &record.DisputeReason, &record.DisputeOutcome,
	)
	return record, err
}

func (s *Store) GetCalibrationRecord(ctx context.Context, tenantID, recordID string) (CalibrationRecord, error) {
	record, err := scanCalibration(s.DB.QueryRow(ctx,
		"SELECT "+calibrationColumns+" FROM calibration_records WHERE tenant_id = $1 AND id = $2",
		tenantID, recordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return CalibrationRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return CalibrationRecord{}, err
	}
	return record, nil
}

func (s *Store) GetCalibrationBySubject(ctx context.Context, tenantID, cycleID, subjectID string) (CalibrationRecord, error) {
	record, err := scanCalibration(s.DB.QueryRow(ctx, `
    SELECT `+calibrationColumns+`
    FROM calibration_records
    WHERE tenant_id = $1 AND cycle_id = $2 AND subject_id = $3
  `, tenantID, cycleID, subjectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return CalibrationRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return CalibrationRecord{}, err
	}
	return record, nil
}

func (s *Store) ListCalibrationRecords(ctx context.Context, tenantID, cycleID string) ([]CalibrationRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+calibrationColumns+`
    FROM calibration_records
    WHERE tenant_id = $1 AND cycle_id = $2
    ORDER BY created_at
  `, tenantID, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CalibrationRecord
	for rows.Next() {
		record, err := scanCalibration(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) UpdateCalibrationRating(ctx context.Context, tenantID, recordID string, rating float64, tier, justification string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE calibration_records
    SET final_rating = $1, potential_tier = $2, justification = $3, updated_at = now()
    WHERE tenant_id = $4 AND id = $5 AND state <> $6
  `, rating, nullIfEmpty(tier), nullIfEmpty(justification), tenantID, recordID, CalibrationFinalized)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetCalibrationDispute(ctx context.Context, tenantID, recordID, reason string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE calibration_records
    SET disputed = TRUE, dispute_reason = $1, state = $2, updated_at = now()
    WHERE tenant_id = $3 AND id = $4 AND state <> $5
  `, reason, CalibrationDisputed, tenantID, recordID, CalibrationFinalized)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCalibrationFinalized
	}
	return nil
}

func (s *Store) ResolveCalibrationDispute(ctx context.Context, tenantID, recordID, outcome string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE calibration_records
    SET dispute_outcome = $1, state = $2, updated_at = now()
    WHERE tenant_id = $3 AND id = $4 AND state = $5
  `, outcome, CalibrationOpen, tenantID, recordID, CalibrationDisputed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// FinalizeCalibration signs a record off. The state guard makes a duplicate
// sign-off a no-op and rejects finalizing an open dispute.
func (s *Store) FinalizeCalibration(ctx context.Context, tenantID, recordID, approverID string, now time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE calibration_records
    SET state = $1, approver_id = $2, approved_at = $3, updated_at = now()
    WHERE tenant_id = $4 AND id = $5 AND state = $6
  `, CalibrationFinalized, approverID, now, tenantID, recordID, CalibrationOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CountCalibrationRecords(ctx context.Context, tenantID, cycleID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM calibration_records WHERE tenant_id = $1 AND cycle_id = $2
  `, tenantID, cycleID).Scan(&total)
	return total, err
}

func (s *Store) CountFinalizedCalibrations(ctx context.Context, tenantID, cycleID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM calibration_records
    WHERE tenant_id = $1 AND cycle_id = $2 AND state = $3
  `, tenantID, cycleID, CalibrationFinalized).Scan(&total)
	return total, err
}

// AppendCalibrationChange writes one audit-trail entry. The table is insert
// only; nothing in this codebase updates or deletes from it.
func (s *Store) AppendCalibrationChange(ctx context.Context, tenantID string, change CalibrationChange) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO calibration_changes (tenant_id, record_id, actor_id, field, old_value, new_value, reason)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, tenantID, change.RecordID, change.ActorID, change.Field, change.OldValue, change.NewValue, change.Reason)
	return err
}

func (s *Store) ListCalibrationChanges(ctx context.Context, tenantID, recordID string) ([]CalibrationChange, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, record_id, actor_id, field, old_value, new_value, COALESCE(reason, ''), created_at
    FROM calibration_changes
    WHERE tenant_id = $1 AND record_id = $2
    ORDER BY created_at
  `, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []CalibrationChange
	for rows.Next() {
		var change CalibrationChange
		if err := rows.Scan(&change.ID, &change.RecordID, &change.ActorID, &change.Field,
			&change.OldValue, &change.NewValue, &change.Reason, &change.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}
