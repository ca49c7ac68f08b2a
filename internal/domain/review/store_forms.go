package review

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const formColumns = `
  id, cycle_id, subject_id, author_id, kind, status, answers_json,
  overall_rating, COALESCE(strengths, ''), COALESCE(improvements, ''), COALESCE(development, ''),
  submitted_at, reminder_count, manager_notified, hr_notified`

// CreateForm inserts a form if one does not already exist for the same
// (cycle, subject, author, kind). Phase fan-out runs on every sweep, so the
// insert has to be a no-op on repeat.
func (s *Store) CreateForm(ctx context.Context, tenantID string, form ReviewForm) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO review_forms (tenant_id, cycle_id, subject_id, author_id, kind, status)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (tenant_id, cycle_id, subject_id, author_id, kind) DO NOTHING
    RETURNING id
  `, tenantID, form.CycleID, form.SubjectID, form.AuthorID, form.Kind, StatusNotStarted).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func scanForm(row pgx.Row) (ReviewForm, error) {
	var form ReviewForm
	err := row.Scan(
		&form.ID, &form.CycleID, &form.SubjectID, &form.AuthorID, &form.Kind, &form.Status,
		&form.Answers, &form.OverallRating, &form.Strengths, &form.Improvements, &form.Development,
		&form.SubmittedAt, &form.ReminderCount, &form.ManagerNotified, &form.HRNotified,
	)
	return form, err
}

func (s *Store) GetForm(ctx context.Context, tenantID, formID string) (ReviewForm, error) {
	form, err := scanForm(s.DB.QueryRow(ctx,
		"SELECT "+formColumns+" FROM review_forms WHERE tenant_id = $1 AND id = $2",
		tenantID, formID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ReviewForm{}, ErrFormNotFound
	}
	if err != nil {
		return ReviewForm{}, err
	}
	return form, nil
}

func (s *Store) ListFormsByCycle(ctx context.Context, tenantID, cycleID, kind string) ([]ReviewForm, error) {
	query := "SELECT " + formColumns + " FROM review_forms WHERE tenant_id = $1 AND cycle_id = $2"
	args := []any{tenantID, cycleID}
	if kind != "" {
		query += " AND kind = $3"
		args = append(args, kind)
	}
	query += " ORDER BY created_at"
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectForms(rows)
}

func (s *Store) ListFormsByAuthor(ctx context.Context, tenantID, authorID string) ([]ReviewForm, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+formColumns+`
    FROM review_forms
    WHERE tenant_id = $1 AND author_id = $2
    ORDER BY created_at DESC
  `, tenantID, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectForms(rows)
}

func (s *Store) ListUnsubmittedForms(ctx context.Context, tenantID, cycleID string) ([]ReviewForm, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+formColumns+`
    FROM review_forms
    WHERE tenant_id = $1 AND cycle_id = $2 AND status IN ($3, $4)
    ORDER BY created_at
  `, tenantID, cycleID, StatusNotStarted, StatusDraft)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectForms(rows)
}

func (s *Store) ListFormsSubmittedSince(ctx context.Context, tenantID string, since time.Time) ([]ReviewForm, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+formColumns+`
    FROM review_forms
    WHERE tenant_id = $1 AND submitted_at >= $2
    ORDER BY submitted_at
  `, tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectForms(rows)
}

func collectForms(rows pgx.Rows) ([]ReviewForm, error) {
	var forms []ReviewForm
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, rows.Err()
}

// SaveFormDraft writes the editable fields and moves NOT_STARTED to DRAFT.
// Submitted forms are locked.
func (s *Store) SaveFormDraft(ctx context.Context, tenantID, formID string, draft FormDraft) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE review_forms
    SET answers_json = $1, overall_rating = $2,
        strengths = $3, improvements = $4, development = $5,
        status = $6, updated_at = now()
    WHERE tenant_id = $7 AND id = $8 AND status IN ($9, $10)
  `, draft.Answers, draft.OverallRating,
		nullIfEmpty(draft.Strengths), nullIfEmpty(draft.Improvements), nullIfEmpty(draft.Development),
		StatusDraft, tenantID, formID, StatusNotStarted, StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFormLocked
	}
	return nil
}

// MarkFormSubmitted advances a form to SUBMITTED and stamps the submission
// time. The status guard makes a racing duplicate submit a no-op.
func (s *Store) MarkFormSubmitted(ctx context.Context, tenantID, formID string, now time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE review_forms
    SET status = $1, submitted_at = $2, updated_at = now()
    WHERE tenant_id = $3 AND id = $4 AND status IN ($5, $6)
  `, StatusSubmitted, now, tenantID, formID, StatusNotStarted, StatusDraft)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdateFormStatus(ctx context.Context, tenantID, formID, from, to string) (bool, error) {
	if !StatusBefore(from, to) {
		return false, ErrInvalidStatus
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE review_forms SET status = $1, updated_at = now()
    WHERE tenant_id = $2 AND id = $3 AND status = $4
  `, to, tenantID, formID, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CountForms(ctx context.Context, tenantID, cycleID, kind string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM review_forms
    WHERE tenant_id = $1 AND cycle_id = $2 AND kind = $3
  `, tenantID, cycleID, kind).Scan(&total)
	return total, err
}

func (s *Store) CountFormsByStatus(ctx context.Context, tenantID, cycleID, kind, status string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM review_forms
    WHERE tenant_id = $1 AND cycle_id = $2 AND kind = $3 AND status = $4
  `, tenantID, cycleID, kind, status).Scan(&total)
	return total, err
}

// IncrementReminder bumps the reminder counter by one and latches the
// escalation flags. The flags only ever go from false to true.
func (s *Store) IncrementReminder(ctx context.Context, tenantID, formID string, managerNotified, hrNotified bool) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE review_forms
    SET reminder_count = reminder_count + 1,
        manager_notified = manager_notified OR $1,
        hr_notified = hr_notified OR $2,
        updated_at = now()
    WHERE tenant_id = $3 AND id = $4
  `, managerNotified, hrNotified, tenantID, formID)
	return err
}
