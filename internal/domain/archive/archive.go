// Package archive writes the permanent employee record for a published
// review: a consolidated row in hr_records plus a PDF snapshot on disk.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jung-kurt/gofpdf"

	"reviewhub/internal/domain/review"
)

type Service struct {
	DB  *pgxpool.Pool
	Dir string
}

func NewService(db *pgxpool.Pool, dir string) *Service {
	if dir == "" {
		dir = "storage/reviews"
	}
	return &Service{DB: db, Dir: dir}
}

// Record is the consolidated history entry stored per subject per cycle.
type Record struct {
	CycleID          string     `json:"cycleId"`
	CycleName        string     `json:"cycleName"`
	SubjectID        string     `json:"subjectId"`
	SubjectName      string     `json:"subjectName"`
	PeriodStart      time.Time  `json:"periodStart"`
	PeriodEnd        time.Time  `json:"periodEnd"`
	SelfRating       *float64   `json:"selfRating,omitempty"`
	ManagerRating    *float64   `json:"managerRating,omitempty"`
	CalibratedRating *float64   `json:"calibratedRating,omitempty"`
	FinalRating      *float64   `json:"finalRating,omitempty"`
	PotentialTier    string     `json:"potentialTier,omitempty"`
	Strengths        []string   `json:"strengths,omitempty"`
	Improvements     []string   `json:"improvements,omitempty"`
	Development      []string   `json:"development,omitempty"`
	PeerRatings      []float64  `json:"peerRatings,omitempty"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
	ArchivedAt       time.Time  `json:"archivedAt"`
}

// Archive builds the consolidated record for one subject in one cycle and
// upserts it. Re-archiving the same pair replaces the row, so publication
// retries are safe. A PDF snapshot failure is logged but does not fail the
// archive; the database row is the source of truth.
func (s *Service) Archive(ctx context.Context, tenantID, cycleID, subjectID string) error {
	record, err := s.build(ctx, tenantID, cycleID, subjectID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO hr_records (tenant_id, cycle_id, subject_id, final_rating, potential_tier, payload, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, cycle_id, subject_id)
		DO UPDATE SET final_rating = EXCLUDED.final_rating,
		              potential_tier = EXCLUDED.potential_tier,
		              payload = EXCLUDED.payload,
		              archived_at = EXCLUDED.archived_at
	`, tenantID, cycleID, subjectID, record.FinalRating, nullIfEmpty(record.PotentialTier), payload, record.ArchivedAt)
	if err != nil {
		return err
	}

	if err := s.writePDF(tenantID, record); err != nil {
		slog.Warn("review snapshot PDF failed", "cycleId", cycleID, "subjectId", subjectID, "err", err)
	}
	return nil
}

func (s *Service) build(ctx context.Context, tenantID, cycleID, subjectID string) (Record, error) {
	record := Record{
		CycleID:    cycleID,
		SubjectID:  subjectID,
		ArchivedAt: time.Now().UTC(),
	}

	err := s.DB.QueryRow(ctx, `
		SELECT c.name, c.period_start, c.period_end, e.first_name || ' ' || e.last_name
		FROM review_cycles c, employees e
		WHERE c.tenant_id = $1 AND c.id = $2 AND e.tenant_id = $1 AND e.id = $3
	`, tenantID, cycleID, subjectID).Scan(&record.CycleName, &record.PeriodStart, &record.PeriodEnd, &record.SubjectName)
	if err != nil {
		return record, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT kind, status, overall_rating, strengths, improvements, development, submitted_at
		FROM review_forms
		WHERE tenant_id = $1 AND cycle_id = $2 AND subject_id = $3
		  AND status IN ('SUBMITTED', 'CALIBRATED', 'PUBLISHED')
	`, tenantID, cycleID, subjectID)
	if err != nil {
		return record, err
	}
	defer rows.Close()

	var managerForm *review.ReviewForm
	for rows.Next() {
		var form review.ReviewForm
		var strengths, improvements, development *string
		if err := rows.Scan(&form.Kind, &form.Status, &form.OverallRating, &strengths, &improvements, &development, &form.SubmittedAt); err != nil {
			return record, err
		}
		appendText(&record.Strengths, strengths)
		appendText(&record.Improvements, improvements)
		appendText(&record.Development, development)
		switch form.Kind {
		case review.FormSelf:
			record.SelfRating = form.OverallRating
		case review.FormManager:
			form := form
			managerForm = &form
			record.ManagerRating = form.OverallRating
			record.SubmittedAt = form.SubmittedAt
		case review.FormPeer:
			if form.OverallRating != nil {
				record.PeerRatings = append(record.PeerRatings, *form.OverallRating)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return record, err
	}

	var calibration *review.CalibrationRecord
	var cal review.CalibrationRecord
	err = s.DB.QueryRow(ctx, `
		SELECT final_rating, potential_tier
		FROM calibration_records
		WHERE tenant_id = $1 AND cycle_id = $2 AND subject_id = $3
	`, tenantID, cycleID, subjectID).Scan(&cal.FinalRating, &cal.PotentialTier)
	switch err {
	case nil:
		calibration = &cal
		record.CalibratedRating = cal.FinalRating
		record.PotentialTier = cal.PotentialTier
	case pgx.ErrNoRows:
	default:
		return record, err
	}

	record.FinalRating = review.FinalRating(calibration, managerForm)
	return record, nil
}

func (s *Service) writePDF(tenantID string, record Record) error {
	dir := filepath.Join(s.Dir, tenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, record.CycleID+"-"+record.SubjectID+".pdf")

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Review")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", record.SubjectName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Cycle: %s", record.CycleName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", record.PeriodStart.Format("2006-01-02"), record.PeriodEnd.Format("2006-01-02")))
	pdf.Ln(10)
	pdf.Cell(0, 8, "Rating: "+ratingLabel(record.FinalRating))
	if record.PotentialTier != "" {
		pdf.Ln(7)
		pdf.Cell(0, 8, fmt.Sprintf("Potential: %s", record.PotentialTier))
	}
	writeSection(pdf, "Strengths", record.Strengths)
	writeSection(pdf, "Areas for improvement", record.Improvements)
	writeSection(pdf, "Development plan", record.Development)

	return pdf.OutputFileAndClose(path)
}

func writeSection(pdf *gofpdf.Fpdf, title string, items []string) {
	if len(items) == 0 {
		return
	}
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.SetFont("Helvetica", "", 11)
	for _, item := range items {
		pdf.Ln(6)
		pdf.MultiCell(0, 5, "- "+item, "", "L", false)
	}
}

func ratingLabel(rating *float64) string {
	if rating == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *rating)
}

func appendText(dst *[]string, value *string) {
	if value != nil && *value != "" {
		*dst = append(*dst, *value)
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
