package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reviewhub/internal/domain/review"
	"reviewhub/internal/platform/config"
	"reviewhub/internal/platform/metrics"
)

const (
	JobPhaseSweep    = "review_phase_sweep"
	JobReminderSweep = "review_reminder_sweep"
	JobCheckinSweep  = "review_checkin_sweep"
	JobCompleted     = "review_completed_digest"
	JobWeeklyDigest  = "review_weekly_digest"
)

type Service struct {
	DB      *pgxpool.Pool
	Cfg     config.Config
	Reviews *review.Service
	Metrics *metrics.Collector
	queue   chan job
}

type job struct {
	Type     string
	TenantID string
	Run      func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, reviews *review.Service, collector *metrics.Collector) *Service {
	return &Service{
		DB:      db,
		Cfg:     cfg,
		Reviews: reviews,
		Metrics: collector,
		queue:   make(chan job, 128),
	}
}

// Start launches the worker and one ticker per sweep. Every sweep is
// idempotent, so overlapping or repeated runs after a restart are safe.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	s.schedule(ctx, JobPhaseSweep, s.Cfg.PhaseInterval, func(ctx context.Context, tenantID string, now time.Time) (any, error) {
		return s.Reviews.RunPhaseSweep(ctx, tenantID, now)
	})
	s.schedule(ctx, JobReminderSweep, s.Cfg.ReminderInterval, func(ctx context.Context, tenantID string, now time.Time) (any, error) {
		return s.Reviews.RunReminderSweep(ctx, tenantID, now)
	})
	s.schedule(ctx, JobCheckinSweep, s.Cfg.CheckinInterval, func(ctx context.Context, tenantID string, now time.Time) (any, error) {
		return s.Reviews.RunCheckinReminderSweep(ctx, tenantID, now)
	})
	s.schedule(ctx, JobCompleted, s.Cfg.CompletedInterval, func(ctx context.Context, tenantID string, now time.Time) (any, error) {
		return s.Reviews.RunCompletedSweep(ctx, tenantID, now)
	})
	s.schedule(ctx, JobWeeklyDigest, s.Cfg.DigestInterval, func(ctx context.Context, tenantID string, now time.Time) (any, error) {
		return s.Reviews.RunDigestSweep(ctx, tenantID, now)
	})
}

func (s *Service) Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
	}
}

// RunNow executes a job inline, bypassing the queue. Admin endpoints use it
// to trigger a sweep on demand.
func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, j.TenantID, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	if s.Metrics != nil {
		s.Metrics.RecordSweep(err != nil)
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) schedule(ctx context.Context, jobType string, interval time.Duration, run func(context.Context, string, time.Time) (any, error)) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tenants, err := s.listTenants(ctx)
				if err != nil {
					slog.Warn("sweep tenant lookup failed", "jobType", jobType, "err", err)
					continue
				}
				for _, tenantID := range tenants {
					tenant := tenantID
					s.Enqueue(jobType, tenant, func(ctx context.Context) (any, error) {
						return run(ctx, tenant, time.Now().UTC())
					})
				}
			}
		}
	}()
}

func (s *Service) listTenants(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT id FROM tenants`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
