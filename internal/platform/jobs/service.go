package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leavehub/internal/domain/leave"
	"leavehub/internal/platform/config"
)

const JobCarryForward = "leave_carry_forward"

type Service struct {
	DB     *pgxpool.Pool
	Cfg    config.Config
	Ledger *leave.Ledger
	queue  chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, ledger *leave.Ledger) *Service {
	return &Service{
		DB:     db,
		Cfg:    cfg,
		Ledger: ledger,
		queue:  make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.CarryForwardInterval > 0 {
		go s.scheduleCarryForward(ctx, s.Cfg.CarryForwardInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

// scheduleCarryForward periodically rolls the previous year's unused days
// forward. Carry-forward runs are recorded per balance, so overlapping or
// repeated ticks do not double-apply.
func (s *Service) scheduleCarryForward(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fromYear := time.Now().Year() - 1
			s.Enqueue(JobCarryForward, func(ctx context.Context) (any, error) {
				return s.Ledger.ApplyCarryForward(ctx, fromYear)
			})
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,'running')
    RETURNING id
  `, j.Type).Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updateErr := s.DB.Exec(ctx, `
      UPDATE job_runs SET status = $1, details_json = $2, finished_at = now() WHERE id = $3
    `, status, detailsJSON, runID); updateErr != nil {
			slog.Warn("job run update failed", "err", updateErr)
		}
	}
	return details, err
}
