package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/karat/internal/clock"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	obsmetrics "github.com/smallbiznis/karat/internal/observability/metrics"
	"github.com/smallbiznis/karat/internal/pricingerr"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobQuoteCacheSweep    = "quote_cache_sweep"
	JobRateStalenessCheck = "rate_staleness_check"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

// QuoteSweeper drops expired cached quotes and reports how many went.
type QuoteSweeper interface {
	Sweep() int
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Rates   goldratedomain.Service
	Quotes  QuoteSweeper                 `optional:"true"`
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
	Config  Config                       `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	rates   goldratedomain.Service
	quotes  QuoteSweeper
	metrics *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.GenID == nil || p.Rates == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		rates:   p.Rates,
		quotes:  p.Quotes,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context, run *jobRun) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	run := s.newJobRun(name)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err := fn(ctx, run)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(run.startedAt))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name)
	// deadline is a soft timeout; the next tick retries
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context, *jobRun) error
	}{
		{JobQuoteCacheSweep, s.QuoteCacheSweepJob},
		{JobRateStalenessCheck, s.RateStalenessJob},
	}

	var err error
	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// QuoteCacheSweepJob releases cached quotes whose TTL has passed.
func (s *Scheduler) QuoteCacheSweepJob(_ context.Context, run *jobRun) error {
	if s.quotes == nil {
		return nil
	}
	run.AddProcessed(s.quotes.Sweep())
	return nil
}

// RateStalenessJob warns when the current gold rate is older than MaxRateAge.
// A missing current rate is reported but is not a job failure.
func (s *Scheduler) RateStalenessJob(ctx context.Context, run *jobRun) error {
	rate, err := s.rates.GetCurrentRate(ctx)
	if err != nil {
		if pricingerr.IsConfiguration(err) {
			s.logger(ctx).Warn("no current gold rate", zap.Error(err))
			return nil
		}
		return err
	}
	run.AddProcessed(1)

	age := s.clock.Now().Sub(rate.EffectiveDate)
	if age < 0 {
		age = 0
	}
	s.metrics.SetRateAge(age)
	if age > s.cfg.MaxRateAge {
		s.logger(ctx).Warn("gold rate is stale",
			zap.String("rate_id", rate.ID.String()),
			zap.Time("effective_date", rate.EffectiveDate),
			zap.Duration("age", age),
			zap.Duration("max_age", s.cfg.MaxRateAge),
		)
	}
	return nil
}
