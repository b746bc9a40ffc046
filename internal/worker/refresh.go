package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/provider/resilience"
)

// ScheduleRefresher refetches one schedule month into the cache.
type ScheduleRefresher interface {
	Refresh(ctx context.Context, year int, month time.Month) error
}

// ProviderObserver snapshots provider circuit state.
type ProviderObserver interface {
	ObserveProviders(reg *resilience.Registry)
}

// RefreshJob warms the world schedule cache.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	refresher ScheduleRefresher
	now       func() time.Time

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns           int64
	SuccessfulMonths    int64
	FailedMonths        int64
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Logger    zerolog.Logger
	Refresher ScheduleRefresher

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	defaults := DefaultRefreshConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if len(config.Timezones) == 0 {
		config.Timezones = defaults.Timezones
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RefreshJob{
		config:    config,
		logger:    cfg.Logger,
		refresher: cfg.Refresher,
		now:       now,
		metrics:   &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalMonths int
	Successful  int
	Failed      int
	Errors      []RefreshError
}

// RefreshError is one month that could not be fetched.
type RefreshError struct {
	Month string
	Error string
}

type monthResult struct {
	target RefreshTarget
	err    error
}

// Run fetches every target month with a bounded pool of workers.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	targets := j.config.Targets(j.now())
	result := &RefreshResult{
		StartTime:   startTime,
		TotalMonths: len(targets),
	}

	j.logger.Info().
		Int("total_months", result.TotalMonths).
		Int("concurrency", j.config.Concurrency).
		Msg("starting schedule refresh job")

	targetsChan := make(chan RefreshTarget, len(targets))
	resultsChan := make(chan monthResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for mr := range resultsChan {
		if mr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{
			Month: mr.target.Key(),
			Error: mr.err.Error(),
		})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("schedule refresh job completed")

	return result
}

func (j *RefreshJob) refreshWorker(ctx context.Context, targets <-chan RefreshTarget, results chan<- monthResult) {
	for target := range targets {
		select {
		case <-ctx.Done():
			results <- monthResult{target: target, err: ctx.Err()}
		default:
			results <- monthResult{target: target, err: j.refreshMonth(ctx, target)}
		}
	}
}

func (j *RefreshJob) refreshMonth(ctx context.Context, target RefreshTarget) error {
	if j.refresher == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if err := j.refresher.Refresh(ctx, target.Year, target.Month); err != nil {
		j.logger.Warn().Err(err).Str("month", target.Key()).Msg("schedule month refresh failed")
		return err
	}
	j.logger.Debug().Str("month", target.Key()).Msg("schedule month refreshed")
	return nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulMonths += int64(result.Successful)
	j.metrics.FailedMonths += int64(result.Failed)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulMonths:    j.metrics.SuccessfulMonths,
		FailedMonths:        j.metrics.FailedMonths,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":            m.TotalRuns,
		"successful_months":     m.SuccessfulMonths,
		"failed_months":         m.FailedMonths,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
