package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 一个刷新任务
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler 定时强制刷新公开集合，避免访客请求触发冷拉取
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	jobs    []Job
	logger  *zap.Logger
}

func New(spec string, timeout time.Duration, logger *zap.Logger, jobs ...Job) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:    spec,
		timeout: timeout,
		jobs:    jobs,
		logger:  logger,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.logger.Debug("Scheduled refresh triggered")
		_ = s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("spec", s.spec), zap.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce 顺序执行所有任务；单个任务失败不影响其他任务
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		jctx, cancel := context.WithTimeout(ctx, s.timeout)
		start := time.Now()
		err := job.Run(jctx)
		cancel()

		if err != nil {
			s.logger.Warn("Refresh job failed",
				zap.String("job", job.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("Refresh job done",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)))
	}
	return errors.Join(errs...)
}
