package cron

import (
	"Converge/internal/api/config"
	"Converge/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine    *cron.Cron
	snoozeJob *job.SnoozeJob
}

func NewCronManager(snoozeJob *job.SnoozeJob) *Manager {
	return &Manager{
		engine:    cron.New(cron.WithSeconds()),
		snoozeJob: snoozeJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(config.Cfg.Inbox.SnoozeSweepCron, s.snoozeJob); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	s.engine.Stop()
}
