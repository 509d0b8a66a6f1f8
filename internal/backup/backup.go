// Package backup writes periodic JSON snapshots of the whole dataset to a
// local directory.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"warungku/backend/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Scheduler ticks once a minute and writes a snapshot whenever auto-backup
// is enabled and the configured interval has elapsed since the last one.
// The one-minute tick keeps interval changes effective without a restart.
type Scheduler struct {
	repo  store.Repository
	dir   string
	sched *cron.Cron
	log   *zap.Logger
}

func NewScheduler(repo store.Repository, dir string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		repo: repo,
		dir:  dir,
		log:  logger,
	}
}

func (s *Scheduler) Start() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	s.sched = cron.New()
	_, err := s.sched.AddFunc("@every 1m", func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("auto backup panic", zap.Any("panic", r))
			}
		}()
		s.runOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule auto backup: %w", err)
	}

	s.sched.Start()
	s.log.Info("auto backup scheduler started", zap.String("dir", s.dir))
	return nil
}

// Stop waits for a running backup job to finish.
func (s *Scheduler) Stop() {
	if s.sched == nil {
		return
	}
	<-s.sched.Stop().Done()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		s.log.Error("auto backup: read settings", zap.Error(err))
		return
	}
	if !settings.AutoBackup {
		return
	}

	interval := time.Duration(settings.BackupIntervalMinutes) * time.Minute
	if interval < time.Minute {
		interval = time.Hour
	}
	now := time.Now().UTC()
	if settings.LastBackupAt != nil && now.Sub(*settings.LastBackupAt) < interval {
		return
	}

	path, err := s.writeSnapshot(ctx, now)
	if err != nil {
		s.log.Error("auto backup failed", zap.Error(err))
		return
	}

	settings.LastBackupAt = &now
	if _, err := s.repo.UpdateSettings(ctx, settings); err != nil {
		s.log.Error("auto backup: record last run", zap.Error(err))
	}

	s.log.Info("auto backup written", zap.String("path", path))
}

func (s *Scheduler) writeSnapshot(ctx context.Context, at time.Time) (string, error) {
	snapshot, err := s.repo.ExportSnapshot(ctx)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("warungku-backup-auto-%s.json", at.Format("2006-01-02-150405"))
	path := filepath.Join(s.dir, name)

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
