package scheduler

import (
	"context"
	"time"

	"shisan/internal/snapshot"
)

// refreshTimeout bounds one full pipeline run, fund page fetches included
const refreshTimeout = 3 * time.Minute

// RefreshJob triggers the periodic valuation refresh
type RefreshJob struct {
	service *snapshot.Service
}

// NewRefreshJob creates the refresh job
func NewRefreshJob(service *snapshot.Service) *RefreshJob {
	return &RefreshJob{service: service}
}

// Name implements Job
func (j *RefreshJob) Name() string { return "snapshot_refresh" }

// Run implements Job
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	_, err := j.service.Refresh(ctx)
	return err
}

// Backuper runs one backup cycle
type Backuper interface {
	Backup(ctx context.Context) error
}

// BackupJob triggers the nightly data-directory backup
type BackupJob struct {
	backuper Backuper
}

// NewBackupJob creates the backup job
func NewBackupJob(backuper Backuper) *BackupJob {
	return &BackupJob{backuper: backuper}
}

// Name implements Job
func (j *BackupJob) Name() string { return "data_backup" }

// Run implements Job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	return j.backuper.Backup(ctx)
}
