package scheduler

import (
	"github.com/gralix-technologies/loanlens/internal/modules/snapshots"
)

// SnapshotRefreshJob recomputes all registered widget snapshots.
type SnapshotRefreshJob struct {
	svc *snapshots.Service
}

// NewSnapshotRefreshJob creates a snapshot refresh job
func NewSnapshotRefreshJob(svc *snapshots.Service) *SnapshotRefreshJob {
	return &SnapshotRefreshJob{svc: svc}
}

// Name returns the job name
func (j *SnapshotRefreshJob) Name() string {
	return "snapshot_refresh"
}

// Run refreshes every registered snapshot
func (j *SnapshotRefreshJob) Run() error {
	return j.svc.RefreshAll()
}
