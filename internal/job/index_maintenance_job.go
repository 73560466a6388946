package job

import (
	"context"

	"github.com/xxxsen/ragbase/internal/vectorstore"
)

// IndexMaintenanceJob retries index creation on the active vector store,
// covering backends whose index could not be built at bootstrap.
type IndexMaintenanceJob struct {
	store vectorstore.IndexMaintainer
}

func NewIndexMaintenanceJob(store vectorstore.IndexMaintainer) *IndexMaintenanceJob {
	return &IndexMaintenanceJob{store: store}
}

func (j *IndexMaintenanceJob) Name() string {
	return "index_maintenance"
}

func (j *IndexMaintenanceJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	return j.store.EnsureIndex(ctx)
}
