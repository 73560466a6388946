package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type chunkCounter interface {
	Count(ctx context.Context) (int64, error)
	ActiveProvider() string
}

type gauge interface {
	Set(float64)
}

type StoreStatsJob struct {
	store chunkCounter
	gauge gauge
}

func NewStoreStatsJob(store chunkCounter, g gauge) *StoreStatsJob {
	return &StoreStatsJob{store: store, gauge: g}
}

func (j *StoreStatsJob) Name() string {
	return "store_stats"
}

func (j *StoreStatsJob) Run(ctx context.Context) error {
	n, err := j.store.Count(ctx)
	if err != nil {
		return err
	}
	j.gauge.Set(float64(n))
	logutil.GetLogger(ctx).Debug("stored chunks", zap.String("provider", j.store.ActiveProvider()), zap.Int64("chunks", n))
	return nil
}
