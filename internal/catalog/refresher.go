package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
)

const (
	refreshJobName         = "catalog_refresh"
	defaultRefreshInterval = 5 * time.Minute
)

// RefresherParams configure the background refresher.
type RefresherParams struct {
	Service  Service
	Logger   *logger.Logger
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Refresher keeps the catalog snapshot warm on a fixed cadence.
type Refresher struct {
	svc      Service
	logg     *logger.Logger
	metrics  *metrics.JobMetrics
	interval time.Duration
}

func NewRefresher(params RefresherParams) (*Refresher, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Refresher{
		svc:      params.Service,
		logg:     params.Logger,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run refreshes once immediately, then on every tick until ctx is canceled.
func (r *Refresher) Run(ctx context.Context) error {
	ctx = r.logg.WithFields(ctx, map[string]any{"job": refreshJobName, "event": "catalog.refresh"})
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "catalog refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	start := time.Now()
	_, err := r.svc.Refresh(ctx)
	duration := time.Since(start)
	r.metrics.ObserveDuration(refreshJobName, duration)
	ctx = r.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	if err != nil {
		r.logg.Error(ctx, "catalog refresh failed", err)
		r.metrics.IncFailure(refreshJobName)
		return
	}
	r.metrics.IncSuccess(refreshJobName)
}
