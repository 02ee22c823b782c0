package planner

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"holidaycal/internal/ics"
	appLog "holidaycal/internal/log"
	"holidaycal/internal/metrics"
)

// Fetcher downloads calendar subscriptions.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Refresher reloads public holidays and merges calendar subscriptions into
// the planner on a cron schedule.
type Refresher struct {
	planner       *Planner
	fetcher       Fetcher
	subscriptions []ics.Source

	// AfterRun, if set, is called after every run, e.g. to persist state.
	AfterRun func()
}

// NewRefresher creates a Refresher for subs. fetcher may be nil when there
// are no subscriptions.
func NewRefresher(p *Planner, fetcher Fetcher, subs []ics.Source) *Refresher {
	return &Refresher{planner: p, fetcher: fetcher, subscriptions: subs}
}

// Run performs one refresh cycle. Subscription failures are logged and
// reported in the returned error; successful sources are still merged.
func (r *Refresher) Run(ctx context.Context) error {
	r.planner.RefreshPublic(ctx)

	var errs []error
	if len(r.subscriptions) > 0 && r.fetcher != nil {
		results, fetchErrs := r.fetcher.FetchAll(ctx, r.subscriptions)
		errs = append(errs, fetchErrs...)

		for _, res := range results {
			out := r.planner.ImportData(res.Source.ID, res.Body)
			if !out.Success {
				errs = append(errs, errors.New(res.Source.ID+": "+out.Message))
				continue
			}
			appLog.Info("refresh: subscription merged", "id", res.Source.ID, "added", out.Count, "from_cache", res.FromCache)
		}
	}

	if r.AfterRun != nil {
		r.AfterRun()
	}

	if len(errs) > 0 {
		metrics.Refreshes.WithLabelValues("partial").Inc()
		return errors.Join(errs...)
	}
	metrics.Refreshes.WithLabelValues("ok").Inc()
	return nil
}

// Schedule starts a cron scheduler running r on spec (standard five field
// syntax). The caller stops it with Stop.
func (r *Refresher) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := r.Run(ctx); err != nil {
			appLog.Error("scheduled refresh incomplete", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("refresh scheduled", "spec", spec, "subscriptions", len(r.subscriptions))
	return c, nil
}
