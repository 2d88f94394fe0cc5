// Package refresh drives the periodic bulk-dataset refresh. A minute tick
// re-evaluates the gates (daily quota, anchor windows, staleness) and, when
// they pass, runs one execute/wait/fetch cycle against the analytics API,
// enriches every row with live identity and holdings data, and merges the
// result into the persisted dataset without losing accumulated overage.
package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/allowance"
	"github.com/Jaberkh/Nut-test/pkg/dune"
	"github.com/Jaberkh/Nut-test/pkg/holders"
	"github.com/Jaberkh/Nut-test/pkg/neynar"
	redisx "github.com/Jaberkh/Nut-test/pkg/redis"
	"github.com/Jaberkh/Nut-test/pkg/state"
)

const (
	// DefaultCronSpec fires every minute on the minute (seconds field first).
	DefaultCronSpec = "0 * * * * *"

	DefaultMaxDailyUpdates = 6
	DefaultResultDelay     = 3 * time.Minute
	DefaultMinInterval     = 2 * time.Hour

	// anchorSlackMinutes widens each anchor into a ±5 minute window.
	anchorSlackMinutes = 5

	enrichWorkers = 10
)

// updateAnchors are the six daily refresh slots, in minutes since UTC
// midnight.
var updateAnchors = []int{0, 360, 648, 720, 990, 1260}

// Scheduler owns the refresh state machine. At most one cycle runs at a
// time; triggers that arrive while one is in flight are dropped, not queued.
type Scheduler struct {
	logger     *zap.Logger
	dune       *dune.Client
	queryID    string
	resolver   *neynar.Resolver
	ogHolders  *holders.Evaluator
	newHolders *holders.Evaluator
	store      *state.Store
	events     *redisx.Client

	allowNonHolders bool
	maxDaily        int
	resultDelay     time.Duration
	minInterval     time.Duration

	cron     *cron.Cron
	cronSpec string
	updating atomic.Bool
	now      func() time.Time
}

// Opts is the set of options for a new Scheduler.
type Opts struct {
	Dune            *dune.Client
	QueryID         string
	Resolver        *neynar.Resolver
	OGHolders       *holders.Evaluator
	NewHolders      *holders.Evaluator
	Store           *state.Store
	Events          *redisx.Client
	AllowNonHolders bool

	CronSpec        string
	MaxDailyUpdates int
	ResultDelay     time.Duration
	MinInterval     time.Duration
}

func New(logger *zap.Logger, o Opts) *Scheduler {
	if o.CronSpec == "" {
		o.CronSpec = DefaultCronSpec
	}
	if o.MaxDailyUpdates <= 0 {
		o.MaxDailyUpdates = DefaultMaxDailyUpdates
	}
	if o.ResultDelay <= 0 {
		o.ResultDelay = DefaultResultDelay
	}
	if o.MinInterval <= 0 {
		o.MinInterval = DefaultMinInterval
	}
	return &Scheduler{
		logger:          logger,
		dune:            o.Dune,
		queryID:         o.QueryID,
		resolver:        o.Resolver,
		ogHolders:       o.OGHolders,
		newHolders:      o.NewHolders,
		store:           o.Store,
		events:          o.Events,
		allowNonHolders: o.AllowNonHolders,
		maxDaily:        o.MaxDailyUpdates,
		resultDelay:     o.ResultDelay,
		minInterval:     o.MinInterval,
		cronSpec:        o.CronSpec,
		now:             time.Now,
	}
}

// SetupCron registers the polling tick. The tick only evaluates gates; the
// long wait inside a passing cycle never blocks subsequent evaluation
// because overlapping triggers are dropped by the re-entrancy guard.
func (s *Scheduler) SetupCron(ctx context.Context) error {
	s.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := s.cron.AddFunc(s.cronSpec, func() {
		s.RunOnce(ctx)
	})
	return err
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Refresh scheduler started", zap.String("cronSpec", s.cronSpec))
}

// Stop stops the tick and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce evaluates the gates and runs at most one refresh cycle. Safe to
// call from any goroutine; concurrent calls beyond the first are no-ops.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.updating.CompareAndSwap(false, true) {
		s.logger.Debug("Refresh already in progress, skipping trigger")
		return
	}
	defer s.updating.Store(false)

	now := s.now()
	day := utcDayStart(now).UnixMilli()

	if s.store.RolloverDay(day) {
		s.logger.Info("New UTC day, daily update counter reset")
	}

	if count := s.store.UpdateCountToday(); count >= s.maxDaily {
		s.logger.Debug("Daily update quota reached, skipping",
			zap.Int("count", count), zap.Int("max", s.maxDaily))
		return
	}

	wasEmpty := s.store.IsEmpty()
	if !s.shouldRefresh(now, s.store.LastUpdated(), wasEmpty) {
		return
	}

	s.logger.Info("Starting refresh cycle",
		zap.String("query_id", s.queryID),
		zap.Bool("bootstrap", wasEmpty))

	executionID, err := s.dune.Execute(ctx, s.queryID)
	if err != nil {
		s.logger.Error("Query execution failed, aborting cycle", zap.Error(err))
		return
	}

	// The upstream analytics job is asynchronous with no completion signal;
	// a fixed delay before the single results fetch is the contract.
	select {
	case <-ctx.Done():
		s.logger.Info("Refresh cycle cancelled during result wait")
		return
	case <-time.After(s.resultDelay):
	}

	rows, pending, err := s.dune.Results(ctx, executionID)
	if pending {
		s.logger.Warn("Results not ready after wait, aborting cycle",
			zap.String("execution_id", executionID))
		return
	}
	if err != nil {
		// Fetch errors degrade to an empty row set; the refresh proceeds
		// and the dataset records the (empty) outcome.
		s.logger.Error("Results fetch failed, treating as empty", zap.Error(err))
		rows = nil
	}
	if len(rows) == 0 {
		s.logger.Warn("No rows fetched despite expecting data")
	}

	merged := s.enrich(ctx, rows)
	if ctx.Err() != nil {
		// A cancelled pool leaves rows unenriched or scored against failed
		// lookups; persisting them would clobber the excess ledger.
		s.logger.Info("Refresh cycle cancelled during enrichment, discarding partial results")
		return
	}

	completedAt := s.now()
	s.store.ApplyRefresh(merged, completedAt, day, wasEmpty)
	if err := s.store.Save(); err != nil {
		s.logger.Error("Failed to persist cache after refresh", zap.Error(err))
	}

	s.logger.Info("Refresh cycle completed",
		zap.Int("rows", len(merged)),
		zap.Int("updates_today", s.store.UpdateCountToday()))

	s.events.Publish(ctx, redisx.RefreshChannel, completedAt.UnixMilli())
}

// shouldRefresh applies the time-window policy. An empty dataset bootstraps
// immediately; otherwise the moment must sit inside an anchor window and the
// dataset must be stale enough.
func (s *Scheduler) shouldRefresh(now time.Time, lastUpdated time.Time, empty bool) bool {
	if empty {
		s.logger.Info("Dataset empty, allowing immediate refresh")
		return true
	}

	minutes := now.UTC().Hour()*60 + now.UTC().Minute()
	inWindow := false
	for _, anchor := range updateAnchors {
		d := minutes - anchor
		if d < 0 {
			d = -d
		}
		if d <= anchorSlackMinutes {
			inWindow = true
			break
		}
	}
	if !inWindow {
		s.logger.Debug("Outside refresh window", zap.Int("minutes_since_midnight", minutes))
		return false
	}

	if sinceLast := now.Sub(lastUpdated); sinceLast < s.minInterval {
		s.logger.Debug("In refresh window but dataset still fresh",
			zap.Duration("since_last", sinceLast),
			zap.Duration("min_interval", s.minInterval))
		return false
	}

	return true
}

// enrich resolves identity and holdings for every fetched row, computes the
// cycle's overage and folds it onto the prior accumulated value. Lookups
// fan out over a bounded worker pool; each task writes only its own slot.
func (s *Scheduler) enrich(ctx context.Context, rows []dune.PeanutRow) []state.Row {
	merged := make([]state.Row, len(rows))

	queueSize := len(rows)
	if queueSize < 16 {
		queueSize = 16
	}
	pool := pond.NewPool(enrichWorkers, pond.WithQueueSize(queueSize))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, row := range rows {
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}

			fid := row.IdentityKey()
			pair := s.resolver.Resolve(groupCtx, fid)
			og := s.ogHolders.Count(pair)
			nw := s.newHolders.Count(pair)

			res := allowance.Compute(og, nw, row.SentPeanutCount, s.allowNonHolders)

			// Accumulation, not replacement: the upstream per-cycle counter
			// resets, the ledger does not.
			merged[i] = state.Row{
				Fid:              fid,
				Data:             row,
				CumulativeExcess: s.store.PriorExcess(fid) + res.Excess,
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		s.logger.Warn("Row enrichment encountered error", zap.Error(err))
	}

	return merged
}

func utcDayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
