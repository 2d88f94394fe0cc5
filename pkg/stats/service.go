// Package stats assembles the per-user display record served to the
// rendering layer: peanut counts from the bulk dataset, live holdings and
// identity enrichment, and the tiered allowance. Reads are cached briefly
// and may promote a newly discovered holder into the persisted dataset.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/allowance"
	"github.com/Jaberkh/Nut-test/pkg/holders"
	"github.com/Jaberkh/Nut-test/pkg/neynar"
	"github.com/Jaberkh/Nut-test/pkg/state"
	"github.com/Jaberkh/Nut-test/pkg/utils"
)

const defaultRecordTTL = 30 * time.Second

const profileLinkFormat = "https://warpcast.com/~/profile/%s"

// Record is the plain data record the rendering layer consumes. Tier and
// OGCount are request-scoped fields, never process state.
type Record struct {
	Fid           string `json:"fid"`
	TodayCount    int    `json:"todayCount"`
	TotalCount    int    `json:"totalCount"`
	SentCount     int    `json:"sentCount"`
	Remaining     string `json:"remainingDisplay"`
	Rank          int    `json:"rank"`
	Overage       string `json:"overageDisplay"`
	MaskedWallet1 string `json:"maskedWallet1"`
	MaskedWallet2 string `json:"maskedWallet2"`
	ProfileLink1  string `json:"profileLink1"`
	ProfileLink2  string `json:"profileLink2"`
	OGCount       int    `json:"ogCount"`
	Tier          string `json:"tier"`
}

type recordEntry struct {
	record    Record
	expiresAt time.Time
}

// Service computes user records against the shared dataset.
type Service struct {
	logger     *zap.Logger
	resolver   *neynar.Resolver
	ogHolders  *holders.Evaluator
	newHolders *holders.Evaluator
	store      *state.Store

	allowNonHolders bool
	recordTTL       time.Duration

	records *xsync.Map[string, recordEntry]
	hashIDs *xsync.Map[string, string]

	now func() time.Time
}

// Opts is the set of options for a new Service.
type Opts struct {
	Resolver        *neynar.Resolver
	OGHolders       *holders.Evaluator
	NewHolders      *holders.Evaluator
	Store           *state.Store
	AllowNonHolders bool
	RecordTTL       time.Duration
}

func NewService(logger *zap.Logger, o Opts) *Service {
	if o.RecordTTL <= 0 {
		o.RecordTTL = defaultRecordTTL
	}
	return &Service{
		logger:          logger,
		resolver:        o.Resolver,
		ogHolders:       o.OGHolders,
		newHolders:      o.NewHolders,
		store:           o.Store,
		allowNonHolders: o.AllowNonHolders,
		recordTTL:       o.RecordTTL,
		records:         xsync.NewMap[string, recordEntry](),
		hashIDs:         xsync.NewMap[string, string](),
		now:             time.Now,
	}
}

// UserRecord returns the display record for a fid, from the short-lived
// cache when possible.
func (s *Service) UserRecord(ctx context.Context, fid string) Record {
	now := s.now()
	if entry, ok := s.records.Load(fid); ok && now.Before(entry.expiresAt) {
		return entry.record
	}

	record := s.build(ctx, fid)
	s.records.Store(fid, recordEntry{record: record, expiresAt: now.Add(s.recordTTL)})
	return record
}

func (s *Service) build(ctx context.Context, fid string) Record {
	row, found := s.store.FindRow(fid)
	data := row.Data // zero payload when the fid is not in the dataset

	pair := s.resolver.Resolve(ctx, fid)
	og := s.ogHolders.Count(pair)
	nw := s.newHolders.Count(pair)

	res := allowance.Compute(og, nw, data.SentPeanutCount, s.allowNonHolders)

	// Ledger fold, holders only. A holder with no row yet is promoted into
	// the dataset; this read deliberately writes.
	if og > 0 || nw > 0 {
		s.store.RecordHolderExcess(fid, data, res.Excess)
		if !found {
			s.logger.Info("Promoted holder into dataset", zap.String("fid", fid))
		}
	}

	record := Record{
		Fid:           fid,
		TodayCount:    data.DailyPeanutCount,
		TotalCount:    data.AllTimePeanutCount,
		SentCount:     data.SentPeanutCount,
		Remaining:     res.Remaining,
		Rank:          data.Rank,
		Overage:       res.Overage,
		MaskedWallet1: utils.MaskAddress(pair.Wallet1),
		MaskedWallet2: utils.MaskAddress(pair.Wallet2),
		ProfileLink1:  profileLink(pair.Wallet1, fid),
		ProfileLink2:  profileLink(pair.Wallet2, fid),
		OGCount:       og,
		Tier:          res.Tier,
	}

	s.logger.Debug("User record built",
		zap.String("fid", fid),
		zap.Int("today", record.TodayCount),
		zap.Int("total", record.TotalCount),
		zap.String("remaining", record.Remaining),
		zap.String("tier", record.Tier))

	return record
}

// HashID returns the process-lifetime share token for a fid, generating it
// on first use. Tokens are never persisted; a restart regenerates them.
func (s *Service) HashID(fid string) string {
	if id, ok := s.hashIDs.Load(fid); ok {
		return id
	}
	id := utils.NewHashID(fid)
	actual, _ := s.hashIDs.LoadOrStore(fid, id)
	return actual
}

func profileLink(wallet, fid string) string {
	if wallet == "" {
		return "N/A"
	}
	return fmt.Sprintf(profileLinkFormat, fid)
}
