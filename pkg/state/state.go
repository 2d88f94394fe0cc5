// Package state owns the persisted bulk dataset and its per-user
// cumulative-overage ledger. One writer is the refresh cycle, which replaces
// the row set wholesale; the other is the read path, which may promote a
// newly discovered holder into the dataset. Both go through the mutex here.
package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/dune"
)

// Row is one dataset entry. Fid is unique across the dataset;
// CumulativeExcess only grows while the fid stays in the fetched set.
type Row struct {
	Fid              string         `json:"fid"`
	Data             dune.PeanutRow `json:"data"`
	CumulativeExcess int            `json:"cumulativeExcess"`
}

// Dataset keeps rows in discovery order.
type Dataset struct {
	Rows        []Row `json:"rows"`
	LastUpdated int64 `json:"lastUpdated"` // unix millis
}

// CacheState is the full persisted document.
type CacheState struct {
	Dataset          Dataset `json:"dataset"`
	InitialFetchDone bool    `json:"initialFetchDone"`
	UpdateCountToday int     `json:"updateCountToday"`
	LastUpdateDay    int64   `json:"lastUpdateDay"` // unix millis of UTC midnight
}

type Store struct {
	mu     sync.RWMutex
	logger *zap.Logger
	path   string
	state  CacheState
}

func NewStore(logger *zap.Logger, path string) *Store {
	return &Store{logger: logger, path: path}
}

// Load reads the persisted state. A missing or corrupt file is not an
// error: the store starts fresh and the next refresh rebuilds it.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = CacheState{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("No cache file found, starting fresh", zap.String("path", s.path))
		} else {
			s.logger.Warn("Cache file unreadable, starting fresh",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var loaded CacheState
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("Cache file malformed, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		return
	}

	// Migration step for older persisted shapes: normalize the fid through
	// the payload's identity fields and default the ledger to zero.
	for i := range loaded.Dataset.Rows {
		row := &loaded.Dataset.Rows[i]
		if row.Fid == "" {
			row.Fid = row.Data.IdentityKey()
		}
		if row.CumulativeExcess < 0 {
			row.CumulativeExcess = 0
		}
	}

	s.state = loaded
	s.logger.Info("Cache loaded",
		zap.String("path", s.path),
		zap.Int("rows", len(loaded.Dataset.Rows)))
}

// Save overwrites the persisted document wholesale. Called only at the end
// of a successful refresh cycle; read-path upserts stay in memory until
// then.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.state, "", "  ")
	rows := len(s.state.Dataset.Rows)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return err
	}
	s.logger.Info("Cache saved", zap.String("path", s.path), zap.Int("rows", rows))
	return nil
}

func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Dataset.Rows) == 0
}

func (s *Store) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Dataset.Rows)
}

func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.UnixMilli(s.state.Dataset.LastUpdated)
}

func (s *Store) InitialFetchDone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.InitialFetchDone
}

func (s *Store) UpdateCountToday() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UpdateCountToday
}

// RolloverDay resets the daily update counter when the stored day predates
// day. Returns true when a reset happened.
func (s *Store) RolloverDay(day int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.LastUpdateDay >= day {
		return false
	}
	s.state.UpdateCountToday = 0
	s.state.LastUpdateDay = day
	return true
}

// FindRow returns the row for a fid, if present.
func (s *Store) FindRow(fid string) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.state.Dataset.Rows {
		if row.Fid == fid {
			return row, true
		}
	}
	return Row{}, false
}

// PriorExcess returns the accumulated overage for a fid, zero when absent.
func (s *Store) PriorExcess(fid string) int {
	row, ok := s.FindRow(fid)
	if !ok {
		return 0
	}
	return row.CumulativeExcess
}

// RecordHolderExcess folds a freshly computed overage into the ledger for a
// user who currently holds at least one NFT. Unknown fids are promoted into
// the dataset with the overage as their starting balance: reads can insert.
func (s *Store) RecordHolderExcess(fid string, data dune.PeanutRow, excess int) {
	if fid == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Dataset.Rows {
		if s.state.Dataset.Rows[i].Fid == fid {
			s.state.Dataset.Rows[i].CumulativeExcess += excess
			return
		}
	}
	s.state.Dataset.Rows = append(s.state.Dataset.Rows, Row{
		Fid:              fid,
		Data:             data,
		CumulativeExcess: excess,
	})
}

// ApplyRefresh replaces the entire row set with the outcome of a refresh
// cycle. Rows absent from the new set are dropped, history included.
func (s *Store) ApplyRefresh(rows []Row, completedAt time.Time, day int64, wasEmpty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Dataset.Rows = rows
	s.state.Dataset.LastUpdated = completedAt.UnixMilli()
	if wasEmpty && !s.state.InitialFetchDone {
		s.state.InitialFetchDone = true
	}
	s.state.UpdateCountToday++
	s.state.LastUpdateDay = day
}
