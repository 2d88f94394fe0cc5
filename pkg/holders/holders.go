// Package holders evaluates NFT holding counts against an offline holder
// snapshot file. Snapshots are refreshed out-of-band, so the file is
// re-read on every lookup rather than cached in-process.
package holders

import (
	"encoding/json"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/neynar"
)

// Holder is one snapshot entry.
type Holder struct {
	Wallet string `json:"wallet"`
	Count  int    `json:"count"`
}

type snapshot struct {
	Holders []Holder `json:"holders"`
}

// Evaluator counts holdings for one collection tier.
type Evaluator struct {
	logger *zap.Logger
	path   string
	tier   string
}

func NewEvaluator(logger *zap.Logger, tier, path string) *Evaluator {
	return &Evaluator{logger: logger, path: path, tier: tier}
}

// Count sums the snapshot counts for both wallet slots, matched
// case-insensitively. The slots are summed independently: if both carry the
// same address the count doubles. Read or parse failures yield 0.
func (e *Evaluator) Count(pair neynar.WalletPair) int {
	if pair.Wallet1 == "" && pair.Wallet2 == "" {
		return 0
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		e.logger.Warn("Holder snapshot unreadable",
			zap.String("tier", e.tier),
			zap.String("path", e.path),
			zap.Error(err))
		return 0
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		e.logger.Warn("Holder snapshot malformed",
			zap.String("tier", e.tier),
			zap.String("path", e.path),
			zap.Error(err))
		return 0
	}

	byWallet := make(map[string]int, len(snap.Holders))
	for _, h := range snap.Holders {
		byWallet[strings.ToLower(h.Wallet)] = h.Count
	}

	count := 0
	if pair.Wallet1 != "" {
		count += byWallet[strings.ToLower(pair.Wallet1)]
	}
	if pair.Wallet2 != "" {
		count += byWallet[strings.ToLower(pair.Wallet2)]
	}
	return count
}
