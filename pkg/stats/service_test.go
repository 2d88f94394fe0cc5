package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/allowance"
	"github.com/Jaberkh/Nut-test/pkg/dune"
	"github.com/Jaberkh/Nut-test/pkg/holders"
	"github.com/Jaberkh/Nut-test/pkg/neynar"
	"github.com/Jaberkh/Nut-test/pkg/state"
)

type serviceFixture struct {
	svc         *Service
	store       *state.Store
	lookupCalls *atomic.Int64
	ogSnapshot  string
}

// newFixture wires a service against a fake identity API returning the given
// addresses and fresh temp snapshot files.
func newFixture(t *testing.T, addresses string) *serviceFixture {
	t.Helper()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"users":[{"verified_addresses":{"eth_addresses":[` + addresses + `]}}]}`))
	}))
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	resolver, err := neynar.NewResolver(logger, "key", neynar.Opts{BaseURL: srv.URL})
	require.NoError(t, err)

	dir := t.TempDir()
	ogPath := filepath.Join(dir, "og.json")
	store := state.NewStore(logger, filepath.Join(dir, "cache.json"))
	store.Load()

	svc := NewService(logger, Opts{
		Resolver:   resolver,
		OGHolders:  holders.NewEvaluator(logger, "og", ogPath),
		NewHolders: holders.NewEvaluator(logger, "new", filepath.Join(dir, "new.json")),
		Store:      store,
	})
	return &serviceFixture{svc: svc, store: store, lookupCalls: &calls, ogSnapshot: ogPath}
}

func TestUserRecordNonHolderLockout(t *testing.T) {
	f := newFixture(t, `"0xabc123def"`)

	f.store.ApplyRefresh([]state.Row{{
		Fid:  "100",
		Data: dune.PeanutRow{Fid: "100", SentPeanutCount: 50, DailyPeanutCount: 3, AllTimePeanutCount: 200, Rank: 9},
	}}, time.Now(), 0, true)

	rec := f.svc.UserRecord(context.Background(), "100")
	assert.Equal(t, allowance.MintSentinel, rec.Remaining)
	assert.Equal(t, "50", rec.Overage)
	assert.Equal(t, 3, rec.TodayCount)
	assert.Equal(t, 200, rec.TotalCount)
	assert.Equal(t, 9, rec.Rank)
	assert.Equal(t, "0xa...def", rec.MaskedWallet1)
	assert.Equal(t, "N/A", rec.MaskedWallet2)
	assert.Equal(t, "https://warpcast.com/~/profile/100", rec.ProfileLink1)
	assert.Equal(t, "N/A", rec.ProfileLink2)
	assert.Equal(t, allowance.TierNoobie, rec.Tier)

	// Non-holders never touch the ledger.
	assert.Equal(t, 0, f.store.PriorExcess("100"))
}

func TestUserRecordHolderPromotion(t *testing.T) {
	f := newFixture(t, `"0xabc123def"`)
	require.NoError(t, os.WriteFile(f.ogSnapshot,
		[]byte(`{"holders":[{"wallet":"0xabc123def","count":1}]}`), 0o644))

	// The fid is not in the dataset; the read promotes it.
	rec := f.svc.UserRecord(context.Background(), "200")
	assert.Equal(t, "150 / 150", rec.Remaining)
	assert.Equal(t, 1, rec.OGCount)

	_, found := f.store.FindRow("200")
	assert.True(t, found)
	assert.Equal(t, 0, f.store.PriorExcess("200"))
}

func TestUserRecordHolderExcessAccumulates(t *testing.T) {
	f := newFixture(t, `"0xabc123def"`)
	require.NoError(t, os.WriteFile(f.ogSnapshot,
		[]byte(`{"holders":[{"wallet":"0xabc123def","count":1}]}`), 0o644))

	f.store.ApplyRefresh([]state.Row{{
		Fid:  "300",
		Data: dune.PeanutRow{Fid: "300", SentPeanutCount: 170},
	}}, time.Now(), 0, true)

	rec := f.svc.UserRecord(context.Background(), "300")
	assert.Equal(t, "150 / 0", rec.Remaining)
	assert.Equal(t, "20", rec.Overage)
	assert.Equal(t, 20, f.store.PriorExcess("300"))
}

func TestUserRecordCached(t *testing.T) {
	f := newFixture(t, `"0xabc123def"`)

	first := f.svc.UserRecord(context.Background(), "100")
	second := f.svc.UserRecord(context.Background(), "100")
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), f.lookupCalls.Load())

	// Past the TTL the record is rebuilt. The identity cache has a longer
	// horizon, so only the record layer expires.
	f.svc.now = func() time.Time { return time.Now().Add(defaultRecordTTL + time.Second) }
	f.svc.UserRecord(context.Background(), "100")
	assert.Equal(t, int64(1), f.lookupCalls.Load())
}

func TestUserRecordUnknownFid(t *testing.T) {
	f := newFixture(t, `"0xabc123def"`)

	rec := f.svc.UserRecord(context.Background(), neynar.UnknownFid)
	assert.Equal(t, allowance.MintSentinel, rec.Remaining)
	assert.Equal(t, "N/A", rec.MaskedWallet1)
	assert.Equal(t, int64(0), f.lookupCalls.Load())
}

func TestHashIDStable(t *testing.T) {
	f := newFixture(t, `"0xabc123def"`)

	id := f.svc.HashID("100")
	assert.Regexp(t, regexp.MustCompile(`^\d+-100-[0-9a-z]{1,9}$`), id)

	// Stable for the process lifetime, distinct across fids.
	assert.Equal(t, id, f.svc.HashID("100"))
	assert.NotEqual(t, id, f.svc.HashID("101"))
}
