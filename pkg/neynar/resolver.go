// Package neynar resolves a user handle (fid) to its verified wallet
// addresses. Lookups are best-effort: a single attempt with a short abort,
// failures swallowed, successes cached for an hour.
package neynar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/utils"
)

// UnknownFid is the sentinel handle for an unidentified interactor; it never
// triggers a network call.
const UnknownFid = "N/A"

const (
	DefaultBaseURL = "https://api.neynar.com"

	defaultLookupTimeout = 2 * time.Second
	defaultCacheTTL      = time.Hour
	defaultCacheSize     = 1024
)

// WalletPair holds up to the first two verified addresses for a fid. An
// empty string means the slot is unlinked.
type WalletPair struct {
	Wallet1 string
	Wallet2 string
}

type cacheEntry struct {
	pair      WalletPair
	expiresAt time.Time
}

type Resolver struct {
	client  *http.Client
	logger  *zap.Logger
	apiKey  string
	baseURL string
	timeout time.Duration
	ttl     time.Duration

	mu    sync.Mutex
	cache *lru.Cache[string, cacheEntry]

	now func() time.Time
}

// Opts is the set of options for a new Resolver.
type Opts struct {
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration
	CacheSize  int
	HTTPClient *http.Client
}

func NewResolver(logger *zap.Logger, apiKey string, o Opts) (*Resolver, error) {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultLookupTimeout
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = defaultCacheTTL
	}
	if o.CacheSize <= 0 {
		o.CacheSize = defaultCacheSize
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	cache, err := lru.New[string, cacheEntry](o.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		client:  o.HTTPClient,
		logger:  logger,
		apiKey:  apiKey,
		baseURL: o.BaseURL,
		timeout: o.Timeout,
		ttl:     o.CacheTTL,
		cache:   cache,
		now:     time.Now,
	}, nil
}

type bulkUsersResponse struct {
	Users []struct {
		VerifiedAddresses struct {
			EthAddresses []string `json:"eth_addresses"`
		} `json:"verified_addresses"`
	} `json:"users"`
}

// Resolve returns the wallet pair for a fid. Any upstream failure yields an
// empty pair without populating the cache, so the next request retries.
func (r *Resolver) Resolve(ctx context.Context, fid string) WalletPair {
	if fid == UnknownFid || fid == "" {
		return WalletPair{}
	}

	if pair, ok := r.cached(fid); ok {
		return pair
	}

	// Single attempt with a short abort; slow identity lookups must not
	// hold up request handling.
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v2/farcaster/user/bulk?fids=%s", r.baseURL, fid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		r.logger.Warn("Identity lookup request failed", zap.String("fid", fid), zap.Error(err))
		return WalletPair{}
	}
	req.Header.Set("x-api-key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("Identity lookup failed", zap.String("fid", fid), zap.Error(err))
		return WalletPair{}
	}
	if resp.StatusCode != http.StatusOK {
		_ = utils.DrainAndClose(resp.Body)
		r.logger.Warn("Identity lookup rejected",
			zap.String("fid", fid),
			zap.Int("status", resp.StatusCode))
		return WalletPair{}
	}

	var out bulkUsersResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	_ = utils.DrainAndClose(resp.Body)
	if decodeErr != nil {
		r.logger.Warn("Identity lookup decode failed", zap.String("fid", fid), zap.Error(decodeErr))
		return WalletPair{}
	}

	var pair WalletPair
	if len(out.Users) > 0 {
		addrs := out.Users[0].VerifiedAddresses.EthAddresses
		if len(addrs) > 0 {
			pair.Wallet1 = addrs[0]
		}
		if len(addrs) > 1 {
			pair.Wallet2 = addrs[1]
		}
	}

	r.mu.Lock()
	r.cache.Add(fid, cacheEntry{pair: pair, expiresAt: r.now().Add(r.ttl)})
	r.mu.Unlock()

	return pair
}

func (r *Resolver) cached(fid string) (WalletPair, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache.Get(fid)
	if !ok {
		return WalletPair{}, false
	}
	if r.now().After(entry.expiresAt) {
		r.cache.Remove(fid)
		return WalletPair{}, false
	}
	return entry.pair, true
}
