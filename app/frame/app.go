package frame

import (
	"context"

	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/app/frame/types"
	"github.com/Jaberkh/Nut-test/pkg/dune"
	"github.com/Jaberkh/Nut-test/pkg/gate"
	"github.com/Jaberkh/Nut-test/pkg/holders"
	"github.com/Jaberkh/Nut-test/pkg/httpx"
	"github.com/Jaberkh/Nut-test/pkg/logging"
	"github.com/Jaberkh/Nut-test/pkg/neynar"
	"github.com/Jaberkh/Nut-test/pkg/ratelimit"
	"github.com/Jaberkh/Nut-test/pkg/refresh"
	redisx "github.com/Jaberkh/Nut-test/pkg/redis"
	"github.com/Jaberkh/Nut-test/pkg/state"
	"github.com/Jaberkh/Nut-test/pkg/stats"
	"github.com/Jaberkh/Nut-test/pkg/utils"
)

// Initialize wires the whole service from environment configuration.
func Initialize(ctx context.Context) (*types.App, error) {
	logger, err := logging.New()
	if err != nil {
		return nil, err
	}

	store := state.NewStore(logger, utils.Env("CACHE_FILE", "./cache.json"))
	store.Load()

	// Events are optional: without Redis the service runs degraded, it
	// just stops announcing refreshes.
	redisClient, redisErr := redisx.NewClient(ctx, logger)
	if redisErr != nil {
		logger.Warn("Redis unavailable, refresh events disabled", zap.Error(redisErr))
		redisClient = nil
	}

	resolver, resolverErr := neynar.NewResolver(logger, utils.Env("NEYNAR_API_KEY", ""), neynar.Opts{})
	if resolverErr != nil {
		return nil, resolverErr
	}

	ogHolders := holders.NewEvaluator(logger, "og", utils.Env("OG_HOLDERS_FILE", "./nft_holders.json"))
	newHolders := holders.NewEvaluator(logger, "new", utils.Env("NEW_HOLDERS_FILE", "./new_nft_holders.json"))

	allowNonHolders := utils.EnvBool("ALLOW_NON_HOLDERS", false)

	duneClient := dune.NewClient(
		logger,
		httpx.New(logger, httpx.Opts{}),
		utils.Env("DUNE_API_KEY", ""),
		utils.Env("DUNE_BASE_URL", ""),
	)

	scheduler := refresh.New(logger, refresh.Opts{
		Dune:            duneClient,
		QueryID:         utils.Env("PEANUT_QUERY_ID", "4837362"),
		Resolver:        resolver,
		OGHolders:       ogHolders,
		NewHolders:      newHolders,
		Store:           store,
		Events:          redisClient,
		AllowNonHolders: allowNonHolders,
	})
	if cronErr := scheduler.SetupCron(ctx); cronErr != nil {
		return nil, cronErr
	}

	statsService := stats.NewService(logger, stats.Opts{
		Resolver:        resolver,
		OGHolders:       ogHolders,
		NewHolders:      newHolders,
		Store:           store,
		AllowNonHolders: allowNonHolders,
	})

	return &types.App{
		Store:        store,
		Limiter:      ratelimit.New(),
		Gate:         gate.New(gate.DefaultCapacity, gate.DefaultAcquireTimeout),
		Stats:        statsService,
		Scheduler:    scheduler,
		RedisClient:  redisClient,
		FrameBaseURL: utils.Env("FRAME_BASE_URL", "https://nuts-state.up.railway.app"),
		Logger:       logger,
	}, nil
}
