package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/internal/config"
	"github.com/igefined/b3-pulse/internal/refresher"
	"github.com/igefined/b3-pulse/internal/snapshot"
)

const (
	QuoteKeyPrefix = "quote:"
	ChannelPrefix  = "quotes."
	VersionKey     = "snapshot:version"
)

var Module = fx.Module("publisher",
	fx.Provide(
		fx.Annotate(
			NewSink,
			fx.ResultTags(`group:"snapshot_sinks"`),
		),
	),
)

// NewSink mirrors snapshots to redis, or returns nil when no address is configured.
func NewSink(cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) refresher.Sink {
	if cfg.Redis.Addr == "" {
		logger.Info("Redis mirror disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	p := New(client, cfg.Redis.TTL, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("Redis not reachable, snapshots will not be mirrored until it is",
					zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return p
}

// Publisher writes each quote as a key with a TTL and announces it on a per-symbol channel.
type Publisher struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func New(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		ttl:    ttl,
		logger: logger.Named("publisher"),
	}
}

func QuoteKey(symbol string) string {
	return QuoteKeyPrefix + symbol
}

func Channel(symbol string) string {
	return ChannelPrefix + symbol
}

func (p *Publisher) Publish(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil || snap.Len() == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for symbol, quote := range snap.Quotes {
		payload, err := json.Marshal(quote)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", symbol, err)
		}

		pipe.Set(ctx, QuoteKey(symbol), payload, p.ttl)
		pipe.Publish(ctx, Channel(symbol), payload)
	}
	pipe.Set(ctx, VersionKey, snap.Version, p.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	p.logger.Debug("Snapshot mirrored",
		zap.Uint64("version", snap.Version),
		zap.Int("symbols", snap.Len()))

	return nil
}
