package redis

import (
	"context"
	"fmt"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
	pkgLog "github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	pkgRedis "github.com/andrei1031/dash-q-v2-front-sub000/pkg/redis"
)

// Connect returns a client even when the ping fails: the session store
// degrades to memory on its own, so an unreachable Redis must not stop the agent.
func Connect(ctx context.Context, cfg config.RedisConfig, l pkgLog.Logger) (*pkgRedis.Client, error) {
	cli, err := pkgRedis.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	if err := cli.Ping(ctx); err != nil {
		l.Warnf(ctx, "infra.redis.Connect: ping %s failed, session will not survive restarts: %v", cfg.Addr, err)
		return cli, nil
	}

	l.Infof(ctx, "Connected to Redis at %s", cfg.Addr)

	return cli, nil
}

func Disconnect(ctx context.Context, cli *pkgRedis.Client, l pkgLog.Logger) {
	if cli == nil {
		return
	}

	if err := cli.Close(); err != nil {
		l.Warnf(ctx, "infra.redis.Disconnect: %v", err)
		return
	}

	l.Info(ctx, "Connection to Redis closed.")
}
