package app

import (
	"context"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/storage/kv"
	"github.com/xenking/kart-checkout/internal/storage/postgres"
	kvredis "github.com/xenking/kart-checkout/internal/storage/redis"
)

// storage is the opened persistence layer. receipts is set only for the
// postgres driver.
type storage struct {
	kv       kv.Store
	receipts *postgres.ReceiptStore
	close    func()
}

// pinger returns the backend's availability probe, if it has one.
func (s *storage) pinger() (kv.Pinger, bool) {
	p, ok := s.kv.(kv.Pinger)
	return p, ok
}

func openStorage(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (*storage, error) {
	lg = lg.With(zap.String("driver", cfg.Driver))
	switch cfg.Driver {
	case DriverMemory:
		lg.Warn("Using in-memory storage, the cart is lost on restart")
		return &storage{kv: kv.NewMemory(), close: func() {}}, nil

	case DriverFile:
		store, err := kv.NewFile(kv.FileConfig{Dir: cfg.Dir, Compress: cfg.Compress})
		if err != nil {
			return nil, errors.Wrap(err, "open file storage")
		}
		lg.Info("Storage opened", zap.String("dir", cfg.Dir), zap.Bool("compress", cfg.Compress))
		return &storage{kv: store, close: func() {}}, nil

	case DriverRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, errors.Wrap(err, "ping redis")
		}
		lg.Info("Storage opened", zap.String("addr", cfg.RedisAddr))
		return &storage{
			kv: kvredis.New(client, cfg.Namespace),
			close: func() {
				if err := client.Close(); err != nil {
					lg.Warn("Close redis client", zap.Error(err))
				}
			},
		}, nil

	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Storage opened", zap.String("namespace", cfg.Namespace))
		return &storage{
			kv:       postgres.NewKVStore(pool, cfg.Namespace),
			receipts: postgres.NewReceiptStore(pool, cfg.Namespace),
			close:    pool.Close,
		}, nil

	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
