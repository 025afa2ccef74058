package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/0xReLogic/colofail/internal/config"
	"github.com/0xReLogic/colofail/internal/registry"
)

// ErrConflict is returned when an optimistic update keeps losing races.
var ErrConflict = errors.New("store: too many concurrent updates")

var storeConflictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "colofail_store_conflicts_total",
		Help: "Optimistic registry updates retried because another writer won",
	},
	[]string{"backend"},
)

// Backend is a registry store that can also seed itself, apply atomic
// updates and release its resources.
type Backend interface {
	registry.Store
	registry.Updater
	registry.Seeder
	Close() error
}

// Open builds the backend selected in cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	key := cfg.Key
	if key == "" {
		key = registry.DefaultKey
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("store.file_path is required for the file backend")
		}
		return NewFile(cfg.FilePath), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedis(client, key, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
