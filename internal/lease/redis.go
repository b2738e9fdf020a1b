package lease

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idprint:charge:lease:"

// only the holder's token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DialRedis builds a client with short timeouts; a slow Redis must not
// stall a paid request for long.
func DialRedis(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewRedis builds a lease whose keys expire after ttl, so a crashed holder
// cannot lock a user out for longer than one extractor timeout.
func NewRedis(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 45 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{rdb: rdb, ttl: ttl, log: log}
}

// Ping reports Redis reachability for readiness checks.
func (l *Redis) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func (l *Redis) Acquire(ctx context.Context, userID string) (Release, error) {
	key := keyPrefix + userID
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire charge lease: %w", err)
	}
	if !ok {
		return nil, points.ErrChargeInProgress
	}

	return func() {
		// the request context may already be gone
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(rctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("charge lease release failed", "user_id", userID, "err", err)
		}
	}, nil
}
